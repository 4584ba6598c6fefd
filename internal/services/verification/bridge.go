package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification/eventstream"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrBridgeClosed is returned by Wait when the bridge stopped without
// producing a terminal snapshot.
var ErrBridgeClosed = errors.New("verification bridge closed")

// subscriberBuffer is the per-subscriber snapshot buffer. Progress snapshots
// are dropped for subscribers that fall this far behind.
const subscriberBuffer = 8

// Bridge adapts one verifier event stream into attempt snapshots.
//
// The bridge is the only writer of its attempt's record after creation. It
// dials the stream once, writes every snapshot to the Store, and publishes
// exactly one terminal snapshot: the Store write happens before Done is
// closed, so anyone who observes Done also observes the stored record.
type Bridge struct {
	url    string
	dialer eventstream.Dialer
	store  Store
	policy TerminalPolicy
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	current     Attempt
	terminal    Attempt
	subscribers map[uint64]chan Attempt
	nextSubID   uint64
	stream      eventstream.Stream
	closing     bool
	released    bool
	dials       int

	done       chan struct{}
	stopped    chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once
}

type bridgeParams struct {
	url    string
	dialer eventstream.Dialer
	store  Store
	policy TerminalPolicy
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func newBridge(parent context.Context, params bridgeParams, initial Attempt) *Bridge {
	ctx, cancel := context.WithCancel(parent)
	return &Bridge{
		url:         params.url,
		dialer:      params.dialer,
		store:       params.store,
		policy:      params.policy,
		logger:      params.logger,
		tracer:      params.tracer,
		now:         params.now,
		ctx:         ctx,
		cancel:      cancel,
		current:     initial,
		subscribers: make(map[uint64]chan Attempt),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

func (b *Bridge) start() {
	go b.run()
}

// State returns the correlation token of the bridged attempt.
func (b *Bridge) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current.State
}

// Done is closed once the terminal snapshot has been stored.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Stopped is closed once the stream reader has exited.
func (b *Bridge) Stopped() <-chan struct{} {
	return b.stopped
}

// Terminal returns the terminal snapshot, if one was produced.
func (b *Bridge) Terminal() (Attempt, bool) {
	select {
	case <-b.done:
	default:
		return Attempt{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.terminal, true
}

func (b *Bridge) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Wait blocks until the terminal snapshot is available. Attaching after the
// bridge finished returns the stored terminal snapshot immediately.
func (b *Bridge) Wait(ctx context.Context) (Attempt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-b.done:
	case <-ctx.Done():
		return Attempt{}, ctx.Err()
	case <-b.stopped:
	}
	if terminal, ok := b.Terminal(); ok {
		return terminal, nil
	}
	return Attempt{}, ErrBridgeClosed
}

// Subscribe attaches an observer to the snapshot sequence. The channel
// receives progress snapshots best-effort and is closed when the bridge
// terminates or stops; Terminal then reports the final snapshot, if any.
// Attaching does not open another connection. The returned func detaches the
// observer.
func (b *Bridge) Subscribe() (<-chan Attempt, func()) {
	ch := make(chan Attempt, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch <- b.terminal
		close(ch)
		return ch, func() {}
	default:
	}
	if b.released {
		close(ch)
		return ch, func() {}
	}

	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
}

// Close releases the stream without recording a terminal snapshot.
func (b *Bridge) Close() {
	b.closeStream()
}

// Expire finalizes a still-pending attempt as an error and releases the
// stream. It has no effect on the record of a finished attempt.
func (b *Bridge) Expire(message string) {
	b.finish(b.snapshot().withError(message, b.now()))
	b.closeStream()
}

func (b *Bridge) run() {
	defer func() {
		b.releaseSubscribers()
		close(b.stopped)
	}()

	_, span := b.tracer.Start(b.ctx, "verification.bridge", trace.WithAttributes(
		attribute.String("verification.state", b.State()),
	))
	defer func() {
		if terminal, ok := b.Terminal(); ok {
			span.SetAttributes(attribute.String("verification.status", string(terminal.Status)))
			if terminal.Status == StatusError {
				span.SetStatus(codes.Error, terminal.Error)
			}
		}
		span.End()
	}()

	b.mu.Lock()
	b.dials++
	b.mu.Unlock()
	stream, err := b.dialer.Dial(b.ctx, b.url)
	if err != nil {
		if !b.isClosing() {
			span.RecordError(err)
			b.fail(ErrorMessageConnection, err)
		}
		return
	}

	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		_ = stream.Close()
		return
	}
	b.stream = stream
	b.mu.Unlock()

	for {
		event, err := stream.Next()
		if err != nil {
			if !b.isClosing() {
				span.RecordError(err)
				b.fail(ErrorMessageConnection, err)
			}
			return
		}
		if event.Type != eventstream.MessageType {
			continue
		}
		span.AddEvent("verification.message")
		if stop := b.handleMessage(event.Data); stop {
			return
		}
	}
}

// handleMessage applies one message and reports whether the stream is done.
func (b *Bridge) handleMessage(data string) bool {
	event, err := parseBackendEvent(data)
	if err != nil {
		b.fail(ErrorMessageInvalidEvent, err)
		return true
	}

	snapshot := b.snapshot()
	snapshot.Result = event.status
	snapshot.Data = event.payload
	snapshot.Error = ""
	snapshot.UpdatedAt = b.now()

	switch {
	case event.final:
		snapshot.Status = StatusCompleted
		b.finish(snapshot)
		b.closeStream()
		return true
	case b.policy == TerminalOnMessage:
		snapshot.Status = StatusCompleted
		b.finish(snapshot)
		return false
	default:
		snapshot.Status = StatusPending
		b.progress(snapshot)
		return false
	}
}

func (b *Bridge) fail(message string, cause error) {
	b.logger.Debug().Err(cause).Str("diagnostic", message).Msg("verification stream failed")
	b.finish(b.snapshot().withError(message, b.now()))
	b.closeStream()
}

func (b *Bridge) progress(snapshot Attempt) {
	select {
	case <-b.done:
		return
	default:
	}
	if err := b.store.Put(context.Background(), snapshot); err != nil {
		b.logger.Warn().Err(err).Msg("store verification progress")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = snapshot
	for _, ch := range b.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// finish stores and publishes the terminal snapshot. Only the first call
// has any effect.
func (b *Bridge) finish(snapshot Attempt) {
	b.finishOnce.Do(func() {
		if err := b.store.Put(context.Background(), snapshot); err != nil {
			if !errors.Is(err, ErrTerminal) {
				b.logger.Error().Err(err).Msg("store verification result")
			} else if stored, getErr := b.store.Get(context.Background(), snapshot.State); getErr == nil {
				snapshot = stored
			}
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.current = snapshot
		b.terminal = snapshot
		for id, ch := range b.subscribers {
			select {
			case ch <- snapshot:
			default:
			}
			close(ch)
			delete(b.subscribers, id)
		}
		close(b.done)
	})
}

// releaseSubscribers closes subscriber channels left open by a bridge that
// stopped without a terminal snapshot.
func (b *Bridge) releaseSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

func (b *Bridge) closeStream() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closing = true
		stream := b.stream
		b.mu.Unlock()

		b.cancel()
		if stream != nil {
			if err := stream.Close(); err != nil {
				b.logger.Debug().Err(err).Msg("close verification stream")
			}
		}
	})
}

func (b *Bridge) snapshot() Attempt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// isClosing reports whether the stream was released on purpose, either by
// the bridge itself or by cancellation of its parent context.
func (b *Bridge) isClosing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closing || b.ctx.Err() != nil
}
