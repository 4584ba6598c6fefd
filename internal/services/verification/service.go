package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	platformotel "github.com/louisbranch/ssi-verifier-mcp/internal/platform/otel"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/ssiclient"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification/eventstream"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/ssi-verifier-mcp/internal/services/verification"

// Defaults applied by NewService for zero Config fields.
const (
	DefaultPollWait      = 25 * time.Second
	DefaultSweepInterval = time.Minute
	DefaultRetention     = time.Hour
)

// Status poll messages.
const (
	MessageNotFound  = "No verification process found with this state ID. You must call generate_verification_qr first."
	MessageVerified  = "Verification completed successfully! Credential has been verified."
	MessageRejected  = "Verification failed or was rejected. Check the data field for details."
	MessagePending   = "Verification still in progress. You MUST call check_verification_status again to continue polling."
	MessageTemporary = "Verification check experienced a temporary error. Call check_verification_status again to continue polling."
	MessageInitiated = "QR code generated successfully. Display this QR code to the user and call check_verification_status with this state ID."
)

// StatusNotFound is reported for tokens with no record.
const StatusNotFound = "not_found"

// ErrServiceClosed is returned by Initiate after Close.
var ErrServiceClosed = errors.New("verification service closed")

// Authorizer requests QR authorizations from the verifier.
type Authorizer interface {
	AuthorizeQRCode(ctx context.Context, endpoint string) (ssiclient.QRAuthorization, error)
	AuthorizeVPQueryQRCode(ctx context.Context, vpQueryID string) (ssiclient.QRAuthorization, error)
	ConnectionURL(endpoint, state string) string
}

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Authorizer Authorizer
	Dialer     eventstream.Dialer
	Store      Store
	// Logger receives attempt lifecycle logs. The zero value discards.
	Logger zerolog.Logger
	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Config tunes attempt lifetimes.
type Config struct {
	// PollWait bounds one CheckStatus wait. Zero selects DefaultPollWait.
	PollWait time.Duration
	// PendingTimeout expires attempts pending longer than this. Zero
	// disables expiry.
	PendingTimeout time.Duration
	// Retention evicts terminal records older than this. Zero disables
	// eviction.
	Retention time.Duration
	// SweepInterval is the RunSweeper period. Zero selects
	// DefaultSweepInterval.
	SweepInterval time.Duration
	// TerminalPolicy decides how messages without a result are recorded.
	TerminalPolicy TerminalPolicy
}

// Initiation is the outcome of a successful Initiate.
type Initiation struct {
	QRCodeURL string
	State     string
	Message   string
}

// StatusView is the poll response for one attempt.
type StatusView struct {
	Status      string
	Result      string
	Verified    *bool
	Endpoint    string
	Data        any
	Timestamp   int64
	LastUpdated string
	Error       string
	Message     string
}

// Service owns the attempt Store and the live bridges.
type Service struct {
	authorizer Authorizer
	dialer     eventstream.Dialer
	store      Store
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	cfg        Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	bridges map[string]*Bridge
	closed  bool
	wg      sync.WaitGroup
}

// NewService validates dependencies and applies config defaults.
func NewService(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	if deps.Dialer == nil {
		return nil, errors.New("event stream dialer is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	policy, err := ParseTerminalPolicy(string(cfg.TerminalPolicy))
	if err != nil {
		return nil, err
	}
	cfg.TerminalPolicy = policy
	if cfg.PollWait <= 0 {
		cfg.PollWait = DefaultPollWait
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.PendingTimeout < 0 {
		cfg.PendingTimeout = 0
	}
	if cfg.Retention < 0 {
		cfg.Retention = 0
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = platformotel.Tracer(tracerName)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		authorizer: deps.Authorizer,
		dialer:     deps.Dialer,
		store:      deps.Store,
		logger:     deps.Logger,
		tracer:     tracer,
		now:        now,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		bridges:    make(map[string]*Bridge),
	}, nil
}

// Initiate starts a verification on a named verifier endpoint.
func (s *Service) Initiate(ctx context.Context, endpoint string) (Initiation, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Initiation{}, errors.New("endpoint is required")
	}
	return s.initiate(ctx, endpoint, func(ctx context.Context) (ssiclient.QRAuthorization, error) {
		return s.authorizer.AuthorizeQRCode(ctx, endpoint)
	})
}

// InitiateVPQuery starts a verification bound to a stored VP query.
func (s *Service) InitiateVPQuery(ctx context.Context, vpQueryID string) (Initiation, error) {
	vpQueryID = strings.TrimSpace(vpQueryID)
	if vpQueryID == "" {
		return Initiation{}, errors.New("vpQueryId is required")
	}
	return s.initiate(ctx, ssiclient.VPQueryEndpoint, func(ctx context.Context) (ssiclient.QRAuthorization, error) {
		return s.authorizer.AuthorizeVPQueryQRCode(ctx, vpQueryID)
	})
}

func (s *Service) initiate(ctx context.Context, endpoint string, authorize func(context.Context) (ssiclient.QRAuthorization, error)) (initiation Initiation, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.Initiate", trace.WithAttributes(
		attribute.String("verification.endpoint", endpoint),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.isClosed() {
		return Initiation{}, ErrServiceClosed
	}

	auth, err := authorize(ctx)
	if err != nil {
		return Initiation{}, err
	}
	span.SetAttributes(attribute.String("verification.state", auth.State))

	attempt := newPendingAttempt(auth.State, endpoint, s.now())
	if err := s.store.Put(ctx, attempt); err != nil {
		return Initiation{}, fmt.Errorf("store pending attempt: %w", err)
	}

	logger := s.logger.With().Str("state", auth.State).Str("endpoint", endpoint).Logger()
	bridge := newBridge(s.ctx, bridgeParams{
		url:    s.authorizer.ConnectionURL(endpoint, auth.State),
		dialer: s.dialer,
		store:  s.store,
		policy: s.cfg.TerminalPolicy,
		logger: logger,
		tracer: s.tracer,
		now:    s.now,
	}, attempt)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Initiation{}, ErrServiceClosed
	}
	if previous, ok := s.bridges[auth.State]; ok {
		previous.Close()
	}
	s.bridges[auth.State] = bridge
	s.wg.Add(1)
	s.mu.Unlock()

	updates, _ := bridge.Subscribe()
	bridge.start()
	go s.observe(bridge, updates, logger)

	logger.Info().Msg("verification started")
	return Initiation{
		QRCodeURL: auth.QRCodeURL,
		State:     auth.State,
		Message:   MessageInitiated,
	}, nil
}

// observe is the passive observer every attempt gets. It keeps a consumer
// on the snapshot sequence, logs outcomes and drops the bridge from the
// table once its reader exits.
func (s *Service) observe(bridge *Bridge, updates <-chan Attempt, logger zerolog.Logger) {
	defer s.wg.Done()
	for snapshot := range updates {
		if !snapshot.Status.Terminal() {
			logger.Debug().Str("result", snapshot.Result).Msg("verification progress")
		}
	}
	if terminal, ok := bridge.Terminal(); ok {
		if terminal.Status == StatusError {
			logger.Warn().Str("error", terminal.Error).Msg("verification failed")
		} else {
			logger.Info().Str("status", string(terminal.Status)).Str("result", terminal.Result).Msg("verification finished")
		}
	}
	<-bridge.Stopped()

	s.mu.Lock()
	if s.bridges[bridge.State()] == bridge {
		delete(s.bridges, bridge.State())
	}
	s.mu.Unlock()
}

// CheckStatus reports the state of an attempt. A pending attempt is waited
// on for at most the configured poll wait. It never fails: wait errors are
// reported as pending.
func (s *Service) CheckStatus(ctx context.Context, state string) StatusView {
	ctx, span := s.tracer.Start(ctx, "verification.CheckStatus", trace.WithAttributes(
		attribute.String("verification.state", state),
	))
	defer span.End()

	attempt, err := s.store.Get(ctx, state)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error().Err(err).Str("state", state).Msg("load verification attempt")
		}
		span.SetAttributes(attribute.String("verification.status", StatusNotFound))
		return StatusView{Status: StatusNotFound, Message: MessageNotFound}
	}
	if attempt.Status.Terminal() {
		span.SetAttributes(attribute.String("verification.status", string(attempt.Status)))
		return s.view(attempt)
	}

	bridge := s.bridge(state)
	if bridge == nil {
		// The bridge may have finished and been dropped after the read above.
		if latest, err := s.store.Get(ctx, state); err == nil && latest.Status.Terminal() {
			span.SetAttributes(attribute.String("verification.status", string(latest.Status)))
			return s.view(latest)
		}
		return s.pendingView(attempt, MessageTemporary)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.PollWait)
	defer cancel()
	terminal, err := bridge.Wait(waitCtx)
	if err != nil {
		span.SetAttributes(attribute.String("verification.status", string(StatusPending)))
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return s.pendingView(attempt, MessagePending)
		}
		s.logger.Debug().Err(err).Str("state", state).Msg("verification wait interrupted")
		return s.pendingView(attempt, MessageTemporary)
	}
	span.SetAttributes(attribute.String("verification.status", string(terminal.Status)))
	return s.view(terminal)
}

func (s *Service) view(attempt Attempt) StatusView {
	verified := attempt.Verified()
	message := MessageRejected
	switch {
	case attempt.Status == StatusError && attempt.Error != "":
		message = attempt.Error
	case verified:
		message = MessageVerified
	}
	updated := attempt.UpdatedAt.UTC()
	return StatusView{
		Status:      string(attempt.Status),
		Result:      attempt.Result,
		Verified:    &verified,
		Endpoint:    attempt.Endpoint,
		Data:        attempt.Data,
		Timestamp:   updated.UnixMilli(),
		LastUpdated: formatTimestamp(updated),
		Error:       attempt.Error,
		Message:     message,
	}
}

func (s *Service) pendingView(attempt Attempt, message string) StatusView {
	now := s.now().UTC()
	return StatusView{
		Status:      string(StatusPending),
		Endpoint:    attempt.Endpoint,
		Timestamp:   now.UnixMilli(),
		LastUpdated: formatTimestamp(now),
		Message:     message,
	}
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}

func (s *Service) bridge(state string) *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridges[state]
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases every live bridge without recording outcomes and waits
// for their observers to finish.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	bridges := make([]*Bridge, 0, len(s.bridges))
	for _, bridge := range s.bridges {
		bridges = append(bridges, bridge)
	}
	s.mu.Unlock()

	s.cancel()
	for _, bridge := range bridges {
		bridge.Close()
	}
	s.wg.Wait()
}
