// Package eventstream reads server-sent event streams.
//
// It implements the client half of the text/event-stream format: one HTTP
// GET per stream, events dispatched on blank lines, multi-line data joined
// with newlines. There is no reconnection: a dropped stream ends with an
// error from Next.
package eventstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// MessageType is the event type of unnamed events.
const MessageType = "message"

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("event stream closed")

// Event is one dispatched server-sent event.
type Event struct {
	ID   string
	Type string
	Data string
}

// Stream yields events from one open connection.
type Stream interface {
	// Next blocks until the next event arrives, the connection fails, or the
	// stream is closed. A clean end of stream is reported as io.EOF.
	Next() (Event, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens event streams.
type Dialer interface {
	Dial(ctx context.Context, url string) (Stream, error)
}

// HTTPDialer opens event streams over HTTP.
type HTTPDialer struct {
	// Client performs the request. Its Timeout must be zero because the
	// response body is read for the life of the stream; nil uses a default.
	Client *http.Client
	// Header is added to every stream request.
	Header http.Header
	// DialTimeout bounds the wait for response headers. Zero disables it.
	DialTimeout time.Duration
}

// Dial issues the GET request and returns once response headers arrive.
// The stream stays bound to ctx: cancelling it ends the stream.
func (d *HTTPDialer) Dial(ctx context.Context, url string) (Stream, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	for key, values := range d.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	var timer *time.Timer
	if d.DialTimeout > 0 {
		timer = time.AfterFunc(d.DialTimeout, cancel)
	}
	resp, err := d.client().Do(req)
	if timer != nil && !timer.Stop() && err == nil {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open stream %s: dial timeout", url)
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open stream %s: unexpected status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open stream %s: unexpected content type %q", url, ct)
	}

	return &httpStream{
		body:   resp.Body,
		reader: NewReader(resp.Body),
		cancel: cancel,
	}, nil
}

func (d *HTTPDialer) client() *http.Client {
	if d != nil && d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

type httpStream struct {
	body   io.Closer
	reader *Reader
	cancel context.CancelFunc

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func (s *httpStream) Next() (Event, error) {
	event, err := s.reader.Next()
	if err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, ErrClosed
		}
	}
	return event, err
}

func (s *httpStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		err = s.body.Close()
	})
	return err
}

// Reader parses the text/event-stream format from an io.Reader.
type Reader struct {
	scanner     *bufio.Scanner
	lastEventID string
}

// maxLineSize bounds one event-stream line.
const maxLineSize = 1 << 20

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	scanner.Split(scanLines)
	return &Reader{scanner: scanner}
}

// Next returns the next dispatched event. Events without data are skipped.
// A partial event at end of input is discarded and io.EOF returned.
func (r *Reader) Next() (Event, error) {
	var (
		data      strings.Builder
		hasData   bool
		eventType string
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if !hasData {
				eventType = ""
				continue
			}
			if eventType == "" {
				eventType = MessageType
			}
			return Event{ID: r.lastEventID, Type: eventType, Data: data.String()}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastEventID = value
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// scanLines splits on \n, \r\n or a lone \r.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Need one more byte to tell \r from \r\n.
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
