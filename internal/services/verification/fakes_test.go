package verification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/ssi-verifier-mcp/internal/services/ssiclient"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification/eventstream"
)

type fakeStream struct {
	events chan eventstream.Event
	errs   chan error
	closed chan struct{}

	mu         sync.Mutex
	closeCalls int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan eventstream.Event),
		errs:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Next() (eventstream.Event, error) {
	select {
	case event := <-s.events:
		return event, nil
	case err := <-s.errs:
		return eventstream.Event{}, err
	case <-s.closed:
		return eventstream.Event{}, eventstream.ErrClosed
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closeCalls == 1 {
		close(s.closed)
	}
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

func (s *fakeStream) send(t *testing.T, eventType, data string) {
	t.Helper()
	select {
	case s.events <- eventstream.Event{Type: eventType, Data: data}:
	case <-time.After(2 * time.Second):
		t.Fatalf("bridge did not read event %q", data)
	}
}

func (s *fakeStream) message(t *testing.T, data string) {
	t.Helper()
	s.send(t, eventstream.MessageType, data)
}

func (s *fakeStream) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case s.errs <- err:
	case <-time.After(2 * time.Second):
		t.Fatalf("bridge did not read stream error %v", err)
	}
}

type fakeDialer struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
	dials   []string
	err     error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{streams: make(map[string]*fakeStream)}
}

func (d *fakeDialer) Dial(_ context.Context, url string) (eventstream.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, url)
	if d.err != nil {
		return nil, d.err
	}
	return d.streamLocked(url), nil
}

func (d *fakeDialer) stream(url string) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamLocked(url)
}

func (d *fakeDialer) streamLocked(url string) *fakeStream {
	stream, ok := d.streams[url]
	if !ok {
		stream = newFakeStream()
		d.streams[url] = stream
	}
	return stream
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

type fakeAuthorizer struct {
	mu        sync.Mutex
	next      int
	err       error
	calls     int
	vpQueries []string
}

func (a *fakeAuthorizer) AuthorizeQRCode(context.Context, string) (ssiclient.QRAuthorization, error) {
	return a.authorize()
}

func (a *fakeAuthorizer) AuthorizeVPQueryQRCode(_ context.Context, vpQueryID string) (ssiclient.QRAuthorization, error) {
	a.mu.Lock()
	a.vpQueries = append(a.vpQueries, vpQueryID)
	a.mu.Unlock()
	return a.authorize()
}

func (a *fakeAuthorizer) authorize() (ssiclient.QRAuthorization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return ssiclient.QRAuthorization{}, a.err
	}
	a.next++
	state := fmt.Sprintf("state-%d", a.next)
	return ssiclient.QRAuthorization{QRCodeURL: "https://qr.test/" + state, State: state}, nil
}

func (a *fakeAuthorizer) ConnectionURL(endpoint, state string) string {
	return "http://verifier.test/api/verifier/" + endpoint + "/v1/connection/" + state
}

func (a *fakeAuthorizer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
