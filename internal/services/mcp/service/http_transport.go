package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/timeouts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

var listenTCP = net.Listen

// HTTPTransport serves MCP over streamable HTTP on /mcp and over the legacy
// SSE transport on /sse.
//
// Session bookkeeping is delegated to the SDK handler; this type owns the
// listener lifecycle and the request guards in front of it: Host/Origin
// validation against DNS rebinding and an optional bearer token.
type HTTPTransport struct {
	addr       string
	hosts      hostPolicy
	apiToken   string
	server     *mcp.Server
	httpServer *http.Server
	logger     zerolog.Logger
}

func (t *HTTPTransport) applyConfig(cfg Config) {
	if t == nil {
		return
	}
	t.hosts = newHostPolicy(cfg.AllowedHosts)
	t.apiToken = strings.TrimSpace(cfg.AuthToken)
	t.logger = cfg.Logger
}

// NewHTTPTransport creates a new HTTP transport. It defaults to localhost-only
// binding so the default footprint stays local unless configuration broadens
// access.
func NewHTTPTransport(addr string) *HTTPTransport {
	if addr == "" {
		addr = defaultHTTPAddr
	}
	return &HTTPTransport{
		addr:   addr,
		hosts:  newHostPolicy(nil),
		logger: zerolog.Nop(),
	}
}

// NewHTTPTransportWithServer creates a new HTTP transport with a reference to
// the MCP server every session is bound to.
func NewHTTPTransportWithServer(addr string, server *mcp.Server) *HTTPTransport {
	transport := NewHTTPTransport(addr)
	transport.server = server
	return transport
}

// Handler returns the guarded HTTP handler tree.
func (t *HTTPTransport) Handler() http.Handler {
	getServer := func(*http.Request) *mcp.Server {
		return t.server
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", t.guard(mcp.NewStreamableHTTPHandler(getServer, nil)))
	// GET opens the event stream; the session's messages are POSTed back to
	// the same path with a sessionid query.
	mux.Handle("/sse", t.guard(mcp.NewSSEHandler(getServer, nil)))
	mux.HandleFunc("/mcp/health", t.handleHealth)
	return mux
}

// guard rejects requests from foreign hosts and, when a token is configured,
// unauthenticated requests before they reach the MCP handler.
func (t *HTTPTransport) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := t.hosts.check(r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !t.authorizeRequest(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves HTTP until ctx is done or the listener fails.
func (t *HTTPTransport) Start(ctx context.Context) error {
	if t.server == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	listener, err := listenTCP("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.addr, err)
	}

	t.httpServer = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	t.logger.Info().Str("addr", listener.Addr().String()).Msg("starting MCP HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		t.logger.Info().Msg("shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			// Streaming responses may outlive the grace period.
			_ = t.httpServer.Close()
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}
