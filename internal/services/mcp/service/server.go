package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/branding"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/timeouts"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/mcp/domain"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/ssiclient"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification/eventstream"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " MCP"

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server and the SSI backends it talks to.
type Config struct {
	Transport TransportKind
	// HTTPAddr is the HTTP listen address. Defaults to localhost:8080.
	HTTPAddr string
	// AllowedHosts extends the loopback-only Host/Origin allow list.
	AllowedHosts []string
	// AuthToken, when set, is required as a bearer token on HTTP requests.
	AuthToken string

	VerifierClientURL  string
	VerifierServiceURL string
	VerifierAPIKey     string
	IssuerURL          string
	IssuerAPIKey       string

	// StorePath selects a SQLite attempt store. Empty keeps attempts in memory.
	StorePath    string
	Verification verification.Config

	Logger zerolog.Logger
}

// Server hosts the MCP server and owns the verification service behind it.
type Server struct {
	mcpServer    *mcp.Server
	verification *verification.Service
	store        io.Closer
	logger       zerolog.Logger
	closeOnce    sync.Once
	closeErr     error
}

// backends are the collaborators tool handlers call into.
type backends struct {
	verification    domain.VerificationService
	issuer          domain.IssuerClient
	verifierService domain.VerifierServiceClient
}

// New creates a configured MCP server with its attempt store, SSI API
// clients and verification service.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger

	store, closer, err := openStore(ctx, cfg.StorePath, logger)
	if err != nil {
		return nil, err
	}

	verifierClient := ssiclient.NewVerifierClient(ssiclient.Config{
		BaseURL: cfg.VerifierClientURL,
		APIKey:  cfg.VerifierAPIKey,
	})
	svc, err := verification.NewService(verification.Dependencies{
		Authorizer: verifierClient,
		Dialer:     &eventstream.HTTPDialer{DialTimeout: timeouts.StreamDial},
		Store:      store,
		Logger:     logger.With().Str("component", "verification").Logger(),
	}, cfg.Verification)
	if err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("create verification service: %w", err)
	}

	server, err := newServer(backends{
		verification: svc,
		issuer: ssiclient.NewIssuerClient(ssiclient.Config{
			BaseURL: cfg.IssuerURL,
			APIKey:  cfg.IssuerAPIKey,
		}),
		verifierService: ssiclient.NewVerifierServiceClient(ssiclient.Config{
			BaseURL: cfg.VerifierServiceURL,
			APIKey:  cfg.VerifierAPIKey,
		}),
	}, logger)
	if err != nil {
		svc.Close()
		closeQuietly(closer)
		return nil, err
	}
	server.verification = svc
	server.store = closer
	return server, nil
}

// newServer creates the MCP server and registers every tool module.
func newServer(b backends, logger zerolog.Logger) (*Server, error) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: branding.Version}, nil)

	for _, module := range newMCPRegistrationModules(b) {
		if err := module.register(mcpServerRegistrationAdapter{server: mcpServer}); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}

	return &Server{mcpServer: mcpServer, logger: logger}, nil
}

// openStore returns the in-memory store, or a SQLite store when path is set.
// The returned closer is nil for the in-memory store.
func openStore(ctx context.Context, path string, logger zerolog.Logger) (verification.Store, io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return verification.NewMemoryStore(), nil, nil
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("open attempt store: %w", err)
	}
	if n := store.Interrupted(); n > 0 {
		logger.Warn().Int("attempts", n).Str("path", path).Msg("finalized attempts left pending by a previous run")
	}
	return store, store, nil
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// Close stops every live verification bridge and releases the attempt store.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		if s.verification != nil {
			s.verification.Close()
		}
		if s.store != nil {
			s.closeErr = s.store.Close()
		}
	})
	return s.closeErr
}

// serveWithTransport serves the MCP server over the provided transport until
// the transport closes or ctx ends. Releasing the store is left to the caller
// so the sweeper can stop first.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return fmt.Errorf("serve MCP: %w", err)
}
