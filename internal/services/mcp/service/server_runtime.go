package service

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

const defaultHTTPAddr = "localhost:8080"

// Run is the service entrypoint for MCP and blocks until context cancellation.
// It is transport-agnostic so startup can choose stdio for local agents and
// HTTP for remote integrations.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, cfg, &mcp.StdioTransport{})
	case TransportHTTP:
		return runWithHTTPTransport(ctx, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// runWithTransport creates a server and serves it over the provided transport
// while the attempt sweeper runs alongside.
func runWithTransport(ctx context.Context, cfg Config, transport mcp.Transport) error {
	if ctx == nil {
		ctx = context.Background()
	}
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.runWithSweeper(ctx, func(ctx context.Context) error {
		return server.serveWithTransport(ctx, transport)
	})
}

// runWithHTTPTransport creates a server and serves it over HTTP. Sessions are
// handled by the HTTP transport; the verification service is shared by all
// of them.
func runWithHTTPTransport(ctx context.Context, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	httpAddr := cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}

	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	httpTransport := NewHTTPTransportWithServer(httpAddr, server.mcpServer)
	httpTransport.applyConfig(cfg)

	return server.runWithSweeper(ctx, httpTransport.Start)
}

// runWithSweeper runs serve and the attempt sweeper until serve returns or
// ctx ends, then closes the server once both have stopped.
func (s *Server) runWithSweeper(ctx context.Context, serve func(context.Context) error) error {
	group, groupCtx := errgroup.WithContext(ctx)
	sweepCtx, stopSweeper := context.WithCancel(groupCtx)

	group.Go(func() error {
		defer stopSweeper()
		return serve(groupCtx)
	})
	if s.verification != nil {
		group.Go(func() error {
			return s.verification.RunSweeper(sweepCtx)
		})
	}
	err := group.Wait()
	if closeErr := s.Close(); closeErr != nil {
		if err == nil {
			return fmt.Errorf("close attempt store: %w", closeErr)
		}
		return fmt.Errorf("%v; close attempt store: %w", err, closeErr)
	}
	return err
}
