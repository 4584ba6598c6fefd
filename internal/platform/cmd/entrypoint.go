// Package cmd holds startup helpers shared by service commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/config"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/otel"
	"github.com/rs/zerolog"
)

const defaultOTelShutdownTimeout = 5 * time.Second

// ServiceMCP identifies the MCP command for startup telemetry.
const ServiceMCP = "ssi-verifier-mcp"

// RunOptions controls shared entrypoint behavior for service commands.
type RunOptions struct {
	// Version is reported as the telemetry service version.
	Version string
	// Telemetry selects trace export. The zero value disables it.
	Telemetry otel.Config
	// ShutdownTimeout bounds the final span flush.
	ShutdownTimeout time.Duration
	// Signals end the run loop. Nil selects SIGINT and SIGTERM; an empty
	// non-nil slice disables signal handling.
	Signals []os.Signal
	// Logger receives lifecycle logs. Nil discards them.
	Logger *zerolog.Logger
}

func (o RunOptions) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o RunOptions) signals() []os.Signal {
	if o.Signals == nil {
		return []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return o.Signals
}

// ParseConfig loads .env files and environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// Run executes a service run loop with tracing configured and stops it on
// the configured signals. Cancellation by signal is a clean exit.
func Run(ctx context.Context, service string, options RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := options.logger()

	if signals := options.signals(); len(signals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, signals...)
		defer stop()
	}

	shutdown, err := otel.Setup(ctx, service, options.Version, options.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownTimeout := options.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = defaultOTelShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("service", service).Msg("otel shutdown")
		}
	}()

	started := time.Now()
	err = run(ctx)
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.Str("service", service).Dur("uptime", time.Since(started)).Msg("service stopped")
	return err
}
