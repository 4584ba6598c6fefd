// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/ssi-verifier-mcp/internal/platform/cmd"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/branding"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/config"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/logging"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/otel"
	mcpservice "github.com/louisbranch/ssi-verifier-mcp/internal/services/mcp/service"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification"
)

// Config holds MCP command configuration.
type Config struct {
	Transport    string   `env:"SSI_MCP_TRANSPORT"     envDefault:"stdio"`
	HTTPAddr     string   `env:"SSI_MCP_HTTP_ADDR"     envDefault:"localhost:8080"`
	AllowedHosts []string `env:"SSI_MCP_ALLOWED_HOSTS" envSeparator:","`
	AuthToken    string   `env:"SSI_MCP_AUTH_TOKEN"`

	VerifierClientURL  string `env:"VERIFIER_CLIENT_URL"      envDefault:"http://localhost:3000"`
	VerifierServiceURL string `env:"VERIFIER_SERVICE_URL"     envDefault:"http://localhost:9004"`
	VerifierAPIKey     string `env:"VERIFIER_SERVICE_API_KEY"`
	IssuerURL          string `env:"ISSUER_URL"               envDefault:"http://localhost:3000"`
	IssuerAPIKey       string `env:"ISSUER_API_KEY"`

	PollWait       time.Duration `env:"SSI_MCP_POLL_WAIT"       envDefault:"25s"`
	PendingTimeout time.Duration `env:"SSI_MCP_PENDING_TIMEOUT" envDefault:"0s"`
	Retention      time.Duration `env:"SSI_MCP_RETENTION"       envDefault:"1h"`
	SweepInterval  time.Duration `env:"SSI_MCP_SWEEP_INTERVAL"  envDefault:"1m"`
	TerminalPolicy string        `env:"SSI_MCP_TERMINAL_POLICY" envDefault:"result"`
	StorePath      string        `env:"SSI_MCP_STORE_PATH"`

	LogLevel  string `env:"SSI_MCP_LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"SSI_MCP_LOG_PRETTY" envDefault:"false"`

	Telemetry otel.Config
}

// ParseConfig parses environment and flags into a Config. A nil environ
// loads .env files and reads the process environment.
func ParseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var cfg Config
	var err error
	if environ == nil {
		err = entrypoint.ParseConfig(&cfg)
	} else {
		err = config.ParseEnvFrom(&cfg, environ)
	}
	if err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.VerifierClientURL, "verifier-url", cfg.VerifierClientURL, "verifier client base URL")
	fs.StringVar(&cfg.VerifierServiceURL, "verifier-service-url", cfg.VerifierServiceURL, "verifier service base URL")
	fs.StringVar(&cfg.IssuerURL, "issuer-url", cfg.IssuerURL, "issuer base URL")
	fs.DurationVar(&cfg.PollWait, "poll-wait", cfg.PollWait, "max wait of one status poll")
	fs.DurationVar(&cfg.PendingTimeout, "pending-timeout", cfg.PendingTimeout, "expire attempts pending longer than this (0 disables)")
	fs.DurationVar(&cfg.Retention, "retention", cfg.Retention, "evict finished attempts older than this (0 disables)")
	fs.StringVar(&cfg.TerminalPolicy, "terminal-policy", cfg.TerminalPolicy, "what a message without a result means: result or message")
	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "SQLite attempt store path (empty keeps attempts in memory)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// serviceConfig maps command configuration onto the MCP service.
func (c Config) serviceConfig() mcpservice.Config {
	return mcpservice.Config{
		Transport:          mcpservice.TransportKind(strings.ToLower(strings.TrimSpace(c.Transport))),
		HTTPAddr:           c.HTTPAddr,
		AllowedHosts:       c.AllowedHosts,
		AuthToken:          c.AuthToken,
		VerifierClientURL:  c.VerifierClientURL,
		VerifierServiceURL: c.VerifierServiceURL,
		VerifierAPIKey:     c.VerifierAPIKey,
		IssuerURL:          c.IssuerURL,
		IssuerAPIKey:       c.IssuerAPIKey,
		StorePath:          c.StorePath,
		Verification: verification.Config{
			PollWait:       c.PollWait,
			PendingTimeout: c.PendingTimeout,
			Retention:      c.Retention,
			SweepInterval:  c.SweepInterval,
			TerminalPolicy: verification.TerminalPolicy(c.TerminalPolicy),
		},
	}
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	logger := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", entrypoint.ServiceMCP).Logger()
	serviceCfg := cfg.serviceConfig()
	serviceCfg.Logger = logger

	logger.Info().
		Str("transport", string(serviceCfg.Transport)).
		Str("version", branding.Version).
		Str("verifier_url", cfg.VerifierClientURL).
		Bool("durable_store", cfg.StorePath != "").
		Msg("starting MCP server")

	options := entrypoint.RunOptions{
		Version:   branding.Version,
		Telemetry: cfg.Telemetry,
		Logger:    &logger,
	}
	return entrypoint.Run(ctx, entrypoint.ServiceMCP, options, func(ctx context.Context) error {
		return mcpservice.Run(ctx, serviceCfg)
	})
}
