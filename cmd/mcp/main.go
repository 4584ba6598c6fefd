package main

import (
	"context"
	"flag"
	"os"

	mcpcmd "github.com/louisbranch/ssi-verifier-mcp/internal/cmd/mcp"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/config"
)

// main starts the MCP server on stdio or HTTP.
func main() {
	cfg, err := mcpcmd.ParseConfig(flag.CommandLine, os.Args[1:], nil)
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := mcpcmd.Run(context.Background(), cfg); err != nil {
		config.Exitf("failed to serve MCP: %v", err)
	}
}
