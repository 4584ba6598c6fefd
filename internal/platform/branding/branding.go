// Package branding holds the user-facing product identity.
package branding

// AppName is the product name reported to MCP clients.
const AppName = "SSI Verifier"

// Version is the release reported to MCP clients and telemetry.
const Version = "0.1.0"
