// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// BackendRequest caps a single request/response call to the issuer or
// verifier HTTP APIs.
const BackendRequest = 15 * time.Second

// StreamDial caps how long opening a verification event stream may take
// before the attempt is recorded as a connection error.
const StreamDial = 10 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
