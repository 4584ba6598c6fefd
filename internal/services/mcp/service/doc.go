// Package service wires protocol transport to domain services.
//
// It is the transport adapter layer: the package knows how to run MCP over stdio
// or HTTP, owns the verification service lifetime, and delegates tool meaning to
// the handlers in the domain package.
package service
