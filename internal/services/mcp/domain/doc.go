// Package domain defines the MCP tools of the verification server.
//
// Each tool has a schema constructor (XTool) and a handler constructor
// (XHandler). Handlers never return protocol errors for backend failures:
// they fold them into an error flag and message in the structured result so
// the calling agent can read and react to them.
package domain
