// Package pkg holds the building blocks of the transcript MCP server.
//
// The packages split along the protocol's seams:
//
//   - protocol: JSON-RPC 2.0 framing and the MCP message types
//   - server: the runtime that routes messages plus the HTTP surface
//   - transport: SSE channels, the session directory, and the stdio loop
//   - tools: the tool registry, typed dispatch, and the transcript tools
//   - client: the Go client for servers speaking this protocol
//   - transcript: the downstream captions API client
//   - subtitle: transcript rendering into text, SRT, WebVTT, and JSON
//   - store: the SQLite library of saved transcripts
//   - errors: the error taxonomy shared across the module
//   - config, auth, logging, observability, pagination, utils: supporting
//     infrastructure
//
// The root package re-exports the common entry points; start there unless
// you are extending one of these layers directly.
package pkg
