// Package protocol defines the wire types for the subset of the Model Context
// Protocol this server speaks.
//
// The Model Context Protocol (MCP) is a JSON-RPC 2.0 based protocol between an
// AI-assistant client and a capability server. This package contains the Go
// type definitions for the messages the server produces and consumes:
//
//   - jsonrpc.go: JSON-RPC 2.0 framing (requests, responses, notifications,
//     error objects) and classification helpers for raw messages.
//   - mcp.go: lifecycle methods (initialize, ping) and the capability
//     advertisement exchanged during the handshake.
//   - tools.go: tool descriptors, tool-call parameters, and the content
//     envelope every tool invocation resolves to.
//
// # Message Flow
//
//  1. Client connects and sends an initialize request.
//  2. Server responds with its protocol revision, capabilities and identity.
//  3. Client sends a notifications/initialized notification.
//  4. Client lists tools (tools/list) and invokes them (tools/call).
//
// Every tools/call resolves to a CallToolResult: a list of content blocks plus
// an isError flag. Success and failure are both well-formed results; tool
// failures never surface as JSON-RPC error responses.
package protocol
