// Package server ties the transcript MCP pieces into a runnable server: the
// protocol runtime that routes JSON-RPC messages, the HTTP surface that
// exposes it, and the lifecycle that drains everything on shutdown.
//
// The package provides three layers:
//
//   - Runtime: stateless JSON-RPC router implementing initialize, ping,
//     tools/list, and tools/call over a tool registry. One Runtime serves
//     every transport concurrently.
//   - HTTPHandler: the HTTP surface. GET /sse opens a persistent channel
//     (first an endpoint event naming the delivery address, then message
//     events); POST /messages?sessionId=… delivers into an open channel and
//     acknowledges with 202; POST /mcp is the unified stateless transport
//     returning the response directly; GET /healthz reports liveness.
//   - Server: assembles runtime, session directory, and handler; Run serves
//     HTTP with graceful shutdown, ServeStdio serves the same runtime over a
//     byte pipe.
//
// A minimal server:
//
//	registry := tools.NewRegistry(tools.Config{})
//	tools.RegisterAll(registry, tools.Dependencies{Captions: captions, Store: store})
//
//	srv := server.New(server.Config{
//	    Name:    "transcript-mcp",
//	    Version: "1.0.0",
//	    Addr:    ":8080",
//	    Tools:   registry,
//	})
//
//	if err := srv.Run(ctx); err != nil {
//	    // handle error
//	}
//
// Tool failures never surface as HTTP or JSON-RPC errors: the registry
// resolves every invocation to a result envelope, and the runtime delivers it
// as a successful response. Only credential and session-resolution failures
// are rejected at the HTTP boundary.
package server
