// Package client provides a Go client for the transcript MCP server.
//
// One Client type speaks all three server modes:
//
//   - Unified: every request is a single POST to /mcp and the response rides
//     in the body. This is the zero-configuration default after New.
//   - Channel: Connect opens the persistent SSE stream, receives the endpoint
//     handshake, and from then on POSTs requests to the per-session endpoint
//     while responses arrive over the stream, correlated by request id.
//   - Stdio: NewStdio binds the client to a newline-delimited byte pipe, the
//     counterpart of the server's -stdio mode.
//
// # Calling tools over a channel
//
//	c, err := client.New(client.Config{
//	    BaseURL: "http://127.0.0.1:8080",
//	    Token:   "token-a",
//	})
//	if err != nil {
//	    // handle error
//	}
//	defer c.Close()
//
//	ctx := context.Background()
//	if err := c.Connect(ctx); err != nil {
//	    // handle error
//	}
//	if _, err := c.Initialize(ctx); err != nil {
//	    // handle error
//	}
//
//	result, err := c.CallTool(ctx, "get_transcript", map[string]any{
//	    "url": "https://youtu.be/dQw4w9WgXcQ",
//	})
//
// Tool failures are results with IsError set, not Go errors; the error
// return reports protocol and transport failures only. Server-side protocol
// errors carry their taxonomy code and can be inspected with the pkg/errors
// helpers.
package client
