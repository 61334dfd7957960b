// Package transcriptmcp implements a Model Context Protocol server that
// fronts a video captions service: tools fetch transcripts, track lists,
// and video metadata from the downstream API, convert them to readable
// text, and keep a local library of saved transcripts.
//
// The shipped binary lives in cmd/transcript-mcp and serves HTTP by
// default or a stdio pipe with -stdio. Most programs embed the pieces
// instead:
//
// # Embedding the server
//
//	registry := transcriptmcp.NewRegistry(transcriptmcp.RegistryConfig{})
//	if err := transcriptmcp.RegisterAll(registry, transcriptmcp.Dependencies{
//	    Captions: captionsClient,
//	    Store:    transcriptStore,
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := transcriptmcp.NewServer(transcriptmcp.ServerConfig{
//	    Name:    "transcript-mcp",
//	    Version: "1.0.0",
//	    Addr:    ":8080",
//	    Tools:   registry,
//	})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Custom tools register alongside the built-in set through the same
// registry; see pkg/tools.
//
// # Calling a server
//
//	c, err := transcriptmcp.NewClient(transcriptmcp.ClientConfig{
//	    BaseURL: "http://localhost:8080",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Connect(ctx); err != nil { // persistent channel
//	    log.Fatal(err)
//	}
//	if _, err := c.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := c.CallTool(ctx, "get_transcript", map[string]interface{}{
//	    "video": "dQw4w9WgXcQ",
//	})
//
// Skipping Connect makes the same client use the unified POST endpoint,
// one round trip per request.
//
// # Sub-packages
//
//   - pkg/server: protocol runtime, HTTP surface, lifecycle
//   - pkg/transport: SSE channels, session directory, stdio loop
//   - pkg/tools: tool registry, typed dispatch, the transcript tool set
//   - pkg/client: channel, unified, and pipe mode client
//   - pkg/transcript: downstream captions API client
//   - pkg/subtitle: transcript rendering (text, SRT, WebVTT, JSON)
//   - pkg/store: SQLite-backed saved transcript library
//   - pkg/protocol: JSON-RPC and protocol message types
//   - pkg/errors: the error taxonomy shared by server and client
//   - pkg/config: layered configuration
//   - pkg/auth, pkg/logging, pkg/observability, pkg/pagination: supporting
//     infrastructure
package transcriptmcp
