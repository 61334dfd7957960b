// Package transport implements the server-side session channels that carry
// MCP traffic between clients and the protocol runtime.
//
// # SSE sessions
//
// The persistent mode pairs one Server-Sent-Events response stream
// (outbound) with out-of-band HTTP POSTs (inbound). SSESession models that
// pair as a single duplex channel with a small state machine:
//
//	Uninitialized -> Ready (sink attached) -> Closed
//
// The connection-open path attaches the HTTP response stream, starts the
// session, registers it in the SessionDirectory under a fresh id, and then
// announces the message endpoint to the client:
//
//	session := transport.NewSSESession(id, transport.DefaultSSEConfig())
//	session.SetMessageHandler(runtime)
//	if err := session.Attach(w); err != nil { ... }
//	if err := session.Start(r.Context()); err != nil { ... }
//	if err := directory.Register(id, session); err != nil { ... }
//	session.SetCloseHandler(func() { directory.Remove(id) })
//	_ = session.AnnounceEndpoint("/messages?sessionId=" + id)
//	<-session.Done()
//
// The endpoint announcement is the explicit ready-signal: a client must not
// POST before receiving it, and once received the channel is guaranteed
// registered. On the wire, every outbound message is one framed event:
//
//	event: message
//	data: {"jsonrpc":"2.0","id":1,"result":{...}}
//
// with periodic ": keepalive" comment frames while idle.
//
// Each session owns a bounded inbox drained by exactly one pump goroutine,
// so messages for one session dispatch strictly in arrival order while
// different sessions proceed concurrently. ReceiveInbound blocks only on
// inbox admission; outside Ready it drops the message silently, which makes
// the delivery path safe against close races.
//
// # Session directory
//
// SessionDirectory is the process-wide id -> channel map. It is an explicit
// object handed to the HTTP handlers rather than a package singleton, so
// tests run against isolated instances. Resolution failures collapse to a
// single SessionNotFound outcome regardless of cause.
//
// # Stdio
//
// StdioServer carries the same message traffic as newline-delimited JSON
// over a local pipe for clients spawned as child processes. There is no
// session identity and no credential boundary; the caller fixes the subject.
package transport
