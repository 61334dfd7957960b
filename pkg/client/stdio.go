package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// NewStdio creates a client over a newline-delimited JSON-RPC byte pipe,
// the counterpart of the server's stdio mode. The reader carries server
// output and the writer carries client input; both usually belong to a
// spawned subprocess. BaseURL, Token, and the path fields of Config are
// ignored in this mode.
//
// The client owns neither end of the pipe; closing the underlying streams
// is the caller's job. Close still fails in-flight calls.
func NewStdio(reader io.Reader, writer io.Writer, config Config) *Client {
	c := newClient(config)
	c.mode = modePipe
	c.pipeWriter = bufio.NewWriter(writer)
	c.write = c.writePipe

	go c.readPipe(reader)
	return c
}

// writePipe sends one message as a single line. The trailing newline is the
// message delimiter, so payloads must not contain raw newlines; JSON
// encoding guarantees that.
func (c *Client) writePipe(ctx context.Context, payload []byte) error {
	c.pipeMu.Lock()
	defer c.pipeMu.Unlock()

	if _, err := c.pipeWriter.Write(payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := c.pipeWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("write delimiter: %w", err)
	}
	return c.pipeWriter.Flush()
}

// readPipe scans server output line by line until EOF, dispatching each
// message to its waiting call.
func (c *Client) readPipe(reader io.Reader) {
	defer c.failPending()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPayloadBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		payload := make([]byte, len(line))
		copy(payload, line)
		c.dispatch(payload)
	}
}
