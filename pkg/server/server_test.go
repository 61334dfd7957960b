package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmill/transcript-mcp/pkg/transport"
)

// startServer runs srv on an ephemeral port and returns its base URL. The
// returned cancel stops the server; the test fails if Run errors.
func startServer(t *testing.T, srv *Server) (string, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	waitFor(t, func() bool { return srv.BoundAddr() != "" }, "server to bind")

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return "http://" + srv.BoundAddr(), cancel
}

func TestServerRunServesAndStops(t *testing.T) {
	srv := New(Config{
		Name:    "test-server",
		Version: "0.0.1",
		Addr:    "127.0.0.1:0",
		Tools:   testRegistry(t),
	})
	baseURL, _ := startServer(t, srv)

	resp, err := http.Get(baseURL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerShutdownClosesOpenChannels(t *testing.T) {
	srv := New(Config{
		Addr:  "127.0.0.1:0",
		Tools: testRegistry(t),
	})
	baseURL, cancel := startServer(t, srv)

	resp, err := http.Get(baseURL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "event: endpoint")

	waitFor(t, func() bool { return srv.directory.Len() == 1 }, "session registered")

	// Shutdown must close the channel rather than hang on the open stream.
	cancel()

	readDone := make(chan error, 1)
	go func() {
		for {
			if _, err := reader.ReadString('\n'); err != nil {
				readDone <- err
				return
			}
		}
	}()
	select {
	case err := <-readDone:
		assert.Error(t, err, "stream should end when the server drains")
	case <-time.After(5 * time.Second):
		t.Fatal("channel stream still open after shutdown")
	}

	assert.Equal(t, 0, srv.directory.Len())
}

func TestServerRunListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	srv := New(Config{
		Addr:  occupied.Addr().String(),
		Tools: testRegistry(t),
	})
	assert.Error(t, srv.Run(context.Background()))
}

func TestServeStdio(t *testing.T) {
	srv := New(Config{
		Name:    "test-server",
		Version: "0.0.1",
		Tools:   testRegistry(t),
	})

	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- srv.ServeStdio(context.Background(), transport.StdioConfig{
			Reader: stdinReader,
			Writer: stdoutWriter,
		})
	}()

	scanner := bufio.NewScanner(stdoutReader)

	_, err := stdinWriter.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"))
	require.NoError(t, err)
	require.True(t, scanner.Scan(), "expected a ping response line")
	assert.Contains(t, scanner.Text(), `"id":1`)
	assert.Contains(t, scanner.Text(), `"result"`)

	_, err = stdinWriter.Write([]byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_transcript","arguments":{}}}` + "\n"))
	require.NoError(t, err)
	require.True(t, scanner.Scan(), "expected a tool response line")
	assert.Contains(t, scanner.Text(), "transcript text")

	// Notifications produce no output line; the next response must belong to
	// the request after the notification.
	_, err = stdinWriter.Write([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n"))
	require.NoError(t, err)
	_, err = stdinWriter.Write([]byte(`{"jsonrpc":"2.0","id":3,"method":"ping"}` + "\n"))
	require.NoError(t, err)
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), `"id":3`)

	require.NoError(t, stdinWriter.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio loop did not exit on EOF")
	}
}

func TestServeStdioCancel(t *testing.T) {
	srv := New(Config{Tools: testRegistry(t)})

	stdinReader, stdinWriter := io.Pipe()
	defer stdinWriter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.ServeStdio(ctx, transport.StdioConfig{
			Reader: stdinReader,
			Writer: io.Discard,
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("stdio loop did not exit on cancellation")
	}
}

func TestServerDefaults(t *testing.T) {
	srv := New(Config{Tools: testRegistry(t)})

	assert.Equal(t, DefaultAddr, srv.addr)
	assert.Equal(t, DefaultShutdownTimeout, srv.shutdownTimeout)
	assert.Equal(t, DefaultReadHeaderTimeout, srv.readHeaderTimeout)
	assert.Empty(t, srv.BoundAddr())
	assert.NotNil(t, srv.Runtime())
	assert.NotNil(t, srv.Handler())
}
