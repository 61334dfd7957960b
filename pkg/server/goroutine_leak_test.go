package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voxmill/transcript-mcp/pkg/utils"
)

// drain consumes and closes a response body so the underlying connection can
// return to the idle pool. A body left unread until t.Cleanup pins its
// connection's read/write goroutines past the leak check.
func drain(t *testing.T, resp *http.Response) {
	t.Helper()
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// TestServerGoroutineLeak opens and closes channels and drives every route,
// then verifies the process goroutine count returns to its baseline.
func TestServerGoroutineLeak(t *testing.T) {
	detector := utils.NewGoroutineLeakDetector(t).
		SetAllowedGrowth(2). // httptest keeps an idle conn around
		SetStabilizeDelay(300 * time.Millisecond)
	detector.Start()

	srv := New(Config{
		Name:    "leak-test",
		Version: "0.0.1",
		Tools:   testRegistry(t),
	})
	ts := httptest.NewServer(srv.Handler())

	// Channels: open, exercise, disconnect. Each open spawns a pump and a
	// keep-alive goroutine that must both exit with the connection.
	for i := 0; i < 5; i++ {
		stream := openChannel(t, ts, nil)

		resp := post(t, ts, stream.endpoint, nil, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
		drain(t, resp)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("hand-off failed with %d", resp.StatusCode)
		}
		stream.next(t, 2*time.Second)
		stream.cancel()
	}

	// Stateless mode allocates nothing per call that outlives the request.
	for i := 0; i < 5; i++ {
		resp := post(t, ts, "/mcp", nil, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
		drain(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unified transport failed with %d", resp.StatusCode)
		}
	}

	waitFor(t, func() bool { return srv.directory.Len() == 0 }, "all sessions removed")

	ts.Client().CloseIdleConnections()
	ts.Close()
	detector.Check()
}

// TestRunGoroutineLeak runs the full lifecycle, including graceful shutdown
// with an open channel, and verifies nothing is left behind.
func TestRunGoroutineLeak(t *testing.T) {
	detector := utils.NewGoroutineLeakDetector(t).
		SetAllowedGrowth(2).
		SetStabilizeDelay(300 * time.Millisecond)
	detector.Start()

	srv := New(Config{
		Addr:  "127.0.0.1:0",
		Tools: testRegistry(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	waitFor(t, func() bool { return srv.BoundAddr() != "" }, "server to bind")

	// Leave a channel open across shutdown; the drain must close it.
	resp, err := http.Get("http://" + srv.BoundAddr() + "/sse")
	if err != nil {
		t.Fatalf("open channel failed: %v", err)
	}
	buf := make([]byte, 256)
	if _, err := resp.Body.Read(buf); err != nil || !strings.Contains(string(buf), "endpoint") {
		t.Fatalf("endpoint event not received: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	resp.Body.Close()

	detector.Check()
}
