package transport

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/voxmill/transcript-mcp/pkg/utils"
)

// TestSSESessionGoroutineLeak verifies that pump and keep-alive goroutines
// exit when sessions close.
func TestSSESessionGoroutineLeak(t *testing.T) {
	detector := utils.NewGoroutineLeakDetector(t).
		SetAllowedGrowth(2).
		SetStabilizeDelay(300 * time.Millisecond)
	detector.Start()

	directory := NewSessionDirectory()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("mcp_session_leak_%d", i)
		session := NewSSESession(id, DefaultSSEConfig())
		sink := newTestSink()

		if err := session.Attach(sink); err != nil {
			t.Fatalf("Attach failed: %v", err)
		}
		if err := session.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if err := directory.Register(id, session); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		session.SetCloseHandler(func() { directory.Remove(id) })

		if err := session.Send([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		_ = session.Close()
	}

	if directory.Len() != 0 {
		t.Errorf("directory not drained, %d sessions left", directory.Len())
	}

	detector.Check()
}

// TestStdioServerGoroutineLeak verifies that the read loop goroutines exit
// on Stop.
func TestStdioServerGoroutineLeak(t *testing.T) {
	detector := utils.NewGoroutineLeakDetector(t).
		SetAllowedGrowth(2).
		SetStabilizeDelay(300 * time.Millisecond)
	detector.Start()

	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	defer inWriter.Close()
	defer outReader.Close()

	server := NewStdioServer(StdioConfig{Reader: inReader, Writer: outWriter})

	done := make(chan error, 1)
	go func() {
		done <- server.Run(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	if err := server.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Run did not return after Stop")
	}

	detector.Check()
}

// TestSSESessionStartCloseCycles exercises repeated open/close cycles.
func TestSSESessionStartCloseCycles(t *testing.T) {
	detector := utils.NewGoroutineLeakDetector(t).
		SetAllowedGrowth(3).
		SetStabilizeDelay(500 * time.Millisecond)
	detector.Start()

	for cycle := 0; cycle < 3; cycle++ {
		ctx, cancel := context.WithCancel(context.Background())

		session := NewSSESession(fmt.Sprintf("mcp_session_cycle_%d", cycle), SSEConfig{
			KeepAliveInterval: 10 * time.Millisecond,
		})
		sink := newTestSink()

		if err := session.Attach(sink); err != nil {
			t.Fatalf("cycle %d: Attach failed: %v", cycle, err)
		}
		if err := session.Start(ctx); err != nil {
			t.Fatalf("cycle %d: Start failed: %v", cycle, err)
		}

		time.Sleep(50 * time.Millisecond)

		// Alternate teardown paths: explicit Close and context cancel.
		if cycle%2 == 0 {
			_ = session.Close()
		}
		cancel()
	}

	detector.Check()
}
