package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
)

// maxStdioLineBytes bounds one inbound message; anything larger fails the
// scan rather than exhausting memory.
const maxStdioLineBytes = 1024 * 1024

// StdioServer serves newline-delimited JSON-RPC over a byte pipe, usually
// stdin/stdout. Inbound lines are dispatched serially in arrival order;
// outbound messages are serialized under a write lock with a trailing
// newline and flush.
type StdioServer struct {
	reader io.Reader
	logger logging.Logger

	// writeMu serializes outbound writes.
	writeMu sync.Mutex
	writer  *bufio.Writer

	handlerMu sync.RWMutex
	handler   MessageHandler

	done     chan struct{}
	stopOnce sync.Once
}

// NewStdioServer creates a stdio server from config. Nil reader/writer
// default to os.Stdin/os.Stdout.
func NewStdioServer(config StdioConfig) *StdioServer {
	reader := config.Reader
	if reader == nil {
		reader = os.Stdin
	}
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &StdioServer{
		reader: reader,
		writer: bufio.NewWriter(writer),
		logger: logger.WithFields(logging.String("component", "StdioServer")),
		done:   make(chan struct{}),
	}
}

// SetMessageHandler installs the sink inbound messages are dispatched to.
func (t *StdioServer) SetMessageHandler(handler MessageHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.handler = handler
}

// Run reads messages line by line and dispatches them until EOF, Stop, or
// context cancellation. It returns nil on a clean shutdown.
func (t *StdioServer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	scannerDone := make(chan struct{})

	g.Go(func() error {
		defer close(scannerDone)

		scanner := bufio.NewScanner(t.reader)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStdioLineBytes)

		for scanner.Scan() {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-t.done:
				return nil
			default:
			}

			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			// Copy before the next Scan overwrites the buffer.
			message := make([]byte, len(line))
			copy(message, line)

			t.processMessage(gctx, message)
		}

		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
			// A read error is the expected unblocking mechanism when
			// the reader was closed by Stop or cancellation.
			select {
			case <-t.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			default:
				return mcperrors.Internal("stdio read", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			t.closeReader()
			return gctx.Err()
		case <-t.done:
			t.closeReader()
			return nil
		case <-scannerDone:
			return nil
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Send writes one message followed by a newline and flushes.
func (t *StdioServer) Send(message []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.done:
		return mcperrors.ChannelClosed("send")
	default:
	}

	if _, err := t.writer.Write(message); err != nil {
		return mcperrors.Internal("stdio write", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return mcperrors.Internal("stdio write", err)
	}
	if err := t.writer.Flush(); err != nil {
		return mcperrors.Internal("stdio flush", err)
	}
	return nil
}

// Stop halts the loop and flushes buffered output. Safe to call more than
// once; only the first call has effect.
func (t *StdioServer) Stop() error {
	var flushErr error
	t.stopOnce.Do(func() {
		close(t.done)

		t.writeMu.Lock()
		flushErr = t.writer.Flush()
		t.writeMu.Unlock()
	})
	return flushErr
}

func (t *StdioServer) processMessage(ctx context.Context, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic processing message",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
		}
	}()

	t.handlerMu.RLock()
	handler := t.handler
	t.handlerMu.RUnlock()

	if handler == nil {
		t.logger.Debug("no message handler installed, dropping message")
		return
	}

	response := handler(ctx, message)
	if response == nil {
		return
	}

	if err := t.Send(response); err != nil {
		t.logger.Warn("failed to write response", logging.ErrorField(err))
	}
}

func (t *StdioServer) closeReader() {
	if closer, ok := t.reader.(io.Closer); ok {
		_ = closer.Close()
	}
}
