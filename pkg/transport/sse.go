package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
)

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateReady
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateReady:
		return "ready"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SSESession is one persistent duplex channel: outbound frames travel on a
// Server-Sent-Events response stream, inbound messages arrive out-of-band via
// ReceiveInbound and are dispatched serially by a single pump goroutine.
//
// Lifecycle: Uninitialized -> Ready (sink attached) -> Closed. Send and
// AnnounceEndpoint are legal only in Ready; Close is idempotent.
type SSESession struct {
	id     string
	config SSEConfig
	logger logging.Logger

	stateMu      sync.RWMutex
	state        sessionState
	writer       http.ResponseWriter
	flusher      http.Flusher
	handler      MessageHandler
	closeHandler func()
	started      bool

	// writeMu serializes frames so concurrent Sends reach the wire whole
	// and in invocation order.
	writeMu sync.Mutex

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSSESession creates a session in the Uninitialized state.
func NewSSESession(id string, config SSEConfig) *SSESession {
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultInboxSize
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = DefaultKeepAliveInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &SSESession{
		id:     id,
		config: config,
		logger: logger.WithFields(
			logging.String("component", "SSESession"),
			logging.String("session_id", id),
		),
		inbox: make(chan []byte, config.InboxSize),
		done:  make(chan struct{}),
	}
}

// ID returns the session's opaque identifier.
func (s *SSESession) ID() string {
	return s.id
}

// Done is closed when the session closes. The connection handler blocks on
// it to keep the response stream open.
func (s *SSESession) Done() <-chan struct{} {
	return s.done
}

// Attach binds the HTTP response stream as the session's outbound sink and
// moves the session to Ready. The writer must support flushing so frames
// reach the client without buffering delays.
func (s *SSESession) Attach(w http.ResponseWriter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return mcperrors.Internal("attach", errors.New("response writer does not support streaming"))
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	switch s.state {
	case stateClosed:
		return mcperrors.ChannelClosed("attach")
	case stateReady:
		return mcperrors.Internal("attach", errors.New("sink already attached"))
	}

	s.writer = w
	s.flusher = flusher
	s.state = stateReady
	return nil
}

// SetMessageHandler installs the sink the pump forwards inbound messages to.
// With no handler installed, inbound messages are dropped.
func (s *SSESession) SetMessageHandler(handler MessageHandler) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.handler = handler
}

// SetCloseHandler installs a hook invoked exactly once when the session
// closes. The connection path uses it to drop the session from the directory.
func (s *SSESession) SetCloseHandler(handler func()) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.closeHandler = handler
}

// Start spawns the inbound pump and the keep-alive ticker. It fails
// NotInitialized if no sink has been attached yet, and must be called at
// most once.
func (s *SSESession) Start(ctx context.Context) error {
	s.stateMu.Lock()

	switch {
	case s.state == stateClosed:
		s.stateMu.Unlock()
		return mcperrors.ChannelClosed("start")
	case s.state != stateReady:
		s.stateMu.Unlock()
		return mcperrors.NotInitialized("start")
	case s.started:
		s.stateMu.Unlock()
		return mcperrors.Internal("start", errors.New("session already started"))
	}
	s.started = true
	s.stateMu.Unlock()

	// A dispatched call runs to completion even when the connection tears
	// down mid-flight, so the dispatch context must not inherit the
	// request's cancellation. Per-call deadlines are applied downstream.
	dispatchCtx := context.WithoutCancel(ctx)

	go s.pump(ctx, dispatchCtx)
	go s.keepAlive(ctx)

	s.logger.Debug("session started")
	return nil
}

// Send frames one protocol message as an SSE "message" event.
func (s *SSESession) Send(message []byte) error {
	return s.writeEvent("send", "message", message)
}

// AnnounceEndpoint tells the client where to POST messages for this session.
// It is the explicit ready-signal: the client must not send before it.
func (s *SSESession) AnnounceEndpoint(address string) error {
	return s.writeEvent("announce_endpoint", "endpoint", []byte(address))
}

// ReceiveInbound hands one inbound message to the session's inbox. It blocks
// only on inbox admission; the pump dispatches to completion before taking
// the next message. Outside Ready the message is silently dropped.
func (s *SSESession) ReceiveInbound(ctx context.Context, message []byte) error {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()

	if state != stateReady {
		s.logger.Debug("dropping inbound message outside ready state",
			logging.String("state", state.String()))
		return nil
	}

	select {
	case s.inbox <- message:
		return nil
	case <-s.done:
		s.logger.Debug("dropping inbound message, channel closed during hand-off")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the channel. Safe to call from any goroutine, any number of
// times; only the first call has effect.
func (s *SSESession) Close() error {
	s.closeOnce.Do(func() {
		s.stateMu.Lock()
		s.state = stateClosed
		closeHandler := s.closeHandler
		s.stateMu.Unlock()

		close(s.done)

		if closeHandler != nil {
			closeHandler()
		}
		s.logger.Debug("session closed")
	})
	return nil
}

// pump drains the inbox one message at a time, so dispatch for a session is
// strictly serialized. Different sessions pump concurrently.
func (s *SSESession) pump(ctx context.Context, dispatchCtx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case message := <-s.inbox:
			s.dispatch(dispatchCtx, message)
		}
	}
}

func (s *SSESession) dispatch(ctx context.Context, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic dispatching inbound message",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
		}
	}()

	s.stateMu.RLock()
	handler := s.handler
	s.stateMu.RUnlock()

	if handler == nil {
		s.logger.Debug("no message handler installed, dropping inbound message")
		return
	}

	response := handler(ctx, message)
	if response == nil {
		return
	}

	if err := s.Send(response); err != nil {
		s.logger.Warn("failed to deliver response on channel",
			logging.ErrorField(err))
	}
}

// keepAlive writes comment frames on a ticker while the session is live so
// proxies and load balancers do not reap the idle connection.
func (s *SSESession) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.writeComment("keepalive"); err != nil {
				return
			}
		}
	}
}

// writeEvent frames and writes one SSE event under the write lock. Multi-line
// data is split across data: lines per the SSE wire format.
func (s *SSESession) writeEvent(operation, event string, data []byte) error {
	var frame bytes.Buffer
	frame.WriteString("event: ")
	frame.WriteString(event)
	frame.WriteByte('\n')
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		frame.WriteString("data: ")
		frame.Write(line)
		frame.WriteByte('\n')
	}
	frame.WriteByte('\n')

	return s.writeFrame(operation, frame.Bytes())
}

func (s *SSESession) writeComment(text string) error {
	return s.writeFrame("keepalive", []byte(": "+text+"\n\n"))
}

func (s *SSESession) writeFrame(operation string, frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.stateMu.RLock()
	state := s.state
	writer := s.writer
	flusher := s.flusher
	s.stateMu.RUnlock()

	switch state {
	case stateClosed:
		return mcperrors.ChannelClosed(operation)
	case stateUninitialized:
		return mcperrors.NotInitialized(operation)
	}

	if _, err := writer.Write(frame); err != nil {
		// A dead connection means the channel is gone; tear it down so
		// the directory entry and pump are released.
		_ = s.Close()
		return mcperrors.WrapError(err, mcperrors.CodeChannelClosed,
			"write to event stream failed",
			mcperrors.CategoryTransport, mcperrors.SeverityWarning)
	}
	flusher.Flush()
	return nil
}
