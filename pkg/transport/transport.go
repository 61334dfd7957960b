package transport

import (
	"context"
	"io"
	"time"

	"github.com/voxmill/transcript-mcp/pkg/logging"
)

// MessageHandler consumes one raw JSON-RPC message and returns the serialized
// response to deliver on the same channel, or nil when the message was a
// notification and no response is due.
type MessageHandler func(ctx context.Context, message []byte) []byte

// Session is the directory-facing surface of a connected channel. The HTTP
// delivery path resolves a Session by id and hands inbound messages to it
// without knowing the concrete transport behind it.
type Session interface {
	// ID returns the session's opaque identifier.
	ID() string

	// Send frames one protocol message and writes it to the channel.
	Send(message []byte) error

	// ReceiveInbound hands one inbound message to the session. It blocks
	// only on inbox admission.
	ReceiveInbound(ctx context.Context, message []byte) error

	// Close releases the channel. Idempotent.
	Close() error
}

const (
	// DefaultInboxSize bounds the per-session inbound queue. Admission
	// blocks once the pump falls this far behind.
	DefaultInboxSize = 32

	// DefaultKeepAliveInterval is how often a comment frame is written on
	// an idle SSE channel so intermediaries do not reap it.
	DefaultKeepAliveInterval = 30 * time.Second
)

// SSEConfig configures an SSESession.
type SSEConfig struct {
	// InboxSize bounds the inbound message queue (default DefaultInboxSize).
	InboxSize int

	// KeepAliveInterval sets the comment-frame cadence (default
	// DefaultKeepAliveInterval).
	KeepAliveInterval time.Duration

	// Logger receives channel lifecycle events. Defaults to the global
	// logger.
	Logger logging.Logger
}

// DefaultSSEConfig returns an SSEConfig with production defaults.
func DefaultSSEConfig() SSEConfig {
	return SSEConfig{
		InboxSize:         DefaultInboxSize,
		KeepAliveInterval: DefaultKeepAliveInterval,
	}
}

// StdioConfig configures a StdioServer.
type StdioConfig struct {
	// Reader supplies inbound messages (default os.Stdin). Custom readers
	// are used in tests.
	Reader io.Reader

	// Writer receives outbound messages (default os.Stdout).
	Writer io.Writer

	// Logger receives loop lifecycle events. Defaults to the global logger.
	Logger logging.Logger
}
