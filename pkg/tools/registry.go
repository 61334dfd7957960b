// Package tools implements the tool registry and dispatch boundary. Tools
// are registered once at startup with a JSON Schema descriptor and a typed
// handler; Invoke is a total function that turns every outcome, including
// argument violations and handler panics, into a protocol result envelope.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

// DefaultCallTimeout bounds a single tool invocation, downstream retries
// included.
const DefaultCallTimeout = 2 * time.Minute

// Handler executes one tool call on raw JSON arguments. Handlers registered
// through RegisterTyped never see this signature; the registry decodes and
// validates for them.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Metrics receives one observation per invocation.
type Metrics interface {
	RecordToolCall(ctx context.Context, tool, status string, duration time.Duration)
}

// Tracer opens a span around each invocation and records failures on it.
type Tracer interface {
	StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span)
	RecordError(ctx context.Context, err error, opts ...trace.EventOption)
}

// Config configures a Registry. All fields are optional.
type Config struct {
	// CallTimeout bounds each invocation. Zero selects DefaultCallTimeout,
	// negative disables the bound.
	CallTimeout time.Duration

	Logger  logging.Logger
	Metrics Metrics
	Tracer  Tracer
}

// Registry holds the registered tools and dispatches calls to them.
// Registration happens during startup; Invoke may then be called from any
// number of goroutines.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry

	callTimeout time.Duration
	logger      logging.Logger
	metrics     Metrics
	tracer      Tracer
}

type entry struct {
	tool    protocol.Tool
	handler Handler
}

// NewRegistry creates an empty registry.
func NewRegistry(config Config) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	timeout := config.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}

	return &Registry{
		entries:     make(map[string]*entry),
		callTimeout: timeout,
		logger:      logger.WithFields(logging.String("component", "ToolRegistry")),
		metrics:     config.Metrics,
		tracer:      config.Tracer,
	}
}

// Register adds a tool under its descriptor name. Names are unique; a
// second registration under the same name is a startup error.
func (r *Registry) Register(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return mcperrors.ServerInitError("tool descriptor has no name", nil)
	}
	if handler == nil {
		return mcperrors.ServerInitError(fmt.Sprintf("tool %q has no handler", tool.Name), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		return mcperrors.ServerInitError(fmt.Sprintf("tool %q already registered", tool.Name), nil)
	}

	r.entries[tool.Name] = &entry{tool: tool, handler: handler}
	r.order = append(r.order, tool.Name)
	return nil
}

// List returns every registered descriptor in registration order.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke runs the named tool and always returns a well-formed envelope.
// Unknown names, argument violations, handler errors, and panics all come
// back as isError envelopes, never as Go errors; callers deliver the result
// through the transport's normal success path.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) *protocol.CallToolResult {
	started := time.Now()

	e, ok := r.lookup(name)
	if !ok {
		r.logger.Warn("Unknown tool invoked", logging.String("tool", name))
		r.observe(ctx, name, "unknown_tool", started)
		return FailureResult(mcperrors.UnknownTool(name))
	}

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.StartToolSpan(ctx, name)
		defer span.End()
	}

	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	outcome, err := r.run(ctx, e, args)
	if err != nil {
		mcpErr := mcperrors.ConvertStandardError(err)
		r.logger.Warn("Tool call failed",
			logging.String("tool", name),
			logging.Int("code", mcpErr.Code()),
			logging.ErrorField(mcpErr),
		)
		if r.tracer != nil {
			r.tracer.RecordError(ctx, mcpErr)
		}
		r.observe(ctx, name, "error", started)
		return FailureResult(mcpErr)
	}

	result := SuccessResult(outcome)
	status := "ok"
	if result.IsError {
		status = "error"
	}
	r.observe(ctx, name, status, started)
	r.logger.Debug("Tool call completed",
		logging.String("tool", name),
		logging.Duration("duration", time.Since(started)),
	)
	return result
}

// run executes the handler, converting a panic into an Internal error so a
// misbehaving tool cannot tear down the session that called it.
func (r *Registry) run(ctx context.Context, e *entry, args json.RawMessage) (outcome interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool handler panicked",
				logging.String("tool", e.tool.Name),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			outcome = nil
			err = mcperrors.Internal(fmt.Sprintf("tool %s", e.tool.Name), fmt.Errorf("panic: %v", rec))
		}
	}()

	return e.handler(ctx, args)
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

func (r *Registry) observe(ctx context.Context, tool, status string, started time.Time) {
	if r.metrics != nil {
		r.metrics.RecordToolCall(ctx, tool, status, time.Since(started))
	}
}
