package server

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
	"github.com/voxmill/transcript-mcp/pkg/pagination"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

// ToolInvoker is the slice of the tool registry the runtime dispatches
// through. *tools.Registry satisfies it.
type ToolInvoker interface {
	List() []protocol.Tool
	Invoke(ctx context.Context, name string, args json.RawMessage) *protocol.CallToolResult
}

// Metrics receives one observation per inbound message plus session
// lifecycle events. observability.MetricsProvider satisfies it; nil disables
// recording.
type Metrics interface {
	RecordInboundMessage(ctx context.Context, method, status string, duration time.Duration)
	RecordSessionEvent(ctx context.Context, event string)
	RecordActiveSessions(ctx context.Context, delta int)
	RecordError(ctx context.Context, kind, method string)
}

// Tracer opens a span around each inbound message.
// observability.TracingProvider satisfies it.
type Tracer interface {
	StartMethodSpan(ctx context.Context, method string, spanKind trace.SpanKind) (context.Context, trace.Span)
	RecordError(ctx context.Context, err error, opts ...trace.EventOption)
}

// RuntimeConfig configures a Runtime.
type RuntimeConfig struct {
	// ServerName and ServerVersion are reported in the initialize result.
	ServerName    string
	ServerVersion string

	// Instructions is an optional usage hint returned to clients on
	// initialize.
	Instructions string

	// ToolPageSize bounds one tools/list page (default
	// pagination.DefaultLimit).
	ToolPageSize int

	Logger  logging.Logger
	Metrics Metrics
	Tracer  Tracer
}

// Runtime is the protocol message router: it decodes one raw JSON-RPC
// message, executes the method, and encodes the response. It holds no
// per-session state, so one Runtime serves every transport concurrently.
// Notifications never produce a response; requests always produce exactly
// one.
type Runtime struct {
	tools        ToolInvoker
	name         string
	version      string
	instructions string
	toolPageSize int

	logger  logging.Logger
	metrics Metrics
	tracer  Tracer
}

// NewRuntime creates a protocol runtime over the given tool registry.
func NewRuntime(tools ToolInvoker, config RuntimeConfig) *Runtime {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	name := config.ServerName
	if name == "" {
		name = "transcript-mcp"
	}
	version := config.ServerVersion
	if version == "" {
		version = "dev"
	}

	pageSize := config.ToolPageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultLimit
	}

	return &Runtime{
		tools:        tools,
		name:         name,
		version:      version,
		instructions: config.Instructions,
		toolPageSize: pageSize,
		logger:       logger.WithFields(logging.String("component", "Runtime")),
		metrics:      config.Metrics,
		tracer:       config.Tracer,
	}
}

// inboundMessage is the envelope probe for one raw message. ID stays
// interface{} so string and numeric request ids round-trip unchanged.
type inboundMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func (m *inboundMessage) isNotification() bool {
	return m.ID == nil
}

// HandleMessage routes one raw JSON-RPC message and returns the serialized
// response, or nil when the message was a notification. It satisfies
// transport.MessageHandler, and it never panics and never returns malformed
// bytes: every failure becomes either a JSON-RPC error response or, for
// tools/call, an isError result envelope.
func (rt *Runtime) HandleMessage(ctx context.Context, raw []byte) []byte {
	started := time.Now()

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		rt.observe(ctx, "parse", "error", started)
		rt.recordError(ctx, mcperrors.CodeParseError, "parse")
		return rt.errorBytes(nil, mcperrors.CreateParseError(err))
	}

	if msg.Method == "" {
		// Inbound responses can only be stale replies to requests this
		// server never sent; drop them rather than answering a response
		// with a response.
		if protocol.IsResponse(raw) {
			rt.logger.Debug("dropping unexpected inbound response")
			return nil
		}
		if msg.isNotification() {
			return nil
		}
		rt.observe(ctx, "invalid", "error", started)
		rt.recordError(ctx, mcperrors.CodeInvalidRequest, "invalid")
		return rt.errorBytes(msg.ID, mcperrors.CreateInvalidRequestError("missing method"))
	}
	if msg.JSONRPC != protocol.JSONRPCVersion {
		if msg.isNotification() {
			return nil
		}
		rt.observe(ctx, msg.Method, "error", started)
		rt.recordError(ctx, mcperrors.CodeInvalidRequest, msg.Method)
		return rt.errorBytes(msg.ID, mcperrors.CreateInvalidRequestError("unsupported jsonrpc version"))
	}

	if rt.tracer != nil {
		var span trace.Span
		ctx, span = rt.tracer.StartMethodSpan(ctx, msg.Method, trace.SpanKindServer)
		defer span.End()
	}

	response := rt.route(ctx, &msg)

	status := "ok"
	if response == nil && !msg.isNotification() {
		// Every request gets exactly one response, even if route drops one.
		response = rt.errorBytes(msg.ID, mcperrors.Internal("routing "+msg.Method, nil))
		status = "error"
	}
	rt.observe(ctx, msg.Method, status, started)
	return response
}

// route executes one well-formed message. Requests come back as exactly one
// response; notifications come back nil.
func (rt *Runtime) route(ctx context.Context, msg *inboundMessage) []byte {
	switch msg.Method {
	case protocol.MethodInitialize:
		if msg.isNotification() {
			return nil
		}
		return rt.handleInitialize(ctx, msg)

	case protocol.MethodInitialized:
		rt.logger.Debug("client reported initialized")
		return nil

	case protocol.MethodPing:
		if msg.isNotification() {
			return nil
		}
		return rt.resultBytes(msg.ID, protocol.PingResult{})

	case protocol.MethodListTools:
		if msg.isNotification() {
			return nil
		}
		return rt.handleListTools(ctx, msg)

	case protocol.MethodCallTool:
		if msg.isNotification() {
			return nil
		}
		return rt.handleCallTool(ctx, msg)

	default:
		if msg.isNotification() {
			rt.logger.Debug("dropping unknown notification",
				logging.String("method", msg.Method))
			return nil
		}
		rt.recordError(ctx, mcperrors.CodeMethodNotFound, msg.Method)
		return rt.errorBytes(msg.ID, mcperrors.CreateMethodNotFoundError(msg.Method))
	}
}

func (rt *Runtime) handleInitialize(ctx context.Context, msg *inboundMessage) []byte {
	var params protocol.InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			rt.recordError(ctx, mcperrors.CodeInvalidParams, msg.Method)
			return rt.errorBytes(msg.ID, mcperrors.CreateInvalidParamsError(msg.Method, err))
		}
	}

	fields := []logging.Field{logging.String("protocol_version", params.ProtocolVersion)}
	if params.ClientInfo != nil {
		fields = append(fields,
			logging.String("client_name", params.ClientInfo.Name),
			logging.String("client_version", params.ClientInfo.Version),
		)
	}
	rt.logger.WithContext(ctx).Info("client initializing", fields...)

	if params.ProtocolVersion != "" && params.ProtocolVersion != protocol.ProtocolRevision {
		rt.logger.Debug("client requested a different protocol revision",
			logging.String("requested", params.ProtocolVersion),
			logging.String("serving", protocol.ProtocolRevision))
	}

	return rt.resultBytes(msg.ID, protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolRevision,
		Capabilities: protocol.ServerCapabilities{
			Tools: &protocol.ToolsCapability{ListChanged: false},
		},
		ServerInfo: protocol.ServerInfo{
			Name:    rt.name,
			Version: rt.version,
		},
		Instructions: rt.instructions,
	})
}

func (rt *Runtime) handleListTools(ctx context.Context, msg *inboundMessage) []byte {
	var params protocol.ListToolsParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			rt.recordError(ctx, mcperrors.CodeInvalidParams, msg.Method)
			return rt.errorBytes(msg.ID, mcperrors.CreateInvalidParamsError(msg.Method, err))
		}
	}

	page, next, err := pagination.Page(rt.tools.List(), params.Cursor, rt.toolPageSize)
	if err != nil {
		rt.recordError(ctx, mcperrors.CodeInvalidCursor, msg.Method)
		return rt.errorBytes(msg.ID, err)
	}
	if page == nil {
		page = []protocol.Tool{}
	}

	return rt.resultBytes(msg.ID, protocol.ListToolsResult{
		Tools:      page,
		NextCursor: next,
	})
}

// handleCallTool dispatches through the registry. The envelope that comes
// back is always a successful JSON-RPC result: tool failures ride inside it
// as isError content, never as protocol errors.
func (rt *Runtime) handleCallTool(ctx context.Context, msg *inboundMessage) []byte {
	var params protocol.CallToolParams
	if len(msg.Params) == 0 {
		rt.recordError(ctx, mcperrors.CodeInvalidParams, msg.Method)
		return rt.errorBytes(msg.ID, mcperrors.CreateInvalidParamsError(msg.Method, nil))
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		rt.recordError(ctx, mcperrors.CodeInvalidParams, msg.Method)
		return rt.errorBytes(msg.ID, mcperrors.CreateInvalidParamsError(msg.Method, err))
	}
	if params.Name == "" {
		rt.recordError(ctx, mcperrors.CodeInvalidParams, msg.Method)
		return rt.errorBytes(msg.ID, mcperrors.CreateInvalidParamsError(msg.Method, nil))
	}

	envelope := rt.tools.Invoke(ctx, params.Name, params.Arguments)
	return rt.resultBytes(msg.ID, envelope)
}

func (rt *Runtime) resultBytes(id interface{}, result interface{}) []byte {
	response, err := protocol.NewResponse(id, result)
	if err != nil {
		return rt.errorBytes(id, mcperrors.Internal("encoding response", err))
	}
	return rt.marshal(response)
}

func (rt *Runtime) errorBytes(id interface{}, err error) []byte {
	response, convErr := mcperrors.ToJSONRPCResponse(err, id)
	if convErr != nil {
		rt.logger.Error("failed to build error response", logging.ErrorField(convErr))
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"Internal error"}}`)
	}
	return rt.marshal(response)
}

func (rt *Runtime) marshal(response *protocol.Response) []byte {
	data, err := json.Marshal(response)
	if err != nil {
		rt.logger.Error("failed to marshal response", logging.ErrorField(err))
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"Internal error"}}`)
	}
	return data
}

func (rt *Runtime) observe(ctx context.Context, method, status string, started time.Time) {
	if rt.metrics != nil {
		rt.metrics.RecordInboundMessage(ctx, method, status, time.Since(started))
	}
}

func (rt *Runtime) recordError(ctx context.Context, code int, method string) {
	if rt.metrics != nil {
		rt.metrics.RecordError(ctx, mcperrors.GetErrorCodeName(code), method)
	}
}
