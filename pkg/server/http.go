package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voxmill/transcript-mcp/pkg/auth"
	"github.com/voxmill/transcript-mcp/pkg/logging"
	"github.com/voxmill/transcript-mcp/pkg/transport"
)

const (
	// DefaultSSEPath is where persistent channels are opened.
	DefaultSSEPath = "/sse"
	// DefaultMessagesPath is where stateless deliveries for open channels land.
	DefaultMessagesPath = "/messages"
	// DefaultMCPPath is the unified request/response transport.
	DefaultMCPPath = "/mcp"

	// DefaultMaxBodyBytes caps one inbound protocol message.
	DefaultMaxBodyBytes = 4 << 20
)

// Pinger reports backing-store liveness for the health endpoint. *store.Store
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	SSEPath      string
	MessagesPath string
	MCPPath      string

	// MaxBodyBytes caps one inbound message body (default
	// DefaultMaxBodyBytes).
	MaxBodyBytes int64

	// SSE configures every channel opened through this handler.
	SSE transport.SSEConfig

	// Authenticator guards the protocol routes. Defaults to
	// auth.AllowAllAuthenticator.
	Authenticator auth.Authenticator

	// Pinger backs /healthz; nil means liveness-only.
	Pinger Pinger

	Logger  logging.Logger
	Metrics Metrics
}

// HTTPHandler exposes the protocol runtime over HTTP: a persistent SSE
// channel per session plus the stateless delivery and unified-transport
// routes. It owns the session directory for the channels it opens.
type HTTPHandler struct {
	runtime   *Runtime
	directory *transport.SessionDirectory
	router    chi.Router

	ssePath      string
	messagesPath string
	mcpPath      string
	maxBodyBytes int64
	sse          transport.SSEConfig
	pinger       Pinger

	logger  logging.Logger
	metrics Metrics
}

// NewHTTPHandler builds the HTTP surface over a protocol runtime.
func NewHTTPHandler(runtime *Runtime, directory *transport.SessionDirectory, config HTTPConfig) *HTTPHandler {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	authenticator := config.Authenticator
	if authenticator == nil {
		authenticator = auth.NewAllowAllAuthenticator("")
	}

	h := &HTTPHandler{
		runtime:      runtime,
		directory:    directory,
		ssePath:      config.SSEPath,
		messagesPath: config.MessagesPath,
		mcpPath:      config.MCPPath,
		maxBodyBytes: config.MaxBodyBytes,
		sse:          config.SSE,
		pinger:       config.Pinger,
		logger:       logger.WithFields(logging.String("component", "HTTPHandler")),
		metrics:      config.Metrics,
	}
	if h.ssePath == "" {
		h.ssePath = DefaultSSEPath
	}
	if h.messagesPath == "" {
		h.messagesPath = DefaultMessagesPath
	}
	if h.mcpPath == "" {
		h.mcpPath = DefaultMCPPath
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = DefaultMaxBodyBytes
	}
	if h.sse.Logger == nil {
		h.sse.Logger = logger
	}

	router := chi.NewRouter()
	router.Use(logging.HTTPMiddleware(logger))
	router.Get("/healthz", h.handleHealthz)
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authenticator))
		r.Get(h.ssePath, h.handleSSE)
		r.Post(h.messagesPath, h.handleMessages)
		r.Post(h.mcpPath, h.handleMCP)
	})
	h.router = router

	return h
}

// ServeHTTP implements http.Handler.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Directory exposes the session directory, so the server lifecycle can close
// open channels on shutdown.
func (h *HTTPHandler) Directory() *transport.SessionDirectory {
	return h.directory
}

// sseChannel pairs a session transport with the subject that opened it, so
// stateless deliveries can be fenced to the channel owner.
type sseChannel struct {
	*transport.SSESession
	subject string
}

// handleSSE opens one persistent channel: it attaches the response stream as
// the session sink, registers the session, announces the delivery endpoint,
// and then holds the connection until either side goes away. The endpoint
// event is written only after the session is registered and started, so a
// client that POSTs immediately after seeing it can never race the directory.
func (h *HTTPHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	id, err := transport.GenerateSessionID()
	if err != nil {
		h.logger.Error("failed to generate session id", logging.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	subject, _ := auth.SubjectFromContext(r.Context())
	ctx := logging.ContextWithSessionID(r.Context(), id)
	logger := h.logger.WithContext(ctx)

	session := transport.NewSSESession(id, h.sse)
	if err := session.Attach(w); err != nil {
		logger.Error("failed to attach response stream", logging.ErrorField(err))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	channel := &sseChannel{SSESession: session, subject: subject}
	if err := h.directory.Register(id, channel); err != nil {
		logger.Error("failed to register session", logging.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	session.SetCloseHandler(func() {
		h.directory.Remove(id)
		if h.metrics != nil {
			h.metrics.RecordSessionEvent(ctx, "closed")
			h.metrics.RecordActiveSessions(ctx, -1)
		}
	})
	session.SetMessageHandler(h.runtime.HandleMessage)

	// The gauge must go up before anything that can fire the close handler
	// (a failed Start, announce, or stream write all Close the session), or
	// the paired -1 would drive it negative.
	if h.metrics != nil {
		h.metrics.RecordSessionEvent(ctx, "opened")
		h.metrics.RecordActiveSessions(ctx, 1)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := session.Start(ctx); err != nil {
		logger.Error("failed to start session", logging.ErrorField(err))
		_ = session.Close()
		return
	}
	if err := session.AnnounceEndpoint(h.messagesPath + "?sessionId=" + id); err != nil {
		logger.Error("failed to announce endpoint", logging.ErrorField(err))
		_ = session.Close()
		return
	}

	logger.Info("session channel open", logging.String("subject", subject))

	select {
	case <-r.Context().Done():
	case <-session.Done():
	}
	_ = session.Close()
	logger.Debug("session channel handler returning")
}

// handleMessages accepts one protocol message for an open channel. The
// message is handed to the session inbox and acknowledged with 202; the
// response, if any, arrives over the channel stream. A session owned by a
// different subject resolves exactly like an unknown one.
func (h *HTTPHandler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Missing sessionId parameter", http.StatusBadRequest)
		return
	}

	session, err := h.directory.Resolve(sessionID)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if channel, ok := session.(*sseChannel); ok {
		subject, _ := auth.SubjectFromContext(r.Context())
		if channel.subject != subject {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "Empty request body", http.StatusBadRequest)
		return
	}

	ctx := logging.ContextWithSessionID(r.Context(), sessionID)
	if err := session.ReceiveInbound(ctx, body); err != nil {
		h.logger.WithContext(ctx).Error("failed to hand off message", logging.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleMCP is the unified stateless transport: one JSON-RPC message in, its
// response straight back in the body. Notifications acknowledge with 202 and
// no body.
func (h *HTTPHandler) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "Empty request body", http.StatusBadRequest)
		return
	}

	response := h.runtime.HandleMessage(r.Context(), body)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(response); err != nil {
		h.logger.WithContext(r.Context()).Error("failed to write response",
			logging.ErrorField(err))
	}
}

// handleHealthz reports liveness, including store reachability when a pinger
// is wired.
func (h *HTTPHandler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Error("health check failed", logging.ErrorField(err))
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
