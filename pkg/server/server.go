package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxmill/transcript-mcp/pkg/auth"
	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
	"github.com/voxmill/transcript-mcp/pkg/transport"
)

const (
	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = ":8080"

	// DefaultShutdownTimeout bounds the graceful drain on shutdown.
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultReadHeaderTimeout bounds how long a client may take to send
	// request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Config configures a Server.
type Config struct {
	// Name and Version identify this server to clients on initialize.
	Name    string
	Version string

	// Instructions is an optional usage hint returned on initialize.
	Instructions string

	// Addr is the HTTP listen address (default DefaultAddr).
	Addr string

	// ReadHeaderTimeout and ShutdownTimeout bound connection setup and
	// graceful drain.
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// HTTP configures routes, body limits, channel settings, and auth.
	HTTP HTTPConfig

	// Tools is the registry requests dispatch through. Required.
	Tools ToolInvoker

	Logger  logging.Logger
	Metrics Metrics
	Tracer  Tracer
}

// Server ties the protocol runtime, the session directory, and the HTTP
// surface into one runnable unit with graceful shutdown. The same runtime
// also serves the stdio transport.
type Server struct {
	runtime   *Runtime
	handler   *HTTPHandler
	directory *transport.SessionDirectory

	addr              string
	boundAddr         atomic.Value
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration

	logger logging.Logger
}

// New assembles a server from config.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	runtime := NewRuntime(config.Tools, RuntimeConfig{
		ServerName:    config.Name,
		ServerVersion: config.Version,
		Instructions:  config.Instructions,
		Logger:        logger,
		Metrics:       config.Metrics,
		Tracer:        config.Tracer,
	})

	httpConfig := config.HTTP
	if httpConfig.Logger == nil {
		httpConfig.Logger = logger
	}
	if httpConfig.Metrics == nil {
		httpConfig.Metrics = config.Metrics
	}

	directory := transport.NewSessionDirectory()
	handler := NewHTTPHandler(runtime, directory, httpConfig)

	s := &Server{
		runtime:           runtime,
		handler:           handler,
		directory:         directory,
		addr:              config.Addr,
		readHeaderTimeout: config.ReadHeaderTimeout,
		shutdownTimeout:   config.ShutdownTimeout,
		logger:            logger.WithFields(logging.String("component", "Server")),
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.readHeaderTimeout <= 0 {
		s.readHeaderTimeout = DefaultReadHeaderTimeout
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}

	return s
}

// Handler returns the HTTP surface, so tests and embedders can mount it on
// their own listeners.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Runtime returns the protocol runtime shared by every transport.
func (s *Server) Runtime() *Runtime {
	return s.runtime
}

// BoundAddr returns the address Run actually bound, which differs from the
// configured one when it uses port 0. Empty until Run has the listener.
func (s *Server) BoundAddr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

// Run serves HTTP until the context is canceled, then drains gracefully:
// open channels are closed first so their handlers return, and in-flight
// plain requests get the shutdown timeout to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return mcperrors.Internal("listen", err)
	}
	s.boundAddr.Store(listener.Addr().String())

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", logging.String("addr", listener.Addr().String()))
		if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down",
			logging.Int("open_sessions", s.directory.Len()))

		// Open SSE streams block their handlers, so Shutdown alone would
		// hang until the client hangs up. Close the channels first.
		for _, session := range s.directory.Snapshot() {
			_ = session.Close()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeStdio serves the runtime over newline-delimited JSON-RPC on the given
// pipe until EOF or context cancellation. The subject identity is fixed: a
// pipe has no credential boundary.
func (s *Server) ServeStdio(ctx context.Context, config transport.StdioConfig) error {
	if config.Logger == nil {
		config.Logger = s.logger
	}

	stdio := transport.NewStdioServer(config)
	stdio.SetMessageHandler(s.runtime.HandleMessage)

	ctx = auth.ContextWithSubject(ctx, "local")
	s.logger.Info("serving stdio")

	err := stdio.Run(ctx)
	if stopErr := stdio.Stop(); err == nil {
		err = stopErr
	}
	return err
}
