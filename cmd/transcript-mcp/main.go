// Command transcript-mcp serves the transcript tool set over MCP. The
// default mode listens for SSE channels and stateless POSTs on one HTTP
// address; -stdio serves a single session over stdin/stdout instead, for
// clients that spawn the server as a subprocess.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxmill/transcript-mcp/pkg/auth"
	"github.com/voxmill/transcript-mcp/pkg/config"
	"github.com/voxmill/transcript-mcp/pkg/logging"
	"github.com/voxmill/transcript-mcp/pkg/observability"
	"github.com/voxmill/transcript-mcp/pkg/server"
	"github.com/voxmill/transcript-mcp/pkg/store"
	"github.com/voxmill/transcript-mcp/pkg/tools"
	"github.com/voxmill/transcript-mcp/pkg/transcript"
	"github.com/voxmill/transcript-mcp/pkg/transport"
)

// version is stamped by the release build via -ldflags "-X main.version=".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	stdio := flag.Bool("stdio", false, "serve one session over stdin/stdout instead of HTTP")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := run(*configPath, *stdio); err != nil {
		fmt.Fprintln(os.Stderr, "transcript-mcp:", err)
		os.Exit(1)
	}
}

func run(configPath string, stdio bool) error {
	// .env is a developer convenience; a missing file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Logs go to stderr so stdio mode keeps stdout for the protocol.
	logger, err := logging.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.PrometheusMetricsProvider
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewMetricsProvider(observability.MetricsConfig{
			ServiceName:    cfg.Server.Name,
			ServiceVersion: version,
			MetricsAddr:    cfg.Metrics.Addr,
			MetricsPath:    cfg.Metrics.Path,
		})
		if err != nil {
			return err
		}
		// The exposition listener only makes sense alongside the HTTP
		// server; stdio processes still record, they just don't serve.
		if !stdio {
			if err := metrics.Start(ctx); err != nil {
				return err
			}
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := metrics.Shutdown(ctx); err != nil {
				logger.Warn("metrics shutdown", logging.ErrorField(err))
			}
		}()
	}

	var tracing *observability.TracingProvider
	if cfg.Tracing.Enabled {
		tracing, err = observability.NewTracingProvider(observability.TracingConfig{
			ServiceName:    cfg.Server.Name,
			ServiceVersion: version,
			Environment:    cfg.Tracing.Environment,
			ExporterType:   observability.ExporterType(cfg.Tracing.Protocol),
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := tracing.Shutdown(ctx); err != nil {
				logger.Warn("tracing shutdown", logging.ErrorField(err))
			}
		}()
	}

	storeCfg := store.Config{Path: cfg.Store.Path, Logger: logger}
	if metrics != nil {
		storeCfg.Metrics = metrics
	}
	st, err := store.Open(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close", logging.ErrorField(err))
		}
	}()

	captionsCfg := transcript.Config{
		BaseURL:           cfg.Captions.BaseURL,
		APIKey:            cfg.Captions.APIKey,
		Timeout:           cfg.Captions.Timeout.Std(),
		MaxRetries:        cfg.Captions.MaxRetries,
		InitialRetryDelay: cfg.Captions.InitialRetryDelay.Std(),
		MaxRetryDelay:     cfg.Captions.MaxRetryDelay.Std(),
		RateLimit:         cfg.Captions.RateLimit,
		RateBurst:         cfg.Captions.RateBurst,
		Proxies:           cfg.Captions.Proxies,
		Logger:            logger,
	}
	if metrics != nil {
		captionsCfg.Metrics = metrics
	}
	captions, err := transcript.NewClient(captionsCfg)
	if err != nil {
		return err
	}

	registryCfg := tools.Config{
		CallTimeout: cfg.Server.ToolCallTimeout.Std(),
		Logger:      logger,
	}
	if metrics != nil {
		registryCfg.Metrics = metrics
	}
	if tracing != nil {
		registryCfg.Tracer = tracing
	}
	registry := tools.NewRegistry(registryCfg)
	if err := tools.RegisterAll(registry, tools.Dependencies{Captions: captions, Store: st}); err != nil {
		return err
	}

	var authenticator auth.Authenticator
	if len(cfg.Auth.Tokens) > 0 {
		authenticator = auth.NewStaticTokenAuthenticator(cfg.Auth.Tokens)
	} else {
		logger.Warn("no auth tokens configured, all callers share the local subject")
		authenticator = auth.NewAllowAllAuthenticator("")
	}

	serverCfg := server.Config{
		Name:              cfg.Server.Name,
		Version:           version,
		Instructions:      cfg.Server.Instructions,
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Std(),
		ShutdownTimeout:   cfg.Server.ShutdownTimeout.Std(),
		HTTP: server.HTTPConfig{
			MaxBodyBytes: cfg.Channels.MaxBodyBytes,
			SSE: transport.SSEConfig{
				InboxSize:         cfg.Channels.InboxSize,
				KeepAliveInterval: cfg.Channels.KeepAliveInterval.Std(),
				Logger:            logger,
			},
			Authenticator: authenticator,
			Pinger:        st,
		},
		Tools:  registry,
		Logger: logger,
	}
	if metrics != nil {
		serverCfg.Metrics = metrics
	}
	if tracing != nil {
		serverCfg.Tracer = tracing
	}
	srv := server.New(serverCfg)

	if stdio {
		logger.Info("serving on stdio",
			logging.String("version", version),
			logging.Int("tools", registry.Len()))
		return srv.ServeStdio(ctx, transport.StdioConfig{Logger: logger})
	}

	logger.Info("serving HTTP",
		logging.String("addr", cfg.Server.Addr),
		logging.String("version", version),
		logging.Int("tools", registry.Len()),
		logging.Bool("auth", len(cfg.Auth.Tokens) > 0),
		logging.Bool("metrics", cfg.Metrics.Enabled))
	return srv.Run(ctx)
}
