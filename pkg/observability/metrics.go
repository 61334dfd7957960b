package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Prometheus configuration
	MetricsPath string // HTTP path for metrics endpoint (default: /metrics)
	MetricsAddr string // Listen address for the metrics server (default: :9090)

	// Metric options
	Namespace        string    // Prometheus namespace (default: mcp)
	Subsystem        string    // Prometheus subsystem
	HistogramBuckets []float64 // Custom histogram buckets for latency

	// Labels to add to all metrics
	ConstLabels prometheus.Labels
}

// MetricsProvider records the server's operational metrics
type MetricsProvider interface {
	// Protocol runtime
	RecordInboundMessage(ctx context.Context, method, status string, duration time.Duration)
	RecordToolCall(ctx context.Context, tool, status string, duration time.Duration)

	// Session lifecycle
	RecordSessionEvent(ctx context.Context, event string)
	RecordActiveSessions(ctx context.Context, delta int)

	// Collaborators
	RecordDownstreamRequest(ctx context.Context, endpoint, status string, duration time.Duration)
	RecordStoreOperation(ctx context.Context, operation, status string, duration time.Duration)

	// Errors by taxonomy kind
	RecordError(ctx context.Context, kind, method string)

	// Custom metrics
	RecordGauge(name string, value float64, labels prometheus.Labels)
	RecordCounter(name string, labels prometheus.Labels)

	// Management
	Registry() *prometheus.Registry
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus
type PrometheusMetricsProvider struct {
	config   MetricsConfig
	registry *prometheus.Registry
	server   *http.Server

	inboundMessageDuration *prometheus.HistogramVec
	inboundMessageTotal    *prometheus.CounterVec

	toolCallDuration *prometheus.HistogramVec
	toolCallTotal    *prometheus.CounterVec

	sessionEventTotal *prometheus.CounterVec
	activeSessions    prometheus.Gauge

	downstreamRequestDuration *prometheus.HistogramVec
	downstreamRequestTotal    *prometheus.CounterVec

	storeOperationDuration *prometheus.HistogramVec

	errorTotal *prometheus.CounterVec

	customMetrics map[string]prometheus.Collector
	mu            sync.RWMutex
}

// NewMetricsProvider creates a new Prometheus metrics provider with its own
// registry, so independent instances never collide.
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "mcp"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MetricsAddr == "" {
		config.MetricsAddr = ":9090"
	}
	if config.HistogramBuckets == nil {
		// Buckets in milliseconds
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}

	if config.ConstLabels == nil {
		config.ConstLabels = prometheus.Labels{}
	}
	config.ConstLabels["service"] = config.ServiceName
	config.ConstLabels["version"] = config.ServiceVersion
	config.ConstLabels["environment"] = config.Environment

	provider := &PrometheusMetricsProvider{
		config:        config,
		registry:      prometheus.NewRegistry(),
		customMetrics: make(map[string]prometheus.Collector),
	}

	provider.initializeMetrics()

	if err := provider.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return provider, nil
}

// initializeMetrics creates all metric collectors
func (p *PrometheusMetricsProvider) initializeMetrics() {
	p.inboundMessageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "inbound_message_duration_milliseconds",
			Help:        "Duration of inbound protocol message handling in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.inboundMessageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "inbound_message_total",
			Help:        "Total number of inbound protocol messages",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "tool_call_duration_milliseconds",
			Help:        "Duration of tool calls in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"tool", "status"},
	)

	p.toolCallTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "tool_call_total",
			Help:        "Total number of tool calls",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"tool", "status"},
	)

	p.sessionEventTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "session_event_total",
			Help:        "Total number of session lifecycle events",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"event"},
	)

	p.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of live sessions in the directory",
			ConstLabels: p.config.ConstLabels,
		},
	)

	p.downstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "downstream_request_duration_milliseconds",
			Help:        "Duration of downstream captions API requests in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"endpoint", "status"},
	)

	p.downstreamRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "downstream_request_total",
			Help:        "Total number of downstream captions API requests",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"endpoint", "status"},
	)

	p.storeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "store_operation_duration_milliseconds",
			Help:        "Duration of saved-transcript store operations in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"operation", "status"},
	)

	p.errorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "error_total",
			Help:        "Total number of errors by taxonomy kind",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"kind", "method"},
	)
}

// registerMetrics registers all metrics with the provider's registry
func (p *PrometheusMetricsProvider) registerMetrics() error {
	collectors := []prometheus.Collector{
		p.inboundMessageDuration,
		p.inboundMessageTotal,
		p.toolCallDuration,
		p.toolCallTotal,
		p.sessionEventTotal,
		p.activeSessions,
		p.downstreamRequestDuration,
		p.downstreamRequestTotal,
		p.storeOperationDuration,
		p.errorTotal,
	}

	for _, collector := range collectors {
		if err := p.registry.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	return nil
}

// RecordInboundMessage records one handled protocol message
func (p *PrometheusMetricsProvider) RecordInboundMessage(ctx context.Context, method, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.inboundMessageDuration.WithLabelValues(method, status).Observe(ms)
	p.inboundMessageTotal.WithLabelValues(method, status).Inc()
}

// RecordToolCall records one tool invocation
func (p *PrometheusMetricsProvider) RecordToolCall(ctx context.Context, tool, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.toolCallDuration.WithLabelValues(tool, status).Observe(ms)
	p.toolCallTotal.WithLabelValues(tool, status).Inc()
}

// RecordSessionEvent records a session lifecycle event (opened, closed, rejected)
func (p *PrometheusMetricsProvider) RecordSessionEvent(ctx context.Context, event string) {
	p.sessionEventTotal.WithLabelValues(event).Inc()
}

// RecordActiveSessions records the change in live sessions
func (p *PrometheusMetricsProvider) RecordActiveSessions(ctx context.Context, delta int) {
	if delta > 0 {
		p.activeSessions.Add(float64(delta))
	} else {
		p.activeSessions.Sub(float64(-delta))
	}
}

// RecordDownstreamRequest records one downstream captions API request
func (p *PrometheusMetricsProvider) RecordDownstreamRequest(ctx context.Context, endpoint, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.downstreamRequestDuration.WithLabelValues(endpoint, status).Observe(ms)
	p.downstreamRequestTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordStoreOperation records one store operation
func (p *PrometheusMetricsProvider) RecordStoreOperation(ctx context.Context, operation, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.storeOperationDuration.WithLabelValues(operation, status).Observe(ms)
}

// RecordError records an error by taxonomy kind
func (p *PrometheusMetricsProvider) RecordError(ctx context.Context, kind, method string) {
	p.errorTotal.WithLabelValues(kind, method).Inc()
}

// RecordGauge records a custom gauge metric
func (p *PrometheusMetricsProvider) RecordGauge(name string, value float64, labels prometheus.Labels) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := name + fmt.Sprint(labels)
	if gauge, exists := p.customMetrics[key]; exists {
		if g, ok := gauge.(*prometheus.GaugeVec); ok {
			g.With(labels).Set(value)
			return
		}
	}

	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   "custom",
			Name:        name,
			Help:        fmt.Sprintf("Custom gauge metric: %s", name),
			ConstLabels: p.config.ConstLabels,
		},
		getLabelsKeys(labels),
	)

	p.registry.MustRegister(gauge)
	p.customMetrics[key] = gauge
	gauge.With(labels).Set(value)
}

// RecordCounter records a custom counter metric
func (p *PrometheusMetricsProvider) RecordCounter(name string, labels prometheus.Labels) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := name + fmt.Sprint(labels)
	if counter, exists := p.customMetrics[key]; exists {
		if c, ok := counter.(*prometheus.CounterVec); ok {
			c.With(labels).Inc()
			return
		}
	}

	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   "custom",
			Name:        name,
			Help:        fmt.Sprintf("Custom counter metric: %s", name),
			ConstLabels: p.config.ConstLabels,
		},
		getLabelsKeys(labels),
	)

	p.registry.MustRegister(counter)
	p.customMetrics[key] = counter
	counter.With(labels).Inc()
}

// Registry exposes the provider's registry so the metrics endpoint can be
// mounted on an existing mux.
func (p *PrometheusMetricsProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Start starts the metrics HTTP server
func (p *PrometheusMetricsProvider) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(p.config.MetricsPath, promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))

	p.server = &http.Server{
		Addr:    p.config.MetricsAddr,
		Handler: mux,
	}

	go func() {
		_ = p.server.ListenAndServe()
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (p *PrometheusMetricsProvider) Shutdown(ctx context.Context) error {
	if p.server != nil {
		return p.server.Shutdown(ctx)
	}
	return nil
}

func getLabelsKeys(labels prometheus.Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	return keys
}
