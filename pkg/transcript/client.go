// Package transcript is the outbound client for the downstream captions API.
// It owns everything about talking to that API: base URL and credential,
// per-call timeouts, client-side rate limiting, retry with exponential
// backoff, and optional proxy rotation across attempts. Failures surface as
// typed downstream errors carrying the HTTP status and raw body.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
)

const (
	// DefaultTimeout bounds one attempt against the downstream API.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is how many times a retryable failure is retried
	// after the first attempt.
	DefaultMaxRetries = 3

	// DefaultInitialRetryDelay seeds the exponential backoff.
	DefaultInitialRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the backoff.
	DefaultMaxRetryDelay = 10 * time.Second

	// DefaultRateLimit is the client-side request budget per second.
	DefaultRateLimit = 5

	// maxResponseBytes bounds a downstream response body.
	maxResponseBytes = 32 << 20
)

// DownstreamMetrics is the slice of the metrics provider the client records
// into. Nil disables recording.
type DownstreamMetrics interface {
	RecordDownstreamRequest(ctx context.Context, endpoint, status string, duration time.Duration)
}

// Config configures a Client.
type Config struct {
	// BaseURL of the captions API, e.g. "https://captions.example.com".
	BaseURL string

	// APIKey is sent as a bearer credential when set.
	APIKey string

	// Timeout bounds each attempt (default DefaultTimeout).
	Timeout time.Duration

	// MaxRetries after the first attempt (default DefaultMaxRetries).
	MaxRetries int

	// InitialRetryDelay and MaxRetryDelay shape the backoff.
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration

	// RateLimit is the request budget in requests/second; zero means
	// DefaultRateLimit, negative disables limiting.
	RateLimit float64

	// RateBurst is the token bucket size (defaults to ceil(RateLimit)).
	RateBurst int

	// Proxies are outbound proxy URLs rotated round-robin across attempts.
	Proxies []string

	// HTTPClient overrides the default client; incompatible with Proxies.
	HTTPClient *http.Client

	// Logger for retry/backoff events. Defaults to the global logger.
	Logger logging.Logger

	// Metrics records request durations when set.
	Metrics DownstreamMetrics
}

// Client talks to the downstream captions API.
type Client struct {
	config  Config
	limiter *rate.Limiter
	logger  logging.Logger
	metrics DownstreamMetrics

	// clients holds one HTTP client per proxy, or a single direct client.
	clients []*http.Client
	next    atomic.Uint64
}

// NewClient creates a captions API client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, mcperrors.ServerInitError("captions client requires a base URL", nil)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	} else if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialRetryDelay <= 0 {
		config.InitialRetryDelay = DefaultInitialRetryDelay
	}
	if config.MaxRetryDelay <= 0 {
		config.MaxRetryDelay = DefaultMaxRetryDelay
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	clients, err := buildHTTPClients(config)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:  config,
		limiter: buildLimiter(config),
		logger:  logger.WithFields(logging.String("component", "CaptionsClient")),
		metrics: config.Metrics,
		clients: clients,
	}, nil
}

func buildLimiter(config Config) *rate.Limiter {
	if config.RateLimit < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	limit := config.RateLimit
	if limit == 0 {
		limit = DefaultRateLimit
	}
	burst := config.RateBurst
	if burst <= 0 {
		burst = int(limit)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

func buildHTTPClients(config Config) ([]*http.Client, error) {
	if config.HTTPClient != nil {
		return []*http.Client{config.HTTPClient}, nil
	}
	if len(config.Proxies) == 0 {
		return []*http.Client{{Timeout: config.Timeout}}, nil
	}

	clients := make([]*http.Client, 0, len(config.Proxies))
	for _, raw := range config.Proxies {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, mcperrors.ServerInitError(fmt.Sprintf("invalid proxy URL %q", raw), err)
		}
		clients = append(clients, &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		})
	}
	return clients, nil
}

// Call performs one logical API call: rate-limit admission, then up to
// 1+MaxRetries attempts with exponential backoff on 429, 5xx and transport
// errors, rotating proxies between attempts. A terminal non-2xx outcome is a
// DownstreamFailure carrying the status and raw body; a 2xx body is decoded
// into out when out is non-nil.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := metricEndpoint(path)

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return mcperrors.Internal("encode downstream request", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return mcperrors.ConvertStandardError(err)
		}

		if attempt > 0 {
			c.logger.Debug("retrying downstream request",
				logging.String("endpoint", endpoint),
				logging.Int("attempt", attempt),
				logging.ErrorField(lastErr))
		}

		failure, retryAfter := c.attempt(ctx, method, path, query, payload, out, endpoint, attempt)
		if failure == nil {
			return nil
		}
		lastErr = failure

		if !mcperrors.IsRetryable(failure) || attempt == c.config.MaxRetries {
			return failure
		}

		if err := c.backoff(ctx, attempt, retryAfter); err != nil {
			return err
		}
	}
	return lastErr
}

// attempt performs one HTTP round trip and decode. The second return value
// is the server's Retry-After hint, when it sent one.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload []byte, out interface{}, endpoint string, attempt int) (error, time.Duration) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	target := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, target, reqBody)
	if err != nil {
		return mcperrors.Internal("build downstream request", err), 0
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	started := time.Now()
	resp, err := c.pickClient(attempt).Do(req)
	if err != nil {
		c.record(ctx, endpoint, "transport_error", started)
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			return mcperrors.DownstreamTimeout(path, c.config.Timeout.String()), 0
		}
		return mcperrors.DownstreamUnreachable(path, err), 0
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.record(ctx, endpoint, "read_error", started)
		return mcperrors.DownstreamUnreachable(path, err), 0
	}

	c.record(ctx, endpoint, strconv.Itoa(resp.StatusCode), started)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mcperrors.DownstreamFailure(path, resp.StatusCode, responseBody), parseRetryAfter(resp)
	}

	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return mcperrors.WrapError(err, mcperrors.CodeDownstreamFailure,
				"downstream response is not decodable JSON",
				mcperrors.CategoryDownstream, mcperrors.SeverityError), 0
		}
	}
	return nil, 0
}

// pickClient rotates through the proxy clients so consecutive attempts leave
// through different routes.
func (c *Client) pickClient(attempt int) *http.Client {
	if len(c.clients) == 1 {
		return c.clients[0]
	}
	n := c.next.Add(1)
	return c.clients[(int(n)+attempt)%len(c.clients)]
}

// backoff sleeps for the attempt's delay or until the context ends. A
// Retry-After hint from the server overrides the computed delay when longer.
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	delay := c.config.InitialRetryDelay << uint(attempt)
	if delay > c.config.MaxRetryDelay {
		delay = c.config.MaxRetryDelay
	}
	if retryAfter > delay {
		delay = retryAfter
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return mcperrors.ConvertStandardError(ctx.Err())
	}
}

func (c *Client) record(ctx context.Context, endpoint, status string, started time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordDownstreamRequest(ctx, endpoint, status, time.Since(started))
}

// parseRetryAfter reads an integer-seconds Retry-After header.
func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// metricEndpoint collapses the video id path segment so metric labels stay
// low cardinality.
func metricEndpoint(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 3 && parts[1] == "v1" && parts[2] == "videos" && parts[3] != "" {
		parts[3] = "{id}"
	}
	return strings.Join(parts, "/")
}
