// Package benchmarks exercises the server end to end: dispatch
// microbenchmarks, transport round trips, and a reusable load generator
// for soak runs against a live instance.
package benchmarks

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/voxmill/transcript-mcp/pkg/client"
)

// Mode selects how load-test clients talk to the server.
type Mode string

const (
	// ModeChannel opens one persistent channel per client; responses
	// arrive over the stream.
	ModeChannel Mode = "channel"

	// ModeUnified round-trips every request in a single POST.
	ModeUnified Mode = "unified"
)

// OperationMix weights the operations each client draws from. Weights are
// relative and do not need to sum to one.
type OperationMix struct {
	CallTool  float64
	ListTools float64
	Ping      float64
}

// LoadTestConfig configures one load test run.
type LoadTestConfig struct {
	// BaseURL of a running server.
	BaseURL string

	// Token is the bearer credential when the server requires one.
	Token string

	// Clients is the number of concurrent clients (default 10).
	Clients int

	// RequestsPerClient is how many requests each client issues
	// (default 100).
	RequestsPerClient int

	// RateLimit caps the aggregate request rate in requests per second;
	// zero means unlimited.
	RateLimit float64

	// Mode selects the transport (default ModeChannel).
	Mode Mode

	// Mix weights the operations (default 60/20/20 call/list/ping).
	Mix OperationMix

	// Tool and Arguments drive the CallTool share of the mix.
	Tool      string
	Arguments interface{}

	// CallTimeout bounds each request round trip.
	CallTimeout time.Duration
}

// LoadTestResult aggregates one run. Latencies are in milliseconds.
type LoadTestResult struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	TotalDuration      time.Duration
	RequestsPerSecond  float64

	MinLatency float64
	MaxLatency float64
	AvgLatency float64
	P50Latency float64
	P95Latency float64
	P99Latency float64

	// ErrorCounts is keyed by error text, envelope failures included.
	ErrorCounts map[string]int64
}

// PrintResults writes a human-readable summary to stdout.
func (r *LoadTestResult) PrintResults() {
	fmt.Printf("requests:   %d total, %d ok, %d failed\n",
		r.TotalRequests, r.SuccessfulRequests, r.FailedRequests)
	fmt.Printf("duration:   %v (%.1f req/s)\n", r.TotalDuration.Round(time.Millisecond), r.RequestsPerSecond)
	fmt.Printf("latency ms: min %.2f avg %.2f p50 %.2f p95 %.2f p99 %.2f max %.2f\n",
		r.MinLatency, r.AvgLatency, r.P50Latency, r.P95Latency, r.P99Latency, r.MaxLatency)
	if len(r.ErrorCounts) > 0 {
		fmt.Println("errors:")
		for text, count := range r.ErrorCounts {
			fmt.Printf("  %6d  %s\n", count, text)
		}
	}
}

// LoadTester drives concurrent clients against one server and collects
// latency and error statistics.
type LoadTester struct {
	config LoadTestConfig

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	errors    map[string]int64
}

// NewLoadTester creates a load tester with defaults applied.
func NewLoadTester(config LoadTestConfig) *LoadTester {
	if config.Clients <= 0 {
		config.Clients = 10
	}
	if config.RequestsPerClient <= 0 {
		config.RequestsPerClient = 100
	}
	if config.Mode == "" {
		config.Mode = ModeChannel
	}
	if config.Mix.CallTool+config.Mix.ListTools+config.Mix.Ping == 0 {
		config.Mix = OperationMix{CallTool: 60, ListTools: 20, Ping: 20}
	}
	if config.Tool == "" {
		config.Tool = "list_saved_transcripts"
	}

	return &LoadTester{
		config: config,
		errors: make(map[string]int64),
	}
}

// Run executes the load test and blocks until every client finishes or ctx
// is cancelled. Individual request failures are recorded, not returned.
func (lt *LoadTester) Run(ctx context.Context) (*LoadTestResult, error) {
	if lt.config.BaseURL == "" {
		return nil, fmt.Errorf("load test requires a base URL")
	}

	var limiter *rate.Limiter
	if lt.config.RateLimit > 0 {
		burst := int(lt.config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(lt.config.RateLimit), burst)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < lt.config.Clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			lt.runClient(ctx, limiter, n)
		}(i)
	}
	wg.Wait()

	return lt.summarize(time.Since(start)), ctx.Err()
}

func (lt *LoadTester) runClient(ctx context.Context, limiter *rate.Limiter, n int) {
	c, err := client.New(client.Config{
		BaseURL:     lt.config.BaseURL,
		Token:       lt.config.Token,
		CallTimeout: lt.config.CallTimeout,
		Name:        fmt.Sprintf("loadtest-%d", n),
	})
	if err != nil {
		lt.record(0, err)
		return
	}
	defer c.Close()

	if lt.config.Mode == ModeChannel {
		if err := c.Connect(ctx); err != nil {
			lt.record(0, err)
			return
		}
	}
	if _, err := c.Initialize(ctx); err != nil {
		lt.record(0, err)
		return
	}

	rng := rand.New(rand.NewSource(int64(n) + 1))
	for i := 0; i < lt.config.RequestsPerClient; i++ {
		if ctx.Err() != nil {
			return
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		started := time.Now()
		err := lt.execute(ctx, c, rng)
		lt.record(time.Since(started), err)
	}
}

// execute performs one operation drawn from the mix. A tool result with
// IsError set counts as a failure even though the protocol exchange
// succeeded.
func (lt *LoadTester) execute(ctx context.Context, c *client.Client, rng *rand.Rand) error {
	mix := lt.config.Mix
	total := mix.CallTool + mix.ListTools + mix.Ping
	draw := rng.Float64() * total

	switch {
	case draw < mix.CallTool:
		result, err := c.CallTool(ctx, lt.config.Tool, lt.config.Arguments)
		if err != nil {
			return err
		}
		if result.IsError {
			return fmt.Errorf("tool %s returned an error envelope", lt.config.Tool)
		}
		return nil
	case draw < mix.CallTool+mix.ListTools:
		_, err := c.ListTools(ctx, "")
		return err
	default:
		return c.Ping(ctx)
	}
}

func (lt *LoadTester) record(latency time.Duration, err error) {
	lt.total.Add(1)
	if err == nil {
		lt.succeeded.Add(1)
		lt.mu.Lock()
		lt.latencies = append(lt.latencies, latency)
		lt.mu.Unlock()
		return
	}

	lt.failed.Add(1)
	lt.mu.Lock()
	lt.errors[err.Error()]++
	lt.mu.Unlock()
}

func (lt *LoadTester) summarize(elapsed time.Duration) *LoadTestResult {
	lt.mu.Lock()
	latencies := make([]time.Duration, len(lt.latencies))
	copy(latencies, lt.latencies)
	errorCounts := make(map[string]int64, len(lt.errors))
	for text, count := range lt.errors {
		errorCounts[text] = count
	}
	lt.mu.Unlock()

	result := &LoadTestResult{
		TotalRequests:      lt.total.Load(),
		SuccessfulRequests: lt.succeeded.Load(),
		FailedRequests:     lt.failed.Load(),
		TotalDuration:      elapsed,
		ErrorCounts:        errorCounts,
	}
	if elapsed > 0 {
		result.RequestsPerSecond = float64(result.TotalRequests) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return result
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	result.MinLatency = ms(latencies[0])
	result.MaxLatency = ms(latencies[len(latencies)-1])
	result.AvgLatency = ms(sum / time.Duration(len(latencies)))
	result.P50Latency = ms(percentile(latencies, 0.50))
	result.P95Latency = ms(percentile(latencies, 0.95))
	result.P99Latency = ms(percentile(latencies, 0.99))
	return result
}

// percentile reads the p-th percentile from sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
