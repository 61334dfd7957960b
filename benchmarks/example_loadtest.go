//go:build ignore

// Standalone load test runner. Start a server, then:
//
//	go run benchmarks/example_loadtest.go
//
// Override the target with LOADTEST_URL and LOADTEST_TOKEN.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/voxmill/transcript-mcp/benchmarks"
)

func main() {
	baseURL := os.Getenv("LOADTEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("LOADTEST_TOKEN")

	scenarios := []struct {
		name   string
		config benchmarks.LoadTestConfig
	}{
		{
			name: "channel baseline",
			config: benchmarks.LoadTestConfig{
				BaseURL:           baseURL,
				Token:             token,
				Clients:           10,
				RequestsPerClient: 100,
				Mode:              benchmarks.ModeChannel,
			},
		},
		{
			name: "unified baseline",
			config: benchmarks.LoadTestConfig{
				BaseURL:           baseURL,
				Token:             token,
				Clients:           10,
				RequestsPerClient: 100,
				Mode:              benchmarks.ModeUnified,
			},
		},
		{
			name: "tool heavy",
			config: benchmarks.LoadTestConfig{
				BaseURL:           baseURL,
				Token:             token,
				Clients:           25,
				RequestsPerClient: 200,
				Mode:              benchmarks.ModeChannel,
				Mix:               benchmarks.OperationMix{CallTool: 90, ListTools: 5, Ping: 5},
			},
		},
		{
			name: "rate limited soak",
			config: benchmarks.LoadTestConfig{
				BaseURL:           baseURL,
				Token:             token,
				Clients:           50,
				RequestsPerClient: 100,
				RateLimit:         500,
				Mode:              benchmarks.ModeChannel,
			},
		},
	}

	for _, scenario := range scenarios {
		fmt.Printf("=== %s ===\n", scenario.name)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		tester := benchmarks.NewLoadTester(scenario.config)
		result, err := tester.Run(ctx)
		cancel()
		if err != nil {
			fmt.Printf("run aborted: %v\n\n", err)
			continue
		}

		result.PrintResults()
		if result.FailedRequests > result.TotalRequests/10 {
			fmt.Println("warning: more than 10% of requests failed")
		}
		if result.P99Latency > 1000 {
			fmt.Println("warning: p99 latency above one second")
		}
		fmt.Println()
	}
}
