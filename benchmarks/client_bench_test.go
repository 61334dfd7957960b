package benchmarks

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/voxmill/transcript-mcp/pkg/client"
	"github.com/voxmill/transcript-mcp/pkg/server"
	"github.com/voxmill/transcript-mcp/pkg/transport"
)

// benchServer starts an in-process HTTP server over the benchmark
// registry so client benchmarks measure the full transport path.
func benchServer(b *testing.B) *httptest.Server {
	b.Helper()

	srv := server.New(server.Config{
		Name:    "bench",
		Version: "0.0.0",
		Tools:   benchRegistry(b),
	})
	ts := httptest.NewServer(srv.Handler())
	b.Cleanup(ts.Close)
	return ts
}

func benchUnifiedClient(b *testing.B, ts *httptest.Server) *client.Client {
	b.Helper()

	c, err := client.New(client.Config{BaseURL: ts.URL})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Close() })

	if _, err := c.Initialize(context.Background()); err != nil {
		b.Fatal(err)
	}
	return c
}

func benchChannelClient(b *testing.B, ts *httptest.Server) *client.Client {
	b.Helper()

	c, err := client.New(client.Config{BaseURL: ts.URL})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Close() })

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		b.Fatal(err)
	}
	if _, err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}
	return c
}

// BenchmarkClientRoundTrip measures full request/response cycles over
// both HTTP transports.
func BenchmarkClientRoundTrip(b *testing.B) {
	ctx := context.Background()
	args := map[string]interface{}{"text": "hello"}

	b.Run("UnifiedPing", func(b *testing.B) {
		c := benchUnifiedClient(b, benchServer(b))

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := c.Ping(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("UnifiedCallTool", func(b *testing.B) {
		c := benchUnifiedClient(b, benchServer(b))

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			result, err := c.CallTool(ctx, "echo_text", args)
			if err != nil {
				b.Fatal(err)
			}
			if result.IsError {
				b.Fatal("expected success")
			}
		}
	})

	b.Run("ChannelPing", func(b *testing.B) {
		c := benchChannelClient(b, benchServer(b))

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := c.Ping(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("ChannelCallTool", func(b *testing.B) {
		c := benchChannelClient(b, benchServer(b))

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			result, err := c.CallTool(ctx, "echo_text", args)
			if err != nil {
				b.Fatal(err)
			}
			if result.IsError {
				b.Fatal("expected success")
			}
		}
	})

	b.Run("ChannelListTools", func(b *testing.B) {
		c := benchChannelClient(b, benchServer(b))

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := c.ListTools(ctx, ""); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("ChannelParallelCalls", func(b *testing.B) {
		c := benchChannelClient(b, benchServer(b))

		b.ReportAllocs()
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := c.CallTool(ctx, "echo_text", args); err != nil {
					b.Fatal(err)
				}
			}
		})
	})
}

// BenchmarkClientConnect measures the channel setup cost: GET the stream,
// wait for the endpoint event, initialize, tear down.
func BenchmarkClientConnect(b *testing.B) {
	ts := benchServer(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := client.New(client.Config{BaseURL: ts.URL})
		if err != nil {
			b.Fatal(err)
		}
		if err := c.Connect(ctx); err != nil {
			b.Fatal(err)
		}
		if _, err := c.Initialize(ctx); err != nil {
			b.Fatal(err)
		}
		if err := c.Close(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkStdioRoundTrip measures the newline-delimited pipe transport.
func BenchmarkStdioRoundTrip(b *testing.B) {
	srv := server.New(server.Config{
		Name:    "bench",
		Version: "0.0.0",
		Tools:   benchRegistry(b),
	})

	clientReader, serverWriter := io.Pipe()
	serverReader, clientWriter := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- srv.ServeStdio(ctx, transport.StdioConfig{
			Reader: serverReader,
			Writer: serverWriter,
		})
	}()

	c := client.NewStdio(clientReader, clientWriter, client.Config{})
	if _, err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	b.Cleanup(func() {
		c.Close()
		cancel()
		clientWriter.Close()
		serverWriter.Close()
		<-served
	})

	args := map[string]interface{}{"text": "hello"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := c.CallTool(ctx, "echo_text", args)
		if err != nil {
			b.Fatal(err)
		}
		if result.IsError {
			b.Fatal("expected success")
		}
	}
}
