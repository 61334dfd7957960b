//go:build ignore

// End-to-end example: an in-process server with one custom tool and a
// client calling it over a persistent channel.
//
//	go run doc_example.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/voxmill/transcript-mcp/pkg/client"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
	"github.com/voxmill/transcript-mcp/pkg/server"
	"github.com/voxmill/transcript-mcp/pkg/tools"
)

type greetArgs struct {
	Name string `json:"name"`
}

func main() {
	registry := tools.NewRegistry(tools.Config{})
	err := tools.RegisterTyped(registry, protocol.Tool{
		Name:        "greet",
		Description: "Greets the named caller.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
	}, func(ctx context.Context, args greetArgs) (interface{}, error) {
		return "hello, " + args.Name, nil
	})
	if err != nil {
		log.Fatal(err)
	}

	srv := server.New(server.Config{
		Name:    "example",
		Version: "0.0.0",
		Addr:    "127.0.0.1:0",
		Tools:   registry,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Fatal(err)
		}
	}()

	// Run binds asynchronously; wait for the listener.
	var addr string
	for i := 0; i < 100 && addr == ""; i++ {
		time.Sleep(10 * time.Millisecond)
		addr = srv.BoundAddr()
	}
	if addr == "" {
		log.Fatal("server did not start")
	}

	c, err := client.New(client.Config{BaseURL: "http://" + addr})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	info, err := c.Initialize(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("connected to %s %s at %s\n", info.ServerInfo.Name, info.ServerInfo.Version, c.Endpoint())

	result, err := c.CallTool(ctx, "greet", map[string]interface{}{"name": "gopher"})
	if err != nil {
		log.Fatal(err)
	}
	for _, block := range result.Content {
		fmt.Println(block.Text)
	}
}
