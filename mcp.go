package transcriptmcp

import (
	"github.com/voxmill/transcript-mcp/pkg/client"
	"github.com/voxmill/transcript-mcp/pkg/config"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
	"github.com/voxmill/transcript-mcp/pkg/server"
	"github.com/voxmill/transcript-mcp/pkg/tools"
)

// Version is the library release version.
const Version = "1.0.0"

// ProtocolRevision is the protocol revision this module speaks.
const ProtocolRevision = protocol.ProtocolRevision

// Core entry points.
var (
	// NewServer assembles a runnable server from a ServerConfig.
	NewServer = server.New

	// NewRuntime creates the protocol router alone, for mounting on a
	// custom transport.
	NewRuntime = server.NewRuntime

	// NewRegistry creates an empty tool registry.
	NewRegistry = tools.NewRegistry

	// RegisterAll installs the transcript tool set into a registry.
	RegisterAll = tools.RegisterAll

	// NewClient creates an HTTP client; call Connect for a persistent
	// channel or skip it for unified round trips.
	NewClient = client.New

	// NewStdioClient creates a client over a newline-delimited pipe.
	NewStdioClient = client.NewStdio

	// LoadConfig layers defaults, an optional TOML file, and environment
	// overrides.
	LoadConfig = config.Load

	// DefaultConfig returns the built-in configuration.
	DefaultConfig = config.Default
)

// Aliases for the types those entry points take and return.
type (
	// ServerConfig configures NewServer.
	ServerConfig = server.Config

	// ClientConfig configures NewClient and NewStdioClient.
	ClientConfig = client.Config

	// RegistryConfig configures NewRegistry.
	RegistryConfig = tools.Config

	// Dependencies carries the downstream captions client and the
	// transcript store RegisterAll wires into the tools.
	Dependencies = tools.Dependencies

	// Tool describes one callable tool.
	Tool = protocol.Tool

	// CallToolResult is the uniform envelope every tool call resolves to.
	CallToolResult = protocol.CallToolResult
)
