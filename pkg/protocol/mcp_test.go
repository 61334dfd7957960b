package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodNames(t *testing.T) {
	// Method names are part of the wire contract; a typo here breaks
	// interoperability with every client.
	tests := []struct {
		method   string
		expected string
	}{
		{MethodInitialize, "initialize"},
		{MethodInitialized, "notifications/initialized"},
		{MethodListTools, "tools/list"},
		{MethodCallTool, "tools/call"},
		{MethodPing, "ping"},
	}

	for _, tt := range tests {
		if tt.method != tt.expected {
			t.Errorf("Expected method %q, got %q", tt.expected, tt.method)
		}
	}
}

func TestInitializeParamsUnmarshal(t *testing.T) {
	raw := []byte(`{
		"protocolVersion": "2024-11-05",
		"capabilities": {"roots": {"listChanged": true}},
		"clientInfo": {"name": "test-client", "version": "0.3.0"}
	}`)

	var params InitializeParams
	require.NoError(t, json.Unmarshal(raw, &params))

	assert.Equal(t, "2024-11-05", params.ProtocolVersion)
	require.NotNil(t, params.ClientInfo)
	assert.Equal(t, "test-client", params.ClientInfo.Name)
	assert.Equal(t, "0.3.0", params.ClientInfo.Version)
}

func TestInitializeResultMarshal(t *testing.T) {
	result := InitializeResult{
		ProtocolVersion: ProtocolRevision,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{Name: "transcript-mcp", Version: "1.0.0"},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"protocolVersion": "2024-11-05",
		"capabilities": {"tools": {"listChanged": false}},
		"serverInfo": {"name": "transcript-mcp", "version": "1.0.0"}
	}`, string(data))
}

func TestPingResultMarshal(t *testing.T) {
	data, err := json.Marshal(PingResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
