package protocol

const (
	// ProtocolRevision is the protocol revision this server implements.
	// The HTTP+SSE transport with the endpoint handshake belongs to this
	// revision of the protocol.
	ProtocolRevision = "2024-11-05"

	// Methods for lifecycle management
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"

	// Methods for server features
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// Methods for utilities
	MethodPing = "ping"
)

// InitializeParams defines the parameters for the initialize request
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      *ClientInfo        `json:"clientInfo,omitempty"`
}

// ClientCapabilities advertises what the connecting client supports. The
// server does not act on any of these; they are carried for logging.
type ClientCapabilities struct {
	Roots    map[string]interface{} `json:"roots,omitempty"`
	Sampling map[string]interface{} `json:"sampling,omitempty"`
}

// ClientInfo provides additional information about the client
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult defines the response for the initialize request
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ServerCapabilities advertises the feature set of this server. Only the
// tools capability is populated; the registry is fixed at process start, so
// listChanged is always false.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes tool support
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerInfo provides additional information about the server
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializedParams is sent as a notification once the client is ready
type InitializedParams struct {
	// Intentionally empty as per specification
}

// PingParams defines parameters for the ping request
type PingParams struct {
	// Intentionally empty; ping carries no payload
}

// PingResult is the response for ping
type PingResult struct {
	// Intentionally empty; an empty object acknowledges liveness
}
