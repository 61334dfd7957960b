package errors

// JSON-RPC 2.0 Standard Error Codes
// These map to the protocol error codes
const (
	// CodeParseError indicates invalid JSON was received by the server
	CodeParseError int = -32700

	// CodeInvalidRequest indicates the JSON sent is not a valid Request object
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// CodeInternalError indicates internal JSON-RPC error
	CodeInternalError int = -32603
)

// Module-specific error codes. The numeric ranges group kinds: every failure
// the dispatch boundary normalizes carries exactly one of these.
const (
	// Server lifecycle errors (-32000 to -32099)
	CodeServerInitError int = -32000 // Error during server initialization
	CodeServerNotReady  int = -32001 // Server not ready to handle requests

	// Authentication errors (-32100 to -32199)
	CodeUnauthenticated int = -32100 // Credential absent or invalid

	// Session errors (-32200 to -32299)
	CodeSessionNotFound  int = -32200 // Session id unresolvable
	CodeDuplicateSession int = -32201 // Session id already registered

	// Transport misuse errors (-32300 to -32399)
	CodeNotInitialized int = -32300 // Channel used before its sink was attached
	CodeChannelClosed  int = -32301 // Channel used after its sink was released

	// Dispatch errors (-32400 to -32499)
	CodeUnknownTool      int = -32400 // No tool registered under the requested name
	CodeInvalidArguments int = -32401 // Arguments violate the tool's input schema

	// Downstream collaborator errors (-32500 to -32599)
	CodeDownstreamFailure int = -32500 // Downstream returned a non-success status
	CodeDownstreamTimeout int = -32501 // Downstream call exceeded its budget

	// Store errors (-32650 to -32699)
	CodeStoreNotFound int = -32650 // No row for the subject-scoped key
	CodeStoreFailure  int = -32651 // Store operation failed

	// Pagination errors (-32800 to -32899)
	CodeInvalidCursor int = -32800 // Cursor is malformed or from another listing
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

// errorCodeRegistry maps error codes to their information
var errorCodeRegistry = map[int]ErrorCodeInfo{
	// JSON-RPC Standard Errors
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	// Server Errors
	CodeServerInitError: {CodeServerInitError, "ServerInitError", "Server initialization failed", CategoryInternal, SeverityCritical},
	CodeServerNotReady:  {CodeServerNotReady, "ServerNotReady", "Server not ready", CategoryInternal, SeverityError},

	// Authentication Errors
	CodeUnauthenticated: {CodeUnauthenticated, "Unauthenticated", "Credential absent or invalid", CategoryAuth, SeverityError},

	// Session Errors
	CodeSessionNotFound:  {CodeSessionNotFound, "SessionNotFound", "Session id unresolvable", CategorySession, SeverityError},
	CodeDuplicateSession: {CodeDuplicateSession, "DuplicateSession", "Session id already registered", CategorySession, SeverityError},

	// Transport Misuse Errors
	CodeNotInitialized: {CodeNotInitialized, "NotInitialized", "Channel sink not attached", CategoryTransport, SeverityError},
	CodeChannelClosed:  {CodeChannelClosed, "ChannelClosed", "Channel sink already released", CategoryTransport, SeverityWarning},

	// Dispatch Errors
	CodeUnknownTool:      {CodeUnknownTool, "UnknownTool", "No tool registered under that name", CategoryDispatch, SeverityError},
	CodeInvalidArguments: {CodeInvalidArguments, "InvalidArguments", "Arguments violate the input schema", CategoryValidation, SeverityError},

	// Downstream Errors
	CodeDownstreamFailure: {CodeDownstreamFailure, "DownstreamFailure", "Downstream returned non-success", CategoryDownstream, SeverityError},
	CodeDownstreamTimeout: {CodeDownstreamTimeout, "DownstreamTimeout", "Downstream call timed out", CategoryTimeout, SeverityError},

	// Store Errors
	CodeStoreNotFound: {CodeStoreNotFound, "StoreNotFound", "Row not found", CategoryStore, SeverityError},
	CodeStoreFailure:  {CodeStoreFailure, "StoreFailure", "Store operation failed", CategoryStore, SeverityError},

	// Pagination Errors
	CodeInvalidCursor: {CodeInvalidCursor, "InvalidCursor", "Invalid pagination cursor", CategoryValidation, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeCategory returns the category of an error code
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryInternal
}

// GetErrorCodeSeverity returns the severity of an error code
func GetErrorCodeSeverity(code int) Severity {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Severity
	}
	return SeverityError
}
