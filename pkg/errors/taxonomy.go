package errors

import (
	"encoding/json"
	"fmt"
)

// SessionErrorData contains structured data for session-related errors
type SessionErrorData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// ToolErrorData contains structured data for dispatch errors
type ToolErrorData struct {
	Tool string `json:"tool"`
}

// FieldViolation describes one schema constraint an argument object violated
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

// ValidationErrorData contains structured data for argument validation errors
type ValidationErrorData struct {
	Tool       string           `json:"tool,omitempty"`
	Violations []FieldViolation `json:"violations,omitempty"`
}

// DownstreamErrorData carries the HTTP status and raw body of a failed
// downstream call. Body is raw JSON when the downstream spoke JSON, a quoted
// string otherwise.
type DownstreamErrorData struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body,omitempty"`
	Endpoint   string          `json:"endpoint,omitempty"`
	Retryable  bool            `json:"retryable"`
}

// StoreErrorData contains structured data for store errors
type StoreErrorData struct {
	Kind string `json:"kind"`
	Key  string `json:"key,omitempty"`
}

// Authentication errors

// Unauthenticated creates an error for an absent or invalid credential
func Unauthenticated(reason string) MCPError {
	return NewError(
		CodeUnauthenticated,
		fmt.Sprintf("Unauthenticated: %s", reason),
		CategoryAuth,
		SeverityError,
	)
}

// Session errors

// SessionNotFound creates an error for an unresolvable session id. The id may
// never have been issued, the owning channel may have closed, or the channel
// may live in another process; callers cannot distinguish these.
func SessionNotFound(sessionID string) MCPError {
	return NewError(
		CodeSessionNotFound,
		fmt.Sprintf("Session '%s' not found", sessionID),
		CategorySession,
		SeverityError,
	).WithData(&SessionErrorData{SessionID: sessionID})
}

// DuplicateSession creates an error for a session id that is already registered
func DuplicateSession(sessionID string) MCPError {
	return NewError(
		CodeDuplicateSession,
		fmt.Sprintf("Session '%s' already registered", sessionID),
		CategorySession,
		SeverityError,
	).WithData(&SessionErrorData{SessionID: sessionID, Reason: "duplicate"})
}

// Transport misuse errors

// NotInitialized creates an error for channel use before its sink is attached
func NotInitialized(operation string) MCPError {
	return NewError(
		CodeNotInitialized,
		fmt.Sprintf("Channel not initialized: %s requires an attached sink", operation),
		CategoryTransport,
		SeverityError,
	)
}

// ChannelClosed creates an error for channel use after its sink was released
func ChannelClosed(operation string) MCPError {
	return NewError(
		CodeChannelClosed,
		fmt.Sprintf("Channel closed: %s rejected", operation),
		CategoryTransport,
		SeverityWarning,
	)
}

// Dispatch errors

// UnknownTool creates an error for a tool name with no registration
func UnknownTool(name string) MCPError {
	return NewError(
		CodeUnknownTool,
		fmt.Sprintf("Unknown tool: %s", name),
		CategoryDispatch,
		SeverityError,
	).WithData(&ToolErrorData{Tool: name})
}

// InvalidArguments creates an error for arguments that violate a tool's input
// schema. The handler is never invoked when this is raised.
func InvalidArguments(tool string, violations []FieldViolation) MCPError {
	msg := fmt.Sprintf("Invalid arguments for tool '%s'", tool)
	if len(violations) > 0 {
		msg = fmt.Sprintf("%s: %s %s", msg, violations[0].Field, violations[0].Constraint)
	}
	return NewError(
		CodeInvalidArguments,
		msg,
		CategoryValidation,
		SeverityError,
	).WithData(&ValidationErrorData{Tool: tool, Violations: violations})
}

// Downstream errors

// DownstreamFailure creates an error for a downstream call that returned a
// non-success status. The raw response body is preserved for the caller.
func DownstreamFailure(endpoint string, statusCode int, body []byte) MCPError {
	return NewError(
		CodeDownstreamFailure,
		fmt.Sprintf("Downstream request failed with status %d", statusCode),
		CategoryDownstream,
		SeverityError,
	).WithData(&DownstreamErrorData{
		StatusCode: statusCode,
		Body:       normalizeBody(body),
		Endpoint:   endpoint,
		Retryable:  retryableStatus(statusCode),
	})
}

// DownstreamTimeout creates an error for a downstream call that exceeded its
// timeout budget
func DownstreamTimeout(endpoint string, timeout string) MCPError {
	return NewError(
		CodeDownstreamTimeout,
		fmt.Sprintf("Downstream request timed out after %s", timeout),
		CategoryTimeout,
		SeverityError,
	).WithData(&DownstreamErrorData{
		Endpoint:  endpoint,
		Retryable: true,
	})
}

// DownstreamUnreachable creates an error for a downstream call that failed at
// the network layer before any status was received
func DownstreamUnreachable(endpoint string, cause error) MCPError {
	return WrapError(
		cause,
		CodeDownstreamFailure,
		fmt.Sprintf("Downstream unreachable: %v", cause),
		CategoryDownstream,
		SeverityError,
	).WithData(&DownstreamErrorData{
		Endpoint:  endpoint,
		Retryable: true,
	})
}

// Store errors

// StoreNotFound creates an error for a missing subject-scoped row
func StoreNotFound(kind, key string) MCPError {
	return NewError(
		CodeStoreNotFound,
		fmt.Sprintf("%s '%s' not found", kind, key),
		CategoryStore,
		SeverityError,
	).WithData(&StoreErrorData{Kind: kind, Key: key})
}

// StoreFailure wraps a failed store operation
func StoreFailure(operation string, cause error) MCPError {
	return WrapError(
		cause,
		CodeStoreFailure,
		fmt.Sprintf("Store operation '%s' failed", operation),
		CategoryStore,
		SeverityError,
	)
}

// Pagination errors

// InvalidCursor creates an error for a malformed pagination cursor
func InvalidCursor(reason string) MCPError {
	return NewError(
		CodeInvalidCursor,
		fmt.Sprintf("Invalid cursor: %s", reason),
		CategoryValidation,
		SeverityError,
	)
}

// Server errors

// ServerInitError creates an error for server initialization failures
func ServerInitError(reason string, cause error) MCPError {
	return WrapError(
		cause,
		CodeServerInitError,
		fmt.Sprintf("Server initialization failed: %s", reason),
		CategoryInternal,
		SeverityCritical,
	)
}

// Internal wraps an unexpected failure. Recovered panics at the dispatch
// boundary end up here.
func Internal(operation string, cause error) MCPError {
	message := "Internal error"
	if operation != "" {
		message = fmt.Sprintf("Internal error during %s", operation)
	}
	return WrapError(cause, CodeInternalError, message, CategoryInternal, SeverityError)
}

// Kind predicates

// IsUnknownTool reports whether err is an UnknownTool error
func IsUnknownTool(err error) bool { return IsCode(err, CodeUnknownTool) }

// IsInvalidArguments reports whether err is an InvalidArguments error
func IsInvalidArguments(err error) bool { return IsCode(err, CodeInvalidArguments) }

// IsSessionNotFound reports whether err is a SessionNotFound error
func IsSessionNotFound(err error) bool { return IsCode(err, CodeSessionNotFound) }

// IsDuplicateSession reports whether err is a DuplicateSession error
func IsDuplicateSession(err error) bool { return IsCode(err, CodeDuplicateSession) }

// IsChannelClosed reports whether err is a ChannelClosed error
func IsChannelClosed(err error) bool { return IsCode(err, CodeChannelClosed) }

// IsNotInitialized reports whether err is a NotInitialized error
func IsNotInitialized(err error) bool { return IsCode(err, CodeNotInitialized) }

// IsDownstreamFailure reports whether err is a DownstreamFailure error
func IsDownstreamFailure(err error) bool {
	return IsCode(err, CodeDownstreamFailure) || IsCode(err, CodeDownstreamTimeout)
}

// IsStoreNotFound reports whether err is a StoreNotFound error
func IsStoreNotFound(err error) bool { return IsCode(err, CodeStoreNotFound) }

// IsUnauthenticated reports whether err is an Unauthenticated error
func IsUnauthenticated(err error) bool { return IsCode(err, CodeUnauthenticated) }

// IsRetryable reports whether the operation that produced err may be retried.
// Only downstream errors are ever retryable; the core never retries tool
// calls on behalf of the client.
func IsRetryable(err error) bool {
	mcpErr, ok := AsMCPError(err)
	if !ok {
		return false
	}
	if data, ok := mcpErr.Data().(*DownstreamErrorData); ok {
		return data.Retryable
	}
	return mcpErr.Category() == CategoryTimeout
}

// retryableStatus reports whether an HTTP status from the downstream warrants
// another attempt.
func retryableStatus(status int) bool {
	switch {
	case status == 429:
		return true
	case status >= 500 && status != 501:
		return true
	default:
		return false
	}
}

// normalizeBody preserves JSON bodies verbatim and quotes everything else so
// DownstreamErrorData.Body is always valid JSON.
func normalizeBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return json.RawMessage(quoted)
}
