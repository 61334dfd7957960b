package errors

import (
	"context"
	"fmt"

	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

// ToJSONRPCResponse converts any error to a JSON-RPC error response carrying
// the taxonomy code when err is an MCPError and CodeInternalError otherwise.
func ToJSONRPCResponse(err error, requestID interface{}) (*protocol.Response, error) {
	if err == nil {
		return nil, fmt.Errorf("cannot create error response from nil error")
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return protocol.NewErrorResponse(requestID, protocol.ErrorCode(mcpErr.Code()), mcpErr.Message(), mcpErr.Data())
	}

	return protocol.NewErrorResponse(requestID, protocol.ErrorCode(CodeInternalError), err.Error(), nil)
}

// ToProtocolError converts any error to a JSON-RPC error object
func ToProtocolError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return &protocol.Error{
			Code:    protocol.ErrorCode(mcpErr.Code()),
			Message: mcpErr.Message(),
			Data:    mcpErr.Data(),
		}
	}

	return &protocol.Error{
		Code:    protocol.ErrorCode(CodeInternalError),
		Message: err.Error(),
	}
}

// FromProtocolError converts a JSON-RPC error object back into an MCPError
func FromProtocolError(errObj *protocol.Error) MCPError {
	if errObj == nil {
		return nil
	}

	code := int(errObj.Code)
	mcpErr := NewError(code, errObj.Message, GetErrorCodeCategory(code), GetErrorCodeSeverity(code))
	if errObj.Data != nil {
		mcpErr = mcpErr.WithData(errObj.Data)
	}
	return mcpErr
}

// ConvertStandardError maps well-known sentinel errors from the standard
// library onto the taxonomy before falling back to CodeInternalError.
func ConvertStandardError(err error) MCPError {
	if err == nil {
		return nil
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr
	}

	switch err {
	case context.Canceled:
		return NewError(CodeInternalError, "Operation cancelled", CategoryInternal, SeverityWarning)
	case context.DeadlineExceeded:
		return NewError(CodeDownstreamTimeout, "Operation timed out", CategoryTimeout, SeverityError)
	}

	return WrapError(err, CodeInternalError, err.Error(), CategoryInternal, SeverityError)
}

// CreateMethodNotFoundError creates a JSON-RPC method not found error
func CreateMethodNotFoundError(method string) MCPError {
	return NewError(
		CodeMethodNotFound,
		fmt.Sprintf("Method not found: %s", method),
		CategoryProtocol,
		SeverityError,
	).WithDetail(method)
}

// CreateInvalidParamsError creates a JSON-RPC invalid params error
func CreateInvalidParamsError(method string, cause error) MCPError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return NewError(
		CodeInvalidParams,
		fmt.Sprintf("Invalid params for method: %s", method),
		CategoryProtocol,
		SeverityError,
	).WithDetail(detail)
}

// CreateParseError creates a JSON-RPC parse error
func CreateParseError(cause error) MCPError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return NewError(
		CodeParseError,
		"Parse error",
		CategoryProtocol,
		SeverityError,
	).WithDetail(detail)
}

// CreateInvalidRequestError creates a JSON-RPC invalid request error
func CreateInvalidRequestError(reason string) MCPError {
	return NewError(
		CodeInvalidRequest,
		fmt.Sprintf("Invalid request: %s", reason),
		CategoryProtocol,
		SeverityError,
	)
}
