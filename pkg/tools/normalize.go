package tools

import (
	"encoding/json"
	"strconv"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

// failurePayload is the body of every failure envelope.
type failurePayload struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResult wraps a handler outcome in a result envelope. Strings pass
// through verbatim as one text block; anything else is serialized as
// indented JSON text.
func SuccessResult(outcome interface{}) *protocol.CallToolResult {
	text, ok := outcome.(string)
	if !ok {
		data, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return FailureResult(mcperrors.Internal("encoding tool result", err))
		}
		text = string(data)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{protocol.NewTextContent(text)},
	}
}

// FailureResult renders err as an isError envelope holding one text block
// with the failure message. Structured context travels in details: the raw
// downstream response for downstream failures, field violations for
// argument validation failures.
func FailureResult(err error) *protocol.CallToolResult {
	mcpErr := mcperrors.ConvertStandardError(err)
	if mcpErr == nil {
		mcpErr = mcperrors.Internal("tool call", nil)
	}

	payload := failurePayload{Message: mcpErr.Message()}
	switch data := mcpErr.Data().(type) {
	case *mcperrors.DownstreamErrorData:
		if data != nil {
			payload.Details = data
		}
	case *mcperrors.ValidationErrorData:
		if data != nil && len(data.Violations) > 0 {
			payload.Details = data.Violations
		}
	}

	text, marshalErr := json.MarshalIndent(payload, "", "  ")
	if marshalErr != nil {
		text = []byte(`{"message":` + strconv.Quote(mcpErr.Message()) + `}`)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{protocol.NewTextContent(string(text))},
		IsError: true,
	}
}
