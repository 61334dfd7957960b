package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/pagination"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

// stubInvoker is a canned tool registry for runtime tests.
type stubInvoker struct {
	tools   []protocol.Tool
	invoke  func(ctx context.Context, name string, args json.RawMessage) *protocol.CallToolResult
	invoked atomic.Int32
}

func (s *stubInvoker) List() []protocol.Tool {
	return s.tools
}

func (s *stubInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) *protocol.CallToolResult {
	s.invoked.Add(1)
	if s.invoke != nil {
		return s.invoke(ctx, name, args)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{protocol.NewTextContent("stub:" + name)},
	}
}

func stubTools(names ...string) []protocol.Tool {
	tools := make([]protocol.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, protocol.Tool{
			Name:        name,
			InputSchema: json.RawMessage(`{"type": "object"}`),
		})
	}
	return tools
}

func newTestRuntime(invoker ToolInvoker) *Runtime {
	return NewRuntime(invoker, RuntimeConfig{
		ServerName:    "test-server",
		ServerVersion: "0.0.1",
	})
}

func decodeResponse(t *testing.T, raw []byte) *protocol.Response {
	t.Helper()
	if raw == nil {
		t.Fatal("expected a response, got nil")
	}
	var response protocol.Response
	if err := json.Unmarshal(raw, &response); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, raw)
	}
	if response.JSONRPC != protocol.JSONRPCVersion {
		t.Errorf("response jsonrpc = %q, want %q", response.JSONRPC, protocol.JSONRPCVersion)
	}
	return &response
}

func decodeResult(t *testing.T, response *protocol.Response, out interface{}) {
	t.Helper()
	if response.Error != nil {
		t.Fatalf("expected a result, got error: %v", response.Error)
	}
	if err := json.Unmarshal(response.Result, out); err != nil {
		t.Fatalf("result does not decode: %v\n%s", err, response.Result)
	}
}

func TestHandleMessageParseError(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{not json`)))
	if response.ID != nil {
		t.Errorf("parse error must carry a null id, got %v", response.ID)
	}
	if response.Error == nil || int(response.Error.Code) != mcperrors.CodeParseError {
		t.Fatalf("expected code %d, got %v", mcperrors.CodeParseError, response.Error)
	}
}

func TestHandleMessageInitialize(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	request := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test-client","version":"1.0"}}}`)
	response := decodeResponse(t, rt.HandleMessage(context.Background(), request))

	var result protocol.InitializeResult
	decodeResult(t, response, &result)

	if result.ProtocolVersion != protocol.ProtocolRevision {
		t.Errorf("protocolVersion = %q, want %q", result.ProtocolVersion, protocol.ProtocolRevision)
	}
	if result.Capabilities.Tools == nil {
		t.Error("initialize result missing the tools capability")
	}
	if result.ServerInfo.Name != "test-server" || result.ServerInfo.Version != "0.0.1" {
		t.Errorf("unexpected serverInfo: %+v", result.ServerInfo)
	}
}

func TestHandleMessageInitializedNotification(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	if got := rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); got != nil {
		t.Errorf("notification produced a response: %s", got)
	}
}

func TestHandleMessagePing(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":"ping-1","method":"ping"}`)))
	if response.ID != "ping-1" {
		t.Errorf("string id not echoed, got %v", response.ID)
	}
	if response.Error != nil {
		t.Fatalf("ping failed: %v", response.Error)
	}
	if string(response.Result) != "{}" {
		t.Errorf("ping result = %s, want {}", response.Result)
	}
}

func TestHandleMessageNumericID(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":42,"method":"ping"}`)))
	if id, ok := response.ID.(float64); !ok || id != 42 {
		t.Errorf("numeric id not echoed, got %v (%T)", response.ID, response.ID)
	}
}

func TestHandleMessageMethodNotFound(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"resources/list"}`)))
	if response.Error == nil || int(response.Error.Code) != mcperrors.CodeMethodNotFound {
		t.Fatalf("expected code %d, got %v", mcperrors.CodeMethodNotFound, response.Error)
	}
	if !strings.Contains(response.Error.Message, "resources/list") {
		t.Errorf("error should name the method, got %q", response.Error.Message)
	}

	// The unknown method as a notification is dropped, not answered.
	if got := rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"resources/list"}`)); got != nil {
		t.Errorf("unknown notification produced a response: %s", got)
	}
}

func TestHandleMessageRejectsWrongVersion(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"1.0","id":3,"method":"ping"}`)))
	if response.Error == nil || int(response.Error.Code) != mcperrors.CodeInvalidRequest {
		t.Fatalf("expected code %d, got %v", mcperrors.CodeInvalidRequest, response.Error)
	}
}

func TestHandleMessageDropsInboundResponse(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	if got := rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":9,"result":{}}`)); got != nil {
		t.Errorf("inbound response was answered: %s", got)
	}
}

func TestHandleMessageListTools(t *testing.T) {
	invoker := &stubInvoker{tools: stubTools("get_transcript", "list_tracks", "save_transcript")}
	rt := newTestRuntime(invoker)

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":4,"method":"tools/list"}`)))

	var result protocol.ListToolsResult
	decodeResult(t, response, &result)
	if len(result.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(result.Tools))
	}
	if result.NextCursor != "" {
		t.Errorf("unexpected next cursor %q", result.NextCursor)
	}
}

func TestHandleMessageListToolsPaginated(t *testing.T) {
	invoker := &stubInvoker{tools: stubTools("a", "b", "c")}
	rt := NewRuntime(invoker, RuntimeConfig{ToolPageSize: 2})

	first := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	var page1 protocol.ListToolsResult
	decodeResult(t, first, &page1)
	if len(page1.Tools) != 2 || page1.NextCursor == "" {
		t.Fatalf("expected a full first page with a cursor, got %d tools, cursor %q", len(page1.Tools), page1.NextCursor)
	}

	request, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
		"params":  protocol.ListToolsParams{Cursor: page1.NextCursor},
	})
	second := decodeResponse(t, rt.HandleMessage(context.Background(), request))
	var page2 protocol.ListToolsResult
	decodeResult(t, second, &page2)
	if len(page2.Tools) != 1 || page2.NextCursor != "" {
		t.Fatalf("expected a final page of 1, got %d tools, cursor %q", len(page2.Tools), page2.NextCursor)
	}
	if page2.Tools[0].Name != "c" {
		t.Errorf("second page starts at %q, want c", page2.Tools[0].Name)
	}
}

func TestHandleMessageListToolsBadCursor(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{tools: stubTools("a")})

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":5,"method":"tools/list","params":{"cursor":"%%%not-base64%%%"}}`)))
	if response.Error == nil || int(response.Error.Code) != mcperrors.CodeInvalidCursor {
		t.Fatalf("expected code %d, got %v", mcperrors.CodeInvalidCursor, response.Error)
	}
}

func TestHandleMessageListToolsEmptyIsArray(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})

	raw := rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":6,"method":"tools/list"}`))
	if !strings.Contains(string(raw), `"tools":[]`) {
		t.Errorf("empty tool list must encode as [], got %s", raw)
	}
}

func TestHandleMessageCallTool(t *testing.T) {
	var gotName string
	var gotArgs json.RawMessage
	invoker := &stubInvoker{
		invoke: func(ctx context.Context, name string, args json.RawMessage) *protocol.CallToolResult {
			gotName = name
			gotArgs = args
			return &protocol.CallToolResult{
				Content: []protocol.Content{protocol.NewTextContent("transcript text")},
			}
		},
	}
	rt := newTestRuntime(invoker)

	request := []byte(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"get_transcript","arguments":{"video_url":"dQw4w9WgXcQ"}}}`)
	response := decodeResponse(t, rt.HandleMessage(context.Background(), request))

	if gotName != "get_transcript" {
		t.Errorf("invoked %q, want get_transcript", gotName)
	}
	if !strings.Contains(string(gotArgs), "dQw4w9WgXcQ") {
		t.Errorf("arguments not passed through: %s", gotArgs)
	}

	var result protocol.CallToolResult
	decodeResult(t, response, &result)
	if result.IsError {
		t.Fatal("expected a success envelope")
	}
	if result.Content[0].Text != "transcript text" {
		t.Errorf("unexpected envelope text %q", result.Content[0].Text)
	}
}

func TestHandleMessageCallToolFailureStaysResult(t *testing.T) {
	invoker := &stubInvoker{
		invoke: func(ctx context.Context, name string, args json.RawMessage) *protocol.CallToolResult {
			return &protocol.CallToolResult{
				Content: []protocol.Content{protocol.NewTextContent(`{"message":"Unknown tool: nope"}`)},
				IsError: true,
			}
		},
	}
	rt := newTestRuntime(invoker)

	response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"nope"}}`)))
	if response.Error != nil {
		t.Fatalf("tool failure leaked into a protocol error: %v", response.Error)
	}

	var result protocol.CallToolResult
	decodeResult(t, response, &result)
	if !result.IsError {
		t.Error("expected the isError envelope to pass through")
	}
}

func TestHandleMessageCallToolMissingParams(t *testing.T) {
	invoker := &stubInvoker{}
	rt := newTestRuntime(invoker)

	for _, request := range []string{
		`{"jsonrpc":"2.0","id":9,"method":"tools/call"}`,
		`{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{}}`,
		`{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":""}}`,
	} {
		response := decodeResponse(t, rt.HandleMessage(context.Background(), []byte(request)))
		if response.Error == nil || int(response.Error.Code) != mcperrors.CodeInvalidParams {
			t.Errorf("request %s: expected code %d, got %v", request, mcperrors.CodeInvalidParams, response.Error)
		}
	}
	if invoker.invoked.Load() != 0 {
		t.Errorf("registry invoked %d times on invalid params", invoker.invoked.Load())
	}
}

func TestHandleMessageConcurrent(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{tools: stubTools("t")})

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			request := []byte(`{"jsonrpc":"2.0","id":` + string(rune('0'+i%10)) + `,"method":"ping"}`)
			raw := rt.HandleMessage(context.Background(), request)
			if raw == nil || !strings.Contains(string(raw), `"result"`) {
				errs <- string(raw)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("concurrent handle failed: %s", e)
	}
}

type inboundRecorder struct {
	mu      sync.Mutex
	methods []string
	statts  []string
	errors  []string
}

func (m *inboundRecorder) RecordInboundMessage(ctx context.Context, method, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods = append(m.methods, method)
	m.statts = append(m.statts, status)
}

func (m *inboundRecorder) RecordSessionEvent(ctx context.Context, event string) {}

func (m *inboundRecorder) RecordActiveSessions(ctx context.Context, delta int) {}

func (m *inboundRecorder) RecordError(ctx context.Context, kind, method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func TestHandleMessageRecordsMetrics(t *testing.T) {
	recorder := &inboundRecorder{}
	rt := NewRuntime(&stubInvoker{}, RuntimeConfig{Metrics: recorder})

	rt.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	rt.HandleMessage(context.Background(), []byte(`{broken`))

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.methods) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(recorder.methods))
	}
	if recorder.methods[0] != "ping" || recorder.statts[0] != "ok" {
		t.Errorf("first observation = %s/%s, want ping/ok", recorder.methods[0], recorder.statts[0])
	}
	if recorder.methods[1] != "parse" || recorder.statts[1] != "error" {
		t.Errorf("second observation = %s/%s, want parse/error", recorder.methods[1], recorder.statts[1])
	}
	if len(recorder.errors) != 1 {
		t.Errorf("expected 1 error record, got %d", len(recorder.errors))
	}
}

func TestRuntimeDefaultPageSize(t *testing.T) {
	rt := newTestRuntime(&stubInvoker{})
	if rt.toolPageSize != pagination.DefaultLimit {
		t.Errorf("default page size = %d, want %d", rt.toolPageSize, pagination.DefaultLimit)
	}
}
