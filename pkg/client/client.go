// Package client implements a Go client for the transcript MCP server. It
// speaks every server mode: the persistent SSE channel with POSTed inbound
// messages, the unified request/response endpoint, and the stdio pipe.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/logging"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

const (
	// DefaultSSEPath and DefaultUnifiedPath match the server's default
	// mount points.
	DefaultSSEPath     = "/sse"
	DefaultUnifiedPath = "/mcp"

	// DefaultCallTimeout bounds one request round trip, the endpoint
	// handshake included.
	DefaultCallTimeout = 30 * time.Second

	// maxPayloadBytes bounds one inbound message in any mode.
	maxPayloadBytes = 4 << 20
)

// ErrClosed reports an operation on a closed client.
var ErrClosed = errors.New("client closed")

type mode int

const (
	// modeUnified round-trips every request in one POST.
	modeUnified mode = iota
	// modeChannel POSTs requests and reads responses off the SSE channel.
	modeChannel
	// modePipe writes newline-delimited messages to a byte pipe.
	modePipe
)

// Config configures a Client. BaseURL is required for the HTTP modes and
// ignored by NewStdio.
type Config struct {
	// BaseURL of the server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// Token is sent as a bearer credential when non-empty.
	Token string

	// SSEPath and UnifiedPath override the server's default mount points.
	SSEPath     string
	UnifiedPath string

	// CallTimeout bounds each round trip (default DefaultCallTimeout).
	CallTimeout time.Duration

	// HTTPClient overrides the default client, e.g. to install a proxy.
	HTTPClient *http.Client

	// Name and Version identify this client on initialize.
	Name    string
	Version string

	Logger logging.Logger
}

// Client is a connection to one transcript MCP server. A zero-configured
// client works in unified mode; Connect upgrades it to a persistent channel.
// All methods are safe for concurrent use.
type Client struct {
	baseURL     string
	token       string
	ssePath     string
	unifiedPath string
	httpClient  *http.Client
	callTimeout time.Duration
	logger      logging.Logger
	info        protocol.ClientInfo

	mu       sync.Mutex
	mode     mode
	endpoint string
	pending  map[string]chan *protocol.Response

	// write sends one outbound payload in channel or pipe mode.
	write func(ctx context.Context, payload []byte) error

	pipeMu     sync.Mutex
	pipeWriter *bufio.Writer

	nextID       atomic.Int64
	cancelStream context.CancelFunc

	serverMu sync.RWMutex
	server   *protocol.InitializeResult

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a client in unified mode: every request is one POST and the
// response rides in the body. Call Connect to open a persistent channel.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("client requires a base URL")
	}
	c := newClient(config)
	c.baseURL = strings.TrimRight(config.BaseURL, "/")
	return c, nil
}

func newClient(config Config) *Client {
	ssePath := config.SSEPath
	if ssePath == "" {
		ssePath = DefaultSSEPath
	}
	unifiedPath := config.UnifiedPath
	if unifiedPath == "" {
		unifiedPath = DefaultUnifiedPath
	}
	timeout := config.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	name := config.Name
	if name == "" {
		name = "transcript-mcp-client"
	}
	version := config.Version
	if version == "" {
		version = "dev"
	}

	return &Client{
		token:       config.Token,
		ssePath:     ssePath,
		unifiedPath: unifiedPath,
		httpClient:  httpClient,
		callTimeout: timeout,
		logger:      logger.WithFields(logging.String("component", "Client")),
		info:        protocol.ClientInfo{Name: name, Version: version},
		mode:        modeUnified,
		pending:     make(map[string]chan *protocol.Response),
		done:        make(chan struct{}),
	}
}

// Connect opens the persistent channel: a GET on the SSE path, then the
// endpoint handshake naming the URL inbound messages are POSTed to. After
// Connect returns, responses arrive over the channel instead of POST bodies.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.mu.Lock()
	if c.mode != modeUnified {
		c.mu.Unlock()
		return fmt.Errorf("client already connected")
	}
	c.mu.Unlock()

	// The stream outlives the Connect call; ctx only bounds the handshake.
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+c.ssePath, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("build channel request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("open channel: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		cancel()
		return fmt.Errorf("open channel: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		_ = resp.Body.Close()
		cancel()
		return fmt.Errorf("open channel: unexpected content type %q", ct)
	}

	endpointCh := make(chan string, 1)
	go c.readStream(resp.Body, endpointCh)

	handshakeCtx, cancelHandshake := context.WithTimeout(ctx, c.callTimeout)
	defer cancelHandshake()

	select {
	case raw := <-endpointCh:
		endpoint, err := c.resolveEndpoint(raw)
		if err != nil {
			cancel()
			return err
		}
		c.mu.Lock()
		c.mode = modeChannel
		c.endpoint = endpoint
		c.write = c.postMessage
		c.mu.Unlock()
		c.cancelStream = cancel
		c.logger.Debug("channel established", logging.String("endpoint", endpoint))
		return nil
	case <-handshakeCtx.Done():
		cancel()
		return fmt.Errorf("endpoint handshake: %w", handshakeCtx.Err())
	case <-c.done:
		cancel()
		return ErrClosed
	}
}

// Endpoint returns the per-session message URL, empty before Connect.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Initialize performs the protocol handshake and sends the initialized
// notification. The result is also available later through ServerInfo.
func (c *Client) Initialize(ctx context.Context) (*protocol.InitializeResult, error) {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolRevision,
		ClientInfo:      &c.info,
	}

	resp, err := c.call(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return nil, err
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode initialize result: %w", err)
	}

	if err := c.notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{}); err != nil {
		return nil, err
	}

	c.serverMu.Lock()
	c.server = &result
	c.serverMu.Unlock()
	return &result, nil
}

// ServerInfo returns the initialize result, nil before Initialize.
func (c *Client) ServerInfo() *protocol.InitializeResult {
	c.serverMu.RLock()
	defer c.serverMu.RUnlock()
	return c.server
}

// Ping checks that the server is responding.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MethodPing, protocol.PingParams{})
	return err
}

// ListTools fetches one page of the tool listing. An empty cursor starts
// from the beginning.
func (c *Client) ListTools(ctx context.Context, cursor string) (*protocol.ListToolsResult, error) {
	resp, err := c.call(ctx, protocol.MethodListTools, protocol.ListToolsParams{Cursor: cursor})
	if err != nil {
		return nil, err
	}

	var result protocol.ListToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tool listing: %w", err)
	}
	return &result, nil
}

// CallTool invokes one tool. Arguments may be any JSON-encodable value; nil
// sends none. Tool failures come back as a result with IsError set, not as
// an error; the error return reports protocol and transport failures.
func (c *Client) CallTool(ctx context.Context, name string, arguments interface{}) (*protocol.CallToolResult, error) {
	var raw json.RawMessage
	if arguments != nil {
		encoded, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		raw = encoded
	}

	resp, err := c.call(ctx, protocol.MethodCallTool, protocol.CallToolParams{Name: name, Arguments: raw})
	if err != nil {
		return nil, err
	}

	var result protocol.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}
	return &result, nil
}

// Close tears down the channel and fails every in-flight call. It is safe
// to call more than once and from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.cancelStream != nil {
			c.cancelStream()
		}
		c.failPending()
	})
	return nil
}

// call sends one request and waits for its response. Server-side errors are
// mapped back onto the error taxonomy by code.
func (c *Client) call(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}

	id := c.nextID.Add(1)
	request, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	c.mu.Lock()
	currentMode := c.mode
	write := c.write
	c.mu.Unlock()

	var resp *protocol.Response
	if currentMode == modeUnified {
		resp, err = c.roundTrip(ctx, payload)
		if err != nil {
			return nil, err
		}
	} else {
		ch := make(chan *protocol.Response, 1)
		key := idKey(id)
		c.mu.Lock()
		c.pending[key] = ch
		c.mu.Unlock()

		if err := write(ctx, payload); err != nil {
			c.mu.Lock()
			delete(c.pending, key)
			c.mu.Unlock()
			return nil, err
		}

		select {
		case resp = <-ch:
			if resp == nil {
				return nil, ErrClosed
			}
		case <-ctx.Done():
			c.mu.Lock()
			delete(c.pending, key)
			c.mu.Unlock()
			return nil, fmt.Errorf("%s: %w", method, ctx.Err())
		case <-c.done:
			return nil, ErrClosed
		}
	}

	if resp.Error != nil {
		return nil, mcperrors.FromProtocolError(resp.Error)
	}
	return resp, nil
}

// notify sends one notification; no response is expected in any mode.
func (c *Client) notify(ctx context.Context, method string, params interface{}) error {
	notification, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	c.mu.Lock()
	currentMode := c.mode
	write := c.write
	c.mu.Unlock()

	if currentMode == modeUnified {
		_, err := c.post(ctx, c.baseURL+c.unifiedPath, payload, http.StatusOK, http.StatusAccepted)
		return err
	}
	return write(ctx, payload)
}

// roundTrip POSTs one request to the unified endpoint and decodes the
// response from the body.
func (c *Client) roundTrip(ctx context.Context, payload []byte) (*protocol.Response, error) {
	body, err := c.post(ctx, c.baseURL+c.unifiedPath, payload, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp protocol.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// postMessage hands one message to the channel's per-session endpoint. The
// server acknowledges admission with 202; the response arrives on the stream.
func (c *Client) postMessage(ctx context.Context, payload []byte) error {
	_, err := c.post(ctx, c.endpoint, payload, http.StatusAccepted)
	return err
}

func (c *Client) post(ctx context.Context, target string, payload []byte, acceptable ...int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	for _, status := range acceptable {
		if resp.StatusCode == status {
			return body, nil
		}
	}
	return nil, fmt.Errorf("server rejected message: %s: %s", resp.Status, strings.TrimSpace(string(body)))
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// readStream consumes the SSE channel. The first endpoint event completes
// the handshake; message events carry JSON-RPC responses. When the stream
// ends, every in-flight call fails rather than hanging.
func (c *Client) readStream(body io.ReadCloser, endpointCh chan<- string) {
	defer func() {
		_ = body.Close()
		c.failPending()
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPayloadBytes)

	var event string
	var data bytes.Buffer

	flush := func() {
		if event == "" && data.Len() == 0 {
			return
		}
		name, payload := event, data.String()
		event = ""
		data.Reset()

		switch name {
		case "endpoint":
			select {
			case endpointCh <- payload:
			default:
			}
		case "message", "":
			c.dispatch([]byte(payload))
		default:
			c.logger.Debug("ignoring channel event", logging.String("event", name))
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("channel stream ended", logging.ErrorField(err))
	}
}

// dispatch routes one inbound payload to the call waiting on its id.
func (c *Client) dispatch(raw []byte) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return
	}
	if !protocol.IsResponse(raw) {
		c.logger.Debug("dropping non-response payload")
		return
	}

	var resp protocol.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("undecodable response", logging.ErrorField(err))
		return
	}

	key := idKey(resp.ID)
	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response with no pending call", logging.String("id", key))
		return
	}
	ch <- &resp
}

// failPending closes every waiter; their calls return ErrClosed.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, ch := range c.pending {
		delete(c.pending, key)
		close(ch)
	}
}

// resolveEndpoint resolves the announced endpoint, usually relative, against
// the base URL.
func (c *Client) resolveEndpoint(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// idKey normalizes a JSON-RPC id for pending-map lookup. Ids sent as int64
// come back as JSON numbers; both render the same here.
func idKey(id interface{}) string {
	return fmt.Sprintf("%v", id)
}
