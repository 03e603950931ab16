package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/metrics"
	"herald/pkg/tracing"
)

const (
	TokenHeader = "X-Gotify-Key"

	healthPath  = "/health"
	messagePath = "/message"

	unknownVersion = "unknown"
	tracerName     = "herald-gateway"

	opValidate = "validate_connection"
	opSend     = "send_message"
	opInfo     = "server_info"

	maxResponseBytes = 1 << 20
)

// Message is the payload submitted to a push server. A nil Priority means the
// default priority.
type Message struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority *int   `json:"priority,omitempty"`
}

type ConnectionResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ServerInfo struct {
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client talks to push notification servers. Every operation reports failures
// inside its result and never returns a Go error.
type Client interface {
	ValidateConnection(ctx context.Context, serverURL, token string) ConnectionResult
	SendMessage(ctx context.Context, serverURL, token string, msg Message) SendResult
	GetServerInfo(ctx context.Context, serverURL, token string) ServerInfo
}

type HTTPClient struct {
	http   *http.Client
	logger logger.Logger
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying client. Its timeout bounds every call.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.http = c
	}
}

func WithLogger(log logger.Logger) Option {
	return func(h *HTTPClient) {
		h.logger = log
	}
}

func NewHTTPClient(opts ...Option) *HTTPClient {
	c := &HTTPClient{
		http:   &http.Client{Timeout: constants.DefaultGatewayTimeout},
		logger: logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClientWithTimeout builds a client with a dedicated http.Client.
// Non-positive timeouts fall back to the default.
func NewHTTPClientWithTimeout(timeout time.Duration, opts ...Option) *HTTPClient {
	if timeout <= 0 {
		timeout = constants.DefaultGatewayTimeout
	}
	return NewHTTPClient(append([]Option{WithHTTPClient(&http.Client{Timeout: timeout})}, opts...)...)
}

func (c *HTTPClient) ValidateConnection(ctx context.Context, serverURL, token string) ConnectionResult {
	base, errMsg := normalize(serverURL, token)
	if errMsg != "" {
		return ConnectionResult{Error: errMsg}
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "gateway.ValidateConnection",
		attribute.String("server.host", hostOf(base)))
	defer span.End()

	start := time.Now()
	resp, errMsg := c.do(ctx, http.MethodGet, base+healthPath, token, nil)
	if errMsg != "" {
		c.observe(opValidate, start, errMsg)
		c.logFailure(ctx, opValidate, base, errMsg)
		return ConnectionResult{Error: errMsg}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		errMsg = statusError(resp.StatusCode, false)
		c.observe(opValidate, start, errMsg)
		return ConnectionResult{Error: errMsg}
	}

	c.observe(opValidate, start, "")
	return ConnectionResult{Valid: true}
}

func (c *HTTPClient) SendMessage(ctx context.Context, serverURL, token string, msg Message) SendResult {
	base, errMsg := normalize(serverURL, token)
	if errMsg != "" {
		return SendResult{Error: errMsg}
	}

	priority, errMsg := validateMessage(msg)
	if errMsg != "" {
		return SendResult{Error: errMsg}
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "gateway.SendMessage",
		attribute.String("server.host", hostOf(base)),
		attribute.Int("message.priority", priority))
	defer span.End()

	body, err := json.Marshal(map[string]interface{}{
		"title":    msg.Title,
		"message":  msg.Message,
		"priority": priority,
	})
	if err != nil {
		return SendResult{Error: fmt.Sprintf("Failed to encode message: %v", err)}
	}

	target := base + messagePath + "?token=" + url.QueryEscape(token)

	start := time.Now()
	resp, errMsg := c.do(ctx, http.MethodPost, target, "", body)
	if errMsg != "" {
		c.observe(opSend, start, errMsg)
		c.logFailure(ctx, opSend, base, errMsg)
		return SendResult{Error: errMsg}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errMsg = statusError(resp.StatusCode, true)
		c.observe(opSend, start, errMsg)
		c.logFailure(ctx, opSend, base, errMsg)
		return SendResult{Error: errMsg}
	}

	var payload struct {
		ID interface{} `json:"id"`
	}
	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	decoder.UseNumber()
	_ = decoder.Decode(&payload)

	id := messageID(payload.ID)
	if id == "" {
		errMsg = "Invalid response from server: missing message id"
		c.observe(opSend, start, errMsg)
		return SendResult{Error: errMsg}
	}

	c.observe(opSend, start, "")
	return SendResult{Success: true, MessageID: id}
}

func (c *HTTPClient) GetServerInfo(ctx context.Context, serverURL, token string) ServerInfo {
	base, errMsg := normalize(serverURL, token)
	if errMsg != "" {
		return ServerInfo{Error: errMsg}
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "gateway.GetServerInfo",
		attribute.String("server.host", hostOf(base)))
	defer span.End()

	start := time.Now()
	resp, errMsg := c.do(ctx, http.MethodGet, base+healthPath, token, nil)
	if errMsg != "" {
		c.observe(opInfo, start, errMsg)
		c.logFailure(ctx, opInfo, base, errMsg)
		return ServerInfo{Error: errMsg}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errMsg = statusError(resp.StatusCode, false)
		c.observe(opInfo, start, errMsg)
		return ServerInfo{Error: errMsg}
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil || payload.Version == "" {
		payload.Version = unknownVersion
	}

	c.observe(opInfo, start, "")
	return ServerInfo{Version: payload.Version}
}

// do performs one request. The token is sent as a header when non-empty; the
// returned error string never contains the request URL.
func (c *HTTPClient) do(ctx context.Context, method, target, token string, body []byte) (*http.Response, string) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Sprintf("Failed to create request: %v", redact(err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err, hostOf(target), c.timeout())
	}
	return resp, ""
}

func (c *HTTPClient) timeout() time.Duration {
	if c.http.Timeout > 0 {
		return c.http.Timeout
	}
	return constants.DefaultGatewayTimeout
}

func (c *HTTPClient) observe(operation string, start time.Time, errMsg string) {
	status := "success"
	if errMsg != "" {
		status = "failure"
	}
	metrics.IncGatewayRequest(operation, status)
	metrics.ObserveGatewayRequestDuration(operation, time.Since(start))
}

func (c *HTTPClient) logFailure(ctx context.Context, operation, base, errMsg string) {
	c.logger.WarnwCtx(ctx, "Push server request failed",
		"operation", operation,
		"server", hostOf(base),
		"error", errMsg,
	)
}

// normalize validates the server URL and token and returns the URL without a
// trailing slash. A non-empty second value is the user facing error.
func normalize(serverURL, token string) (string, string) {
	trimmed := strings.TrimRight(strings.TrimSpace(serverURL), "/")

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "Invalid server URL: must be an absolute http or https URL"
	}
	if strings.TrimSpace(token) == "" {
		return "", "Invalid token: token must not be empty"
	}
	return trimmed, ""
}

func validateMessage(msg Message) (int, string) {
	if strings.TrimSpace(msg.Title) == "" {
		return 0, "Invalid message: title is required"
	}
	if strings.TrimSpace(msg.Message) == "" {
		return 0, "Invalid message: message is required"
	}

	priority := constants.DefaultPriority
	if msg.Priority != nil {
		priority = *msg.Priority
	}
	if priority < constants.MinPriority || priority > constants.MaxPriority {
		return 0, fmt.Sprintf("Priority must be between %d and %d, got %d",
			constants.MinPriority, constants.MaxPriority, priority)
	}
	return priority, ""
}

func messageID(v interface{}) string {
	switch id := v.(type) {
	case json.Number:
		return id.String()
	case string:
		return strings.TrimSpace(id)
	default:
		return ""
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
