package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"herald/pkg/circuitbreaker"
)

type fakeClient struct {
	sendCalls int
	sendError string
}

func (f *fakeClient) ValidateConnection(ctx context.Context, serverURL, token string) ConnectionResult {
	return ConnectionResult{Valid: true}
}

func (f *fakeClient) SendMessage(ctx context.Context, serverURL, token string, msg Message) SendResult {
	f.sendCalls++
	if f.sendError != "" {
		return SendResult{Error: f.sendError}
	}
	return SendResult{Success: true, MessageID: "1"}
}

func (f *fakeClient) GetServerInfo(ctx context.Context, serverURL, token string) ServerInfo {
	return ServerInfo{Version: "2.0.0"}
}

func testBreakers(name string) *circuitbreaker.Registry {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.MinRequests = 2
	cfg.FailureRatio = 1
	cfg.Timeout = time.Minute
	return circuitbreaker.NewRegistry(cfg)
}

func TestBreakerClient_OpensOnServerFaults(t *testing.T) {
	inner := &fakeClient{sendError: "Connection refused: no server is listening at push.example.com"}
	c := NewBreakerClient(inner, testBreakers("gateway-open"))
	msg := Message{Title: "t", Message: "m"}

	for i := 0; i < 2; i++ {
		res := c.SendMessage(context.Background(), "https://push.example.com", "tok", msg)
		assert.Contains(t, res.Error, "Connection refused")
	}

	res := c.SendMessage(context.Background(), "https://push.example.com", "tok", msg)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "circuit breaker is open")
	assert.Equal(t, 2, inner.sendCalls)

	other := c.SendMessage(context.Background(), "https://other.example.com", "tok", msg)
	assert.Contains(t, other.Error, "Connection refused")
	assert.Equal(t, 3, inner.sendCalls)
}

func TestBreakerClient_AuthFailuresDoNotTrip(t *testing.T) {
	inner := &fakeClient{sendError: "Authentication failed: invalid token"}
	c := NewBreakerClient(inner, testBreakers("gateway-auth"))
	msg := Message{Title: "t", Message: "m"}

	for i := 0; i < 5; i++ {
		res := c.SendMessage(context.Background(), "https://push.example.com", "tok", msg)
		assert.Contains(t, res.Error, "Authentication failed")
	}
	assert.Equal(t, 5, inner.sendCalls)
}

func TestBreakerClient_InvalidInputBypassesBreaker(t *testing.T) {
	c := NewBreakerClient(NewHTTPClient(), testBreakers("gateway-invalid"))

	res := c.ValidateConnection(context.Background(), "not-a-url", "tok")
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "Invalid")
}

func TestBreakerClient_PassesResultsThrough(t *testing.T) {
	c := NewBreakerClient(&fakeClient{}, testBreakers("gateway-pass"))

	assert.True(t, c.ValidateConnection(context.Background(), "https://push.example.com", "tok").Valid)
	assert.Equal(t, "2.0.0", c.GetServerInfo(context.Background(), "https://push.example.com", "tok").Version)

	res := c.SendMessage(context.Background(), "https://push.example.com", "tok", Message{Title: "t", Message: "m"})
	assert.True(t, res.Success)
	assert.Equal(t, "1", res.MessageID)
}

func TestBreakerClient_CancelledContext(t *testing.T) {
	inner := &fakeClient{}
	c := NewBreakerClient(inner, testBreakers("gateway-cancel"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.SendMessage(ctx, "https://push.example.com", "tok", Message{Title: "t", Message: "m"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cancelled")
	assert.Equal(t, 0, inner.sendCalls)
}
