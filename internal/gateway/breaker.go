package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"herald/pkg/circuitbreaker"
)

// BreakerClient guards a Client with one circuit breaker per push server
// host. While a breaker is open, calls to that host fail without I/O.
type BreakerClient struct {
	inner    Client
	breakers *circuitbreaker.Registry
}

func NewBreakerClient(inner Client, breakers *circuitbreaker.Registry) *BreakerClient {
	return &BreakerClient{
		inner:    inner,
		breakers: breakers,
	}
}

func (b *BreakerClient) ValidateConnection(ctx context.Context, serverURL, token string) ConnectionResult {
	var result ConnectionResult
	if blocked := b.guard(ctx, serverURL, token, func() string {
		result = b.inner.ValidateConnection(ctx, serverURL, token)
		return result.Error
	}); blocked != "" {
		return ConnectionResult{Error: blocked}
	}
	return result
}

func (b *BreakerClient) SendMessage(ctx context.Context, serverURL, token string, msg Message) SendResult {
	var result SendResult
	if blocked := b.guard(ctx, serverURL, token, func() string {
		result = b.inner.SendMessage(ctx, serverURL, token, msg)
		return result.Error
	}); blocked != "" {
		return SendResult{Error: blocked}
	}
	return result
}

func (b *BreakerClient) GetServerInfo(ctx context.Context, serverURL, token string) ServerInfo {
	var result ServerInfo
	if blocked := b.guard(ctx, serverURL, token, func() string {
		result = b.inner.GetServerInfo(ctx, serverURL, token)
		return result.Error
	}); blocked != "" {
		return ServerInfo{Error: blocked}
	}
	return result
}

// guard runs call through the host's breaker. It returns a non-empty message
// only when call did not run.
func (b *BreakerClient) guard(ctx context.Context, serverURL, token string, call func() string) string {
	base, errMsg := normalize(serverURL, token)
	if errMsg != "" {
		call()
		return ""
	}

	host := hostOf(base)
	cb := b.breakers.Get(host)

	called := false
	_, err := cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		called = true
		if msg := call(); isServerFault(msg) {
			return nil, errors.New(msg)
		}
		return nil, nil
	})
	cb.RecordRequest(err == nil)

	switch {
	case called:
		return ""
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Sprintf("Delivery skipped: circuit breaker is open for %s", host)
	case err != nil:
		return transportError(err, host, 0)
	default:
		return ""
	}
}
