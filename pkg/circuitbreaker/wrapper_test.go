package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapper_OpensAfterFailureRatio(t *testing.T) {
	cfg := DefaultConfig("test-open")
	cfg.Timeout = time.Minute
	w := NewWrapper(cfg)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
	}

	assert.True(t, w.IsOpen())

	_, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) {
		t.Fatal("must not run while open")
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestWrapper_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-cancel"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRegistry_OneBreakerPerKey(t *testing.T) {
	r := NewRegistry(DefaultConfig("gateway"))

	a := r.Get("https://push-a.example.com")
	b := r.Get("https://push-b.example.com")

	assert.Same(t, a, r.Get("https://push-a.example.com"))
	assert.NotSame(t, a, b)
	assert.Equal(t, "gateway:https://push-a.example.com", a.Name())
}
