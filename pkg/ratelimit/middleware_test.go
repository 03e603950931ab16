package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestPerClient_Allow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPerClient(ctx, Config{RPS: 1, Burst: 2})

	ok, _ := p.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = p.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, remaining := p.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _ = p.Allow("10.0.0.2")
	assert.True(t, ok, "buckets are per client")
}

func TestPerClient_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPerClient(ctx, Config{RPS: 1, Burst: 1})
	router := gin.New()
	router.Use(p.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}
