//go:build integration

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	"herald/internal/logger"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestCachedClient_ServesRepeatLookupsFromRedis(t *testing.T) {
	rdb := setupRedis(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"version":"2.4.0"}`))
	}))
	defer srv.Close()

	c := NewCachedClient(NewHTTPClient(), rdb, time.Minute, logger.NopLogger())
	ctx := context.Background()

	first := c.GetServerInfo(ctx, srv.URL, "tok")
	second := c.GetServerInfo(ctx, srv.URL+"/", "tok")

	assert.Equal(t, "2.4.0", first.Version)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())

	keys, err := rdb.Keys(ctx, "herald:server_info:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "tok")
}

func TestCachedClient_DoesNotCacheFailures(t *testing.T) {
	rdb := setupRedis(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewCachedClient(NewHTTPClient(), rdb, time.Minute, logger.NopLogger())
	ctx := context.Background()

	assert.Contains(t, c.GetServerInfo(ctx, srv.URL, "bad").Error, "Authentication failed")
	assert.Contains(t, c.GetServerInfo(ctx, srv.URL, "bad").Error, "Authentication failed")
	assert.Equal(t, int32(2), hits.Load())
}
