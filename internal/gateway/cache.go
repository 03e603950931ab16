package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/metrics"
)

// CachedClient serves GetServerInfo from Redis when a fresh entry exists.
// Only successful lookups are cached; failures always reach the server.
type CachedClient struct {
	Client
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedClient(inner Client, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedClient {
	if ttl <= 0 {
		ttl = constants.DefaultInfoCacheTTL
	}
	return &CachedClient{
		Client: inner,
		redis:  client,
		ttl:    ttl,
		logger: log,
	}
}

func (c *CachedClient) GetServerInfo(ctx context.Context, serverURL, token string) ServerInfo {
	base, errMsg := normalize(serverURL, token)
	if errMsg != "" {
		return ServerInfo{Error: errMsg}
	}
	key := serverInfoKey(base, token)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var info ServerInfo
		if jsonErr := json.Unmarshal([]byte(val), &info); jsonErr == nil && info.Version != "" {
			metrics.IncServerInfoCache("hit")
			return info
		}
		metrics.IncServerInfoCache("miss")
	case errors.Is(err, redis.Nil):
		metrics.IncServerInfoCache("miss")
	default:
		metrics.IncServerInfoCache("error")
		c.logger.WarnwCtx(ctx, "Server info cache read failed", "error", err, "server", hostOf(base))
	}

	info := c.Client.GetServerInfo(ctx, serverURL, token)
	if info.Error != "" {
		return info
	}

	data, err := json.Marshal(info)
	if err != nil {
		return info
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Server info cache write failed", "error", err, "server", hostOf(base))
	}
	return info
}

// serverInfoKey hashes the URL and token so credentials never appear in Redis.
func serverInfoKey(base, token string) string {
	sum := sha256.Sum256([]byte(base + "\x00" + token))
	return constants.CacheKeyPrefixServerInfo + hex.EncodeToString(sum[:])
}
