package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"herald/pkg/metrics"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// PerClient keeps one token bucket per client IP. Idle buckets are evicted
// until ctx is done.
type PerClient struct {
	cfg Config

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func NewPerClient(ctx context.Context, cfg Config) *PerClient {
	p := &PerClient{
		cfg:      cfg,
		limiters: make(map[string]*clientLimiter),
	}

	if cfg.CleanupInterval > 0 {
		go p.cleanupLoop(ctx)
	}

	return p
}

func (p *PerClient) Allow(key string) (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cl, ok := p.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)}
		p.limiters[key] = cl
	}
	cl.lastSeen = time.Now()

	allowed := cl.limiter.Allow()
	remaining := int(cl.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

func (p *PerClient) Middleware() gin.HandlerFunc {
	limit := strconv.Itoa(int(p.cfg.RPS))

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		allowed, remaining := p.Allow(clientIP)
		c.Header("X-RateLimit-Limit", limit)

		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}

func (p *PerClient) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.mu.Lock()
			for key, cl := range p.limiters {
				if now.Sub(cl.lastSeen) > p.cfg.MaxAge {
					delete(p.limiters, key)
				}
			}
			p.mu.Unlock()
		}
	}
}
