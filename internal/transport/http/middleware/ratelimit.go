package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	resp "user-api/internal/transport/http/response"
)

// Limiter decides whether one more request for key fits its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

// RateLimit is a process-wide token bucket. A non-positive burst disables it.
func RateLimit(rps rate.Limit, burst int, m *Metrics) gin.HandlerFunc {
	if burst <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		m.RateLimited("global")
		resp.Abort(c, resp.CodeTooManyRequests, "")
	}
}

// RateLimitBy applies lim per key(c). Limiter errors are logged and the
// request is let through.
func RateLimitBy(name string, lim Limiter, key func(*gin.Context) string, l *zap.Logger, m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry, err := lim.Allow(c.Request.Context(), key(c))
		if err != nil {
			l.Warn("rate limiter unavailable", zap.String("limiter", name), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			m.RateLimited(name)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			resp.Abort(c, resp.CodeTooManyRequests, "")
			return
		}
		c.Next()
	}
}

func ClientIP(c *gin.Context) string { return c.ClientIP() }

// MemoryLimiter keeps one token bucket per key. Buckets idle for a full
// window are evicted; by then they would be full again anyway.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
	every   rate.Limit
	burst   int
}

// NewMemoryLimiter allows limit requests per window per key, refilling evenly.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	limit = max(limit, 1)
	return &MemoryLimiter{
		buckets: cache.New(window, 2*window),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lim *rate.Limiter
	if v, ok := m.buckets.Get(key); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(m.every, m.burst)
	}
	m.buckets.Set(key, lim, cache.DefaultExpiration)

	if lim.Allow() {
		return true, 0, nil
	}
	r := lim.Reserve()
	delay := r.Delay()
	r.Cancel()
	return false, delay, nil
}

// Len is the number of live buckets.
func (m *MemoryLimiter) Len() int { return m.buckets.ItemCount() }

// RedisLimiter is a fixed window counter shared by every replica.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.Cmdable, limit int, window time.Duration, prefix string) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: int64(max(limit, 1)), window: window, prefix: prefix, now: time.Now}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := r.now()
	slot := now.UnixNano() / int64(r.window)
	k := fmt.Sprintf("%s:%s:%d", r.prefix, key, slot)

	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("redis rate limit: %w", err)
	}
	if incr.Val() <= r.limit {
		return true, 0, nil
	}
	reset := time.Unix(0, (slot+1)*int64(r.window))
	return false, reset.Sub(now), nil
}
