package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// WindowCounter counts hits per key in fixed windows.
type WindowCounter interface {
	Hit(ctx context.Context, key string) (count int64, resetIn time.Duration, err error)
}

type MemoryCounter struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	clients map[string]*clientBucket
}

type clientBucket struct {
	count     int64
	windowEnd time.Time
}

func NewMemoryCounter(window time.Duration) *MemoryCounter {
	return &MemoryCounter{
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (m *MemoryCounter) Hit(_ context.Context, key string) (int64, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.clients[key]
	if !ok || !now.Before(b.windowEnd) {
		m.sweep(now)
		b = &clientBucket{windowEnd: now.Add(m.window)}
		m.clients[key] = b
	}

	b.count++

	return b.count, b.windowEnd.Sub(now), nil
}

// sweep drops expired buckets. Caller holds mu.
func (m *MemoryCounter) sweep(now time.Time) {
	for k, b := range m.clients {
		if !now.Before(b.windowEnd) {
			delete(m.clients, k)
		}
	}
}

// WindowIncrementer is the Redis side of a fixed window counter.
type WindowIncrementer interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RedisCounter struct {
	rdb    WindowIncrementer
	window time.Duration
	prefix string
}

func NewRedisCounter(rdb WindowIncrementer, window time.Duration, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, window: window, prefix: prefix}
}

func (r *RedisCounter) Hit(ctx context.Context, key string) (int64, time.Duration, error) {
	return r.rdb.IncrWindow(ctx, r.prefix+key, r.window)
}

type RateLimiter struct {
	counter WindowCounter
	limit   int64
	log     *slog.Logger
}

func NewRateLimiter(counter WindowCounter, limit int, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimiter{
		counter: counter,
		limit:   int64(limit),
		log:     log,
	}
}

// RateLimiterMiddleware enforces the limit for a derived key. A failing
// counter lets the request through.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		count, resetIn, err := rl.counter.Hit(c.Request.Context(), key)
		if err != nil {
			rl.log.WarnContext(c.Request.Context(), "rate limiter unavailable", "err", err)
			c.Next()
			return
		}

		if count > rl.limit {
			retryAfter := int(resetIn.Seconds())

			if retryAfter < 1 {
				retryAfter = 1
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			abortError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}

		c.Next()
	}
}

// for unauthenticated endpoints: rate limit by route and IP
func KeyByRouteAndIP(c *gin.Context) string {
	return c.FullPath() + "|" + clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
