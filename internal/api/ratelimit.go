package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CacheInterface defines the cache operations needed for distributed rate
// limiting.
type CacheInterface interface {
	Increment(ctx context.Context, key string) (int64, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, expiry time.Duration) error
}

// RateLimiter manages one token bucket per client.
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a per-client rate limiter allowing rps requests per
// second with the given burst.
func NewRateLimiter(rps int, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}

	go rl.cleanup()

	return rl
}

// GetLimiter returns the rate limiter for the given client key.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = time.Now()

	return cl.limiter
}

// cleanup removes limiters for clients not seen in over an hour.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute * 5)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, cl := range rl.limiters {
			if now.Sub(cl.lastSeen) > time.Hour {
				delete(rl.limiters, key)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIdentifier keys rate limiting by API key when present, otherwise by
// client IP.
func clientIdentifier(c *gin.Context) string {
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		return "apikey:" + apiKey
	}
	return c.ClientIP()
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientLimiter := limiter.GetLimiter(clientIdentifier(c))

		if !clientLimiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// DistributedRateLimiter implements Redis-backed rate limiting so that the
// limit holds across replicas.
type DistributedRateLimiter struct {
	cache  CacheInterface
	limit  int64
	window time.Duration
}

// NewDistributedRateLimiter creates a distributed rate limiter
func NewDistributedRateLimiter(cache CacheInterface, requestsPerMinute int) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		cache:  cache,
		limit:  int64(requestsPerMinute),
		window: time.Minute,
	}
}

// Allow checks if a request should be allowed. Cache failures allow the
// request (fail open).
func (drl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, now.Unix()/60)

	count, err := drl.cache.Increment(ctx, windowKey)
	if err != nil {
		return true, err
	}

	// Set expiry on first increment
	if count == 1 {
		drl.cache.SetWithExpiry(ctx, windowKey, []byte("1"), drl.window*2)
	}

	return count <= drl.limit, nil
}

// DistributedRateLimitMiddleware creates a distributed rate limiting middleware
func DistributedRateLimitMiddleware(limiter *DistributedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), clientIdentifier(c))
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
