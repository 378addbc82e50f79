// Package cache provides the Redis read-through cache used by the API layer
// and the distributed rate limiter.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrCacheMiss is returned when a key is not in the cache
var ErrCacheMiss = errors.New("cache miss")

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_cache_misses_total",
		Help: "Total number of cache misses",
	})

	cacheErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_cache_errors_total",
		Help: "Total number of cache errors",
	})
)

// RedisCache implements a Redis-based cache
type RedisCache struct {
	client *redis.Client
	prefix string
}

// Config holds Redis cache configuration
type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(cfg Config) (*RedisCache, error) {
	if cfg.Address == "" {
		cfg.Address = "localhost:6379"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "capture:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := c.prefix + key

	val, err := c.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		cacheErrors.Inc()
		return nil, fmt.Errorf("cache get error: %w", err)
	}

	cacheHits.Inc()
	return val, nil
}

// Set stores a value in cache with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := c.prefix + key

	if err := c.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
		cacheErrors.Inc()
		return fmt.Errorf("cache set error: %w", err)
	}

	return nil
}

// Delete removes a value from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	fullKey := c.prefix + key

	if err := c.client.Del(ctx, fullKey).Err(); err != nil {
		cacheErrors.Inc()
		return fmt.Errorf("cache delete error: %w", err)
	}

	return nil
}

// Increment increments a counter in cache
func (c *RedisCache) Increment(ctx context.Context, key string) (int64, error) {
	fullKey := c.prefix + key

	val, err := c.client.Incr(ctx, fullKey).Result()
	if err != nil {
		cacheErrors.Inc()
		return 0, fmt.Errorf("cache increment error: %w", err)
	}

	return val, nil
}

// Expire sets a TTL on an existing key
func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	fullKey := c.prefix + key

	if err := c.client.Expire(ctx, fullKey, ttl).Err(); err != nil {
		cacheErrors.Inc()
		return fmt.Errorf("cache expire error: %w", err)
	}

	return nil
}

// SetWithExpiry sets a value with expiration
func (c *RedisCache) SetWithExpiry(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	return c.Set(ctx, key, value, expiry)
}

// GetJSON retrieves and unmarshals JSON from cache
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}

	return nil
}

// SetJSON marshals and stores JSON in cache
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	return c.Set(ctx, key, data, ttl)
}

// Ping checks cache connection
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache ping error: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetStats returns cache statistics
func (c *RedisCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}

	dbSize, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB size: %w", err)
	}

	stats := map[string]interface{}{
		"info":    info,
		"db_size": dbSize,
	}

	return stats, nil
}
