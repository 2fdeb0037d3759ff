// Package cache keeps serialized summaries in Redis keyed by the content hash
// of the export they came from.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

// KeyPrefix namespaces summary entries
const KeyPrefix = "checkin-summary:"

// RedisResultCache stores summary payloads with a TTL
type RedisResultCache struct {
	client  redis.Cmdable
	closer  func() error
	ttl     time.Duration
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRedisResultCache connects to Redis and pings it
func NewRedisResultCache(addr, password string, db int, ttl time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*RedisResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, "[CACHE_INIT] Redis result cache initialized", logging.Fields{
		"addr": addr,
		"db":   db,
		"ttl":  ttl.String(),
	})

	c := NewRedisResultCacheFromClient(client, ttl, logger, metricsCollector)
	c.closer = client.Close
	return c, nil
}

// NewRedisResultCacheFromClient wraps an existing client
func NewRedisResultCacheFromClient(client redis.Cmdable, ttl time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *RedisResultCache {
	return &RedisResultCache{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Key returns the Redis key for a content hash
func Key(contentHash string) string {
	return KeyPrefix + contentHash
}

// Get returns the payload for contentHash. A miss is (nil, false, nil).
func (c *RedisResultCache) Get(ctx context.Context, contentHash string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, Key(contentHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCacheLookup("miss")
		return nil, false, nil
	}
	if err != nil {
		c.metrics.RecordCacheLookup("error")
		return nil, false, fmt.Errorf("failed to get from Redis: %w", err)
	}

	c.metrics.RecordCacheLookup("hit")
	c.logger.Debug(ctx, "[CACHE_HIT] Summary served from cache", logging.Fields{
		"content_hash": contentHash,
		"bytes":        len(data),
	})
	return data, true, nil
}

// Set stores payload for contentHash until the TTL expires
func (c *RedisResultCache) Set(ctx context.Context, contentHash string, payload []byte) error {
	if err := c.client.Set(ctx, Key(contentHash), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set data in Redis: %w", err)
	}
	return nil
}

// Delete removes the entry for contentHash
func (c *RedisResultCache) Delete(ctx context.Context, contentHash string) error {
	if err := c.client.Del(ctx, Key(contentHash)).Err(); err != nil {
		return fmt.Errorf("failed to delete from Redis: %w", err)
	}
	return nil
}

// Close closes the connection pool when the cache owns it
func (c *RedisResultCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// HealthCheck pings Redis
func (c *RedisResultCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
