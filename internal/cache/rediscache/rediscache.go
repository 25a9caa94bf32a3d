// Package rediscache implements the Cache port over Redis, completing the
// teacher's CacheRepository (internal/repository/repository.go), which
// stubbed Get/Set with TODOs.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/queueme/scheduling-core/internal/config"
)

// Cache is a Redis-backed cache.Cache implementation.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Connect parses the configured Redis URL and builds a client, grounded on
// the teacher's database.ConnectRedis.
func Connect(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Get returns the value, whether it was present, and any non-miss error.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key with the given TTL; ttl <= 0 means no
// expiration.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}
