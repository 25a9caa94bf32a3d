// Package cache defines the pluggable cache port the core assumes nothing
// about the storage of. It exists purely so the Availability Engine can
// memoize a day's computed slot list; a miss or a disabled cache must never
// change the result, only its latency.
package cache

import (
	"context"
	"time"
)

// Cache is Get/Set with TTL semantics, nothing more.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Null is a no-op cache for when no cache backend is configured.
type Null struct{}

func (Null) Get(ctx context.Context, key string) (string, bool, error) { return "", false, nil }
func (Null) Set(ctx context.Context, key, value string, ttl time.Duration) error { return nil }
