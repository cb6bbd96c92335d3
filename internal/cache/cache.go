// Package cache provides the verdict cache used by the predict
// endpoints to memoize classification results per URL.
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for verdict cache implementations.
// All implementations must be thread-safe. Values are []byte so the
// same interface serves both the in-memory and the Redis backend.
type Cache interface {
	// Get retrieves a value. Returns ErrCacheMiss if the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified TTL. A zero TTL uses the
	// backend's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Error represents an error type for cache operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)
