package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Used as a fast read path in front of the durable config store for
// fingerprints and latest-decision lookups. Supports a local LRU
// (single node) or Redis, optionally two-phase (LRU in front of Redis).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key with the given prefix and returns
	// the number removed. Used when fingerprints are wiped.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings: if true, check local first, then Redis.
	EnableTwoPhase bool
}
