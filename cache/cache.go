package cache

import (
	"context"
	"errors"
	"time"
)

// Cache stores rendered label artifacts.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config holds options shared by the backends.
type Config struct {
	// DefaultTTL applies when Set is called with ttl == 0.
	DefaultTTL time.Duration
	// Prefix is prepended to all keys.
	Prefix string
	// CleanupInterval is how often MemoryCache sweeps expired entries.
	// Zero means one minute.
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultTTL: 24 * time.Hour,
		Prefix:     "kitstock:",
	}
}

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")
