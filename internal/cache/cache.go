// Package cache stores serialized query results so repeated questions skip
// retrieval and narration.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atlasworkforce/labor-intel/internal/config"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Open returns a cache client for the configured driver.
func Open(cfg config.CacheConfig) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryClient(cfg.MaxEntries), nil
	case "redis":
		return NewRedisClient(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// Key joins components into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// QueryKey builds the key for a user query's cached result. Queries are
// normalized so casing and spacing differences hit the same entry.
func QueryKey(query, category string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if category == "" {
		return Key("query", normalized)
	}
	return Key("query", category, normalized)
}
