// Package cache holds the shared vocabulary term cache. Values are opaque bytes;
// callers own the encoding.
package cache

import (
	"context"
	"time"
)

// Cache is safe for concurrent use by multiple requests.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
