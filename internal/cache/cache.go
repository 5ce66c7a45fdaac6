// Package cache provides a key-value store with TTL for query
// embeddings and ranked-result lists. Two backends are available: an
// in-process LRU and a remote Redis KV; selection happens once at init.
// If the remote backend fails to initialize or operate, the component
// logs and falls back to in-memory — callers are never notified.
package cache

import (
	"context"
	"time"
)

// Cache is the key-value contract every backend implements. All
// operations are safe for concurrent callers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}
