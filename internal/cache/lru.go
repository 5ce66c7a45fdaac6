package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type lruEntry struct {
	value   []byte
	expires time.Time
}

// LRUCache is the in-process cache backend, bounded to one entry count.
// It keeps no separate budgets for embeddings and result lists: every
// entry counts against the same bound.
type LRUCache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, lruEntry]
}

// NewLRU constructs an LRUCache bounded to maxSize entries, or to 1000
// entries when maxSize is not positive.
func NewLRU(maxSize int) (*LRUCache, error) {
	if maxSize <= 0 {
		maxSize = 1000
	}
	inner, err := lru.New[string, lruEntry](maxSize)
	if err != nil {
		return nil, err
	}
	return &LRUCache{inner: inner}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.inner.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *LRUCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.inner.Add(key, lruEntry{value: value, expires: expires})
}

func (c *LRUCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(key)
}

func (c *LRUCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}
