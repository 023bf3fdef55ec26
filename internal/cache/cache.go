// Package cache defines the key/value store the aggregation service caches
// spot collections in, plus an in-process implementation.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the cache port. Implementations must be safe for concurrent use.
// Entries are category-scoped and writes are idempotent overwrites, so no
// further coordination is required of callers.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}

// Memory is a Store backed by go-cache. Expired entries are purged every
// ten minutes.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-process cache store.
func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (m *Memory) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *Memory) Delete(key string) {
	m.c.Delete(key)
}
