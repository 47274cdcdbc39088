package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTL is a size-bounded LRU cache whose entries also expire after a fixed
// duration. A zero ttl disables expiry. Safe for concurrent use.
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	entries *lru.Cache[K, entry[V]]
	ttl     time.Duration
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func NewTTL[K comparable, V any](size int, ttl time.Duration) (*TTL[K, V], error) {
	entries, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTL[K, V]{entries: entries, ttl: ttl}, nil
}

// Get returns the cached value when present and unexpired. Expired entries
// are dropped on access rather than waiting for eviction.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.entries.Remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	c.entries.Add(key, entry[V]{value: value, expiresAt: expiresAt})
}

func (c *TTL[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
