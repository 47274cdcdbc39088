package chart

import (
	"time"

	"github.com/flightyield/seatcast/internal/cache"
)

const (
	cardCacheSize = 64
	cardCacheTTL  = time.Hour
)

// Cache holds rendered cards briefly so link crawlers hitting the same
// flight in bursts reuse one render.
type Cache struct {
	cards *cache.TTL[string, []byte]
}

func NewCache() (*Cache, error) {
	cards, err := cache.NewTTL[string, []byte](cardCacheSize, cardCacheTTL)
	if err != nil {
		return nil, err
	}
	return &Cache{cards: cards}, nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	return c.cards.Get(key)
}

func (c *Cache) Put(key string, data []byte) {
	c.cards.Set(key, data)
}
