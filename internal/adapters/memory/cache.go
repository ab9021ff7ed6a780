package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache is a process-local ports.Cache with per-key expiry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	nowFn   func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *Cache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		return "", nil
	}
	return entry.value, nil
}

func (c *Cache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.expiry(ttl)}
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *Cache) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		c.entries[key] = cacheEntry{value: "1", expiresAt: c.expiry(ttl)}
		return 1, nil
	}
	n, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	entry.value = strconv.FormatInt(n, 10)
	c.entries[key] = entry
	return n, nil
}

func (c *Cache) DecrIfPresent(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		n--
	}
	entry.value = strconv.FormatInt(n, 10)
	c.entries[key] = entry
	return n, nil
}

func (c *Cache) live(key string) (cacheEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.nowFn().Before(entry.expiresAt) {
		delete(c.entries, key)
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *Cache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.nowFn().Add(ttl)
}

var _ ports.Cache = (*Cache)(nil)
