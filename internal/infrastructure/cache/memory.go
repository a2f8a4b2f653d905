package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nutritrack/backend/internal/domain"
)

// cacheItem is one stored lookup: the JSON-encoded payload and when it
// stops being valid.
type cacheItem struct {
	Data       []byte
	Expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with TTL support. The
// scan path uses it to avoid refetching the same barcode from the
// external databases. Values are stored as JSON and decoded into the
// caller's type on Get, so cached lookups behave the same as they would
// coming out of an external cache.
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		data: make(map[string]cacheItem),
	}

	// Start cleanup goroutine to remove expired entries every 10 minutes
	go cache.cleanupExpired()

	return cache
}

// Get decodes the cached value for key into dest. dest must be a
// pointer to the type that was stored.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) error {
	c.mutex.RLock()
	item, exists := c.data[key]
	c.mutex.RUnlock()

	if !exists {
		return domain.ErrCacheMiss
	}
	if time.Now().After(item.Expiration) {
		return domain.ErrCacheMiss
	}

	return json.Unmarshal(item.Data, dest)
}

// Set stores a value in the cache with TTL
func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem{
		Data:       jsonData,
		Expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Exists checks if a key exists in the cache and is not expired
func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return false, nil
	}

	if time.Now().After(item.Expiration) {
		return false, nil
	}

	return true, nil
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		for key, item := range c.data {
			if now.After(item.Expiration) {
				delete(c.data, key)
			}
		}
		c.mutex.Unlock()
	}
}

// Size returns the current number of items in the cache
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}
