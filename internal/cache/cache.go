// Package cache provides TTL caches for values that are expensive to recompute
package cache

import (
	"sync"
	"time"
)

// entry wraps a cached value with its expiration time
type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache is a generic thread-safe in-memory cache with TTL expiration and an
// optional size bound. When full, the entry closest to expiry is evicted.
type Cache[T any] struct {
	items      map[string]entry[T]
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a cache with the specified TTL. maxEntries <= 0 means unbounded.
func New[T any](ttl time.Duration, maxEntries int) *Cache[T] {
	c := &Cache[T]{
		items:      make(map[string]entry[T]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go c.janitor()
	}
	return c
}

// Get retrieves a value, returning (value, true) if found and not expired
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.items[key]
	if !exists || c.now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the cache's TTL
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.evictLocked()
	}
	c.items[key] = entry[T]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes a key from the cache
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of entries, including expired ones not yet swept
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the background sweeper. It is safe to call more than once.
func (c *Cache[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[T]) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache[T]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
		}
	}
}

func (c *Cache[T]) evictLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, e := range c.items {
		if !found || e.expiresAt.Before(oldest) {
			oldestKey, oldest, found = key, e.expiresAt, true
		}
	}
	if found {
		delete(c.items, oldestKey)
	}
}
