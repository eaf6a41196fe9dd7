package cache

import (
	"sort"
	"sync"
)

// Cache is an in-memory map of values that are kept for the lifetime of the
// cache. It is safe for concurrent use.
type Cache[T any] struct {
	values map[string]T
	mu     sync.RWMutex
}

// New creates a new in-memory cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{
		values: make(map[string]T),
	}
}

// Get returns the value for the given key if it exists and a boolean indicating
// if the value was found.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[id]
	return value, ok
}

// PutIfAbsent stores the value unless the key already has one and returns
// the value that is cached afterwards.
func (c *Cache[T]) PutIfAbsent(id string, value T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.values[id]; ok {
		return existing
	}
	c.values[id] = value
	return value
}

// Keys returns the cached keys in sorted order.
func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.values))
	for key := range c.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.values)
}
