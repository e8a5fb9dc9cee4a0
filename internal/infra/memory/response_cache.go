package memory

import (
	"bytes"
	"context"
	"sync"

	"flag-quiz-service/internal/domain"
)

// ResponseCache is an in-process flag image cache. Entries never expire; Purge
// drops whole namespaces.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: make(map[string][]byte)}
}

func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(data), true, nil
}

// Put stores data under key; writing the same key twice simply overwrites.
func (c *ResponseCache) Put(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = bytes.Clone(data)
	return nil
}

func (c *ResponseCache) Has(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok, nil
}

func (c *ResponseCache) Purge(_ context.Context, validNamespaces []string) (int, error) {
	valid := make(map[string]struct{}, len(validNamespaces))
	for _, ns := range validNamespaces {
		valid[ns] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if _, ok := valid[domain.CacheNamespace(key)]; !ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of cached entries.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
