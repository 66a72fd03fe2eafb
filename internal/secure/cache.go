package secure

import (
	"fmt"
	"strings"
	"sync"
)

// ValueCache maps secret names (case-insensitive) to sealed values.
type ValueCache struct {
	mu      sync.RWMutex
	entries map[string]cachedValue
}

type cachedValue struct {
	buf         *SecureBuffer
	contentType string
	id          string
}

// NewValueCache returns an empty cache.
func NewValueCache() *ValueCache {
	return &ValueCache{entries: make(map[string]cachedValue)}
}

// Put seals value under name, replacing any previous value.
func (c *ValueCache) Put(name, value, contentType, id string) error {
	buf, err := NewSecureBuffer([]byte(value))
	if err != nil {
		return fmt.Errorf("seal %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	if old, ok := c.entries[key]; ok {
		old.buf.Destroy()
	}
	c.entries[key] = cachedValue{buf: buf, contentType: contentType, id: id}
	return nil
}

// Get unseals the value stored under name.
func (c *ValueCache) Get(name string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[strings.ToLower(name)]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	locked, err := entry.buf.Open()
	if err != nil {
		return "", false, fmt.Errorf("unseal %s: %w", name, err)
	}
	defer locked.Destroy()
	return string(locked.Bytes()), true, nil
}

// ContentType returns the content type recorded with name.
func (c *ValueCache) ContentType(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[strings.ToLower(name)].contentType
}

// ID returns the source identifier recorded with name.
func (c *ValueCache) ID(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[strings.ToLower(name)].id
}

// Len returns the number of cached values.
func (c *ValueCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Destroy drops every value.
func (c *ValueCache) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		e.buf.Destroy()
		delete(c.entries, k)
	}
}
