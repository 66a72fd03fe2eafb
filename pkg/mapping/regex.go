package mapping

import (
	"regexp"
	"sync"
)

// RegexCache compiles each distinct pattern once. It is safe for concurrent
// use; share one cache between a Validator and an Engine.
type RegexCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// NewRegexCache returns an empty cache.
func NewRegexCache() *RegexCache {
	return &RegexCache{compiled: make(map[string]*regexp.Regexp)}
}

// Compile returns the compiled form of pattern. Failed compilations are not
// cached.
func (c *RegexCache) Compile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// Len returns the number of cached patterns.
func (c *RegexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.compiled)
}
