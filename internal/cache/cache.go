// Package cache is a small TTL cache for upstream responses, in process or in Redis.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"solana-trading-assistant/internal/observability"
)

// Cache stores byte values with a TTL. A zero TTL means no expiry.
// Backend failures are treated as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// GetJSON decodes a cached value into out. kind labels the lookup metric.
func GetJSON(ctx context.Context, c Cache, kind, key string, out interface{}) bool {
	if c == nil {
		return false
	}
	b, ok := c.Get(ctx, key)
	if ok && json.Unmarshal(b, out) != nil {
		ok = false
	}
	observability.RecordCacheLookup(kind, ok)
	return ok
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, b, ttl)
}

type entry struct {
	b   []byte
	exp time.Time
}

// Memory is an in-process Cache.
type Memory struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]entry), now: time.Now}
}

// WithClock sets a custom clock for expiry.
func (c *Memory) WithClock(now func() time.Time) *Memory {
	c.now = now
	return c
}

// Get returns a copy of the value if present and not expired.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	return append([]byte(nil), e.b...), true
}

// Set stores a copy of val.
func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[key] = e
}

// Delete removes key.
func (c *Memory) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

var _ Cache = (*Memory)(nil)
