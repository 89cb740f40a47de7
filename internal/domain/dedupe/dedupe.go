// Package dedupe keeps a bounded memory of committed idempotency keys.
//
// The cache is a fast path only. A key is recorded after the ledger has
// accepted or rejected it as a duplicate, so a miss here always falls
// through to the storage uniqueness constraint.
package dedupe

import (
	"context"
	"sync"
)

// Cache answers "was this source key already committed".
type Cache interface {
	// Seen reports whether key was recorded and not yet evicted.
	Seen(ctx context.Context, key string) bool
	// Record remembers key. Recording a known key is a no-op.
	Record(ctx context.Context, key string)
	Size() int64
}

// ring is a FIFO cache: when full, the oldest key is evicted.
type ring struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	keys    []string
	next    int
	maxSize int
}

// New returns an in-memory cache. maxSize <= 0 disables eviction.
func New(opts ...Option) Cache {
	c := &ring{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(c)
	}
	c.seen = make(map[string]struct{})
	if c.maxSize > 0 {
		c.keys = make([]string, 0, c.maxSize)
	}
	return c
}

func (c *ring) Seen(_ context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[key]
	return ok
}

func (c *ring) Record(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	if c.maxSize <= 0 {
		return
	}
	if len(c.keys) < c.maxSize {
		c.keys = append(c.keys, key)
		return
	}
	// full: overwrite the oldest slot
	delete(c.seen, c.keys[c.next])
	c.keys[c.next] = key
	c.next = (c.next + 1) % c.maxSize
}

func (c *ring) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.seen))
}
