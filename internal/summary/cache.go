package summary

import (
	"context"
	"math"
	"sync"
)

// Cache stores one summary per document, tagged with the version it was
// computed from. Implementations refuse to store a version below the
// document's invalidation floor or below what is already cached.
type Cache interface {
	Get(ctx context.Context, docID string, version int64) (Result, bool, error)
	Put(ctx context.Context, docID string, version int64, r Result) error
	Invalidate(ctx context.Context, docID string, version int64) error
	Drop(ctx context.Context, docID string) error
}

type memoryEntry struct {
	floor   int64
	version int64
	result  *Result
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*memoryEntry)}
}

func (c *MemoryCache) entry(docID string) *memoryEntry {
	e, ok := c.entries[docID]
	if !ok {
		e = &memoryEntry{}
		c.entries[docID] = e
	}
	return e
}

func (c *MemoryCache) Get(_ context.Context, docID string, version int64) (Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[docID]
	if !ok || e.result == nil || e.version != version || version < e.floor {
		return Result{}, false, nil
	}
	r := *e.result
	r.Version = version
	return r, true, nil
}

func (c *MemoryCache) Put(_ context.Context, docID string, version int64, r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(docID)
	if version < e.floor || (e.result != nil && version < e.version) {
		return nil
	}
	e.version = version
	e.result = &r
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, docID string, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(docID)
	if version > e.floor {
		e.floor = version
	}
	if e.result != nil && e.version < e.floor {
		e.result = nil
	}
	return nil
}

// Drop leaves a tombstone so a summary still being computed for a deleted
// document is never stored.
func (c *MemoryCache) Drop(_ context.Context, docID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[docID] = &memoryEntry{floor: math.MaxInt64}
	return nil
}
