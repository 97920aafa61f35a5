// Package cache holds the resolved-content cache the delta resolver uses
// to avoid repeating work across long delta chains. Materialising one
// base may itself require resolving a chain of deltas; keeping recently
// resolved content around means a base referenced by many deltas in the
// same pack is only reconstructed once.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Size classes, following the teacher's plumbing/cache convention.
const (
	Byte  = 1 << (iota * 10)
	KiByte
	MiByte
	GiByte
)

// DefaultMaxSize is used when a resolver is not given an explicit budget.
const DefaultMaxSize = 96 * MiByte

// ResolvedContent is a size-bounded, position-keyed cache of fully
// materialised object content. It is the one described in §4.4 as a MAY:
// behavioural correctness of the resolver never depends on a hit, only on
// correctness when it misses and has to recompute.
//
// Safe for concurrent use: when the resolver is configured with more than
// one worker, independent delta chains may call Add/Get from different
// goroutines at once.
type ResolvedContent struct {
	mu      sync.Mutex
	lru     *lru.Cache[int64, []byte]
	maxSize int
	curSize int
}

// NewResolvedContent returns a cache that evicts least-recently-used
// entries once the total size of cached content would exceed maxSize
// bytes. maxSize <= 0 means DefaultMaxSize.
func NewResolvedContent(maxSize int) *ResolvedContent {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	c := &ResolvedContent{maxSize: maxSize}
	// A plain LRU capped by entry count would let one huge object starve
	// the cache of capacity for everything else; size-bounding requires
	// reacting to evictions, so the underlying cache is built with an
	// effectively unbounded entry count and every write trims by hand.
	l, _ := lru.NewWithEvict(1<<20, c.onEvict)
	c.lru = l
	return c
}

func (c *ResolvedContent) onEvict(_ int64, v []byte) {
	c.curSize -= len(v)
}

// Add records the resolved content for the object at position. It is a
// no-op if content alone would already exceed the cache's budget.
func (c *ResolvedContent) Add(position int64, content []byte) {
	if len(content) > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lru.Peek(position); ok {
		c.lru.Remove(position)
	}

	for c.curSize+len(content) > c.maxSize && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}

	c.lru.Add(position, content)
	c.curSize += len(content)
}

// Get returns the resolved content for position, if still cached. The
// lookup itself counts as the recency signal the LRU policy uses.
func (c *ResolvedContent) Get(position int64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(position)
}

// Clear empties the cache.
func (c *ResolvedContent) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.curSize = 0
}
