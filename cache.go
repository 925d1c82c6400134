package clusterdb

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
)

// rowCache holds decoded rows keyed by encoded primary key. Rows are stored
// and returned as private copies.
//
// Every invalidation bumps gen. A reader that missed records gen before
// reading the tree and fills the entry only if no invalidation happened in
// between, so a row decoded before a write is never cached after it.
type rowCache struct {
	lru *freelru.SyncedLRU[string, Row]

	mu  sync.Mutex // orders fills against invalidations
	gen uint64

	// Stats
	hits   atomic.Uint64
	misses atomic.Uint64
}

func hashKey(k string) uint32 {
	return uint32(xxhash.Sum64String(k))
}

// newRowCache returns nil when size is zero; a nil cache never hits
func newRowCache(size int) (*rowCache, error) {
	if size <= 0 {
		return nil, nil
	}
	lru, err := freelru.NewSynced[string, Row](uint32(size), hashKey)
	if err != nil {
		return nil, err
	}
	return &rowCache{lru: lru}, nil
}

func (c *rowCache) get(pk []byte) (Row, bool) {
	if c == nil {
		return nil, false
	}
	row, ok := c.lru.Get(string(pk))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return row.Clone(), true
}

// generation returns the token to pass to fill
func (c *rowCache) generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// fill caches row unless the cache was invalidated since gen was taken
func (c *rowCache) fill(gen uint64, pk []byte, row Row) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.lru.Add(string(pk), row.Clone())
	return true
}

// remove must be called after the tree write it invalidates
func (c *rowCache) remove(pk []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lru.Remove(string(pk))
}

func (c *rowCache) purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lru.Purge()
}

func (c *rowCache) stats() (hits, misses uint64, size int) {
	if c == nil {
		return 0, 0, 0
	}
	return c.hits.Load(), c.misses.Load(), c.lru.Len()
}
