package pipeline

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
	"github.com/pkg/errors"

	"mrimesh/pkg/mesh"
	"mrimesh/pkg/volume"
)

const MinCacheSize = 1

// cacheKey identifies an extraction by its volume contents and parameters.
type cacheKey uint64

func makeCacheKey(vol *volume.Volume, isoLevel, tolerance float64) cacheKey {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], vol.Checksum())
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(isoLevel))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(tolerance))
	return cacheKey(xxhash.Sum64(buf[:]))
}

func hashKey(k cacheKey) uint32 {
	return uint32(k) ^ uint32(k>>32)
}

// entry holds one mesh reference until released.
type entry struct {
	mesh     *mesh.Mesh
	released bool
}

func (e *entry) release() {
	if !e.released {
		e.released = true
		e.mesh.UnRegister()
	}
}

// CacheStats reports cache activity.
type CacheStats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// resultCache is an LRU of extracted meshes. Every cached mesh carries one
// reference owned by the cache, dropped when the entry leaves the cache.
type resultCache struct {
	mu  sync.Mutex
	lru *freelru.LRU[cacheKey, *entry]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newResultCache(size int) (*resultCache, error) {
	size = max(size, MinCacheSize)
	lru, err := freelru.New[cacheKey, *entry](uint32(size), hashKey)
	if err != nil {
		return nil, errors.Wrap(err, "create result cache")
	}
	c := &resultCache{lru: lru}
	lru.SetOnEvict(func(_ cacheKey, e *entry) {
		e.release()
	})
	return c, nil
}

// Get returns the cached mesh for key with a reference taken for the caller, who
// must UnRegister it when done.
func (c *resultCache) Get(key cacheKey) (*mesh.Mesh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok || e.released {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	e.mesh.Register()
	return e.mesh, true
}

// Put stores m under key, taking a reference on it.
func (c *resultCache) Put(key cacheKey, m *mesh.Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		if old.mesh == m {
			return
		}
		c.lru.Remove(key)
		old.release()
	}
	m.Register()
	if c.lru.Add(key, &entry{mesh: m}) {
		c.evictions.Add(1)
	}
}

// Purge drops every entry and its reference.
func (c *resultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok {
			e.release()
		}
	}
	c.lru.Purge()
}

func (c *resultCache) Stats() CacheStats {
	c.mu.Lock()
	size := c.lru.Len()
	c.mu.Unlock()
	return CacheStats{
		Size:      size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
