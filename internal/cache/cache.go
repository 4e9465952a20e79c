// Package cache stores rendered layer and composition buffers keyed by
// content fingerprint. The cache is a pure performance layer: rendering
// must produce identical frames whether it is enabled or not.
package cache

import (
	"container/list"
	"fmt"
	"image"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ivlev/talk2video/internal/compose"
)

// Scope separates leaf-layer results from whole-subtree composition
// results. The compositor probes the composition scope first, so a valid
// subtree hit skips visiting children entirely.
type Scope int

const (
	ScopeLayer Scope = iota
	ScopeComposition
)

func (s Scope) String() string {
	if s == ScopeComposition {
		return "composition"
	}
	return "layer"
}

type cacheKey struct {
	node compose.NodeID
	time float64
}

type entry struct {
	key  cacheKey
	fp   uint64
	buf  *image.RGBA
	elem *list.Element
}

type scopeCache struct {
	entries  map[cacheKey]*entry
	lru      *list.List // front = most recently used
	capacity int
}

func newScopeCache(capacity int) *scopeCache {
	return &scopeCache{
		entries:  make(map[cacheKey]*entry),
		lru:      list.New(),
		capacity: capacity,
	}
}

// FrameCache is safe for concurrent use. Reads share a lock; at most one
// computation per (scope, node, time, fingerprint) key is in flight at a
// time, with late arrivals observing the first writer's result.
type FrameCache struct {
	mu     sync.RWMutex
	scopes [2]*scopeCache
	flight singleflight.Group

	// Hit counters, read via Stats. Diagnostics only.
	hits, misses uint64
}

// New creates a cache bounded to the given entry counts per scope.
func New(layerCapacity, compositionCapacity int) *FrameCache {
	return &FrameCache{
		scopes: [2]*scopeCache{
			ScopeLayer:       newScopeCache(layerCapacity),
			ScopeComposition: newScopeCache(compositionCapacity),
		},
	}
}

// Get returns the cached buffer for (node, t) if present and its stored
// fingerprint matches fp. A mismatching entry is a stale or corrupt
// result; it is dropped silently and the caller recomputes.
func (c *FrameCache) Get(scope Scope, node compose.NodeID, t float64, fp uint64) (*image.RGBA, bool) {
	if c == nil {
		return nil, false
	}
	k := cacheKey{node: node, time: t}
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.scopes[scope]
	e, ok := sc.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.fp != fp {
		// Repair silently; never surfaced to the render caller.
		sc.lru.Remove(e.elem)
		delete(sc.entries, k)
		c.misses++
		return nil, false
	}
	sc.lru.MoveToFront(e.elem)
	c.hits++
	return e.buf, true
}

// Put stores a rendered buffer, evicting the least recently used entry of
// the scope when over capacity.
func (c *FrameCache) Put(scope Scope, node compose.NodeID, t float64, fp uint64, buf *image.RGBA) {
	if c == nil || buf == nil {
		return
	}
	k := cacheKey{node: node, time: t}
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.scopes[scope]
	if e, ok := sc.entries[k]; ok {
		e.fp = fp
		e.buf = buf
		sc.lru.MoveToFront(e.elem)
		return
	}
	e := &entry{key: k, fp: fp, buf: buf}
	e.elem = sc.lru.PushFront(e)
	sc.entries[k] = e
	for sc.capacity > 0 && len(sc.entries) > sc.capacity {
		oldest := sc.lru.Back()
		if oldest == nil {
			break
		}
		old := oldest.Value.(*entry)
		sc.lru.Remove(oldest)
		delete(sc.entries, old.key)
	}
}

// Invalidate drops every entry of the node, in both scopes. Used after
// keyframe or structural edits touching the node.
func (c *FrameCache) Invalidate(node compose.NodeID) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sc := range c.scopes {
		for k, e := range sc.entries {
			if k.node == node {
				sc.lru.Remove(e.elem)
				delete(sc.entries, k)
			}
		}
	}
}

// Clear drops everything.
func (c *FrameCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sc := range c.scopes {
		c.scopes[i] = newScopeCache(sc.capacity)
	}
}

// Len reports the entry count of one scope.
func (c *FrameCache) Len(scope Scope) int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scopes[scope].entries)
}

// Contains reports whether a valid entry exists for (node, t, fp) without
// touching recency.
func (c *FrameCache) Contains(scope Scope, node compose.NodeID, t float64, fp uint64) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.scopes[scope].entries[cacheKey{node: node, time: t}]
	return ok && e.fp == fp
}

// Stats returns accumulated hit and miss counts.
func (c *FrameCache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Render returns the cached buffer for the key or computes it once.
// Concurrent callers for the same key share a single in-flight
// computation; the first completed write wins and the rest observe it. A
// nil cache degrades to calling compute directly.
func (c *FrameCache) Render(scope Scope, node compose.NodeID, t float64, fp uint64, compute func() (*image.RGBA, error)) (*image.RGBA, error) {
	if c == nil {
		return compute()
	}
	if buf, ok := c.Get(scope, node, t, fp); ok {
		return buf, nil
	}
	flightKey := fmt.Sprintf("%d/%d/%016x/%016x", scope, node, math.Float64bits(t), fp)
	v, err, _ := c.flight.Do(flightKey, func() (interface{}, error) {
		buf, err := compute()
		if err != nil {
			return nil, err
		}
		c.Put(scope, node, t, fp, buf)
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*image.RGBA), nil
}
