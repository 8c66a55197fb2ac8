// Package instrument implements the ID-keyed expression cache and the
// instrumentation fabric. It attaches to a function's sub-expressions (via
// sentry nodes in internal/ast), observes each identified expression's
// return value and elapsed time, consults/updates a per-execution-context
// result cache, and can unwind execution to inject a cached value in place
// of re-evaluating a sub-tree.
package instrument

import (
	"sync"
	"time"

	"github.com/driftlang/drift/internal/values"
)

// CacheEntry is one memoized expression result: a value, whether it
// resolved to a panic sentinel, and the elapsed nanoseconds it took to
// produce.
type CacheEntry struct {
	Value        values.Value
	IsPanic      bool
	NanosElapsed int64
	// dirty marks an entry left behind by a cancelled run: a cancelled
	// execute must leave the cache in a consistent state, so dirty entries
	// are never read as hits, only overwritten or dropped.
	dirty bool
}

// Dirty reports whether this entry was left behind by a cancelled run. An
// ExprCacheStore implementation outside this package (e.g.
// internal/cachestore) uses this to decide whether a persisted row should
// be readable as a hit.
func (e CacheEntry) Dirty() bool { return e.dirty }

// DirtyEntry builds a CacheEntry with no value, marked dirty. External
// ExprCacheStore implementations never need to construct one themselves —
// only ExprCache.MarkDirty does — but Get/Put round-tripping a store needs
// a way to reconstruct the dirty bit it previously read via Dirty.
func DirtyEntry() CacheEntry { return CacheEntry{dirty: true} }

// ExprCacheStore is the storage contract an ExprCache backs onto. The
// default is an in-memory map (MemStore); internal/cachestore provides a
// SQLite-backed alternative satisfying the same interface so cache
// coherence is identical regardless of backing store.
type ExprCacheStore interface {
	Get(exprID string) (CacheEntry, bool)
	Put(exprID string, entry CacheEntry)
	Delete(exprID string)
	InvalidateAll()
	Keys() []string
}

// MemStore is the default in-memory ExprCacheStore.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]CacheEntry)}
}

func (m *MemStore) Get(exprID string) (CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[exprID]
	if ok && e.dirty {
		return CacheEntry{}, false
	}
	return e, ok
}

func (m *MemStore) Put(exprID string, entry CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[exprID] = entry
}

func (m *MemStore) Delete(exprID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, exprID)
}

func (m *MemStore) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]CacheEntry)
}

func (m *MemStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.dirty {
			out = append(out, k)
		}
	}
	return out
}

// ExprCache is the per-ExecutionContext cache mapping expression id to
// CacheEntry, and it outlives any single run. It wraps a store so the
// backing (memory vs. SQLite) is swappable without changing the coherence
// contract.
type ExprCache struct {
	store ExprCacheStore
}

func NewExprCache(store ExprCacheStore) *ExprCache {
	if store == nil {
		store = NewMemStore()
	}
	return &ExprCache{store: store}
}

func (c *ExprCache) Lookup(exprID string) (CacheEntry, bool) {
	return c.store.Get(exprID)
}

func (c *ExprCache) Record(exprID string, value values.Value, isPanic bool, elapsed time.Duration) {
	c.store.Put(exprID, CacheEntry{Value: value, IsPanic: isPanic, NanosElapsed: elapsed.Nanoseconds()})
}

// MarkDirty flags an in-flight entry as unreliable without removing its
// key, used when a run is cancelled mid-write: an entry is either fully
// written or not written at all, never partially, so a cancellation marks
// whatever was in flight dirty rather than leaving a half-written value
// behind. A dirty entry never counts as a hit until overwritten by a
// completed run.
func (c *ExprCache) MarkDirty(exprID string) {
	c.store.Put(exprID, CacheEntry{dirty: true})
}

// Invalidate drops the given expression ids (or all entries if ids is nil),
// the backing operation behind a recompute job's invalidate-all /
// invalidate-set / invalidate-none policy.
func (c *ExprCache) Invalidate(ids []string) {
	if ids == nil {
		c.store.InvalidateAll()
		return
	}
	for _, id := range ids {
		c.store.Delete(id)
	}
}

// Keys lists every live (non-dirty) cached expression id.
func (c *ExprCache) Keys() []string {
	return c.store.Keys()
}

// durationFromNanos converts a raw elapsed-nanoseconds count (as received
// from an external Callbacks.UpdateCachedResult caller) to a time.Duration.
func durationFromNanos(nanos int64) time.Duration {
	return time.Duration(nanos)
}
