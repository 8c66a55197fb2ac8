package scope

import (
	"fmt"
	"sync"
)

// Registry is the single owner of all module scopes in a project. Imports
// between scopes are lookup relations resolved through the Registry rather
// than direct references, so a cyclic import graph between two modules
// never creates a cyclic ownership graph between their scopes; scopes are
// dropped only when the project closes.
//
// Resource policy: one read/write lock for the whole registry, not one per
// module. Get, Declare and ImportedScopes take it around the scope table.
// The engine holds the write lock only while it swaps a module's literal
// source and marks the module for recompilation; the recompilation itself
// runs later without it, and method lookups inside a scope are guarded by
// that scope's own lock, not by this one.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]*ModuleScope
}

func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string]*ModuleScope)}
}

// Declare creates and registers a fresh scope, replacing any existing scope
// with the same id (used by module re-parse on edit).
func (r *Registry) Declare(id, name string) *ModuleScope {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := New(id, name)
	r.scopes[id] = s
	return s
}

// Get returns the scope for id, or false if no such module is registered.
func (r *Registry) Get(id string) (*ModuleScope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scopes[id]
	return s, ok
}

// MustGet is Get but panics with a descriptive message on a missing module;
// used internally where the caller has already validated the id exists.
func (r *Registry) MustGet(id string) *ModuleScope {
	s, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("scope: module %q not registered", id))
	}
	return s
}

// WithWriteLock runs fn while holding the registry-wide write lock, so no
// Get, Declare or ImportedScopes call runs concurrently with fn. Readers
// that already hold a *ModuleScope are not excluded.
func (r *Registry) WithWriteLock(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// ImportedScopes returns the concrete scopes reachable from s's recorded
// import ids, skipping any id the registry no longer has an entry for
// (e.g. raced with a project-close teardown).
func (r *Registry) ImportedScopes(s *ModuleScope) []*ModuleScope {
	ids := s.Imports()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModuleScope, 0, len(ids))
	for _, id := range ids {
		if sc, ok := r.scopes[id]; ok {
			out = append(out, sc)
		}
	}
	return out
}
