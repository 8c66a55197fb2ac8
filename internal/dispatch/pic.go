// Package dispatch implements the method-resolution pipeline and its
// polymorphic inline cache: a call site resolves `receiver.method(args...)`
// by walking the receiver's type chain against the lexical module scope,
// memoizing per call-site by (symbol-identity, receiver-constructor).
package dispatch

import (
	"sync"

	"github.com/driftlang/drift/internal/errors"
	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/scope"
	"github.com/driftlang/drift/internal/values"
)

// DefaultWidth is the PIC's default entry count K: a safe default, with
// compile-time configuration available through internal/config for sites
// that need a wider or narrower cache.
const DefaultWidth = 3

type picEntry struct {
	symbol *interner.Symbol
	ctor   *values.TypeCtor
	fn     *values.Function
}

// PIC is one call site's polymorphic inline cache. Pointer equality on both
// symbol and ctor is the cache key. It is guarded by a mutex even though
// this cache is never shared across concurrently-running contexts in normal
// operation: a torn read on a lock-free cache would be a benign fallback to
// a full walk on some hosts, but a plain Go map/slice under concurrent
// mutation is undefined behavior, not a benign race, so the mutex is kept
// as the minimal safeguard against a call site ever being reached from two
// contexts at once.
type PIC struct {
	mu          sync.Mutex
	width       int
	entries     []picEntry
	megamorphic bool
}

// NewPIC creates a PIC with the given width (entry capacity K). A width
// <= 0 uses DefaultWidth.
func NewPIC(width int) *PIC {
	if width <= 0 {
		width = DefaultWidth
	}
	return &PIC{width: width}
}

// Megamorphic reports whether this site has overflowed into megamorphic
// mode. One-way: a site here never returns to specialized.
func (p *PIC) Megamorphic() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.megamorphic
}

// Resolve looks up symbol on a receiver whose constructor is ctor, within
// startScope (and startScope's direct imports), consulting the cache first.
func (p *PIC) Resolve(symbol *interner.Symbol, ctor *values.TypeCtor, startScope values.ScopeRef, registry *scope.Registry) (*values.Function, error) {
	p.mu.Lock()
	if !p.megamorphic {
		for _, e := range p.entries {
			if e.symbol == symbol && e.ctor == ctor {
				fn := e.fn
				p.mu.Unlock()
				return fn, nil
			}
		}
	}
	megamorphic := p.megamorphic
	p.mu.Unlock()

	fn, err := uncachedResolve(symbol, ctor, startScope, registry)
	if err != nil {
		return nil, err
	}
	if megamorphic {
		return fn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.megamorphic {
		return fn, nil
	}
	if len(p.entries) >= p.width {
		// Overflow: discard the cache for this site and fall through to
		// megamorphic mode permanently.
		p.entries = nil
		p.megamorphic = true
		return fn, nil
	}
	p.entries = append(p.entries, picEntry{symbol: symbol, ctor: ctor, fn: fn})
	return fn, nil
}

// uncachedResolve performs the full, ancestor-walking resolution the PIC
// memoizes: for each ancestor of ctor, consult startScope then its direct
// imports; the first hit wins.
func uncachedResolve(symbol *interner.Symbol, ctor *values.TypeCtor, startScopeRef values.ScopeRef, registry *scope.Registry) (*values.Function, error) {
	startScope, ok := startScopeRef.(*scope.ModuleScope)
	if !ok {
		return nil, errors.New(errors.ContextNotFound, "unresolvable scope reference")
	}

	var found *values.Function
	values.Chain(ctor, func(c *values.TypeCtor) bool {
		if fn, ok := startScope.LookupOwn(c.TypeID, symbol); ok {
			found = fn
			return true
		}
		for _, imp := range registry.ImportedScopes(startScope) {
			if fn, ok := imp.LookupOwn(c.TypeID, symbol); ok {
				found = fn
				return true
			}
		}
		return false
	})
	if found == nil {
		return nil, errors.MethodDoesNotExistf(symbol.String(), ctor.Name.String())
	}
	return found, nil
}

// ResolveUncached exposes the uncached walk directly, used by cache
// soundness tests to check the cache always agrees with a fresh walk.
func ResolveUncached(symbol *interner.Symbol, ctor *values.TypeCtor, startScope values.ScopeRef, registry *scope.Registry) (*values.Function, error) {
	return uncachedResolve(symbol, ctor, startScope, registry)
}
