// Package scope implements the module scope model: a mapping from type to
// (method name -> Function), a constructor registry, and import relations
// to other scopes looked up by handle, never owned.
package scope

import (
	"fmt"
	"sync"

	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/values"
)

// ModuleScope owns the constructors and methods declared in one module, and
// holds weak (lookup-only) references to the scopes it imports.
type ModuleScope struct {
	id   string
	name string

	mu sync.RWMutex

	// constructors maps a type's local name to its registered TypeCtor.
	constructors map[string]*values.TypeCtor
	nextTypeID   values.TypeID

	// methods[type_id][method_name] -> Function. Every method here was
	// registered against a constructor reachable from this scope, either
	// declared here or imported.
	methods map[values.TypeID]map[*interner.Symbol]*values.Function

	// imports are lookup relations only; the owning Registry keeps the
	// actual scopes alive.
	imports []string

	// literalSource, when hasLiteralOverride is set, overrides the on-disk
	// source for this module, even if it is empty (see engine
	// SetLiteralSource/ResetToOnDisk).
	literalSource  string
	hasLiteralOverride bool
}

// ScopeID implements values.ScopeRef.
func (m *ModuleScope) ScopeID() string { return m.id }

func (m *ModuleScope) Name() string { return m.name }

// New creates an empty module scope with the given id and display name.
func New(id, name string) *ModuleScope {
	return &ModuleScope{
		id:           id,
		name:         name,
		constructors: make(map[string]*values.TypeCtor),
		methods:      make(map[values.TypeID]map[*interner.Symbol]*values.Function),
		nextTypeID:   values.FirstUserTypeID,
	}
}

// DeclareType registers a new type's first constructor chain root (no
// supertype). Returns the fresh TypeCtor.
func (m *ModuleScope) DeclareType(name string, fieldNames []string) *values.TypeCtor {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctor := &values.TypeCtor{
		TypeID:     m.nextTypeID,
		Name:       interner.Intern(name),
		Arity:      len(fieldNames),
		FieldNames: internAll(fieldNames),
		ScopeID:    m.id,
	}
	m.nextTypeID++
	m.constructors[name] = ctor
	return ctor
}

// DeclareSubtype registers a constructor whose Supertype is parent, used for
// the ancestor walk during method lookup.
func (m *ModuleScope) DeclareSubtype(name string, fieldNames []string, parent *values.TypeCtor) *values.TypeCtor {
	ctor := m.DeclareType(name, fieldNames)
	ctor.Supertype = parent
	return ctor
}

func internAll(names []string) []*interner.Symbol {
	out := make([]*interner.Symbol, len(names))
	for i, n := range names {
		out[i] = interner.Intern(n)
	}
	return out
}

// Constructor looks up a constructor declared directly in this scope (not
// imports) by its local name.
func (m *ModuleScope) Constructor(name string) (*values.TypeCtor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.constructors[name]
	return c, ok
}

// AddImport records a lookup relation to another scope by id. Ownership of
// the imported scope remains with the Registry.
func (m *ModuleScope) AddImport(scopeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports = append(m.imports, scopeID)
}

// Imports returns the scope ids this scope has declared as imports.
func (m *ModuleScope) Imports() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.imports))
	copy(out, m.imports)
	return out
}

// RegisterMethod binds name on typeID to fn within this scope. The caller
// (module loader) is responsible for verifying typeID is reachable from
// this scope's own constructors or its imports.
func (m *ModuleScope) RegisterMethod(typeID values.TypeID, name string, fn *values.Function) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sym := interner.Intern(name)
	if m.methods[typeID] == nil {
		m.methods[typeID] = make(map[*interner.Symbol]*values.Function)
	}
	m.methods[typeID][sym] = fn
}

// LookupOwn returns a method registered directly on typeID in this scope
// (no ancestor walk, no imports) — the single step that the uncached
// resolver in internal/dispatch repeats across the constructor chain and
// the imported scopes.
func (m *ModuleScope) LookupOwn(typeID values.TypeID, name *interner.Symbol) (*values.Function, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tbl, ok := m.methods[typeID]
	if !ok {
		return nil, false
	}
	fn, ok := tbl[name]
	return fn, ok
}

// SetLiteralSource installs an in-memory override for this module's source,
// used by the engine's evaluate-expression-in-module / edit-module paths
// without touching disk.
func (m *ModuleScope) SetLiteralSource(contents string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.literalSource = contents
	m.hasLiteralOverride = true
}

// ResetToOnDisk clears any literal-source override.
func (m *ModuleScope) ResetToOnDisk() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.literalSource = ""
	m.hasLiteralOverride = false
}

// LiteralSource returns the current override and whether one is active.
func (m *ModuleScope) LiteralSource() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.literalSource, m.hasLiteralOverride
}

func (m *ModuleScope) String() string {
	return fmt.Sprintf("ModuleScope(%s)", m.name)
}
