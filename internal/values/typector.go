package values

import "github.com/driftlang/drift/internal/interner"

// TypeID identifies a type within its owning module scope. It is assigned
// once, at constructor-registration time, and never reused.
type TypeID uint64

// TypeCtor is one constructor of a type: a type id, name, arity, field
// names, and the scope that declared it. All constructors sharing a TypeID
// belong to the same type and are tried in registration order during method
// lookup's ancestor walk (the walk itself is over TypeID, a constructor only
// carries its own type's identity).
type TypeCtor struct {
	TypeID     TypeID
	Name       *interner.Symbol
	Arity      int
	FieldNames []*interner.Symbol
	ScopeID    string

	// Supertype is the single-inheritance parent walked by method
	// resolution; nil at the root of a chain.
	Supertype *TypeCtor
}

// Sentinel constructors for primitive receivers. Every primitive Value maps
// to exactly one of these fixed, package-level TypeCtors so that dispatch on
// a primitive receiver is structurally identical to dispatch on an Atom.
var (
	IntegerCtor = &TypeCtor{TypeID: 1, Name: interner.Intern("Integer")}
	DecimalCtor = &TypeCtor{TypeID: 2, Name: interner.Intern("Decimal")}
	BooleanCtor = &TypeCtor{TypeID: 3, Name: interner.Intern("Boolean")}
	TextCtor    = &TypeCtor{TypeID: 4, Name: interner.Intern("Text")}
	UnitCtor    = &TypeCtor{TypeID: 5, Name: interner.Intern("Unit")}
	FunctionCtor = &TypeCtor{TypeID: 6, Name: interner.Intern("Function")}
	ArrayCtor   = &TypeCtor{TypeID: 7, Name: interner.Intern("Array")}
	ErrorCtor   = &TypeCtor{TypeID: 8, Name: interner.Intern("Error")}
	PanicCtor   = &TypeCtor{TypeID: 9, Name: interner.Intern("Panic")}
)

// FirstUserTypeID is the first TypeID a module's constructor registry may
// hand out; everything below it is reserved for the primitive sentinels
// above.
const FirstUserTypeID TypeID = 100

// Chain walks ctor and its ancestors, calling visit for each. It stops as
// soon as visit returns true (a hit): the first match along the chain wins,
// which is the same rule method lookup uses.
func Chain(ctor *TypeCtor, visit func(*TypeCtor) bool) {
	for c := ctor; c != nil; c = c.Supertype {
		if visit(c) {
			return
		}
	}
}
