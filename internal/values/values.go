// Package values implements the tagged runtime Value variants evaluation
// operates on.
package values

import (
	"sync/atomic"

	"github.com/driftlang/drift/internal/interner"
)

// Value is the tagged-variant runtime value. Every case below implements it;
// a type switch on the concrete type is the dispatch point used throughout
// the engine (the same pattern the PIC uses to read a receiver's TypeCtor).
type Value interface {
	// Ctor returns the constructor this value dispatches against: a fixed
	// per-primitive sentinel for primitives, or the Atom's own constructor.
	Ctor() *TypeCtor
	value()
}

// Long is a 64-bit signed integer.
type Long struct{ V int64 }

func (Long) value()            {}
func (Long) Ctor() *TypeCtor   { return IntegerCtor }

// Double is a 64-bit float.
type Double struct{ V float64 }

func (Double) value()          {}
func (Double) Ctor() *TypeCtor { return DecimalCtor }

// Boolean is a language-level true/false.
type Boolean struct{ V bool }

func (Boolean) value()          {}
func (Boolean) Ctor() *TypeCtor { return BooleanCtor }

// Text holds string contents. The field is named Rope to signal that a
// production implementation backs it with a concatenation-friendly rope
// rather than a flat Go string; this core keeps the flat string since the
// rope structure itself is not part of Text's observable contract.
type Text struct{ Rope string }

func (Text) value()          {}
func (Text) Ctor() *TypeCtor { return TextCtor }

// UnitValue is the single unit value.
type UnitValue struct{}

func (UnitValue) value()          {}
func (UnitValue) Ctor() *TypeCtor { return UnitCtor }

// Unit is the sole instance of UnitValue; values never need allocating a
// fresh Unit.
var Unit = UnitValue{}

// Atom is a typed record: its shape is fixed by Constructor once created.
// hashSlot is a set-once cached structural hash (see Hash) — it is computed
// lazily and stored at most once, as a hidden immutable integer hash slot.
// The PIC does not use it; it keys on the receiver's Constructor pointer.
type Atom struct {
	Constructor *TypeCtor
	Fields      []Value

	hashSlot atomic.Int64 // 0 = unset; stored value is hash+1 to disambiguate from unset
}

func (*Atom) value()          {}
func (a *Atom) Ctor() *TypeCtor { return a.Constructor }

// Hash returns the Atom's cached structural hash, computing and storing it
// on first call. Concurrent callers may race to compute the same value;
// the first successful CompareAndSwap wins and all callers observe the same
// final slot content, preserving the set-once invariant even under races
// (the computed value is pure and idempotent, so a lost race just discards
// redundant work, never an inconsistency).
func (a *Atom) Hash(compute func(*Atom) uint64) uint64 {
	if v := a.hashSlot.Load(); v != 0 {
		return uint64(v - 1)
	}
	h := compute(a)
	a.hashSlot.CompareAndSwap(0, int64(h)+1)
	return h
}

// ScopeRef is an opaque handle to a module scope. Values cannot import
// internal/scope directly (scope's method tables hold Function values,
// which would cycle); code that needs the concrete scope type-asserts a
// ScopeRef back down. internal/dispatch, which imports both packages, is
// where that happens.
type ScopeRef interface {
	ScopeID() string
}

// CallTarget is the invocable handle backing Function and Thunk values. The
// concrete implementation lives in internal/calltarget; Value cannot import
// it directly since a CallTarget's compiled root references Value in turn.
type CallTarget interface {
	// Invoke runs the call target's body against the given positional
	// arguments and returns its result value. A TailCallException is
	// absorbed by the call trampoline and never escapes Invoke; a
	// PanicException propagates out of Invoke as a Go panic, to be
	// recovered by an instrumentation sentry or the request root.
	Invoke(args []Value, scope LocalScope) Value
	// Name is the call target's declared name, used in stack traces and
	// instrumentation.
	Name() string
}

// LocalScope is the minimal interface an AST frame exposes for variable
// lookup; the concrete frame type lives in internal/ast (it references
// ast.ExpressionNode, so Value cannot own it without cycling).
type LocalScope interface {
	Lookup(name *interner.Symbol) (Value, bool)
}

// ArgSchema describes a callable's parameter shape: how many arguments are
// required, how many are optional (defaulted), and whether the final
// parameter collects a variadic tail.
type ArgSchema struct {
	Required int
	Optional int
	Variadic bool
}

// Function is a first-class callable. Scope is non-nil exactly when the
// function is a closure capturing its defining frame.
type Function struct {
	Target CallTarget
	Scope  LocalScope
	Schema ArgSchema
}

func (*Function) value()          {}
func (*Function) Ctor() *TypeCtor { return FunctionCtor }

// UnresolvedSymbol is a by-name reference not yet bound to a function; it is
// resolved through the PIC at each call site, never eagerly.
type UnresolvedSymbol struct {
	Name  *interner.Symbol
	Scope ScopeRef
}

func (*UnresolvedSymbol) value()          {}
func (*UnresolvedSymbol) Ctor() *TypeCtor { return FunctionCtor }

// Thunk is a suspended computation captured with its defining frame, forced
// at most once by a force-thunk node (internal/ast) which then memoizes the
// result back into the Thunk.
type Thunk struct {
	Target   CallTarget
	Captured LocalScope

	forced bool
	result Value
}

func (*Thunk) value()          {}
func (*Thunk) Ctor() *TypeCtor { return FunctionCtor }

// Force evaluates the thunk exactly once, memoizing the result for every
// subsequent call. Not safe for concurrent use from two contexts — thunks
// are never shared across execution contexts per the concurrency model.
func (t *Thunk) Force() Value {
	if t.forced {
		return t.result
	}
	t.result = t.Target.Invoke(nil, t.Captured)
	t.forced = true
	return t.result
}

// IsForced reports whether Force has already memoized a result.
func (t *Thunk) IsForced() bool { return t.forced }

// Trace is an opaque, append-only record of the frames a DataflowError or
// Panic passed through, preserved verbatim as the value propagates so its
// origin can be reported exactly.
type Trace struct {
	ExpressionIDs []string
}

func (t Trace) Extend(exprID string) Trace {
	out := Trace{ExpressionIDs: make([]string, len(t.ExpressionIDs), len(t.ExpressionIDs)+1)}
	copy(out.ExpressionIDs, t.ExpressionIDs)
	out.ExpressionIDs = append(out.ExpressionIDs, exprID)
	return out
}

// DataflowError is a first-class, recoverable error value. Pure operations
// that receive one as an argument short-circuit and return it unchanged,
// preserving its identity rather than wrapping or rebuilding it.
type DataflowError struct {
	Kind    string
	Payload Value
	Trace   Trace
}

func (*DataflowError) value()          {}
func (*DataflowError) Ctor() *TypeCtor { return ErrorCtor }

// Panic is an abortive exception carrying a value; it unwinds native frames
// to the request root unless intercepted by instrumentation, which converts
// it to a PanicSentinel at the origin node (internal/instrument).
type Panic struct {
	Payload Value
	Trace   Trace
}

func (*Panic) value()          {}
func (*Panic) Ctor() *TypeCtor { return PanicCtor }

// PanicSentinel is the value instrumentation substitutes for a Panic that
// unwound through an instrumented node: it pins the panic to the node's
// expression id so a caller can pinpoint the origin exactly rather than
// wherever the panic happened to be observed from.
type PanicSentinel struct {
	OriginExpressionID string
	Inner              *Panic
}

func (*PanicSentinel) value()          {}
func (*PanicSentinel) Ctor() *TypeCtor { return PanicCtor }

// NewPanicSentinel binds a Panic to the node it was first observed
// unwinding through.
func NewPanicSentinel(originExprID string, inner *Panic) *PanicSentinel {
	return &PanicSentinel{OriginExpressionID: originExprID, Inner: inner}
}

// Array is the primitive boxed array the stdlib builds collections from.
type Array struct{ Items []Value }

func (*Array) value()          {}
func (*Array) Ctor() *TypeCtor { return ArrayCtor }

// Warning wraps a value with non-fatal, transparent diagnostics: operations
// that inspect a value's type see through the wrapper, but the wrapper
// itself is preserved through pure operations that pass the value along
// unexamined.
type Warning struct {
	Inner       Value
	Diagnostics []string
}

func (w *Warning) value()          {}
func (w *Warning) Ctor() *TypeCtor { return w.Inner.Ctor() }

// Unwrap returns v's Warning-stripped value and the accumulated
// diagnostics (nil if v was not a Warning).
func Unwrap(v Value) (Value, []string) {
	if w, ok := v.(*Warning); ok {
		inner, more := Unwrap(w.Inner)
		return inner, append(append([]string(nil), more...), w.Diagnostics...)
	}
	return v, nil
}
