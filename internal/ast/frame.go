package ast

import (
	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/values"
)

// Cancellation is the cooperative cancellation handle threaded through a
// Frame tree so that safepoint checks (tail-loop back-edges and
// instrumented-node entry) can observe a pending cancellation without any
// node needing to know about the owning ExecutionContext.
type Cancellation interface {
	// Cancelled reports whether the current request has been asked to
	// stop. Checked at safepoints only — never preemptively.
	Cancelled() bool
}

// noCancellation is used when a frame is evaluated outside any
// cancellable request (e.g. direct unit tests of a single node).
type noCancellation struct{}

func (noCancellation) Cancelled() bool { return false }

// Frame is the runtime local scope: a chain of variable bindings rooted at
// a call's parameters, implementing values.LocalScope for closures. A
// lambda's captured scope is whichever Frame was active at
// create-function-node execution time.
type Frame struct {
	parent   values.LocalScope // nil, or the lexically enclosing frame/closure scope
	bindings map[*interner.Symbol]values.Value

	// observer is non-nil only for the one top-level invocation an
	// ExecutionContext chose to instrument; it is never
	// set when a nested call creates its own fresh Frame via a plain
	// (unobserved) Invoke, which is what keeps recursive re-entries and
	// callee bodies outside the observed span un-instrumented without
	// extra bookkeeping.
	observer instrument.Observer

	cancel Cancellation
}

// NewFrame builds a fresh frame for a call-target invocation, binding
// paramNames to args positionally (args beyond len(paramNames), if any,
// are not bound).
func NewFrame(parent values.LocalScope, paramNames []*interner.Symbol, args []values.Value, observer instrument.Observer, cancel Cancellation) *Frame {
	if cancel == nil {
		cancel = noCancellation{}
	}
	f := &Frame{
		parent:   parent,
		bindings: make(map[*interner.Symbol]values.Value, len(paramNames)),
		observer: observer,
		cancel:   cancel,
	}
	for i, name := range paramNames {
		if i < len(args) {
			f.bindings[name] = args[i]
		}
	}
	return f
}

// NewChildFrame opens a nested lexical scope (case branch, let-block) that
// shares this frame's observer and cancellation handle but has its own
// bindings, chained to this frame for lookup.
func (f *Frame) NewChildFrame() *Frame {
	return &Frame{parent: f, bindings: make(map[*interner.Symbol]values.Value), observer: f.observer, cancel: f.cancel}
}

func (f *Frame) Lookup(name *interner.Symbol) (values.Value, bool) {
	if v, ok := f.bindings[name]; ok {
		return v, true
	}
	if f.parent != nil {
		return f.parent.Lookup(name)
	}
	return nil, false
}

func (f *Frame) Bind(name *interner.Symbol, v values.Value) {
	f.bindings[name] = v
}

func (f *Frame) Observer() instrument.Observer { return f.observer }

// WithObserver returns a copy of f carrying a different observer. The call
// trampoline in internal/calltarget does not use it: when a tail call
// crosses into a different call target it builds a fresh Frame with no
// observer instead.
func (f *Frame) WithObserver(obs instrument.Observer) *Frame {
	cp := *f
	cp.observer = obs
	return &cp
}

// Safepoint checks for cooperative cancellation. Called at tail-loop
// back-edges and at the entry of every instrumented node.
func (f *Frame) Safepoint() bool {
	return f.cancel.Cancelled()
}

// CancellationFrom extracts the Cancellation handle from a values.LocalScope
// if it is a *Frame, defaulting to a handle that never cancels otherwise
// (e.g. a bare closure scope with no owning ExecutionContext, or nil).
func CancellationFrom(scope values.LocalScope) Cancellation {
	if f, ok := scope.(*Frame); ok {
		return f.cancel
	}
	return noCancellation{}
}
