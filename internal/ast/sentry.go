package ast

import (
	"time"

	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/values"
)

// InstrumentSentryNode wraps an identified expression so the instrumentation
// fabric can observe its enter/return events. It is only active when the
// current frame carries an Observer (attached exactly once, for the root
// call-target of an execute request — see internal/calltarget) and the node
// passes the filter: it has an expression id, is not avoid-id-instrumentation,
// and its source span lies within the observed root's span.
type InstrumentSentryNode struct {
	Base
	Child Node
}

func (n *InstrumentSentryNode) Execute(frame *Frame) values.Value {
	obs := frame.Observer()
	if obs == nil || !n.Instrumentable() || !obs.SpanFilter(n.Sp.StartLine) {
		return n.Child.Execute(frame)
	}

	if cached, hit := obs.OnEnter(n.ExprID); hit {
		// Unwind: return the cached value in place of evaluating the
		// subtree at all.
		return cached
	}

	start := time.Now()
	result, tc := n.runChild(frame)
	if tc != nil {
		// Return-exceptional case: a TailCallException bubbled out of the
		// child uncaught. Materialize it to a concrete value so this node
		// still has something to record and return.
		final := materializeTailCall(*tc)
		obs.OnReturnTailCall(n.ExprID, final, time.Since(start))
		return final
	}

	elapsed := time.Since(start)
	if sentinel, ok := result.(*values.PanicSentinel); ok {
		// Already localized by runChild's recover — record the pass-through
		// and keep it unwinding as the same, already-localized exception.
		obs.OnReturnValue(n.ExprID, sentinel, elapsed, true)
		panic(values.PanicException{P: sentinel.Inner, Sentinel: sentinel})
	}

	if p, ok := result.(*values.Panic); ok {
		// A builtin returned a Panic value directly rather than raising one
		// as a Go panic: this node is the origin, so localize it here.
		sentinel := values.NewPanicSentinel(n.ExprID, p)
		obs.OnReturnValue(n.ExprID, sentinel, elapsed, true)
		panic(values.PanicException{P: p, Sentinel: sentinel})
	}

	obs.OnReturnValue(n.ExprID, result, elapsed, false)
	return result
}

// runChild executes the child, catching a TailCallException or a
// PanicException bubbling out of it. A PanicException is localized at most
// once: the first sentry it reaches mints the Sentinel, and a sentry that
// catches one already carrying a Sentinel returns that same Sentinel, which
// Execute records and re-panics so ancestors never mint their own.
func (n *InstrumentSentryNode) runChild(frame *Frame) (result values.Value, tc *values.TailCallException) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(values.TailCallException); ok {
				tc = &t
				return
			}
			pe, ok := r.(values.PanicException)
			if !ok {
				panic(r)
			}
			if pe.Sentinel != nil {
				// Already localized further down; just pass it through as
				// this node's result so Execute's own bookkeeping runs once.
				result = pe.Sentinel
				return
			}
			sentinel := values.NewPanicSentinel(n.ExprID, pe.P)
			result = sentinel
		}
	}()
	result = n.Child.Execute(frame)
	return result, nil
}

// materializeTailCall fully resolves a still-pending tail call to a
// concrete value via a plain (non-tail) invoke, letting its own trampoline
// run to a fixpoint.
func materializeTailCall(tc values.TailCallException) values.Value {
	fn, ok := tc.Function.(*values.Function)
	if !ok {
		return &values.Panic{Payload: values.Text{Rope: "tail call target is not invocable"}}
	}
	return fn.Target.Invoke(tc.Args, fn.Scope)
}

// FunctionCallInstrumentationNode is the no-op node interposed around every
// call site purely so the instrumentation fabric can observe call events
// distinctly from ordinary expression sentries: it reports onFunctionReturn,
// and if the callback replies with an override value, unwinds with that
// value instead of the real call result.
type FunctionCallInstrumentationNode struct {
	Base
	Call       Node
	TargetName string
}

func (n *FunctionCallInstrumentationNode) Execute(frame *Frame) values.Value {
	result := n.Call.Execute(frame)
	obs := frame.Observer()
	if obs == nil || !n.Instrumentable() {
		return result
	}
	if override, ok := obs.OnFunctionReturn(n.ExprID, instrument.FunctionCall{
		ExpressionID: n.ExprID,
		TargetName:   n.TargetName,
	}); ok {
		return override
	}
	return result
}
