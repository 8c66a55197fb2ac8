package instrument

import (
	"time"

	"github.com/driftlang/drift/internal/values"
)

// Span is a source-line range, duplicated from internal/ast's Span shape to
// avoid instrument depending on ast (ast depends on instrument, not the
// reverse). A node's source span lying within [StartLine, EndLine] is the
// filter condition a sentry node's entry check applies.
type Span struct {
	StartLine int
	EndLine   int
}

func (s Span) Contains(line int) bool { return line >= s.StartLine && line <= s.EndLine }

// Observer is the interface internal/ast's sentry nodes call into on
// enter/return. It is the in-process glue between a sentry node and the
// ExecutionContext's Callbacks + ExprCache, and implements the span filter
// and enter/return pairing the instrumentation fabric relies on.
type Observer interface {
	// OnEnter is called when a matched node begins executing. If hit is
	// true, the node must unwind immediately and return value as though
	// it had evaluated to it.
	OnEnter(exprID string) (value values.Value, hit bool)
	// OnReturnValue is called with the node's normally-produced return
	// value; it records elapsed time and reports is_panic.
	OnReturnValue(exprID string, value values.Value, elapsed time.Duration, isPanic bool)
	// OnReturnTailCall is called when the node's execution ended by
	// raising a TailCallException that the call trampoline has already
	// resolved to a final value.
	OnReturnTailCall(exprID string, finalValue values.Value, elapsed time.Duration)
	// OnFunctionReturn is the distinct report path for function-call
	// instrumentation nodes; an override value, if returned, must be
	// unwound with instead of the real call result.
	OnFunctionReturn(exprID string, call FunctionCall) (override values.Value, ok bool)
	// SpanFilter reports whether a node at the given source line is
	// within the observed root's instrumented span.
	SpanFilter(line int) bool
}

// binding implements Observer. It is created once per ExecutionContext
// request that enters a function body, wraps that context's Callbacks, and
// is attached to the Frame tree for exactly that one invocation — nested
// re-entries into the SAME call target never receive a binding (see
// internal/calltarget), which is what keeps instrumentation scoped to the
// top frame and recursive re-entries un-instrumented without extra
// bookkeeping.
type binding struct {
	callbacks Callbacks
	span      Span
}

// NewBinding attaches an instrumentation binding for one root call-target
// invocation, filtered to nodes whose span lies within rootSpan.
func NewBinding(callbacks Callbacks, rootSpan Span) Observer {
	return &binding{callbacks: callbacks, span: rootSpan}
}

func (b *binding) SpanFilter(line int) bool { return b.span.Contains(line) }

func (b *binding) OnEnter(exprID string) (values.Value, bool) {
	return b.callbacks.FindCachedResult(exprID)
}

func (b *binding) OnReturnValue(exprID string, value values.Value, elapsed time.Duration, isPanic bool) {
	b.callbacks.UpdateCachedResult(exprID, value, isPanic, elapsed.Nanoseconds())
}

func (b *binding) OnReturnTailCall(exprID string, finalValue values.Value, elapsed time.Duration) {
	b.callbacks.UpdateCachedResult(exprID, finalValue, false, elapsed.Nanoseconds())
}

func (b *binding) OnFunctionReturn(exprID string, call FunctionCall) (values.Value, bool) {
	return b.callbacks.OnFunctionReturn(exprID, call)
}

// IsPanicish reports whether v is a language-level error type that is NOT a
// dataflow error — i.e. a *values.Panic (or an already-produced
// PanicSentinel, which is itself panic-ish so a second instrumented
// ancestor doesn't try to re-unwind past an already-localized panic).
func IsPanicish(v values.Value) bool {
	switch v.(type) {
	case *values.Panic:
		return true
	case *values.PanicSentinel:
		return true
	default:
		return false
	}
}
