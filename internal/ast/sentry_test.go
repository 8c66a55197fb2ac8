package ast

import (
	"time"

	"testing"

	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/values"
)

// recordingObserver is a minimal instrument.Observer double that records
// which expression ids it was told to cache-hit, and which were reported as
// panics, without going through internal/instrument's real cache wiring.
type recordingObserver struct {
	hits       map[string]values.Value
	panics     []string
	returned   []string
}

func (o *recordingObserver) OnEnter(exprID string) (values.Value, bool) {
	v, ok := o.hits[exprID]
	return v, ok
}
func (o *recordingObserver) OnReturnValue(exprID string, value values.Value, elapsed time.Duration, isPanic bool) {
	o.returned = append(o.returned, exprID)
	if isPanic {
		o.panics = append(o.panics, exprID)
	}
}
func (o *recordingObserver) OnReturnTailCall(exprID string, finalValue values.Value, elapsed time.Duration) {
	o.returned = append(o.returned, exprID)
}
func (o *recordingObserver) OnFunctionReturn(exprID string, call instrument.FunctionCall) (values.Value, bool) {
	return nil, false
}
func (o *recordingObserver) SpanFilter(line int) bool { return true }

type constNode struct {
	Base
	v values.Value
}

func (n *constNode) Execute(frame *Frame) values.Value { return n.v }

type panicValueNode struct {
	Base
}

func (n *panicValueNode) Execute(frame *Frame) values.Value {
	return &values.Panic{Payload: values.Text{Rope: "boom"}}
}

func TestSentryNodeCacheHitSkipsChild(t *testing.T) {
	obs := &recordingObserver{hits: map[string]values.Value{"e1": values.Long{V: 99}}}
	child := &constNode{v: values.Long{V: 1}}
	child.ExprID = "e1"
	sentry := &InstrumentSentryNode{Child: child}
	sentry.ExprID = "e1"

	frame := NewFrame(nil, nil, nil, obs, nil)
	result := sentry.Execute(frame)

	got, ok := result.(values.Long)
	if !ok || got.V != 99 {
		t.Fatalf("expected the cached Long{99} to be returned, got %#v", result)
	}
}

func TestSentryNodeRecordsReturnValue(t *testing.T) {
	obs := &recordingObserver{hits: map[string]values.Value{}}
	child := &constNode{v: values.Long{V: 5}}
	child.ExprID = "e1"
	sentry := &InstrumentSentryNode{Child: child}
	sentry.ExprID = "e1"

	frame := NewFrame(nil, nil, nil, obs, nil)
	result := sentry.Execute(frame)

	if result.(values.Long).V != 5 {
		t.Fatalf("expected Long{5}, got %#v", result)
	}
	if len(obs.returned) != 1 || obs.returned[0] != "e1" {
		t.Fatalf("expected exactly one recorded return for e1, got %v", obs.returned)
	}
}

func TestSentryNodeLocalizesPanicValueAndRepanics(t *testing.T) {
	obs := &recordingObserver{hits: map[string]values.Value{}}
	child := &panicValueNode{}
	child.ExprID = "e1"
	sentry := &InstrumentSentryNode{Child: child}
	sentry.ExprID = "e1"

	frame := NewFrame(nil, nil, nil, obs, nil)

	defer func() {
		r := recover()
		pe, ok := r.(values.PanicException)
		if !ok {
			t.Fatalf("expected a PanicException to propagate, got %#v", r)
		}
		if pe.Sentinel == nil || pe.Sentinel.OriginExpressionID != "e1" {
			t.Fatalf("expected the panic to be localized to e1, got %#v", pe.Sentinel)
		}
		if len(obs.panics) != 1 || obs.panics[0] != "e1" {
			t.Fatalf("expected the panic to be recorded against e1, got %v", obs.panics)
		}
	}()
	sentry.Execute(frame)
	t.Fatalf("expected Execute to panic")
}

func TestSentryNodePassesThroughAlreadyLocalizedPanic(t *testing.T) {
	inner := &values.Panic{Payload: values.Text{Rope: "boom"}}
	sentinel := values.NewPanicSentinel("origin-expr", inner)

	innerSentry := &InstrumentSentryNode{}
	innerSentry.ExprID = "outer"

	// Simulate a child that already panicked with a PanicException carrying
	// a Sentinel, as a nested sentry node further down would raise.
	child := &panicException{pe: values.PanicException{P: inner, Sentinel: sentinel}}
	innerSentry.Child = child

	obs := &recordingObserver{hits: map[string]values.Value{}}
	frame := NewFrame(nil, nil, nil, obs, nil)

	defer func() {
		r := recover()
		pe, ok := r.(values.PanicException)
		if !ok {
			t.Fatalf("expected a PanicException to propagate, got %#v", r)
		}
		if pe.Sentinel != sentinel {
			t.Fatalf("expected the original sentinel to pass through unchanged, got %#v", pe.Sentinel)
		}
		// The outer sentry must record the pass-through against its own id
		// too, once, without minting a second sentinel.
		if len(obs.panics) != 1 || obs.panics[0] != "outer" {
			t.Fatalf("expected exactly one panic record against outer, got %v", obs.panics)
		}
	}()
	innerSentry.Execute(frame)
	t.Fatalf("expected Execute to panic")
}

type panicException struct {
	Base
	pe values.PanicException
}

func (p *panicException) Execute(frame *Frame) values.Value { panic(p.pe) }
