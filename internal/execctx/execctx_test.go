package execctx

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/driftlang/drift/internal/ast"
	"github.com/driftlang/drift/internal/diag"
	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/values"
)

// countingRunner returns an incrementing Long each time it executes, so a
// test can tell two separate executes apart, and can optionally block
// until released to exercise cancellation.
type countingRunner struct {
	calls   atomic.Int64
	block   chan struct{} // if non-nil, Execute waits on it before returning
	onBlock func(cancel ast.Cancellation)
}

func (r *countingRunner) EnsureCompiled(stack []StackItem) error { return nil }

func (r *countingRunner) Execute(stack []StackItem, obs instrument.Observer, cancel ast.Cancellation) (values.Value, error) {
	n := r.calls.Add(1)
	if r.block != nil {
		if r.onBlock != nil {
			r.onBlock(cancel)
		}
		<-r.block
	}
	return values.Long{V: n}, nil
}

func newTestContext(r Runner) *ExecutionContext {
	cache := instrument.NewExprCache(nil)
	return New(r, cache, diag.Noop(), 50*time.Millisecond)
}

func TestExecuteReturnsRunnerResult(t *testing.T) {
	r := &countingRunner{}
	ec := New(r, instrument.NewExprCache(nil), diag.Noop(), time.Second)
	defer ec.Close()

	v, err := ec.Execute()
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if v.(values.Long).V != 1 {
		t.Fatalf("expected first call to return Long{1}, got %v", v)
	}
}

func TestPushPopFrameMutatesStack(t *testing.T) {
	r := &countingRunner{}
	ec := newTestContext(r)
	defer ec.Close()

	ec.PushFrame(ExplicitCall{Method: "f"})
	if got := len(ec.Stack()); got != 1 {
		t.Fatalf("expected 1 frame after push, got %d", got)
	}
	ec.PopFrame()
	if got := len(ec.Stack()); got != 0 {
		t.Fatalf("expected 0 frames after pop, got %d", got)
	}
}

func TestPopFrameOnEmptyStackIsNoOp(t *testing.T) {
	r := &countingRunner{}
	ec := newTestContext(r)
	defer ec.Close()

	ec.PopFrame() // must not panic
	if got := len(ec.Stack()); got != 0 {
		t.Fatalf("expected 0 frames, got %d", got)
	}
}

func TestRecomputeCancelsInFlightExecute(t *testing.T) {
	block := make(chan struct{})
	saw := make(chan struct{}, 1)
	var inFlight ast.Cancellation
	r := &countingRunner{
		block: block,
		onBlock: func(cancel ast.Cancellation) {
			// signal that the blocking execute has started
			inFlight = cancel
			saw <- struct{}{}
		},
	}
	ec := newTestContext(r)
	defer ec.Close()

	reply := make(chan executeResult, 1)
	ec.jobs <- executeJob{reply: reply}
	<-saw // wait until the runner is actually blocked mid-execute

	done := make(chan struct{})
	go func() {
		ec.Recompute(InvalidateNone())
		close(done)
	}()

	// Recompute requests cancellation of the blocked execute, but that
	// execute never reaches a safepoint, so Recompute stays queued until it
	// is released; release it so both calls can finish.
	select {
	case <-done:
		t.Fatalf("Recompute returned while the in-flight execute was still running")
	case <-time.After(20 * time.Millisecond):
	}
	if !inFlight.Cancelled() {
		t.Fatalf("expected Recompute to request cancellation of the in-flight execute")
	}
	close(block)
	<-done
	<-reply
}

func TestAttachModifyDetachVisualisation(t *testing.T) {
	r := &countingRunner{}
	ec := newTestContext(r)
	defer ec.Close()

	ec.AttachVisualisation("v1", "expr-1", VisConfig{})
	ec.ModifyVisualisation("v1", VisConfig{ExpressionID: "expr-2", Options: map[string]string{"k": "v"}})
	ec.DetachVisualisation("v1")
	// No public accessor for visualisations; this exercises the job path
	// without panicking or deadlocking end to end.
}

func TestInvalidateNoneIsNone(t *testing.T) {
	if !InvalidateNone().isNone() {
		t.Fatalf("InvalidateNone must report isNone")
	}
	if InvalidateAll().isNone() {
		t.Fatalf("InvalidateAll must not report isNone")
	}
	if InvalidateSet([]string{"a"}).isNone() {
		t.Fatalf("a non-empty InvalidateSet must not report isNone")
	}
}
