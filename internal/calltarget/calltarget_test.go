package calltarget

import (
	"testing"

	"github.com/driftlang/drift/internal/ast"
	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/values"
)

// countdownNode is a synthetic tail-recursive body: decrement n until it
// reaches zero, raising a TailCallException instead of calling itself
// directly, the same shape a compiled self-recursive tail call takes.
type countdownNode struct {
	ast.Base
	self **CallTarget
}

var nSym = interner.Intern("n")

func (c *countdownNode) Execute(frame *ast.Frame) values.Value {
	v, ok := frame.Lookup(nSym)
	if !ok {
		return &values.Panic{Payload: values.Text{Rope: "n not bound"}}
	}
	n := v.(values.Long).V
	if n <= 0 {
		return values.Long{V: 0}
	}
	panic(values.TailCallException{
		Function: &values.Function{Target: *c.self},
		Args:     []values.Value{values.Long{V: n - 1}},
	})
}

func TestTailCallDoesNotGrowNativeStack(t *testing.T) {
	var self *CallTarget
	node := &countdownNode{self: &self}
	node.Tail = ast.TailLoop
	self = New("countdown", node, []*interner.Symbol{nSym})

	const depth = 1_000_000
	result := self.Invoke([]values.Value{values.Long{V: depth}}, nil)

	got, ok := result.(values.Long)
	if !ok {
		t.Fatalf("expected a Long result, got %T (%v)", result, result)
	}
	if got.V != 0 {
		t.Fatalf("expected countdown to reach 0, got %d", got.V)
	}
	if self.State() != "looping" {
		t.Fatalf("expected the one-shot optimiser swap to have fired, state = %s", self.State())
	}
}

func TestInvokeWithoutTailCallStaysSimple(t *testing.T) {
	lit := ast.NewLiteral("expr-1", values.Long{V: 42})
	ct := New("const", lit, nil)

	result := ct.Invoke(nil, nil)
	got, ok := result.(values.Long)
	if !ok || got.V != 42 {
		t.Fatalf("expected Long{42}, got %#v", result)
	}
	if ct.State() != "simple" {
		t.Fatalf("a call target that never tail-calls should stay simple, got %s", ct.State())
	}
}
