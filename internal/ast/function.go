package ast

import "github.com/driftlang/drift/internal/values"

// CreateFunctionNode produces a first-class Function value, capturing the
// currently executing Frame as its closure scope. Target is the already-
// compiled CallTarget for the function's body — supplied by whatever built
// this node (module loading lives outside both internal/ast and
// internal/calltarget to avoid a cycle between them), not constructed here.
type CreateFunctionNode struct {
	Base
	Target values.CallTarget
	Schema values.ArgSchema
}

func (n *CreateFunctionNode) Execute(frame *Frame) values.Value {
	return &values.Function{Target: n.Target, Scope: frame, Schema: n.Schema}
}

// exprThunkTarget adapts an arbitrary expression subtree, evaluated against
// a fixed captured Frame, into a values.CallTarget so it can back a
// suspended argument's Thunk. It never raises TailCallException — forcing
// a suspended argument is never itself a tail position.
type exprThunkTarget struct {
	node Node
	frame *Frame
}

func (t *exprThunkTarget) Name() string { return "<suspended>" }

func (t *exprThunkTarget) Invoke(args []values.Value, scope values.LocalScope) values.Value {
	return t.node.Execute(t.frame)
}

// NewSuspendedArg wraps node as a Thunk captured over frame, used by call
// sites to implement suspended-argument parameter passing.
func NewSuspendedArg(node Node, frame *Frame) *values.Thunk {
	return &values.Thunk{Target: &exprThunkTarget{node: node, frame: frame}, Captured: frame}
}
