package ast

import (
	"github.com/driftlang/drift/internal/dispatch"
	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/scope"
	"github.com/driftlang/drift/internal/values"
)

// MethodDispatchNode is the `receiver.method(args...)` call site compiled
// from an `InvokeCallable` IR node holding an UnresolvedSymbol: it resolves
// Symbol against the receiver's constructor through its own per-call-site
// PIC, then runs the call pipeline.
type MethodDispatchNode struct {
	Base
	Receiver  Node
	Symbol    *interner.Symbol
	Args      []Node
	Suspended []bool // per-argument suspended flag, same length as Args or nil

	PIC      *dispatch.PIC
	Scope    values.ScopeRef
	Registry *scope.Registry
}

// NewMethodDispatch builds a dispatch node with a fresh PIC of the given
// width (0 uses dispatch.DefaultWidth).
func NewMethodDispatch(exprID string, receiver Node, symbol *interner.Symbol, args []Node, picWidth int, scopeRef values.ScopeRef, registry *scope.Registry) *MethodDispatchNode {
	return &MethodDispatchNode{
		Base:     Base{ExprID: exprID, CallSite: true},
		Receiver: receiver,
		Symbol:   symbol,
		Args:     args,
		PIC:      dispatch.NewPIC(picWidth),
		Scope:    scopeRef,
		Registry: registry,
	}
}

func (n *MethodDispatchNode) Execute(frame *Frame) values.Value {
	recv := raiseIfPanic(n.Receiver.Execute(frame))
	if isShortCircuit(recv) {
		return recv
	}

	argVals := make([]values.Value, len(n.Args))
	for i, a := range n.Args {
		if n.Suspended != nil && i < len(n.Suspended) && n.Suspended[i] {
			argVals[i] = NewSuspendedArg(a, frame)
			continue
		}
		v := raiseIfPanic(a.Execute(frame))
		if isShortCircuit(v) {
			return v
		}
		argVals[i] = v
	}

	fn, err := n.PIC.Resolve(n.Symbol, recv.Ctor(), n.Scope, n.Registry)
	if err != nil {
		return &values.DataflowError{Kind: "MethodDoesNotExist", Payload: values.Text{Rope: err.Error()}}
	}

	callArgs := append([]values.Value{recv}, argVals...)
	return ApplyFunction(fn, callArgs, n.Tail != NotTail, n.Tail == TailDirect || n.Tail == TailLoop)
}
