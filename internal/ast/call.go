package ast

import "github.com/driftlang/drift/internal/values"

// AdaptArity pads or packs a raw argument list to match schema: missing
// optional arguments are defaulted to Unit, and a variadic tail (anything
// beyond Required+Optional) is collected into a trailing Array.
func AdaptArity(schema values.ArgSchema, args []values.Value) []values.Value {
	need := schema.Required + schema.Optional
	if !schema.Variadic {
		out := make([]values.Value, need)
		n := copy(out, args)
		for i := n; i < need; i++ {
			out[i] = values.Unit
		}
		return out
	}
	if len(args) <= need {
		out := make([]values.Value, need+1)
		n := copy(out, args)
		for i := n; i < need; i++ {
			out[i] = values.Unit
		}
		out[need] = &values.Array{}
		return out
	}
	out := make([]values.Value, need+1)
	copy(out, args[:need])
	tail := make([]values.Value, len(args)-need)
	copy(tail, args[need:])
	out[need] = &values.Array{Items: tail}
	return out
}

// ApplyFunction is the call pipeline's single entry point for invoking an
// already-resolved callable value with already-evaluated arguments. When
// tailPosition and markedTail both hold, it raises TailCallException
// instead of invoking directly, handing control to whichever CallTarget's
// trampoline is currently looping.
func ApplyFunction(fn values.Value, args []values.Value, tailPosition, markedTail bool) values.Value {
	f, ok := fn.(*values.Function)
	if !ok {
		return &values.DataflowError{Kind: "NotCallable", Payload: fn}
	}
	callArgs := AdaptArity(f.Schema, args)
	if tailPosition && markedTail {
		panic(values.TailCallException{Function: f, Args: callArgs})
	}
	return f.Target.Invoke(callArgs, f.Scope)
}

// CallNode invokes an arbitrary callee expression (as opposed to
// MethodDispatchNode's symbol-based dispatch): `callee(args...)`.
type CallNode struct {
	Base
	Callee Node
	Args   []Node
}

func (n *CallNode) Execute(frame *Frame) values.Value {
	calleeVal := raiseIfPanic(n.Callee.Execute(frame))
	if isShortCircuit(calleeVal) {
		return calleeVal
	}
	argVals := make([]values.Value, len(n.Args))
	for i, a := range n.Args {
		v := raiseIfPanic(a.Execute(frame))
		if isShortCircuit(v) {
			return v
		}
		argVals[i] = v
	}
	return ApplyFunction(calleeVal, argVals, n.Tail != NotTail, n.Tail == TailDirect || n.Tail == TailLoop)
}
