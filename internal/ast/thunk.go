package ast

import "github.com/driftlang/drift/internal/values"

// ForceThunkNode forces a suspended computation exactly once; if its child
// did not produce a Thunk (the value was already strict) it passes the
// value through unchanged.
type ForceThunkNode struct {
	Base
	Child Node
}

func (n *ForceThunkNode) Execute(frame *Frame) values.Value {
	v := n.Child.Execute(frame)
	if isShortCircuit(v) {
		return v
	}
	if th, ok := v.(*values.Thunk); ok {
		return raiseIfPanic(th.Force())
	}
	return v
}
