package ast

import (
	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/values"
)

// VariableReadNode reads a name out of the current frame chain.
type VariableReadNode struct {
	Base
	Name *interner.Symbol
}

func NewVariableRead(exprID string, name *interner.Symbol) *VariableReadNode {
	return &VariableReadNode{Base: Base{ExprID: exprID}, Name: name}
}

func (n *VariableReadNode) Execute(frame *Frame) values.Value {
	v, ok := frame.Lookup(n.Name)
	if !ok {
		return &values.DataflowError{
			Kind:    "UnboundVariable",
			Payload: values.Text{Rope: n.Name.String()},
		}
	}
	return v
}
