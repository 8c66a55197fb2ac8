package ast

import "github.com/driftlang/drift/internal/values"

// LiteralNode produces a fixed, pre-computed Value.
type LiteralNode struct {
	Base
	Value values.Value
}

func (n *LiteralNode) Execute(frame *Frame) values.Value { return n.Value }

// NewLiteral builds an uninstrumentable-by-default literal node (literals
// rarely need an expression id, but one can be set on Base for tests that
// exercise the cache against a trivial node).
func NewLiteral(exprID string, v values.Value) *LiteralNode {
	return &LiteralNode{Base: Base{ExprID: exprID}, Value: v}
}
