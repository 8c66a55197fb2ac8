// Package ast implements the mutable AST node graph: expression nodes that
// produce a Value when executed in a frame, organized per module,
// self-rewriting in place (PIC fill-in, call-optimiser swap, branch
// specialization) and released only when their owning call-target is
// discarded.
package ast

import "github.com/driftlang/drift/internal/values"

// Span is a source range: a start and end line/column pair, reduced to the
// line extent instrumentation actually filters on.
type Span struct {
	StartLine, StartCol int
	EndLine, EndCol      int
}

// TailStatus is a node's tail-position classification, fixed at IR-lowering
// time.
type TailStatus int

const (
	NotTail TailStatus = iota
	TailDirect
	TailLoop
)

// Node is the common interface of every AST node. ExpressionID returns ""
// for nodes with no attached id (most internal plumbing nodes); Span,
// TailStatus, Instrumentable and IsCallSite back the instrumentation
// filter applied at sentry-node entry.
type Node interface {
	Execute(frame *Frame) values.Value
	ExpressionID() string
	Span() Span
	TailStatus() TailStatus
	// Instrumentable reports filter conditions (a) and (b): the node has
	// an expression id and is tagged as an expression-or-call, and is not
	// explicitly marked avoid-id-instrumentation.
	Instrumentable() bool
	IsCallSite() bool
}

// Base is embedded by every concrete node and implements the accessor
// methods of Node; concrete nodes only need to implement Execute.
type Base struct {
	ExprID               string
	Sp                   Span
	Tail                  TailStatus
	AvoidInstrumentation bool
	CallSite             bool
}

func (b *Base) ExpressionID() string  { return b.ExprID }
func (b *Base) Span() Span            { return b.Sp }
func (b *Base) TailStatus() TailStatus { return b.Tail }
func (b *Base) IsCallSite() bool      { return b.CallSite }

func (b *Base) Instrumentable() bool {
	return b.ExprID != "" && !b.AvoidInstrumentation
}
