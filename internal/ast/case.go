package ast

import (
	"sync"

	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/values"
)

// Pattern matches a scrutinee value, optionally producing field bindings.
type Pattern interface {
	Match(v values.Value) (bindings map[*interner.Symbol]values.Value, ok bool)
}

// ConstructorPattern matches an Atom built from a specific constructor and
// binds its fields positionally to FieldNames.
type ConstructorPattern struct {
	Ctor       *values.TypeCtor
	FieldNames []*interner.Symbol
}

func (p ConstructorPattern) Match(v values.Value) (map[*interner.Symbol]values.Value, bool) {
	atom, ok := v.(*values.Atom)
	if !ok || atom.Constructor != p.Ctor {
		return nil, false
	}
	bindings := make(map[*interner.Symbol]values.Value, len(p.FieldNames))
	for i, name := range p.FieldNames {
		if i < len(atom.Fields) {
			bindings[name] = atom.Fields[i]
		}
	}
	return bindings, true
}

// WildcardPattern matches anything, binding nothing (or a single catch-all
// name if Name is set).
type WildcardPattern struct{ Name *interner.Symbol }

func (p WildcardPattern) Match(v values.Value) (map[*interner.Symbol]values.Value, bool) {
	if p.Name == nil {
		return nil, true
	}
	return map[*interner.Symbol]values.Value{p.Name: v}, true
}

// CaseBranch pairs a pattern with the body to run when it matches.
type CaseBranch struct {
	Pattern Pattern
	Body    Node
}

// CaseBranchNode evaluates Scrutinee once and dispatches to the first
// matching branch. It self-specializes: the index of the last branch that
// matched is tried first on the next evaluation, an in-place mutation that
// lets a hot branch skip the earlier candidates on repeat execution.
type CaseBranchNode struct {
	Base
	Scrutinee Node
	Branches  []CaseBranch

	mu        sync.Mutex
	lastIndex int
}

func (n *CaseBranchNode) Execute(frame *Frame) values.Value {
	scrutinee := raiseIfPanic(n.Scrutinee.Execute(frame))
	if isShortCircuit(scrutinee) {
		return scrutinee
	}

	n.mu.Lock()
	last := n.lastIndex
	n.mu.Unlock()

	for _, idx := range orderedFrom(len(n.Branches), last) {
		br := n.Branches[idx]
		bindings, ok := br.Pattern.Match(scrutinee)
		if !ok {
			continue
		}
		child := frame.NewChildFrame()
		for name, v := range bindings {
			child.Bind(name, v)
		}
		n.mu.Lock()
		n.lastIndex = idx
		n.mu.Unlock()
		return br.Body.Execute(child)
	}
	return &values.DataflowError{Kind: "NoMatchingBranch", Payload: scrutinee}
}

// orderedFrom returns 0..n-1 with `first` moved to the front, so a
// specialized branch is tried before falling back to the declared order.
func orderedFrom(n, first int) []int {
	out := make([]int, 0, n)
	if first >= 0 && first < n {
		out = append(out, first)
	}
	for i := 0; i < n; i++ {
		if i != first {
			out = append(out, i)
		}
	}
	return out
}
