package ast

import "github.com/driftlang/drift/internal/values"

// isShortCircuit reports whether v is a DataflowError that a pure operation
// must propagate unchanged rather than operate on.
func isShortCircuit(v values.Value) bool {
	_, ok := v.(*values.DataflowError)
	return ok
}

// raiseIfPanic converts a *values.Panic appearing as an ordinary return
// value (e.g. produced by a builtin "panic" call) into a Go-level
// PanicException so it unwinds native frames toward the request root from
// this point on.
func raiseIfPanic(v values.Value) values.Value {
	if p, ok := v.(*values.Panic); ok {
		panic(values.PanicException{P: p})
	}
	return v
}
