package values

// TailCallException is raised (as a Go panic) by a node at a tail position
// that is itself tagged tail, instead of invoking the callee directly. The
// call-optimiser at the entry point of whichever CallTarget is currently
// running catches it and loops rather than growing the native stack.
type TailCallException struct {
	Function Value
	Args     []Value
}

// PanicException is the Go-level carrier for an unwinding Panic value. It
// is raised as a Go panic so it unwinds native frames the way an abortive
// exception does, and is recovered either by instrumentation (which
// converts it to a PanicSentinel at the observed node) or at the root of
// an execution request.
//
// Sentinel is nil until the first instrumented node the exception passes
// through localizes it; every ancestor node that catches the exception
// afterwards sees the same, already-set Sentinel and must not overwrite
// it — this is what pins a panic report to its origin expression id rather
// than an ancestor's.
type PanicException struct {
	P        *Panic
	Sentinel *PanicSentinel
}

func (e PanicException) Error() string {
	return "panic: " + inspectBrief(e.P.Payload)
}

func inspectBrief(v Value) string {
	switch t := v.(type) {
	case Long:
		return "Long"
	case Text:
		return "Text(" + t.Rope + ")"
	case nil:
		return "nil"
	default:
		return v.Ctor().Name.String()
	}
}
