// Package calltarget implements the tail-call trampoline and call-optimiser:
// every CallTarget's entry point is a SimpleCallOptimiser until it first
// catches a TailCallException bubbling out of its own root, at which point
// it swaps itself, one-shot, into a LoopingCallOptimiser that absorbs every
// subsequent self- or mutual-tail call as iteration instead of native
// recursion.
package calltarget

import (
	"sync"

	"github.com/driftlang/drift/internal/ast"
	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/values"
)

type optimiserState int32

const (
	simpleOptimiser optimiserState = iota
	loopingOptimiser
)

// CallTarget is the invocable handle backed by a compiled AST root. It
// implements values.CallTarget so Function values can hold one directly.
type CallTarget struct {
	name       string
	root       ast.Node
	paramNames []*interner.Symbol

	mu    sync.Mutex
	state optimiserState
}

// New builds a CallTarget over a compiled root node with the given
// positional parameter names.
func New(name string, root ast.Node, paramNames []*interner.Symbol) *CallTarget {
	return &CallTarget{name: name, root: root, paramNames: paramNames}
}

func (ct *CallTarget) Name() string { return ct.name }

// State reports "simple" or "looping" — test-only visibility into the
// one-shot optimiser transition.
func (ct *CallTarget) State() string {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.state == loopingOptimiser {
		return "looping"
	}
	return "simple"
}

// Invoke is the plain, unobserved entry point used by every ordinary call
// (including recursive self-calls and calls to other functions). No
// instrumentation observer is attached here — that is precisely what keeps
// recursive re-entries and callee bodies outside an instrumented root's
// span un-instrumented, with no separate reentrancy bookkeeping needed.
func (ct *CallTarget) Invoke(args []values.Value, scope values.LocalScope) values.Value {
	return ct.run(args, scope, nil)
}

// InvokeObserved is the entry point an ExecutionContext uses exactly once,
// for the root call-target of an execute request, attaching obs to the
// frame tree for that single invocation.
func (ct *CallTarget) InvokeObserved(args []values.Value, scope values.LocalScope, obs instrument.Observer) values.Value {
	return ct.run(args, scope, obs)
}

func (ct *CallTarget) run(args []values.Value, outerScope values.LocalScope, obs instrument.Observer) values.Value {
	cancel := ast.CancellationFrom(outerScope)
	frame := ast.NewFrame(outerScope, ct.paramNames, args, obs, cancel)

	currentRoot := ct.root
	currentTarget := ct
	currentFrame := frame

	for {
		if currentFrame.Safepoint() {
			return &values.Panic{Payload: values.Text{Rope: "cancelled"}}
		}

		result, tc := executeOnce(currentRoot, currentFrame)
		if tc == nil {
			return result
		}

		// Caught a tail call: one-shot SimpleCallOptimiser -> LoopingCallOptimiser
		// transition (idempotent past the first time).
		currentTarget.promoteToLooping()

		fn, ok := tc.Function.(*values.Function)
		if !ok {
			return &values.Panic{Payload: values.Text{Rope: "tail call target is not invocable"}}
		}
		nextTarget, ok := fn.Target.(*CallTarget)
		if !ok {
			// Crossing into an opaque (builtin) call target: builtins never
			// raise TailCallException themselves, so this is a normal,
			// terminal call.
			return fn.Target.Invoke(tc.Args, fn.Scope)
		}

		nextObs := obs
		if nextTarget != currentTarget {
			// Mutual tail call leaving the originally observed call
			// target: the binding is scoped to that function's own root
			// call-target and does not follow across this boundary.
			nextObs = nil
		}

		currentTarget = nextTarget
		currentRoot = nextTarget.root
		currentFrame = ast.NewFrame(fn.Scope, nextTarget.paramNames, tc.Args, nextObs, cancel)
		obs = nextObs
	}
}

func (ct *CallTarget) promoteToLooping() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.state = loopingOptimiser
}

// executeOnce runs root once, converting a TailCallException panic into a
// returned value rather than letting it keep unwinding — this is the
// boundary where the native stack growth for self/mutual tail recursion is
// capped: no Go call ever nests here, the loop in run absorbs it.
func executeOnce(root ast.Node, frame *ast.Frame) (result values.Value, tc *values.TailCallException) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(values.TailCallException); ok {
				tc = &t
				return
			}
			panic(r)
		}
	}()
	result = root.Execute(frame)
	return result, nil
}
