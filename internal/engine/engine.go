// Package engine exposes the public contract external components (an IDE
// frontend, a notebook runtime, a test harness) drive the core through:
// evaluate-expression-in-module, call-method, edit-module, and the
// execution-context job operations. It owns no parsing itself — every
// entry point that needs fresh compiled code calls back into an injected
// Compiler, consistent with surface syntax parsing being out of scope for
// the core.
package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/driftlang/drift/internal/ast"
	"github.com/driftlang/drift/internal/calltarget"
	"github.com/driftlang/drift/internal/config"
	"github.com/driftlang/drift/internal/diag"
	"github.com/driftlang/drift/internal/dispatch"
	"github.com/driftlang/drift/internal/errors"
	"github.com/driftlang/drift/internal/execctx"
	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/scope"
	"github.com/driftlang/drift/internal/values"
)

// TextEdit is one replacement applied to a module's in-memory source, in
// the same {range, replacement} shape the editor protocol uses.
type TextEdit struct {
	StartLine, StartCol int
	EndLine, EndCol      int
	Replacement          string
}

// Compiler is the parser callback the engine assumes is available: it
// turns a module's current source text into declared types, methods, and
// compiled call targets registered against a ModuleScope. The engine never
// inspects source text itself.
type Compiler interface {
	// CompileModule rebuilds scope's constructors and methods from source,
	// replacing whatever it previously held. Idempotent: called again
	// whenever the module's effective source changes.
	CompileModule(scope *scope.ModuleScope, registry *scope.Registry, source string) error
	// CompileExpression compiles a standalone expression in the lexical
	// context of scope and returns a zero-argument call target that runs
	// it once.
	CompileExpression(scope *scope.ModuleScope, registry *scope.Registry, exprText string) (values.CallTarget, error)
}

// OnDiskSource resolves a module's source from wherever it is actually
// stored (filesystem, embedded bundle, project manager) — out of scope for
// the core itself, supplied by the embedder.
type OnDiskSource interface {
	Read(modulePath string) (string, error)
}

// Engine owns the scope registry, the module-to-path table, and every live
// ExecutionContext. Each context it creates gets its own in-memory
// expression cache.
type Engine struct {
	cfg      config.Config
	compiler Compiler
	source   OnDiskSource
	logger   *diag.Logger

	registry *scope.Registry

	mu       sync.RWMutex
	modules  map[string]*moduleEntry // module path -> entry
	contexts map[string]*execctx.ExecutionContext
}

type moduleEntry struct {
	scope    *scope.ModuleScope
	mu       sync.Mutex
	compiled bool
}

// New builds an Engine wired to compiler for parsing callbacks and source
// for on-disk module content.
func New(cfg config.Config, compiler Compiler, source OnDiskSource, logger *diag.Logger) *Engine {
	if logger == nil {
		logger = diag.Noop()
	}
	return &Engine{
		cfg:      cfg,
		compiler: compiler,
		source:   source,
		logger:   logger.With("engine"),
		registry: scope.NewRegistry(),
		modules:  make(map[string]*moduleEntry),
		contexts: make(map[string]*execctx.ExecutionContext),
	}
}

// moduleScope returns (declaring if necessary) the ModuleScope backing
// modulePath.
func (e *Engine) moduleScope(modulePath string) *moduleEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.modules[modulePath]; ok {
		return m
	}
	s := e.registry.Declare(modulePath, modulePath)
	m := &moduleEntry{scope: s}
	e.modules[modulePath] = m
	return m
}

func (e *Engine) ensureCompiled(m *moduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.compiled {
		return nil
	}
	src, hasOverride := m.scope.LiteralSource()
	if !hasOverride {
		diskSrc, err := e.source.Read(m.scope.Name())
		if err != nil {
			return errors.New(errors.ModuleNotFound, err.Error(), "module", m.scope.Name())
		}
		src = diskSrc
	}
	if err := e.compiler.CompileModule(m.scope, e.registry, src); err != nil {
		return err
	}
	m.compiled = true
	return nil
}

// EvaluateExpressionInModule parses exprText in the lexical context of
// module and returns its result. Each call gets a fresh, short-lived
// execution context so an ad hoc evaluation never leaks a stack frame or
// cache entry into a longer-lived session context.
func (e *Engine) EvaluateExpressionInModule(modulePath, exprText string) (values.Value, error) {
	m := e.moduleScope(modulePath)
	if err := e.ensureCompiled(m); err != nil {
		return nil, err
	}
	ct, err := e.compiler.CompileExpression(m.scope, e.registry, exprText)
	if err != nil {
		return nil, err
	}

	runner := &exprRunner{target: ct}
	cache := instrument.NewExprCache(instrument.NewMemStore())
	ec := execctx.New(runner, cache, e.logger, e.cfg.CancellationGraceWindow)
	defer ec.Close()

	ec.PushFrame(execctx.ExplicitCall{Method: "<expr>"})
	return ec.Execute()
}

// CallMethod looks up methodName on typeName within module and invokes it
// against the given positional arguments (receiver included as args[0] by
// convention, matching the engine's InvokeCallable shape). typeName is part
// of the public signature for parity with the caller-facing contract, but
// resolution walks the receiver's own constructor chain — any receiver
// already carries its true type identity, so a mismatched typeName can
// never silently resolve against the wrong type.
func (e *Engine) CallMethod(modulePath, typeName, methodName string, args []values.Value) (values.Value, error) {
	m := e.moduleScope(modulePath)
	if err := e.ensureCompiled(m); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New(errors.TypeError, "call-method requires a receiver as the first argument")
	}

	runner := &methodRunner{scope: m.scope, registry: e.registry}
	cache := instrument.NewExprCache(instrument.NewMemStore())
	ec := execctx.New(runner, cache, e.logger, e.cfg.CancellationGraceWindow)
	defer ec.Close()

	ec.PushFrame(execctx.ExplicitCall{Method: methodName, This: args[0], Args: args[1:]})
	return ec.Execute()
}

// EditModule applies edits to modulePath's in-memory source, then asks
// every context registered through NewContext, whichever module it is
// bound to, to recompute with every cache entry invalidated. No per-span
// diff is computed: invalidating all is always sound, just not maximally
// precise.
func (e *Engine) EditModule(modulePath string, edits []TextEdit) error {
	if len(edits) == 0 {
		return nil
	}
	m := e.moduleScope(modulePath)
	src, hasOverride := m.scope.LiteralSource()
	if !hasOverride {
		diskSrc, err := e.source.Read(modulePath)
		if err != nil {
			return errors.New(errors.ModuleNotFound, err.Error(), "module", modulePath)
		}
		src = diskSrc
	}
	applied := applyTextEdits(src, edits)

	e.registry.WithWriteLock(func() {
		m.scope.SetLiteralSource(applied)
		m.mu.Lock()
		m.compiled = false
		m.mu.Unlock()
	})

	e.mu.RLock()
	ctxs := make([]*execctx.ExecutionContext, 0, len(e.contexts))
	for _, ec := range e.contexts {
		ctxs = append(ctxs, ec)
	}
	e.mu.RUnlock()
	for _, ec := range ctxs {
		ec.Recompute(execctx.InvalidateAll())
	}
	return nil
}

// SetLiteralSource installs an in-memory override for modulePath's source,
// bypassing disk entirely until ResetToOnDisk is called.
func (e *Engine) SetLiteralSource(modulePath, contents string) {
	m := e.moduleScope(modulePath)
	e.registry.WithWriteLock(func() {
		m.scope.SetLiteralSource(contents)
		m.mu.Lock()
		m.compiled = false
		m.mu.Unlock()
	})
}

// ResetToOnDisk discards modulePath's literal-source override, reverting
// to whatever OnDiskSource next reports.
func (e *Engine) ResetToOnDisk(modulePath string) {
	m := e.moduleScope(modulePath)
	e.registry.WithWriteLock(func() {
		m.scope.ResetToOnDisk()
		m.mu.Lock()
		m.compiled = false
		m.mu.Unlock()
	})
}

// NewContext creates a new, registered, long-lived ExecutionContext bound
// to modulePath, for callers that need an explicit push/pop/recompute/
// visualisation session rather than the one-shot Evaluate/Call helpers.
func (e *Engine) NewContext(modulePath string) (*execctx.ExecutionContext, error) {
	m := e.moduleScope(modulePath)
	if err := e.ensureCompiled(m); err != nil {
		return nil, err
	}
	runner := &methodRunner{scope: m.scope, registry: e.registry}
	cache := instrument.NewExprCache(instrument.NewMemStore())
	ec := execctx.New(runner, cache, e.logger, e.cfg.CancellationGraceWindow)

	e.mu.Lock()
	e.contexts[ec.ID] = ec
	e.mu.Unlock()
	return ec, nil
}

// CloseContext stops and forgets a context previously returned by
// NewContext.
func (e *Engine) CloseContext(ec *execctx.ExecutionContext) {
	e.mu.Lock()
	delete(e.contexts, ec.ID)
	e.mu.Unlock()
	ec.Close()
}

// applyTextEdits rewrites src by replacing each edit's line/column range
// with its replacement text. Edits are applied in the order given; callers
// (the editor protocol) are responsible for supplying non-overlapping
// ranges in leftmost-to-rightmost or bottom-to-top order as needed.
func applyTextEdits(src string, edits []TextEdit) string {
	lines := splitLinesKeepEnds(src)
	for _, e := range edits {
		lines = applyOneEdit(lines, e)
	}
	var out string
	for _, l := range lines {
		out += l
	}
	return out
}

func splitLinesKeepEnds(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func applyOneEdit(lines []string, e TextEdit) []string {
	if e.StartLine < 0 || e.StartLine >= len(lines) || e.EndLine < 0 || e.EndLine >= len(lines) {
		return lines
	}
	before := lines[e.StartLine][:min(e.StartCol, len(lines[e.StartLine]))]
	after := lines[e.EndLine][min(e.EndCol, len(lines[e.EndLine])):]
	replaced := before + e.Replacement + after

	out := make([]string, 0, len(lines)-(e.EndLine-e.StartLine))
	out = append(out, lines[:e.StartLine]...)
	out = append(out, splitLinesKeepEnds(replaced)...)
	out = append(out, lines[e.EndLine+1:]...)
	return out
}

// methodRunner implements execctx.Runner for a long-lived context bound to
// one module scope: the bottom of the stack is always the root
// ExplicitCall, resolved directly against the scope/registry exactly the
// way call-method's contract describes; any LocalCall frames above it are
// debugger bookkeeping only — the instrumentation cache is what makes a
// re-execution after a LocalCall push skip already-computed prefixes,
// so no separate resume-at-arbitrary-node machinery is needed here.
type methodRunner struct {
	scope    *scope.ModuleScope
	registry *scope.Registry
}

func (r *methodRunner) EnsureCompiled(stack []execctx.StackItem) error {
	return nil // module compilation is handled by Engine.ensureCompiled before NewContext
}

func (r *methodRunner) Execute(stack []execctx.StackItem, obs instrument.Observer, cancel ast.Cancellation) (values.Value, error) {
	if len(stack) == 0 {
		return nil, errors.New(errors.EmptyStack, "execution context has no call on its stack")
	}
	call, ok := stack[0].(execctx.ExplicitCall)
	if !ok {
		return nil, errors.New(errors.InvalidStackItem, "bottom of stack must be an ExplicitCall")
	}
	if call.This == nil {
		return nil, errors.New(errors.TypeError, "explicit call is missing a receiver")
	}

	sym := interner.Intern(call.Method)
	fn, err := dispatch.ResolveUncached(sym, call.This.Ctor(), r.scope, r.registry)
	if err != nil {
		return nil, err
	}
	ct, ok := fn.Target.(*calltarget.CallTarget)
	if !ok {
		args := append([]values.Value{call.This}, call.Args...)
		return fn.Target.Invoke(args, fn.Scope), nil
	}

	args := append([]values.Value{call.This}, call.Args...)
	return ct.InvokeObserved(args, fn.Scope, obs), nil
}

// exprRunner implements execctx.Runner for the one-shot
// EvaluateExpressionInModule path: the compiled expression is already a
// zero-argument call target, so Execute just invokes it.
type exprRunner struct {
	target values.CallTarget
}

func (r *exprRunner) EnsureCompiled(stack []execctx.StackItem) error { return nil }

func (r *exprRunner) Execute(stack []execctx.StackItem, obs instrument.Observer, cancel ast.Cancellation) (values.Value, error) {
	ct, ok := r.target.(*calltarget.CallTarget)
	if !ok {
		return r.target.Invoke(nil, nil), nil
	}
	return ct.InvokeObserved(nil, nil, obs), nil
}

// NewRequestID is a small helper embedders can use to tag external
// requests (e.g. RPC correlation ids) without importing google/uuid
// themselves.
func NewRequestID() string { return uuid.NewString() }
