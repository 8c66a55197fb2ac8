// Package execctx implements the per-request execution context and its
// single-consumer job queue: push/pop stack frame, recompute, attach/
// modify/detach visualisation, with cancellation and FIFO ordering except
// that a state-mutating job cancels an in-flight execute.
package execctx

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/driftlang/drift/internal/ast"
	"github.com/driftlang/drift/internal/diag"
	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/values"
)

// State is a context's lifecycle state for the single request currently
// occupying it (or Idle if none).
type State int

const (
	Idle State = iota
	Compiling
	Running
	Returning
	Panicking
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Compiling:
		return "compiling"
	case Running:
		return "running"
	case Returning:
		return "returning"
	case Panicking:
		return "panicking"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Runner is the engine-supplied hook that actually compiles and executes a
// context's stack. ExecutionContext owns sequencing, cancellation, and the
// cache/visualisation registry; it never resolves scopes or call targets
// itself — that stays in internal/engine, keeping parsing and method
// resolution out of this package the same way surface parsing is kept out
// of the whole core.
type Runner interface {
	// EnsureCompiled prepares whatever call target the stack needs. It is
	// idempotent and cheap to call before every execute.
	EnsureCompiled(stack []StackItem) error
	// Execute runs the stack to completion (or to a raised panic), starting
	// from whatever frame the Runner treats as the request root, attaching
	// obs for instrumentation and consulting cancel at safepoints.
	Execute(stack []StackItem, obs instrument.Observer, cancel ast.Cancellation) (values.Value, error)
}

// cancelFlag implements ast.Cancellation for one in-flight execute.
type cancelFlag struct{ flag atomic.Bool }

func (c *cancelFlag) Cancelled() bool { return c.flag.Load() }
func (c *cancelFlag) set()            { c.flag.Store(true) }

// ExecutionContext is a per-request interpreter instance with its own
// call stack, visualisation registry, and expression cache.
type ExecutionContext struct {
	ID string

	runner Runner
	cache  *instrument.ExprCache
	logger *diag.Logger
	grace  time.Duration

	jobs chan job
	done chan struct{}

	// mu guards everything below; it is held only for the duration of a
	// single job's state mutation, never across an Execute call (which can
	// run arbitrarily long engine code).
	mu             sync.Mutex
	stack          []StackItem
	visualisations map[string]VisConfig
	state          State

	inFlight   *cancelFlag // non-nil while an executeJob is running
	inFlightWG sync.WaitGroup
}

// New creates an ExecutionContext with a fresh id, wired to runner for
// compilation/execution and cache for its expression cache.
func New(runner Runner, cache *instrument.ExprCache, logger *diag.Logger, grace time.Duration) *ExecutionContext {
	if logger == nil {
		logger = diag.Noop()
	}
	ec := &ExecutionContext{
		ID:             uuid.NewString(),
		runner:         runner,
		cache:          cache,
		logger:         logger.With("execctx"),
		grace:          grace,
		jobs:           make(chan job, 64),
		done:           make(chan struct{}),
		visualisations: make(map[string]VisConfig),
	}
	go ec.loop()
	return ec
}

// Close drains and stops the context's job loop. No further jobs may be
// submitted afterwards.
func (ec *ExecutionContext) Close() {
	close(ec.jobs)
	<-ec.done
}

// State reports the context's current lifecycle state.
func (ec *ExecutionContext) State() State {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.state
}

// Stack returns a snapshot of the current call stack.
func (ec *ExecutionContext) Stack() []StackItem {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make([]StackItem, len(ec.stack))
	copy(out, ec.stack)
	return out
}

// submitMutating enqueues a state-mutating job and blocks until it (and
// whatever ExecuteJob it triggers, if any) has been processed.
func (ec *ExecutionContext) submitMutating(j job) {
	// Request cancellation of any in-flight execute before queuing: the
	// execute runs on the job loop itself, so the loop cannot reach this
	// job until that execute has returned.
	ec.mu.Lock()
	if ec.inFlight != nil {
		ec.inFlight.set()
	}
	ec.mu.Unlock()
	reply := make(chan struct{})
	ec.jobs <- wrapWithAck(j, reply)
	<-reply
}

// ackJob wraps any job with a completion signal, used by the synchronous
// public methods below; the loop unwraps it transparently.
type ackJob struct {
	inner job
	ack   chan struct{}
}

func (ackJob) isJob()           {}
func (a ackJob) mutating() bool { return a.inner.mutating() }

func wrapWithAck(j job, ack chan struct{}) job {
	return ackJob{inner: j, ack: ack}
}

// PushFrame pushes a new stack item (e.g. a step-into LocalCall).
func (ec *ExecutionContext) PushFrame(item StackItem) {
	ec.submitMutating(pushFrameJob{item: item})
}

// PopFrame pops the top stack item. No-op on an empty stack.
func (ec *ExecutionContext) PopFrame() {
	ec.submitMutating(popFrameJob{})
}

// Recompute invalidates cache entries per policy and re-executes the
// current stack.
func (ec *ExecutionContext) Recompute(invalidate Invalidate) {
	ec.submitMutating(recomputeJob{invalidate: invalidate})
}

// AttachVisualisation registers a visualisation watching exprID.
func (ec *ExecutionContext) AttachVisualisation(visID, exprID string, cfg VisConfig) {
	cfg.ExpressionID = exprID
	ec.submitMutating(attachVisualisationJob{visID: visID, exprID: exprID, config: cfg})
}

// ModifyVisualisation updates an existing visualisation's config. The
// update is atomic with respect to any in-flight execute: that run
// observes either the pre- or post-modify config in full, never a mix.
func (ec *ExecutionContext) ModifyVisualisation(visID string, cfg VisConfig) {
	ec.submitMutating(modifyVisualisationJob{visID: visID, config: cfg})
}

// DetachVisualisation removes a visualisation, leaving no trace in the
// context once the corresponding job is processed.
func (ec *ExecutionContext) DetachVisualisation(visID string) {
	ec.submitMutating(detachVisualisationJob{visID: visID})
}

// Execute runs the current stack synchronously, returning its result.
// Equivalent to submitting an ExecuteJob and waiting for the reply.
func (ec *ExecutionContext) Execute() (values.Value, error) {
	reply := make(chan executeResult, 1)
	ec.jobs <- executeJob{reply: reply}
	res := <-reply
	if res.cancelled {
		return nil, fmt.Errorf("execctx: execution cancelled")
	}
	return res.value, res.err
}

// loop is the single consumer draining ec.jobs in order. It is the only
// goroutine that ever mutates ec.stack/ec.visualisations/ec.state directly.
func (ec *ExecutionContext) loop() {
	defer close(ec.done)
	for j := range ec.jobs {
		ack, inner := unwrapAck(j)
		ec.process(inner)
		if ack != nil {
			close(ack)
		}
	}
}

func unwrapAck(j job) (chan struct{}, job) {
	if a, ok := j.(ackJob); ok {
		return a.ack, a.inner
	}
	return nil, j
}

func (ec *ExecutionContext) process(j job) {
	if j.mutating() {
		ec.cancelInFlightAndWait()
	}
	switch t := j.(type) {
	case pushFrameJob:
		ec.mu.Lock()
		ec.stack = append(ec.stack, t.item)
		ec.mu.Unlock()
	case popFrameJob:
		ec.mu.Lock()
		if len(ec.stack) > 0 {
			ec.stack = ec.stack[:len(ec.stack)-1]
		}
		ec.mu.Unlock()
	case recomputeJob:
		if !t.invalidate.isNone() {
			if t.invalidate.All {
				ec.cache.Invalidate(nil)
			} else {
				ec.cache.Invalidate(t.invalidate.IDs)
			}
		}
		ec.runExecute()
	case attachVisualisationJob:
		ec.mu.Lock()
		ec.visualisations[t.visID] = t.config
		ec.mu.Unlock()
	case modifyVisualisationJob:
		ec.mu.Lock()
		ec.visualisations[t.visID] = t.config
		ec.mu.Unlock()
	case detachVisualisationJob:
		ec.mu.Lock()
		delete(ec.visualisations, t.visID)
		ec.mu.Unlock()
	case executeJob:
		ec.runExecuteFor(t)
	case ensureCompiledJob:
		ec.mu.Lock()
		stack := append([]StackItem(nil), ec.stack...)
		ec.mu.Unlock()
		err := ec.runner.EnsureCompiled(stack)
		if t.reply != nil {
			t.reply <- err
		}
	}
}

// cancelInFlightAndWait requests cancellation of a currently-running
// executeJob (if any) and waits up to the configured grace window for it
// to observe the cancellation at its next safepoint. The cache is left
// consistent either way: each entry is written by a single Put of a
// complete CacheEntry, so an entry the cancelled run had not finished
// producing was never put at all.
func (ec *ExecutionContext) cancelInFlightAndWait() {
	ec.mu.Lock()
	cf := ec.inFlight
	ec.mu.Unlock()
	if cf == nil {
		return
	}
	cf.set()

	done := make(chan struct{})
	go func() {
		ec.inFlightWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(ec.grace):
		ec.logger.Warn("execute did not reach a safepoint within grace window", diag.F("context_id", ec.ID))
	}
}

func (ec *ExecutionContext) runExecute() {
	ec.runExecuteFor(executeJob{})
}

func (ec *ExecutionContext) runExecuteFor(j executeJob) {
	ec.mu.Lock()
	ec.state = Compiling
	stack := append([]StackItem(nil), ec.stack...)
	ec.mu.Unlock()

	if err := ec.runner.EnsureCompiled(stack); err != nil {
		ec.mu.Lock()
		ec.state = Idle
		ec.mu.Unlock()
		if j.reply != nil {
			j.reply <- executeResult{err: err}
		}
		return
	}

	cf := &cancelFlag{}
	ec.mu.Lock()
	ec.state = Running
	ec.inFlight = cf
	ec.mu.Unlock()
	ec.inFlightWG.Add(1)

	callbacks := instrument.NewCacheCallbacks(ec.cache)
	obs := instrument.NewBinding(callbacks, instrument.Span{StartLine: 0, EndLine: 1 << 30})

	var res executeResult
	func() {
		defer ec.inFlightWG.Done()
		defer func() {
			// A PanicException that unwound to the request root becomes the
			// request's result instead of escaping the job loop.
			if r := recover(); r != nil {
				pe, ok := r.(values.PanicException)
				if !ok {
					panic(r)
				}
				var v values.Value = pe.P
				if pe.Sentinel != nil {
					v = pe.Sentinel
				}
				res = executeResult{value: v}
			}
		}()
		value, err := ec.runner.Execute(stack, obs, cf)
		res = executeResult{value: value, err: err, cancelled: cf.Cancelled() && err == nil && value == nil}
	}()

	ec.mu.Lock()
	ec.inFlight = nil
	if res.cancelled {
		ec.state = Cancelled
	} else if res.err != nil {
		ec.state = Panicking
	} else {
		ec.state = Returning
	}
	ec.state = Idle
	ec.mu.Unlock()

	if j.reply != nil {
		j.reply <- res
	}
}
