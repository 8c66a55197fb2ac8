package execctx

import "github.com/driftlang/drift/internal/values"

// StackItem is one frame of an ExecutionContext's call stack. It is either
// an ExplicitCall (the root frame of a request) or a LocalCall pushed by an
// IDE "step-into".
type StackItem interface {
	isStackItem()
}

// ExplicitCall is the root stack frame: a named method invoked on a
// receiver with positional arguments.
type ExplicitCall struct {
	Method string
	This   values.Value
	Args   []values.Value
	Cached bool
}

func (ExplicitCall) isStackItem() {}

// LocalCall records a step-into at a specific already-identified
// expression. The engine's runners still execute from the root
// ExplicitCall; a LocalCall frame does not change where execution starts.
type LocalCall struct {
	ExpressionID string
}

func (LocalCall) isStackItem() {}

// Invalidate describes a Recompute job's cache-invalidation policy: every
// entry, an explicit set of expression ids, or none at all.
type Invalidate struct {
	All bool
	IDs []string // meaningful only when All is false; nil means "none"
}

// InvalidateAll invalidates every cache entry.
func InvalidateAll() Invalidate { return Invalidate{All: true} }

// InvalidateSet invalidates exactly the given expression ids.
func InvalidateSet(ids []string) Invalidate { return Invalidate{IDs: ids} }

// InvalidateNone performs no invalidation.
func InvalidateNone() Invalidate { return Invalidate{} }

func (i Invalidate) isNone() bool { return !i.All && len(i.IDs) == 0 }

// VisConfig is a visualisation's configuration: which expression it
// watches plus opaque display options interpreted by the consumer.
type VisConfig struct {
	ExpressionID string
	Options      map[string]string
}

// job is the internal representation of one queued unit of work: the
// public push/pop/recompute/attach/modify/detach operations plus the two
// internally generated kinds, executeJob and ensureCompiledJob, which are
// never submitted by a caller directly.
type job interface {
	isJob()
	mutating() bool
}

type pushFrameJob struct{ item StackItem }
type popFrameJob struct{}
type recomputeJob struct{ invalidate Invalidate }
type attachVisualisationJob struct {
	visID, exprID string
	config        VisConfig
}
type modifyVisualisationJob struct {
	visID  string
	config VisConfig
}
type detachVisualisationJob struct{ visID string }
type executeJob struct{ reply chan executeResult }
type ensureCompiledJob struct{ reply chan error }

func (pushFrameJob) isJob()            {}
func (popFrameJob) isJob()             {}
func (recomputeJob) isJob()            {}
func (attachVisualisationJob) isJob()  {}
func (modifyVisualisationJob) isJob()  {}
func (detachVisualisationJob) isJob()  {}
func (executeJob) isJob()              {}
func (ensureCompiledJob) isJob()       {}

func (pushFrameJob) mutating() bool           { return true }
func (popFrameJob) mutating() bool            { return true }
func (recomputeJob) mutating() bool           { return true }
func (attachVisualisationJob) mutating() bool { return true }
func (modifyVisualisationJob) mutating() bool { return true }
func (detachVisualisationJob) mutating() bool { return true }
func (executeJob) mutating() bool             { return false }
func (ensureCompiledJob) mutating() bool      { return false }

// executeResult is what an executeJob reports back to its submitter.
type executeResult struct {
	value     values.Value
	cancelled bool
	err       error
}
