package instrument

import "github.com/driftlang/drift/internal/values"

// FunctionCall carries the information a function-call-instrumentation
// node reports about a call site.
type FunctionCall struct {
	ExpressionID string
	TargetName   string
	Args         []values.Value
}

// Callbacks is the externally-supplied contract an embedder implements to
// receive cache/visualisation events. Every method must be non-blocking and
// must not re-enter the interpreter on the calling thread for the same
// context.
type Callbacks interface {
	FindCachedResult(exprID string) (values.Value, bool)
	UpdateCachedResult(exprID string, value values.Value, isPanic bool, nanos int64)
	OnFunctionReturn(exprID string, call FunctionCall) (override values.Value, ok bool)
}

// cacheCallbacks adapts a plain *ExprCache into the Callbacks contract, the
// default wiring used when no external IDE/visualisation consumer is
// attached — the cache IS the callback target.
type cacheCallbacks struct {
	cache *ExprCache
}

// NewCacheCallbacks builds the default Callbacks implementation backed
// directly by an ExprCache, with no external override capability.
func NewCacheCallbacks(cache *ExprCache) Callbacks {
	return &cacheCallbacks{cache: cache}
}

func (c *cacheCallbacks) FindCachedResult(exprID string) (values.Value, bool) {
	entry, ok := c.cache.Lookup(exprID)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (c *cacheCallbacks) UpdateCachedResult(exprID string, value values.Value, isPanic bool, nanos int64) {
	c.cache.Record(exprID, value, isPanic, durationFromNanos(nanos))
}

func (c *cacheCallbacks) OnFunctionReturn(exprID string, call FunctionCall) (values.Value, bool) {
	return nil, false
}
