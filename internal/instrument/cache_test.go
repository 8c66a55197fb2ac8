package instrument

import (
	"testing"
	"time"

	"github.com/driftlang/drift/internal/values"
)

func TestExprCacheRecordAndLookup(t *testing.T) {
	c := NewExprCache(nil)
	c.Record("e1", values.Long{V: 10}, false, 5*time.Millisecond)

	entry, ok := c.Lookup("e1")
	if !ok {
		t.Fatalf("expected a hit for e1")
	}
	if entry.Value.(values.Long).V != 10 {
		t.Fatalf("expected Long{10}, got %#v", entry.Value)
	}
	if entry.Dirty() {
		t.Fatalf("a freshly recorded entry must not be dirty")
	}
}

func TestExprCacheMarkDirtyHidesEntry(t *testing.T) {
	c := NewExprCache(nil)
	c.Record("e1", values.Long{V: 1}, false, 0)
	c.MarkDirty("e1")

	if _, ok := c.Lookup("e1"); ok {
		t.Fatalf("expected a dirty entry to not be a hit")
	}
}

func TestExprCacheInvalidateSetDropsOnlyListed(t *testing.T) {
	c := NewExprCache(nil)
	c.Record("a", values.Long{V: 1}, false, 0)
	c.Record("b", values.Long{V: 2}, false, 0)

	c.Invalidate([]string{"a"})

	if _, ok := c.Lookup("a"); ok {
		t.Fatalf("expected a to be invalidated")
	}
	if _, ok := c.Lookup("b"); !ok {
		t.Fatalf("expected b to survive a set-scoped invalidate")
	}
}

func TestExprCacheInvalidateNilDropsAll(t *testing.T) {
	c := NewExprCache(nil)
	c.Record("a", values.Long{V: 1}, false, 0)
	c.Record("b", values.Long{V: 2}, false, 0)

	c.Invalidate(nil)

	if keys := c.Keys(); len(keys) != 0 {
		t.Fatalf("expected no keys after a nil-scoped invalidate, got %v", keys)
	}
}

func TestMemStoreKeysExcludeDirty(t *testing.T) {
	m := NewMemStore()
	m.Put("clean", CacheEntry{Value: values.Long{V: 1}})
	m.Put("dirty", DirtyEntry())

	keys := m.Keys()
	if len(keys) != 1 || keys[0] != "clean" {
		t.Fatalf("expected only clean listed, got %v", keys)
	}
}

type fakeCallbacks struct {
	cached map[string]values.Value
	recorded []string
}

func (f *fakeCallbacks) FindCachedResult(exprID string) (values.Value, bool) {
	v, ok := f.cached[exprID]
	return v, ok
}
func (f *fakeCallbacks) UpdateCachedResult(exprID string, value values.Value, isPanic bool, nanos int64) {
	f.recorded = append(f.recorded, exprID)
}
func (f *fakeCallbacks) OnFunctionReturn(exprID string, call FunctionCall) (values.Value, bool) {
	return nil, false
}

func TestBindingOnEnterDelegatesToCallbacks(t *testing.T) {
	cb := &fakeCallbacks{cached: map[string]values.Value{"e1": values.Long{V: 7}}}
	b := NewBinding(cb, Span{StartLine: 0, EndLine: 10})

	v, hit := b.OnEnter("e1")
	if !hit || v.(values.Long).V != 7 {
		t.Fatalf("expected a cache hit returning Long{7}, got %v, %v", v, hit)
	}
	if _, hit := b.OnEnter("missing"); hit {
		t.Fatalf("expected no hit for an unrecorded id")
	}
}

func TestBindingSpanFilter(t *testing.T) {
	b := NewBinding(&fakeCallbacks{}, Span{StartLine: 5, EndLine: 10})
	if b.SpanFilter(3) {
		t.Fatalf("expected line 3 to fall outside [5,10]")
	}
	if !b.SpanFilter(7) {
		t.Fatalf("expected line 7 to fall inside [5,10]")
	}
}

func TestIsPanicishClassification(t *testing.T) {
	if !IsPanicish(&values.Panic{}) {
		t.Fatalf("expected *Panic to be panic-ish")
	}
	if !IsPanicish(values.NewPanicSentinel("e", &values.Panic{})) {
		t.Fatalf("expected *PanicSentinel to be panic-ish")
	}
	if IsPanicish(&values.DataflowError{}) {
		t.Fatalf("expected *DataflowError to not be panic-ish")
	}
	if IsPanicish(values.Long{V: 1}) {
		t.Fatalf("expected an ordinary value to not be panic-ish")
	}
}
