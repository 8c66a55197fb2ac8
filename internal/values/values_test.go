package values

import "testing"

func TestThunkForcesExactlyOnce(t *testing.T) {
	calls := 0
	target := callCountingTarget{fn: func() Value {
		calls++
		return Long{V: 7}
	}}
	th := &Thunk{Target: target}

	if th.IsForced() {
		t.Fatalf("a fresh thunk must not report forced")
	}
	v1 := th.Force()
	v2 := th.Force()
	if calls != 1 {
		t.Fatalf("expected Target.Invoke to run exactly once, ran %d times", calls)
	}
	if v1.(Long).V != 7 || v2.(Long).V != 7 {
		t.Fatalf("expected both forces to return the memoized Long{7}, got %v and %v", v1, v2)
	}
	if !th.IsForced() {
		t.Fatalf("expected IsForced to report true after Force")
	}
}

type callCountingTarget struct{ fn func() Value }

func (c callCountingTarget) Invoke(args []Value, scope LocalScope) Value { return c.fn() }
func (c callCountingTarget) Name() string                                { return "counting" }

func TestTraceExtendAppendsWithoutAliasing(t *testing.T) {
	base := Trace{ExpressionIDs: []string{"a"}}
	extended := base.Extend("b")

	if len(base.ExpressionIDs) != 1 {
		t.Fatalf("extending must not mutate the original trace, got %v", base.ExpressionIDs)
	}
	if len(extended.ExpressionIDs) != 2 || extended.ExpressionIDs[0] != "a" || extended.ExpressionIDs[1] != "b" {
		t.Fatalf("unexpected extended trace: %v", extended.ExpressionIDs)
	}
}

func TestWarningCtorSeesThroughToInner(t *testing.T) {
	w := &Warning{Inner: Long{V: 1}, Diagnostics: []string{"narrowed"}}
	if w.Ctor() != IntegerCtor {
		t.Fatalf("expected Warning.Ctor() to forward to its inner value's ctor")
	}
}

func TestUnwrapStripsNestedWarnings(t *testing.T) {
	inner := &Warning{Inner: Long{V: 5}, Diagnostics: []string{"outer"}}
	outer := &Warning{Inner: inner, Diagnostics: []string{"middle"}}

	v, diags := Unwrap(outer)
	got, ok := v.(Long)
	if !ok || got.V != 5 {
		t.Fatalf("expected Unwrap to reach the innermost Long{5}, got %#v", v)
	}
	if len(diags) != 2 {
		t.Fatalf("expected both layers' diagnostics collected, got %v", diags)
	}
}

func TestUnwrapNonWarningIsIdentity(t *testing.T) {
	v, diags := Unwrap(Long{V: 3})
	if v.(Long).V != 3 {
		t.Fatalf("expected unwrapped value unchanged, got %v", v)
	}
	if diags != nil {
		t.Fatalf("expected no diagnostics for a non-Warning value, got %v", diags)
	}
}

func TestAtomHashIsComputedOnceAndMemoized(t *testing.T) {
	a := &Atom{Constructor: IntegerCtor, Fields: []Value{Long{V: 1}}}
	calls := 0
	compute := func(*Atom) uint64 {
		calls++
		return 42
	}
	h1 := a.Hash(compute)
	h2 := a.Hash(compute)
	if h1 != 42 || h2 != 42 {
		t.Fatalf("expected both hashes to be 42, got %d and %d", h1, h2)
	}
	if calls != 1 {
		t.Fatalf("expected compute to run exactly once, ran %d times", calls)
	}
}

func TestPrimitiveCtorsAreDistinctSentinels(t *testing.T) {
	vals := []Value{Long{}, Double{}, Boolean{}, Text{}, UnitValue{}}
	seen := map[*TypeCtor]bool{}
	for _, v := range vals {
		c := v.Ctor()
		if seen[c] {
			t.Fatalf("expected every primitive to have a distinct ctor sentinel, collided on %v", c)
		}
		seen[c] = true
	}
}
