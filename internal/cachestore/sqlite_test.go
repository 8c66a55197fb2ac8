package cachestore

import (
	"testing"

	"github.com/driftlang/drift/internal/instrument"
	"github.com/driftlang/drift/internal/values"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTripsPrimitives(t *testing.T) {
	s := openTestStore(t)

	cases := []struct {
		id    string
		entry instrument.CacheEntry
	}{
		{"long", instrument.CacheEntry{Value: values.Long{V: 42}, NanosElapsed: 100}},
		{"double", instrument.CacheEntry{Value: values.Double{V: 3.5}}},
		{"bool", instrument.CacheEntry{Value: values.Boolean{V: true}}},
		{"text", instrument.CacheEntry{Value: values.Text{Rope: "hello"}}},
		{"unit", instrument.CacheEntry{Value: values.Unit}},
	}
	for _, tc := range cases {
		s.Put(tc.id, tc.entry)
	}
	for _, tc := range cases {
		got, ok := s.Get(tc.id)
		if !ok {
			t.Fatalf("%s: expected a hit", tc.id)
		}
		if got.Value != tc.entry.Value {
			t.Fatalf("%s: expected %#v, got %#v", tc.id, tc.entry.Value, got.Value)
		}
	}
}

func TestPutOverwritesPreviousEntry(t *testing.T) {
	s := openTestStore(t)
	s.Put("x", instrument.CacheEntry{Value: values.Long{V: 1}})
	s.Put("x", instrument.CacheEntry{Value: values.Long{V: 2}})

	got, ok := s.Get("x")
	if !ok || got.Value.(values.Long).V != 2 {
		t.Fatalf("expected the second write to win, got %#v", got.Value)
	}
}

func TestDirtyEntryIsNeverAHit(t *testing.T) {
	s := openTestStore(t)
	s.Put("x", instrument.CacheEntry{Value: values.Long{V: 1}})
	s.Put("x", instrument.DirtyEntry())

	if _, ok := s.Get("x"); ok {
		t.Fatalf("expected a dirty entry to never read as a hit")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := openTestStore(t)
	s.Put("x", instrument.CacheEntry{Value: values.Long{V: 1}})
	s.Delete("x")
	if _, ok := s.Get("x"); ok {
		t.Fatalf("expected x to be gone after Delete")
	}
}

func TestInvalidateAllClearsEverything(t *testing.T) {
	s := openTestStore(t)
	s.Put("a", instrument.CacheEntry{Value: values.Long{V: 1}})
	s.Put("b", instrument.CacheEntry{Value: values.Long{V: 2}})
	s.InvalidateAll()

	if keys := s.Keys(); len(keys) != 0 {
		t.Fatalf("expected no keys after InvalidateAll, got %v", keys)
	}
}

func TestKeysExcludesDirtyEntries(t *testing.T) {
	s := openTestStore(t)
	s.Put("clean", instrument.CacheEntry{Value: values.Long{V: 1}})
	s.Put("dirty", instrument.DirtyEntry())

	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "clean" {
		t.Fatalf("expected only the clean key to be listed, got %v", keys)
	}
}

func TestDataflowErrorRoundTrips(t *testing.T) {
	s := openTestStore(t)
	orig := &values.DataflowError{Kind: "DivideByZero", Payload: values.Long{V: 0}}
	s.Put("err", instrument.CacheEntry{Value: orig})

	got, ok := s.Get("err")
	if !ok {
		t.Fatalf("expected a hit")
	}
	dfe, ok := got.Value.(*values.DataflowError)
	if !ok || dfe.Kind != "DivideByZero" {
		t.Fatalf("expected a round-tripped DivideByZero error, got %#v", got.Value)
	}
}

func TestUnpersistableKindIsDroppedNotStored(t *testing.T) {
	s := openTestStore(t)
	// A *values.Panic is not part of toWire's covered kinds; Put must drop
	// the write silently rather than corrupt the row.
	s.Put("p", instrument.CacheEntry{Value: &values.Panic{Payload: values.Text{Rope: "boom"}}})
	if _, ok := s.Get("p"); ok {
		t.Fatalf("expected no entry to have been written for an unpersistable value")
	}
}
