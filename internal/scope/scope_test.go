package scope

import (
	"testing"

	"github.com/driftlang/drift/internal/interner"
	"github.com/driftlang/drift/internal/values"
)

func TestDeclareTypeAssignsIncreasingTypeIDs(t *testing.T) {
	s := New("m", "m")
	foo := s.DeclareType("Foo", []string{"a", "b"})
	bar := s.DeclareType("Bar", nil)

	if foo.TypeID == bar.TypeID {
		t.Fatalf("expected distinct type ids, both got %d", foo.TypeID)
	}
	if foo.TypeID < values.FirstUserTypeID {
		t.Fatalf("expected a user type id >= %d, got %d", values.FirstUserTypeID, foo.TypeID)
	}
	if foo.Arity != 2 {
		t.Fatalf("expected arity 2, got %d", foo.Arity)
	}
}

func TestDeclareSubtypeSetsSupertype(t *testing.T) {
	s := New("m", "m")
	parent := s.DeclareType("Animal", nil)
	child := s.DeclareSubtype("Dog", nil, parent)

	if child.Supertype != parent {
		t.Fatalf("expected child's Supertype to be parent")
	}
}

func TestConstructorLookupByLocalName(t *testing.T) {
	s := New("m", "m")
	s.DeclareType("Foo", nil)

	ctor, ok := s.Constructor("Foo")
	if !ok {
		t.Fatalf("expected Foo to be found")
	}
	if ctor.Name != interner.Intern("Foo") {
		t.Fatalf("expected ctor name to intern to Foo")
	}
	if _, ok := s.Constructor("Missing"); ok {
		t.Fatalf("expected Missing to not be found")
	}
}

func TestRegisterAndLookupOwnMethod(t *testing.T) {
	s := New("m", "m")
	ctor := s.DeclareType("Foo", nil)
	fn := &values.Function{}
	s.RegisterMethod(ctor.TypeID, "bar", fn)

	got, ok := s.LookupOwn(ctor.TypeID, interner.Intern("bar"))
	if !ok || got != fn {
		t.Fatalf("expected LookupOwn to find the registered function")
	}
	if _, ok := s.LookupOwn(ctor.TypeID, interner.Intern("missing")); ok {
		t.Fatalf("expected missing method to not be found")
	}
}

func TestLiteralSourceOverrideRoundTrips(t *testing.T) {
	s := New("m", "m")
	if _, ok := s.LiteralSource(); ok {
		t.Fatalf("expected no literal override on a fresh scope")
	}
	s.SetLiteralSource("1 + 1")
	src, ok := s.LiteralSource()
	if !ok || src != "1 + 1" {
		t.Fatalf("expected literal override to round-trip, got %q, %v", src, ok)
	}
	s.ResetToOnDisk()
	if _, ok := s.LiteralSource(); ok {
		t.Fatalf("expected ResetToOnDisk to clear the override")
	}
}

func TestImportsAreRecordedInOrder(t *testing.T) {
	s := New("m", "m")
	s.AddImport("a")
	s.AddImport("b")

	imports := s.Imports()
	if len(imports) != 2 || imports[0] != "a" || imports[1] != "b" {
		t.Fatalf("expected imports [a b], got %v", imports)
	}
}

func TestRegistryDeclareReplacesExistingScope(t *testing.T) {
	r := NewRegistry()
	first := r.Declare("m", "m")
	first.DeclareType("Foo", nil)

	second := r.Declare("m", "m")
	if second == first {
		t.Fatalf("expected Declare to replace with a fresh scope instance")
	}
	if _, ok := second.Constructor("Foo"); ok {
		t.Fatalf("expected the replacement scope to start empty")
	}
	got, ok := r.Get("m")
	if !ok || got != second {
		t.Fatalf("expected Get to return the replacement scope")
	}
}

func TestMustGetPanicsOnMissingModule(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustGet to panic on a missing module")
		}
	}()
	NewRegistry().MustGet("nope")
}

func TestImportedScopesSkipsUnregisteredIDs(t *testing.T) {
	r := NewRegistry()
	a := r.Declare("a", "a")
	r.Declare("b", "b")
	a.AddImport("b")
	a.AddImport("ghost")

	imported := r.ImportedScopes(a)
	if len(imported) != 1 || imported[0].ScopeID() != "b" {
		t.Fatalf("expected only scope b to resolve, got %v", imported)
	}
}
