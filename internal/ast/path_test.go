package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPathRendering(t *testing.T) {
	tests := []struct {
		name string
		path *Path
		want string
	}{
		{"relative", RelativePath("a", "b"), "a::b"},
		{"absolute_local", AbsolutePath("", "m", "f"), "crate::m::f"},
		{"absolute_extern", AbsolutePath("core", "mem", "swap"), "core::mem::swap"},
		{"local", LocalPath("x", 3), "x"},
		{
			"ufcs_inherent",
			UfcsPath(PrimType(PrimU32), nil, PathNode{Name: "max_value"}),
			"<u32>::max_value",
		},
		{
			"ufcs_trait",
			UfcsPath(PathType(AbsolutePath("", "S")), AbsolutePath("", "Tr"), PathNode{Name: "m"}),
			"<crate::S as crate::Tr>::m",
		},
		{
			"ufcs_open_self",
			UfcsPath(nil, AbsolutePath("", "Tr"), PathNode{Name: "m"}),
			"<_ as crate::Tr>::m",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathCloneIsDeep(t *testing.T) {
	p := AbsolutePath("", "m", "f")
	p.Nodes[1].Args = []*TypeRef{PrimType(PrimU32)}
	q := p.Clone()
	q.Nodes[1].Name = "g"
	q.Nodes[1].Args[0] = PrimType(PrimU64)

	if p.Nodes[1].Name != "f" {
		t.Error("clone shares node storage with the original")
	}
	if p.Nodes[1].Args[0].Prim != PrimU32 {
		t.Error("clone shares argument storage with the original")
	}
}

func TestBindOnceMonotonic(t *testing.T) {
	var b Binding
	first := Binding{Kind: BindFunction, TargetPath: "crate::f"}
	if !b.BindOnce(first) {
		t.Fatal("first bind must succeed")
	}
	if !b.BindOnce(first) {
		t.Error("re-binding the same target must be accepted")
	}
	if b.BindOnce(Binding{Kind: BindStatic, TargetPath: "crate::s"}) {
		t.Error("re-binding to a different kind must be rejected")
	}
	if b.Kind != BindFunction {
		t.Error("failed rebind must not alter the binding")
	}
}

func TestInternIdentNFC(t *testing.T) {
	// U+0065 U+0301 (e + combining acute) folds to U+00E9.
	composed := InternIdent("caf\u00e9")
	decomposed := InternIdent("cafe\u0301")
	if composed.Name != decomposed.Name {
		t.Errorf("NFC fold mismatch: %q vs %q", composed.Name, decomposed.Name)
	}
}

func TestHygieneVisibility(t *testing.T) {
	plain := Hygiene{}
	marked := Hygiene{Mark: 7}
	other := Hygiene{Mark: 9}

	if !plain.VisibleFrom(plain) {
		t.Error("plain sees plain")
	}
	if !marked.VisibleFrom(plain) {
		t.Error("marked use sites see plain bindings")
	}
	if plain.VisibleFrom(marked) {
		t.Error("plain use sites must not see macro-introduced bindings")
	}
	if marked.VisibleFrom(other) {
		t.Error("different marks must not see each other")
	}
}

func TestTypeRefContainsChecks(t *testing.T) {
	infer := InferType()
	infer.Ivar = 4
	ty := TupleType(PrimType(PrimU8), BorrowType(false, infer))
	if !ty.ContainsInfer() {
		t.Error("nested infer must be found")
	}
	if ty.ContainsGeneric() {
		t.Error("no generic present")
	}

	gen := TupleType(GenericType(GenericImplBase, "T"))
	if !gen.ContainsGeneric() {
		t.Error("generic slot must be found")
	}
}

func TestCrateNavigation(t *testing.T) {
	crate := NewCrate()
	inner := NewModule(nil)
	inner.Items = []*ItemEntry{{Name: "f", Data: &Function{}}}
	crate.Root.Items = []*ItemEntry{
		{Name: "m", Data: inner},
		{Name: "E", Data: &Enum{Variants: []EnumVariant{{Name: "A"}}}},
	}
	crate.AssignModulePaths()

	if inner.Path == nil || inner.Path.Key() != "crate::m" {
		t.Fatalf("module path = %v", inner.Path)
	}

	entry, ok := crate.ItemAt(AbsolutePath("", "m", "f"))
	if !ok || entry.Name != "f" {
		t.Error("ItemAt must find a nested function")
	}
	if _, ok := crate.EnumAt(AbsolutePath("", "E")); !ok {
		t.Error("EnumAt must find the enum")
	}

	var order []string
	_ = crate.EachModule(func(m *Module) error {
		order = append(order, m.Path.Key())
		return nil
	})
	if diff := cmp.Diff([]string{"crate", "crate::m"}, order); diff != "" {
		t.Errorf("module visit order (-want +got):\n%s", diff)
	}
}
