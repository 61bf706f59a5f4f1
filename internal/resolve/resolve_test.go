package resolve

import (
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

func testSink() *diag.Sink { return diag.NewSinkTo(io.Discard) }

func fnEntry(name string, body *ast.Block) *ast.ItemEntry {
	return &ast.ItemEntry{Name: name, Pub: true, Data: &ast.Function{Body: body}}
}

// useCrate builds: mod m { pub fn f() {} }  use m::f;  fn main() { f(); }
func useCrate() *ast.Crate {
	crate := ast.NewCrate()
	m := ast.NewModule(nil)
	m.Items = []*ast.ItemEntry{fnEntry("f", &ast.Block{})}

	mainBody := &ast.Block{
		Stmts: []ast.Stmt{{
			Init:    &ast.Call{Target: ast.RelativePath("f")},
			HasSemi: true,
		}},
	}
	crate.Root.Items = []*ast.ItemEntry{
		{Name: "m", Pub: true, Data: m},
		{Name: "f", Data: &ast.UseItem{Path: ast.RelativePath("m", "f")}},
		fnEntry("main", mainBody),
	}
	return crate
}

func resolveAll(t *testing.T, crate *ast.Crate) {
	t.Helper()
	sink := testSink()
	if err := ResolveUses(crate, sink); err != nil {
		t.Fatalf("use resolution: %v", err)
	}
	if err := BuildIndices(crate, sink); err != nil {
		t.Fatalf("index construction: %v", err)
	}
	if err := Absolutise(crate, sink); err != nil {
		t.Fatalf("absolutisation: %v", err)
	}
}

func TestUseResolutionAndIndex(t *testing.T) {
	crate := useCrate()
	resolveAll(t, crate)

	// The use statement is bound to the function.
	use := crate.Root.Items[1].Data.(*ast.UseItem)
	if use.Path.Binding.Value.Kind != ast.BindFunction {
		t.Errorf("use binding = %v, want function", use.Path.Binding.Value.Kind)
	}
	if got := use.Path.Key(); got != "crate::m::f" {
		t.Errorf("use path = %q, want crate::m::f", got)
	}

	// The root value index carries the import.
	ent, ok := crate.Root.ValueItems["f"]
	if !ok {
		t.Fatal("root value index has no entry for f")
	}
	if !ent.IsImport {
		t.Error("index entry must be marked as an import")
	}
	if got := ent.Path.Key(); got != "crate::m::f" {
		t.Errorf("index path = %q, want crate::m::f", got)
	}

	// The module's own index holds the local definition.
	mod, _ := crate.ModuleAt(ast.AbsolutePath("", "m"))
	if mod == nil {
		t.Fatal("module m not reachable by path")
	}
	if ent := mod.ValueItems["f"]; ent.IsImport {
		t.Error("m's own f must not be an import")
	}
}

func TestAbsolutiseCallPath(t *testing.T) {
	crate := useCrate()
	resolveAll(t, crate)

	mainFn := crate.Root.Items[2].Data.(*ast.Function)
	call := mainFn.Body.Stmts[0].Init.(*ast.Call)
	if call.Target.Class != ast.PathAbsolute {
		t.Fatalf("call target class = %v, want absolute", call.Target.Class)
	}
	if got := call.Target.Key(); got != "crate::m::f" {
		t.Errorf("call target = %q, want crate::m::f", got)
	}
	if call.Target.Binding.Value.Kind != ast.BindFunction {
		t.Errorf("call binding = %v, want function", call.Target.Binding.Value.Kind)
	}
}

func TestAbsolutiseIdempotent(t *testing.T) {
	crate := useCrate()
	resolveAll(t, crate)

	mainFn := crate.Root.Items[2].Data.(*ast.Function)
	firstKey := mainFn.Body.Stmts[0].Init.(*ast.Call).Target.Key()
	firstIndex := map[string]bool{}
	for k := range crate.Root.ValueItems {
		firstIndex[k] = true
	}

	// Re-running the whole stage must not change paths or indices.
	resolveAll(t, crate)
	secondKey := mainFn.Body.Stmts[0].Init.(*ast.Call).Target.Key()
	if firstKey != secondKey {
		t.Errorf("path changed on re-run: %q vs %q", firstKey, secondKey)
	}
	secondIndex := map[string]bool{}
	for k := range crate.Root.ValueItems {
		secondIndex[k] = true
	}
	if diff := cmp.Diff(firstIndex, secondIndex); diff != "" {
		t.Errorf("index changed on re-run (-first +second):\n%s", diff)
	}
}

func TestSuperResolution(t *testing.T) {
	crate := ast.NewCrate()
	inner := ast.NewModule(nil)
	body := &ast.Block{
		Stmts: []ast.Stmt{{
			Init:    &ast.Call{Target: &ast.Path{Class: ast.PathSuper, SuperCount: 2, Nodes: []ast.PathNode{{Name: "top"}}}},
			HasSemi: true,
		}},
	}
	inner.Items = []*ast.ItemEntry{fnEntry("g", body)}
	outer := ast.NewModule(nil)
	outer.Items = []*ast.ItemEntry{{Name: "b", Pub: true, Data: inner}}
	crate.Root.Items = []*ast.ItemEntry{
		{Name: "a", Pub: true, Data: outer},
		fnEntry("top", &ast.Block{}),
	}
	resolveAll(t, crate)

	g := inner.Items[0].Data.(*ast.Function)
	call := g.Body.Stmts[0].Init.(*ast.Call)
	if got := call.Target.Key(); got != "crate::top" {
		t.Errorf("super::super::top resolved to %q, want crate::top", got)
	}
}

func TestSuperOutOfRange(t *testing.T) {
	crate := ast.NewCrate()
	body := &ast.Block{Stmts: []ast.Stmt{{
		Init:    &ast.Call{Target: &ast.Path{Class: ast.PathSuper, SuperCount: 3, Nodes: []ast.PathNode{{Name: "x"}}}},
		HasSemi: true,
	}}}
	crate.Root.Items = []*ast.ItemEntry{fnEntry("f", body)}

	sink := testSink()
	_ = ResolveUses(crate, sink)
	_ = BuildIndices(crate, sink)
	err := Absolutise(crate, sink)
	if err == nil {
		t.Fatal("expected out-of-range super to fail")
	}
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.RES004 {
		t.Errorf("error = %v, want %s", err, diag.RES004)
	}
}

func TestPatternArmMismatch(t *testing.T) {
	crate := ast.NewCrate()
	// match x { a => ..., b => ... } with differing binding sets.
	arm := ast.MatchArm{
		Pats: []*ast.Pattern{
			{Kind: ast.PatTuple, Subs: []*ast.Pattern{
				ast.BindPattern("a", span.Span{}),
				ast.BindPattern("c", span.Span{}),
			}},
			{Kind: ast.PatTuple, Subs: []*ast.Pattern{
				ast.BindPattern("a", span.Span{}),
				ast.BindPattern("d", span.Span{}),
			}},
		},
		Body: &ast.Block{},
	}
	body := &ast.Block{Tail: &ast.Match{
		Scrutinee: &ast.TupleLit{Elems: []ast.Expr{
			&ast.Literal{Kind: ast.LitInt, IntVal: 1},
			&ast.Literal{Kind: ast.LitInt, IntVal: 2},
		}},
		Arms: []ast.MatchArm{arm},
	}}
	crate.Root.Items = []*ast.ItemEntry{fnEntry("f", body)}

	sink := testSink()
	_ = ResolveUses(crate, sink)
	_ = BuildIndices(crate, sink)
	err := Absolutise(crate, sink)
	if err == nil {
		t.Fatal("expected arm binding mismatch to fail")
	}
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.RES005 {
		t.Errorf("error = %v, want %s", err, diag.RES005)
	}
}

func TestPatternArmsMatching(t *testing.T) {
	crate := ast.NewCrate()
	arm := ast.MatchArm{
		Pats: []*ast.Pattern{
			ast.BindPattern("v", span.Span{}),
			ast.BindPattern("v", span.Span{}),
		},
		Body: &ast.Block{},
	}
	body := &ast.Block{Tail: &ast.Match{
		Scrutinee: &ast.Literal{Kind: ast.LitInt, IntVal: 1},
		Arms:      []ast.MatchArm{arm},
	}}
	crate.Root.Items = []*ast.ItemEntry{fnEntry("f", body)}
	resolveAll(t, crate)

	// Both alternatives bind the same name in the same slot.
	s0 := arm.Pats[0].Bindings[0].Slot
	s1 := arm.Pats[1].Bindings[0].Slot
	if s0 != s1 {
		t.Errorf("alternative slots differ: %d vs %d", s0, s1)
	}
}

func TestBareIdentPatternPrefersConstant(t *testing.T) {
	crate := ast.NewCrate()
	arm := ast.MatchArm{
		Pats: []*ast.Pattern{ast.BindPattern("LIMIT", span.Span{})},
		Body: &ast.Block{},
	}
	body := &ast.Block{Tail: &ast.Match{
		Scrutinee: &ast.Literal{Kind: ast.LitInt, IntVal: 1},
		Arms:      []ast.MatchArm{arm},
	}}
	crate.Root.Items = []*ast.ItemEntry{
		{Name: "LIMIT", Pub: true, Data: &ast.Const{Type: ast.PrimType(ast.PrimU32), Value: &ast.Literal{Kind: ast.LitInt, IntVal: 10}}},
		fnEntry("f", body),
	}
	resolveAll(t, crate)

	if arm.Pats[0].Kind != ast.PatValue {
		t.Errorf("bare ident naming a constant must become a value pattern, got %v", arm.Pats[0].Kind)
	}
}

func TestDeepModuleNesting(t *testing.T) {
	const depth = 1100
	crate := ast.NewCrate()

	body := &ast.Block{Stmts: []ast.Stmt{{
		Init:    &ast.Call{Target: ast.AbsolutePath("", "top")},
		HasSemi: true,
	}}}
	leaf := ast.NewModule(nil)
	leaf.Items = []*ast.ItemEntry{fnEntry("bottom", body)}

	cur := leaf
	for i := depth - 1; i >= 1; i-- {
		parent := ast.NewModule(nil)
		parent.Items = []*ast.ItemEntry{{Name: fmt.Sprintf("m%d", i), Pub: true, Data: cur}}
		cur = parent
	}
	crate.Root.Items = []*ast.ItemEntry{
		{Name: "m0", Pub: true, Data: cur},
		fnEntry("top", &ast.Block{}),
	}

	resolveAll(t, crate)

	fn := leaf.Items[0].Data.(*ast.Function)
	call := fn.Body.Stmts[0].Init.(*ast.Call)
	if got := call.Target.Key(); got != "crate::top" {
		t.Errorf("deep call resolved to %q", got)
	}
}

func TestNameCollisionFatal(t *testing.T) {
	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{
		fnEntry("dup", &ast.Block{}),
		fnEntry("dup", &ast.Block{}),
	}
	sink := testSink()
	_ = ResolveUses(crate, sink)
	err := BuildIndices(crate, sink)
	if err == nil {
		t.Fatal("duplicate names must fail index construction")
	}
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.RES003 {
		t.Errorf("error = %v, want %s", err, diag.RES003)
	}
}

func TestWildcardImport(t *testing.T) {
	crate := ast.NewCrate()
	m := ast.NewModule(nil)
	m.Items = []*ast.ItemEntry{
		fnEntry("f", &ast.Block{}),
		{Name: "S", Pub: true, Data: &ast.Struct{Kind: ast.StructUnit}},
		{Name: "hidden", Pub: false, Data: &ast.Function{Body: &ast.Block{}}},
	}
	crate.Root.Items = []*ast.ItemEntry{
		{Name: "m", Pub: true, Data: m},
		{Name: "", Data: &ast.UseItem{Path: ast.RelativePath("m"), Wildcard: true}},
	}
	resolveAll(t, crate)

	if _, ok := crate.Root.ValueItems["f"]; !ok {
		t.Error("wildcard must import public fn f")
	}
	if _, ok := crate.Root.TypeItems["S"]; !ok {
		t.Error("wildcard must import public struct S")
	}
	if _, ok := crate.Root.ValueItems["hidden"]; ok {
		t.Error("wildcard must not import private items")
	}
}

func TestWildcardOfEnumImportsVariants(t *testing.T) {
	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{
		{Name: "E", Pub: true, Data: &ast.Enum{Variants: []ast.EnumVariant{
			{Name: "A"}, {Name: "B"},
		}}},
		{Name: "", Data: &ast.UseItem{Path: ast.RelativePath("E"), Wildcard: true}},
	}
	resolveAll(t, crate)

	ent, ok := crate.Root.ValueItems["A"]
	if !ok {
		t.Fatal("enum wildcard must import variant A")
	}
	if ent.Path.Binding.Value.Kind != ast.BindEnumVariant {
		t.Errorf("binding = %v, want enum variant", ent.Path.Binding.Value.Kind)
	}
}
