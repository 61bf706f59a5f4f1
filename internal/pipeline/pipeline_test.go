package pipeline

import (
	"io"
	"testing"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
)

func cfgAttr(flag string, invert bool) ast.Attr {
	pred := ast.Attr{Name: flag, Kind: ast.AttrWord}
	if invert {
		pred = ast.Attr{Name: "not", Kind: ast.AttrKindList, Items: []ast.Attr{pred}}
	}
	return ast.Attr{Name: "cfg", Kind: ast.AttrKindList, Items: []ast.Attr{pred}}
}

func bindPat(name string) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatMaybeBind, Bindings: []ast.PatBinding{{Name: name, Slot: -1}}}
}

// testCrate builds a small but complete crate:
//
//	#[cfg(foo)] fn a() {}
//	#[cfg(not(foo))] fn b() {}
//	mod m { pub fn f() {} }
//	use m::f;
//	struct Point { x: u32, y: u32 }
//	fn main() { f(); let x: _ = 1u32; let y = x + 1; }
func testCrate() *ast.Crate {
	crate := ast.NewCrate()

	m := ast.NewModule(nil)
	m.Items = []*ast.ItemEntry{
		{Name: "f", Pub: true, Data: &ast.Function{Body: &ast.Block{}}},
	}

	mainBody := &ast.Block{
		Stmts: []ast.Stmt{
			{Init: &ast.Call{Target: ast.RelativePath("f")}, HasSemi: true},
			{
				Pat:  bindPat("x"),
				Type: ast.InferType(),
				Init: &ast.Literal{Kind: ast.LitInt, IntVal: 1, Suffix: "u32"},
			},
			{
				Pat: bindPat("y"),
				Init: &ast.BinaryOp{
					Op:  ast.BinOpAdd,
					Lhs: &ast.PathExpr{Path: ast.RelativePath("x")},
					Rhs: &ast.Literal{Kind: ast.LitInt, IntVal: 1},
				},
			},
		},
	}

	crate.Root.Items = []*ast.ItemEntry{
		{
			Name:  "a",
			Attrs: ast.AttrList{Attrs: []ast.Attr{cfgAttr("foo", false)}},
			Data:  &ast.Function{Body: &ast.Block{}},
		},
		{
			Name:  "b",
			Attrs: ast.AttrList{Attrs: []ast.Attr{cfgAttr("foo", true)}},
			Data:  &ast.Function{Body: &ast.Block{}},
		},
		{Name: "m", Pub: true, Data: m},
		{Name: "f", Data: &ast.UseItem{Path: ast.RelativePath("m", "f")}},
		{
			Name: "Point",
			Data: &ast.Struct{Kind: ast.StructNamed, Fields: []ast.StructField{
				{Name: "x", Type: ast.PrimType(ast.PrimU32)},
				{Name: "y", Type: ast.PrimType(ast.PrimU32)},
			}},
		},
		{Name: "main", Data: &ast.Function{Body: mainBody}},
	}
	return crate
}

func TestRunFullPipeline(t *testing.T) {
	cfg := Config{
		Target:   "x86_64-linux-gnu",
		CfgFlags: []string{"foo"},
		Sink:     diag.NewSinkTo(io.Discard),
	}
	result, err := Run(cfg, Source{Crate: testCrate()})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	// cfg strip: a kept, b tombstoned.
	root := result.Crate.Root
	if root.Items[0].Data == nil {
		t.Error("fn a must survive cfg(foo)")
	}
	if root.Items[1].Data != nil {
		t.Error("fn b must be removed by cfg(not(foo))")
	}

	// Resolution: main's call is absolute and bound.
	mainFn := root.Items[5].Data.(*ast.Function)
	call := mainFn.Body.Stmts[0].Init.(*ast.Call)
	if call.Target.Class != ast.PathAbsolute {
		t.Errorf("call class = %v, want absolute", call.Target.Class)
	}
	if got := call.Target.Key(); got != "crate::m::f" {
		t.Errorf("call target = %q, want crate::m::f", got)
	}

	// Lowering: function bodies are indexed by path key.
	if _, ok := result.Hir.FindFunction("crate::main"); !ok {
		t.Error("lowered crate must contain crate::main")
	}
	if _, ok := result.Hir.FindFunction("crate::m::f"); !ok {
		t.Error("lowered crate must contain crate::m::f")
	}

	// Inference: every node in main's body has a concrete type.
	lowered, _ := result.Hir.FindFunction("crate::main")
	for i, st := range lowered.Body.Stmts {
		ty := st.Init.ResType()
		if ty == nil || ty.ContainsInfer() {
			t.Errorf("stmt %d has unresolved type %v", i, ty)
		}
	}
	if got := lowered.Body.Stmts[1].Init.ResType().String(); got != "u32" {
		t.Errorf("x literal type = %q, want u32", got)
	}
	if got := lowered.Body.Stmts[2].Init.ResType().String(); got != "u32" {
		t.Errorf("y type = %q, want u32", got)
	}

	// Layout: the precomputed cache answers Point.
	repr, lerr := result.Layout.Repr(ast.PathType(ast.AbsolutePath("", "Point")))
	if lerr != nil || repr == nil {
		t.Fatalf("Point layout: %v, %v", repr, lerr)
	}
	if repr.Size != 8 || repr.Align != 4 {
		t.Errorf("Point = %d/%d, want 8/4", repr.Size, repr.Align)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	for _, phase := range []string{"target", "expand", "resolve", "lower", "typecheck", "layout"} {
		if _, ok := result.PhaseTimings[phase]; !ok {
			t.Errorf("missing phase timing %q", phase)
		}
	}
}

func TestRunUnknownTarget(t *testing.T) {
	cfg := Config{Target: "z80-cpm", Sink: diag.NewSinkTo(io.Discard)}
	_, err := Run(cfg, Source{Crate: ast.NewCrate()})
	if err == nil {
		t.Fatal("unknown target must fail")
	}
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.TGT001 {
		t.Errorf("error = %v, want %s", err, diag.TGT001)
	}
}

func TestRunReportsResolutionFailure(t *testing.T) {
	crate := ast.NewCrate()
	body := &ast.Block{Stmts: []ast.Stmt{{
		Init:    &ast.Call{Target: ast.RelativePath("no_such_fn")},
		HasSemi: true,
	}}}
	crate.Root.Items = []*ast.ItemEntry{{Name: "f", Data: &ast.Function{Body: body}}}

	cfg := Config{Target: "x86_64-linux-gnu", Sink: diag.NewSinkTo(io.Discard)}
	_, err := Run(cfg, Source{Crate: crate})
	if err == nil {
		t.Fatal("unresolved name must fail the pipeline")
	}
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.RES001 {
		t.Errorf("error = %v, want %s", err, diag.RES001)
	}
}
