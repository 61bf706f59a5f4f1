package typecheck

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/span"
)

func testSink() *diag.Sink { return diag.NewSinkTo(io.Discard) }

func litInt(v uint64, suffix string) *hir.Literal {
	return &hir.Literal{Kind: ast.LitInt, IntVal: v, Suffix: suffix}
}

func bindPat(name string, slot int) *ast.Pattern {
	return &ast.Pattern{
		Kind:     ast.PatMaybeBind,
		Bindings: []ast.PatBinding{{Name: name, Slot: slot}},
	}
}

func localRef(name string, slot int) *hir.PathValue {
	p := ast.LocalPath(name, slot)
	p.Binding.Value = ast.Binding{Kind: ast.BindVariable, Slot: slot}
	return &hir.PathValue{Path: p}
}

func fnValuePath(key ...string) *ast.Path {
	p := ast.AbsolutePath("", key...)
	p.Binding.Value = ast.Binding{Kind: ast.BindFunction, TargetPath: p.Key()}
	return p
}

func emptyHirCrate() *hir.Crate {
	return &hir.Crate{Ast: ast.NewCrate(), Functions: map[string]*hir.Function{}}
}

func newFn(name string, body *hir.Block) *hir.Function {
	return &hir.Function{
		Path: ast.AbsolutePath("", name),
		Ret:  ast.UnitType(),
		Body: body,
	}
}

func checkFn(t *testing.T, crate *hir.Crate, fn *hir.Function) *Checker {
	t.Helper()
	ck := NewChecker(crate, testSink(), fn)
	require.NoError(t, ck.Check())
	return ck
}

// let x: _ = 1u32; let y = x + 1;
func TestInferSuffixedLiteralFlows(t *testing.T) {
	lit1 := litInt(1, "u32")
	add := &hir.BinOp{Op: ast.BinOpAdd, Lhs: localRef("x", 0), Rhs: litInt(1, "")}
	body := &hir.Block{
		Stmts: []hir.Stmt{
			{Pat: bindPat("x", 0), Type: ast.InferType(), Init: lit1},
			{Pat: bindPat("y", 1), Init: add},
		},
	}
	fn := newFn("f", body)
	ck := checkFn(t, emptyHirCrate(), fn)

	assert.Equal(t, "u32", lit1.Res.String())
	assert.Equal(t, "u32", add.Res.String(), "y's type flows from x")
	assert.Equal(t, "u32", add.Rhs.ResType().String(),
		"the bare literal's integer-class ivar unifies with u32")
	assert.Equal(t, "u32", ck.resolveDeep(ck.locals[0]).String())
	assert.Equal(t, "u32", ck.resolveDeep(ck.locals[1]).String())
}

// let z = 1; — unconstrained integer literals default to i32
func TestInferLiteralDefaulting(t *testing.T) {
	lit := litInt(1, "")
	fl := &hir.Literal{Kind: ast.LitFloat, FltVal: 1.5}
	body := &hir.Block{
		Stmts: []hir.Stmt{
			{Pat: bindPat("z", 0), Init: lit},
			{Pat: bindPat("w", 1), Init: fl},
		},
	}
	checkFn(t, emptyHirCrate(), newFn("f", body))

	assert.Equal(t, "i32", lit.Res.String())
	assert.Equal(t, "f64", fl.Res.String())
}

func TestInferClassConflictFatal(t *testing.T) {
	body := &hir.Block{
		Stmts: []hir.Stmt{
			{Pat: bindPat("a", 0), Type: ast.PrimType(ast.PrimF32), Init: litInt(1, "")},
		},
	}
	ck := NewChecker(emptyHirCrate(), testSink(), newFn("f", body))
	err := ck.Check()
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.TYP005, rep.Code)
}

func TestInferTypeMismatchFatal(t *testing.T) {
	body := &hir.Block{
		Stmts: []hir.Stmt{
			{Pat: bindPat("a", 0), Type: ast.PrimType(ast.PrimBool), Init: &hir.Literal{Kind: ast.LitStr, StrVal: "x"}},
		},
	}
	ck := NewChecker(emptyHirCrate(), testSink(), newFn("f", body))
	err := ck.Check()
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.TYP001, rep.Code)
}

// fn f() -> u32 { return 5; } — diverging tails satisfy any return type
func TestInferDivergeAbsorbs(t *testing.T) {
	ret := &hir.Return{Value: litInt(5, "")}
	body := &hir.Block{Tail: ret}
	fn := newFn("f", body)
	fn.Ret = ast.PrimType(ast.PrimU32)
	checkFn(t, emptyHirCrate(), fn)

	assert.Equal(t, "!", ret.Res.String())
	assert.Equal(t, "u32", ret.Value.ResType().String(),
		"the returned literal takes the declared return type")
}

// Calling g(&MyStruct{}) where g expects &dyn Tr inserts an Unsize
func TestCoercionInsertsUnsize(t *testing.T) {
	astCrate := ast.NewCrate()
	astCrate.Root.Items = []*ast.ItemEntry{
		{Name: "Tr", Pub: true, Data: &ast.Trait{}},
		{Name: "MyStruct", Pub: true, Data: &ast.Struct{Kind: ast.StructUnit}},
	}
	implDef := &ast.Impl{
		Trait:    ast.AbsolutePath("", "Tr"),
		SelfType: ast.PathType(ast.AbsolutePath("", "MyStruct")),
	}
	astCrate.Root.Impls = []*ast.Impl{implDef}

	dynTr := ast.BorrowType(false, &ast.TypeRef{
		Kind:   ast.TypeTraitObject,
		Traits: []*ast.Path{ast.AbsolutePath("", "Tr")},
	})
	crate := &hir.Crate{
		Ast: astCrate,
		Functions: map[string]*hir.Function{
			"crate::g": {
				Path:   ast.AbsolutePath("", "g"),
				Params: []hir.Param{{Pat: bindPat("x", 0), Type: dynTr}},
				Ret:    ast.UnitType(),
			},
		},
		Impls: []*hir.ImplRef{{Def: implDef}},
	}

	structPath := ast.AbsolutePath("", "MyStruct")
	structPath.Binding.Type = ast.Binding{Kind: ast.BindStruct, TargetPath: "crate::MyStruct"}
	arg := &hir.Borrow{Inner: &hir.StructLit{Path: structPath}}
	call := &hir.CallPath{Path: fnValuePath("g"), Args: []hir.Expr{arg}}
	body := &hir.Block{Stmts: []hir.Stmt{{Init: call}}}

	checkFn(t, crate, newFn("caller", body))

	unsize, ok := call.Args[0].(*hir.Unsize)
	require.True(t, ok, "the argument must be wrapped in an Unsize node, got %T", call.Args[0])
	assert.Equal(t, "&dyn crate::Tr", unsize.Res.String())
	assert.Equal(t, "&crate::MyStruct", unsize.Inner.ResType().String(),
		"the wrapped node keeps the un-coerced type")
}

// (&&S).m() — method found two derefs down an inherent impl
func TestMethodAutoDeref(t *testing.T) {
	astCrate := ast.NewCrate()
	astCrate.Root.Items = []*ast.ItemEntry{
		{Name: "S", Pub: true, Data: &ast.Struct{Kind: ast.StructUnit}},
	}
	implDef := &ast.Impl{
		SelfType: ast.PathType(ast.AbsolutePath("", "S")),
		Items: []*ast.ItemEntry{{
			Name: "m",
			Data: &ast.Function{SelfKind: ast.SelfRef, Ret: ast.PrimType(ast.PrimU32)},
		}},
	}
	astCrate.Root.Impls = []*ast.Impl{implDef}
	crate := &hir.Crate{
		Ast:       astCrate,
		Functions: map[string]*hir.Function{},
		Impls:     []*hir.ImplRef{{Def: implDef}},
	}

	sTy := ast.PathType(ast.AbsolutePath("", "S"))
	mcall := &hir.MethodCall{Recv: localRef("a", 0), Name: "m"}
	body := &hir.Block{Stmts: []hir.Stmt{{Init: mcall}}}
	fn := newFn("h", body)
	fn.Params = []hir.Param{{Pat: bindPat("a", 0), Type: ast.BorrowType(false, ast.BorrowType(false, sTy))}}

	checkFn(t, crate, fn)

	assert.Equal(t, 2, mcall.DerefCount, "&&S needs two derefs to reach S")
	require.NotNil(t, mcall.Resolved)
	assert.Equal(t, ast.PathUFCS, mcall.Resolved.Class)
	assert.Equal(t, "u32", mcall.Res.String())
	if _, ok := mcall.Recv.(*hir.Deref); !ok {
		t.Errorf("receiver must be wrapped in Deref nodes, got %T", mcall.Recv)
	}
}

func TestMethodNotFoundFatal(t *testing.T) {
	mcall := &hir.MethodCall{Recv: litInt(1, "u32"), Name: "frobnicate"}
	body := &hir.Block{Stmts: []hir.Stmt{{Init: mcall}}}
	ck := NewChecker(emptyHirCrate(), testSink(), newFn("f", body))
	err := ck.Check()
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.TYP003, rep.Code)
}

// a + b over a user type dispatches through the `add` lang item
func TestOperatorDispatchThroughLangItem(t *testing.T) {
	astCrate := ast.NewCrate()
	astCrate.Root.Items = []*ast.ItemEntry{
		{Name: "Add", Pub: true, Data: &ast.Trait{}},
		{Name: "Pt", Pub: true, Data: &ast.Struct{Kind: ast.StructUnit}},
	}
	astCrate.LangItems["add"] = ast.AbsolutePath("", "Add")
	implDef := &ast.Impl{
		Trait:    ast.AbsolutePath("", "Add"),
		SelfType: ast.PathType(ast.AbsolutePath("", "Pt")),
		Types:    []ast.AssocTypeDef{{Name: "Output", Type: ast.PathType(ast.AbsolutePath("", "Pt"))}},
	}
	astCrate.Root.Impls = []*ast.Impl{implDef}
	crate := &hir.Crate{
		Ast:       astCrate,
		Functions: map[string]*hir.Function{},
		Impls:     []*hir.ImplRef{{Def: implDef}},
	}

	ptTy := ast.PathType(ast.AbsolutePath("", "Pt"))
	add := &hir.BinOp{Op: ast.BinOpAdd, Lhs: localRef("a", 0), Rhs: localRef("b", 1)}
	body := &hir.Block{Stmts: []hir.Stmt{{Init: add}}}
	fn := newFn("op", body)
	fn.Params = []hir.Param{
		{Pat: bindPat("a", 0), Type: ptTy},
		{Pat: bindPat("b", 1), Type: ptTy.Clone()},
	}

	checkFn(t, crate, fn)
	assert.Equal(t, "crate::Pt", add.Res.String(), "result is the impl's Output type")
}

func TestOperatorInvalidPrimitiveCombination(t *testing.T) {
	shl := &hir.BinOp{Op: ast.BinOpShl, Lhs: &hir.Literal{Kind: ast.LitFloat, FltVal: 1, Suffix: "f32"}, Rhs: litInt(1, "")}
	body := &hir.Block{Stmts: []hir.Stmt{{Init: shl}}}
	ck := NewChecker(emptyHirCrate(), testSink(), newFn("f", body))
	err := ck.Check()
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.TYP008, rep.Code)
}

func TestComparisonYieldsBool(t *testing.T) {
	cmpOp := &hir.BinOp{Op: ast.BinOpLt, Lhs: litInt(1, "u8"), Rhs: litInt(2, "")}
	body := &hir.Block{Stmts: []hir.Stmt{{Init: cmpOp}}}
	checkFn(t, emptyHirCrate(), newFn("f", body))

	assert.Equal(t, "bool", cmpOp.Res.String())
	assert.Equal(t, "u8", cmpOp.Rhs.ResType().String())
}

// match o { Opt::Some(v) => ..., Opt::None => ... } types v from the variant
func TestVariantPatternTyping(t *testing.T) {
	astCrate := ast.NewCrate()
	astCrate.Root.Items = []*ast.ItemEntry{{
		Name: "Opt",
		Pub:  true,
		Data: &ast.Enum{Variants: []ast.EnumVariant{
			{Name: "None"},
			{Name: "Some", Kind: ast.StructTupleKind, Fields: []ast.StructField{{Type: ast.PrimType(ast.PrimU32)}}},
		}},
	}}
	crate := &hir.Crate{Ast: astCrate, Functions: map[string]*hir.Function{}}

	somePath := ast.AbsolutePath("", "Opt", "Some")
	somePath.Binding.Value = ast.Binding{Kind: ast.BindEnumVariant, TargetPath: "crate::Opt::Some", VariantIdx: 1}
	nonePath := ast.AbsolutePath("", "Opt", "None")
	nonePath.Binding.Value = ast.Binding{Kind: ast.BindEnumVariant, TargetPath: "crate::Opt::None", VariantIdx: 0}

	somePat := &ast.Pattern{
		Kind: ast.PatStructTuple,
		Path: somePath,
		Subs: []*ast.Pattern{bindPat("v", 1)},
	}
	nonePat := &ast.Pattern{Kind: ast.PatValue, Path: nonePath}

	m := &hir.Match{
		Scrutinee: localRef("o", 0),
		Arms: []hir.Arm{
			{Pats: []*ast.Pattern{somePat}, Body: localRef("v", 1)},
			{Pats: []*ast.Pattern{nonePat}, Body: litInt(0, "u32")},
		},
	}
	body := &hir.Block{Stmts: []hir.Stmt{{Init: m}}}
	fn := newFn("p", body)
	fn.Params = []hir.Param{{Pat: bindPat("o", 0), Type: ast.PathType(ast.AbsolutePath("", "Opt"))}}

	ck := checkFn(t, crate, fn)
	assert.Equal(t, "u32", ck.resolveDeep(ck.locals[1]).String(), "v takes the variant field's type")
	assert.Equal(t, "u32", m.Res.String(), "both arm bodies unify the match result")
}

// Unresolvable expressions must fail validation, not loop forever
func TestUnresolvedInferenceFatal(t *testing.T) {
	// let a = (b,); — nothing ever constrains b.
	body := &hir.Block{Stmts: []hir.Stmt{
		{Pat: bindPat("a", 0), Init: &hir.TupleLit{Elems: []hir.Expr{localRef("b", 9)}}},
	}}
	ck := NewChecker(emptyHirCrate(), testSink(), newFn("f", body))
	err := ck.Check()
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.TYP002, rep.Code)
}

func TestAssociatedTypeExpansion(t *testing.T) {
	// trait It { type Item; }  impl It for Src { type Item = u32; }
	astCrate := ast.NewCrate()
	astCrate.Root.Items = []*ast.ItemEntry{
		{Name: "It", Pub: true, Data: &ast.Trait{Types: []ast.AssocType{{Name: "Item"}}}},
		{Name: "Src", Pub: true, Data: &ast.Struct{Kind: ast.StructUnit}},
	}
	implDef := &ast.Impl{
		Trait:    ast.AbsolutePath("", "It"),
		SelfType: ast.PathType(ast.AbsolutePath("", "Src")),
		Types:    []ast.AssocTypeDef{{Name: "Item", Type: ast.PrimType(ast.PrimU32)}},
	}
	astCrate.Root.Impls = []*ast.Impl{implDef}
	crate := &hir.Crate{Ast: astCrate, Functions: map[string]*hir.Function{}, Impls: []*hir.ImplRef{{Def: implDef}}}

	fn := newFn("f", &hir.Block{})
	ck := NewChecker(crate, testSink(), fn)

	proj := ast.PathType(ast.UfcsPath(
		ast.PathType(ast.AbsolutePath("", "Src")),
		ast.AbsolutePath("", "It"),
		ast.PathNode{Name: "Item"},
	))
	out := ck.expandAssoc(proj, span.Span{})
	assert.Equal(t, "u32", out.String())

	// With an unresolved self type the projection survives unchanged.
	open := ast.PathType(ast.UfcsPath(
		ck.newIvar(ast.IvarAny),
		ast.AbsolutePath("", "It"),
		ast.PathNode{Name: "Item"},
	))
	kept := ck.expandAssoc(open, span.Span{})
	assert.True(t, isProjection(kept), "unknown self keeps the projection for retry")
}

func TestIterationTerminates(t *testing.T) {
	// A self-referential local: let a = (a,); must not loop forever.
	inner := localRef("a", 0)
	body := &hir.Block{Stmts: []hir.Stmt{
		{Pat: bindPat("a", 0), Init: &hir.TupleLit{Elems: []hir.Expr{inner}}},
	}}
	ck := NewChecker(emptyHirCrate(), testSink(), newFn("f", body))
	err := ck.Check()
	// Either a clean cycle error or an unresolved-inference failure is
	// acceptable; an infinite loop is not.
	require.Error(t, err)
}
