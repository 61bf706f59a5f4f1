package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
)

func deriveAttr(traits ...string) ast.Attr {
	items := make([]ast.Attr, len(traits))
	for i, tr := range traits {
		items[i] = ast.Attr{Name: tr, Kind: ast.AttrWord}
	}
	return ast.Attr{Name: "derive", Kind: ast.AttrKindList, Items: items}
}

func TestDeriveSynthesisesImpls(t *testing.T) {
	x := testExpander(t, nil, nil)
	mod := x.Crate.Root
	mod.Items = []*ast.ItemEntry{{
		Name:  "Pair",
		Attrs: ast.AttrList{Attrs: []ast.Attr{deriveAttr("Clone", "PartialEq", "Copy")}},
		Data: &ast.Struct{
			Kind: ast.StructNamed,
			Fields: []ast.StructField{
				{Name: "a", Type: ast.PrimType(ast.PrimU32)},
				{Name: "b", Type: ast.PrimType(ast.PrimU32)},
			},
		},
	}}

	require.NoError(t, Run(x))
	require.Len(t, mod.Impls, 3, "one impl per derived trait")

	clone := mod.Impls[0]
	assert.Equal(t, "Clone", clone.Trait.String())
	require.Len(t, clone.Items, 1)
	assert.Equal(t, "clone", clone.Items[0].Name)
	fn := clone.Items[0].Data.(*ast.Function)
	assert.Equal(t, ast.SelfRef, fn.SelfKind)
	lit, ok := fn.Body.Tail.(*ast.StructLit)
	require.True(t, ok, "derived clone builds a struct literal")
	require.Len(t, lit.Fields, 2)
	mc, ok := lit.Fields[0].Value.(*ast.MethodCall)
	require.True(t, ok)
	assert.Equal(t, "clone", mc.Name)

	eq := mod.Impls[1]
	assert.Equal(t, "PartialEq", eq.Trait.String())
	eqFn := eq.Items[0].Data.(*ast.Function)
	cmp, ok := eqFn.Body.Tail.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, ast.BinOpBoolAnd, cmp.Op, "fields chain with &&")

	copyImpl := mod.Impls[2]
	assert.Equal(t, "Copy", copyImpl.Trait.String())
	assert.Empty(t, copyImpl.Items, "marker traits derive an empty impl")
}

func TestDeriveGenericBounds(t *testing.T) {
	x := testExpander(t, nil, nil)
	mod := x.Crate.Root
	mod.Items = []*ast.ItemEntry{{
		Name:  "Wrap",
		Attrs: ast.AttrList{Attrs: []ast.Attr{deriveAttr("Clone")}},
		Data: &ast.Struct{
			Generics: ast.GenericParams{Types: []ast.TypeParam{{Name: "T"}}},
			Kind:     ast.StructTupleKind,
			Fields:   []ast.StructField{{Type: ast.GenericType(ast.GenericImplBase, "T")}},
		},
	}}

	require.NoError(t, Run(x))
	require.Len(t, mod.Impls, 1)
	impl := mod.Impls[0]
	require.Len(t, impl.Generics.Bounds, 1, "each parameter is bounded by the derived trait")
	assert.Equal(t, "Clone", impl.Generics.Bounds[0].Trait.String())
	assert.Equal(t, "Wrap", impl.SelfType.Path.Nodes[0].Name)
	require.Len(t, impl.SelfType.Path.Nodes[0].Args, 1, "self type forwards the parameters")
}

func TestDeriveUnsupportedTrait(t *testing.T) {
	x := testExpander(t, nil, nil)
	x.Crate.Root.Items = []*ast.ItemEntry{{
		Name:  "S",
		Attrs: ast.AttrList{Attrs: []ast.Attr{deriveAttr("Serialize")}},
		Data:  &ast.Struct{Kind: ast.StructUnit},
	}}

	err := Run(x)
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.EXP007, rep.Code)
}

func TestCfgRemovesImpl(t *testing.T) {
	x := testExpander(t, nil, nil)
	mod := x.Crate.Root
	mod.Items = []*ast.ItemEntry{{
		Name: "S",
		Data: &ast.Struct{Kind: ast.StructUnit},
	}}
	mod.Impls = []*ast.Impl{{
		Attrs:    ast.AttrList{Attrs: []ast.Attr{listAttr("cfg", flagAttr("nope"))}},
		SelfType: ast.PathType(ast.RelativePath("S")),
	}}

	require.NoError(t, Run(x))
	assert.Nil(t, mod.Impls[0].SelfType, "false cfg clears the impl's self type")
}
