package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/span"
)

func spanZero() span.Span { return span.Span{} }

// buildForLoop constructs `'outer: for i in 0..10 { () }`
func buildForLoop() *ast.ForLoop {
	return &ast.ForLoop{
		Label: "outer",
		Pat:   ast.BindPattern("i", spanZero()),
		Iter: &ast.RangeExpr{
			Start: &ast.Literal{Kind: ast.LitInt, IntVal: 0},
			End:   &ast.Literal{Kind: ast.LitInt, IntVal: 10},
		},
		Body: &ast.Block{},
	}
}

func TestDesugarForLoop(t *testing.T) {
	x := testExpander(t, nil, nil)
	out, err := x.expandExpr(x.Crate.Root, buildForLoop())
	require.NoError(t, err)

	// Outer: match IntoIterator::into_iter(range) { mut it => loop { .. } }
	outer, ok := out.(*ast.Match)
	require.True(t, ok, "for-loop lowers to a Match, got %T", out)
	intoCall, ok := outer.Scrutinee.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "IntoIterator::into_iter", intoCall.Target.String())

	// The range iterated over became an ops::Range struct literal.
	rangeLit, ok := intoCall.Args[0].(*ast.StructLit)
	require.True(t, ok, "range sugar lowers to a struct literal, got %T", intoCall.Args[0])
	assert.Equal(t, "ops::Range", rangeLit.Path.String())
	require.Len(t, rangeLit.Fields, 2)
	assert.Equal(t, "start", rangeLit.Fields[0].Name)
	assert.Equal(t, "end", rangeLit.Fields[1].Name)

	require.Len(t, outer.Arms, 1)
	itPat := outer.Arms[0].Pats[0]
	require.Len(t, itPat.Bindings, 1)
	assert.True(t, itPat.Bindings[0].Mut, "the iterator binding is mut")

	// Inner: loop { match Iterator::next(&mut it) { Some(i) => body, None => break } }
	loop, ok := outer.Arms[0].Body.(*ast.Loop)
	require.True(t, ok)
	assert.Equal(t, "outer", loop.Label, "loop label is preserved")

	inner, ok := loop.Body.Tail.(*ast.Match)
	require.True(t, ok)
	nextCall, ok := inner.Scrutinee.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "Iterator::next", nextCall.Target.String())
	borrow, ok := nextCall.Args[0].(*ast.Borrow)
	require.True(t, ok)
	assert.True(t, borrow.Mut)

	require.Len(t, inner.Arms, 2)
	somePat := inner.Arms[0].Pats[0]
	assert.Equal(t, ast.PatStructTuple, somePat.Kind)
	assert.Equal(t, "Some", somePat.Path.String())
	require.Len(t, somePat.Subs, 1)
	require.Len(t, somePat.Subs[0].Bindings, 1)
	assert.Equal(t, "i", somePat.Subs[0].Bindings[0].Name, "the loop variable binding survives")

	nonePat := inner.Arms[1].Pats[0]
	assert.Equal(t, ast.PatValue, nonePat.Kind)
	assert.Equal(t, "None", nonePat.Path.String())
	brk, ok := inner.Arms[1].Body.(*ast.Break)
	require.True(t, ok)
	assert.Equal(t, "outer", brk.Label, "break targets the loop label")
}

func TestDesugarTry(t *testing.T) {
	x := testExpander(t, nil, nil)
	try := &ast.Try{Inner: &ast.PathExpr{Path: ast.RelativePath("res")}}
	out, err := x.expandExpr(x.Crate.Root, try)
	require.NoError(t, err)

	m, ok := out.(*ast.Match)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)

	okPat := m.Arms[0].Pats[0]
	assert.Equal(t, "Ok", okPat.Path.String())
	okBody, ok := m.Arms[0].Body.(*ast.PathExpr)
	require.True(t, ok)
	assert.Equal(t, "v", okBody.Path.String())

	errPat := m.Arms[1].Pats[0]
	assert.Equal(t, "Err", errPat.Path.String())
	ret, ok := m.Arms[1].Body.(*ast.Return)
	require.True(t, ok)
	errCall, ok := ret.Value.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "Err", errCall.Target.String())
	fromCall, ok := errCall.Args[0].(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "From::from", fromCall.Target.String())
}

func TestDesugarIfLet(t *testing.T) {
	x := testExpander(t, nil, nil)
	ifLet := &ast.IfLet{
		Pats: []*ast.Pattern{ast.BindPattern("x", spanZero())},
		Val:  &ast.PathExpr{Path: ast.RelativePath("opt")},
		Then: &ast.Block{},
	}
	out, err := x.expandExpr(x.Crate.Root, ifLet)
	require.NoError(t, err)

	m, ok := out.(*ast.Match)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)
	assert.Equal(t, ast.PatAny, m.Arms[1].Pats[0].Kind, "missing else lowers to a wildcard arm")
}

func TestDesugarWhileLet(t *testing.T) {
	x := testExpander(t, nil, nil)
	wl := &ast.WhileLet{
		Label: "w",
		Pats:  []*ast.Pattern{ast.BindPattern("x", spanZero())},
		Val:   &ast.PathExpr{Path: ast.RelativePath("it")},
		Body:  &ast.Block{},
	}
	out, err := x.expandExpr(x.Crate.Root, wl)
	require.NoError(t, err)

	loop, ok := out.(*ast.Loop)
	require.True(t, ok)
	assert.Equal(t, "w", loop.Label)
	m, ok := loop.Body.Tail.(*ast.Match)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)
	brk, ok := m.Arms[1].Body.(*ast.Break)
	require.True(t, ok)
	assert.Equal(t, "w", brk.Label)
}
