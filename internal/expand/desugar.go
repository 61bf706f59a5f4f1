package expand

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/span"
)

// Desugar rewrites the high-level syntactic forms into primitive ones:
// for-loops, `?`, while-let, if-let, and range literals. It runs as part
// of expression expansion so macro-produced sugar is lowered too.

func pathCall(sp span.Span, target *ast.Path, args ...ast.Expr) ast.Expr {
	c := &ast.Call{Target: target, Args: args}
	c.Span = sp
	return c
}

func variantPat(sp span.Span, path *ast.Path, subs ...*ast.Pattern) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatStructTuple, Span: sp, Path: path, Subs: subs}
}

func unitVariantPat(sp span.Span, path *ast.Path) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatValue, Span: sp, Path: path}
}

// desugarFor lowers
//
//	for pat in iter { body }
//
// into
//
//	match IntoIterator::into_iter(iter) { mut it => {
//	    'label: loop {
//	        match Iterator::next(&mut it) {
//	            Some(pat) => body,
//	            None => break 'label,
//	        }
//	    }
//	} }
func desugarFor(f *ast.ForLoop) ast.Expr {
	sp := f.Pos()

	itPat := ast.BindPattern("it", sp)
	itPat.Bindings[0].Mut = true

	nextCall := pathCall(sp,
		ast.RelativePath("Iterator", "next"),
		&ast.Borrow{Mut: true, Inner: &ast.PathExpr{Path: ast.RelativePath("it")}})

	breakOut := &ast.Break{Label: f.Label}
	breakOut.Span = sp

	inner := &ast.Match{
		Scrutinee: nextCall,
		Arms: []ast.MatchArm{
			{Pats: []*ast.Pattern{variantPat(sp, ast.RelativePath("Some"), f.Pat)}, Body: f.Body},
			{Pats: []*ast.Pattern{unitVariantPat(sp, ast.RelativePath("None"))}, Body: breakOut},
		},
	}
	inner.Span = sp

	loop := &ast.Loop{Label: f.Label, Body: &ast.Block{Tail: inner}}
	loop.Span = sp

	intoCall := pathCall(sp, ast.RelativePath("IntoIterator", "into_iter"), f.Iter)
	outer := &ast.Match{
		Scrutinee: intoCall,
		Arms: []ast.MatchArm{
			{Pats: []*ast.Pattern{itPat}, Body: loop},
		},
	}
	outer.Span = sp
	return outer
}

// desugarTry lowers
//
//	expr?
//
// into
//
//	match expr { Ok(v) => v, Err(e) => return Err(From::from(e)) }
func desugarTry(t *ast.Try) ast.Expr {
	sp := t.Pos()

	okBody := &ast.PathExpr{Path: ast.RelativePath("v")}
	okBody.Span = sp

	fromCall := pathCall(sp,
		ast.RelativePath("From", "from"),
		&ast.PathExpr{Path: ast.RelativePath("e")})
	errRet := &ast.Return{Value: pathCall(sp, ast.RelativePath("Err"), fromCall)}
	errRet.Span = sp

	m := &ast.Match{
		Scrutinee: t.Inner,
		Arms: []ast.MatchArm{
			{Pats: []*ast.Pattern{variantPat(sp, ast.RelativePath("Ok"), ast.BindPattern("v", sp))}, Body: okBody},
			{Pats: []*ast.Pattern{variantPat(sp, ast.RelativePath("Err"), ast.BindPattern("e", sp))}, Body: errRet},
		},
	}
	m.Span = sp
	return m
}

// desugarWhileLet lowers
//
//	'l: while let pat = val { body }
//
// into
//
//	'l: loop { match val { pat => body, _ => break 'l } }
func desugarWhileLet(w *ast.WhileLet) ast.Expr {
	sp := w.Pos()

	breakOut := &ast.Break{Label: w.Label}
	breakOut.Span = sp

	m := &ast.Match{
		Scrutinee: w.Val,
		Arms: []ast.MatchArm{
			{Pats: w.Pats, Body: w.Body},
			{Pats: []*ast.Pattern{ast.AnyPattern(sp)}, Body: breakOut},
		},
	}
	m.Span = sp

	loop := &ast.Loop{Label: w.Label, Body: &ast.Block{Tail: m}}
	loop.Span = sp
	return loop
}

// desugarIfLet lowers
//
//	if let pat = val { then } else { els }
//
// into
//
//	match val { pat => then, _ => els }
func desugarIfLet(i *ast.IfLet) ast.Expr {
	sp := i.Pos()

	var elseBody ast.Expr = &ast.Block{}
	if i.Else != nil {
		elseBody = i.Else
	}

	m := &ast.Match{
		Scrutinee: i.Val,
		Arms: []ast.MatchArm{
			{Pats: i.Pats, Body: i.Then},
			{Pats: []*ast.Pattern{ast.AnyPattern(sp)}, Body: elseBody},
		},
	}
	m.Span = sp
	return m
}

// desugarRange lowers range literals to the ops range struct literals
func desugarRange(r *ast.RangeExpr) ast.Expr {
	sp := r.Pos()
	var name string
	lit := &ast.StructLit{}
	switch {
	case r.Start != nil && r.End != nil && r.Limit == ast.RangeHalfOpen:
		name = "Range"
		lit.Fields = []ast.FieldInit{{Name: "start", Value: r.Start}, {Name: "end", Value: r.End}}
	case r.Start != nil && r.End != nil:
		name = "RangeInclusive"
		lit.Fields = []ast.FieldInit{{Name: "start", Value: r.Start}, {Name: "end", Value: r.End}}
	case r.Start != nil:
		name = "RangeFrom"
		lit.Fields = []ast.FieldInit{{Name: "start", Value: r.Start}}
	case r.End != nil && r.Limit == ast.RangeHalfOpen:
		name = "RangeTo"
		lit.Fields = []ast.FieldInit{{Name: "end", Value: r.End}}
	case r.End != nil:
		name = "RangeToInclusive"
		lit.Fields = []ast.FieldInit{{Name: "end", Value: r.End}}
	default:
		name = "RangeFull"
		lit = &ast.StructLit{}
	}
	lit.Path = ast.RelativePath("ops", name)
	lit.Span = sp
	return lit
}
