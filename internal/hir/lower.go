package hir

import (
	"fmt"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/span"
)

// Lower copies the resolved AST into the HIR. The walk is mechanical:
// paths and patterns are already bound, so lowering only changes the
// node representation and flattens functions into the crate index.
func Lower(crate *ast.Crate) (*Crate, error) {
	l := &lowerer{out: &Crate{Ast: crate, Functions: map[string]*Function{}}}
	if err := l.lowerModule(crate.Root); err != nil {
		return nil, err
	}
	return l.out, nil
}

type lowerer struct {
	out *Crate
}

func (l *lowerer) lowerModule(m *ast.Module) error {
	for _, entry := range m.Items {
		if entry.IsTombstone() {
			continue
		}
		switch d := entry.Data.(type) {
		case *ast.Module:
			if err := l.lowerModule(d); err != nil {
				return err
			}
		case *ast.Function:
			fn, err := l.lowerFunction(m.Path.Append(entry.Name), d, nil)
			if err != nil {
				return err
			}
			l.out.Functions[fnKey(fn.Path)] = fn
		}
	}
	for _, impl := range m.Impls {
		if impl.SelfType == nil {
			continue
		}
		ref := &ImplRef{Mod: m, Def: impl, Fns: map[string]*Function{}}
		for _, it := range impl.Items {
			if it.IsTombstone() {
				continue
			}
			fnDef, ok := it.Data.(*ast.Function)
			if !ok {
				continue
			}
			fn, err := l.lowerFunction(implFnPath(m, impl, it.Name), fnDef, impl.SelfType)
			if err != nil {
				return err
			}
			ref.Fns[it.Name] = fn
			l.out.Functions[fnKey(fn.Path)] = fn
		}
		l.out.Impls = append(l.out.Impls, ref)
	}
	for _, anon := range m.AnonMods {
		if err := l.lowerModule(anon); err != nil {
			return err
		}
	}
	return nil
}

// implFnPath forms the UFCS-shaped key an impl method is indexed under
func implFnPath(m *ast.Module, impl *ast.Impl, name string) *ast.Path {
	return ast.UfcsPath(impl.SelfType, impl.Trait, ast.PathNode{Name: name})
}

// fnKey renders a function path to its index key. Module-rooted paths
// use the canonical absolute key; UFCS paths need the full rendering so
// methods of different impls stay distinct.
func fnKey(p *ast.Path) string {
	if p.Class == ast.PathUFCS {
		return p.String()
	}
	return p.Key()
}

func (l *lowerer) lowerFunction(path *ast.Path, fn *ast.Function, selfTy *ast.TypeRef) (*Function, error) {
	out := &Function{
		Path:     path,
		Generics: &fn.Generics,
		SelfKind: fn.SelfKind,
		SelfType: selfTy,
		Ret:      fn.Ret,
	}
	if out.Ret == nil {
		out.Ret = ast.UnitType()
	}
	for _, p := range fn.Params {
		out.Params = append(out.Params, Param{Pat: p.Pat, Type: p.Type})
	}
	if fn.Body != nil {
		body, err := l.lowerBlock(fn.Body)
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	return out, nil
}

func (l *lowerer) lowerBlock(b *ast.Block) (*Block, error) {
	out := &Block{}
	out.Sp = b.Pos()
	for _, st := range b.Stmts {
		if _, isEmpty := st.Init.(*ast.EmptyExpr); isEmpty && st.Pat == nil {
			continue // removed by cfg
		}
		init, err := l.lowerExpr(st.Init)
		if err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, Stmt{Pat: st.Pat, Type: st.Type, Init: init})
	}
	tail, err := l.lowerExpr(b.Tail)
	if err != nil {
		return nil, err
	}
	out.Tail = tail
	return out, nil
}

func (l *lowerer) lowerExprs(in []ast.Expr) ([]Expr, error) {
	out := make([]Expr, 0, len(in))
	for _, e := range in {
		le, err := l.lowerExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	return out, nil
}

func (l *lowerer) lowerExpr(e ast.Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch n := e.(type) {
	case *ast.EmptyExpr:
		out := &TupleLit{}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Literal:
		out := &Literal{Kind: n.Kind, IntVal: n.IntVal, FltVal: n.FltVal, StrVal: n.StrVal, Suffix: n.Suffix}
		out.Sp = n.Pos()
		return out, nil

	case *ast.PathExpr:
		out := &PathValue{Path: n.Path}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Block:
		return l.lowerBlock(n)

	case *ast.Match:
		scrut, err := l.lowerExpr(n.Scrutinee)
		if err != nil {
			return nil, err
		}
		out := &Match{Scrutinee: scrut}
		out.Sp = n.Pos()
		for _, arm := range n.Arms {
			guard, err := l.lowerExpr(arm.Guard)
			if err != nil {
				return nil, err
			}
			body, err := l.lowerExpr(arm.Body)
			if err != nil {
				return nil, err
			}
			out.Arms = append(out.Arms, Arm{Pats: arm.Pats, Guard: guard, Body: body})
		}
		return out, nil

	case *ast.If:
		cond, err := l.lowerExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := l.lowerBlock(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := l.lowerExpr(n.Else)
		if err != nil {
			return nil, err
		}
		out := &If{Cond: cond, Then: then, Else: els}
		out.Sp = n.Pos()
		return out, nil

	case *ast.While:
		cond, err := l.lowerExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := l.lowerBlock(n.Body)
		if err != nil {
			return nil, err
		}
		out := &While{Label: n.Label, Cond: cond, Body: body}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Loop:
		body, err := l.lowerBlock(n.Body)
		if err != nil {
			return nil, err
		}
		out := &Loop{Label: n.Label, Body: body}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Break:
		val, err := l.lowerExpr(n.Value)
		if err != nil {
			return nil, err
		}
		out := &Break{Label: n.Label, Value: val}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Continue:
		out := &Continue{Label: n.Label}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Return:
		val, err := l.lowerExpr(n.Value)
		if err != nil {
			return nil, err
		}
		out := &Return{Value: val}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Call:
		args, err := l.lowerExprs(n.Args)
		if err != nil {
			return nil, err
		}
		out := &CallPath{Path: n.Target, Args: args}
		out.Sp = n.Pos()
		return out, nil

	case *ast.CallValue:
		fn, err := l.lowerExpr(n.Fn)
		if err != nil {
			return nil, err
		}
		args, err := l.lowerExprs(n.Args)
		if err != nil {
			return nil, err
		}
		out := &CallValue{Fn: fn, Args: args}
		out.Sp = n.Pos()
		return out, nil

	case *ast.MethodCall:
		recv, err := l.lowerExpr(n.Recv)
		if err != nil {
			return nil, err
		}
		args, err := l.lowerExprs(n.Args)
		if err != nil {
			return nil, err
		}
		out := &MethodCall{Recv: recv, Name: n.Name, Args: args}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Field:
		base, err := l.lowerExpr(n.Base)
		if err != nil {
			return nil, err
		}
		out := &Field{Base: base, Name: n.Name}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Index:
		base, err := l.lowerExpr(n.Base)
		if err != nil {
			return nil, err
		}
		idx, err := l.lowerExpr(n.Idx)
		if err != nil {
			return nil, err
		}
		out := &Index{Base: base, Idx: idx}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Borrow:
		inner, err := l.lowerExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		out := &Borrow{Mut: n.Mut, Inner: inner}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Deref:
		inner, err := l.lowerExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		out := &Deref{Inner: inner}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Cast:
		inner, err := l.lowerExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		out := &Cast{Inner: inner, To: n.To}
		out.Sp = n.Pos()
		return out, nil

	case *ast.Assign:
		lhs, err := l.lowerExpr(n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := l.lowerExpr(n.Rhs)
		if err != nil {
			return nil, err
		}
		out := &Assign{Op: n.Op, Lhs: lhs, Rhs: rhs}
		out.Sp = n.Pos()
		return out, nil

	case *ast.BinaryOp:
		lhs, err := l.lowerExpr(n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := l.lowerExpr(n.Rhs)
		if err != nil {
			return nil, err
		}
		out := &BinOp{Op: n.Op, Lhs: lhs, Rhs: rhs}
		out.Sp = n.Pos()
		return out, nil

	case *ast.UnaryOp:
		inner, err := l.lowerExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		out := &UnOp{Op: n.Op, Inner: inner}
		out.Sp = n.Pos()
		return out, nil

	case *ast.StructLit:
		out := &StructLit{Path: n.Path}
		out.Sp = n.Pos()
		for _, f := range n.Fields {
			v, err := l.lowerExpr(f.Value)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, FieldInit{Name: f.Name, Value: v})
		}
		base, err := l.lowerExpr(n.Base)
		if err != nil {
			return nil, err
		}
		out.Base = base
		return out, nil

	case *ast.TupleLit:
		elems, err := l.lowerExprs(n.Elems)
		if err != nil {
			return nil, err
		}
		out := &TupleLit{Elems: elems}
		out.Sp = n.Pos()
		return out, nil

	case *ast.ArrayLit:
		elems, err := l.lowerExprs(n.Elems)
		if err != nil {
			return nil, err
		}
		rep, err := l.lowerExpr(n.Repeat)
		if err != nil {
			return nil, err
		}
		out := &ArrayLit{Elems: elems, Repeat: rep, Count: n.Count, Sized: n.Sized}
		out.Sp = n.Pos()
		return out, nil

	default:
		return nil, fmt.Errorf("%s: cannot lower %T (unexpanded sugar reached lowering)", pos(e), e)
	}
}

func pos(e ast.Expr) span.Span { return e.Pos() }
