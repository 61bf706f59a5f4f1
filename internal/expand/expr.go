package expand

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
)

// expandBlock expands every statement of a block. A false #[cfg] on a
// statement replaces its expression with an empty node.
func (x *Expander) expandBlock(mod *ast.Module, b *ast.Block) (*ast.Block, error) {
	if b == nil {
		return nil, nil
	}
	scope := mod
	if b.Anon != nil {
		scope = b.Anon
		if err := x.expandModule(b.Anon); err != nil {
			return nil, err
		}
	}
	out := b.Stmts[:0]
	for i := range b.Stmts {
		st := b.Stmts[i]
		if len(st.Attrs.Attrs) != 0 {
			if err := applyCfgAttr(x.Sink, x.Cfg, st.Attrs.Attrs[0].Span, &st.Attrs); err != nil {
				return nil, err
			}
			if cfgAttr := st.Attrs.Lookup("cfg"); cfgAttr != nil {
				ok, err := checkCfgAttr(x, cfgAttr)
				if err != nil {
					return nil, err
				}
				if !ok {
					st.Init = &ast.EmptyExpr{}
					st.Pat = nil
					out = append(out, st)
					continue
				}
			}
		}
		init, err := x.expandExpr(scope, st.Init)
		if err != nil {
			return nil, err
		}
		st.Init = init
		out = append(out, st)
	}
	b.Stmts = out
	tail, err := x.expandExpr(scope, b.Tail)
	if err != nil {
		return nil, err
	}
	b.Tail = tail
	return b, nil
}

// expandExpr rewrites one expression tree: children first, then the
// node's own desugaring or macro expansion. The returned node replaces
// the input in the parent.
func (x *Expander) expandExpr(mod *ast.Module, e ast.Expr) (ast.Expr, error) {
	if e == nil {
		return nil, nil
	}
	var err error
	switch n := e.(type) {
	case *ast.Literal, *ast.PathExpr, *ast.EmptyExpr:
		return e, nil

	case *ast.Block:
		return x.expandBlock(mod, n)

	case *ast.Match:
		if n.Scrutinee, err = x.expandExpr(mod, n.Scrutinee); err != nil {
			return nil, err
		}
		for i := range n.Arms {
			if n.Arms[i].Guard, err = x.expandExpr(mod, n.Arms[i].Guard); err != nil {
				return nil, err
			}
			if n.Arms[i].Body, err = x.expandExpr(mod, n.Arms[i].Body); err != nil {
				return nil, err
			}
		}
		return n, nil

	case *ast.If:
		if n.Cond, err = x.expandExpr(mod, n.Cond); err != nil {
			return nil, err
		}
		if n.Then, err = x.expandBlock(mod, n.Then); err != nil {
			return nil, err
		}
		if n.Else, err = x.expandExpr(mod, n.Else); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.IfLet:
		if n.Val, err = x.expandExpr(mod, n.Val); err != nil {
			return nil, err
		}
		if n.Then, err = x.expandBlock(mod, n.Then); err != nil {
			return nil, err
		}
		if n.Else, err = x.expandExpr(mod, n.Else); err != nil {
			return nil, err
		}
		return desugarIfLet(n), nil

	case *ast.While:
		if n.Cond, err = x.expandExpr(mod, n.Cond); err != nil {
			return nil, err
		}
		if n.Body, err = x.expandBlock(mod, n.Body); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.WhileLet:
		if n.Val, err = x.expandExpr(mod, n.Val); err != nil {
			return nil, err
		}
		if n.Body, err = x.expandBlock(mod, n.Body); err != nil {
			return nil, err
		}
		return desugarWhileLet(n), nil

	case *ast.ForLoop:
		if n.Iter, err = x.expandExpr(mod, n.Iter); err != nil {
			return nil, err
		}
		if n.Body, err = x.expandBlock(mod, n.Body); err != nil {
			return nil, err
		}
		return desugarFor(n), nil

	case *ast.Loop:
		if n.Body, err = x.expandBlock(mod, n.Body); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Try:
		if n.Inner, err = x.expandExpr(mod, n.Inner); err != nil {
			return nil, err
		}
		return desugarTry(n), nil

	case *ast.RangeExpr:
		if n.Start, err = x.expandExpr(mod, n.Start); err != nil {
			return nil, err
		}
		if n.End, err = x.expandExpr(mod, n.End); err != nil {
			return nil, err
		}
		return desugarRange(n), nil

	case *ast.Break:
		if n.Value, err = x.expandExpr(mod, n.Value); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Continue:
		return n, nil

	case *ast.Return:
		if n.Value, err = x.expandExpr(mod, n.Value); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Call:
		if err = x.expandExprs(mod, n.Args); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.CallValue:
		if n.Fn, err = x.expandExpr(mod, n.Fn); err != nil {
			return nil, err
		}
		if err = x.expandExprs(mod, n.Args); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.MethodCall:
		if n.Recv, err = x.expandExpr(mod, n.Recv); err != nil {
			return nil, err
		}
		if err = x.expandExprs(mod, n.Args); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Field:
		if n.Base, err = x.expandExpr(mod, n.Base); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Index:
		if n.Base, err = x.expandExpr(mod, n.Base); err != nil {
			return nil, err
		}
		if n.Idx, err = x.expandExpr(mod, n.Idx); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Borrow:
		if n.Inner, err = x.expandExpr(mod, n.Inner); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Deref:
		if n.Inner, err = x.expandExpr(mod, n.Inner); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Cast:
		if n.Inner, err = x.expandExpr(mod, n.Inner); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.Assign:
		if n.Lhs, err = x.expandExpr(mod, n.Lhs); err != nil {
			return nil, err
		}
		if n.Rhs, err = x.expandExpr(mod, n.Rhs); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.BinaryOp:
		if n.Lhs, err = x.expandExpr(mod, n.Lhs); err != nil {
			return nil, err
		}
		if n.Rhs, err = x.expandExpr(mod, n.Rhs); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.UnaryOp:
		if n.Inner, err = x.expandExpr(mod, n.Inner); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.StructLit:
		for i := range n.Fields {
			if n.Fields[i].Value, err = x.expandExpr(mod, n.Fields[i].Value); err != nil {
				return nil, err
			}
		}
		if n.Base, err = x.expandExpr(mod, n.Base); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.TupleLit:
		if err = x.expandExprs(mod, n.Elems); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.ArrayLit:
		if err = x.expandExprs(mod, n.Elems); err != nil {
			return nil, err
		}
		if n.Repeat, err = x.expandExpr(mod, n.Repeat); err != nil {
			return nil, err
		}
		return n, nil

	case *ast.MacroExpr:
		out, expanded, merr := x.invokeMacro(mod, n.Mac)
		if merr != nil {
			return nil, merr
		}
		if !expanded {
			if x.early {
				return n, nil // deferred to the late pass
			}
			return nil, x.errorAt(diag.EXP001, n.Mac.Span, "macro %s! is not defined", n.Mac.Name)
		}
		parsed, perr := x.Reparser.ParseExpr(out)
		if perr != nil {
			return nil, x.errorAt(diag.EXP002, n.Mac.Span,
				"failed to parse expansion of %s!: %v", n.Mac.Name, perr)
		}
		// The expansion may itself contain sugar or nested macros.
		return x.expandExpr(mod, parsed)

	default:
		return e, nil
	}
}

func (x *Expander) expandExprs(mod *ast.Module, exprs []ast.Expr) error {
	for i := range exprs {
		e, err := x.expandExpr(mod, exprs[i])
		if err != nil {
			return err
		}
		exprs[i] = e
	}
	return nil
}
