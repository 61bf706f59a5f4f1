package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/span"
)

// lookupIdentOpt is the non-fatal variant of LookupIdent used where a
// miss has a meaning (bare identifiers in patterns).
func (c *Context) lookupIdentOpt(name string, hy ast.Hygiene, mode Mode) (lookupResult, bool) {
	if hy.CrateAnchor != nil {
		if p, ok := searchModule(hy.CrateAnchor, name, mode); ok {
			return lookupResult{path: p}, true
		}
	}
	for i := len(c.stack) - 1; i >= 0; i-- {
		s := &c.stack[i]
		if s.kind == scopeModule {
			if p, ok := searchModule(s.mod, name, mode); ok {
				return lookupResult{path: p}, true
			}
		}
	}
	if p, ok := searchModule(c.Crate.Root, name, mode); ok {
		return lookupResult{path: p}, true
	}
	return lookupResult{}, false
}

func (c *Context) absBlock(b *ast.Block, sp span.Span) error {
	if b == nil {
		return nil
	}
	if b.Anon != nil {
		c.PushModule(b.Anon)
		defer c.Pop()
	}
	c.PushVarBlock()
	defer c.Pop()

	for i := range b.Stmts {
		st := &b.Stmts[i]
		// The initializer resolves before the pattern binds, so
		// `let x = x;` sees the outer x.
		if err := c.absExpr(st.Init, sp); err != nil {
			return err
		}
		if st.Pat != nil {
			if err := c.ResolveType(st.Type, sp); err != nil {
				return err
			}
			if err := c.absPattern(st.Pat, sp); err != nil {
				return err
			}
		}
	}
	return c.absExpr(b.Tail, sp)
}

func (c *Context) absExpr(e ast.Expr, sp span.Span) error {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Literal, *ast.EmptyExpr, *ast.Continue:
		return nil

	case *ast.PathExpr:
		rp, err := c.ResolvePath(n.Path, ModeVariable, n.Pos())
		if err != nil {
			return err
		}
		n.Path = rp
		return nil

	case *ast.Block:
		return c.absBlock(n, sp)

	case *ast.Match:
		if err := c.absExpr(n.Scrutinee, sp); err != nil {
			return err
		}
		for i := range n.Arms {
			arm := &n.Arms[i]
			c.PushVarBlock()
			c.StartPatbind()
			for _, p := range arm.Pats {
				if err := c.absPattern(p, sp); err != nil {
					c.EndPatbind()
					c.Pop()
					return err
				}
				if err := c.EndPatbindArm(p.Span); err != nil {
					c.EndPatbind()
					c.Pop()
					return err
				}
			}
			c.EndPatbind()
			err := c.absExpr(arm.Guard, sp)
			if err == nil {
				err = c.absExpr(arm.Body, sp)
			}
			c.Pop()
			if err != nil {
				return err
			}
		}
		return nil

	case *ast.If:
		if err := c.absExpr(n.Cond, sp); err != nil {
			return err
		}
		if err := c.absBlock(n.Then, sp); err != nil {
			return err
		}
		return c.absExpr(n.Else, sp)

	case *ast.While:
		if err := c.absExpr(n.Cond, sp); err != nil {
			return err
		}
		return c.absBlock(n.Body, sp)

	case *ast.Loop:
		return c.absBlock(n.Body, sp)

	case *ast.Break:
		return c.absExpr(n.Value, sp)

	case *ast.Return:
		return c.absExpr(n.Value, sp)

	case *ast.Call:
		rp, err := c.ResolvePath(n.Target, ModeVariable, n.Pos())
		if err != nil {
			return err
		}
		n.Target = rp
		if err := c.resolvePathArgs(rp, n.Pos()); err != nil {
			return err
		}
		return c.absExprs(n.Args, sp)

	case *ast.CallValue:
		if err := c.absExpr(n.Fn, sp); err != nil {
			return err
		}
		return c.absExprs(n.Args, sp)

	case *ast.MethodCall:
		if err := c.absExpr(n.Recv, sp); err != nil {
			return err
		}
		return c.absExprs(n.Args, sp)

	case *ast.Field:
		return c.absExpr(n.Base, sp)

	case *ast.Index:
		if err := c.absExpr(n.Base, sp); err != nil {
			return err
		}
		return c.absExpr(n.Idx, sp)

	case *ast.Borrow:
		return c.absExpr(n.Inner, sp)

	case *ast.Deref:
		return c.absExpr(n.Inner, sp)

	case *ast.Cast:
		if err := c.absExpr(n.Inner, sp); err != nil {
			return err
		}
		return c.ResolveType(n.To, n.Pos())

	case *ast.Assign:
		if err := c.absExpr(n.Lhs, sp); err != nil {
			return err
		}
		return c.absExpr(n.Rhs, sp)

	case *ast.BinaryOp:
		if err := c.absExpr(n.Lhs, sp); err != nil {
			return err
		}
		return c.absExpr(n.Rhs, sp)

	case *ast.UnaryOp:
		return c.absExpr(n.Inner, sp)

	case *ast.StructLit:
		rp, err := c.ResolvePath(n.Path, ModeNamespace, n.Pos())
		if err != nil {
			return err
		}
		n.Path = rp
		for i := range n.Fields {
			if err := c.absExpr(n.Fields[i].Value, sp); err != nil {
				return err
			}
		}
		return c.absExpr(n.Base, sp)

	case *ast.TupleLit:
		return c.absExprs(n.Elems, sp)

	case *ast.ArrayLit:
		if err := c.absExprs(n.Elems, sp); err != nil {
			return err
		}
		return c.absExpr(n.Repeat, sp)

	default:
		return nil
	}
}

func (c *Context) absExprs(exprs []ast.Expr, sp span.Span) error {
	for _, e := range exprs {
		if err := c.absExpr(e, sp); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) absPattern(p *ast.Pattern, sp span.Span) error {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case ast.PatAny:
		return nil

	case ast.PatMaybeBind:
		// A bare identifier: a unit variant, unit struct, or constant
		// in scope wins; otherwise the name binds a new local.
		bind := &p.Bindings[0]
		if res, ok := c.lookupIdentOpt(bind.Name, bind.Hygiene, ModePatternValue); ok {
			p.Kind = ast.PatValue
			p.Path = res.path
			p.Bindings = nil
			return nil
		}
		slot, err := c.patbindVar(bind.Name, bind.Hygiene, p.Span)
		if err != nil {
			return err
		}
		bind.Slot = slot
		return nil

	case ast.PatValue:
		if p.Path != nil {
			rp, err := c.ResolvePath(p.Path, ModePatternValue, p.Span)
			if err != nil {
				return err
			}
			p.Path = rp
		}
		if err := c.absExpr(p.ValueStart, sp); err != nil {
			return err
		}
		return nil

	case ast.PatRange:
		if err := c.absExpr(p.ValueStart, sp); err != nil {
			return err
		}
		return c.absExpr(p.ValueEnd, sp)

	case ast.PatTuple, ast.PatSlice:
		return c.absPatterns(p.Subs, sp)

	case ast.PatStructTuple:
		rp, err := c.ResolvePath(p.Path, ModeNamespace, p.Span)
		if err != nil {
			return err
		}
		p.Path = rp
		return c.absPatterns(p.Subs, sp)

	case ast.PatStruct:
		rp, err := c.ResolvePath(p.Path, ModeNamespace, p.Span)
		if err != nil {
			return err
		}
		p.Path = rp
		for i := range p.Fields {
			if err := c.absPattern(p.Fields[i].Pat, sp); err != nil {
				return err
			}
		}
		return nil

	case ast.PatSplitSlice:
		if err := c.absPatterns(p.Leading, sp); err != nil {
			return err
		}
		if p.MiddleBinding != nil {
			slot, err := c.patbindVar(p.MiddleBinding.Name, p.MiddleBinding.Hygiene, p.Span)
			if err != nil {
				return err
			}
			p.MiddleBinding.Slot = slot
		}
		return c.absPatterns(p.Trailing, sp)

	case ast.PatOr:
		// Alternatives of a nested or-pattern share slots through the
		// enclosing arm group.
		return c.absPatterns(p.Subs, sp)

	case ast.PatRef, ast.PatBox:
		return c.absPattern(p.Inner, sp)
	}
	return nil
}

func (c *Context) absPatterns(pats []*ast.Pattern, sp span.Span) error {
	for _, p := range pats {
		if err := c.absPattern(p, sp); err != nil {
			return err
		}
	}
	return nil
}
