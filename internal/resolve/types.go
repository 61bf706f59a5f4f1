package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// ResolveType rewrites a type reference in place: paths become absolute
// or UFCS, type-parameter names become Generic slots, primitive names
// become Primitive, and lifetimes are bound.
func (c *Context) ResolveType(t *ast.TypeRef, sp span.Span) error {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ast.TypeInfer, ast.TypeDiverge, ast.TypePrimitive, ast.TypeGeneric:
		return nil

	case ast.TypePath:
		return c.resolveTypePath(t, sp)

	case ast.TypeTraitObject, ast.TypeErased:
		for i, tr := range t.Traits {
			rp, err := c.ResolvePath(tr, ModeType, sp)
			if err != nil {
				return err
			}
			t.Traits[i] = rp
			if err := c.resolvePathArgs(rp, sp); err != nil {
				return err
			}
		}
		return nil

	case ast.TypeBorrow:
		if err := c.ResolveLifetime(t.Lifetime, sp); err != nil {
			return err
		}
		return c.ResolveType(t.Inner, sp)

	case ast.TypeArray, ast.TypeSlice, ast.TypePointer:
		return c.ResolveType(t.Inner, sp)

	case ast.TypeTuple:
		for _, e := range t.Elems {
			if err := c.ResolveType(e, sp); err != nil {
				return err
			}
		}
		return nil

	case ast.TypeFunction, ast.TypeClosure:
		if t.Fn == nil {
			return nil
		}
		for _, a := range t.Fn.Args {
			if err := c.ResolveType(a, sp); err != nil {
				return err
			}
		}
		return c.ResolveType(t.Fn.Ret, sp)

	case ast.TypeMacro:
		return c.Sink.Fatal(diag.New(phase, diag.RES001, sp,
			"unexpanded macro in type position"))

	default:
		return nil
	}
}

func (c *Context) resolveTypePath(t *ast.TypeRef, sp span.Span) error {
	p := t.Path

	// Single-segment relative names get the full scope-stack treatment:
	// they may be type parameters, Self, or primitives.
	if p.Class == ast.PathRelative && len(p.Nodes) == 1 {
		res, err := c.LookupIdent(p.Nodes[0].Name, p.Hygiene, ModeType, sp)
		if err != nil {
			return err
		}
		args := p.Nodes[0].Args
		switch {
		case res.isPrim:
			t.Kind = ast.TypePrimitive
			t.Prim = res.prim
			t.Path = nil
			return nil
		case res.selfType != nil:
			*t = *res.selfType
			return nil
		case res.path.Class == ast.PathLocal:
			t.Kind = ast.TypeGeneric
			t.GenericSlot = uint16(res.path.Binding.Type.Slot)
			t.GenericName = res.path.LocalName
			t.Path = nil
			return nil
		default:
			if len(res.path.Nodes) > 0 {
				res.path.Nodes[len(res.path.Nodes)-1].Args = args
			}
			t.Path = res.path
			return c.resolvePathArgs(res.path, sp)
		}
	}

	rp, err := c.ResolvePath(p, ModeType, sp)
	if err != nil {
		return err
	}
	t.Path = rp
	return c.resolvePathArgs(rp, sp)
}

// resolvePathArgs resolves the generic-argument types attached to the
// path's segments and UFCS halves.
func (c *Context) resolvePathArgs(p *ast.Path, sp span.Span) error {
	if p == nil {
		return nil
	}
	for i := range p.Nodes {
		for _, a := range p.Nodes[i].Args {
			if err := c.ResolveType(a, sp); err != nil {
				return err
			}
		}
	}
	if p.UfcsType != nil {
		if err := c.ResolveType(p.UfcsType, sp); err != nil {
			return err
		}
	}
	if p.UfcsTrait != nil {
		return c.resolvePathArgs(p.UfcsTrait, sp)
	}
	return nil
}

// ResolveGenericBounds resolves the bound set of a generic-parameter
// list: trait paths, bounded types, equality right-hand sides, and any
// higher-ranked lifetime binders.
func (c *Context) ResolveGenericBounds(g *ast.GenericParams, sp span.Span) error {
	if g == nil {
		return nil
	}
	for i := range g.Bounds {
		b := &g.Bounds[i]
		hrb := len(b.HRLifetimes) > 0
		if hrb {
			c.PushGeneric(&ast.GenericParams{
				Lifetimes: lifetimeParams(b.HRLifetimes),
			}, ast.GenericItemBase, true)
		}
		if b.Type != nil {
			if err := c.ResolveType(b.Type, sp); err != nil {
				return err
			}
		}
		if b.Trait != nil {
			rp, err := c.ResolvePath(b.Trait, ModeType, sp)
			if err != nil {
				return err
			}
			b.Trait = rp
			if err := c.resolvePathArgs(rp, sp); err != nil {
				return err
			}
		}
		if b.Lifetime != "" {
			if err := c.ResolveLifetime(b.Lifetime, sp); err != nil {
				return err
			}
		}
		if b.Equality != nil {
			if err := c.ResolveType(b.Equality, sp); err != nil {
				return err
			}
		}
		if hrb {
			c.Pop()
		}
	}
	for i := range g.Types {
		if g.Types[i].Default != nil {
			if err := c.ResolveType(g.Types[i].Default, sp); err != nil {
				return err
			}
		}
	}
	return nil
}

func lifetimeParams(names []string) []ast.LifetimeParam {
	out := make([]ast.LifetimeParam, len(names))
	for i, n := range names {
		out[i] = ast.LifetimeParam{Name: n}
	}
	return out
}
