package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// Absolutise rewrites every path in the crate into Absolute, UFCS, or
// Local form and binds pattern variables to local slots. Runs after use
// resolution and index construction. Re-running on an already
// absolutised crate is a no-op: resolved paths short-circuit.
func Absolutise(crate *ast.Crate, sink *diag.Sink) error {
	c := NewContext(crate, sink)
	if err := c.absModuleItems(crate.Root); err != nil {
		return err
	}
	return nil
}

// absModuleItems resolves one module's items, impls, and sub-modules.
// Module recursion uses the scope stack but walks iteratively enough in
// depth that pathological nesting is covered by the explicit stack in
// EachModule-based passes; here nesting mirrors the context stack.
func (c *Context) absModuleItems(m *ast.Module) error {
	for _, entry := range m.Items {
		if entry.IsTombstone() {
			continue
		}
		if err := c.absItem(m, entry); err != nil {
			return err
		}
	}
	for _, impl := range m.Impls {
		if err := c.absImpl(m, impl); err != nil {
			return err
		}
	}
	for _, neg := range m.NegImpls {
		if err := c.absNegImpl(neg); err != nil {
			return err
		}
	}
	for _, anon := range m.AnonMods {
		c.PushModule(anon)
		err := c.absModuleItems(anon)
		c.Pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) absItem(m *ast.Module, entry *ast.ItemEntry) error {
	sp := entry.Span
	switch d := entry.Data.(type) {
	case *ast.Module:
		c.PushModule(d)
		err := c.absModuleItems(d)
		c.Pop()
		return err

	case *ast.Function:
		return c.absFunction(d, sp)

	case *ast.Static:
		if err := c.ResolveType(d.Type, sp); err != nil {
			return err
		}
		return c.absConstBody(d.Value, sp)

	case *ast.Const:
		if err := c.ResolveType(d.Type, sp); err != nil {
			return err
		}
		return c.absConstBody(d.Value, sp)

	case *ast.Struct:
		c.PushGeneric(&d.Generics, ast.GenericImplBase, false)
		defer c.Pop()
		if err := c.ResolveGenericBounds(&d.Generics, sp); err != nil {
			return err
		}
		return c.absFields(d.Fields, sp)

	case *ast.Union:
		c.PushGeneric(&d.Generics, ast.GenericImplBase, false)
		defer c.Pop()
		if err := c.ResolveGenericBounds(&d.Generics, sp); err != nil {
			return err
		}
		return c.absFields(d.Fields, sp)

	case *ast.Enum:
		c.PushGeneric(&d.Generics, ast.GenericImplBase, false)
		defer c.Pop()
		if err := c.ResolveGenericBounds(&d.Generics, sp); err != nil {
			return err
		}
		for i := range d.Variants {
			v := &d.Variants[i]
			if v.Name == "" {
				continue
			}
			if err := c.absFields(v.Fields, sp); err != nil {
				return err
			}
			if v.Disc != nil {
				if err := c.absConstBody(v.Disc, sp); err != nil {
					return err
				}
			}
		}
		return nil

	case *ast.Trait:
		c.PushGeneric(&d.Generics, ast.GenericImplBase, false)
		c.PushSelf(ast.SelfType())
		defer func() { c.Pop(); c.Pop() }()
		if err := c.ResolveGenericBounds(&d.Generics, sp); err != nil {
			return err
		}
		for i, sup := range d.SuperTraits {
			rp, err := c.ResolvePath(sup, ModeType, sp)
			if err != nil {
				return err
			}
			d.SuperTraits[i] = rp
		}
		for i := range d.Types {
			at := &d.Types[i]
			if at.Default != nil {
				if err := c.ResolveType(at.Default, sp); err != nil {
					return err
				}
			}
		}
		for _, it := range d.Items {
			if it.IsTombstone() {
				continue
			}
			if fn, ok := it.Data.(*ast.Function); ok {
				if err := c.absFunction(fn, it.Span); err != nil {
					return err
				}
			}
			if cn, ok := it.Data.(*ast.Const); ok {
				if err := c.ResolveType(cn.Type, it.Span); err != nil {
					return err
				}
				if err := c.absConstBody(cn.Value, it.Span); err != nil {
					return err
				}
			}
		}
		return nil

	case *ast.TraitAlias:
		c.PushGeneric(&d.Generics, ast.GenericImplBase, false)
		defer c.Pop()
		for i, tr := range d.Traits {
			rp, err := c.ResolvePath(tr, ModeType, sp)
			if err != nil {
				return err
			}
			d.Traits[i] = rp
		}
		return nil

	case *ast.TypeAlias:
		c.PushGeneric(&d.Generics, ast.GenericImplBase, false)
		defer c.Pop()
		return c.ResolveType(d.Type, sp)

	case *ast.ExternBlock:
		for _, it := range d.Items {
			if fn, ok := it.Data.(*ast.Function); ok {
				if err := c.absFunction(fn, it.Span); err != nil {
					return err
				}
			}
			if st, ok := it.Data.(*ast.Static); ok {
				if err := c.ResolveType(st.Type, it.Span); err != nil {
					return err
				}
			}
		}
		return nil

	default:
		// Use statements are resolved in their own pass; extern crates
		// carry no paths.
		return nil
	}
}

func (c *Context) absImpl(m *ast.Module, impl *ast.Impl) error {
	sp := span.Span{}
	if impl.SelfType == nil {
		return nil
	}
	c.PushGeneric(&impl.Generics, ast.GenericImplBase, false)
	defer c.Pop()
	if err := c.ResolveGenericBounds(&impl.Generics, sp); err != nil {
		return err
	}
	if err := c.ResolveType(impl.SelfType, sp); err != nil {
		return err
	}
	if impl.Trait != nil {
		rp, err := c.ResolvePath(impl.Trait, ModeType, sp)
		if err != nil {
			return err
		}
		impl.Trait = rp
		if err := c.resolvePathArgs(rp, sp); err != nil {
			return err
		}
	}
	c.PushSelf(impl.SelfType)
	defer c.Pop()
	for i := range impl.Types {
		if err := c.ResolveType(impl.Types[i].Type, sp); err != nil {
			return err
		}
	}
	for _, it := range impl.Items {
		if it.IsTombstone() {
			continue
		}
		switch d := it.Data.(type) {
		case *ast.Function:
			if err := c.absFunction(d, it.Span); err != nil {
				return err
			}
		case *ast.Const:
			if err := c.ResolveType(d.Type, it.Span); err != nil {
				return err
			}
			if err := c.absConstBody(d.Value, it.Span); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) absNegImpl(neg *ast.NegImpl) error {
	sp := span.Span{}
	c.PushGeneric(&neg.Generics, ast.GenericImplBase, false)
	defer c.Pop()
	if err := c.ResolveType(neg.SelfType, sp); err != nil {
		return err
	}
	rp, err := c.ResolvePath(neg.Trait, ModeType, sp)
	if err != nil {
		return err
	}
	neg.Trait = rp
	return nil
}

func (c *Context) absFunction(fn *ast.Function, sp span.Span) error {
	c.PushGeneric(&fn.Generics, ast.GenericItemBase, false)
	defer c.Pop()
	if err := c.ResolveGenericBounds(&fn.Generics, sp); err != nil {
		return err
	}
	for i := range fn.Params {
		if err := c.ResolveType(fn.Params[i].Type, sp); err != nil {
			return err
		}
	}
	if err := c.ResolveType(fn.Ret, sp); err != nil {
		return err
	}
	if fn.Body == nil {
		return nil
	}

	c.ResetVarSlots()
	c.PushVarBlock()
	defer c.Pop()
	if fn.SelfKind != ast.SelfNone {
		c.allocVar("self", ast.Hygiene{})
	}
	for i := range fn.Params {
		if err := c.absPattern(fn.Params[i].Pat, sp); err != nil {
			return err
		}
	}
	return c.absBlock(fn.Body, sp)
}

// absConstBody resolves a constant initializer, which gets its own
// variable scope (block expressions may bind locals).
func (c *Context) absConstBody(e ast.Expr, sp span.Span) error {
	if e == nil {
		return nil
	}
	c.ResetVarSlots()
	c.PushVarBlock()
	defer c.Pop()
	return c.absExpr(e, sp)
}

func (c *Context) absFields(fields []ast.StructField, sp span.Span) error {
	for i := range fields {
		f := &fields[i]
		if f.Type == nil {
			continue // cfg-cleared tuple field
		}
		if f.Name == "" && len(fields) > 0 && fieldWasNamed(fields) {
			continue // cfg-cleared named field
		}
		if err := c.ResolveType(f.Type, sp); err != nil {
			return err
		}
	}
	return nil
}

// fieldWasNamed reports whether the field list is a named-field body
func fieldWasNamed(fields []ast.StructField) bool {
	for i := range fields {
		if fields[i].Name != "" {
			return true
		}
	}
	return false
}
