package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// typePattern equates a pattern's shape with the scrutinee type and
// types every binding it introduces. Idempotent: re-application during
// iteration only re-asserts established equalities.
func (ck *Checker) typePattern(p *ast.Pattern, ty *ast.TypeRef, sp span.Span) error {
	if p == nil {
		return nil
	}
	for i := range p.Bindings {
		b := &p.Bindings[i]
		if b.Slot < 0 {
			continue
		}
		bty := ty
		if b.ByRef {
			bty = ast.BorrowType(b.Mut, ty)
		}
		if err := ck.applyEquality(ck.localType(b.Slot), bty, nil, p.Span); err != nil {
			return err
		}
	}

	switch p.Kind {
	case ast.PatAny, ast.PatMaybeBind:
		return nil

	case ast.PatValue:
		if p.Path != nil {
			switch p.Path.Binding.Value.Kind {
			case ast.BindEnumVariant:
				return ck.applyEquality(ty, ck.nominalType(p.Path), nil, p.Span)
			case ast.BindConstant, ast.BindStatic:
				if entry, ok := ck.Crate.Ast.ItemAt(p.Path); ok {
					switch d := entry.Data.(type) {
					case *ast.Const:
						return ck.applyEquality(ty, d.Type, nil, p.Span)
					case *ast.Static:
						return ck.applyEquality(ty, d.Type, nil, p.Span)
					}
				}
				return nil
			case ast.BindStruct:
				return ck.applyEquality(ty, ck.nominalType(p.Path), nil, p.Span)
			}
			return nil
		}
		return ck.typeLiteralPattern(p.ValueStart, ty, p.Span)

	case ast.PatRange:
		if err := ck.typeLiteralPattern(p.ValueStart, ty, p.Span); err != nil {
			return err
		}
		return ck.typeLiteralPattern(p.ValueEnd, ty, p.Span)

	case ast.PatTuple:
		t := ck.resolveShallow(ty)
		if t.Kind == ast.TypeInfer {
			elems := make([]*ast.TypeRef, len(p.Subs))
			for i := range elems {
				elems[i] = ck.newIvar(ast.IvarAny)
			}
			if err := ck.applyEquality(ty, ast.TupleType(elems...), nil, p.Span); err != nil {
				return err
			}
			t = ck.resolveShallow(ty)
		}
		if t.Kind != ast.TypeTuple {
			return ck.errorAt(diag.TYP001, p.Span, "tuple pattern against %s", ck.resolveDeep(t))
		}
		if len(t.Elems) != len(p.Subs) {
			return ck.errorAt(diag.TYP001, p.Span,
				"tuple pattern arity %d against %d-tuple", len(p.Subs), len(t.Elems))
		}
		for i, sub := range p.Subs {
			if err := ck.typePattern(sub, t.Elems[i], sp); err != nil {
				return err
			}
		}
		return nil

	case ast.PatStructTuple:
		return ck.typeVariantPattern(p, ty, true)

	case ast.PatStruct:
		return ck.typeVariantPattern(p, ty, false)

	case ast.PatSlice, ast.PatSplitSlice:
		t := ck.resolveShallow(ty)
		for t.Kind == ast.TypeBorrow {
			t = ck.resolveShallow(t.Inner)
		}
		var elem *ast.TypeRef
		switch t.Kind {
		case ast.TypeArray, ast.TypeSlice:
			elem = t.Inner
		case ast.TypeInfer:
			return nil
		default:
			return ck.errorAt(diag.TYP001, p.Span, "slice pattern against %s", ck.resolveDeep(t))
		}
		for _, sub := range p.Subs {
			if err := ck.typePattern(sub, elem, sp); err != nil {
				return err
			}
		}
		for _, sub := range p.Leading {
			if err := ck.typePattern(sub, elem, sp); err != nil {
				return err
			}
		}
		for _, sub := range p.Trailing {
			if err := ck.typePattern(sub, elem, sp); err != nil {
				return err
			}
		}
		if p.MiddleBinding != nil && p.MiddleBinding.Slot >= 0 {
			mid := ast.BorrowType(p.MiddleBinding.Mut, ast.SliceType(elem))
			if err := ck.applyEquality(ck.localType(p.MiddleBinding.Slot), mid, nil, p.Span); err != nil {
				return err
			}
		}
		return nil

	case ast.PatOr:
		for _, sub := range p.Subs {
			if err := ck.typePattern(sub, ty, sp); err != nil {
				return err
			}
		}
		return nil

	case ast.PatRef:
		t := ck.resolveShallow(ty)
		if t.Kind == ast.TypeInfer {
			inner := ck.newIvar(ast.IvarAny)
			if err := ck.applyEquality(ty, ast.BorrowType(p.Mut, inner), nil, p.Span); err != nil {
				return err
			}
			return ck.typePattern(p.Inner, inner, sp)
		}
		if t.Kind != ast.TypeBorrow {
			return ck.errorAt(diag.TYP001, p.Span, "reference pattern against %s", ck.resolveDeep(t))
		}
		return ck.typePattern(p.Inner, t.Inner, sp)

	case ast.PatBox:
		t := ck.resolveShallow(ty)
		if t.Kind == ast.TypePath && ck.isBoxType(t) {
			return ck.typePattern(p.Inner, pathArgs(t.Path)[0], sp)
		}
		return nil
	}
	return nil
}

// typeLiteralPattern equates a literal pattern value with the
// scrutinee's type, respecting literal classes.
func (ck *Checker) typeLiteralPattern(e ast.Expr, ty *ast.TypeRef, sp span.Span) error {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return nil
	}
	switch lit.Kind {
	case ast.LitInt:
		if lit.Suffix != "" {
			if prim, ok := ast.PrimitiveByName(lit.Suffix); ok {
				return ck.applyEquality(ty, ast.PrimType(prim), nil, sp)
			}
		}
		t := ck.resolveShallow(ty)
		if t.Kind == ast.TypePrimitive && !t.Prim.IsInteger() && t.Prim != ast.PrimChar {
			return ck.errorAt(diag.TYP001, sp, "integer pattern against %s", t)
		}
		return nil
	case ast.LitStr:
		return ck.applyEquality(ty, ast.BorrowType(false, ast.PrimType(ast.PrimStr)), nil, sp)
	case ast.LitChar:
		return ck.applyEquality(ty, ast.PrimType(ast.PrimChar), nil, sp)
	case ast.LitBool:
		return ck.applyEquality(ty, ast.PrimType(ast.PrimBool), nil, sp)
	default:
		return nil
	}
}

// typeVariantPattern handles struct-tuple and struct patterns over both
// enum variants and plain structs.
func (ck *Checker) typeVariantPattern(p *ast.Pattern, ty *ast.TypeRef, tuple bool) error {
	nom := ck.nominalType(p.Path)
	if err := ck.applyEquality(ty, nom, nil, p.Span); err != nil {
		return err
	}
	t := ck.resolveShallow(ty)
	if t.Kind != ast.TypePath || t.Path == nil {
		return nil
	}
	s := &subst{self: t, impl: pathArgs(t.Path)}

	var fields []ast.StructField
	if p.Path.Binding.Value.Kind == ast.BindEnumVariant || p.Path.Binding.Type.Kind == ast.BindEnumVariant {
		if _, e, idx, ok := ck.variantEnumInfo(p.Path); ok {
			fields = e.Variants[idx].Fields
		}
	} else if def, ok := ck.Crate.Ast.StructAt(p.Path); ok {
		fields = def.Fields
	}
	if fields == nil {
		return nil
	}

	if tuple {
		live := make([]*ast.TypeRef, 0, len(fields))
		for i := range fields {
			if fields[i].Type != nil {
				live = append(live, fields[i].Type)
			}
		}
		if len(p.Subs) != len(live) {
			return ck.errorAt(diag.TYP001, p.Span,
				"pattern has %d fields, %s has %d", len(p.Subs), p.Path, len(live))
		}
		for i, sub := range p.Subs {
			if err := ck.typePattern(sub, monomorphise(live[i], s), p.Span); err != nil {
				return err
			}
		}
		return nil
	}

	for _, fp := range p.Fields {
		ft := fieldTypeByName(fields, fp.Name)
		if ft == nil {
			return ck.errorAt(diag.TYP001, p.Span, "no field %q on %s", fp.Name, p.Path)
		}
		if err := ck.typePattern(fp.Pat, monomorphise(ft, s), p.Span); err != nil {
			return err
		}
	}
	return nil
}
