package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/span"
)

// tryCoerce attempts the permitted coercions from `actual` (the type of
// the expression in nodeSlot) to `expected`. On success the expression
// is wrapped: the old node keeps the un-coerced type and the wrapper
// carries the target type.
func (ck *Checker) tryCoerce(expected, actual *ast.TypeRef, nodeSlot *hir.Expr, sp span.Span) (bool, error) {
	l := ck.resolveShallow(expected)
	r := ck.resolveShallow(actual)

	// &T → *const T, &mut T → *mut T / *const T
	if l.Kind == ast.TypePointer && r.Kind == ast.TypeBorrow {
		if l.Mut && !r.Mut {
			return false, nil // *mut from & is not permitted
		}
		if err := ck.applyEquality(l.Inner, r.Inner, nil, sp); err != nil {
			return false, err
		}
		ck.wrapCast(nodeSlot, l, r)
		return true, nil
	}

	if l.Kind == ast.TypeBorrow && r.Kind == ast.TypeBorrow {
		// Reborrow: &mut T → &T
		if !l.Mut && r.Mut {
			if ck.sameTypeShape(l.Inner, r.Inner) {
				if err := ck.applyEquality(l.Inner, r.Inner, nil, sp); err != nil {
					return false, err
				}
				ck.wrapUnsize(nodeSlot, l, r)
				return true, nil
			}
		}
		if l.Mut != r.Mut && !(r.Mut && !l.Mut) {
			return false, nil
		}
		return ck.tryUnsizePointee(l, r, nodeSlot, sp)
	}

	// Box<T> → Box<dyn Trait> through the owned_box lang item
	if l.Kind == ast.TypePath && r.Kind == ast.TypePath {
		boxPath := ck.Crate.Ast.LangItem("owned_box")
		if boxPath != nil &&
			l.Path != nil && r.Path != nil &&
			l.Path.Key() == boxPath.Key() && r.Path.Key() == boxPath.Key() {
			la, ra := pathArgs(l.Path), pathArgs(r.Path)
			if len(la) == 1 && len(ra) == 1 {
				fake := &ast.TypeRef{Kind: ast.TypeBorrow, Inner: la[0]}
				fakeR := &ast.TypeRef{Kind: ast.TypeBorrow, Inner: ra[0]}
				if ok, err := ck.tryUnsizePointee(fake, fakeR, nodeSlot, sp); err != nil || ok {
					if ok {
						ck.wrapUnsize(nodeSlot, l, r)
					}
					return ok, err
				}
			}
		}
	}

	return false, nil
}

// tryUnsizePointee handles the unsizing coercions behind a borrow:
// [T; N] → [T], T → dyn Trait, and nesting through single-field structs.
func (ck *Checker) tryUnsizePointee(l, r *ast.TypeRef, nodeSlot *hir.Expr, sp span.Span) (bool, error) {
	li := ck.resolveShallow(l.Inner)
	ri := ck.resolveShallow(r.Inner)

	// &[T; N] → &[T]
	if li.Kind == ast.TypeSlice && ri.Kind == ast.TypeArray {
		if err := ck.applyEquality(li.Inner, ri.Inner, nil, sp); err != nil {
			return false, err
		}
		ck.wrapUnsize(nodeSlot, l, r)
		return true, nil
	}

	// &T → &dyn Trait where T: Trait
	if li.Kind == ast.TypeTraitObject && len(li.Traits) > 0 {
		if ri.Kind == ast.TypeTraitObject {
			return false, nil // same-kind handled by applyEquality
		}
		if ri.Kind == ast.TypeInfer {
			return false, nil
		}
		if ck.traitImplExists(li.Traits[0], ri) {
			ck.wrapUnsize(nodeSlot, l, r)
			return true, nil
		}
		return false, nil
	}

	// Nested unsize through a single-field struct: &Wrapper<T> → &U when
	// the wrapper's only field unsizes to U.
	if ri.Kind == ast.TypePath && ri.Path != nil {
		if def, ok := ck.Crate.Ast.StructAt(ri.Path); ok && len(def.Fields) == 1 {
			inner := monomorphise(def.Fields[0].Type, ck.substForPathType(ri))
			fakeR := &ast.TypeRef{Kind: ast.TypeBorrow, Mut: r.Mut, Inner: inner}
			return ck.tryUnsizePointee(l, fakeR, nodeSlot, sp)
		}
	}

	return false, nil
}

// substForPathType builds a substitution from a concrete path type's
// generic arguments.
func (ck *Checker) substForPathType(t *ast.TypeRef) *subst {
	return &subst{self: t, impl: pathArgs(t.Path)}
}

// wrapUnsize replaces the coerced expression with an Unsize wrapper
func (ck *Checker) wrapUnsize(nodeSlot *hir.Expr, target, source *ast.TypeRef) {
	old := *nodeSlot
	old.SetResType(source)
	w := &hir.Unsize{Inner: old}
	w.Sp = old.Span()
	w.Res = target
	*nodeSlot = w
	ck.markChange()
}

// wrapCast replaces the coerced expression with an explicit Cast node
// (pointer coercions become real casts for the backends).
func (ck *Checker) wrapCast(nodeSlot *hir.Expr, target, source *ast.TypeRef) {
	old := *nodeSlot
	old.SetResType(source)
	w := &hir.Cast{Inner: old, To: target}
	w.Sp = old.Span()
	w.Res = target
	*nodeSlot = w
	ck.markChange()
}
