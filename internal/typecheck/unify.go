package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/span"
)

// applyEquality equates two types, unioning or binding ivars as needed.
// nodeSlot, when non-nil, is the HIR slot holding the expression whose
// type is `actual`; supplying it permits coercion insertion.
func (ck *Checker) applyEquality(expected, actual *ast.TypeRef, nodeSlot *hir.Expr, sp span.Span) error {
	l := ck.resolveShallow(expected)
	r := ck.resolveShallow(actual)
	if l == nil || r == nil {
		return nil
	}

	// Reduce associated-type projections before comparing.
	if isProjection(l) {
		l = ck.expandAssoc(l, sp)
	}
	if isProjection(r) {
		r = ck.expandAssoc(r, sp)
	}

	lIvar := l.Kind == ast.TypeInfer
	rIvar := r.Kind == ast.TypeInfer
	switch {
	case lIvar && rIvar:
		return ck.unifyIvars(l.Ivar, r.Ivar, sp)
	case lIvar:
		return ck.bindIvar(l.Ivar, r, sp)
	case rIvar:
		return ck.bindIvar(r.Ivar, l, sp)
	}

	// Diverging expressions satisfy any expectation.
	if l.Kind == ast.TypeDiverge || r.Kind == ast.TypeDiverge {
		return nil
	}

	// Unreduced projections cannot be compared yet; the iteration loop
	// retries once more ivars are known.
	if isProjection(l) || isProjection(r) {
		return nil
	}

	if l.Kind != r.Kind {
		if nodeSlot != nil {
			if ok, err := ck.tryCoerce(l, r, nodeSlot, sp); err != nil || ok {
				return err
			}
		}
		return ck.errorAt(diag.TYP001, sp, "type mismatch: expected %s, found %s",
			ck.resolveDeep(l), ck.resolveDeep(r))
	}

	switch l.Kind {
	case ast.TypePrimitive:
		if l.Prim != r.Prim {
			return ck.errorAt(diag.TYP001, sp, "type mismatch: expected %s, found %s", l, r)
		}
		return nil

	case ast.TypeGeneric:
		if l.GenericSlot != r.GenericSlot {
			return ck.errorAt(diag.TYP001, sp, "type mismatch: expected %s, found %s",
				l.GenericName, r.GenericName)
		}
		return nil

	case ast.TypeBorrow, ast.TypePointer:
		if l.Mut != r.Mut {
			if nodeSlot != nil {
				if ok, err := ck.tryCoerce(l, r, nodeSlot, sp); err != nil || ok {
					return err
				}
			}
			return ck.errorAt(diag.TYP001, sp, "mutability mismatch: expected %s, found %s",
				ck.resolveDeep(l), ck.resolveDeep(r))
		}
		// A nested coercion may still apply through the pointee
		// (&MyStruct vs &dyn Trait).
		li, ri := ck.resolveShallow(l.Inner), ck.resolveShallow(r.Inner)
		if nodeSlot != nil && li != nil && ri != nil &&
			li.Kind != ri.Kind && li.Kind != ast.TypeInfer && ri.Kind != ast.TypeInfer {
			if ok, err := ck.tryCoerce(l, r, nodeSlot, sp); err != nil || ok {
				return err
			}
		}
		return ck.applyEquality(l.Inner, r.Inner, nil, sp)

	case ast.TypeSlice:
		return ck.applyEquality(l.Inner, r.Inner, nil, sp)

	case ast.TypeArray:
		if l.ArraySize != r.ArraySize {
			return ck.errorAt(diag.TYP001, sp, "array length mismatch: %d vs %d",
				l.ArraySize, r.ArraySize)
		}
		return ck.applyEquality(l.Inner, r.Inner, nil, sp)

	case ast.TypeTuple:
		if len(l.Elems) != len(r.Elems) {
			return ck.errorAt(diag.TYP001, sp, "tuple arity mismatch: %d vs %d",
				len(l.Elems), len(r.Elems))
		}
		for i := range l.Elems {
			if err := ck.applyEquality(l.Elems[i], r.Elems[i], nil, sp); err != nil {
				return err
			}
		}
		return nil

	case ast.TypeFunction:
		if l.Fn == nil || r.Fn == nil {
			return nil
		}
		if len(l.Fn.Args) != len(r.Fn.Args) {
			return ck.errorAt(diag.TYP001, sp, "function arity mismatch: %d vs %d",
				len(l.Fn.Args), len(r.Fn.Args))
		}
		for i := range l.Fn.Args {
			if err := ck.applyEquality(l.Fn.Args[i], r.Fn.Args[i], nil, sp); err != nil {
				return err
			}
		}
		return ck.applyEquality(l.Fn.Ret, r.Fn.Ret, nil, sp)

	case ast.TypePath:
		if l.Path == nil || r.Path == nil {
			return nil
		}
		if l.Path.Key() != r.Path.Key() {
			if nodeSlot != nil {
				if ok, err := ck.tryCoerce(l, r, nodeSlot, sp); err != nil || ok {
					return err
				}
			}
			return ck.errorAt(diag.TYP001, sp, "type mismatch: expected %s, found %s",
				l.Path, r.Path)
		}
		la, ra := pathArgs(l.Path), pathArgs(r.Path)
		if len(la) != len(ra) {
			return ck.errorAt(diag.TYP001, sp,
				"generic argument count mismatch on %s: %d vs %d", l.Path, len(la), len(ra))
		}
		for i := range la {
			if err := ck.applyEquality(la[i], ra[i], nil, sp); err != nil {
				return err
			}
		}
		return nil

	case ast.TypeTraitObject:
		if len(l.Traits) == 0 || len(r.Traits) == 0 ||
			l.Traits[0].Key() != r.Traits[0].Key() {
			return ck.errorAt(diag.TYP001, sp, "trait object mismatch")
		}
		return nil

	default:
		return nil
	}
}

// isProjection reports whether a type is an associated-type projection
// (<T as Trait>::Assoc).
func isProjection(t *ast.TypeRef) bool {
	return t.Kind == ast.TypePath && t.Path != nil &&
		t.Path.Class == ast.PathUFCS && t.Path.UfcsTrait != nil
}
