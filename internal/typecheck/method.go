package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// maxAutoDeref bounds the receiver deref chain
const maxAutoDeref = 16

// autoderefFindMethod resolves `recv.name(...)`: starting from the
// receiver type it searches trait bounds, inherent impls, and trait
// impls, dereferencing on each miss. It returns the UFCS path and the
// number of derefs the caller must insert. A nil path with nil error
// means the receiver type is not yet known; the iteration loop retries.
func (ck *Checker) autoderefFindMethod(recvTy *ast.TypeRef, name string, sp span.Span) (*ast.Path, int, error) {
	t := ck.resolveShallow(recvTy)
	for depth := 0; depth <= maxAutoDeref; depth++ {
		if t == nil || t.Kind == ast.TypeInfer {
			return nil, 0, nil // not ready
		}

		// Bounds on generic receivers.
		if t.Kind == ast.TypeGeneric {
			if p := ck.methodFromBounds(t, name); p != nil {
				return p, depth, nil
			}
		}

		// Trait objects carry their trait's methods.
		if t.Kind == ast.TypeTraitObject && len(t.Traits) > 0 {
			if tr := ck.traitWithMethod(t.Traits[0], name, 0); tr != nil {
				return ast.UfcsPath(t.Clone(), tr, ast.PathNode{Name: name}), depth, nil
			}
		}

		// Inherent impls on concrete types.
		if p, err := ck.methodFromInherent(t, name, sp); err != nil {
			return nil, 0, err
		} else if p != nil {
			return p, depth, nil
		}

		// Trait impls for the concrete type.
		if p := ck.methodFromTraitImpls(t, name); p != nil {
			return p, depth, nil
		}

		// Deref and retry: through borrows, raw pointers, and Box.
		switch {
		case t.Kind == ast.TypeBorrow || t.Kind == ast.TypePointer:
			t = ck.resolveShallow(t.Inner)
		case t.Kind == ast.TypePath && ck.isBoxType(t):
			t = ck.resolveShallow(pathArgs(t.Path)[0])
		default:
			return nil, 0, ck.errorAt(diag.TYP003, sp,
				"no method %q found for type %s", name, ck.resolveDeep(recvTy))
		}
	}
	return nil, 0, ck.errorAt(diag.TYP003, sp,
		"no method %q found for type %s (deref limit reached)", name, ck.resolveDeep(recvTy))
}

func (ck *Checker) isBoxType(t *ast.TypeRef) bool {
	boxPath := ck.Crate.Ast.LangItem("owned_box")
	return boxPath != nil && t.Path != nil && t.Path.Key() == boxPath.Key() &&
		len(pathArgs(t.Path)) == 1
}

// methodFromBounds searches `T: Trait` bounds (and super-traits) for a
// method on a generic receiver.
func (ck *Checker) methodFromBounds(t *ast.TypeRef, name string) *ast.Path {
	for i := range ck.bounds {
		b := &ck.bounds[i]
		if b.Trait == nil || b.Type == nil || b.Type.Kind != ast.TypeGeneric {
			continue
		}
		if b.Type.GenericSlot != t.GenericSlot {
			continue
		}
		if tr := ck.traitWithMethod(b.Trait, name, 0); tr != nil {
			return ast.UfcsPath(t.Clone(), tr, ast.PathNode{Name: name})
		}
	}
	return nil
}

// traitWithMethod returns the path of the (super-)trait declaring the
// method, or nil.
func (ck *Checker) traitWithMethod(trait *ast.Path, name string, depth int) *ast.Path {
	if depth > 16 {
		return nil
	}
	def, ok := ck.Crate.Ast.TraitAt(trait)
	if !ok {
		return nil
	}
	if it := def.FindItem(name); it != nil {
		if _, isFn := it.Data.(*ast.Function); isFn {
			return trait
		}
	}
	for _, sup := range def.SuperTraits {
		if tr := ck.traitWithMethod(sup, name, depth+1); tr != nil {
			return tr
		}
	}
	return nil
}

// methodFromInherent searches inherent impls. Two exact candidates at
// the same deref depth are ambiguous.
func (ck *Checker) methodFromInherent(t *ast.TypeRef, name string, sp span.Span) (*ast.Path, error) {
	var found *ast.Path
	exact := 0
	for _, ref := range ck.Crate.Impls {
		if ref.Def.Trait != nil {
			continue
		}
		if ref.Def.FindItem(name) == nil {
			continue
		}
		params := make([]*ast.TypeRef, len(ref.Def.Generics.Types))
		kind := ck.matchTypes(ref.Def.SelfType, t, params)
		if kind == matchNone {
			continue
		}
		if kind == matchExact {
			exact++
			if exact > 1 {
				return nil, ck.errorAt(diag.TYP004, sp,
					"multiple inherent impls define method %q for %s", name, t)
			}
		}
		found = ast.UfcsPath(t.Clone(), nil, ast.PathNode{Name: name})
	}
	return found, nil
}

// methodFromTraitImpls searches trait impls covering the type for one
// whose trait declares the method.
func (ck *Checker) methodFromTraitImpls(t *ast.TypeRef, name string) *ast.Path {
	for _, ref := range ck.Crate.Impls {
		if ref.Def.Trait == nil {
			continue
		}
		if ck.traitWithMethod(ref.Def.Trait, name, 0) == nil {
			continue
		}
		params := make([]*ast.TypeRef, len(ref.Def.Generics.Types))
		if ck.matchTypes(ref.Def.SelfType, t, params) == matchNone {
			continue
		}
		return ast.UfcsPath(t.Clone(), ref.Def.Trait.Clone(), ast.PathNode{Name: name})
	}
	return nil
}
