package typecheck

import (
	"sort"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/span"
)

// matchKind classifies how well an impl pattern matched a type
type matchKind int

const (
	matchNone matchKind = iota
	matchFuzzy           // matched, but unresolved ivars were involved
	matchExact
)

// matchTypes matches an impl's pattern type (containing Generic slots)
// against a concrete type, filling params with the bindings. Unresolved
// ivars on the concrete side degrade the match to fuzzy.
func (ck *Checker) matchTypes(pattern, concrete *ast.TypeRef, params []*ast.TypeRef) matchKind {
	p := pattern
	c := ck.resolveShallow(concrete)

	if p.Kind == ast.TypeGeneric {
		idx := int(p.GenericSlot - ast.GenericImplBase)
		if p.GenericSlot == ast.GenericSelf || idx < 0 || idx >= len(params) {
			return matchFuzzy
		}
		if params[idx] == nil {
			params[idx] = c
			if c.Kind == ast.TypeInfer {
				return matchFuzzy
			}
			return matchExact
		}
		if ck.sameTypeShape(params[idx], c) {
			return matchExact
		}
		return matchNone
	}

	if c.Kind == ast.TypeInfer {
		return matchFuzzy
	}
	if p.Kind != c.Kind {
		return matchNone
	}

	combine := func(ks ...matchKind) matchKind {
		out := matchExact
		for _, k := range ks {
			if k == matchNone {
				return matchNone
			}
			if k == matchFuzzy {
				out = matchFuzzy
			}
		}
		return out
	}

	switch p.Kind {
	case ast.TypePrimitive:
		if p.Prim == c.Prim {
			return matchExact
		}
		return matchNone
	case ast.TypeBorrow, ast.TypePointer:
		if p.Mut != c.Mut {
			return matchNone
		}
		return ck.matchTypes(p.Inner, c.Inner, params)
	case ast.TypeSlice:
		return ck.matchTypes(p.Inner, c.Inner, params)
	case ast.TypeArray:
		if p.ArraySize != c.ArraySize {
			return matchNone
		}
		return ck.matchTypes(p.Inner, c.Inner, params)
	case ast.TypeTuple:
		if len(p.Elems) != len(c.Elems) {
			return matchNone
		}
		ks := make([]matchKind, len(p.Elems))
		for i := range p.Elems {
			ks[i] = ck.matchTypes(p.Elems[i], c.Elems[i], params)
		}
		return combine(ks...)
	case ast.TypePath:
		if p.Path == nil || c.Path == nil || p.Path.Key() != c.Path.Key() {
			return matchNone
		}
		pa, ca := pathArgs(p.Path), pathArgs(c.Path)
		if len(pa) != len(ca) {
			return matchNone
		}
		ks := make([]matchKind, len(pa))
		for i := range pa {
			ks[i] = ck.matchTypes(pa[i], ca[i], params)
		}
		return combine(ks...)
	case ast.TypeTraitObject:
		if len(p.Traits) == 0 || len(c.Traits) == 0 || p.Traits[0].Key() != c.Traits[0].Key() {
			return matchNone
		}
		return matchExact
	case ast.TypeDiverge:
		return matchExact
	default:
		return matchNone
	}
}

// implMatch is one candidate impl with its parameter bindings
type implMatch struct {
	impl   *hir.ImplRef
	params []*ast.TypeRef
	kind   matchKind
}

// findTraitImpls collects the impls of a trait matching a self type.
// Candidates whose where-bounds fail are discarded. The result order is
// deterministic: exact matches first, then by rendered self type.
func (ck *Checker) findTraitImpls(traitKey string, selfTy *ast.TypeRef, sp span.Span) []implMatch {
	var out []implMatch
	for _, ref := range ck.Crate.Impls {
		if ref.Def.Trait == nil || ref.Def.Trait.Key() != traitKey {
			continue
		}
		params := make([]*ast.TypeRef, len(ref.Def.Generics.Types))
		kind := ck.matchTypes(ref.Def.SelfType, selfTy, params)
		if kind == matchNone {
			continue
		}
		if !ck.implBoundsHold(ref, params, sp) {
			continue
		}
		out = append(out, implMatch{impl: ref, params: params, kind: kind})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].kind != out[j].kind {
			return out[i].kind > out[j].kind
		}
		return out[i].impl.Def.SelfType.String() < out[j].impl.Def.SelfType.String()
	})
	return out
}

// implBoundsHold checks an impl's where-clauses under a binding set.
// Unresolved parameters are treated as holding (retried next iteration).
func (ck *Checker) implBoundsHold(ref *hir.ImplRef, params []*ast.TypeRef, sp span.Span) bool {
	s := &subst{impl: params}
	for _, b := range ref.Def.Generics.Bounds {
		if b.Trait == nil || b.Type == nil {
			continue
		}
		ty := monomorphise(b.Type, s)
		if ty.ContainsGeneric() || ck.resolveShallow(ty).Kind == ast.TypeInfer {
			continue
		}
		if !ck.traitImplExists(b.Trait, ty) {
			return false
		}
	}
	return true
}

// traitImplExists reports whether a trait holds for a type, through
// either an in-scope generic bound or a crate impl.
func (ck *Checker) traitImplExists(trait *ast.Path, ty *ast.TypeRef) bool {
	ty = ck.resolveShallow(ty)
	traitKey := trait.Key()

	// Generic types are answered from the in-scope bound set.
	if ty.Kind == ast.TypeGeneric {
		return ck.boundGrantsTrait(ty, traitKey)
	}

	for _, ref := range ck.Crate.Impls {
		if ref.Def.Trait == nil || ref.Def.Trait.Key() != traitKey {
			continue
		}
		params := make([]*ast.TypeRef, len(ref.Def.Generics.Types))
		if ck.matchTypes(ref.Def.SelfType, ty, params) != matchNone {
			return true
		}
	}
	return false
}

// boundGrantsTrait checks the in-scope bounds (and super-traits of the
// bounded traits) for a generic slot.
func (ck *Checker) boundGrantsTrait(ty *ast.TypeRef, traitKey string) bool {
	for _, b := range ck.bounds {
		if b.Trait == nil || b.Type == nil {
			continue
		}
		if b.Type.Kind != ast.TypeGeneric || b.Type.GenericSlot != ty.GenericSlot {
			continue
		}
		if b.Trait.Key() == traitKey {
			return true
		}
		if ck.traitHasSuper(b.Trait, traitKey, 0) {
			return true
		}
	}
	return false
}

// traitHasSuper walks super-trait chains, depth capped
func (ck *Checker) traitHasSuper(trait *ast.Path, wantKey string, depth int) bool {
	if depth > 16 {
		return false
	}
	def, ok := ck.Crate.Ast.TraitAt(trait)
	if !ok {
		return false
	}
	for _, sup := range def.SuperTraits {
		if sup.Key() == wantKey {
			return true
		}
		if ck.traitHasSuper(sup, wantKey, depth+1) {
			return true
		}
	}
	return false
}
