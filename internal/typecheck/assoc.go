package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/span"
)

// expandAssoc reduces an associated-type projection <T as Trait>::Assoc
// as far as current knowledge allows. An unreducible projection is
// returned unchanged and retried after more ivars resolve; the depth
// cap stops pathological recursion (validation reports what remains).
func (ck *Checker) expandAssoc(t *ast.TypeRef, sp span.Span) *ast.TypeRef {
	if !isProjection(t) || len(t.Path.Nodes) == 0 {
		return t
	}
	if ck.assocDepth >= maxAssocDepth {
		return t
	}
	ck.assocDepth++
	defer func() { ck.assocDepth-- }()

	assocName := t.Path.Nodes[0].Name
	traitKey := t.Path.UfcsTrait.Key()

	inner := ck.resolveShallow(t.Path.UfcsType)
	if inner == nil {
		return t
	}
	if isProjection(inner) {
		inner = ck.expandAssoc(inner, sp)
	}

	// A direct equality bound on this projection wins.
	for i := range ck.bounds {
		b := &ck.bounds[i]
		if b.Equality == nil || b.Type == nil || !isProjection(b.Type) {
			continue
		}
		bp := b.Type.Path
		if bp.UfcsTrait.Key() != traitKey || len(bp.Nodes) == 0 || bp.Nodes[0].Name != assocName {
			continue
		}
		if ck.sameTypeShape(bp.UfcsType, inner) {
			return b.Equality
		}
	}

	// With the self type still open, the impl search cannot decide.
	if inner.Kind == ast.TypeInfer || inner.ContainsGeneric() || inner.ContainsInfer() {
		return t
	}

	cands := ck.findTraitImpls(traitKey, inner, sp)
	for _, cand := range cands {
		if cand.kind != matchExact {
			continue
		}
		for _, def := range cand.impl.Def.Types {
			if def.Name != assocName {
				continue
			}
			s := &subst{self: inner, impl: cand.params}
			reduced := monomorphise(def.Type, s)
			if isProjection(reduced) {
				reduced = ck.expandAssoc(reduced, sp)
			}
			ck.markChange()
			return reduced
		}
	}

	// Trait-declared default, if any impl matched without a definition.
	if len(cands) > 0 {
		if def, ok := ck.Crate.Ast.TraitAt(t.Path.UfcsTrait); ok {
			for _, at := range def.Types {
				if at.Name == assocName && at.Default != nil {
					s := &subst{self: inner}
					ck.markChange()
					return monomorphise(at.Default, s)
				}
			}
		}
	}

	return t
}
