// Package typecheck implements type inference over the HIR: inference
// variables with union-find aliasing, unification with coercion
// insertion, associated-type expansion, auto-deref method lookup, and
// operator dispatch through lang items.
package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

const phase = "typecheck"

// ivarEnt is one slot of the inference-variable vector: either an alias
// to another slot or a (possibly nil) bound type plus a literal class.
type ivarEnt struct {
	alias int // -1 when this entry is a root
	ty    *ast.TypeRef
	class ast.IvarClass
}

// newIvar appends a fresh unbound variable and returns its Infer type
func (ck *Checker) newIvar(class ast.IvarClass) *ast.TypeRef {
	idx := len(ck.ivars)
	ck.ivars = append(ck.ivars, ivarEnt{alias: -1, class: class})
	return &ast.TypeRef{Kind: ast.TypeInfer, Ivar: idx, Class: class}
}

// root follows alias links to the representative slot
func (ck *Checker) root(idx int) int {
	for ck.ivars[idx].alias >= 0 {
		idx = ck.ivars[idx].alias
	}
	return idx
}

// resolveShallow returns the current representative of a type: ivars
// bound to types are replaced, repeatedly, until a non-ivar or an
// unbound ivar is reached.
func (ck *Checker) resolveShallow(t *ast.TypeRef) *ast.TypeRef {
	for t != nil && t.Kind == ast.TypeInfer && t.Ivar >= 0 {
		r := ck.root(t.Ivar)
		if ck.ivars[r].ty == nil {
			// Report the root's identity so callers compare ivars.
			return &ast.TypeRef{Kind: ast.TypeInfer, Ivar: r, Class: ck.ivars[r].class}
		}
		t = ck.ivars[r].ty
	}
	return t
}

// resolveDeep rewrites a type with every bound ivar substituted
func (ck *Checker) resolveDeep(t *ast.TypeRef) *ast.TypeRef {
	t = ck.resolveShallow(t)
	if t == nil {
		return nil
	}
	q := *t
	switch t.Kind {
	case ast.TypeArray, ast.TypeSlice, ast.TypeBorrow, ast.TypePointer:
		q.Inner = ck.resolveDeep(t.Inner)
	case ast.TypeTuple:
		q.Elems = make([]*ast.TypeRef, len(t.Elems))
		for i, e := range t.Elems {
			q.Elems[i] = ck.resolveDeep(e)
		}
	case ast.TypeFunction, ast.TypeClosure:
		if t.Fn != nil {
			fn := *t.Fn
			fn.Args = make([]*ast.TypeRef, len(t.Fn.Args))
			for i, a := range t.Fn.Args {
				fn.Args[i] = ck.resolveDeep(a)
			}
			fn.Ret = ck.resolveDeep(t.Fn.Ret)
			q.Fn = &fn
		}
	case ast.TypePath:
		if t.Path != nil {
			p := t.Path.Clone()
			for i := range p.Nodes {
				for j, a := range p.Nodes[i].Args {
					p.Nodes[i].Args[j] = ck.resolveDeep(a)
				}
			}
			if p.UfcsType != nil {
				p.UfcsType = ck.resolveDeep(p.UfcsType)
			}
			q.Path = p
		}
	}
	return &q
}

// instantiateInfer allocates ivar slots for the Infer holes a type
// written in source carries (`_` annotations, `as *const _` casts).
func (ck *Checker) instantiateInfer(t *ast.TypeRef) {
	if t == nil {
		return
	}
	switch t.Kind {
	case ast.TypeInfer:
		if t.Ivar < 0 {
			fresh := ck.newIvar(t.Class)
			t.Ivar = fresh.Ivar
		}
	case ast.TypeArray, ast.TypeSlice, ast.TypeBorrow, ast.TypePointer:
		ck.instantiateInfer(t.Inner)
	case ast.TypeTuple:
		for _, el := range t.Elems {
			ck.instantiateInfer(el)
		}
	case ast.TypeFunction, ast.TypeClosure:
		if t.Fn != nil {
			for _, a := range t.Fn.Args {
				ck.instantiateInfer(a)
			}
			ck.instantiateInfer(t.Fn.Ret)
		}
	case ast.TypePath:
		if t.Path != nil {
			for i := range t.Path.Nodes {
				for _, a := range t.Path.Nodes[i].Args {
					ck.instantiateInfer(a)
				}
			}
			if t.Path.UfcsType != nil {
				ck.instantiateInfer(t.Path.UfcsType)
			}
		}
	}
}

// markChange flags that this iteration made progress
func (ck *Checker) markChange() { ck.changed = true }

// takeChanged consumes the change flag
func (ck *Checker) takeChanged() bool {
	c := ck.changed
	ck.changed = false
	return c
}

// classesCompatible merges two literal classes, failing on conflict
func classesCompatible(a, b ast.IvarClass) (ast.IvarClass, bool) {
	if a == ast.IvarAny {
		return b, true
	}
	if b == ast.IvarAny || a == b {
		return a, true
	}
	return ast.IvarAny, false
}

// classAccepts reports whether a concrete type satisfies a literal class
func classAccepts(class ast.IvarClass, t *ast.TypeRef) bool {
	switch class {
	case ast.IvarInteger:
		return t.Kind == ast.TypeDiverge ||
			(t.Kind == ast.TypePrimitive && t.Prim.IsInteger()) ||
			t.Kind == ast.TypeInfer
	case ast.IvarFloat:
		return t.Kind == ast.TypeDiverge ||
			(t.Kind == ast.TypePrimitive && t.Prim.IsFloat()) ||
			t.Kind == ast.TypeInfer
	}
	return true
}

// unifyIvars unions two inference variables
func (ck *Checker) unifyIvars(a, b int, sp span.Span) error {
	ra, rb := ck.root(a), ck.root(b)
	if ra == rb {
		return nil
	}
	merged, ok := classesCompatible(ck.ivars[ra].class, ck.ivars[rb].class)
	if !ok {
		return ck.Sink.Fatal(diag.New(phase, diag.TYP005, sp,
			"cannot unify %s with %s literals", ck.ivars[ra].class, ck.ivars[rb].class))
	}
	ck.ivars[ra].alias = rb
	ck.ivars[rb].class = merged
	ck.markChange()
	return nil
}

// bindIvar fills an unbound variable's root with a concrete type. The
// occurs check rejects cyclic bindings, which would otherwise make the
// substitution infinite.
func (ck *Checker) bindIvar(idx int, t *ast.TypeRef, sp span.Span) error {
	r := ck.root(idx)
	if !classAccepts(ck.ivars[r].class, t) {
		return ck.Sink.Fatal(diag.New(phase, diag.TYP005, sp,
			"%s literal cannot have type %s", ck.ivars[r].class, t))
	}
	if ck.occurs(r, t) {
		return ck.Sink.Fatal(diag.New(phase, diag.TYP001, sp,
			"cannot construct the infinite type _#%d = %s", r, t))
	}
	ck.ivars[r].ty = t
	ck.markChange()
	return nil
}

// occurs reports whether the ivar root appears inside a type
func (ck *Checker) occurs(root int, t *ast.TypeRef) bool {
	t = ck.resolveShallow(t)
	if t == nil {
		return false
	}
	switch t.Kind {
	case ast.TypeInfer:
		return t.Ivar >= 0 && ck.root(t.Ivar) == root
	case ast.TypeArray, ast.TypeSlice, ast.TypeBorrow, ast.TypePointer:
		return ck.occurs(root, t.Inner)
	case ast.TypeTuple:
		for _, el := range t.Elems {
			if ck.occurs(root, el) {
				return true
			}
		}
	case ast.TypeFunction, ast.TypeClosure:
		if t.Fn != nil {
			for _, a := range t.Fn.Args {
				if ck.occurs(root, a) {
					return true
				}
			}
			return ck.occurs(root, t.Fn.Ret)
		}
	case ast.TypePath:
		if t.Path != nil {
			for i := range t.Path.Nodes {
				for _, a := range t.Path.Nodes[i].Args {
					if ck.occurs(root, a) {
						return true
					}
				}
			}
			if t.Path.UfcsType != nil {
				return ck.occurs(root, t.Path.UfcsType)
			}
		}
	}
	return false
}
