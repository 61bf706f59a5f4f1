package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/span"
)

// maxIterations bounds the inference fixpoint loop
const maxIterations = 1000

// maxAssocDepth bounds associated-type expansion recursion
const maxAssocDepth = 40

// Checker is one function body's inference context. Contexts are
// independent: ivars never cross function boundaries.
type Checker struct {
	Crate *hir.Crate
	Sink  *diag.Sink
	Fn    *hir.Function

	ivars   []ivarEnt
	changed bool

	locals map[int]*ast.TypeRef // local slot → type
	loops  []*loopCtx

	// bounds in scope for this body: the impl's and the fn's own
	bounds []ast.GenericBound

	assocDepth int
}

type loopCtx struct {
	label string
	res   *ast.TypeRef
}

// NewChecker prepares a context for one function
func NewChecker(crate *hir.Crate, sink *diag.Sink, fn *hir.Function) *Checker {
	ck := &Checker{
		Crate:  crate,
		Sink:   sink,
		Fn:     fn,
		locals: map[int]*ast.TypeRef{},
	}
	if fn.Generics != nil {
		ck.bounds = append(ck.bounds, fn.Generics.Bounds...)
	}
	return ck
}

// AddBounds brings an impl's where-clauses into scope
func (ck *Checker) AddBounds(g *ast.GenericParams) {
	if g != nil {
		ck.bounds = append(ck.bounds, g.Bounds...)
	}
}

// subst is a generic-parameter substitution
type subst struct {
	self *ast.TypeRef
	impl []*ast.TypeRef
	item []*ast.TypeRef
}

// monomorphise rewrites Generic slots through a substitution. Slots the
// substitution does not cover are left in place (the caller retries
// after more ivars resolve).
func monomorphise(t *ast.TypeRef, s *subst) *ast.TypeRef {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ast.TypeGeneric:
		switch {
		case t.GenericSlot == ast.GenericSelf:
			if s.self != nil {
				return s.self.Clone()
			}
		case t.GenericSlot < ast.GenericItemBase:
			if idx := int(t.GenericSlot - ast.GenericImplBase); idx < len(s.impl) && s.impl[idx] != nil {
				return s.impl[idx].Clone()
			}
		default:
			if idx := int(t.GenericSlot - ast.GenericItemBase); idx < len(s.item) && s.item[idx] != nil {
				return s.item[idx].Clone()
			}
		}
		return t

	case ast.TypeArray, ast.TypeSlice, ast.TypeBorrow, ast.TypePointer:
		q := *t
		q.Inner = monomorphise(t.Inner, s)
		return &q

	case ast.TypeTuple:
		q := *t
		q.Elems = make([]*ast.TypeRef, len(t.Elems))
		for i, e := range t.Elems {
			q.Elems[i] = monomorphise(e, s)
		}
		return &q

	case ast.TypeFunction, ast.TypeClosure:
		if t.Fn == nil {
			return t
		}
		q := *t
		fn := *t.Fn
		fn.Args = make([]*ast.TypeRef, len(t.Fn.Args))
		for i, a := range t.Fn.Args {
			fn.Args[i] = monomorphise(a, s)
		}
		fn.Ret = monomorphise(t.Fn.Ret, s)
		q.Fn = &fn
		return &q

	case ast.TypePath:
		if t.Path == nil {
			return t
		}
		q := *t
		p := t.Path.Clone()
		for i := range p.Nodes {
			for j, a := range p.Nodes[i].Args {
				p.Nodes[i].Args[j] = monomorphise(a, s)
			}
		}
		if p.UfcsType != nil {
			p.UfcsType = monomorphise(p.UfcsType, s)
		}
		q.Path = p
		return &q

	default:
		return t
	}
}

// localType returns (allocating on first use) the type slot of a local
func (ck *Checker) localType(slot int) *ast.TypeRef {
	if t, ok := ck.locals[slot]; ok {
		return t
	}
	t := ck.newIvar(ast.IvarAny)
	ck.locals[slot] = t
	return t
}

func (ck *Checker) errorAt(code string, sp span.Span, format string, args ...any) error {
	return ck.Sink.Fatal(diag.New(phase, code, sp, format, args...))
}

// sameTypeShape reports whether two resolved types are structurally
// identical (used for exact-vs-fuzzy impl match counting).
func (ck *Checker) sameTypeShape(a, b *ast.TypeRef) bool {
	a, b = ck.resolveShallow(a), ck.resolveShallow(b)
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ast.TypePrimitive:
		return a.Prim == b.Prim
	case ast.TypeGeneric:
		return a.GenericSlot == b.GenericSlot
	case ast.TypeInfer:
		return a.Ivar == b.Ivar
	case ast.TypeDiverge:
		return true
	case ast.TypeBorrow, ast.TypePointer:
		return a.Mut == b.Mut && ck.sameTypeShape(a.Inner, b.Inner)
	case ast.TypeSlice:
		return ck.sameTypeShape(a.Inner, b.Inner)
	case ast.TypeArray:
		return a.ArraySize == b.ArraySize && ck.sameTypeShape(a.Inner, b.Inner)
	case ast.TypeTuple:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !ck.sameTypeShape(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case ast.TypePath:
		if a.Path == nil || b.Path == nil || a.Path.Key() != b.Path.Key() {
			return false
		}
		an, bn := pathArgs(a.Path), pathArgs(b.Path)
		if len(an) != len(bn) {
			return false
		}
		for i := range an {
			if !ck.sameTypeShape(an[i], bn[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func pathArgs(p *ast.Path) []*ast.TypeRef {
	if len(p.Nodes) == 0 {
		return nil
	}
	return p.Nodes[len(p.Nodes)-1].Args
}
