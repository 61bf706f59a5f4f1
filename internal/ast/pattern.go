package ast

import (
	"github.com/sunholo/ferrous/internal/span"
)

// PatternKind discriminates the pattern variants
type PatternKind int

const (
	PatAny PatternKind = iota
	PatMaybeBind
	PatValue
	PatRange
	PatTuple
	PatStructTuple
	PatStruct
	PatSlice
	PatSplitSlice
	PatOr
	PatRef
	PatBox
)

// PatBinding is one name introduced by a pattern, with its allocated
// local-variable slot (set during resolution, -1 before).
type PatBinding struct {
	Name    string
	Hygiene Hygiene
	ByRef   bool
	Mut     bool
	Slot    int
}

// PatField is a named field sub-pattern inside a struct pattern
type PatField struct {
	Name string
	Pat  *Pattern
}

// Pattern is a match pattern. MaybeBind is the pre-resolution state of a
// bare identifier: resolution decides whether it names a unit variant or
// constant (becoming Value) or introduces a binding.
type Pattern struct {
	Kind PatternKind
	Span span.Span

	Bindings []PatBinding // names introduced at this node

	Path *Path // PatValue (variant/const path), PatStructTuple, PatStruct

	ValueStart Expr // PatValue literal, PatRange start
	ValueEnd   Expr // PatRange end

	Subs []*Pattern // PatTuple / PatStructTuple / PatSlice elements, PatOr alternatives

	Fields     []PatField // PatStruct
	Exhaustive bool       // PatStruct: no `..` rest marker

	// PatSplitSlice
	Leading       []*Pattern
	Trailing      []*Pattern
	MiddleBinding *PatBinding // binding for the middle slice, or nil

	Inner *Pattern // PatRef / PatBox
	Mut   bool     // PatRef
}

// AnyPattern builds the `_` pattern
func AnyPattern(sp span.Span) *Pattern { return &Pattern{Kind: PatAny, Span: sp} }

// BindPattern builds a bare-identifier pattern
func BindPattern(name string, sp span.Span) *Pattern {
	return &Pattern{
		Kind: PatMaybeBind,
		Span: sp,
		Bindings: []PatBinding{
			{Name: InternIdent(name).Name, Slot: -1},
		},
	}
}

// EachBinding calls fn for every binding the pattern introduces,
// depth-first in source order.
func (p *Pattern) EachBinding(fn func(*PatBinding)) {
	if p == nil {
		return
	}
	for i := range p.Bindings {
		fn(&p.Bindings[i])
	}
	if p.MiddleBinding != nil {
		fn(p.MiddleBinding)
	}
	for _, s := range p.Subs {
		s.EachBinding(fn)
	}
	for _, f := range p.Fields {
		f.Pat.EachBinding(fn)
	}
	for _, s := range p.Leading {
		s.EachBinding(fn)
	}
	for _, s := range p.Trailing {
		s.EachBinding(fn)
	}
	p.Inner.EachBinding(fn)
}
