package ast

import (
	"fmt"
	"strings"
)

// PathClass discriminates the path variants. Relative, Self and Super
// forms exist only pre-resolution; absolutisation rewrites every path to
// Absolute, UFCS, or Local.
type PathClass int

const (
	PathRelative PathClass = iota
	PathSelf
	PathSuper
	PathAbsolute
	PathUFCS
	PathLocal
)

// PathNode is one named segment, optionally carrying generic arguments
type PathNode struct {
	Name string
	Args []*TypeRef
}

// Path is a reference to an item, variable, or generic slot
type Path struct {
	Class      PathClass
	SuperCount int    // PathSuper: number of stacked `super`s
	CrateName  string // PathAbsolute: "" for the local crate
	Nodes      []PathNode

	// UFCS form: <UfcsType as UfcsTrait>::Nodes...
	// UfcsTrait nil means inherent (<Type>::item); UfcsType nil with a
	// trait present means the impl is still to be selected (<_ as Tr>::x).
	UfcsType  *TypeRef
	UfcsTrait *Path

	// PathLocal
	LocalName string
	LocalSlot int

	Hygiene Hygiene
	Binding BindingPair
}

// RelativePath builds a pre-resolution path from plain segment names
func RelativePath(names ...string) *Path {
	p := &Path{Class: PathRelative}
	for _, n := range names {
		p.Nodes = append(p.Nodes, PathNode{Name: InternIdent(n).Name})
	}
	return p
}

// AbsolutePath builds a crate-rooted path
func AbsolutePath(crate string, names ...string) *Path {
	p := &Path{Class: PathAbsolute, CrateName: crate}
	for _, n := range names {
		p.Nodes = append(p.Nodes, PathNode{Name: n})
	}
	return p
}

// LocalPath builds a path bound to a local variable or generic parameter
func LocalPath(name string, slot int) *Path {
	return &Path{Class: PathLocal, LocalName: name, LocalSlot: slot}
}

// UfcsPath builds a <Type as Trait>::nodes path
func UfcsPath(ty *TypeRef, trait *Path, nodes ...PathNode) *Path {
	return &Path{Class: PathUFCS, UfcsType: ty, UfcsTrait: trait, Nodes: nodes}
}

// Clone deep-copies the path (bindings included)
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	q := *p
	q.Nodes = make([]PathNode, len(p.Nodes))
	copy(q.Nodes, p.Nodes)
	for i := range q.Nodes {
		if len(p.Nodes[i].Args) > 0 {
			q.Nodes[i].Args = make([]*TypeRef, len(p.Nodes[i].Args))
			for j, a := range p.Nodes[i].Args {
				q.Nodes[i].Args[j] = a.Clone()
			}
		}
	}
	q.UfcsTrait = p.UfcsTrait.Clone()
	if p.UfcsType != nil {
		q.UfcsType = p.UfcsType.Clone()
	}
	return &q
}

// IsResolved reports whether the path is in one of the post-resolution classes
func (p *Path) IsResolved() bool {
	return p.Class == PathAbsolute || p.Class == PathUFCS || p.Class == PathLocal
}

// Append returns the path extended with one more named segment
func (p *Path) Append(name string) *Path {
	q := p.Clone()
	q.Nodes = append(q.Nodes, PathNode{Name: name})
	return q
}

// Key renders an absolute path to the canonical string used as an index
// and cache key. Only valid on Absolute paths.
func (p *Path) Key() string {
	parts := make([]string, 0, len(p.Nodes)+1)
	crate := p.CrateName
	if crate == "" {
		crate = "crate"
	}
	parts = append(parts, crate)
	for _, n := range p.Nodes {
		parts = append(parts, n.Name)
	}
	return strings.Join(parts, "::")
}

func (p *Path) String() string {
	switch p.Class {
	case PathRelative:
		parts := make([]string, len(p.Nodes))
		for i, n := range p.Nodes {
			parts[i] = n.Name
		}
		return strings.Join(parts, "::")
	case PathSelf:
		return "self::" + p.tail()
	case PathSuper:
		return strings.Repeat("super::", p.SuperCount) + p.tail()
	case PathAbsolute:
		return p.Key()
	case PathUFCS:
		ty := "_"
		if p.UfcsType != nil {
			ty = p.UfcsType.String()
		}
		if p.UfcsTrait != nil {
			return fmt.Sprintf("<%s as %s>::%s", ty, p.UfcsTrait, p.tail())
		}
		return fmt.Sprintf("<%s>::%s", ty, p.tail())
	case PathLocal:
		return p.LocalName
	}
	return "<bad path>"
}

func (p *Path) tail() string {
	parts := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		parts[i] = n.Name
	}
	return strings.Join(parts, "::")
}

// BindKind classifies what a path segment resolved to
type BindKind int

const (
	BindUnbound BindKind = iota
	BindTypeParameter
	BindModule
	BindTrait
	BindTypeAlias
	BindStruct
	BindUnion
	BindEnum
	BindEnumVariant
	BindFunction
	BindStatic
	BindConstant
	BindVariable
	BindGeneric
)

var bindKindNames = map[BindKind]string{
	BindUnbound:       "unbound",
	BindTypeParameter: "type parameter",
	BindModule:        "module",
	BindTrait:         "trait",
	BindTypeAlias:     "type alias",
	BindStruct:        "struct",
	BindUnion:         "union",
	BindEnum:          "enum",
	BindEnumVariant:   "enum variant",
	BindFunction:      "function",
	BindStatic:        "static",
	BindConstant:      "constant",
	BindVariable:      "variable",
	BindGeneric:       "generic",
}

func (k BindKind) String() string {
	if n, ok := bindKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Binding records what one namespace of a path resolved to. Targets are
// referenced by absolute-path key, never by pointer into the crate graph.
type Binding struct {
	Kind       BindKind
	TargetPath string // absolute-path key of the bound item
	Slot       int    // BindVariable / BindGeneric / BindTypeParameter
	VariantIdx int    // BindEnumVariant: index within the enum
}

// IsBound reports whether the binding has been set
func (b Binding) IsBound() bool { return b.Kind != BindUnbound }

// BindingPair carries the independent type- and value-namespace bindings.
// Both may be set for the same path (e.g. a tuple struct name).
type BindingPair struct {
	Type  Binding
	Value Binding
}

// BindOnce sets a namespace binding, enforcing monotonicity: a bound
// slot is never rewritten to a different kind or target.
func (b *Binding) BindOnce(nb Binding) bool {
	if b.Kind == BindUnbound {
		*b = nb
		return true
	}
	return b.Kind == nb.Kind && b.TargetPath == nb.TargetPath &&
		b.Slot == nb.Slot && b.VariantIdx == nb.VariantIdx
}
