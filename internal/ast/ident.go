// Package ast defines the crate data model the middle-end operates on:
// modules, items, paths, patterns, type references, and expressions. The
// parser produces this tree; expansion and resolution rewrite it in place.
package ast

import (
	"golang.org/x/text/unicode/norm"
)

// Hygiene is the provenance marker on an identifier. Names introduced by
// different macro invocations carry different marks and do not shadow one
// another. A non-nil CrateAnchor pins lookup of the identifier to a
// specific module (the `$crate` mechanism).
type Hygiene struct {
	Mark        int     // 0 = written by the user
	CrateAnchor *Module // module to resolve from first, or nil
}

// VisibleFrom reports whether a binding introduced under h is visible to
// a use site with hygiene u. A plain name sees only plain bindings; a
// marked name sees bindings with its own mark and plain ones.
func (u Hygiene) VisibleFrom(h Hygiene) bool {
	return h.Mark == 0 || h.Mark == u.Mark
}

// Ident is a normalized identifier with hygiene
type Ident struct {
	Name    string
	Hygiene Hygiene
}

// InternIdent builds an identifier, folding the name to NFC. The language
// requires NFC identifiers, so all comparisons happen post-fold.
func InternIdent(name string) Ident {
	return Ident{Name: norm.NFC.String(name)}
}

// WithMark returns a copy of the identifier carrying the given hygiene mark
func (i Ident) WithMark(mark int) Ident {
	i.Hygiene.Mark = mark
	return i
}

func (i Ident) String() string { return i.Name }
