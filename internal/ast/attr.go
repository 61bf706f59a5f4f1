package ast

import (
	"strings"

	"github.com/sunholo/ferrous/internal/span"
)

// AttrKind distinguishes the three meta-item shapes
type AttrKind int

const (
	AttrWord      AttrKind = iota // #[test]
	AttrKindList                  // #[cfg(unix, feature = "x")]
	AttrNameValue                 // #[path = "foo.rs"]
)

// Attr is an attribute or a nested meta item inside one
type Attr struct {
	Name  string
	Kind  AttrKind
	Items []Attr // AttrList sub-items
	Value string // AttrNameValue string payload
	Span  span.Span
}

func (a *Attr) String() string {
	switch a.Kind {
	case AttrNameValue:
		return a.Name + " = \"" + a.Value + "\""
	case AttrKindList:
		parts := make([]string, len(a.Items))
		for i := range a.Items {
			parts[i] = a.Items[i].String()
		}
		return a.Name + "(" + strings.Join(parts, ", ") + ")"
	default:
		return a.Name
	}
}

// AttrList is the ordered attribute set on an item, field, or variant
type AttrList struct {
	Attrs []Attr
}

// Lookup returns the first attribute with the given name, or nil
func (l *AttrList) Lookup(name string) *Attr {
	for i := range l.Attrs {
		if l.Attrs[i].Name == name {
			return &l.Attrs[i]
		}
	}
	return nil
}

// Has reports whether an attribute with the given name is present
func (l *AttrList) Has(name string) bool { return l.Lookup(name) != nil }

// Append adds an attribute (used by cfg_attr application)
func (l *AttrList) Append(a Attr) { l.Attrs = append(l.Attrs, a) }
