// Package token defines the lexer token and token-tree values that macro
// invocations carry. The external lexer produces them; expansion consumes
// them opaquely, re-lexing transcribed output back into trees.
package token

import (
	"strings"

	"github.com/sunholo/ferrous/internal/span"
)

// Kind classifies a single token
type Kind int

const (
	EOF Kind = iota
	Ident
	Lifetime // 'a (the leading quote is not part of Text)
	IntLit
	FloatLit
	StrLit
	CharLit
	BoolLit // true / false keywords when produced by cfg!
	Punct   // any operator or separator, Text holds the spelling
	Keyword // reserved word other than true/false

	// Delimiters open token groups; they appear only on Group trees
	OpenParen
	OpenBracket
	OpenBrace
)

// Token is a single lexed token
type Token struct {
	Kind Kind
	Text string // spelling; for StrLit the unquoted value
	Pos  span.Pos
}

func (t Token) String() string {
	switch t.Kind {
	case StrLit:
		return "\"" + t.Text + "\""
	case Lifetime:
		return "'" + t.Text
	default:
		return t.Text
	}
}

// Tree is one node of a token tree: either a leaf token or a delimited group
type Tree struct {
	Leaf     *Token
	Delim    Kind   // OpenParen / OpenBracket / OpenBrace when Children is set
	Children []Tree // delimited sub-stream
}

// IsGroup reports whether the tree is a delimited group
func (t Tree) IsGroup() bool { return t.Leaf == nil }

// LeafTree wraps a token as a tree
func LeafTree(tok Token) Tree { return Tree{Leaf: &tok} }

// GroupTree wraps a delimited stream as a tree
func GroupTree(delim Kind, children []Tree) Tree {
	return Tree{Delim: delim, Children: children}
}

// Render flattens a stream to source-like text. Used by stringify! and
// by diagnostics about unmatched macro input.
func Render(trees []Tree) string {
	var b strings.Builder
	renderInto(&b, trees)
	return strings.TrimSpace(b.String())
}

func renderInto(b *strings.Builder, trees []Tree) {
	for i, t := range trees {
		if i > 0 {
			b.WriteByte(' ')
		}
		if t.Leaf != nil {
			b.WriteString(t.Leaf.String())
			continue
		}
		open, close := "(", ")"
		switch t.Delim {
		case OpenBracket:
			open, close = "[", "]"
		case OpenBrace:
			open, close = "{", "}"
		}
		b.WriteString(open)
		renderInto(b, t.Children)
		b.WriteString(close)
	}
}

// Stream is a cursor over a token-tree sequence, the shape macro_rules
// matching walks.
type Stream struct {
	trees []Tree
	idx   int
}

// NewStream creates a cursor at the start of trees
func NewStream(trees []Tree) *Stream {
	return &Stream{trees: trees}
}

// Peek returns the next tree without consuming it, or nil at the end
func (s *Stream) Peek() *Tree {
	if s.idx >= len(s.trees) {
		return nil
	}
	return &s.trees[s.idx]
}

// Next consumes and returns the next tree, or nil at the end
func (s *Stream) Next() *Tree {
	t := s.Peek()
	if t != nil {
		s.idx++
	}
	return t
}

// Mark returns the current position for later Reset
func (s *Stream) Mark() int { return s.idx }

// Reset rewinds to a position returned by Mark
func (s *Stream) Reset(mark int) { s.idx = mark }

// Done reports whether the cursor has consumed every tree
func (s *Stream) Done() bool { return s.idx >= len(s.trees) }
