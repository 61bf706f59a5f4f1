// Package span provides source positions and ranges.
// Every AST and HIR node carries a Span; diagnostics report through it.
package span

import "fmt"

// Pos represents a position in the source code
type Pos struct {
	Line   int
	Column int
	File   string
	Offset int // Byte offset into the file
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Span represents a range in source code
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string {
	return s.Start.String()
}

// New creates a zero-width span at the given position
func New(file string, line, column int) Span {
	p := Pos{Line: line, Column: column, File: file}
	return Span{Start: p, End: p}
}

// IsZero reports whether the span carries no position information
func (s Span) IsZero() bool {
	return s.Start.File == "" && s.Start.Line == 0
}
