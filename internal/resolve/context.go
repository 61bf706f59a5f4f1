// Package resolve implements name resolution: use-import binding, module
// index construction, and absolutisation — the rewrite of every path in
// the crate into Absolute, UFCS, or Local form with its binding pair set.
package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

const phase = "resolve"

// Mode parameterises a lookup: it filters which item kinds match.
type Mode int

const (
	ModeNamespace Mode = iota // any item
	ModeType                  // types, traits, type params
	ModeConstant              // constants, const generics
	ModePatternValue          // unit variants, unit structs, consts, statics
	ModeVariable              // locals, then value items
)

func (m Mode) String() string {
	switch m {
	case ModeType:
		return "type"
	case ModeConstant:
		return "constant"
	case ModePatternValue:
		return "pattern value"
	case ModeVariable:
		return "variable"
	}
	return "namespace"
}

type scopeKind int

const (
	scopeModule scopeKind = iota
	scopeGeneric
	scopeVarBlock
	scopeConcreteSelf
)

// varDef is one pattern-bound local visible in a VarBlock scope
type varDef struct {
	name    string
	hygiene ast.Hygiene
	slot    int
}

type scope struct {
	kind scopeKind

	mod *ast.Module // scopeModule

	// scopeGeneric
	gen        *ast.GenericParams
	genLevel   uint16 // GenericImplBase or GenericItemBase
	hrb        bool   // higher-ranked bound scope: no in-band insertion
	canInBand  bool   // accepts in-band lifetimes; set for every non-hrb scope
	lifetimes  []string
	constSlots []string // const generic parameter names

	vars []varDef // scopeVarBlock

	selfType *ast.TypeRef // scopeConcreteSelf
}

// armSig tracks the binding-set signature of an or-pattern arm group
type armSig struct {
	frozen bool
	names  map[string]int // name → slot of the first arm
	seen   map[string]bool
}

// Context is the resolver state: the scope stack, the local-variable
// slot allocator, and the pattern-arm signature stack.
type Context struct {
	Crate *ast.Crate
	Sink  *diag.Sink

	stack       []scope
	nextVarSlot int
	arms        []*armSig
}

// NewContext creates a resolver context rooted at the crate
func NewContext(crate *ast.Crate, sink *diag.Sink) *Context {
	c := &Context{Crate: crate, Sink: sink}
	c.PushModule(crate.Root)
	return c
}

// PushModule enters a module scope
func (c *Context) PushModule(m *ast.Module) {
	c.stack = append(c.stack, scope{kind: scopeModule, mod: m})
}

// PushGeneric enters a generic-parameter scope at the given slot level
func (c *Context) PushGeneric(g *ast.GenericParams, level uint16, hrb bool) {
	s := scope{kind: scopeGeneric, gen: g, genLevel: level, hrb: hrb, canInBand: !hrb}
	if g != nil {
		for _, lt := range g.Lifetimes {
			s.lifetimes = append(s.lifetimes, lt.Name)
		}
	}
	c.stack = append(c.stack, s)
}

// PushVarBlock enters a block scope for pattern-bound locals
func (c *Context) PushVarBlock() {
	c.stack = append(c.stack, scope{kind: scopeVarBlock})
}

// PushSelf enters an impl body, binding `Self` to a concrete type
func (c *Context) PushSelf(ty *ast.TypeRef) {
	c.stack = append(c.stack, scope{kind: scopeConcreteSelf, selfType: ty})
}

// Pop leaves the innermost scope. Pops must pair with pushes; an empty
// stack here is a resolver bug, not a user error.
func (c *Context) Pop() {
	if len(c.stack) == 0 {
		panic("resolve: scope stack underflow")
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// ResetVarSlots restarts local-slot allocation for a new function body
func (c *Context) ResetVarSlots() { c.nextVarSlot = 0 }

// allocVar introduces a local variable in the innermost VarBlock
func (c *Context) allocVar(name string, hy ast.Hygiene) int {
	slot := c.nextVarSlot
	c.nextVarSlot++
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].kind == scopeVarBlock {
			c.stack[i].vars = append(c.stack[i].vars, varDef{name: name, hygiene: hy, slot: slot})
			return slot
		}
	}
	panic("resolve: variable bound outside any block scope")
}

// currentModule returns the innermost module scope
func (c *Context) currentModule() *ast.Module {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].kind == scopeModule {
			return c.stack[i].mod
		}
	}
	return c.Crate.Root
}

// StartPatbind begins an or-pattern arm group
func (c *Context) StartPatbind() {
	c.arms = append(c.arms, &armSig{names: map[string]int{}, seen: map[string]bool{}})
}

// EndPatbindArm freezes the first arm's binding set or checks a later
// arm against it. A mismatched set is fatal.
func (c *Context) EndPatbindArm(sp span.Span) error {
	sig := c.arms[len(c.arms)-1]
	if !sig.frozen {
		sig.frozen = true
	} else {
		for n := range sig.names {
			if !sig.seen[n] {
				return c.Sink.Fatal(diag.New(phase, diag.RES005, sp,
					"variable %q is not bound in all patterns", n))
			}
		}
	}
	sig.seen = map[string]bool{}
	return nil
}

// EndPatbind closes the arm group
func (c *Context) EndPatbind() {
	c.arms = c.arms[:len(c.arms)-1]
}

// patbindVar allocates or reuses a slot for a pattern binding inside the
// current arm group. Later arms reuse the first arm's slots so all
// alternatives introduce the same names in the same slots.
func (c *Context) patbindVar(name string, hy ast.Hygiene, sp span.Span) (int, error) {
	if len(c.arms) == 0 {
		return c.allocVar(name, hy), nil
	}
	sig := c.arms[len(c.arms)-1]
	if sig.frozen {
		slot, ok := sig.names[name]
		if !ok {
			return 0, c.Sink.Fatal(diag.New(phase, diag.RES005, sp,
				"variable %q is not bound in the first pattern", name))
		}
		sig.seen[name] = true
		return slot, nil
	}
	slot := c.allocVar(name, hy)
	sig.names[name] = slot
	sig.seen[name] = true
	return slot, nil
}
