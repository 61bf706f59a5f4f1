package expand

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/target"
	"github.com/sunholo/ferrous/internal/token"
)

// AttrStage selects when a decorator runs relative to the two expansion
// passes and to the recursion into the decorated item.
type AttrStage int

const (
	StageEarlyPre AttrStage = iota
	StageEarlyPost
	StageLatePre
	StageLatePost
)

// ProcMacro is a built-in `name!(...)` handler producing a replacement
// token stream, re-parsed at the invocation's syntactic position.
type ProcMacro interface {
	// ExpandEarly reports whether the macro runs in the early pass
	ExpandEarly() bool
	Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error)
}

// Decorator is a built-in attribute handler. Handlers are invoked for
// whichever syntactic positions the attribute may decorate; the no-op
// base makes most decorators single-method.
type Decorator interface {
	Stage() AttrStage
	HandleItem(x *Expander, attr *ast.Attr, mod *ast.Module, entry *ast.ItemEntry) error
	HandleField(x *Expander, attr *ast.Attr, field *ast.StructField) error
	HandleVariant(x *Expander, attr *ast.Attr, variant *ast.EnumVariant) error
	HandleImpl(x *Expander, attr *ast.Attr, impl *ast.Impl) error
}

// DecoratorBase provides no-op handlers for embedding
type DecoratorBase struct{}

func (DecoratorBase) HandleItem(*Expander, *ast.Attr, *ast.Module, *ast.ItemEntry) error { return nil }
func (DecoratorBase) HandleField(*Expander, *ast.Attr, *ast.StructField) error           { return nil }
func (DecoratorBase) HandleVariant(*Expander, *ast.Attr, *ast.EnumVariant) error         { return nil }
func (DecoratorBase) HandleImpl(*Expander, *ast.Attr, *ast.Impl) error                   { return nil }

// Reparser parses a macro's output token stream at a syntactic position.
// The parser proper is an external collaborator; the pipeline supplies
// an implementation.
type Reparser interface {
	ParseItems(trees []token.Tree, mod *ast.Module) ([]*ast.ItemEntry, []*ast.MacroInvocation, error)
	ParseExpr(trees []token.Tree) (ast.Expr, error)
	ParsePattern(trees []token.Tree) (*ast.Pattern, error)
	ParseType(trees []token.Tree) (*ast.TypeRef, error)
}

// Registries holds the macro and decorator handler tables, filled once
// at startup and read-only during expansion.
type Registries struct {
	Macros     map[string]ProcMacro
	Decorators map[string]Decorator
}

// NewRegistries builds the built-in handler tables
func NewRegistries() *Registries {
	r := &Registries{
		Macros:     map[string]ProcMacro{},
		Decorators: map[string]Decorator{},
	}

	r.RegisterMacro("cfg", &cfgMacro{})
	r.RegisterMacro("concat", &concatMacro{})
	r.RegisterMacro("stringify", &stringifyMacro{})
	r.RegisterMacro("line", &lineMacro{})
	r.RegisterMacro("column", &columnMacro{})
	r.RegisterMacro("file", &fileMacro{})
	r.RegisterMacro("env", &envMacro{required: true})
	r.RegisterMacro("option_env", &envMacro{})
	r.RegisterMacro("include_str", &includeStrMacro{})
	r.RegisterMacro("compile_error", &compileErrorMacro{})
	r.RegisterMacro("format_args", &formatArgsMacro{})

	r.RegisterDecorator("cfg", &cfgDecorator{})
	r.RegisterDecorator("derive", &deriveDecorator{})
	r.RegisterDecorator("test", &testDecorator{})
	r.RegisterDecorator("lang", &langDecorator{})
	r.RegisterDecorator("macro_use", &macroUseDecorator{})
	// Recorded-only attributes: kept on the item, no structural effect.
	for _, name := range []string{"inline", "cold", "allow", "warn", "deny", "doc", "repr", "macro_export", "derive_copy_hack", "must_use"} {
		r.RegisterDecorator(name, &inertDecorator{})
	}

	return r
}

// RegisterMacro adds a proc-macro handler
func (r *Registries) RegisterMacro(name string, m ProcMacro) { r.Macros[name] = m }

// RegisterDecorator adds an attribute handler
func (r *Registries) RegisterDecorator(name string, d Decorator) { r.Decorators[name] = d }

// inertDecorator records an attribute without structural effect
type inertDecorator struct{ DecoratorBase }

func (inertDecorator) Stage() AttrStage { return StageLatePost }

// Expander carries the state of one expansion run
type Expander struct {
	Crate    *ast.Crate
	Cfg      *target.CfgState
	Sink     *diag.Sink
	Reg      *Registries
	Reparser Reparser

	// Env looks up env!() values; defaults to the process environment.
	Env func(string) (string, bool)
	// ReadFile backs include_str!; defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)

	// Hygiene of the most recent macro_rules expansion, consumed by the
	// reparser when it builds identifiers from the output stream.
	ExpMark   int
	ExpDefMod *ast.Module

	early    bool
	nextMark int
}

// FreshMark allocates a hygiene mark for one macro invocation
func (x *Expander) FreshMark() int {
	x.nextMark++
	return x.nextMark
}

// errorAt is shorthand for a fatal expansion report
func (x *Expander) errorAt(code string, sp span.Span, format string, args ...any) error {
	return x.Sink.Fatal(diag.New(phase, code, sp, format, args...))
}
