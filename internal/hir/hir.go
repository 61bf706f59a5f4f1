// Package hir defines the resolved, typed intermediate representation.
// Lowering copies the resolved AST into this tree; type inference fills
// the Res slot of every expression node with a concrete type.
package hir

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/span"
)

// Expr is the interface of all HIR expression nodes
type Expr interface {
	hirExpr()
	Span() span.Span
	// ResType returns the node's result-type slot; inference both reads
	// and writes through it.
	ResType() *ast.TypeRef
	SetResType(*ast.TypeRef)
}

// ExprBase carries the span and result type every node has
type ExprBase struct {
	Sp  span.Span
	Res *ast.TypeRef
}

func (e *ExprBase) hirExpr()                  {}
func (e *ExprBase) Span() span.Span           { return e.Sp }
func (e *ExprBase) ResType() *ast.TypeRef     { return e.Res }
func (e *ExprBase) SetResType(t *ast.TypeRef) { e.Res = t }

// Literal is a literal value
type Literal struct {
	ExprBase
	Kind   ast.LiteralKind
	IntVal uint64
	FltVal float64
	StrVal string
	Suffix string
}

// PathValue reads a value through a resolved path: a local, constant,
// static, function item, or unit-variant constructor.
type PathValue struct {
	ExprBase
	Path *ast.Path
}

// Stmt is one block statement: a let (Pat non-nil) or a bare expression
type Stmt struct {
	Pat  *ast.Pattern
	Type *ast.TypeRef // let annotation, nil when inferred
	Init Expr
}

// Block is a sequence of statements with an optional tail expression
type Block struct {
	ExprBase
	Stmts []Stmt
	Tail  Expr
}

// Arm is one match arm
type Arm struct {
	Pats  []*ast.Pattern
	Guard Expr
	Body  Expr
}

// Match is a match expression
type Match struct {
	ExprBase
	Scrutinee Expr
	Arms      []Arm
}

// If is an if/else chain
type If struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr // nil when absent
}

// Loop is an infinite loop
type Loop struct {
	ExprBase
	Label string
	Body  Expr
}

// While is a conditional loop
type While struct {
	ExprBase
	Label string
	Cond  Expr
	Body  Expr
}

// Break exits a loop
type Break struct {
	ExprBase
	Label string
	Value Expr
}

// Continue restarts a loop
type Continue struct {
	ExprBase
	Label string
}

// Return exits the function
type Return struct {
	ExprBase
	Value Expr
}

// CallPath calls through a resolved path: function, tuple-struct
// constructor, or tuple-variant constructor.
type CallPath struct {
	ExprBase
	Path *ast.Path
	Args []Expr

	// Monomorphised signature, cached across inference iterations.
	CacheArgs []*ast.TypeRef
	CacheRet  *ast.TypeRef
}

// CallValue calls a callee expression (fn pointer or closure)
type CallValue struct {
	ExprBase
	Fn   Expr
	Args []Expr
}

// MethodCall is recv.name(args); inference resolves it to a UFCS path
// and records how many derefs the receiver needs.
type MethodCall struct {
	ExprBase
	Recv Expr
	Name string
	Args []Expr

	Resolved   *ast.Path
	DerefCount int

	CacheArgs []*ast.TypeRef
	CacheRet  *ast.TypeRef
}

// Field projects a named or numbered field out of a struct or tuple
type Field struct {
	ExprBase
	Base Expr
	Name string
}

// Index is base[idx]
type Index struct {
	ExprBase
	Base Expr
	Idx  Expr
}

// Borrow takes a reference
type Borrow struct {
	ExprBase
	Mut   bool
	Inner Expr
}

// Deref dereferences a borrow or pointer
type Deref struct {
	ExprBase
	Inner Expr
}

// Cast is `expr as T`
type Cast struct {
	ExprBase
	Inner Expr
	To    *ast.TypeRef
}

// Unsize wraps an expression whose type was coerced: the inner node
// keeps the un-coerced type, the wrapper carries the target.
type Unsize struct {
	ExprBase
	Inner Expr
}

// Assign is `lhs = rhs`, or a compound `lhs op= rhs` when Op is not
// BinOpNone
type Assign struct {
	ExprBase
	Op  ast.BinOpKind
	Lhs Expr
	Rhs Expr
}

// BinOp is a binary operation
type BinOp struct {
	ExprBase
	Op  ast.BinOpKind
	Lhs Expr
	Rhs Expr
}

// UnOp is a unary operation
type UnOp struct {
	ExprBase
	Op    ast.UnOpKind
	Inner Expr
}

// FieldInit is one field of a struct literal
type FieldInit struct {
	Name  string
	Value Expr
}

// StructLit builds a struct or struct-variant value
type StructLit struct {
	ExprBase
	Path   *ast.Path
	Fields []FieldInit
	Base   Expr
}

// TupleLit builds a tuple
type TupleLit struct {
	ExprBase
	Elems []Expr
}

// ArrayLit builds an array
type ArrayLit struct {
	ExprBase
	Elems  []Expr
	Repeat Expr
	Count  uint64
	Sized  bool
}

// Param is one function parameter
type Param struct {
	Pat  *ast.Pattern
	Type *ast.TypeRef
}

// Function is a lowered function body with its signature
type Function struct {
	Path     *ast.Path
	Generics *ast.GenericParams
	SelfKind ast.SelfKind
	SelfType *ast.TypeRef // impl self type for methods, nil otherwise
	Params   []Param
	Ret      *ast.TypeRef
	Body     *Block
}

// ImplRef is one impl block with its lowered method bodies
type ImplRef struct {
	Mod  *ast.Module
	Def  *ast.Impl
	Fns  map[string]*Function
}

// Crate is the lowered crate: the resolved AST plus flat indices over
// functions and impls, which inference and layout query by path key.
type Crate struct {
	Ast *ast.Crate

	Functions map[string]*Function
	Impls     []*ImplRef
}

// FindFunction returns the lowered function at an absolute path key
func (c *Crate) FindFunction(key string) (*Function, bool) {
	f, ok := c.Functions[key]
	return f, ok
}
