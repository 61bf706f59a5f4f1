package ast

import (
	"github.com/sunholo/ferrous/internal/span"
)

// Expr is the interface of all AST expression nodes
type Expr interface {
	exprNode()
	Pos() span.Span
}

type exprBase struct {
	Span span.Span
}

func (e *exprBase) exprNode()      {}
func (e *exprBase) Pos() span.Span { return e.Span }

// LiteralKind classifies literal expressions
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitStr
	LitChar
	LitBool
	LitUnit
)

// Literal is a literal value. Suffix carries an explicit numeric type
// suffix ("u32", "f64") or is empty.
type Literal struct {
	exprBase
	Kind   LiteralKind
	IntVal uint64
	FltVal float64
	StrVal string
	Suffix string
}

// PathExpr is a path used in expression position
type PathExpr struct {
	exprBase
	Path *Path
}

// Stmt is one statement inside a block
type Stmt struct {
	Attrs AttrList
	// Let statement when Pat != nil; expression statement otherwise
	Pat      *Pattern
	Type     *TypeRef // optional annotation on a let
	Init     Expr     // let initializer or the statement expression
	HasSemi  bool
	ItemDecl *ItemEntry // block-local item, owned by the block's anon module
}

// Block is a brace-delimited sequence with an optional tail expression
type Block struct {
	exprBase
	Stmts []Stmt
	Tail  Expr    // nil when the block ends in a statement
	Anon  *Module // anonymous module for block-local items, or nil
}

// MatchArm is one arm of a match: patterns sharing a binding set, an
// optional guard, and the arm body.
type MatchArm struct {
	Pats  []*Pattern
	Guard Expr
	Body  Expr
}

// Match is a match expression
type Match struct {
	exprBase
	Scrutinee Expr
	Arms      []MatchArm
}

// If is an if/else chain
type If struct {
	exprBase
	Cond Expr
	Then *Block
	Else Expr // *Block, *If, or nil
}

// IfLet is sugar; expansion lowers it to Match
type IfLet struct {
	exprBase
	Pats []*Pattern
	Val  Expr
	Then *Block
	Else Expr
}

// While is a while loop
type While struct {
	exprBase
	Label string
	Cond  Expr
	Body  *Block
}

// WhileLet is sugar; expansion lowers it to Loop+Match
type WhileLet struct {
	exprBase
	Label string
	Pats  []*Pattern
	Val   Expr
	Body  *Block
}

// ForLoop is sugar; expansion lowers it to the IntoIterator/Iterator form
type ForLoop struct {
	exprBase
	Label string
	Pat   *Pattern
	Iter  Expr
	Body  *Block
}

// Loop is an infinite loop
type Loop struct {
	exprBase
	Label string
	Body  *Block
}

// Break exits a loop, optionally with a label and value
type Break struct {
	exprBase
	Label string
	Value Expr
}

// Continue jumps to the next loop iteration
type Continue struct {
	exprBase
	Label string
}

// Return exits the enclosing function
type Return struct {
	exprBase
	Value Expr
}

// Try is the `expr?` operator; expansion lowers it to Match
type Try struct {
	exprBase
	Inner Expr
}

// RangeLimit distinguishes `..`, `a..b`, `a..=b` forms
type RangeLimit int

const (
	RangeHalfOpen RangeLimit = iota
	RangeInclusive
)

// RangeExpr is range sugar; expansion lowers it to the ops range structs
type RangeExpr struct {
	exprBase
	Start Expr
	End   Expr
	Limit RangeLimit
}

// Call is a call through a path (function, tuple-struct or variant ctor)
type Call struct {
	exprBase
	Target *Path
	Args   []Expr

	// CacheArgs / CacheRet memoise the monomorphised signature during
	// inference so re-iteration does not redo substitution.
	CacheArgs []*TypeRef
	CacheRet  *TypeRef
}

// CallValue is a call of a non-path callee expression
type CallValue struct {
	exprBase
	Fn   Expr
	Args []Expr
}

// MethodCall is `recv.name(args)`; inference resolves it to a UFCS path
// and records the auto-deref count.
type MethodCall struct {
	exprBase
	Recv Expr
	Name string
	Args []Expr

	Resolved   *Path // UFCS path set by inference
	DerefCount int

	CacheArgs []*TypeRef
	CacheRet  *TypeRef
}

// Field is `expr.name` or `expr.0`
type Field struct {
	exprBase
	Base Expr
	Name string
}

// Index is `expr[idx]`
type Index struct {
	exprBase
	Base Expr
	Idx  Expr
}

// Borrow is `&expr` / `&mut expr`
type Borrow struct {
	exprBase
	Mut   bool
	Inner Expr
}

// Deref is `*expr`
type Deref struct {
	exprBase
	Inner Expr
}

// Cast is `expr as T`
type Cast struct {
	exprBase
	Inner Expr
	To    *TypeRef
}

// Assign is `lhs = rhs` or a compound `lhs op= rhs`
type Assign struct {
	exprBase
	Op  BinOpKind // BinOpNone for plain assignment
	Lhs Expr
	Rhs Expr
}

// BinOpKind enumerates binary operators
type BinOpKind int

const (
	BinOpNone BinOpKind = iota
	BinOpAdd
	BinOpSub
	BinOpMul
	BinOpDiv
	BinOpRem
	BinOpBitAnd
	BinOpBitOr
	BinOpBitXor
	BinOpShl
	BinOpShr
	BinOpEq
	BinOpNe
	BinOpLt
	BinOpLe
	BinOpGt
	BinOpGe
	BinOpBoolAnd
	BinOpBoolOr
)

var binOpNames = map[BinOpKind]string{
	BinOpAdd: "+", BinOpSub: "-", BinOpMul: "*", BinOpDiv: "/", BinOpRem: "%",
	BinOpBitAnd: "&", BinOpBitOr: "|", BinOpBitXor: "^",
	BinOpShl: "<<", BinOpShr: ">>",
	BinOpEq: "==", BinOpNe: "!=", BinOpLt: "<", BinOpLe: "<=", BinOpGt: ">", BinOpGe: ">=",
	BinOpBoolAnd: "&&", BinOpBoolOr: "||",
}

func (k BinOpKind) String() string { return binOpNames[k] }

// IsComparison reports whether the operator yields bool
func (k BinOpKind) IsComparison() bool {
	return k >= BinOpEq && k <= BinOpGe
}

// BinaryOp is `lhs op rhs`
type BinaryOp struct {
	exprBase
	Op  BinOpKind
	Lhs Expr
	Rhs Expr
}

// UnOpKind enumerates unary operators
type UnOpKind int

const (
	UnOpNeg UnOpKind = iota
	UnOpNot
)

// UnaryOp is `-expr` or `!expr`
type UnaryOp struct {
	exprBase
	Op    UnOpKind
	Inner Expr
}

// FieldInit is one `name: value` entry of a struct literal
type FieldInit struct {
	Name  string
	Value Expr
}

// StructLit is `Path { fields.. , ..base }`
type StructLit struct {
	exprBase
	Path   *Path
	Fields []FieldInit
	Base   Expr // functional-update base, or nil
}

// TupleLit is `(a, b, c)`
type TupleLit struct {
	exprBase
	Elems []Expr
}

// ArrayLit is `[a, b, c]` or `[v; n]`
type ArrayLit struct {
	exprBase
	Elems  []Expr
	Repeat Expr // element of a `[v; n]` form
	Count  uint64
	Sized  bool // true for the `[v; n]` form
}

// MacroExpr is an unexpanded macro in expression position
type MacroExpr struct {
	exprBase
	Mac *MacroInvocation
}

// EmptyExpr replaces an expression removed by a false cfg
type EmptyExpr struct {
	exprBase
}
