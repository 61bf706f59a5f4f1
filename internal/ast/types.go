package ast

import (
	"fmt"
	"strings"

	"github.com/sunholo/ferrous/internal/span"
)

// Primitive enumerates the built-in scalar types
type Primitive int

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimUsize
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimIsize
	PrimF32
	PrimF64
)

var primNames = [...]string{
	"bool", "char", "str",
	"u8", "u16", "u32", "u64", "u128", "usize",
	"i8", "i16", "i32", "i64", "i128", "isize",
	"f32", "f64",
}

func (p Primitive) String() string { return primNames[p] }

// PrimitiveByName maps a primitive type name to its value
func PrimitiveByName(name string) (Primitive, bool) {
	for i, n := range primNames {
		if n == name {
			return Primitive(i), true
		}
	}
	return 0, false
}

// IsInteger reports whether the primitive is an integer type
func (p Primitive) IsInteger() bool {
	return p >= PrimU8 && p <= PrimIsize
}

// IsFloat reports whether the primitive is a floating-point type
func (p Primitive) IsFloat() bool { return p == PrimF32 || p == PrimF64 }

// IvarClass restricts which primitives an inference variable may take
type IvarClass int

const (
	IvarAny IvarClass = iota
	IvarInteger
	IvarFloat
)

func (c IvarClass) String() string {
	switch c {
	case IvarInteger:
		return "{integer}"
	case IvarFloat:
		return "{float}"
	}
	return "_"
}

// Generic slot encoding. The high byte selects the parameter level.
const (
	// GenericSelf is the `Self` slot inside trait definitions
	GenericSelf uint16 = 0xFFFF
	// GenericImplBase is the first impl/type-level parameter slot
	GenericImplBase uint16 = 0x0000
	// GenericItemBase is the first method/item-level parameter slot
	GenericItemBase uint16 = 0x0100
)

// TypeKind discriminates the TypeRef variants
type TypeKind int

const (
	TypeInfer TypeKind = iota
	TypeDiverge
	TypePrimitive
	TypePath
	TypeGeneric
	TypeTraitObject
	TypeErased
	TypeArray
	TypeSlice
	TypeTuple
	TypeBorrow
	TypePointer
	TypeFunction
	TypeClosure
	TypeMacro // pre-expansion only
)

// FnSig is a function signature as a type
type FnSig struct {
	Unsafe bool
	Abi    string
	Args   []*TypeRef
	Ret    *TypeRef
}

// TypeRef is the single type representation, used both in the AST and in
// the HIR (lowering strips the Macro variant and allocates Infer slots).
type TypeRef struct {
	Kind TypeKind
	Span span.Span

	Ivar  int       // TypeInfer: index into the inference context
	Class IvarClass // TypeInfer: literal class restriction

	Prim Primitive // TypePrimitive

	Path *Path // TypePath

	GenericSlot uint16 // TypeGeneric
	GenericName string // TypeGeneric: display name

	Traits []*Path // TypeTraitObject / TypeErased

	Inner     *TypeRef // TypeArray / TypeSlice / TypeBorrow / TypePointer
	ArraySize uint64   // TypeArray
	Mut       bool     // TypeBorrow / TypePointer
	Lifetime  string   // TypeBorrow: lifetime name, "" when elided

	Elems []*TypeRef // TypeTuple

	Fn *FnSig // TypeFunction / TypeClosure

	Mac *MacroInvocation // TypeMacro
}

// Constructors for the common variants.

func InferType() *TypeRef                  { return &TypeRef{Kind: TypeInfer, Ivar: -1} }
func InferClassType(c IvarClass) *TypeRef  { return &TypeRef{Kind: TypeInfer, Ivar: -1, Class: c} }
func DivergeType() *TypeRef                { return &TypeRef{Kind: TypeDiverge} }
func PrimType(p Primitive) *TypeRef        { return &TypeRef{Kind: TypePrimitive, Prim: p} }
func UnitType() *TypeRef                   { return &TypeRef{Kind: TypeTuple} }
func PathType(p *Path) *TypeRef            { return &TypeRef{Kind: TypePath, Path: p} }
func SliceType(inner *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeSlice, Inner: inner} }
func TupleType(elems ...*TypeRef) *TypeRef { return &TypeRef{Kind: TypeTuple, Elems: elems} }

func GenericType(slot uint16, name string) *TypeRef {
	return &TypeRef{Kind: TypeGeneric, GenericSlot: slot, GenericName: name}
}

func ArrayType(inner *TypeRef, size uint64) *TypeRef {
	return &TypeRef{Kind: TypeArray, Inner: inner, ArraySize: size}
}

func BorrowType(mut bool, inner *TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeBorrow, Mut: mut, Inner: inner}
}

func PointerType(mut bool, inner *TypeRef) *TypeRef {
	return &TypeRef{Kind: TypePointer, Mut: mut, Inner: inner}
}

// SelfType is the `Self` generic slot
func SelfType() *TypeRef { return GenericType(GenericSelf, "Self") }

// Clone deep-copies the type reference
func (t *TypeRef) Clone() *TypeRef {
	if t == nil {
		return nil
	}
	q := *t
	q.Path = t.Path.Clone()
	q.Inner = t.Inner.Clone()
	if len(t.Traits) > 0 {
		q.Traits = make([]*Path, len(t.Traits))
		for i, tr := range t.Traits {
			q.Traits[i] = tr.Clone()
		}
	}
	if len(t.Elems) > 0 {
		q.Elems = make([]*TypeRef, len(t.Elems))
		for i, e := range t.Elems {
			q.Elems[i] = e.Clone()
		}
	}
	if t.Fn != nil {
		fn := *t.Fn
		fn.Args = make([]*TypeRef, len(t.Fn.Args))
		for i, a := range t.Fn.Args {
			fn.Args[i] = a.Clone()
		}
		fn.Ret = t.Fn.Ret.Clone()
		q.Fn = &fn
	}
	return &q
}

// ContainsInfer reports whether any Infer node remains in the type
func (t *TypeRef) ContainsInfer() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeInfer:
		return true
	case TypeArray, TypeSlice, TypeBorrow, TypePointer:
		return t.Inner.ContainsInfer()
	case TypeTuple:
		for _, e := range t.Elems {
			if e.ContainsInfer() {
				return true
			}
		}
	case TypeFunction, TypeClosure:
		if t.Fn != nil {
			for _, a := range t.Fn.Args {
				if a.ContainsInfer() {
					return true
				}
			}
			return t.Fn.Ret.ContainsInfer()
		}
	case TypePath:
		if t.Path != nil {
			for _, n := range t.Path.Nodes {
				for _, a := range n.Args {
					if a.ContainsInfer() {
						return true
					}
				}
			}
			if t.Path.UfcsType != nil {
				return t.Path.UfcsType.ContainsInfer()
			}
		}
	}
	return false
}

// ContainsGeneric reports whether any Generic slot remains in the type
func (t *TypeRef) ContainsGeneric() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeGeneric:
		return true
	case TypeArray, TypeSlice, TypeBorrow, TypePointer:
		return t.Inner.ContainsGeneric()
	case TypeTuple:
		for _, e := range t.Elems {
			if e.ContainsGeneric() {
				return true
			}
		}
	case TypeFunction, TypeClosure:
		if t.Fn != nil {
			for _, a := range t.Fn.Args {
				if a.ContainsGeneric() {
					return true
				}
			}
			return t.Fn.Ret.ContainsGeneric()
		}
	case TypePath:
		if t.Path != nil {
			for _, n := range t.Path.Nodes {
				for _, a := range n.Args {
					if a.ContainsGeneric() {
						return true
					}
				}
			}
			if t.Path.UfcsType != nil {
				return t.Path.UfcsType.ContainsGeneric()
			}
		}
	}
	return false
}

func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeInfer:
		if t.Class != IvarAny {
			return t.Class.String()
		}
		if t.Ivar >= 0 {
			return fmt.Sprintf("_#%d", t.Ivar)
		}
		return "_"
	case TypeDiverge:
		return "!"
	case TypePrimitive:
		return t.Prim.String()
	case TypePath:
		return t.Path.String()
	case TypeGeneric:
		return t.GenericName
	case TypeTraitObject:
		return "dyn " + joinPaths(t.Traits)
	case TypeErased:
		return "impl " + joinPaths(t.Traits)
	case TypeArray:
		return fmt.Sprintf("[%s; %d]", t.Inner, t.ArraySize)
	case TypeSlice:
		return "[" + t.Inner.String() + "]"
	case TypeTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case TypeBorrow:
		if t.Mut {
			return "&mut " + t.Inner.String()
		}
		return "&" + t.Inner.String()
	case TypePointer:
		if t.Mut {
			return "*mut " + t.Inner.String()
		}
		return "*const " + t.Inner.String()
	case TypeFunction:
		if t.Fn == nil {
			return "fn()"
		}
		parts := make([]string, len(t.Fn.Args))
		for i, a := range t.Fn.Args {
			parts[i] = a.String()
		}
		return "fn(" + strings.Join(parts, ", ") + ") -> " + t.Fn.Ret.String()
	case TypeClosure:
		return "<closure>"
	case TypeMacro:
		return "<macro type>"
	}
	return "<bad type>"
}

func joinPaths(ps []*Path) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, " + ")
}
