// Package layout computes target-aware memory representations: size,
// alignment, field offsets, and enum variant encodings. Queries are
// cached; generic types answer "not known" without erroring.
package layout

import (
	"fmt"
	"math"
	"sync"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/target"
)

const phase = "layout"

// VariantMode describes how an enum's variants are encoded
type VariantMode int

const (
	VariantNone VariantMode = iota // not an enum, or no variants
	// VariantValues stores an explicit tag field
	VariantValues
	// VariantNonZero reuses a never-zero niche; all-zero encodes the
	// unit variant
	VariantNonZero
)

// FieldSlot is one laid-out field
type FieldSlot struct {
	Offset uint64
	Type   *ast.TypeRef
}

// Repr is a computed type representation
type Repr struct {
	Size    uint64
	Align   uint64
	Unsized bool

	Fields []FieldSlot

	Variant   VariantMode
	TagField  int      // VariantValues: index into Fields of the tag
	TagValues []uint64 // VariantValues: per-variant tag value
	NichePath []int    // VariantNonZero: [variant, field, ...] of the niche
}

// Engine computes and caches representations against one target
type Engine struct {
	Target *target.Spec
	Crate  *ast.Crate

	mu    sync.RWMutex
	cache map[string]*Repr
}

// New creates a layout engine
func New(spec *target.Spec, crate *ast.Crate) *Engine {
	return &Engine{Target: spec, Crate: crate, cache: map[string]*Repr{}}
}

// Repr computes (or recalls) a type's representation. A generic type
// returns (nil, nil): not known yet, never cached.
func (e *Engine) Repr(t *ast.TypeRef) (*Repr, error) {
	if t == nil || t.ContainsGeneric() || t.ContainsInfer() {
		return nil, nil
	}
	key := t.String()
	e.mu.RLock()
	if r, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return r, nil
	}
	e.mu.RUnlock()

	r, err := e.compute(t)
	if err != nil || r == nil {
		return r, err
	}
	e.mu.Lock()
	e.cache[key] = r
	e.mu.Unlock()
	return r, nil
}

// SizeAlign is a convenience wrapper over Repr
func (e *Engine) SizeAlign(t *ast.TypeRef) (size, align uint64, known bool, err error) {
	r, err := e.Repr(t)
	if err != nil || r == nil {
		return 0, 0, false, err
	}
	return r.Size, r.Align, true, nil
}

func (e *Engine) compute(t *ast.TypeRef) (*Repr, error) {
	al := &e.Target.Arch.Alignments
	ptrBytes := uint64(e.Target.Arch.PointerBytes())

	switch t.Kind {
	case ast.TypeDiverge:
		return &Repr{Size: 0, Align: 1}, nil

	case ast.TypePrimitive:
		return e.primitiveRepr(t.Prim)

	case ast.TypeBorrow, ast.TypePointer:
		words := uint64(1)
		if !e.isSized(t.Inner) {
			words = 2 // fat pointer: data + len/vtable
		}
		return &Repr{Size: ptrBytes * words, Align: uint64(al.Ptr)}, nil

	case ast.TypeFunction:
		return &Repr{Size: ptrBytes, Align: uint64(al.Ptr)}, nil

	case ast.TypeSlice, ast.TypeTraitObject:
		// Unsized; size is only meaningful behind a pointer.
		elemAlign := uint64(1)
		if t.Kind == ast.TypeSlice {
			er, err := e.Repr(t.Inner)
			if err != nil {
				return nil, err
			}
			if er == nil {
				return nil, nil
			}
			elemAlign = er.Align
		}
		return &Repr{Size: 0, Align: elemAlign, Unsized: true}, nil

	case ast.TypeArray:
		er, err := e.Repr(t.Inner)
		if err != nil || er == nil {
			return er, err
		}
		size, ok := mulNoOverflow(er.Size, t.ArraySize)
		if !ok {
			return nil, diag.WrapReport(diag.New(phase, diag.LAY002, span.Span{},
				"array size overflows: [%s; %d]", t.Inner, t.ArraySize))
		}
		return &Repr{Size: size, Align: er.Align}, nil

	case ast.TypeTuple:
		fields := make([]ast.StructField, len(t.Elems))
		for i, el := range t.Elems {
			fields[i] = ast.StructField{Type: el}
		}
		return e.aggregateRepr(fields, reprDefault)

	case ast.TypePath:
		return e.pathRepr(t)

	default:
		return nil, nil
	}
}

func (e *Engine) primitiveRepr(p ast.Primitive) (*Repr, error) {
	al := &e.Target.Arch.Alignments
	ptrBytes := uint64(e.Target.Arch.PointerBytes())
	switch p {
	case ast.PrimBool, ast.PrimU8, ast.PrimI8:
		return &Repr{Size: 1, Align: 1}, nil
	case ast.PrimU16, ast.PrimI16:
		return &Repr{Size: 2, Align: uint64(al.U16)}, nil
	case ast.PrimU32, ast.PrimI32, ast.PrimChar:
		return &Repr{Size: 4, Align: uint64(al.U32)}, nil
	case ast.PrimU64, ast.PrimI64:
		return &Repr{Size: 8, Align: uint64(al.U64)}, nil
	case ast.PrimU128, ast.PrimI128:
		a := uint64(al.U128)
		if e.Target.BackendC.EmulateI128 {
			a = uint64(al.U64)
		}
		return &Repr{Size: 16, Align: a}, nil
	case ast.PrimUsize, ast.PrimIsize:
		return &Repr{Size: ptrBytes, Align: uint64(al.Ptr)}, nil
	case ast.PrimF32:
		return &Repr{Size: 4, Align: uint64(al.F32)}, nil
	case ast.PrimF64:
		return &Repr{Size: 8, Align: uint64(al.F64)}, nil
	case ast.PrimStr:
		return &Repr{Size: 0, Align: 1, Unsized: true}, nil
	default:
		return nil, fmt.Errorf("unknown primitive %s", p)
	}
}

// reprAttr is a struct's parsed #[repr(...)] selection
type reprAttr int

const (
	reprDefault reprAttr = iota
	reprC
	reprPacked
	reprTransparent
	reprSimd
)

func parseReprAttr(attrs *ast.AttrList) reprAttr {
	a := attrs.Lookup("repr")
	if a == nil {
		return reprDefault
	}
	for _, item := range a.Items {
		switch item.Name {
		case "packed":
			return reprPacked
		case "C":
			return reprC
		case "transparent":
			return reprTransparent
		case "simd":
			return reprSimd
		}
	}
	return reprDefault
}

func (e *Engine) pathRepr(t *ast.TypeRef) (*Repr, error) {
	entry, ok := e.Crate.ItemAt(t.Path)
	if !ok {
		return nil, nil
	}
	switch d := entry.Data.(type) {
	case *ast.Struct:
		if len(d.Generics.Types) > 0 && len(pathArgsOf(t)) == 0 {
			return nil, nil
		}
		fields, err := e.substFields(d.Fields, d.Kind, t)
		if err != nil {
			return nil, err
		}
		return e.aggregateRepr(fields, parseReprAttr(&entry.Attrs))
	case *ast.Union:
		fields, err := e.substFields(d.Fields, ast.StructNamed, t)
		if err != nil {
			return nil, err
		}
		return e.unionRepr(fields)
	case *ast.Enum:
		return e.enumRepr(entry, d, t)
	case *ast.TypeAlias:
		return e.Repr(d.Type)
	default:
		return nil, nil
	}
}

func pathArgsOf(t *ast.TypeRef) []*ast.TypeRef {
	if t.Path == nil || len(t.Path.Nodes) == 0 {
		return nil
	}
	return t.Path.Nodes[len(t.Path.Nodes)-1].Args
}

// substFields substitutes a nominal type's generic arguments into its
// field list, dropping the slots cfg cleared (a named field with no
// name, a tuple field with no type).
func (e *Engine) substFields(fields []ast.StructField, kind ast.StructKind, t *ast.TypeRef) ([]ast.StructField, error) {
	args := pathArgsOf(t)
	out := make([]ast.StructField, 0, len(fields))
	for _, f := range fields {
		if f.Type == nil {
			continue
		}
		if kind == ast.StructNamed && f.Name == "" {
			continue
		}
		ft := substGenerics(f.Type, t, args)
		out = append(out, ast.StructField{Name: f.Name, Type: ft})
	}
	return out, nil
}

// substGenerics replaces impl-level Generic slots with path arguments
func substGenerics(t *ast.TypeRef, self *ast.TypeRef, args []*ast.TypeRef) *ast.TypeRef {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ast.TypeGeneric:
		if t.GenericSlot == ast.GenericSelf {
			return self
		}
		idx := int(t.GenericSlot - ast.GenericImplBase)
		if idx >= 0 && idx < len(args) {
			return args[idx]
		}
		return t
	case ast.TypeArray, ast.TypeSlice, ast.TypeBorrow, ast.TypePointer:
		q := *t
		q.Inner = substGenerics(t.Inner, self, args)
		return &q
	case ast.TypeTuple:
		q := *t
		q.Elems = make([]*ast.TypeRef, len(t.Elems))
		for i, el := range t.Elems {
			q.Elems[i] = substGenerics(el, self, args)
		}
		return &q
	case ast.TypePath:
		if t.Path == nil {
			return t
		}
		q := *t
		p := t.Path.Clone()
		for i := range p.Nodes {
			for j, a := range p.Nodes[i].Args {
				p.Nodes[i].Args[j] = substGenerics(a, self, args)
			}
		}
		q.Path = p
		return &q
	default:
		return t
	}
}

// aggregateRepr lays out a struct or tuple in declaration order
func (e *Engine) aggregateRepr(fields []ast.StructField, attr reprAttr) (*Repr, error) {
	r := &Repr{Align: 1}
	packed := attr == reprPacked

	for i, f := range fields {
		fr, err := e.Repr(f.Type)
		if err != nil {
			return nil, err
		}
		if fr == nil {
			return nil, nil // generic field: layout unknown
		}
		if r.Unsized {
			return nil, diag.WrapReport(diag.New(phase, diag.LAY001, span.Span{},
				"unsized field must be the last field"))
		}

		offset := r.Size
		if !packed {
			offset = alignUp(offset, fr.Align)
			if fr.Align > r.Align {
				r.Align = fr.Align
			}
		}
		r.Fields = append(r.Fields, FieldSlot{Offset: offset, Type: f.Type})

		if fr.Unsized {
			if i != len(fields)-1 {
				return nil, diag.WrapReport(diag.New(phase, diag.LAY001, span.Span{},
					"unsized field must be the last field"))
			}
			r.Unsized = true
			r.Size = offset
			continue
		}
		var ok bool
		r.Size, ok = addNoOverflow(offset, fr.Size)
		if !ok {
			return nil, diag.WrapReport(diag.New(phase, diag.LAY002, span.Span{},
				"struct size overflows"))
		}
	}

	if packed {
		r.Align = 1
	} else if !r.Unsized {
		r.Size = alignUp(r.Size, r.Align)
	}
	return r, nil
}

// unionRepr overlays every field at offset zero
func (e *Engine) unionRepr(fields []ast.StructField) (*Repr, error) {
	r := &Repr{Align: 1}
	for _, f := range fields {
		fr, err := e.Repr(f.Type)
		if err != nil {
			return nil, err
		}
		if fr == nil {
			return nil, nil
		}
		if fr.Size > r.Size {
			r.Size = fr.Size
		}
		if fr.Align > r.Align {
			r.Align = fr.Align
		}
		r.Fields = append(r.Fields, FieldSlot{Offset: 0, Type: f.Type})
	}
	r.Size = alignUp(r.Size, r.Align)
	return r, nil
}

// isSized reports whether a type has a compile-time size
func (e *Engine) isSized(t *ast.TypeRef) bool {
	switch t.Kind {
	case ast.TypeSlice, ast.TypeTraitObject:
		return false
	case ast.TypePrimitive:
		return t.Prim != ast.PrimStr
	case ast.TypePath:
		if entry, ok := e.Crate.ItemAt(t.Path); ok {
			if d, isStruct := entry.Data.(*ast.Struct); isStruct && len(d.Fields) > 0 {
				last := d.Fields[len(d.Fields)-1]
				if last.Type != nil {
					return e.isSized(last.Type)
				}
			}
		}
		return true
	default:
		return true
	}
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

func addNoOverflow(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

func mulNoOverflow(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}
