package layout

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// enumRepr picks one of the three enum layouts: niche-optimised,
// general tagged, or C-like value-only.
func (e *Engine) enumRepr(entry *ast.ItemEntry, d *ast.Enum, t *ast.TypeRef) (*Repr, error) {
	live := liveVariants(d)
	if len(live) == 0 {
		return &Repr{Size: 0, Align: 1, Variant: VariantNone}, nil
	}

	if !enumHasData(d) {
		if len(live) == 1 {
			// A single fieldless variant needs no discriminant.
			return &Repr{Size: 0, Align: 1, Variant: VariantValues, TagValues: []uint64{0}}, nil
		}
		return e.cLikeEnumRepr(entry, d, live)
	}

	if r, ok, err := e.nicheEnumRepr(d, t, live); err != nil || ok {
		return r, err
	}

	return e.taggedEnumRepr(d, t, live)
}

func liveVariants(d *ast.Enum) []int {
	var out []int
	for i := range d.Variants {
		if d.Variants[i].Name != "" {
			out = append(out, i)
		}
	}
	return out
}

func enumHasData(d *ast.Enum) bool {
	for i := range d.Variants {
		if d.Variants[i].Name == "" {
			continue
		}
		for _, f := range d.Variants[i].Fields {
			if f.Type != nil {
				return true
			}
		}
	}
	return false
}

// nicheEnumRepr applies the two-variant NonZero optimisation: one unit
// variant and one data variant whose payload contains a never-zero
// slot. The tag lives in the niche; all-zero bytes encode the unit
// variant.
func (e *Engine) nicheEnumRepr(d *ast.Enum, t *ast.TypeRef, live []int) (*Repr, bool, error) {
	if len(live) != 2 {
		return nil, false, nil
	}
	unitIdx, dataIdx := -1, -1
	for _, vi := range live {
		if variantIsUnit(&d.Variants[vi]) {
			unitIdx = vi
		} else {
			dataIdx = vi
		}
	}
	if unitIdx < 0 || dataIdx < 0 {
		return nil, false, nil
	}

	args := pathArgsOf(t)
	dataVariant := &d.Variants[dataIdx]
	path := e.findNichePath(dataVariant, t, args)
	if path == nil {
		return nil, false, nil
	}

	// The enum is exactly the data variant's layout.
	fields, err := e.substVariantFields(dataVariant, t, args)
	if err != nil {
		return nil, false, err
	}
	vr, err := e.aggregateRepr(fields, reprDefault)
	if err != nil || vr == nil {
		return nil, vr == nil && err == nil, err
	}

	r := &Repr{
		Size:      vr.Size,
		Align:     vr.Align,
		Fields:    vr.Fields,
		Variant:   VariantNonZero,
		NichePath: append([]int{dataIdx}, path...),
	}
	return r, true, nil
}

func variantIsUnit(v *ast.EnumVariant) bool {
	for _, f := range v.Fields {
		if f.Type != nil {
			return false
		}
	}
	return true
}

// findNichePath descends the data variant's fields looking for a slot
// whose type can never be all-zero: a borrow, a function pointer, or a
// struct carrying the non_zero lang mark. The returned path indexes
// fields from the variant inward.
func (e *Engine) findNichePath(v *ast.EnumVariant, self *ast.TypeRef, args []*ast.TypeRef) []int {
	for fi, f := range v.Fields {
		if f.Type == nil {
			continue
		}
		if p := e.nichePathInType(substGenerics(f.Type, self, args), 0); p != nil {
			return append([]int{fi}, p...)
		}
	}
	return nil
}

func (e *Engine) nichePathInType(t *ast.TypeRef, depth int) []int {
	if t == nil || depth > 8 {
		return nil
	}
	switch t.Kind {
	case ast.TypeBorrow, ast.TypeFunction:
		return []int{}
	case ast.TypePath:
		entry, ok := e.Crate.ItemAt(t.Path)
		if !ok {
			return nil
		}
		def, isStruct := entry.Data.(*ast.Struct)
		if !isStruct {
			return nil
		}
		if nz := e.Crate.LangItem("non_zero"); nz != nil && t.Path.Key() == nz.Key() {
			return []int{0}
		}
		args := pathArgsOf(t)
		for fi, f := range def.Fields {
			if f.Type == nil {
				continue
			}
			if p := e.nichePathInType(substGenerics(f.Type, t, args), depth+1); p != nil {
				return append([]int{fi}, p...)
			}
		}
		return nil
	default:
		return nil
	}
}

func (e *Engine) substVariantFields(v *ast.EnumVariant, self *ast.TypeRef, args []*ast.TypeRef) ([]ast.StructField, error) {
	out := make([]ast.StructField, 0, len(v.Fields))
	for _, f := range v.Fields {
		if f.Type == nil {
			continue
		}
		out = append(out, ast.StructField{Name: f.Name, Type: substGenerics(f.Type, self, args)})
	}
	return out, nil
}

// taggedEnumRepr lays out each variant as a struct sharing a common
// start, then appends a tag just wide enough for the variant count.
func (e *Engine) taggedEnumRepr(d *ast.Enum, t *ast.TypeRef, live []int) (*Repr, error) {
	args := pathArgsOf(t)
	var maxSize, maxAlign uint64
	maxAlign = 1

	for _, vi := range live {
		fields, err := e.substVariantFields(&d.Variants[vi], t, args)
		if err != nil {
			return nil, err
		}
		vr, err := e.aggregateRepr(fields, reprDefault)
		if err != nil {
			return nil, err
		}
		if vr == nil {
			return nil, nil
		}
		if vr.Size > maxSize {
			maxSize = vr.Size
		}
		if vr.Align > maxAlign {
			maxAlign = vr.Align
		}
	}

	// Tag type: u8 covers up to 256 variants, then u16.
	var tagRepr *Repr
	var tagType *ast.TypeRef
	if len(live) <= 256 {
		tagType = ast.PrimType(ast.PrimU8)
	} else {
		tagType = ast.PrimType(ast.PrimU16)
	}
	tagRepr, err := e.Repr(tagType)
	if err != nil {
		return nil, err
	}
	if tagRepr.Align > maxAlign {
		maxAlign = tagRepr.Align
	}

	tagOffset := alignUp(maxSize, tagRepr.Align)
	total, ok := addNoOverflow(tagOffset, tagRepr.Size)
	if !ok {
		return nil, diag.WrapReport(diag.New(phase, diag.LAY002, span.Span{},
			"enum size overflows"))
	}
	total = alignUp(total, maxAlign)

	r := &Repr{
		Size:    total,
		Align:   maxAlign,
		Variant: VariantValues,
		Fields:  []FieldSlot{{Offset: tagOffset, Type: tagType}},
	}
	r.TagField = 0
	for i := range live {
		r.TagValues = append(r.TagValues, uint64(i))
	}
	return r, nil
}

// cLikeEnumRepr lays out a data-free enum: the repr attribute selects
// the discriminant type, with `rust` picking the smallest signed type
// that holds every declared discriminant.
func (e *Engine) cLikeEnumRepr(entry *ast.ItemEntry, d *ast.Enum, live []int) (*Repr, error) {
	discs := make([]int64, 0, len(live))
	next := int64(0)
	for _, vi := range live {
		v := &d.Variants[vi]
		if lit, ok := v.Disc.(*ast.Literal); ok && lit.Kind == ast.LitInt {
			next = int64(lit.IntVal)
		}
		discs = append(discs, next)
		next++
	}

	prim := e.cLikeDiscType(entry, discs)
	pr, err := e.primitiveRepr(prim)
	if err != nil {
		return nil, err
	}
	r := &Repr{
		Size:    pr.Size,
		Align:   pr.Align,
		Variant: VariantValues,
		Fields:  []FieldSlot{{Offset: 0, Type: ast.PrimType(prim)}},
	}
	for _, dv := range discs {
		r.TagValues = append(r.TagValues, uint64(dv))
	}
	return r, nil
}

func (e *Engine) cLikeDiscType(entry *ast.ItemEntry, discs []int64) ast.Primitive {
	if a := entry.Attrs.Lookup("repr"); a != nil {
		for _, item := range a.Items {
			if item.Name == "C" || item.Name == "rust" {
				continue
			}
			if p, ok := ast.PrimitiveByName(item.Name); ok {
				return p
			}
		}
	}

	// Default: smallest signed type holding every discriminant.
	var lo, hi int64
	for _, d := range discs {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	switch {
	case lo >= -128 && hi <= 127:
		return ast.PrimI8
	case lo >= -32768 && hi <= 32767:
		return ast.PrimI16
	case lo >= -(1<<31) && hi <= (1<<31)-1:
		return ast.PrimI32
	default:
		return ast.PrimI64
	}
}
