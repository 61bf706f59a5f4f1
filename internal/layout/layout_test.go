package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/target"
)

func engineOn(t *testing.T, triple string, crate *ast.Crate) *Engine {
	t.Helper()
	spec, ok := target.Preset(triple)
	if !ok {
		t.Fatalf("unknown preset %q", triple)
	}
	if crate == nil {
		crate = ast.NewCrate()
	}
	return New(spec, crate)
}

func mustRepr(t *testing.T, e *Engine, ty *ast.TypeRef) *Repr {
	t.Helper()
	r, err := e.Repr(ty)
	if err != nil {
		t.Fatalf("repr(%s): %v", ty, err)
	}
	if r == nil {
		t.Fatalf("repr(%s) unknown", ty)
	}
	return r
}

func TestPrimitiveLayouts(t *testing.T) {
	e := engineOn(t, "x86_64-linux-gnu", nil)
	tests := []struct {
		prim        ast.Primitive
		size, align uint64
	}{
		{ast.PrimBool, 1, 1},
		{ast.PrimU8, 1, 1},
		{ast.PrimI8, 1, 1},
		{ast.PrimU16, 2, 2},
		{ast.PrimU32, 4, 4},
		{ast.PrimChar, 4, 4},
		{ast.PrimU64, 8, 8},
		{ast.PrimU128, 16, 16},
		{ast.PrimUsize, 8, 8},
		{ast.PrimIsize, 8, 8},
		{ast.PrimF32, 4, 4},
		{ast.PrimF64, 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.prim.String(), func(t *testing.T) {
			r := mustRepr(t, e, ast.PrimType(tt.prim))
			if r.Size != tt.size || r.Align != tt.align {
				t.Errorf("%s = %d/%d, want %d/%d", tt.prim, r.Size, r.Align, tt.size, tt.align)
			}
		})
	}
}

func TestPrimitiveLayoutsI586(t *testing.T) {
	e := engineOn(t, "i586-linux-gnu", nil)

	// On x86, u64 and f64 are 4-byte aligned; i128 is emulated so it
	// takes u64's alignment.
	r := mustRepr(t, e, ast.PrimType(ast.PrimU64))
	if r.Size != 8 || r.Align != 4 {
		t.Errorf("u64 = %d/%d, want 8/4", r.Size, r.Align)
	}
	r = mustRepr(t, e, ast.PrimType(ast.PrimU128))
	if r.Align != 4 {
		t.Errorf("u128 align = %d, want 4", r.Align)
	}
	r = mustRepr(t, e, ast.PrimType(ast.PrimUsize))
	if r.Size != 4 {
		t.Errorf("usize size = %d, want 4", r.Size)
	}
}

func TestStrAndSliceAreUnsized(t *testing.T) {
	e := engineOn(t, "x86_64-linux-gnu", nil)

	r := mustRepr(t, e, ast.PrimType(ast.PrimStr))
	if !r.Unsized || r.Align != 1 {
		t.Errorf("str = %+v, want unsized align 1", r)
	}

	// Behind a borrow both become fat pointers: two words.
	r = mustRepr(t, e, ast.BorrowType(false, ast.PrimType(ast.PrimStr)))
	if r.Size != 16 || r.Align != 8 {
		t.Errorf("&str = %d/%d, want 16/8", r.Size, r.Align)
	}
	r = mustRepr(t, e, ast.BorrowType(false, ast.SliceType(ast.PrimType(ast.PrimU8))))
	if r.Size != 16 {
		t.Errorf("&[u8] size = %d, want 16", r.Size)
	}
	// A thin reference is one word.
	r = mustRepr(t, e, ast.BorrowType(false, ast.PrimType(ast.PrimU32)))
	if r.Size != 8 {
		t.Errorf("&u32 size = %d, want 8", r.Size)
	}
}

func structCrate(name string, attrs []ast.Attr, fields ...ast.StructField) *ast.Crate {
	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{{
		Name:  name,
		Attrs: ast.AttrList{Attrs: attrs},
		Data:  &ast.Struct{Kind: ast.StructNamed, Fields: fields},
	}}
	return crate
}

func namedField(name string, ty *ast.TypeRef) ast.StructField {
	return ast.StructField{Name: name, Type: ty}
}

func TestStructLayout(t *testing.T) {
	crate := structCrate("S", nil,
		namedField("a", ast.PrimType(ast.PrimU8)),
		namedField("b", ast.PrimType(ast.PrimU32)),
		namedField("c", ast.PrimType(ast.PrimU8)),
	)
	e := engineOn(t, "x86_64-linux-gnu", crate)
	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "S")))

	if r.Size != 12 || r.Align != 4 {
		t.Fatalf("S = %d/%d, want 12/4", r.Size, r.Align)
	}
	offsets := []uint64{r.Fields[0].Offset, r.Fields[1].Offset, r.Fields[2].Offset}
	if diff := cmp.Diff([]uint64{0, 4, 8}, offsets); diff != "" {
		t.Errorf("offsets (-want +got):\n%s", diff)
	}
}

func TestPackedStructLayout(t *testing.T) {
	crate := structCrate("P",
		[]ast.Attr{{Name: "repr", Kind: ast.AttrKindList, Items: []ast.Attr{{Name: "packed", Kind: ast.AttrWord}}}},
		namedField("a", ast.PrimType(ast.PrimU8)),
		namedField("b", ast.PrimType(ast.PrimU32)),
		namedField("c", ast.PrimType(ast.PrimU8)),
	)
	e := engineOn(t, "x86_64-linux-gnu", crate)
	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "P")))

	if r.Size != 6 || r.Align != 1 {
		t.Errorf("packed = %d/%d, want 6/1", r.Size, r.Align)
	}
	if r.Fields[1].Offset != 1 {
		t.Errorf("packed field b offset = %d, want 1", r.Fields[1].Offset)
	}
}

func TestEmptyAggregates(t *testing.T) {
	crate := structCrate("Empty", nil)
	crate.Root.Items = append(crate.Root.Items, &ast.ItemEntry{
		Name: "Unit",
		Data: &ast.Enum{Variants: []ast.EnumVariant{{Name: "Only"}}},
	})
	e := engineOn(t, "x86_64-linux-gnu", crate)

	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "Empty")))
	if r.Size != 0 || r.Align != 1 {
		t.Errorf("empty struct = %d/%d, want 0/1", r.Size, r.Align)
	}
	r = mustRepr(t, e, ast.UnitType())
	if r.Size != 0 || r.Align != 1 {
		t.Errorf("unit = %d/%d, want 0/1", r.Size, r.Align)
	}
	r = mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "Unit")))
	if r.Size != 0 || r.Align != 1 {
		t.Errorf("univariant enum = %d/%d, want 0/1", r.Size, r.Align)
	}
}

func TestTupleAndArrayLayout(t *testing.T) {
	e := engineOn(t, "x86_64-linux-gnu", nil)

	r := mustRepr(t, e, ast.TupleType(ast.PrimType(ast.PrimU8), ast.PrimType(ast.PrimU16)))
	if r.Size != 4 || r.Align != 2 {
		t.Errorf("(u8,u16) = %d/%d, want 4/2", r.Size, r.Align)
	}

	r = mustRepr(t, e, ast.ArrayType(ast.PrimType(ast.PrimU32), 5))
	if r.Size != 20 || r.Align != 4 {
		t.Errorf("[u32;5] = %d/%d, want 20/4", r.Size, r.Align)
	}
}

func TestUnionLayout(t *testing.T) {
	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{{
		Name: "U",
		Data: &ast.Union{Fields: []ast.StructField{
			namedField("a", ast.PrimType(ast.PrimU8)),
			namedField("b", ast.PrimType(ast.PrimU64)),
		}},
	}}
	e := engineOn(t, "x86_64-linux-gnu", crate)
	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "U")))

	if r.Size != 8 || r.Align != 8 {
		t.Errorf("U = %d/%d, want 8/8", r.Size, r.Align)
	}
	for i, f := range r.Fields {
		if f.Offset != 0 {
			t.Errorf("union field %d offset = %d, want 0", i, f.Offset)
		}
	}
}

func TestNicheEnumLayout(t *testing.T) {
	// enum E { A, B(&u32) } — the reference provides the niche.
	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{{
		Name: "E",
		Data: &ast.Enum{Variants: []ast.EnumVariant{
			{Name: "A"},
			{Name: "B", Kind: ast.StructTupleKind, Fields: []ast.StructField{
				{Type: ast.BorrowType(false, ast.PrimType(ast.PrimU32))},
			}},
		}},
	}}
	e := engineOn(t, "x86_64-linux-gnu", crate)
	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "E")))

	if r.Variant != VariantNonZero {
		t.Fatalf("variant mode = %v, want NonZero", r.Variant)
	}
	if r.Size != 8 || r.Align != 8 {
		t.Errorf("E = %d/%d, want 8/8 (pointer-sized)", r.Size, r.Align)
	}
	if diff := cmp.Diff([]int{1, 0}, r.NichePath); diff != "" {
		t.Errorf("niche path (-want +got):\n%s", diff)
	}
}

func TestNicheThroughNonZeroStruct(t *testing.T) {
	// The non_zero lang item marks the wrapper as never-zero.
	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{
		{
			Name: "NonZeroU32",
			Data: &ast.Struct{Kind: ast.StructTupleKind, Fields: []ast.StructField{
				{Type: ast.PrimType(ast.PrimU32)},
			}},
		},
		{
			Name: "E",
			Data: &ast.Enum{Variants: []ast.EnumVariant{
				{Name: "None"},
				{Name: "Some", Kind: ast.StructTupleKind, Fields: []ast.StructField{
					{Type: ast.PathType(ast.AbsolutePath("", "NonZeroU32"))},
				}},
			}},
		},
	}
	crate.LangItems["non_zero"] = ast.AbsolutePath("", "NonZeroU32")

	e := engineOn(t, "x86_64-linux-gnu", crate)
	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "E")))
	if r.Variant != VariantNonZero {
		t.Fatalf("variant mode = %v, want NonZero", r.Variant)
	}
	if r.Size != 4 {
		t.Errorf("size = %d, want 4", r.Size)
	}
	if diff := cmp.Diff([]int{1, 0, 0}, r.NichePath); diff != "" {
		t.Errorf("niche path (-want +got):\n%s", diff)
	}
}

func TestTaggedEnumLayout(t *testing.T) {
	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{{
		Name: "E",
		Data: &ast.Enum{Variants: []ast.EnumVariant{
			{Name: "X", Kind: ast.StructTupleKind, Fields: []ast.StructField{{Type: ast.PrimType(ast.PrimU32)}}},
			{Name: "Y", Kind: ast.StructTupleKind, Fields: []ast.StructField{{Type: ast.PrimType(ast.PrimU8)}}},
		}},
	}}
	e := engineOn(t, "x86_64-linux-gnu", crate)
	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "E")))

	if r.Variant != VariantValues {
		t.Fatalf("variant mode = %v, want Values", r.Variant)
	}
	// Data area 4 bytes, u8 tag after it, rounded to align 4 → 8.
	if r.Size != 8 || r.Align != 4 {
		t.Errorf("E = %d/%d, want 8/4", r.Size, r.Align)
	}
	tag := r.Fields[r.TagField]
	if tag.Offset != 4 {
		t.Errorf("tag offset = %d, want 4", tag.Offset)
	}
	// Invariant: data + tag fits inside the rounded size.
	if tag.Offset+1 > r.Size {
		t.Error("tag lies outside the enum")
	}
}

func TestCLikeEnumLayout(t *testing.T) {
	disc := func(v uint64) ast.Expr { return &ast.Literal{Kind: ast.LitInt, IntVal: v} }

	crate := ast.NewCrate()
	crate.Root.Items = []*ast.ItemEntry{
		{
			Name: "Small",
			Data: &ast.Enum{Variants: []ast.EnumVariant{
				{Name: "A"}, {Name: "B"}, {Name: "C"},
			}},
		},
		{
			Name: "Wide",
			Data: &ast.Enum{Variants: []ast.EnumVariant{
				{Name: "A", Disc: disc(0)}, {Name: "B", Disc: disc(70000)},
			}},
		},
		{
			Name:  "Fixed",
			Attrs: ast.AttrList{Attrs: []ast.Attr{{Name: "repr", Kind: ast.AttrKindList, Items: []ast.Attr{{Name: "u16", Kind: ast.AttrWord}}}}},
			Data: &ast.Enum{Variants: []ast.EnumVariant{
				{Name: "A"}, {Name: "B"},
			}},
		},
	}
	e := engineOn(t, "x86_64-linux-gnu", crate)

	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "Small")))
	if r.Size != 1 {
		t.Errorf("Small size = %d, want 1 (i8 discriminant)", r.Size)
	}
	if diff := cmp.Diff([]uint64{0, 1, 2}, r.TagValues); diff != "" {
		t.Errorf("Small tags (-want +got):\n%s", diff)
	}

	r = mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "Wide")))
	if r.Size != 4 {
		t.Errorf("Wide size = %d, want 4 (i32 discriminant)", r.Size)
	}

	r = mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "Fixed")))
	if r.Size != 2 {
		t.Errorf("Fixed size = %d, want 2 (repr(u16))", r.Size)
	}
}

func TestUnsizedFieldNotLastFatal(t *testing.T) {
	crate := structCrate("Bad",
		nil,
		namedField("s", ast.PrimType(ast.PrimStr)),
		namedField("n", ast.PrimType(ast.PrimU8)),
	)
	e := engineOn(t, "x86_64-linux-gnu", crate)
	_, err := e.Repr(ast.PathType(ast.AbsolutePath("", "Bad")))
	if err == nil {
		t.Fatal("unsized field in non-last position must fail")
	}
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.LAY001 {
		t.Errorf("error = %v, want %s", err, diag.LAY001)
	}
}

func TestUnsizedLastFieldPropagates(t *testing.T) {
	crate := structCrate("Tail",
		nil,
		namedField("n", ast.PrimType(ast.PrimU8)),
		namedField("s", ast.PrimType(ast.PrimStr)),
	)
	e := engineOn(t, "x86_64-linux-gnu", crate)
	r := mustRepr(t, e, ast.PathType(ast.AbsolutePath("", "Tail")))
	if !r.Unsized {
		t.Error("a struct with an unsized tail is unsized")
	}
}

func TestGenericTypeNotKnown(t *testing.T) {
	e := engineOn(t, "x86_64-linux-gnu", nil)
	r, err := e.Repr(ast.GenericType(0, "T"))
	if err != nil {
		t.Fatalf("generic layout must not error: %v", err)
	}
	if r != nil {
		t.Error("generic layout must be unknown")
	}
}

func TestLayoutCaching(t *testing.T) {
	e := engineOn(t, "x86_64-linux-gnu", nil)
	ty := ast.TupleType(ast.PrimType(ast.PrimU8), ast.PrimType(ast.PrimU64))
	first := mustRepr(t, e, ty)
	second := mustRepr(t, e, ty)
	if first != second {
		t.Error("repeat queries must return the cached repr")
	}
}
