package expand

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/target"
)

func testExpander(t *testing.T, flags []string, values map[string]string) *Expander {
	t.Helper()
	cfg := target.NewCfgState()
	for _, f := range flags {
		cfg.SetFlag(f)
	}
	for k, v := range values {
		cfg.SetValue(k, v)
	}
	cfg.AddMultiValue("target_has_atomic", "8")
	cfg.AddMultiValue("target_has_atomic", "ptr")
	return &Expander{
		Crate: ast.NewCrate(),
		Cfg:   cfg,
		Sink:  diag.NewSinkTo(io.Discard),
		Reg:   NewRegistries(),
	}
}

func flagAttr(name string) ast.Attr { return ast.Attr{Name: name, Kind: ast.AttrWord} }

func listAttr(name string, items ...ast.Attr) ast.Attr {
	return ast.Attr{Name: name, Kind: ast.AttrKindList, Items: items}
}

func kvAttr(name, val string) ast.Attr {
	return ast.Attr{Name: name, Kind: ast.AttrNameValue, Value: val}
}

func TestCheckCfg(t *testing.T) {
	x := testExpander(t, []string{"unix", "foo"}, map[string]string{"target_os": "linux"})

	tests := []struct {
		name string
		mi   ast.Attr
		want bool
	}{
		// Identity and zero laws.
		{"all_empty_is_true", listAttr("all"), true},
		{"any_empty_is_false", listAttr("any"), false},

		{"flag_set", flagAttr("unix"), true},
		{"flag_unset", flagAttr("windows"), false},
		{"value_match", kvAttr("target_os", "linux"), true},
		{"value_mismatch", kvAttr("target_os", "windows"), false},
		{"multi_value_hit", kvAttr("target_has_atomic", "8"), true},
		{"multi_value_miss", kvAttr("target_has_atomic", "16"), false},

		{"not_inverts", listAttr("not", flagAttr("windows")), true},
		{"all_conjunction", listAttr("all", flagAttr("unix"), flagAttr("foo")), true},
		{"all_short_circuit", listAttr("all", flagAttr("unix"), flagAttr("nope")), false},
		{"any_disjunction", listAttr("any", flagAttr("nope"), flagAttr("unix")), true},
		{"nested", listAttr("all", listAttr("not", flagAttr("nope")), kvAttr("target_os", "linux")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckCfg(x.Sink, x.Cfg, span.Span{}, &tt.mi)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckCfgNotArity(t *testing.T) {
	x := testExpander(t, nil, nil)

	mi := listAttr("not")
	_, err := CheckCfg(x.Sink, x.Cfg, span.Span{}, &mi)
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.EXP005, rep.Code)

	mi = listAttr("not", flagAttr("a"), flagAttr("b"))
	_, err = CheckCfg(x.Sink, x.Cfg, span.Span{}, &mi)
	require.Error(t, err)
}

func TestCheckCfgUnknownFunction(t *testing.T) {
	x := testExpander(t, nil, nil)
	mi := listAttr("some", flagAttr("a"))
	_, err := CheckCfg(x.Sink, x.Cfg, span.Span{}, &mi)
	require.Error(t, err)
	rep, _ := diag.AsReport(err)
	assert.Equal(t, diag.EXP003, rep.Code)
}

func TestCheckCfgUnknownKeyWarns(t *testing.T) {
	x := testExpander(t, nil, nil)
	mi := kvAttr("mystery_key", "v")
	got, err := CheckCfg(x.Sink, x.Cfg, span.Span{}, &mi)
	require.NoError(t, err)
	assert.False(t, got)
	require.Len(t, x.Sink.Warnings, 1)
	assert.Equal(t, diag.EXP004, x.Sink.Warnings[0].Code)
}

func TestCheckCfgPure(t *testing.T) {
	x := testExpander(t, []string{"foo"}, nil)
	mi := listAttr("any", flagAttr("foo"), listAttr("not", flagAttr("foo")))
	first, err := CheckCfg(x.Sink, x.Cfg, span.Span{}, &mi)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := CheckCfg(x.Sink, x.Cfg, span.Span{}, &mi)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func cfgFn(name, flag string, not bool) *ast.ItemEntry {
	pred := flagAttr(flag)
	if not {
		pred = listAttr("not", flagAttr(flag))
	}
	return &ast.ItemEntry{
		Name:  name,
		Attrs: ast.AttrList{Attrs: []ast.Attr{listAttr("cfg", pred)}},
		Data:  &ast.Function{Body: &ast.Block{}},
	}
}

func TestCfgStripItems(t *testing.T) {
	x := testExpander(t, []string{"foo"}, nil)
	mod := x.Crate.Root
	mod.Items = []*ast.ItemEntry{
		cfgFn("a", "foo", false),
		cfgFn("b", "foo", true),
	}

	require.NoError(t, Run(x))
	assert.NotNil(t, mod.Items[0].Data, "a must survive cfg(foo)")
	assert.Nil(t, mod.Items[1].Data, "b must be tombstoned by cfg(not(foo))")

	// Re-running expansion is a no-op on the stripped module.
	require.NoError(t, Run(x))
	assert.NotNil(t, mod.Items[0].Data)
	assert.Nil(t, mod.Items[1].Data)
}

func TestCfgStripFieldAndVariant(t *testing.T) {
	x := testExpander(t, nil, nil)
	mod := x.Crate.Root
	st := &ast.Struct{
		Kind: ast.StructNamed,
		Fields: []ast.StructField{
			{Name: "keep", Type: ast.PrimType(ast.PrimU32)},
			{
				Name:  "drop",
				Type:  ast.PrimType(ast.PrimU32),
				Attrs: ast.AttrList{Attrs: []ast.Attr{listAttr("cfg", flagAttr("nope"))}},
			},
		},
	}
	en := &ast.Enum{
		Variants: []ast.EnumVariant{
			{Name: "Keep"},
			{Name: "Drop", Attrs: ast.AttrList{Attrs: []ast.Attr{listAttr("cfg", flagAttr("nope"))}}},
		},
	}
	mod.Items = []*ast.ItemEntry{
		{Name: "S", Data: st},
		{Name: "E", Data: en},
	}

	require.NoError(t, Run(x))
	assert.Equal(t, "keep", st.Fields[0].Name)
	assert.Equal(t, "", st.Fields[1].Name, "false cfg clears a named field's name")
	assert.Equal(t, "Keep", en.Variants[0].Name)
	assert.Equal(t, "", en.Variants[1].Name, "false cfg clears a variant's name")
}

func TestCfgAttrSplicing(t *testing.T) {
	x := testExpander(t, []string{"foo"}, nil)
	attrs := ast.AttrList{Attrs: []ast.Attr{
		listAttr("cfg_attr", flagAttr("foo"), flagAttr("inline")),
		listAttr("cfg_attr", flagAttr("nope"), flagAttr("cold")),
	}}
	require.NoError(t, applyCfgAttr(x.Sink, x.Cfg, span.Span{}, &attrs))
	require.Len(t, attrs.Attrs, 1)
	assert.Equal(t, "inline", attrs.Attrs[0].Name)
}

func TestLangDecoratorRecordsItem(t *testing.T) {
	x := testExpander(t, nil, nil)
	mod := x.Crate.Root
	mod.Items = []*ast.ItemEntry{{
		Name:  "Add",
		Attrs: ast.AttrList{Attrs: []ast.Attr{kvAttr("lang", "add")}},
		Data:  &ast.Trait{},
	}}
	require.NoError(t, Run(x))
	p := x.Crate.LangItem("add")
	require.NotNil(t, p)
	assert.Equal(t, "crate::Add", p.Key())
}

func TestTestDecorator(t *testing.T) {
	x := testExpander(t, nil, nil)
	x.Crate.TestHarness = true
	mod := x.Crate.Root
	mod.Items = []*ast.ItemEntry{{
		Name:  "check_math",
		Attrs: ast.AttrList{Attrs: []ast.Attr{flagAttr("test")}},
		Data:  &ast.Function{Body: &ast.Block{}},
	}}
	require.NoError(t, Run(x))
	require.Len(t, x.Crate.Tests, 1)
	assert.Equal(t, "crate::check_math", x.Crate.Tests[0].Key())

	// Without the harness the function is dropped instead.
	x2 := testExpander(t, nil, nil)
	x2.Crate.Root.Items = []*ast.ItemEntry{{
		Name:  "check_math",
		Attrs: ast.AttrList{Attrs: []ast.Attr{flagAttr("test")}},
		Data:  &ast.Function{Body: &ast.Block{}},
	}}
	require.NoError(t, Run(x2))
	assert.Nil(t, x2.Crate.Root.Items[0].Data)
}
