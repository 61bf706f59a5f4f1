package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/token"
)

func strTok(s string) token.Tree {
	return token.LeafTree(token.Token{Kind: token.StrLit, Text: s})
}

func TestCfgMacro(t *testing.T) {
	x := testExpander(t, []string{"unix"}, nil)
	m := &cfgMacro{}

	out, err := m.Expand(x, span.Span{}, "", []token.Tree{ident("unix")}, x.Crate.Root)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "true", out[0].Leaf.Text)

	out, err = m.Expand(x, span.Span{}, "", []token.Tree{ident("windows")}, x.Crate.Root)
	require.NoError(t, err)
	assert.Equal(t, "false", out[0].Leaf.Text)

	_, err = m.Expand(x, span.Span{}, "oops", []token.Tree{ident("unix")}, x.Crate.Root)
	assert.Error(t, err, "cfg! does not take an identifier")
}

func TestConcatMacro(t *testing.T) {
	x := testExpander(t, nil, nil)
	m := &concatMacro{}
	out, err := m.Expand(x, span.Span{}, "", []token.Tree{
		strTok("foo"), punct(","), intLit("42"), punct(","), strTok("bar"),
	}, x.Crate.Root)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "foo42bar", out[0].Leaf.Text)
}

func TestStringifyMacro(t *testing.T) {
	x := testExpander(t, nil, nil)
	m := &stringifyMacro{}
	out, err := m.Expand(x, span.Span{}, "", []token.Tree{
		ident("a"), punct("+"), ident("b"),
	}, x.Crate.Root)
	require.NoError(t, err)
	assert.Equal(t, "a + b", out[0].Leaf.Text)
}

func TestEnvMacro(t *testing.T) {
	x := testExpander(t, nil, nil)
	x.Env = func(k string) (string, bool) {
		if k == "PRESENT" {
			return "value", true
		}
		return "", false
	}

	required := &envMacro{required: true}
	out, err := required.Expand(x, span.Span{}, "", []token.Tree{strTok("PRESENT")}, x.Crate.Root)
	require.NoError(t, err)
	assert.Equal(t, "value", out[0].Leaf.Text)

	_, err = required.Expand(x, span.Span{}, "", []token.Tree{strTok("MISSING")}, x.Crate.Root)
	assert.Error(t, err, "env! on a missing variable is fatal")

	optional := &envMacro{}
	out, err = optional.Expand(x, span.Span{}, "", []token.Tree{strTok("MISSING")}, x.Crate.Root)
	require.NoError(t, err)
	assert.Equal(t, "None", out[0].Leaf.Text, "option_env! yields None instead")
}

func TestFormatArgsValidation(t *testing.T) {
	x := testExpander(t, nil, nil)
	m := &formatArgsMacro{}

	// Balanced positional arguments succeed.
	_, err := m.Expand(x, span.Span{}, "", []token.Tree{
		strTok("{} and {}"), punct(","), ident("a"), punct(","), ident("b"),
	}, x.Crate.Root)
	require.NoError(t, err)

	// Too few arguments fail.
	_, err = m.Expand(x, span.Span{}, "", []token.Tree{
		strTok("{} and {}"), punct(","), ident("a"),
	}, x.Crate.Root)
	assert.Error(t, err)

	// Named placeholders require a name = expr pair.
	_, err = m.Expand(x, span.Span{}, "", []token.Tree{
		strTok("{name}"), punct(","), ident("name"), punct("="), ident("v"),
	}, x.Crate.Root)
	require.NoError(t, err)

	_, err = m.Expand(x, span.Span{}, "", []token.Tree{strTok("{name}")}, x.Crate.Root)
	assert.Error(t, err)

	// Escaped braces are not placeholders.
	_, err = m.Expand(x, span.Span{}, "", []token.Tree{strTok("{{literal}}")}, x.Crate.Root)
	require.NoError(t, err)

	// An unterminated placeholder is malformed.
	_, err = m.Expand(x, span.Span{}, "", []token.Tree{strTok("{oops")}, x.Crate.Root)
	assert.Error(t, err)
}

func TestLineFileMacros(t *testing.T) {
	x := testExpander(t, nil, nil)
	sp := span.New("src/lib.rs", 42, 7)

	out, err := (&lineMacro{}).Expand(x, sp, "", nil, x.Crate.Root)
	require.NoError(t, err)
	assert.Equal(t, "42", out[0].Leaf.Text)

	out, err = (&fileMacro{}).Expand(x, sp, "", nil, x.Crate.Root)
	require.NoError(t, err)
	assert.Equal(t, "src/lib.rs", out[0].Leaf.Text)
}
