package expand

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/token"
)

// parseMetaItem reads one meta item (ident, ident(list), ident = "str")
// from a token stream. Shared by cfg! and the cfg/cfg_attr decorators
// when their payload arrives as raw tokens.
func parseMetaItem(s *token.Stream, sp span.Span) (*ast.Attr, error) {
	t := s.Next()
	if t == nil || t.Leaf == nil || t.Leaf.Kind != token.Ident {
		return nil, diag.Errorf(phase, diag.EXP006, sp, "expected identifier in meta item")
	}
	mi := &ast.Attr{Name: t.Leaf.Text, Kind: ast.AttrWord, Span: sp}

	next := s.Peek()
	if next == nil {
		return mi, nil
	}
	if next.IsGroup() && next.Delim == token.OpenParen {
		s.Next()
		mi.Kind = ast.AttrKindList
		inner := token.NewStream(next.Children)
		for !inner.Done() {
			sub, err := parseMetaItem(inner, sp)
			if err != nil {
				return nil, err
			}
			mi.Items = append(mi.Items, *sub)
			if comma := inner.Peek(); comma != nil && comma.Leaf != nil && comma.Leaf.Text == "," {
				inner.Next()
			}
		}
		return mi, nil
	}
	if next.Leaf != nil && next.Leaf.Text == "=" {
		s.Next()
		val := s.Next()
		if val == nil || val.Leaf == nil || val.Leaf.Kind != token.StrLit {
			return nil, diag.Errorf(phase, diag.EXP006, sp, "expected string after `=` in meta item")
		}
		mi.Kind = ast.AttrNameValue
		mi.Value = val.Leaf.Text
	}
	return mi, nil
}

func boolTokens(v bool) []token.Tree {
	text := "false"
	if v {
		text = "true"
	}
	return []token.Tree{token.LeafTree(token.Token{Kind: token.BoolLit, Text: text})}
}

func strToken(v string, pos span.Pos) []token.Tree {
	return []token.Tree{token.LeafTree(token.Token{Kind: token.StrLit, Text: v, Pos: pos})}
}

func intToken(v int) []token.Tree {
	return []token.Tree{token.LeafTree(token.Token{Kind: token.IntLit, Text: strconv.Itoa(v)})}
}

// cfgMacro implements cfg!(predicate) → true/false
type cfgMacro struct{}

func (cfgMacro) ExpandEarly() bool { return true }

func (cfgMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	if ident != "" {
		return nil, x.errorAt(diag.EXP006, sp, "cfg! doesn't take an identifier")
	}
	mi, err := parseMetaItem(token.NewStream(input), sp)
	if err != nil {
		return nil, x.Sink.Fatal(mustReport(err))
	}
	ok, err := CheckCfg(x.Sink, x.Cfg, sp, mi)
	if err != nil {
		return nil, err
	}
	return boolTokens(ok), nil
}

func mustReport(err error) *diag.Report {
	if r, ok := diag.AsReport(err); ok {
		return r
	}
	return diag.New(phase, diag.EXP006, span.Span{}, "%s", err.Error())
}

// concatMacro implements concat!(a, b, ...) → one string literal
type concatMacro struct{}

func (concatMacro) ExpandEarly() bool { return true }

func (concatMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	var b strings.Builder
	for _, t := range input {
		if t.Leaf == nil {
			return nil, x.errorAt(diag.EXP006, sp, "concat! expects literal arguments")
		}
		switch t.Leaf.Kind {
		case token.StrLit, token.IntLit, token.FloatLit, token.BoolLit, token.CharLit:
			b.WriteString(t.Leaf.Text)
		case token.Punct:
			if t.Leaf.Text != "," {
				return nil, x.errorAt(diag.EXP006, sp, "unexpected %q in concat!", t.Leaf.Text)
			}
		default:
			return nil, x.errorAt(diag.EXP006, sp, "concat! expects literal arguments")
		}
	}
	return strToken(b.String(), sp.Start), nil
}

// stringifyMacro renders its input tokens back to text
type stringifyMacro struct{}

func (stringifyMacro) ExpandEarly() bool { return true }

func (stringifyMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	return strToken(token.Render(input), sp.Start), nil
}

type lineMacro struct{}

func (lineMacro) ExpandEarly() bool { return true }
func (lineMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	return intToken(sp.Start.Line), nil
}

type columnMacro struct{}

func (columnMacro) ExpandEarly() bool { return true }
func (columnMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	return intToken(sp.Start.Column), nil
}

type fileMacro struct{}

func (fileMacro) ExpandEarly() bool { return true }
func (fileMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	return strToken(sp.Start.File, sp.Start), nil
}

// envMacro implements env! (fatal on missing) and option_env!
type envMacro struct {
	required bool
}

func (envMacro) ExpandEarly() bool { return true }

func (m *envMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	if len(input) == 0 || input[0].Leaf == nil || input[0].Leaf.Kind != token.StrLit {
		return nil, x.errorAt(diag.EXP006, sp, "env! expects a string literal")
	}
	name := input[0].Leaf.Text
	lookup := x.Env
	if lookup == nil {
		lookup = os.LookupEnv
	}
	val, ok := lookup(name)
	if !ok {
		if m.required {
			return nil, x.errorAt(diag.EXP006, sp, "environment variable %q not defined", name)
		}
		// option_env! → None
		return []token.Tree{token.LeafTree(token.Token{Kind: token.Ident, Text: "None"})}, nil
	}
	if m.required {
		return strToken(val, sp.Start), nil
	}
	return []token.Tree{
		token.LeafTree(token.Token{Kind: token.Ident, Text: "Some"}),
		token.GroupTree(token.OpenParen, strToken(val, sp.Start)),
	}, nil
}

// includeStrMacro implements include_str!("path")
type includeStrMacro struct{}

func (includeStrMacro) ExpandEarly() bool { return true }

func (includeStrMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	if len(input) == 0 || input[0].Leaf == nil || input[0].Leaf.Kind != token.StrLit {
		return nil, x.errorAt(diag.EXP006, sp, "include_str! expects a string literal path")
	}
	read := x.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(input[0].Leaf.Text)
	if err != nil {
		return nil, x.errorAt(diag.EXP006, sp, "include_str!: %v", err)
	}
	return strToken(string(data), sp.Start), nil
}

// compileErrorMacro aborts with the given message in the late pass
type compileErrorMacro struct{}

func (compileErrorMacro) ExpandEarly() bool { return false }

func (compileErrorMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	msg := token.Render(input)
	return nil, x.errorAt(diag.EXP006, sp, "compile_error!: %s", msg)
}

// formatArgsMacro validates the format string and re-emits the argument
// expressions as a tuple the backends consume. `{}` placeholders must be
// matched by arguments; named placeholders look up `name = expr` pairs.
type formatArgsMacro struct{}

func (formatArgsMacro) ExpandEarly() bool { return false }

func (formatArgsMacro) Expand(x *Expander, sp span.Span, ident string, input []token.Tree, mod *ast.Module) ([]token.Tree, error) {
	if len(input) == 0 || input[0].Leaf == nil || input[0].Leaf.Kind != token.StrLit {
		return nil, x.errorAt(diag.EXP006, sp, "format_args! expects a format string")
	}
	format := input[0].Leaf.Text
	positional, named, err := splitFormatArgs(input[1:])
	if err != nil {
		return nil, x.errorAt(diag.EXP006, sp, "format_args!: %v", err)
	}

	needed, names, err := countPlaceholders(format)
	if err != nil {
		return nil, x.errorAt(diag.EXP006, sp, "format_args!: %v", err)
	}
	if needed > len(positional) {
		return nil, x.errorAt(diag.EXP006, sp,
			"format string needs %d positional arguments, %d supplied", needed, len(positional))
	}
	for _, n := range names {
		if _, ok := named[n]; !ok {
			return nil, x.errorAt(diag.EXP006, sp, "no argument named %q", n)
		}
	}

	// Re-emit as (format, arg0, arg1, ...) — the downstream lowering
	// knows this tuple shape.
	out := strToken(format, sp.Start)
	for _, arg := range positional {
		out = append(out, token.LeafTree(token.Token{Kind: token.Punct, Text: ","}))
		out = append(out, arg...)
	}
	return []token.Tree{token.GroupTree(token.OpenParen, out)}, nil
}

// splitFormatArgs splits comma-separated argument token runs, peeling
// `name = expr` pairs into the named map.
func splitFormatArgs(trees []token.Tree) (positional [][]token.Tree, named map[string][]token.Tree, err error) {
	named = map[string][]token.Tree{}
	var cur []token.Tree
	flush := func() {
		if len(cur) == 0 {
			return
		}
		if len(cur) >= 3 && cur[0].Leaf != nil && cur[0].Leaf.Kind == token.Ident &&
			cur[1].Leaf != nil && cur[1].Leaf.Text == "=" {
			named[cur[0].Leaf.Text] = cur[2:]
		} else {
			positional = append(positional, cur)
		}
		cur = nil
	}
	for _, t := range trees {
		if t.Leaf != nil && t.Leaf.Kind == token.Punct && t.Leaf.Text == "," {
			flush()
			continue
		}
		cur = append(cur, t)
	}
	flush()
	return positional, named, nil
}

// countPlaceholders scans a format string for `{}` placeholders,
// returning the positional count and the named references.
func countPlaceholders(format string) (int, []string, error) {
	count := 0
	var names []string
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '{':
			if i+1 < len(format) && format[i+1] == '{' {
				i++
				continue
			}
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return 0, nil, fmt.Errorf("unterminated placeholder")
			}
			spec := format[i+1 : i+end]
			if cut := strings.IndexByte(spec, ':'); cut >= 0 {
				spec = spec[:cut]
			}
			if spec == "" {
				count++
			} else if _, err := strconv.Atoi(spec); err == nil {
				// explicit positional index
				count++
			} else {
				names = append(names, spec)
			}
			i += end
		case '}':
			if i+1 < len(format) && format[i+1] == '}' {
				i++
				continue
			}
			return 0, nil, fmt.Errorf("unmatched `}` in format string")
		}
	}
	return count, names, nil
}
