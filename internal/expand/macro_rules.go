package expand

import (
	"fmt"

	"github.com/sunholo/ferrous/internal/token"
)

// capture is one bound fragment variable: either a leaf token run or a
// list of per-iteration binding sets for a repetition.
type capture struct {
	tokens []token.Tree
	reps   []bindings
}

type bindings map[string]*capture

// matchRulesArm attempts to match one macro_rules arm pattern against
// the invocation's input. First failure aborts the arm; the caller tries
// the next one.
func matchRulesArm(pattern, input []token.Tree) (bindings, bool) {
	b := bindings{}
	pat := token.NewStream(pattern)
	in := token.NewStream(input)
	if !matchSeq(pat, in, b) {
		return nil, false
	}
	if !in.Done() {
		return nil, false
	}
	return b, true
}

// matchSeq consumes the whole pattern stream against the input
func matchSeq(pat, in *token.Stream, b bindings) bool {
	for {
		pt := pat.Next()
		if pt == nil {
			return true
		}

		// $name:frag, $(...)sep rep, or a literal $
		if pt.Leaf != nil && pt.Leaf.Kind == token.Punct && pt.Leaf.Text == "$" {
			next := pat.Peek()
			if next == nil {
				return false
			}
			if next.IsGroup() && next.Delim == token.OpenParen {
				pat.Next()
				if !matchRepetition(next.Children, pat, in, b) {
					return false
				}
				continue
			}
			if next.Leaf != nil && (next.Leaf.Kind == token.Ident || next.Leaf.Kind == token.Keyword) {
				pat.Next()
				name := next.Leaf.Text
				frag := "tt"
				if colon := pat.Peek(); colon != nil && colon.Leaf != nil && colon.Leaf.Text == ":" {
					pat.Next()
					ft := pat.Next()
					if ft == nil || ft.Leaf == nil {
						return false
					}
					frag = ft.Leaf.Text
				}
				cap, ok := matchFragment(frag, in, followToken(pat))
				if !ok {
					return false
				}
				b[name] = cap
				continue
			}
			return false
		}

		it := in.Next()
		if it == nil {
			return false
		}
		if !treesMatch(pt, it, b) {
			return false
		}
	}
}

// followToken returns the next concrete leaf in the pattern, used to
// stop greedy fragment consumption.
func followToken(pat *token.Stream) *token.Token {
	t := pat.Peek()
	if t != nil && t.Leaf != nil && t.Leaf.Kind == token.Punct && t.Leaf.Text != "$" {
		return t.Leaf
	}
	return nil
}

// matchFragment consumes one fragment of the given class from the input
func matchFragment(frag string, in *token.Stream, follow *token.Token) (*capture, bool) {
	first := in.Peek()
	if first == nil {
		return nil, false
	}
	switch frag {
	case "tt":
		return &capture{tokens: []token.Tree{*in.Next()}}, true
	case "ident":
		if first.Leaf == nil || first.Leaf.Kind != token.Ident {
			return nil, false
		}
		return &capture{tokens: []token.Tree{*in.Next()}}, true
	case "lifetime":
		if first.Leaf == nil || first.Leaf.Kind != token.Lifetime {
			return nil, false
		}
		return &capture{tokens: []token.Tree{*in.Next()}}, true
	case "literal":
		if first.Leaf == nil {
			return nil, false
		}
		switch first.Leaf.Kind {
		case token.IntLit, token.FloatLit, token.StrLit, token.CharLit, token.BoolLit:
			return &capture{tokens: []token.Tree{*in.Next()}}, true
		}
		return nil, false
	case "block":
		if !first.IsGroup() || first.Delim != token.OpenBrace {
			return nil, false
		}
		return &capture{tokens: []token.Tree{*in.Next()}}, true
	case "vis":
		// Zero or one `pub` (optionally with a restriction group)
		cap := &capture{}
		if first.Leaf != nil && first.Leaf.Text == "pub" {
			cap.tokens = append(cap.tokens, *in.Next())
			if g := in.Peek(); g != nil && g.IsGroup() && g.Delim == token.OpenParen {
				cap.tokens = append(cap.tokens, *in.Next())
			}
		}
		return cap, true
	case "path":
		cap := &capture{}
		if first.Leaf == nil || first.Leaf.Kind != token.Ident {
			return nil, false
		}
		cap.tokens = append(cap.tokens, *in.Next())
		for {
			sep := in.Peek()
			if sep == nil || sep.Leaf == nil || sep.Leaf.Text != "::" {
				break
			}
			cap.tokens = append(cap.tokens, *in.Next())
			seg := in.Next()
			if seg == nil || seg.Leaf == nil || seg.Leaf.Kind != token.Ident {
				return nil, false
			}
			cap.tokens = append(cap.tokens, *seg)
		}
		return cap, true
	case "expr", "ty", "pat", "item", "stmt", "meta":
		// Balanced-run consumption: take trees until the pattern's next
		// concrete token (or a top-level , / ;) would match.
		cap := &capture{}
		for {
			t := in.Peek()
			if t == nil {
				break
			}
			if len(cap.tokens) > 0 && t.Leaf != nil && t.Leaf.Kind == token.Punct {
				if follow != nil && t.Leaf.Text == follow.Text {
					break
				}
				if t.Leaf.Text == "," || t.Leaf.Text == ";" {
					break
				}
			}
			cap.tokens = append(cap.tokens, *in.Next())
		}
		if len(cap.tokens) == 0 {
			return nil, false
		}
		return cap, true
	default:
		return nil, false
	}
}

// matchRepetition handles $( body )sep rep. The separator is optional;
// rep is one of * + ?.
func matchRepetition(body []token.Tree, pat, in *token.Stream, b bindings) bool {
	var sep *token.Token
	repKind := ""
	t := pat.Next()
	if t == nil || t.Leaf == nil {
		return false
	}
	switch t.Leaf.Text {
	case "*", "+", "?":
		repKind = t.Leaf.Text
	default:
		sep = t.Leaf
		t = pat.Next()
		if t == nil || t.Leaf == nil {
			return false
		}
		repKind = t.Leaf.Text
	}

	names := repVarNames(body)
	group := &capture{}
	count := 0
	for {
		if repKind == "?" && count == 1 {
			break
		}
		mark := in.Mark()
		if count > 0 && sep != nil {
			st := in.Peek()
			if st == nil || st.Leaf == nil || st.Leaf.Text != sep.Text {
				break
			}
			in.Next()
		}
		iter := bindings{}
		if !matchSeq(token.NewStream(body), in, iter) {
			in.Reset(mark)
			break
		}
		group.reps = append(group.reps, iter)
		count++
	}
	if repKind == "+" && count == 0 {
		return false
	}
	// Bind every repetition variable to the group so transcription can
	// find its per-iteration values.
	for _, n := range names {
		b[n] = group
	}
	return true
}

// repVarNames collects the $names mentioned inside a repetition body
func repVarNames(body []token.Tree) []string {
	var names []string
	for i := 0; i < len(body); i++ {
		t := body[i]
		if t.IsGroup() {
			names = append(names, repVarNames(t.Children)...)
			continue
		}
		if t.Leaf.Kind == token.Punct && t.Leaf.Text == "$" && i+1 < len(body) {
			n := body[i+1]
			if n.Leaf != nil && (n.Leaf.Kind == token.Ident || n.Leaf.Kind == token.Keyword) {
				names = append(names, n.Leaf.Text)
			}
		}
	}
	return names
}

func treesMatch(a, b *token.Tree, binds bindings) bool {
	if a.IsGroup() != b.IsGroup() {
		return false
	}
	if a.IsGroup() {
		if a.Delim != b.Delim {
			return false
		}
		// Group contents may contain $vars; match via streams
		pat := token.NewStream(a.Children)
		in := token.NewStream(b.Children)
		return matchSeq(pat, in, binds) && in.Done()
	}
	return a.Leaf.Kind == b.Leaf.Kind && a.Leaf.Text == b.Leaf.Text
}

// transcribe substitutes captures into an arm body. $crate expands to a
// single `$crate` anchor token the reparser resolves against the macro's
// defining module.
func transcribe(body []token.Tree, b bindings) ([]token.Tree, error) {
	var out []token.Tree
	for i := 0; i < len(body); i++ {
		t := body[i]
		if t.IsGroup() {
			sub, err := transcribe(t.Children, b)
			if err != nil {
				return nil, err
			}
			out = append(out, token.GroupTree(t.Delim, sub))
			continue
		}
		if t.Leaf.Kind == token.Punct && t.Leaf.Text == "$" && i+1 < len(body) {
			next := body[i+1]
			if next.IsGroup() && next.Delim == token.OpenParen {
				// $( body )sep rep
				i++
				var sep *token.Token
				j := i + 1
				if j < len(body) && body[j].Leaf != nil && !isRepMarker(body[j].Leaf.Text) {
					sep = body[j].Leaf
					j++
				}
				if j >= len(body) || body[j].Leaf == nil || !isRepMarker(body[j].Leaf.Text) {
					return nil, fmt.Errorf("malformed repetition in macro body")
				}
				i = j
				group := findRepGroup(next.Children, b)
				for ri := 0; ri < len(group.reps); ri++ {
					if ri > 0 && sep != nil {
						out = append(out, token.LeafTree(*sep))
					}
					iterBinds := overlay(b, group.reps[ri])
					sub, err := transcribe(next.Children, iterBinds)
					if err != nil {
						return nil, err
					}
					out = append(out, sub...)
				}
				continue
			}
			if next.Leaf != nil && (next.Leaf.Kind == token.Ident || next.Leaf.Kind == token.Keyword) {
				i++
				name := next.Leaf.Text
				if name == "crate" {
					out = append(out,
						token.LeafTree(token.Token{Kind: token.Punct, Text: "$crate"}))
					continue
				}
				cap, ok := b[name]
				if !ok {
					return nil, fmt.Errorf("macro body references unbound $%s", name)
				}
				if cap.reps != nil {
					return nil, fmt.Errorf("$%s used outside its repetition", name)
				}
				out = append(out, cap.tokens...)
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func isRepMarker(s string) bool { return s == "*" || s == "+" || s == "?" }

// findRepGroup locates the repetition capture driving a transcribed loop
func findRepGroup(body []token.Tree, b bindings) *capture {
	for _, n := range repVarNames(body) {
		if c, ok := b[n]; ok && c.reps != nil {
			return c
		}
	}
	return &capture{}
}

// overlay layers one iteration's bindings over the outer set
func overlay(outer, iter bindings) bindings {
	merged := bindings{}
	for k, v := range outer {
		merged[k] = v
	}
	for k, v := range iter {
		merged[k] = v
	}
	return merged
}
