// Package expand implements macro and attribute expansion: cfg
// evaluation, decorator dispatch, built-in macros, macro_rules matching,
// and the syntactic desugarings. It rewrites the crate in place over an
// early and a late pass.
package expand

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/target"
)

const phase = "expand"

// CheckCfg evaluates a cfg predicate tree against the cfg state.
// Evaluation is pure: the same meta item always yields the same answer.
func CheckCfg(sink *diag.Sink, cfg *target.CfgState, sp span.Span, mi *ast.Attr) (bool, error) {
	switch mi.Kind {
	case ast.AttrKindList:
		// Must be any/all/not (a bare `cfg` list re-enters as any).
		switch mi.Name {
		case "any", "cfg":
			for i := range mi.Items {
				ok, err := CheckCfg(sink, cfg, sp, &mi.Items[i])
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		case "all":
			for i := range mi.Items {
				ok, err := CheckCfg(sink, cfg, sp, &mi.Items[i])
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		case "not":
			if len(mi.Items) != 1 {
				return false, sink.Fatal(diag.New(phase, diag.EXP005, sp,
					"cfg(not(...)) takes exactly one argument, got %d", len(mi.Items)))
			}
			ok, err := CheckCfg(sink, cfg, sp, &mi.Items[0])
			if err != nil {
				return false, err
			}
			return !ok, nil
		default:
			return false, sink.Fatal(diag.New(phase, diag.EXP003, sp,
				"unknown cfg() function %q", mi.Name))
		}

	case ast.AttrNameValue:
		if v, ok := cfg.LookupValue(mi.Name); ok {
			return v == mi.Value, nil
		}
		if fn, ok := cfg.LookupValueFn(mi.Name); ok {
			return fn(mi.Value), nil
		}
		sink.Warn(diag.New(phase, diag.EXP004, sp, "unknown cfg() param %q", mi.Name))
		return false, nil

	default:
		return cfg.HasFlag(mi.Name), nil
	}
}

// applyCfgAttr rewrites an attribute list in place, evaluating every
// #[cfg_attr(pred, attr)] entry: a true predicate splices the payload
// attribute in, a false one drops the entry.
func applyCfgAttr(sink *diag.Sink, cfg *target.CfgState, sp span.Span, attrs *ast.AttrList) error {
	out := attrs.Attrs[:0]
	for _, a := range attrs.Attrs {
		if a.Name != "cfg_attr" {
			out = append(out, a)
			continue
		}
		if len(a.Items) < 2 {
			return sink.Fatal(diag.New(phase, diag.EXP006, sp,
				"cfg_attr requires a predicate and at least one attribute"))
		}
		ok, err := CheckCfg(sink, cfg, sp, &a.Items[0])
		if err != nil {
			return err
		}
		if ok {
			out = append(out, a.Items[1:]...)
		}
	}
	attrs.Attrs = out
	return nil
}
