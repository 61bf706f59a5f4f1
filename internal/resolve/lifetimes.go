package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// InferredLifetime is the placeholder `'_` binds to
const InferredLifetime = "_"

// ResolveLifetime binds one lifetime identifier against the generic
// sub-stack. `'static` and `'_` are special-cased. In 2018-edition mode
// an unbound lifetime is in-band introduced: a new parameter is appended
// to the innermost generic scope, unless that scope is a
// higher-ranked-bound binder. This applies to every generic scope
// (struct, enum, trait and fn bodies included), not only fn and impl
// headers.
func (c *Context) ResolveLifetime(name string, sp span.Span) error {
	if name == "" || name == "static" || name == InferredLifetime {
		return nil
	}
	var innermost *scope
	for i := len(c.stack) - 1; i >= 0; i-- {
		s := &c.stack[i]
		if s.kind != scopeGeneric {
			continue
		}
		if innermost == nil {
			innermost = s
		}
		for _, lt := range s.lifetimes {
			if lt == name {
				return nil
			}
		}
	}

	if c.Crate.Edition2018 && innermost != nil && innermost.canInBand && !innermost.hrb {
		innermost.lifetimes = append(innermost.lifetimes, name)
		if innermost.gen != nil {
			innermost.gen.Lifetimes = append(innermost.gen.Lifetimes, ast.LifetimeParam{Name: name})
		}
		return nil
	}

	return c.Sink.Fatal(diag.New(phase, diag.RES007, sp,
		"cannot resolve lifetime '%s", name))
}
