// Package pipeline provides the staged middle-end driver: expansion,
// use resolution, index construction, absolutisation, HIR lowering,
// type inference, and layout, run in order over one crate.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/expand"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/layout"
	"github.com/sunholo/ferrous/internal/resolve"
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/target"
	"github.com/sunholo/ferrous/internal/token"
	"github.com/sunholo/ferrous/internal/typecheck"
)

// Config contains pipeline configuration options
type Config struct {
	Target      string            // triple name or spec-file path
	CfgFlags    []string          // extra --cfg flags
	CfgValues   map[string]string // extra --cfg key=value pairs
	Edition2018 bool
	TestHarness bool

	Reparser expand.Reparser // parser callback for macro output
	Sink     *diag.Sink      // diagnostics; a default sink when nil
}

// Source is the parsed input crate
type Source struct {
	Crate *ast.Crate
}

// Result contains pipeline output
type Result struct {
	Spec   *target.Spec
	Crate  *ast.Crate
	Hir    *hir.Crate
	Layout *layout.Engine

	Warnings     []*diag.Report
	PhaseTimings map[string]int64 // milliseconds
}

// Run executes the full middle-end over one crate
func Run(cfg Config, src Source) (Result, error) {
	result := Result{PhaseTimings: map[string]int64{}}
	sink := cfg.Sink
	if sink == nil {
		sink = diag.NewSink()
	}
	crate := src.Crate
	crate.Edition2018 = cfg.Edition2018
	crate.TestHarness = cfg.TestHarness

	// Target selection and cfg state, fixed before stage A.
	start := time.Now()
	spec, err := target.Load(cfg.Target)
	if err != nil {
		return result, sink.Fatal(diag.New("target", diag.TGT001, span.Span{}, "%v", err))
	}
	result.Spec = spec
	cfgState := target.NewCfgState()
	cfgState.Apply(spec)
	for _, f := range cfg.CfgFlags {
		cfgState.SetFlag(f)
	}
	for k, v := range cfg.CfgValues {
		cfgState.SetValue(k, v)
	}
	result.PhaseTimings["target"] = time.Since(start).Milliseconds()

	// Stage A: expansion.
	start = time.Now()
	x := &expand.Expander{
		Crate:    crate,
		Cfg:      cfgState,
		Sink:     sink,
		Reg:      expand.NewRegistries(),
		Reparser: cfg.Reparser,
	}
	if x.Reparser == nil {
		x.Reparser = noReparser{}
	}
	if err := expand.Run(x); err != nil {
		return result, fmt.Errorf("expansion failed: %w", err)
	}
	result.PhaseTimings["expand"] = time.Since(start).Milliseconds()

	// Stage B/C: use resolution, indices, absolutisation.
	start = time.Now()
	if err := resolve.ResolveUses(crate, sink); err != nil {
		return result, fmt.Errorf("use resolution failed: %w", err)
	}
	if err := resolve.BuildIndices(crate, sink); err != nil {
		return result, fmt.Errorf("index construction failed: %w", err)
	}
	if err := resolve.Absolutise(crate, sink); err != nil {
		return result, fmt.Errorf("absolutisation failed: %w", err)
	}
	result.Crate = crate
	result.PhaseTimings["resolve"] = time.Since(start).Milliseconds()

	// Stage D: HIR lowering.
	start = time.Now()
	hirCrate, err := hir.Lower(crate)
	if err != nil {
		return result, fmt.Errorf("lowering failed: %w", err)
	}
	result.Hir = hirCrate
	result.PhaseTimings["lower"] = time.Since(start).Milliseconds()

	// Stage E: type inference, one context per function body.
	start = time.Now()
	if err := typecheck.CheckCrate(hirCrate, sink); err != nil {
		return result, fmt.Errorf("type checking failed: %w", err)
	}
	result.PhaseTimings["typecheck"] = time.Since(start).Milliseconds()

	// Stage F: layout, precomputed for every concrete nominal type.
	start = time.Now()
	eng := layout.New(spec, crate)
	result.Layout = eng
	if err := precomputeLayouts(crate, eng); err != nil {
		return result, fmt.Errorf("layout failed: %w", err)
	}
	result.PhaseTimings["layout"] = time.Since(start).Milliseconds()

	result.Warnings = sink.Warnings
	return result, nil
}

// precomputeLayouts queries the repr of every non-generic struct,
// union, and enum so downstream passes hit a warm cache.
func precomputeLayouts(crate *ast.Crate, eng *layout.Engine) error {
	return crate.EachModule(func(m *ast.Module) error {
		for _, entry := range m.Items {
			if entry.IsTombstone() {
				continue
			}
			var generic bool
			switch d := entry.Data.(type) {
			case *ast.Struct:
				generic = len(d.Generics.Types) > 0
			case *ast.Union:
				generic = len(d.Generics.Types) > 0
			case *ast.Enum:
				generic = len(d.Generics.Types) > 0
			default:
				continue
			}
			if generic {
				continue
			}
			ty := ast.PathType(m.Path.Append(entry.Name))
			if _, err := eng.Repr(ty); err != nil {
				return err
			}
		}
		return nil
	})
}

// noReparser rejects macro output; supplied when the driver runs
// without a parser (pure resolution/typecheck workloads).
type noReparser struct{}

func (noReparser) ParseItems(trees []token.Tree, mod *ast.Module) ([]*ast.ItemEntry, []*ast.MacroInvocation, error) {
	return nil, nil, fmt.Errorf("no parser available for macro expansion output")
}

func (noReparser) ParseExpr(trees []token.Tree) (ast.Expr, error) {
	return nil, fmt.Errorf("no parser available for macro expansion output")
}

func (noReparser) ParsePattern(trees []token.Tree) (*ast.Pattern, error) {
	return nil, fmt.Errorf("no parser available for macro expansion output")
}

func (noReparser) ParseType(trees []token.Tree) (*ast.TypeRef, error) {
	return nil, fmt.Errorf("no parser available for macro expansion output")
}
