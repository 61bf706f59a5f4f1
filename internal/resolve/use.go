package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// useResolver binds `use` statements. It runs before index construction,
// so targets are found by walking module item lists directly, following
// imports met along the way. The wildcard stack breaks import cycles.
type useResolver struct {
	crate *ast.Crate
	sink  *diag.Sink

	wildcards []*ast.UseItem
}

// ResolveUses absolutises and binds every use statement in the crate
func ResolveUses(crate *ast.Crate, sink *diag.Sink) error {
	crate.AssignModulePaths()
	r := &useResolver{crate: crate, sink: sink}
	return crate.EachModule(func(m *ast.Module) error {
		for _, entry := range m.Items {
			use, ok := entry.Data.(*ast.UseItem)
			if !ok || entry.IsTombstone() {
				continue
			}
			if err := r.resolveUse(m, entry, use); err != nil {
				return err
			}
		}
		return nil
	})
}

// absolutiseUsePath mechanically rewrites self/super/relative use paths
// against the containing module. No name lookup is needed: use paths
// are module-rooted by definition (2015 edition) or crate/extern rooted
// (2018 edition).
func (r *useResolver) absolutiseUsePath(mod *ast.Module, p *ast.Path, sp span.Span) (*ast.Path, error) {
	switch p.Class {
	case ast.PathAbsolute:
		return p, nil
	case ast.PathSelf:
		abs := mod.Path.Clone()
		abs.Nodes = append(abs.Nodes, p.Nodes...)
		abs.Binding = ast.BindingPair{}
		return abs, nil
	case ast.PathSuper:
		if p.SuperCount > len(mod.Path.Nodes) {
			return nil, r.sink.Fatal(diag.New(phase, diag.RES004, sp,
				"too many `super`s in use path"))
		}
		abs := mod.Path.Clone()
		abs.Nodes = abs.Nodes[:len(abs.Nodes)-p.SuperCount]
		abs.Nodes = append(abs.Nodes, p.Nodes...)
		abs.Binding = ast.BindingPair{}
		return abs, nil
	case ast.PathRelative:
		if len(p.Nodes) == 0 {
			return nil, r.sink.Fatal(diag.New(phase, diag.RES001, sp, "empty use path"))
		}
		head := p.Nodes[0].Name
		if _, ok := r.crate.Externs[head]; ok {
			abs := ast.AbsolutePath(head)
			abs.Nodes = append(abs.Nodes, p.Nodes[1:]...)
			return abs, nil
		}
		if r.crate.Edition2018 {
			// 2018: a bare relative use is crate-rooted only via
			// `crate::`; the parser maps that to Absolute. Anything
			// else must be an extern crate.
			return nil, r.sink.Fatal(diag.New(phase, diag.RES001, sp,
				"cannot resolve use path head %q", head))
		}
		// 2015: relative use paths are crate-rooted.
		abs := ast.AbsolutePath("")
		abs.Nodes = append(abs.Nodes, p.Nodes...)
		return abs, nil
	default:
		return p, nil
	}
}

func (r *useResolver) resolveUse(mod *ast.Module, entry *ast.ItemEntry, use *ast.UseItem) error {
	abs, err := r.absolutiseUsePath(mod, use.Path, entry.Span)
	if err != nil {
		return err
	}
	use.Path = abs
	if abs.Binding.Type.IsBound() || abs.Binding.Value.IsBound() {
		return nil // already resolved (idempotent re-run)
	}

	if use.Wildcard {
		return r.findModuleLike(abs, entry.Span)
	}

	ty, val, err := r.findTarget(abs, entry.Span)
	if err != nil {
		return err
	}
	abs.Binding.Type = ty
	abs.Binding.Value = val
	return nil
}

// findModuleLike validates a wildcard target: module, enum, or crate
func (r *useResolver) findModuleLike(p *ast.Path, sp span.Span) error {
	if p.CrateName != "" {
		if _, ok := r.crate.Externs[p.CrateName]; !ok {
			return r.sink.Fatal(diag.New(phase, diag.RES001, sp,
				"extern crate %q is not loaded", p.CrateName))
		}
		p.Binding.Type = ast.Binding{Kind: ast.BindModule, TargetPath: p.Key()}
		return nil
	}
	if len(p.Nodes) == 0 {
		p.Binding.Type = ast.Binding{Kind: ast.BindModule, TargetPath: p.Key()}
		return nil
	}
	entry, ok := r.findEntry(p, sp)
	if !ok {
		return r.sink.Fatal(diag.New(phase, diag.RES001, sp,
			"cannot resolve use target %s", p))
	}
	switch entry.Data.(type) {
	case *ast.Module:
		p.Binding.Type = ast.Binding{Kind: ast.BindModule, TargetPath: p.Key()}
	case *ast.Enum:
		p.Binding.Type = ast.Binding{Kind: ast.BindEnum, TargetPath: p.Key()}
	default:
		return r.sink.Fatal(diag.New(phase, diag.RES006, sp,
			"wildcard import target %s is not a module or enum", p))
	}
	return nil
}

// findTarget resolves a single-name use target to its binding pair
func (r *useResolver) findTarget(p *ast.Path, sp span.Span) (ast.Binding, ast.Binding, error) {
	if p.CrateName != "" {
		ext, ok := r.crate.Externs[p.CrateName]
		if !ok {
			return ast.Binding{}, ast.Binding{}, r.sink.Fatal(diag.New(phase, diag.RES001, sp,
				"extern crate %q is not loaded", p.CrateName))
		}
		if ent, ok := ext.Index[p.Key()]; ok {
			return ent.Path.Binding.Type, ent.Path.Binding.Value, nil
		}
		return ast.Binding{}, ast.Binding{}, r.sink.Fatal(diag.New(phase, diag.RES001, sp,
			"cannot resolve use target %s", p))
	}

	entry, ok := r.findEntry(p, sp)
	if !ok {
		// The final segment may name an enum variant.
		if len(p.Nodes) >= 2 {
			parent := p.Clone()
			parent.Nodes = parent.Nodes[:len(parent.Nodes)-1]
			parent.Binding = ast.BindingPair{}
			if pe, pok := r.findEntry(parent, sp); pok {
				if e, isEnum := pe.Data.(*ast.Enum); isEnum {
					if v, vok := variantBinding(e, parent, p.Nodes[len(p.Nodes)-1].Name); vok {
						return v.Binding.Type, v.Binding.Value, nil
					}
				}
			}
		}
		return ast.Binding{}, ast.Binding{}, r.sink.Fatal(diag.New(phase, diag.RES001, sp,
			"cannot resolve use target %s", p))
	}
	ty, val, _ := bindingsForItem(entry, p)
	return ty, val, nil
}

// findEntry walks an absolute path through the module tree, following
// imports. Wildcard imports re-enter resolution under the cycle guard.
func (r *useResolver) findEntry(p *ast.Path, sp span.Span) (*ast.ItemEntry, bool) {
	mod := r.crate.Root
	for i := 0; i < len(p.Nodes); i++ {
		name := p.Nodes[i].Name
		last := i == len(p.Nodes)-1
		entry := r.lookupInModule(mod, name, sp)
		if entry == nil {
			return nil, false
		}
		// Follow a re-export to its target.
		if use, isUse := entry.Data.(*ast.UseItem); isUse {
			if err := r.resolveUse(mod, entry, use); err != nil {
				return nil, false
			}
			redirected := use.Path.Clone()
			redirected.Nodes = append(redirected.Nodes, p.Nodes[i+1:]...)
			redirected.Binding = ast.BindingPair{}
			return r.findEntry(redirected, sp)
		}
		if last {
			return entry, true
		}
		sub, isMod := entry.Data.(*ast.Module)
		if !isMod {
			// Enums are not descended into here; findTarget resolves a
			// final variant segment through the parent enum.
			if _, isEnum := entry.Data.(*ast.Enum); isEnum && i == len(p.Nodes)-2 {
				return nil, false
			}
			return nil, false
		}
		mod = sub
	}
	return nil, false
}

// lookupInModule finds a named entry in one module, consulting wildcard
// imports when the direct search misses.
func (r *useResolver) lookupInModule(mod *ast.Module, name string, sp span.Span) *ast.ItemEntry {
	for _, entry := range mod.Items {
		if entry.IsTombstone() {
			continue
		}
		if entry.Name == name {
			return entry
		}
	}
	// Wildcard imports, guarded against cycles.
	for _, entry := range mod.Items {
		use, ok := entry.Data.(*ast.UseItem)
		if !ok || entry.IsTombstone() || !use.Wildcard {
			continue
		}
		if r.onWildcardStack(use) {
			continue
		}
		r.wildcards = append(r.wildcards, use)
		found := r.searchWildcard(mod, entry, use, name, sp)
		r.wildcards = r.wildcards[:len(r.wildcards)-1]
		if found != nil {
			return found
		}
	}
	return nil
}

func (r *useResolver) onWildcardStack(use *ast.UseItem) bool {
	for _, w := range r.wildcards {
		if w == use {
			return true
		}
	}
	return false
}

func (r *useResolver) searchWildcard(mod *ast.Module, entry *ast.ItemEntry, use *ast.UseItem, name string, sp span.Span) *ast.ItemEntry {
	if err := r.resolveUse(mod, entry, use); err != nil {
		return nil
	}
	target, ok := r.crate.ModuleAt(use.Path)
	if !ok {
		return nil
	}
	for _, te := range target.Items {
		if !te.IsTombstone() && te.Pub && te.Name == name {
			return te
		}
	}
	return nil
}
