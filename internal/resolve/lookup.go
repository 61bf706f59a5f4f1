package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// bindingsForItem computes the type- and value-namespace bindings an
// item contributes under its absolute path.
func bindingsForItem(entry *ast.ItemEntry, abs *ast.Path) (ty, val ast.Binding, ok bool) {
	key := abs.Key()
	switch d := entry.Data.(type) {
	case *ast.Module:
		return ast.Binding{Kind: ast.BindModule, TargetPath: key}, ast.Binding{}, true
	case *ast.ExternCrate:
		return ast.Binding{Kind: ast.BindModule, TargetPath: key}, ast.Binding{}, true
	case *ast.Struct:
		ty = ast.Binding{Kind: ast.BindStruct, TargetPath: key}
		if d.Kind != ast.StructNamed {
			// Unit and tuple structs also bind the value namespace
			// (constant or constructor function respectively).
			val = ast.Binding{Kind: ast.BindStruct, TargetPath: key}
		}
		return ty, val, true
	case *ast.Union:
		return ast.Binding{Kind: ast.BindUnion, TargetPath: key}, ast.Binding{}, true
	case *ast.Enum:
		return ast.Binding{Kind: ast.BindEnum, TargetPath: key}, ast.Binding{}, true
	case *ast.Trait:
		return ast.Binding{Kind: ast.BindTrait, TargetPath: key}, ast.Binding{}, true
	case *ast.TraitAlias:
		return ast.Binding{Kind: ast.BindTrait, TargetPath: key}, ast.Binding{}, true
	case *ast.TypeAlias:
		return ast.Binding{Kind: ast.BindTypeAlias, TargetPath: key}, ast.Binding{}, true
	case *ast.Function:
		return ast.Binding{}, ast.Binding{Kind: ast.BindFunction, TargetPath: key}, true
	case *ast.Static:
		return ast.Binding{}, ast.Binding{Kind: ast.BindStatic, TargetPath: key}, true
	case *ast.Const:
		return ast.Binding{}, ast.Binding{Kind: ast.BindConstant, TargetPath: key}, true
	}
	return ast.Binding{}, ast.Binding{}, false
}

// matchesMode filters an index entry against a lookup mode
func matchesMode(ent ast.IndexEnt, mode Mode) bool {
	b := ent.Path.Binding
	switch mode {
	case ModeType:
		return b.Type.IsBound()
	case ModeConstant:
		return b.Value.Kind == ast.BindConstant || b.Value.Kind == ast.BindStatic ||
			b.Value.Kind == ast.BindGeneric
	case ModePatternValue:
		switch b.Value.Kind {
		case ast.BindEnumVariant, ast.BindConstant, ast.BindStatic:
			return true
		case ast.BindStruct:
			return true // unit struct pattern
		}
		return false
	case ModeVariable:
		return b.Value.IsBound()
	default:
		return b.Type.IsBound() || b.Value.IsBound()
	}
}

// searchModule looks one name up in a module's indices under a mode.
// The three indices are consulted namespace-first for namespace lookups
// and most-specific-first otherwise.
func searchModule(mod *ast.Module, name string, mode Mode) (*ast.Path, bool) {
	var order []map[string]ast.IndexEnt
	switch mode {
	case ModeType:
		order = []map[string]ast.IndexEnt{mod.TypeItems, mod.NamespaceItems}
	case ModeConstant, ModePatternValue, ModeVariable:
		order = []map[string]ast.IndexEnt{mod.ValueItems}
	default:
		order = []map[string]ast.IndexEnt{mod.NamespaceItems, mod.TypeItems, mod.ValueItems}
	}
	for _, idx := range order {
		if ent, ok := idx[name]; ok && matchesMode(ent, mode) {
			return ent.Path.Clone(), true
		}
	}
	return nil, false
}

// lookupResult is the outcome of a single-identifier lookup
type lookupResult struct {
	path     *ast.Path    // resolved path, nil for the other forms
	prim     ast.Primitive
	isPrim   bool
	selfType *ast.TypeRef // `Self` inside an impl
}

// LookupIdent resolves one identifier per the scope-stack algorithm.
func (c *Context) LookupIdent(name string, hy ast.Hygiene, mode Mode, sp span.Span) (lookupResult, error) {
	// 1. A hygiene crate-anchor pins resolution to the macro's module.
	if hy.CrateAnchor != nil {
		if p, ok := searchModule(hy.CrateAnchor, name, mode); ok {
			return lookupResult{path: p}, nil
		}
	}

	// 2. Walk the scope stack top-down.
	for i := len(c.stack) - 1; i >= 0; i-- {
		s := &c.stack[i]
		switch s.kind {
		case scopeModule:
			if p, ok := searchModule(s.mod, name, mode); ok {
				return lookupResult{path: p}, nil
			}
		case scopeVarBlock:
			if mode != ModeVariable {
				continue
			}
			for j := len(s.vars) - 1; j >= 0; j-- {
				v := s.vars[j]
				if v.name == name && hy.VisibleFrom(v.hygiene) {
					p := ast.LocalPath(name, v.slot)
					p.Binding.Value = ast.Binding{Kind: ast.BindVariable, Slot: v.slot}
					return lookupResult{path: p}, nil
				}
			}
		case scopeGeneric:
			if mode == ModeType || mode == ModeNamespace {
				if idx := s.gen.FindType(name); idx >= 0 {
					p := ast.LocalPath(name, int(s.genLevel)+idx)
					p.Binding.Type = ast.Binding{Kind: ast.BindTypeParameter, Slot: int(s.genLevel) + idx}
					return lookupResult{path: p}, nil
				}
			}
			if mode == ModeConstant || mode == ModeVariable {
				for ci, cn := range s.constSlots {
					if cn == name {
						p := ast.LocalPath(name, int(s.genLevel)+ci)
						p.Binding.Value = ast.Binding{Kind: ast.BindGeneric, Slot: int(s.genLevel) + ci}
						return lookupResult{path: p}, nil
					}
				}
			}
		case scopeConcreteSelf:
			if name == "Self" && (mode == ModeType || mode == ModeNamespace) {
				return lookupResult{selfType: s.selfType.Clone()}, nil
			}
		}
	}

	// 3. Fall through to the crate root.
	if p, ok := searchModule(c.Crate.Root, name, mode); ok {
		return lookupResult{path: p}, nil
	}

	// 4. Primitive type names.
	if mode == ModeType || mode == ModeNamespace {
		if prim, ok := ast.PrimitiveByName(name); ok {
			return lookupResult{prim: prim, isPrim: true}, nil
		}
	}

	// 5. Implicit extern crates (2018 edition).
	if c.Crate.Edition2018 && mode == ModeNamespace {
		if _, ok := c.Crate.Externs[name]; ok {
			p := ast.AbsolutePath(name)
			p.Binding.Type = ast.Binding{Kind: ast.BindModule, TargetPath: p.Key()}
			return lookupResult{path: p}, nil
		}
	}

	return lookupResult{}, c.Sink.Fatal(diag.New(phase, diag.RES001, sp,
		"cannot resolve name %q in %s context", name, mode))
}

// variantBinding resolves a segment inside an enum to its variant
func variantBinding(e *ast.Enum, enumPath *ast.Path, name string) (*ast.Path, bool) {
	idx := e.FindVariant(name)
	if idx < 0 {
		return nil, false
	}
	p := enumPath.Append(name)
	b := ast.Binding{Kind: ast.BindEnumVariant, TargetPath: p.Key(), VariantIdx: idx}
	p.Binding.Value = b
	p.Binding.Type = b
	return p, true
}

// ResolvePath rewrites a path to its resolved form, walking each
// segment through module indices and converting to UFCS when the path
// passes through a type or trait. Resolution is idempotent: an already
// bound path is returned unchanged.
func (c *Context) ResolvePath(p *ast.Path, mode Mode, sp span.Span) (*ast.Path, error) {
	if p.Class == ast.PathLocal {
		return p, nil
	}
	if p.Class == ast.PathAbsolute && (p.Binding.Type.IsBound() || p.Binding.Value.IsBound()) {
		return p, nil
	}
	return c.resolvePathInner(p, mode, sp)
}

func (c *Context) resolvePathInner(p *ast.Path, mode Mode, sp span.Span) (*ast.Path, error) {
	var cur *ast.Path
	segs := p.Nodes
	switch p.Class {
	case ast.PathRelative:
		firstMode := mode
		if len(segs) > 1 {
			firstMode = ModeNamespace
		}
		res, err := c.LookupIdent(segs[0].Name, p.Hygiene, firstMode, sp)
		if err != nil {
			return nil, err
		}
		switch {
		case res.isPrim:
			if len(segs) > 1 {
				// <prim>::item — inherent UFCS on a primitive.
				return ast.UfcsPath(ast.PrimType(res.prim), nil, segs[1:]...), nil
			}
			// Bare primitive names in non-type position are handled by
			// ResolveType before this point.
			return nil, c.Sink.Fatal(diag.New(phase, diag.RES002, sp,
				"primitive type %q is not valid here", segs[0].Name))
		case res.selfType != nil:
			if len(segs) > 1 {
				return ast.UfcsPath(res.selfType, nil, segs[1:]...), nil
			}
			return nil, c.Sink.Fatal(diag.New(phase, diag.RES002, sp,
				"`Self` used as a bare path outside type position"))
		default:
			cur = res.path
			if cur.Class == ast.PathLocal {
				if len(segs) == 1 {
					return cur, nil
				}
				if cur.Binding.Type.Kind == ast.BindTypeParameter {
					// T::Assoc — the type parameter becomes the UFCS base.
					g := ast.GenericType(uint16(cur.Binding.Type.Slot), cur.LocalName)
					return ast.UfcsPath(g, nil, segs[1:]...), nil
				}
				return nil, c.Sink.Fatal(diag.New(phase, diag.RES002, sp,
					"cannot path through local %q", cur.LocalName))
			}
			if len(cur.Nodes) > 0 {
				cur.Nodes[len(cur.Nodes)-1].Args = segs[0].Args
			}
			segs = segs[1:]
		}

	case ast.PathSelf:
		cur = c.currentModule().Path.Clone()
		cur.Binding.Type = ast.Binding{Kind: ast.BindModule, TargetPath: cur.Key()}

	case ast.PathSuper:
		base := c.currentModule().Path
		if p.SuperCount > len(base.Nodes) {
			return nil, c.Sink.Fatal(diag.New(phase, diag.RES004, sp,
				"too many `super`s: module is only %d deep", len(base.Nodes)))
		}
		cur = base.Clone()
		cur.Nodes = cur.Nodes[:len(cur.Nodes)-p.SuperCount]
		cur.Binding = ast.BindingPair{}
		cur.Binding.Type = ast.Binding{Kind: ast.BindModule, TargetPath: cur.Key()}

	case ast.PathAbsolute:
		cur = ast.AbsolutePath(p.CrateName)
		cur.Binding.Type = ast.Binding{Kind: ast.BindModule, TargetPath: cur.Key()}

	case ast.PathUFCS:
		return c.resolveUfcsTail(p, sp)

	default:
		return p, nil
	}

	return c.resolveSegments(cur, segs, mode, sp)
}

// resolveSegments walks the remaining path segments from a resolved base
func (c *Context) resolveSegments(cur *ast.Path, segs []ast.PathNode, mode Mode, sp span.Span) (*ast.Path, error) {
	for si := 0; si < len(segs); si++ {
		seg := segs[si]
		b := cur.Binding

		switch {
		case b.Type.Kind == ast.BindModule:
			next, err := c.resolveInModule(cur, seg, sp)
			if err != nil {
				return nil, err
			}
			next.Nodes[len(next.Nodes)-1].Args = seg.Args
			cur = next

		case b.Type.Kind == ast.BindEnum:
			e, ok := c.Crate.EnumAt(cur)
			if !ok {
				return nil, c.Sink.Fatal(diag.New(phase, diag.RES001, sp,
					"enum %s not found", cur))
			}
			v, ok := variantBinding(e, cur, seg.Name)
			if !ok {
				// Enum::AssocItem goes through UFCS like other types.
				return ast.UfcsPath(ast.PathType(cur), nil, segs[si:]...), nil
			}
			cur = v

		case b.Type.Kind == ast.BindTrait:
			tr, ok := c.Crate.TraitAt(cur)
			if ok && (tr.FindItem(seg.Name) != nil || tr.HasAssocType(seg.Name)) {
				// Trait::item with the impl left to inference.
				return ast.UfcsPath(nil, cur, segs[si:]...), nil
			}
			// Treat the trait as a type namespace.
			return ast.UfcsPath(ast.PathType(cur), nil, segs[si:]...), nil

		case b.Type.Kind == ast.BindStruct || b.Type.Kind == ast.BindUnion ||
			b.Type.Kind == ast.BindTypeAlias:
			return ast.UfcsPath(ast.PathType(cur), nil, segs[si:]...), nil

		default:
			return nil, c.Sink.Fatal(diag.New(phase, diag.RES002, sp,
				"cannot look up %q inside a %s", seg.Name, b.Type.Kind))
		}
	}
	return c.checkFinalMode(cur, mode, sp)
}

// resolveInModule resolves one segment against a module's index,
// following into extern crates when the base names one.
func (c *Context) resolveInModule(cur *ast.Path, seg ast.PathNode, sp span.Span) (*ast.Path, error) {
	if cur.CrateName != "" {
		ext, ok := c.Crate.Externs[cur.CrateName]
		if !ok {
			return nil, c.Sink.Fatal(diag.New(phase, diag.RES001, sp,
				"extern crate %q is not loaded", cur.CrateName))
		}
		childKey := cur.Append(seg.Name).Key()
		ent, ok := ext.Index[childKey]
		if !ok {
			return nil, c.Sink.Fatal(diag.New(phase, diag.RES001, sp,
				"cannot find %q in crate %q", seg.Name, cur.CrateName))
		}
		return ent.Path.Clone(), nil
	}

	mod, ok := c.Crate.ModuleAt(cur)
	if !ok {
		return nil, c.Sink.Fatal(diag.New(phase, diag.RES001, sp,
			"module %s not found", cur))
	}
	next, ok := searchModule(mod, seg.Name, ModeNamespace)
	if !ok {
		return nil, c.Sink.Fatal(diag.New(phase, diag.RES001, sp,
			"cannot find %q in module %s", seg.Name, cur))
	}
	return next, nil
}

// checkFinalMode verifies the finished path's binding suits the lookup mode
func (c *Context) checkFinalMode(p *ast.Path, mode Mode, sp span.Span) (*ast.Path, error) {
	ok := true
	switch mode {
	case ModeType:
		ok = p.Binding.Type.IsBound()
	case ModeConstant:
		k := p.Binding.Value.Kind
		ok = k == ast.BindConstant || k == ast.BindStatic || k == ast.BindGeneric
	case ModePatternValue:
		switch p.Binding.Value.Kind {
		case ast.BindEnumVariant, ast.BindConstant, ast.BindStatic, ast.BindStruct:
		default:
			ok = false
		}
	case ModeVariable:
		ok = p.Binding.Value.IsBound()
	}
	if !ok {
		return nil, c.Sink.Fatal(diag.New(phase, diag.RES002, sp,
			"%s is a %s, which is not valid in %s position", p, bindingKindOf(p), mode))
	}
	return p, nil
}

func bindingKindOf(p *ast.Path) ast.BindKind {
	if p.Binding.Value.IsBound() {
		return p.Binding.Value.Kind
	}
	return p.Binding.Type.Kind
}

// resolveUfcsTail resolves the type and trait halves of an explicit UFCS
// path; the item itself is bound during inference.
func (c *Context) resolveUfcsTail(p *ast.Path, sp span.Span) (*ast.Path, error) {
	if p.UfcsType != nil {
		if err := c.ResolveType(p.UfcsType, sp); err != nil {
			return nil, err
		}
	}
	if p.UfcsTrait != nil {
		tr, err := c.ResolvePath(p.UfcsTrait, ModeType, sp)
		if err != nil {
			return nil, err
		}
		p.UfcsTrait = tr
	}
	return p, nil
}
