package resolve

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// BuildIndices populates every module's three name indices from its
// items and its resolved use statements. Runs after ResolveUses and
// before absolutisation, which looks names up through these maps.
func BuildIndices(crate *ast.Crate, sink *diag.Sink) error {
	return crate.EachModule(func(m *ast.Module) error {
		return indexModule(crate, sink, m)
	})
}

func indexModule(crate *ast.Crate, sink *diag.Sink, m *ast.Module) error {
	m.NamespaceItems = map[string]ast.IndexEnt{}
	m.TypeItems = map[string]ast.IndexEnt{}
	m.ValueItems = map[string]ast.IndexEnt{}

	// Local items claim their names first; a collision here is fatal.
	for _, entry := range m.Items {
		if entry.IsTombstone() || entry.Name == "" {
			continue
		}
		if _, isUse := entry.Data.(*ast.UseItem); isUse {
			continue
		}
		abs := m.Path.Append(entry.Name)
		ty, val, ok := bindingsForItem(entry, abs)
		if !ok {
			continue
		}
		abs.Binding = ast.BindingPair{Type: ty, Value: val}
		if err := insertItem(sink, m, entry.Name, abs, false, entry.Span); err != nil {
			return err
		}
	}

	// Then single-name imports, under the use's trailing name.
	for _, entry := range m.Items {
		use, isUse := entry.Data.(*ast.UseItem)
		if !isUse || entry.IsTombstone() || use.Wildcard {
			continue
		}
		name := entry.Name
		if name == "" && len(use.Path.Nodes) > 0 {
			name = use.Path.Nodes[len(use.Path.Nodes)-1].Name
		}
		if err := insertItem(sink, m, name, use.Path, true, entry.Span); err != nil {
			return err
		}
	}

	// Wildcard imports fill remaining gaps; explicit names shadow them.
	for _, entry := range m.Items {
		use, isUse := entry.Data.(*ast.UseItem)
		if !isUse || entry.IsTombstone() || !use.Wildcard {
			continue
		}
		if err := insertWildcard(crate, m, use); err != nil {
			return err
		}
	}
	return nil
}

func insertItem(sink *diag.Sink, m *ast.Module, name string, p *ast.Path, isImport bool, sp span.Span) error {
	ent := ast.IndexEnt{Path: p, IsImport: isImport}
	if p.Binding.Type.Kind == ast.BindModule {
		if err := insertInto(sink, m.NamespaceItems, name, ent, sp); err != nil {
			return err
		}
	} else if p.Binding.Type.IsBound() {
		if err := insertInto(sink, m.TypeItems, name, ent, sp); err != nil {
			return err
		}
	}
	if p.Binding.Value.IsBound() {
		if err := insertInto(sink, m.ValueItems, name, ent, sp); err != nil {
			return err
		}
	}
	return nil
}

func insertInto(sink *diag.Sink, idx map[string]ast.IndexEnt, name string, ent ast.IndexEnt, sp span.Span) error {
	if old, exists := idx[name]; exists {
		if old.Path.Key() == ent.Path.Key() && (old.IsImport || ent.IsImport) {
			return nil
		}
		return sink.Fatal(diag.New(phase, diag.RES003, sp,
			"duplicate definition of %q (%s and %s)", name, old.Path, ent.Path))
	}
	idx[name] = ent
	return nil
}

// insertWildcard copies the public entries of a wildcard target into
// the importing module, skipping names already claimed.
func insertWildcard(crate *ast.Crate, m *ast.Module, use *ast.UseItem) error {
	switch use.Path.Binding.Type.Kind {
	case ast.BindModule:
		if use.Path.CrateName != "" {
			ext := crate.Externs[use.Path.CrateName]
			if ext == nil {
				return nil
			}
			prefix := use.Path.Key() + "::"
			for key, ent := range ext.Index {
				if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
					continue
				}
				rest := key[len(prefix):]
				if containsSep(rest) {
					continue
				}
				addIfAbsent(m, rest, ast.IndexEnt{Path: ent.Path, IsImport: true})
			}
			return nil
		}
		target, ok := crate.ModuleAt(use.Path)
		if !ok {
			return nil
		}
		for _, entry := range target.Items {
			if entry.IsTombstone() || !entry.Pub || entry.Name == "" {
				continue
			}
			if _, isUse := entry.Data.(*ast.UseItem); isUse {
				continue
			}
			abs := target.Path.Append(entry.Name)
			ty, val, ok := bindingsForItem(entry, abs)
			if !ok {
				continue
			}
			abs.Binding = ast.BindingPair{Type: ty, Value: val}
			addIfAbsent(m, entry.Name, ast.IndexEnt{Path: abs, IsImport: true})
		}
	case ast.BindEnum:
		e, ok := crate.EnumAt(use.Path)
		if !ok {
			return nil
		}
		for i := range e.Variants {
			v := &e.Variants[i]
			if v.Name == "" {
				continue
			}
			p, _ := variantBinding(e, use.Path, v.Name)
			addIfAbsent(m, v.Name, ast.IndexEnt{Path: p, IsImport: true})
		}
	}
	return nil
}

func addIfAbsent(m *ast.Module, name string, ent ast.IndexEnt) {
	b := ent.Path.Binding
	if b.Type.Kind == ast.BindModule {
		if _, ok := m.NamespaceItems[name]; !ok {
			m.NamespaceItems[name] = ent
		}
	} else if b.Type.IsBound() {
		if _, ok := m.TypeItems[name]; !ok {
			m.TypeItems[name] = ent
		}
	}
	if b.Value.IsBound() {
		if _, ok := m.ValueItems[name]; !ok {
			m.ValueItems[name] = ent
		}
	}
}

func containsSep(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ':' {
			return true
		}
	}
	return false
}
