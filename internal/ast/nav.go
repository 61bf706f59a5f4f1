package ast

// Navigation from absolute paths back to crate items. Paths reference
// items by absolute path, never by pointer, so every consumer resolves
// through these accessors.

// ItemAt returns the item entry an absolute path names, walking the
// module tree from the crate root. Enum variants resolve to the enum's
// entry (the final segment is the variant).
func (c *Crate) ItemAt(p *Path) (*ItemEntry, bool) {
	if p == nil || p.Class != PathAbsolute || len(p.Nodes) == 0 {
		return nil, false
	}
	if p.CrateName != "" {
		return nil, false // extern items live in the extern index
	}
	mod := c.Root
	for i := 0; i < len(p.Nodes)-1; i++ {
		entry := mod.FindItem(p.Nodes[i].Name)
		if entry == nil {
			return nil, false
		}
		sub, ok := entry.Data.(*Module)
		if !ok {
			// Path descends into a non-module (e.g. Enum::Variant):
			// the remainder names a member of this entry.
			if i == len(p.Nodes)-2 {
				return entry, true
			}
			return nil, false
		}
		mod = sub
	}
	entry := mod.FindItem(p.Nodes[len(p.Nodes)-1].Name)
	if entry == nil {
		return nil, false
	}
	return entry, true
}

// ModuleAt returns the module an absolute path names
func (c *Crate) ModuleAt(p *Path) (*Module, bool) {
	if p == nil || p.Class != PathAbsolute {
		return nil, false
	}
	if p.CrateName != "" {
		return nil, false
	}
	mod := c.Root
	for _, n := range p.Nodes {
		entry := mod.FindItem(n.Name)
		if entry == nil {
			return nil, false
		}
		sub, ok := entry.Data.(*Module)
		if !ok {
			return nil, false
		}
		mod = sub
	}
	return mod, true
}

// TraitAt returns the trait definition an absolute path names
func (c *Crate) TraitAt(p *Path) (*Trait, bool) {
	entry, ok := c.ItemAt(p)
	if !ok {
		return nil, false
	}
	t, ok := entry.Data.(*Trait)
	return t, ok
}

// EnumAt returns the enum definition an absolute path names
func (c *Crate) EnumAt(p *Path) (*Enum, bool) {
	entry, ok := c.ItemAt(p)
	if !ok {
		return nil, false
	}
	e, ok := entry.Data.(*Enum)
	return e, ok
}

// StructAt returns the struct definition an absolute path names
func (c *Crate) StructAt(p *Path) (*Struct, bool) {
	entry, ok := c.ItemAt(p)
	if !ok {
		return nil, false
	}
	s, ok := entry.Data.(*Struct)
	return s, ok
}

// AssignModulePaths fills in the absolute path of every named module.
// Expansion normally does this as it walks; passes that run without a
// prior expansion call it first.
func (c *Crate) AssignModulePaths() {
	if c.Root.Path == nil {
		c.Root.Path = AbsolutePath("")
	}
	stack := []*Module{c.Root}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, entry := range m.Items {
			sub, ok := entry.Data.(*Module)
			if !ok || entry.IsTombstone() {
				continue
			}
			if sub.Path == nil {
				sub.Path = m.Path.Append(entry.Name)
			}
			stack = append(stack, sub)
		}
		for _, anon := range m.AnonMods {
			if anon.Path == nil {
				anon.Path = m.Path.Clone()
			}
			stack = append(stack, anon)
		}
	}
}

// EachModule visits every module in the crate, parents before children,
// using an explicit work stack so arbitrarily deep nesting cannot
// overflow the goroutine stack.
func (c *Crate) EachModule(fn func(*Module) error) error {
	work := []*Module{c.Root}
	for len(work) > 0 {
		m := work[len(work)-1]
		work = work[:len(work)-1]
		if err := fn(m); err != nil {
			return err
		}
		for i := len(m.AnonMods) - 1; i >= 0; i-- {
			work = append(work, m.AnonMods[i])
		}
		for i := len(m.Items) - 1; i >= 0; i-- {
			if sub, ok := m.Items[i].Data.(*Module); ok && !m.Items[i].IsTombstone() {
				work = append(work, sub)
			}
		}
	}
	return nil
}

// EachImpl visits every impl block in the crate
func (c *Crate) EachImpl(fn func(*Module, *Impl) error) error {
	return c.EachModule(func(m *Module) error {
		for _, impl := range m.Impls {
			if impl.SelfType == nil {
				continue
			}
			if err := fn(m, impl); err != nil {
				return err
			}
		}
		return nil
	})
}
