package expand

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/token"
)

// Run executes both expansion passes over the crate. The early pass
// evaluates cfg and the early macros; the late pass picks up macro
// invocations produced by decorators such as #[derive] and reports the
// ones that still have no handler.
func Run(x *Expander) error {
	x.early = true
	if err := x.expandModule(x.Crate.Root); err != nil {
		return err
	}
	x.early = false
	return x.expandModule(x.Crate.Root)
}

func (x *Expander) stageMatches(s AttrStage, pre bool) bool {
	if x.early {
		return (pre && s == StageEarlyPre) || (!pre && s == StageEarlyPost)
	}
	return (pre && s == StageLatePre) || (!pre && s == StageLatePost)
}

// runItemDecorators invokes the registered decorators on one item entry
// for the current pass and position. Handled attributes that structurally
// consume the item (cfg, derive, test) are dropped from the list so the
// late pass does not re-apply them.
func (x *Expander) runItemDecorators(mod *ast.Module, entry *ast.ItemEntry, pre bool) error {
	kept := entry.Attrs.Attrs[:0]
	for i := range entry.Attrs.Attrs {
		attr := entry.Attrs.Attrs[i]
		dec, ok := x.Reg.Decorators[attr.Name]
		if !ok || !x.stageMatches(dec.Stage(), pre) {
			kept = append(kept, attr)
			continue
		}
		if err := dec.HandleItem(x, &attr, mod, entry); err != nil {
			return err
		}
		switch attr.Name {
		case "cfg", "derive", "test":
			// consumed
		default:
			kept = append(kept, attr)
		}
		if entry.IsTombstone() {
			kept = append(kept, entry.Attrs.Attrs[i+1:]...)
			break
		}
	}
	entry.Attrs.Attrs = kept
	return nil
}

func (x *Expander) expandModule(mod *ast.Module) error {
	// Items are processed in source order; macro expansion may append
	// new entries, picked up by the same loop.
	for i := 0; ; i++ {
		if i == len(mod.Items) {
			before := len(mod.Items)
			if err := x.expandInvocations(mod); err != nil {
				return err
			}
			if len(mod.Items) == before {
				break
			}
		}
		entry := mod.Items[i]
		if err := applyCfgAttr(x.Sink, x.Cfg, entry.Span, &entry.Attrs); err != nil {
			return err
		}
		if err := x.runItemDecorators(mod, entry, true); err != nil {
			return err
		}
		if entry.IsTombstone() {
			continue
		}
		if err := x.expandItemData(mod, entry); err != nil {
			return err
		}
		if err := x.runItemDecorators(mod, entry, false); err != nil {
			return err
		}
	}

	for _, impl := range mod.Impls {
		if err := x.expandImpl(mod, impl); err != nil {
			return err
		}
	}
	for _, anon := range mod.AnonMods {
		if err := x.expandModule(anon); err != nil {
			return err
		}
	}
	return nil
}

func (x *Expander) expandItemData(mod *ast.Module, entry *ast.ItemEntry) error {
	switch d := entry.Data.(type) {
	case *ast.Module:
		if d.Path == nil {
			d.Path = mod.Path.Append(entry.Name)
		}
		return x.expandModule(d)
	case *ast.Function:
		return x.expandFnBody(mod, d)
	case *ast.Static:
		val, err := x.expandExpr(mod, d.Value)
		if err != nil {
			return err
		}
		d.Value = val
		return nil
	case *ast.Const:
		val, err := x.expandExpr(mod, d.Value)
		if err != nil {
			return err
		}
		d.Value = val
		return nil
	case *ast.Struct:
		return x.expandFields(d.Fields)
	case *ast.Union:
		return x.expandFields(d.Fields)
	case *ast.Enum:
		return x.expandVariants(d.Variants)
	case *ast.Trait:
		for _, it := range d.Items {
			if fn, ok := it.Data.(*ast.Function); ok {
				if err := x.expandFnBody(mod, fn); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.MacroInvocation:
		if !d.IsCleared() {
			mod.MacroInvs = append(mod.MacroInvs, d)
			entry.Data = nil
		}
		return nil
	case *ast.Impl:
		// Impl written in item position; move to the module impl list.
		mod.Impls = append(mod.Impls, d)
		entry.Data = nil
		return nil
	case *ast.MacroRulesDef:
		d.DefMod = mod
		mod.MacroRules = append(mod.MacroRules, d)
		entry.Data = nil
		return nil
	case *ast.ExternBlock:
		return nil
	default:
		return nil
	}
}

func (x *Expander) expandFields(fields []ast.StructField) error {
	for i := range fields {
		f := &fields[i]
		if len(f.Attrs.Attrs) == 0 {
			continue
		}
		if err := applyCfgAttr(x.Sink, x.Cfg, f.Attrs.Attrs[0].Span, &f.Attrs); err != nil {
			return err
		}
		for ai := range f.Attrs.Attrs {
			attr := &f.Attrs.Attrs[ai]
			if dec, ok := x.Reg.Decorators[attr.Name]; ok && x.stageMatches(dec.Stage(), true) {
				if err := dec.HandleField(x, attr, f); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (x *Expander) expandVariants(variants []ast.EnumVariant) error {
	for i := range variants {
		v := &variants[i]
		if len(v.Attrs.Attrs) != 0 {
			if err := applyCfgAttr(x.Sink, x.Cfg, v.Attrs.Attrs[0].Span, &v.Attrs); err != nil {
				return err
			}
		}
		for ai := range v.Attrs.Attrs {
			attr := &v.Attrs.Attrs[ai]
			if dec, ok := x.Reg.Decorators[attr.Name]; ok && x.stageMatches(dec.Stage(), true) {
				if err := dec.HandleVariant(x, attr, v); err != nil {
					return err
				}
			}
		}
		if v.Name == "" {
			continue
		}
		if err := x.expandFields(v.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (x *Expander) expandImpl(mod *ast.Module, impl *ast.Impl) error {
	if impl.SelfType == nil {
		return nil // removed by cfg
	}
	if len(impl.Attrs.Attrs) != 0 {
		if err := applyCfgAttr(x.Sink, x.Cfg, impl.Attrs.Attrs[0].Span, &impl.Attrs); err != nil {
			return err
		}
		for ai := range impl.Attrs.Attrs {
			attr := &impl.Attrs.Attrs[ai]
			if dec, ok := x.Reg.Decorators[attr.Name]; ok && x.stageMatches(dec.Stage(), true) {
				if err := dec.HandleImpl(x, attr, impl); err != nil {
					return err
				}
			}
		}
		if impl.SelfType == nil {
			return nil
		}
	}
	for _, it := range impl.Items {
		if err := applyCfgAttr(x.Sink, x.Cfg, it.Span, &it.Attrs); err != nil {
			return err
		}
		if err := x.runItemDecorators(mod, it, true); err != nil {
			return err
		}
		if it.IsTombstone() {
			continue
		}
		if fn, ok := it.Data.(*ast.Function); ok {
			if err := x.expandFnBody(mod, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *Expander) expandFnBody(mod *ast.Module, fn *ast.Function) error {
	if fn.Body == nil {
		return nil
	}
	body, err := x.expandBlock(mod, fn.Body)
	if err != nil {
		return err
	}
	fn.Body = body
	return nil
}

// expandInvocations drains a module's pending macro invocations. Items
// produced by an expansion are appended to the module and re-entered by
// the caller's item loop; invocations produced are appended here and
// picked up by this loop.
func (x *Expander) expandInvocations(mod *ast.Module) error {
	for i := 0; i < len(mod.MacroInvs); i++ {
		inv := mod.MacroInvs[i]
		if inv.IsCleared() {
			continue
		}
		out, expanded, err := x.invokeMacro(mod, inv)
		if err != nil {
			return err
		}
		if !expanded {
			if x.early {
				continue // deferred to the late pass
			}
			return x.errorAt(diag.EXP001, inv.Span, "macro %s! is not defined", inv.Name)
		}
		items, newInvs, perr := x.Reparser.ParseItems(out, mod)
		if perr != nil {
			return x.errorAt(diag.EXP002, inv.Span, "failed to parse expansion of %s!: %v", inv.Name, perr)
		}
		mod.Items = append(mod.Items, items...)
		mod.MacroInvs = append(mod.MacroInvs, newInvs...)
		inv.Clear()
	}
	return nil
}

// invokeMacro resolves and runs one invocation, returning the
// replacement token stream. expanded=false means no handler was found.
func (x *Expander) invokeMacro(mod *ast.Module, inv *ast.MacroInvocation) ([]token.Tree, bool, error) {
	if h, ok := x.Reg.Macros[inv.Name]; ok {
		if x.early && !h.ExpandEarly() {
			return nil, false, nil
		}
		out, err := h.Expand(x, inv.Span, inv.Ident, inv.Input, mod)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}

	// Walk the module stack upward consulting local definitions and
	// macro imports. An invocation hygiene anchor overrides the stack.
	for m := mod; m != nil; m = parentOf(x.Crate, m) {
		search := m
		if inv.Hygiene.CrateAnchor != nil {
			search = inv.Hygiene.CrateAnchor
		}
		def := search.FindMacro(inv.Name)
		if def == nil {
			if inv.Hygiene.CrateAnchor != nil {
				break
			}
			continue
		}
		for _, arm := range def.Arms {
			binds, ok := matchRulesArm(arm.Pattern, inv.Input)
			if !ok {
				continue
			}
			out, err := transcribe(arm.Body, binds)
			if err != nil {
				return nil, false, x.errorAt(diag.EXP008, inv.Span, "macro %s!: %v", inv.Name, err)
			}
			// Each invocation gets a fresh hygiene mark; the reparser
			// stamps it onto identifiers the macro body introduced and
			// anchors $crate at the defining module.
			x.ExpMark = x.FreshMark()
			x.ExpDefMod = def.DefMod
			return out, true, nil
		}
		return nil, false, x.errorAt(diag.EXP008, inv.Span,
			"no rules expected the given input tokens in %s!", inv.Name)
	}
	return nil, false, nil
}

// parentOf finds the module containing m. The crate is a tree, so a
// simple descent suffices; module counts are small enough that this
// does not need a parent pointer.
func parentOf(crate *ast.Crate, m *ast.Module) *ast.Module {
	if m == crate.Root {
		return nil
	}
	return findParent(crate.Root, m)
}

func findParent(cur, target *ast.Module) *ast.Module {
	for _, it := range cur.Items {
		child, ok := it.Data.(*ast.Module)
		if !ok {
			continue
		}
		if child == target {
			return cur
		}
		if p := findParent(child, target); p != nil {
			return p
		}
	}
	for _, anon := range cur.AnonMods {
		if anon == target {
			return cur
		}
		if p := findParent(anon, target); p != nil {
			return p
		}
	}
	return nil
}
