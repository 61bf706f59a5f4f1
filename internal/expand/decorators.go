package expand

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
)

// cfgDecorator removes whatever it decorates when the predicate is
// false: items become tombstones, fields and variants lose their names,
// impls lose their self type.
type cfgDecorator struct{ DecoratorBase }

func (cfgDecorator) Stage() AttrStage { return StageEarlyPre }

func (cfgDecorator) HandleItem(x *Expander, attr *ast.Attr, mod *ast.Module, entry *ast.ItemEntry) error {
	ok, err := checkCfgAttr(x, attr)
	if err != nil {
		return err
	}
	if !ok {
		if mac, isMac := entry.Data.(*ast.MacroInvocation); isMac {
			mac.Clear()
		}
		entry.Data = nil
	}
	return nil
}

func (cfgDecorator) HandleField(x *Expander, attr *ast.Attr, field *ast.StructField) error {
	ok, err := checkCfgAttr(x, attr)
	if err != nil {
		return err
	}
	if !ok {
		if field.Name != "" {
			field.Name = ""
		} else {
			field.Type = nil
		}
	}
	return nil
}

func (cfgDecorator) HandleVariant(x *Expander, attr *ast.Attr, variant *ast.EnumVariant) error {
	ok, err := checkCfgAttr(x, attr)
	if err != nil {
		return err
	}
	if !ok {
		variant.Name = ""
	}
	return nil
}

func (cfgDecorator) HandleImpl(x *Expander, attr *ast.Attr, impl *ast.Impl) error {
	ok, err := checkCfgAttr(x, attr)
	if err != nil {
		return err
	}
	if !ok {
		impl.SelfType = nil
	}
	return nil
}

// checkCfgAttr evaluates #[cfg(pred)] — the attribute's single list item
// is the predicate.
func checkCfgAttr(x *Expander, attr *ast.Attr) (bool, error) {
	wrapped := ast.Attr{Name: "all", Kind: ast.AttrKindList, Items: attr.Items, Span: attr.Span}
	return CheckCfg(x.Sink, x.Cfg, attr.Span, &wrapped)
}

// testDecorator collects #[test] functions into the crate test list when
// the harness is enabled, and tombstones them otherwise.
type testDecorator struct{ DecoratorBase }

func (testDecorator) Stage() AttrStage { return StageLatePost }

func (testDecorator) HandleItem(x *Expander, attr *ast.Attr, mod *ast.Module, entry *ast.ItemEntry) error {
	if _, isFn := entry.Data.(*ast.Function); !isFn {
		return x.errorAt(diag.EXP006, entry.Span, "#[test] is only valid on functions")
	}
	if !x.Crate.TestHarness {
		entry.Data = nil
		return nil
	}
	x.Crate.Tests = append(x.Crate.Tests, mod.Path.Append(entry.Name))
	return nil
}

// langDecorator records #[lang = "name"] items in the crate lang-item map
type langDecorator struct{ DecoratorBase }

func (langDecorator) Stage() AttrStage { return StageEarlyPost }

func (langDecorator) HandleItem(x *Expander, attr *ast.Attr, mod *ast.Module, entry *ast.ItemEntry) error {
	if attr.Kind != ast.AttrNameValue || attr.Value == "" {
		return x.errorAt(diag.EXP006, entry.Span, "#[lang] requires a name, e.g. #[lang = \"add\"]")
	}
	x.Crate.LangItems[attr.Value] = mod.Path.Append(entry.Name)
	return nil
}

func (langDecorator) HandleImpl(x *Expander, attr *ast.Attr, impl *ast.Impl) error {
	// Lang impls (e.g. the str inherent impl) need no registration here.
	return nil
}

// macroUseDecorator imports a child module's exported macros into the
// parent's macro import table.
type macroUseDecorator struct{ DecoratorBase }

func (macroUseDecorator) Stage() AttrStage { return StageEarlyPost }

func (macroUseDecorator) HandleItem(x *Expander, attr *ast.Attr, mod *ast.Module, entry *ast.ItemEntry) error {
	child, ok := entry.Data.(*ast.Module)
	if !ok {
		// #[macro_use] extern crate — crate loading pre-populates the
		// import table, nothing to do here.
		return nil
	}
	if mod.MacroImports == nil {
		mod.MacroImports = map[string]*ast.MacroRulesDef{}
	}
	for _, def := range child.MacroRules {
		mod.MacroImports[def.Name] = def
	}
	return nil
}
