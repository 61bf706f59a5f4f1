package ast

import (
	"github.com/sunholo/ferrous/internal/span"
	"github.com/sunholo/ferrous/internal/token"
)

// TypeParam is one named generic type parameter
type TypeParam struct {
	Name    string
	Default *TypeRef
}

// LifetimeParam is one named generic lifetime parameter
type LifetimeParam struct {
	Name string
}

// GenericBound is a single where-clause entry. Exactly one of the
// trait/lifetime/equality payloads is populated.
type GenericBound struct {
	HRLifetimes []string // `for<'a, ...>` binder, empty when not higher-ranked

	Type  *TypeRef // bounded type (`T: Trait`, `<T as Tr>::A = U`)
	Trait *Path    // trait bound target

	Lifetime string // lifetime bound (`T: 'a`)

	Equality *TypeRef // right side of an associated-type equality bound
}

// GenericParams is the parameter list of an item, impl, or function
type GenericParams struct {
	Lifetimes []LifetimeParam
	Types     []TypeParam
	Bounds    []GenericBound
}

// FindType returns the slot of the named type parameter, or -1
func (g *GenericParams) FindType(name string) int {
	if g == nil {
		return -1
	}
	for i, p := range g.Types {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// FindLifetime returns the slot of the named lifetime parameter, or -1
func (g *GenericParams) FindLifetime(name string) int {
	if g == nil {
		return -1
	}
	for i, p := range g.Lifetimes {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Item is the interface of all item payloads. An ItemEntry with a nil
// Data is the tombstone left behind by a false cfg.
type Item interface {
	itemNode()
}

// ItemEntry is one named slot in a module's item list
type ItemEntry struct {
	Name  string
	Attrs AttrList
	Pub   bool
	Span  span.Span
	Data  Item // nil = tombstone
}

// IsTombstone reports whether the entry was removed by cfg
func (e *ItemEntry) IsTombstone() bool { return e.Data == nil }

type itemMarker struct{}

func (itemMarker) itemNode() {}

// ExternCrate links another crate under a local name
type ExternCrate struct {
	itemMarker
	CrateName string
}

// UseItem is a `use` statement: one target path, optionally a wildcard
type UseItem struct {
	itemMarker
	Path     *Path
	Wildcard bool
}

// FnParam is a function parameter
type FnParam struct {
	Pat  *Pattern
	Type *TypeRef
}

// Function is a free function, method, or trait item
type Function struct {
	itemMarker
	Generics GenericParams
	Abi      string
	Unsafe   bool
	Const    bool
	SelfKind SelfKind // receiver shorthand for methods
	Params   []FnParam
	Ret      *TypeRef
	Body     *Block // nil for trait declarations and extern fns
}

// SelfKind classifies a method receiver
type SelfKind int

const (
	SelfNone SelfKind = iota
	SelfValue
	SelfRef
	SelfRefMut
)

// Static is a `static` item
type Static struct {
	itemMarker
	Mut   bool
	Type  *TypeRef
	Value Expr
}

// Const is a `const` item
type Const struct {
	itemMarker
	Type  *TypeRef
	Value Expr
}

// StructField is a named or tuple field. A false cfg clears Name on
// named fields and Type on tuple fields; layout skips cleared entries.
type StructField struct {
	Attrs AttrList
	Pub   bool
	Name  string // "" for tuple fields or cfg-cleared named fields
	Type  *TypeRef
}

// StructKind distinguishes unit, tuple, and named-field structs
type StructKind int

const (
	StructUnit StructKind = iota
	StructTupleKind
	StructNamed
)

// Struct is a struct definition
type Struct struct {
	itemMarker
	Generics GenericParams
	Kind     StructKind
	Fields   []StructField
}

// Union is a union definition
type Union struct {
	itemMarker
	Generics GenericParams
	Fields   []StructField
}

// EnumVariant is one variant; a false cfg clears Name
type EnumVariant struct {
	Attrs AttrList
	Name  string
	Kind  StructKind

	Fields []StructField
	Disc   Expr // explicit discriminant, or nil
}

// Enum is an enum definition
type Enum struct {
	itemMarker
	Generics GenericParams
	Variants []EnumVariant
}

// FindVariant returns the index of the named variant, or -1
func (e *Enum) FindVariant(name string) int {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return i
		}
	}
	return -1
}

// AssocType is an associated-type declaration inside a trait
type AssocType struct {
	Name    string
	Bounds  []GenericBound
	Default *TypeRef
}

// Trait is a trait definition
type Trait struct {
	itemMarker
	Generics    GenericParams
	SuperTraits []*Path
	Types       []AssocType
	Items       []*ItemEntry // functions and consts
}

// FindItem returns the trait item with the given name, or nil
func (t *Trait) FindItem(name string) *ItemEntry {
	for _, it := range t.Items {
		if it.Name == name {
			return it
		}
	}
	return nil
}

// HasAssocType reports whether the trait declares the associated type
func (t *Trait) HasAssocType(name string) bool {
	for _, a := range t.Types {
		if a.Name == name {
			return true
		}
	}
	return false
}

// TraitAlias is `trait A = B + C`
type TraitAlias struct {
	itemMarker
	Generics GenericParams
	Traits   []*Path
}

// TypeAlias is `type A = B`
type TypeAlias struct {
	itemMarker
	Generics GenericParams
	Type     *TypeRef
}

// AssocTypeDef is an associated-type definition inside an impl
type AssocTypeDef struct {
	Name string
	Type *TypeRef
}

// Impl is an impl block: inherent when Trait is nil. A false cfg clears
// SelfType; later passes skip impls with a nil self type.
type Impl struct {
	itemMarker
	Attrs    AttrList
	Generics GenericParams
	Trait    *Path // nil for inherent impls
	SelfType *TypeRef
	Types    []AssocTypeDef
	Items    []*ItemEntry
}

// FindItem returns the impl item with the given name, or nil
func (im *Impl) FindItem(name string) *ItemEntry {
	for _, it := range im.Items {
		if it.Name == name {
			return it
		}
	}
	return nil
}

// NegImpl is a negative trait impl (`impl !Send for T`)
type NegImpl struct {
	itemMarker
	Generics GenericParams
	Trait    *Path
	SelfType *TypeRef
}

// ExternBlock is `extern "abi" { ... }`
type ExternBlock struct {
	itemMarker
	Abi   string
	Items []*ItemEntry
}

// MacroInvocation is an unexpanded `name!(tokens)` at any syntactic
// position. A cleared Name marks an invocation deleted by cfg.
type MacroInvocation struct {
	itemMarker
	Name    string
	Ident   string // `name! ident (...)` form, usually empty
	Input   []token.Tree
	Span    span.Span
	Hygiene Hygiene
}

// Clear tombstones the invocation
func (m *MacroInvocation) Clear() {
	m.Name = ""
	m.Input = nil
}

// IsCleared reports whether the invocation was removed by cfg
func (m *MacroInvocation) IsCleared() bool { return m.Name == "" }

// MacroRulesArm is one `(pattern) => {body}` arm
type MacroRulesArm struct {
	Pattern []token.Tree
	Body    []token.Tree
}

// MacroRulesDef is a macro_rules! definition
type MacroRulesDef struct {
	itemMarker
	Name     string
	Arms     []MacroRulesArm
	DefMod   *Module // module the macro was defined in, anchors $crate
	Exported bool    // #[macro_export]
}

// IndexEnt is one entry of a module's name index
type IndexEnt struct {
	Path     *Path // absolute path of the target
	IsImport bool
}

// Module owns an ordered item list, pending macro invocations, impls,
// anonymous block-modules, and the three name indices built by the
// index pass.
type Module struct {
	itemMarker
	Path  *Path // absolute path of this module
	Items []*ItemEntry

	MacroInvs []*MacroInvocation
	Impls     []*Impl
	NegImpls  []*NegImpl
	AnonMods  []*Module

	MacroRules   []*MacroRulesDef
	MacroImports map[string]*MacroRulesDef // #[macro_use]-imported defs

	// Name indices, populated by the index pass
	NamespaceItems map[string]IndexEnt
	TypeItems      map[string]IndexEnt
	ValueItems     map[string]IndexEnt
}

// NewModule creates an empty module with the given absolute path
func NewModule(path *Path) *Module {
	return &Module{Path: path}
}

// FindItem returns the first non-tombstone item with the given name
func (m *Module) FindItem(name string) *ItemEntry {
	for _, it := range m.Items {
		if !it.IsTombstone() && it.Name == name {
			return it
		}
	}
	return nil
}

// FindMacro returns a locally defined macro_rules with the given name.
// Later definitions shadow earlier ones.
func (m *Module) FindMacro(name string) *MacroRulesDef {
	for i := len(m.MacroRules) - 1; i >= 0; i-- {
		if m.MacroRules[i].Name == name {
			return m.MacroRules[i]
		}
	}
	if def, ok := m.MacroImports[name]; ok {
		return def
	}
	return nil
}

// ExternCrateRef describes a loaded dependency crate: its name and the
// resolved item index of its root (a flattened absolute-path map).
type ExternCrateRef struct {
	Name  string
	Index map[string]IndexEnt // path-key → entry, imports pre-followed
	Items map[string]Item     // path-key → item payload
}

// Crate is the root container for one compilation
type Crate struct {
	Root    *Module
	Externs map[string]*ExternCrateRef
	Attrs   AttrList

	Edition2018 bool

	TestHarness bool
	Tests       []*Path

	// LangItems maps lang-item names (add, deref, non_zero, ...) to the
	// absolute path of the marked item.
	LangItems map[string]*Path
}

// NewCrate creates an empty crate with a root module
func NewCrate() *Crate {
	return &Crate{
		Root:      NewModule(AbsolutePath("")),
		Externs:   map[string]*ExternCrateRef{},
		LangItems: map[string]*Path{},
	}
}

// LangItem returns the path registered for a lang item, or nil
func (c *Crate) LangItem(name string) *Path {
	return c.LangItems[name]
}
