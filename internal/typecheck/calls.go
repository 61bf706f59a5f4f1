package typecheck

import (
	"strconv"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/hir"
)

// freshItemArgs builds the item-level substitution for a generic list:
// explicit path arguments first, then declared defaults, then fresh
// ivars.
func (ck *Checker) freshItemArgs(g *ast.GenericParams, explicit []*ast.TypeRef) []*ast.TypeRef {
	if g == nil {
		return nil
	}
	out := make([]*ast.TypeRef, len(g.Types))
	for i := range g.Types {
		switch {
		case i < len(explicit) && explicit[i] != nil:
			out[i] = explicit[i]
		case g.Types[i].Default != nil:
			out[i] = g.Types[i].Default.Clone()
		default:
			out[i] = ck.newIvar(ast.IvarAny)
		}
	}
	return out
}

// selfParamType renders a method's receiver shape
func selfParamType(kind ast.SelfKind, selfTy *ast.TypeRef) *ast.TypeRef {
	switch kind {
	case ast.SelfRef:
		return ast.BorrowType(false, selfTy)
	case ast.SelfRefMut:
		return ast.BorrowType(true, selfTy)
	default:
		return selfTy
	}
}

// signature is a monomorphised callable shape
type signature struct {
	params []*ast.TypeRef
	ret    *ast.TypeRef
}

// sigOfAstFn monomorphises a function declaration
func sigOfAstFn(fn *ast.Function, s *subst, withSelf bool) signature {
	var sig signature
	if withSelf && fn.SelfKind != ast.SelfNone {
		sig.params = append(sig.params, monomorphise(selfParamType(fn.SelfKind, ast.SelfType()), s))
	}
	for _, p := range fn.Params {
		sig.params = append(sig.params, monomorphise(p.Type, s))
	}
	ret := fn.Ret
	if ret == nil {
		ret = ast.UnitType()
	}
	sig.ret = monomorphise(ret, s)
	return sig
}

// sigOfHirFn monomorphises a lowered function's signature
func sigOfHirFn(fn *hir.Function, s *subst, withSelf bool) signature {
	var sig signature
	if withSelf && fn.SelfKind != ast.SelfNone {
		selfTy := fn.SelfType
		if selfTy == nil {
			selfTy = ast.SelfType()
		}
		sig.params = append(sig.params, monomorphise(selfParamType(fn.SelfKind, selfTy), s))
	}
	for _, p := range fn.Params {
		sig.params = append(sig.params, monomorphise(p.Type, s))
	}
	sig.ret = monomorphise(fn.Ret, s)
	return sig
}

// variantEnumInfo maps an enum-variant path back to its enum
func (ck *Checker) variantEnumInfo(p *ast.Path) (*ast.Path, *ast.Enum, int, bool) {
	if len(p.Nodes) < 2 {
		return nil, nil, 0, false
	}
	parent := p.Clone()
	parent.Nodes = parent.Nodes[:len(parent.Nodes)-1]
	parent.Binding = ast.BindingPair{}
	e, ok := ck.Crate.Ast.EnumAt(parent)
	if !ok {
		return nil, nil, 0, false
	}
	idx := e.FindVariant(p.Nodes[len(p.Nodes)-1].Name)
	if idx < 0 {
		return nil, nil, 0, false
	}
	return parent, e, idx, true
}

// nominalType builds the nominal type a struct/enum-variant path names,
// with fresh ivars for unstated generic arguments.
func (ck *Checker) nominalType(p *ast.Path) *ast.TypeRef {
	explicit := pathArgs(p)

	var gen *ast.GenericParams
	base := p
	if p.Binding.Value.Kind == ast.BindEnumVariant || p.Binding.Type.Kind == ast.BindEnumVariant {
		if parent, e, _, ok := ck.variantEnumInfo(p); ok {
			gen = &e.Generics
			base = parent
		}
	} else if entry, ok := ck.Crate.Ast.ItemAt(p); ok {
		switch d := entry.Data.(type) {
		case *ast.Struct:
			gen = &d.Generics
		case *ast.Union:
			gen = &d.Generics
		case *ast.Enum:
			gen = &d.Generics
		}
	}

	nom := base.Clone()
	nom.Binding = p.Binding
	if gen != nil && len(gen.Types) > 0 {
		nom.Nodes[len(nom.Nodes)-1].Args = ck.freshItemArgs(gen, explicit)
	}
	return ast.PathType(nom)
}

// typeCallPath resolves and applies a call through a path. The
// monomorphised signature is cached on the node.
func (ck *Checker) typeCallPath(n *hir.CallPath) error {
	for i := range n.Args {
		if err := ck.visit(&n.Args[i]); err != nil {
			return err
		}
	}
	if n.CacheArgs == nil {
		sig, ready, err := ck.resolveCallSig(n)
		if err != nil {
			return err
		}
		if !ready {
			return nil
		}
		n.CacheArgs = sig.params
		n.CacheRet = sig.ret
		ck.markChange()
	}

	if len(n.CacheArgs) != len(n.Args) {
		return ck.errorAt(diag.TYP006, n.Sp,
			"%s takes %d arguments, %d supplied", n.Path, len(n.CacheArgs), len(n.Args))
	}
	for i := range n.Args {
		if err := ck.applyEquality(n.CacheArgs[i], n.Args[i].ResType(), &n.Args[i], n.Sp); err != nil {
			return err
		}
	}
	return ck.applyEquality(n.Res, n.CacheRet, nil, n.Sp)
}

// resolveCallSig computes the callee signature for a path call
func (ck *Checker) resolveCallSig(n *hir.CallPath) (signature, bool, error) {
	p := n.Path

	if p.Class == ast.PathUFCS {
		return ck.resolveUfcsCallSig(n, p)
	}

	switch p.Binding.Value.Kind {
	case ast.BindFunction:
		fn, ok := ck.Crate.FindFunction(p.Key())
		if !ok {
			return signature{}, false, ck.errorAt(diag.TYP002, n.Sp,
				"function %s has no lowered body or signature", p)
		}
		s := &subst{item: ck.freshItemArgs(fn.Generics, pathArgs(p))}
		return sigOfHirFn(fn, s, false), true, nil

	case ast.BindEnumVariant:
		parent, e, idx, ok := ck.variantEnumInfo(p)
		if !ok {
			return signature{}, false, ck.errorAt(diag.TYP002, n.Sp, "cannot resolve variant %s", p)
		}
		implArgs := ck.freshItemArgs(&e.Generics, pathArgs(p))
		nom := parent.Clone()
		if len(implArgs) > 0 {
			nom.Nodes[len(nom.Nodes)-1].Args = implArgs
		}
		s := &subst{impl: implArgs}
		var sig signature
		for _, f := range e.Variants[idx].Fields {
			if f.Type == nil {
				continue
			}
			sig.params = append(sig.params, monomorphise(f.Type, s))
		}
		sig.ret = ast.PathType(nom)
		return sig, true, nil

	case ast.BindStruct:
		def, ok := ck.Crate.Ast.StructAt(p)
		if !ok {
			return signature{}, false, ck.errorAt(diag.TYP002, n.Sp, "cannot resolve struct %s", p)
		}
		implArgs := ck.freshItemArgs(&def.Generics, pathArgs(p))
		nom := p.Clone()
		if len(implArgs) > 0 {
			nom.Nodes[len(nom.Nodes)-1].Args = implArgs
		}
		s := &subst{impl: implArgs}
		var sig signature
		for _, f := range def.Fields {
			if f.Type == nil {
				continue
			}
			sig.params = append(sig.params, monomorphise(f.Type, s))
		}
		sig.ret = ast.PathType(nom)
		return sig, true, nil

	case ast.BindVariable, ast.BindStatic, ast.BindConstant:
		// A call of a fn-typed value: route through its value type.
		return signature{}, false, ck.errorAt(diag.TYP002, n.Sp,
			"call through value paths uses CallValue, not CallPath")

	default:
		return signature{}, false, ck.errorAt(diag.TYP002, n.Sp,
			"cannot call %s (%s)", p, p.Binding.Value.Kind)
	}
}

// resolveUfcsCallSig handles <T as Trait>::f and <T>::f calls
func (ck *Checker) resolveUfcsCallSig(n *hir.CallPath, p *ast.Path) (signature, bool, error) {
	if len(p.Nodes) == 0 {
		return signature{}, false, ck.errorAt(diag.TYP002, n.Sp, "empty UFCS path")
	}
	name := p.Nodes[0].Name

	// An open self type gets a fresh ivar, bound by argument equations.
	if p.UfcsType == nil {
		p.UfcsType = ck.newIvar(ast.IvarAny)
	}
	selfTy := p.UfcsType

	if p.UfcsTrait != nil {
		def, ok := ck.Crate.Ast.TraitAt(p.UfcsTrait)
		if !ok {
			return signature{}, false, ck.errorAt(diag.TYP002, n.Sp,
				"trait %s not found", p.UfcsTrait)
		}
		it := def.FindItem(name)
		if it == nil {
			return signature{}, false, ck.errorAt(diag.TYP002, n.Sp,
				"trait %s has no item %q", p.UfcsTrait, name)
		}
		fn, isFn := it.Data.(*ast.Function)
		if !isFn {
			return signature{}, false, ck.errorAt(diag.TYP002, n.Sp,
				"trait item %q is not callable", name)
		}
		s := &subst{
			self: selfTy,
			impl: pathArgs(p.UfcsTrait),
			item: ck.freshItemArgs(&fn.Generics, p.Nodes[0].Args),
		}
		return sigOfAstFn(fn, s, true), true, nil
	}

	// Inherent UFCS: the self type must be concrete enough to find the
	// impl.
	st := ck.resolveShallow(selfTy)
	if st.Kind == ast.TypeInfer {
		return signature{}, false, nil
	}
	for _, ref := range ck.Crate.Impls {
		if ref.Def.Trait != nil {
			continue
		}
		it := ref.Def.FindItem(name)
		if it == nil {
			continue
		}
		params := make([]*ast.TypeRef, len(ref.Def.Generics.Types))
		if ck.matchTypes(ref.Def.SelfType, st, params) == matchNone {
			continue
		}
		fn, isFn := it.Data.(*ast.Function)
		if !isFn {
			continue
		}
		s := &subst{
			self: st,
			impl: params,
			item: ck.freshItemArgs(&fn.Generics, p.Nodes[0].Args),
		}
		return sigOfAstFn(fn, s, true), true, nil
	}
	return signature{}, false, ck.errorAt(diag.TYP003, n.Sp,
		"no inherent item %q on %s", name, ck.resolveDeep(selfTy))
}

// typeCallValue applies a call of a function-typed value
func (ck *Checker) typeCallValue(n *hir.CallValue) error {
	if err := ck.visit(&n.Fn); err != nil {
		return err
	}
	for i := range n.Args {
		if err := ck.visit(&n.Args[i]); err != nil {
			return err
		}
	}
	ft := ck.resolveShallow(n.Fn.ResType())
	if ft.Kind == ast.TypeInfer {
		return nil
	}
	if ft.Kind != ast.TypeFunction && ft.Kind != ast.TypeClosure || ft.Fn == nil {
		return ck.errorAt(diag.TYP001, n.Sp, "cannot call a value of type %s", ck.resolveDeep(ft))
	}
	if len(ft.Fn.Args) != len(n.Args) {
		return ck.errorAt(diag.TYP006, n.Sp,
			"callee takes %d arguments, %d supplied", len(ft.Fn.Args), len(n.Args))
	}
	for i := range n.Args {
		if err := ck.applyEquality(ft.Fn.Args[i], n.Args[i].ResType(), &n.Args[i], n.Sp); err != nil {
			return err
		}
	}
	return ck.applyEquality(n.Res, ft.Fn.Ret, nil, n.Sp)
}

// typeMethodCall resolves the method through auto-deref on first
// success, wraps the receiver in the required Deref nodes, then applies
// the monomorphised signature.
func (ck *Checker) typeMethodCall(slot *hir.Expr, n *hir.MethodCall) error {
	if err := ck.visit(&n.Recv); err != nil {
		return err
	}
	for i := range n.Args {
		if err := ck.visit(&n.Args[i]); err != nil {
			return err
		}
	}

	if n.Resolved == nil {
		path, derefs, err := ck.autoderefFindMethod(n.Recv.ResType(), n.Name, n.Sp)
		if err != nil {
			return err
		}
		if path == nil {
			return nil // receiver not yet known
		}
		n.Resolved = path
		n.DerefCount = derefs
		for i := 0; i < derefs; i++ {
			d := &hir.Deref{Inner: n.Recv}
			d.Sp = n.Sp
			d.Res = ck.newIvar(ast.IvarAny)
			n.Recv = d
		}
		ck.markChange()
	}

	if n.CacheArgs == nil {
		call := &hir.CallPath{Path: n.Resolved}
		call.Sp = n.Sp
		sig, ready, err := ck.resolveCallSig(call)
		if err != nil {
			return err
		}
		if !ready {
			return nil
		}
		if len(sig.params) == 0 {
			return ck.errorAt(diag.TYP003, n.Sp, "method %q takes no receiver", n.Name)
		}
		n.CacheArgs = sig.params
		n.CacheRet = sig.ret
		ck.markChange()
	}

	// params[0] is the receiver shape; explicit args follow.
	if len(n.CacheArgs)-1 != len(n.Args) {
		return ck.errorAt(diag.TYP006, n.Sp,
			"method %q takes %d arguments, %d supplied", n.Name, len(n.CacheArgs)-1, len(n.Args))
	}
	recvShape := ck.resolveShallow(n.CacheArgs[0])
	if recvShape.Kind == ast.TypeBorrow {
		// Auto-borrowed receiver: match the pointee.
		if err := ck.applyEquality(recvShape.Inner, n.Recv.ResType(), nil, n.Sp); err != nil {
			return err
		}
	} else if err := ck.applyEquality(n.CacheArgs[0], n.Recv.ResType(), nil, n.Sp); err != nil {
		return err
	}
	for i := range n.Args {
		if err := ck.applyEquality(n.CacheArgs[i+1], n.Args[i].ResType(), &n.Args[i], n.Sp); err != nil {
			return err
		}
	}
	return ck.applyEquality(n.Res, n.CacheRet, nil, n.Sp)
}

// typeStructLit applies field equations against the literal's nominal
// type (established at enumeration).
func (ck *Checker) typeStructLit(n *hir.StructLit) error {
	for i := range n.Fields {
		if err := ck.visit(&n.Fields[i].Value); err != nil {
			return err
		}
	}
	nom := ck.resolveShallow(n.Res)
	if nom.Kind != ast.TypePath || nom.Path == nil {
		return nil
	}
	s := &subst{self: nom, impl: pathArgs(nom.Path)}

	var fields []ast.StructField
	found := false
	p := n.Path
	if p.Binding.Value.Kind == ast.BindEnumVariant || p.Binding.Type.Kind == ast.BindEnumVariant {
		if _, e, idx, ok := ck.variantEnumInfo(p); ok {
			fields = e.Variants[idx].Fields
			found = true
		}
	} else if entry, ok := ck.Crate.Ast.ItemAt(p); ok {
		switch d := entry.Data.(type) {
		case *ast.Struct:
			fields = d.Fields
			found = true
		case *ast.Union:
			fields = d.Fields
			found = true
		}
	}
	if !found {
		return ck.errorAt(diag.TYP001, n.Sp, "%s is not a struct or variant", p)
	}

	for i := range n.Fields {
		ft := fieldTypeByName(fields, n.Fields[i].Name)
		if ft == nil {
			return ck.errorAt(diag.TYP001, n.Sp, "no field %q on %s", n.Fields[i].Name, p)
		}
		if err := ck.applyEquality(monomorphise(ft, s), n.Fields[i].Value.ResType(), &n.Fields[i].Value, n.Sp); err != nil {
			return err
		}
	}
	return nil
}

func fieldTypeByName(fields []ast.StructField, name string) *ast.TypeRef {
	for i := range fields {
		if fields[i].Name == name {
			return fields[i].Type
		}
	}
	// Tuple-position names ("0", "1", ...) index unnamed fields.
	idx := 0
	for i := range fields {
		if fields[i].Name != "" {
			continue
		}
		if tupleName(idx) == name {
			return fields[i].Type
		}
		idx++
	}
	return nil
}

func tupleName(i int) string {
	return strconv.Itoa(i)
}

// enumeratePathValue types a value path once, at enumeration
func (ck *Checker) enumeratePathValue(n *hir.PathValue) error {
	p := n.Path
	switch {
	case p.Class == ast.PathLocal && p.Binding.Value.Kind == ast.BindVariable:
		return ck.applyEquality(n.Res, ck.localType(p.Binding.Value.Slot), nil, n.Sp)

	case p.Binding.Value.Kind == ast.BindFunction:
		fn, ok := ck.Crate.FindFunction(p.Key())
		if !ok {
			return ck.errorAt(diag.TYP002, n.Sp, "function %s has no signature", p)
		}
		s := &subst{item: ck.freshItemArgs(fn.Generics, pathArgs(p))}
		sig := sigOfHirFn(fn, s, false)
		return ck.applyEquality(n.Res,
			&ast.TypeRef{Kind: ast.TypeFunction, Fn: &ast.FnSig{Args: sig.params, Ret: sig.ret}},
			nil, n.Sp)

	case p.Binding.Value.Kind == ast.BindConstant || p.Binding.Value.Kind == ast.BindStatic:
		entry, ok := ck.Crate.Ast.ItemAt(p)
		if !ok {
			return ck.errorAt(diag.TYP002, n.Sp, "cannot resolve %s", p)
		}
		switch d := entry.Data.(type) {
		case *ast.Const:
			return ck.applyEquality(n.Res, d.Type, nil, n.Sp)
		case *ast.Static:
			return ck.applyEquality(n.Res, d.Type, nil, n.Sp)
		}
		return nil

	case p.Binding.Value.Kind == ast.BindEnumVariant:
		// A unit variant used as a value takes the enum's type.
		return ck.applyEquality(n.Res, ck.nominalType(p), nil, n.Sp)

	case p.Binding.Value.Kind == ast.BindStruct:
		return ck.applyEquality(n.Res, ck.nominalType(p), nil, n.Sp)

	default:
		return ck.errorAt(diag.TYP002, n.Sp, "path %s is not a value", p)
	}
}

// typeField projects a field, auto-dereferencing the base type
func (ck *Checker) typeField(n *hir.Field) error {
	base := ck.resolveShallow(n.Base.ResType())
	for i := 0; i < maxAutoDeref; i++ {
		if base.Kind == ast.TypeBorrow || base.Kind == ast.TypePointer {
			base = ck.resolveShallow(base.Inner)
			continue
		}
		if base.Kind == ast.TypePath && ck.isBoxType(base) {
			base = ck.resolveShallow(pathArgs(base.Path)[0])
			continue
		}
		break
	}

	switch base.Kind {
	case ast.TypeInfer:
		return nil // retry later
	case ast.TypeTuple:
		idx := tupleIndex(n.Name)
		if idx < 0 || idx >= len(base.Elems) {
			return ck.errorAt(diag.TYP001, n.Sp, "no field %q on %s", n.Name, base)
		}
		return ck.applyEquality(n.Res, base.Elems[idx], nil, n.Sp)
	case ast.TypePath:
		entry, ok := ck.Crate.Ast.ItemAt(base.Path)
		if !ok {
			return ck.errorAt(diag.TYP001, n.Sp, "unknown type %s", base)
		}
		var fields []ast.StructField
		switch d := entry.Data.(type) {
		case *ast.Struct:
			fields = d.Fields
		case *ast.Union:
			fields = d.Fields
		default:
			return ck.errorAt(diag.TYP001, n.Sp, "type %s has no fields", base)
		}
		ft := fieldTypeByName(fields, n.Name)
		if ft == nil {
			return ck.errorAt(diag.TYP001, n.Sp, "no field %q on %s", n.Name, base)
		}
		s := &subst{self: base, impl: pathArgs(base.Path)}
		return ck.applyEquality(n.Res, monomorphise(ft, s), nil, n.Sp)
	default:
		return ck.errorAt(diag.TYP001, n.Sp, "type %s has no fields", ck.resolveDeep(base))
	}
}

func tupleIndex(name string) int {
	idx := 0
	for _, c := range name {
		if c < '0' || c > '9' {
			return -1
		}
		idx = idx*10 + int(c-'0')
	}
	if name == "" {
		return -1
	}
	return idx
}

// typeIndex types base[idx] over arrays and slices
func (ck *Checker) typeIndex(n *hir.Index) error {
	base := ck.resolveShallow(n.Base.ResType())
	for base.Kind == ast.TypeBorrow {
		base = ck.resolveShallow(base.Inner)
	}
	switch base.Kind {
	case ast.TypeInfer:
		return nil
	case ast.TypeArray, ast.TypeSlice:
		if err := ck.applyEquality(ast.PrimType(ast.PrimUsize), n.Idx.ResType(), nil, n.Sp); err != nil {
			return err
		}
		return ck.applyEquality(n.Res, base.Inner, nil, n.Sp)
	default:
		return ck.errorAt(diag.TYP001, n.Sp, "cannot index %s", ck.resolveDeep(base))
	}
}

// typeDeref types *expr through borrows, raw pointers, and Box
func (ck *Checker) typeDeref(n *hir.Deref) error {
	inner := ck.resolveShallow(n.Inner.ResType())
	switch {
	case inner.Kind == ast.TypeInfer:
		return nil
	case inner.Kind == ast.TypeBorrow || inner.Kind == ast.TypePointer:
		return ck.applyEquality(n.Res, inner.Inner, nil, n.Sp)
	case inner.Kind == ast.TypePath && ck.isBoxType(inner):
		return ck.applyEquality(n.Res, pathArgs(inner.Path)[0], nil, n.Sp)
	default:
		return ck.errorAt(diag.TYP001, n.Sp, "cannot dereference %s", ck.resolveDeep(inner))
	}
}
