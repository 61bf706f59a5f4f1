package typecheck

import (
	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/span"
)

// langForBinOp maps operators to their lang-item trait names
var langForBinOp = map[ast.BinOpKind]string{
	ast.BinOpAdd:    "add",
	ast.BinOpSub:    "sub",
	ast.BinOpMul:    "mul",
	ast.BinOpDiv:    "div",
	ast.BinOpRem:    "rem",
	ast.BinOpBitAnd: "bitand",
	ast.BinOpBitOr:  "bitor",
	ast.BinOpBitXor: "bitxor",
	ast.BinOpShl:    "shl",
	ast.BinOpShr:    "shr",
	ast.BinOpEq:     "eq",
	ast.BinOpNe:     "eq",
	ast.BinOpLt:     "ord",
	ast.BinOpLe:     "ord",
	ast.BinOpGt:     "ord",
	ast.BinOpGe:     "ord",
}

// typeBinOp types `a op b`: primitives use the built-in rules; anything
// else dispatches through the operator's lang-item trait.
func (ck *Checker) typeBinOp(n *hir.BinOp, sp span.Span) error {
	lt := ck.resolveShallow(n.Lhs.ResType())
	rt := ck.resolveShallow(n.Rhs.ResType())

	// Boolean short-circuit operators are not overloadable.
	if n.Op == ast.BinOpBoolAnd || n.Op == ast.BinOpBoolOr {
		boolTy := ast.PrimType(ast.PrimBool)
		if err := ck.applyEquality(boolTy, n.Lhs.ResType(), nil, sp); err != nil {
			return err
		}
		if err := ck.applyEquality(boolTy, n.Rhs.ResType(), nil, sp); err != nil {
			return err
		}
		return ck.applyEquality(n.Res, boolTy, nil, sp)
	}

	lPrim := lt.Kind == ast.TypePrimitive ||
		(lt.Kind == ast.TypeInfer && lt.Class != ast.IvarAny)
	rPrim := rt.Kind == ast.TypePrimitive ||
		(rt.Kind == ast.TypeInfer && rt.Class != ast.IvarAny)

	if lPrim && rPrim {
		return ck.typePrimBinOp(n, lt, rt, sp)
	}
	if lt.Kind == ast.TypeInfer {
		return nil // retry once the left side resolves
	}
	return ck.typeOverloadedBinOp(n, lt, rt, sp)
}

// typePrimBinOp applies the primitive operator rules: operands unify,
// the operator must suit the primitive class, and the result is the
// left type (bool for comparisons).
func (ck *Checker) typePrimBinOp(n *hir.BinOp, lt, rt *ast.TypeRef, sp span.Span) error {
	// Shifts permit differing integer widths; everything else equates.
	if n.Op != ast.BinOpShl && n.Op != ast.BinOpShr {
		if err := ck.applyEquality(n.Lhs.ResType(), n.Rhs.ResType(), nil, sp); err != nil {
			return err
		}
	}

	if lt.Kind == ast.TypePrimitive {
		if err := ck.checkPrimOp(n.Op, lt.Prim, sp); err != nil {
			return err
		}
	}

	if n.Op.IsComparison() {
		return ck.applyEquality(n.Res, ast.PrimType(ast.PrimBool), nil, sp)
	}
	return ck.applyEquality(n.Res, n.Lhs.ResType(), nil, sp)
}

// checkPrimOp validates one operator/primitive combination
func (ck *Checker) checkPrimOp(op ast.BinOpKind, p ast.Primitive, sp span.Span) error {
	valid := true
	switch op {
	case ast.BinOpAdd, ast.BinOpSub, ast.BinOpMul, ast.BinOpDiv, ast.BinOpRem:
		valid = p.IsInteger() || p.IsFloat()
	case ast.BinOpBitAnd, ast.BinOpBitOr, ast.BinOpBitXor:
		valid = p.IsInteger() || p == ast.PrimBool
	case ast.BinOpShl, ast.BinOpShr:
		valid = p.IsInteger()
	}
	if !valid {
		return ck.errorAt(diag.TYP008, sp, "operator %s is not defined for %s", op, p)
	}
	return nil
}

// typeOverloadedBinOp dispatches through the lang-item trait. Exact and
// fuzzy candidates are counted; a single fuzzy match with no exact one
// unifies its argument with the right-hand side.
func (ck *Checker) typeOverloadedBinOp(n *hir.BinOp, lt, rt *ast.TypeRef, sp span.Span) error {
	langName, ok := langForBinOp[n.Op]
	if !ok {
		return ck.errorAt(diag.TYP008, sp, "operator %s cannot be overloaded", n.Op)
	}
	traitPath := ck.Crate.Ast.LangItem(langName)
	if traitPath == nil {
		return ck.errorAt(diag.TYP008, sp,
			"no %q lang item registered; cannot dispatch operator %s", langName, n.Op)
	}

	cands := ck.findTraitImpls(traitPath.Key(), lt, sp)
	var exact, fuzzy []implMatch
	for _, cand := range cands {
		rhsPat := implTraitArg(cand.impl.Def, lt)
		s := &subst{self: lt, impl: cand.params}
		rhsTy := monomorphise(rhsPat, s)
		switch {
		case ck.sameTypeShape(rhsTy, rt):
			exact = append(exact, cand)
		case ck.resolveShallow(rhsTy).Kind == ast.TypeInfer ||
			rt.Kind == ast.TypeInfer || rhsTy.ContainsGeneric():
			fuzzy = append(fuzzy, cand)
		}
	}

	var chosen *implMatch
	switch {
	case len(exact) >= 1:
		chosen = &exact[0]
	case len(fuzzy) == 1:
		chosen = &fuzzy[0]
		rhsPat := implTraitArg(chosen.impl.Def, lt)
		s := &subst{self: lt, impl: chosen.params}
		if err := ck.applyEquality(monomorphise(rhsPat, s), n.Rhs.ResType(), nil, sp); err != nil {
			return err
		}
	case len(fuzzy) > 1:
		return nil // still ambiguous; retry next iteration
	default:
		return ck.errorAt(diag.TYP001, sp,
			"no implementation of %s for %s", langName, ck.resolveDeep(lt))
	}

	if n.Op.IsComparison() {
		return ck.applyEquality(n.Res, ast.PrimType(ast.PrimBool), nil, sp)
	}

	// Arithmetic result is the impl's Output associated type.
	s := &subst{self: lt, impl: chosen.params}
	for _, def := range chosen.impl.Def.Types {
		if def.Name == "Output" {
			return ck.applyEquality(n.Res, monomorphise(def.Type, s), nil, sp)
		}
	}
	return ck.applyEquality(n.Res, lt, nil, sp)
}

// implTraitArg extracts the operator trait's RHS argument from an impl
// header (`impl Add<Rhs> for T`); a missing argument defaults to Self.
func implTraitArg(impl *ast.Impl, selfTy *ast.TypeRef) *ast.TypeRef {
	args := pathArgs(impl.Trait)
	if len(args) >= 1 {
		return args[0]
	}
	return selfTy
}

// typeUnOp types `-a` and `!a`
func (ck *Checker) typeUnOp(n *hir.UnOp, sp span.Span) error {
	t := ck.resolveShallow(n.Inner.ResType())
	switch n.Op {
	case ast.UnOpNeg:
		if t.Kind == ast.TypePrimitive && !t.Prim.IsInteger() && !t.Prim.IsFloat() {
			return ck.errorAt(diag.TYP008, sp, "cannot negate %s", t)
		}
	case ast.UnOpNot:
		if t.Kind == ast.TypePrimitive && !t.Prim.IsInteger() && t.Prim != ast.PrimBool {
			return ck.errorAt(diag.TYP008, sp, "cannot apply ! to %s", t)
		}
	}
	return ck.applyEquality(n.Res, n.Inner.ResType(), nil, sp)
}
