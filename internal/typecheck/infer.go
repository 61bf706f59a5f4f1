package typecheck

import (
	"sort"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/hir"
	"github.com/sunholo/ferrous/internal/span"
)

// CheckCrate runs inference over every lowered function body. Each body
// gets an independent context; bodies are visited in path order so
// failures are reproducible.
func CheckCrate(crate *hir.Crate, sink *diag.Sink) error {
	for _, ref := range crate.Impls {
		names := make([]string, 0, len(ref.Fns))
		for name := range ref.Fns {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ck := NewChecker(crate, sink, ref.Fns[name])
			ck.AddBounds(&ref.Def.Generics)
			if err := ck.Check(); err != nil {
				return err
			}
		}
	}
	keys := make([]string, 0, len(crate.Functions))
	for key := range crate.Functions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fn := crate.Functions[key]
		if fn.SelfType != nil {
			continue // impl methods were checked above
		}
		ck := NewChecker(crate, sink, fn)
		if err := ck.Check(); err != nil {
			return err
		}
	}
	return nil
}

// Check runs the three inference phases over the checker's function
func (ck *Checker) Check() error {
	fn := ck.Fn
	if fn.Body == nil {
		return nil
	}
	var root hir.Expr = fn.Body

	// Phase 1: enumeration — allocate ivars and one-shot equalities.
	if err := ck.enumerate(&root); err != nil {
		return err
	}
	if err := ck.seedSignature(); err != nil {
		return err
	}
	if err := ck.applyEquality(fn.Ret, root.ResType(), &root, span.Span{}); err != nil {
		return err
	}

	// Phase 2: iteration to fixpoint, bounded.
	ck.changed = true
	for iter := 0; iter < maxIterations && ck.takeChanged(); iter++ {
		if err := ck.visit(&root); err != nil {
			return err
		}
	}

	// Phase 3: defaulting and validation.
	if err := ck.defaultLiterals(root); err != nil {
		return err
	}
	if blk, ok := root.(*hir.Block); ok {
		fn.Body = blk
	}
	return ck.validate(root)
}

// seedSignature types the parameter patterns against the declared types
func (ck *Checker) seedSignature() error {
	slot := 0
	if ck.Fn.SelfKind != ast.SelfNone {
		selfTy := ck.Fn.SelfType
		if selfTy == nil {
			selfTy = ast.SelfType()
		}
		switch ck.Fn.SelfKind {
		case ast.SelfRef:
			selfTy = ast.BorrowType(false, selfTy)
		case ast.SelfRefMut:
			selfTy = ast.BorrowType(true, selfTy)
		}
		ck.locals[slot] = selfTy
		slot++
	}
	for _, p := range ck.Fn.Params {
		if err := ck.typePattern(p.Pat, p.Type, span.Span{}); err != nil {
			return err
		}
	}
	return nil
}

// enumerate walks the tree allocating a result ivar for every node and
// attaching the equalities that never change across iterations.
func (ck *Checker) enumerate(slot *hir.Expr) error {
	e := *slot
	if e == nil {
		return nil
	}
	if e.ResType() == nil {
		switch n := e.(type) {
		case *hir.Literal:
			e.SetResType(ck.literalType(n))
		default:
			e.SetResType(ck.newIvar(ast.IvarAny))
		}
	}

	switch n := e.(type) {
	case *hir.Block:
		for i := range n.Stmts {
			if err := ck.enumerate(&n.Stmts[i].Init); err != nil {
				return err
			}
			ck.instantiateInfer(n.Stmts[i].Type)
		}
		if n.Tail != nil {
			if err := ck.enumerate(&n.Tail); err != nil {
				return err
			}
			// Block tail to block result.
			return ck.applyEquality(n.Res, n.Tail.ResType(), &n.Tail, n.Sp)
		}
		return ck.applyEquality(n.Res, ast.UnitType(), nil, n.Sp)

	case *hir.Match:
		if err := ck.enumerate(&n.Scrutinee); err != nil {
			return err
		}
		for i := range n.Arms {
			if n.Arms[i].Guard != nil {
				if err := ck.enumerate(&n.Arms[i].Guard); err != nil {
					return err
				}
			}
			if err := ck.enumerate(&n.Arms[i].Body); err != nil {
				return err
			}
			// Arm code to match result.
			if err := ck.applyEquality(n.Res, n.Arms[i].Body.ResType(), &n.Arms[i].Body, n.Sp); err != nil {
				return err
			}
		}
		return nil

	case *hir.If:
		if err := ck.enumerate(&n.Cond); err != nil {
			return err
		}
		if err := ck.enumerate(&n.Then); err != nil {
			return err
		}
		if err := ck.applyEquality(n.Res, n.Then.ResType(), &n.Then, n.Sp); err != nil {
			return err
		}
		if n.Else != nil {
			if err := ck.enumerate(&n.Else); err != nil {
				return err
			}
			return ck.applyEquality(n.Res, n.Else.ResType(), &n.Else, n.Sp)
		}
		return ck.applyEquality(n.Res, ast.UnitType(), nil, n.Sp)

	case *hir.Loop:
		ck.loops = append(ck.loops, &loopCtx{label: n.Label, res: n.Res})
		err := ck.enumerate(&n.Body)
		ck.loops = ck.loops[:len(ck.loops)-1]
		return err

	case *hir.While:
		ck.loops = append(ck.loops, &loopCtx{label: n.Label, res: n.Res})
		defer func() { ck.loops = ck.loops[:len(ck.loops)-1] }()
		if err := ck.enumerate(&n.Cond); err != nil {
			return err
		}
		if err := ck.enumerate(&n.Body); err != nil {
			return err
		}
		return ck.applyEquality(n.Res, ast.UnitType(), nil, n.Sp)

	case *hir.Break:
		if n.Value != nil {
			if err := ck.enumerate(&n.Value); err != nil {
				return err
			}
		}
		if lp := ck.findLoop(n.Label); lp != nil {
			val := ast.UnitType()
			var valSlot *hir.Expr
			if n.Value != nil {
				val = n.Value.ResType()
				valSlot = &n.Value
			}
			if err := ck.applyEquality(lp.res, val, valSlot, n.Sp); err != nil {
				return err
			}
		}
		return ck.applyEquality(n.Res, ast.DivergeType(), nil, n.Sp)

	case *hir.Continue:
		return ck.applyEquality(n.Res, ast.DivergeType(), nil, n.Sp)

	case *hir.Return:
		if n.Value != nil {
			if err := ck.enumerate(&n.Value); err != nil {
				return err
			}
			if err := ck.applyEquality(ck.Fn.Ret, n.Value.ResType(), &n.Value, n.Sp); err != nil {
				return err
			}
		} else if err := ck.applyEquality(ck.Fn.Ret, ast.UnitType(), nil, n.Sp); err != nil {
			return err
		}
		return ck.applyEquality(n.Res, ast.DivergeType(), nil, n.Sp)

	case *hir.CallPath:
		for i := range n.Args {
			if err := ck.enumerate(&n.Args[i]); err != nil {
				return err
			}
		}
		return nil

	case *hir.CallValue:
		if err := ck.enumerate(&n.Fn); err != nil {
			return err
		}
		for i := range n.Args {
			if err := ck.enumerate(&n.Args[i]); err != nil {
				return err
			}
		}
		return nil

	case *hir.MethodCall:
		if err := ck.enumerate(&n.Recv); err != nil {
			return err
		}
		for i := range n.Args {
			if err := ck.enumerate(&n.Args[i]); err != nil {
				return err
			}
		}
		return nil

	case *hir.Field:
		return ck.enumerate(&n.Base)

	case *hir.Index:
		if err := ck.enumerate(&n.Base); err != nil {
			return err
		}
		return ck.enumerate(&n.Idx)

	case *hir.Borrow:
		if err := ck.enumerate(&n.Inner); err != nil {
			return err
		}
		// Borrow result to inner's target.
		return ck.applyEquality(n.Res, ast.BorrowType(n.Mut, n.Inner.ResType()), nil, n.Sp)

	case *hir.Deref:
		return ck.enumerate(&n.Inner)

	case *hir.Cast:
		if err := ck.enumerate(&n.Inner); err != nil {
			return err
		}
		ck.instantiateInfer(n.To)
		return ck.applyEquality(n.Res, n.To, nil, n.Sp)

	case *hir.Unsize:
		return ck.enumerate(&n.Inner)

	case *hir.Assign:
		if err := ck.enumerate(&n.Lhs); err != nil {
			return err
		}
		if err := ck.enumerate(&n.Rhs); err != nil {
			return err
		}
		return ck.applyEquality(n.Res, ast.UnitType(), nil, n.Sp)

	case *hir.BinOp:
		if err := ck.enumerate(&n.Lhs); err != nil {
			return err
		}
		return ck.enumerate(&n.Rhs)

	case *hir.UnOp:
		return ck.enumerate(&n.Inner)

	case *hir.StructLit:
		for i := range n.Fields {
			if err := ck.enumerate(&n.Fields[i].Value); err != nil {
				return err
			}
		}
		if n.Base != nil {
			if err := ck.enumerate(&n.Base); err != nil {
				return err
			}
			if err := ck.applyEquality(n.Res, n.Base.ResType(), nil, n.Sp); err != nil {
				return err
			}
		}
		return ck.applyEquality(n.Res, ck.nominalType(n.Path), nil, n.Sp)

	case *hir.TupleLit:
		elems := make([]*ast.TypeRef, len(n.Elems))
		for i := range n.Elems {
			if err := ck.enumerate(&n.Elems[i]); err != nil {
				return err
			}
			elems[i] = n.Elems[i].ResType()
		}
		return ck.applyEquality(n.Res, ast.TupleType(elems...), nil, n.Sp)

	case *hir.ArrayLit:
		elem := ck.newIvar(ast.IvarAny)
		for i := range n.Elems {
			if err := ck.enumerate(&n.Elems[i]); err != nil {
				return err
			}
			if err := ck.applyEquality(elem, n.Elems[i].ResType(), &n.Elems[i], n.Sp); err != nil {
				return err
			}
		}
		count := n.Count
		if !n.Sized {
			count = uint64(len(n.Elems))
		}
		if n.Repeat != nil {
			if err := ck.enumerate(&n.Repeat); err != nil {
				return err
			}
			if err := ck.applyEquality(elem, n.Repeat.ResType(), &n.Repeat, n.Sp); err != nil {
				return err
			}
		}
		return ck.applyEquality(n.Res, ast.ArrayType(elem, count), nil, n.Sp)

	case *hir.PathValue:
		return ck.enumeratePathValue(n)

	case *hir.Literal:
		return nil
	}
	return nil
}

// literalType allocates the (class-restricted) type of a literal
func (ck *Checker) literalType(n *hir.Literal) *ast.TypeRef {
	switch n.Kind {
	case ast.LitInt:
		if n.Suffix != "" {
			if p, ok := ast.PrimitiveByName(n.Suffix); ok {
				return ast.PrimType(p)
			}
		}
		return ck.newIvar(ast.IvarInteger)
	case ast.LitFloat:
		if n.Suffix != "" {
			if p, ok := ast.PrimitiveByName(n.Suffix); ok {
				return ast.PrimType(p)
			}
		}
		return ck.newIvar(ast.IvarFloat)
	case ast.LitStr:
		return ast.BorrowType(false, ast.PrimType(ast.PrimStr))
	case ast.LitChar:
		return ast.PrimType(ast.PrimChar)
	case ast.LitBool:
		return ast.PrimType(ast.PrimBool)
	default:
		return ast.UnitType()
	}
}

func (ck *Checker) findLoop(label string) *loopCtx {
	for i := len(ck.loops) - 1; i >= 0; i-- {
		if label == "" || ck.loops[i].label == label {
			return ck.loops[i]
		}
	}
	return nil
}

// visit is one iteration step: re-walk the tree applying the rules that
// depend on resolved types (calls, methods, fields, operators).
func (ck *Checker) visit(slot *hir.Expr) error {
	e := *slot
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *hir.Block:
		for i := range n.Stmts {
			st := &n.Stmts[i]
			if err := ck.visit(&st.Init); err != nil {
				return err
			}
			if st.Pat != nil {
				declared := st.Init.ResType()
				if st.Type != nil {
					if err := ck.applyEquality(st.Type, st.Init.ResType(), &st.Init, n.Sp); err != nil {
						return err
					}
					declared = st.Type
				}
				if err := ck.typePattern(st.Pat, declared, n.Sp); err != nil {
					return err
				}
			}
		}
		if n.Tail != nil {
			return ck.visit(&n.Tail)
		}
		return nil

	case *hir.Match:
		if err := ck.visit(&n.Scrutinee); err != nil {
			return err
		}
		for i := range n.Arms {
			arm := &n.Arms[i]
			for _, p := range arm.Pats {
				if err := ck.typePattern(p, n.Scrutinee.ResType(), n.Sp); err != nil {
					return err
				}
			}
			if arm.Guard != nil {
				if err := ck.visit(&arm.Guard); err != nil {
					return err
				}
				if err := ck.applyEquality(ast.PrimType(ast.PrimBool), arm.Guard.ResType(), nil, n.Sp); err != nil {
					return err
				}
			}
			if err := ck.visit(&arm.Body); err != nil {
				return err
			}
		}
		return nil

	case *hir.If:
		if err := ck.visit(&n.Cond); err != nil {
			return err
		}
		if err := ck.applyEquality(ast.PrimType(ast.PrimBool), n.Cond.ResType(), nil, n.Sp); err != nil {
			return err
		}
		if err := ck.visit(&n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			return ck.visit(&n.Else)
		}
		return nil

	case *hir.Loop:
		ck.loops = append(ck.loops, &loopCtx{label: n.Label, res: n.Res})
		err := ck.visit(&n.Body)
		ck.loops = ck.loops[:len(ck.loops)-1]
		return err

	case *hir.While:
		if err := ck.visit(&n.Cond); err != nil {
			return err
		}
		return ck.visit(&n.Body)

	case *hir.Break:
		if n.Value != nil {
			return ck.visit(&n.Value)
		}
		return nil

	case *hir.Return:
		if n.Value != nil {
			return ck.visit(&n.Value)
		}
		return nil

	case *hir.CallPath:
		return ck.typeCallPath(n)

	case *hir.CallValue:
		return ck.typeCallValue(n)

	case *hir.MethodCall:
		return ck.typeMethodCall(slot, n)

	case *hir.Field:
		if err := ck.visit(&n.Base); err != nil {
			return err
		}
		return ck.typeField(n)

	case *hir.Index:
		if err := ck.visit(&n.Base); err != nil {
			return err
		}
		if err := ck.visit(&n.Idx); err != nil {
			return err
		}
		return ck.typeIndex(n)

	case *hir.Borrow:
		return ck.visit(&n.Inner)

	case *hir.Deref:
		if err := ck.visit(&n.Inner); err != nil {
			return err
		}
		return ck.typeDeref(n)

	case *hir.Cast:
		return ck.visit(&n.Inner)

	case *hir.Unsize:
		return ck.visit(&n.Inner)

	case *hir.Assign:
		if err := ck.visit(&n.Lhs); err != nil {
			return err
		}
		if err := ck.visit(&n.Rhs); err != nil {
			return err
		}
		return ck.applyEquality(n.Lhs.ResType(), n.Rhs.ResType(), &n.Rhs, n.Sp)

	case *hir.BinOp:
		if err := ck.visit(&n.Lhs); err != nil {
			return err
		}
		if err := ck.visit(&n.Rhs); err != nil {
			return err
		}
		return ck.typeBinOp(n, n.Sp)

	case *hir.UnOp:
		if err := ck.visit(&n.Inner); err != nil {
			return err
		}
		return ck.typeUnOp(n, n.Sp)

	case *hir.StructLit:
		if err := ck.typeStructLit(n); err != nil {
			return err
		}
		if n.Base != nil {
			return ck.visit(&n.Base)
		}
		return nil

	case *hir.TupleLit:
		for i := range n.Elems {
			if err := ck.visit(&n.Elems[i]); err != nil {
				return err
			}
		}
		return nil

	case *hir.ArrayLit:
		for i := range n.Elems {
			if err := ck.visit(&n.Elems[i]); err != nil {
				return err
			}
		}
		if n.Repeat != nil {
			return ck.visit(&n.Repeat)
		}
		return nil

	default:
		return nil
	}
}

// defaultLiterals binds still-classed ivars to the fallback primitives
// (i32 / f64) and never-broken loops to the diverging type.
func (ck *Checker) defaultLiterals(root hir.Expr) error {
	for idx := range ck.ivars {
		r := ck.root(idx)
		if ck.ivars[r].ty != nil {
			continue
		}
		switch ck.ivars[r].class {
		case ast.IvarInteger:
			ck.ivars[r].ty = ast.PrimType(ast.PrimI32)
		case ast.IvarFloat:
			ck.ivars[r].ty = ast.PrimType(ast.PrimF64)
		}
	}
	return ck.eachExpr(root, func(e hir.Expr) error {
		if lp, ok := e.(*hir.Loop); ok {
			t := ck.resolveShallow(lp.Res)
			if t.Kind == ast.TypeInfer {
				return ck.bindIvar(t.Ivar, ast.DivergeType(), lp.Sp)
			}
		}
		return nil
	})
}

// validate checks that every node ended with a concrete type
func (ck *Checker) validate(root hir.Expr) error {
	return ck.eachExpr(root, func(e hir.Expr) error {
		t := ck.resolveDeep(e.ResType())
		if t == nil || t.ContainsInfer() {
			return ck.errorAt(diag.TYP002, e.Span(),
				"failed to infer the type of this expression (got %s)", t)
		}
		e.SetResType(t)
		return nil
	})
}

// eachExpr walks every expression node in the tree
func (ck *Checker) eachExpr(e hir.Expr, fn func(hir.Expr) error) error {
	if e == nil {
		return nil
	}
	if err := fn(e); err != nil {
		return err
	}
	switch n := e.(type) {
	case *hir.Block:
		for i := range n.Stmts {
			if err := ck.eachExpr(n.Stmts[i].Init, fn); err != nil {
				return err
			}
		}
		return ck.eachExpr(n.Tail, fn)
	case *hir.Match:
		if err := ck.eachExpr(n.Scrutinee, fn); err != nil {
			return err
		}
		for i := range n.Arms {
			if err := ck.eachExpr(n.Arms[i].Guard, fn); err != nil {
				return err
			}
			if err := ck.eachExpr(n.Arms[i].Body, fn); err != nil {
				return err
			}
		}
		return nil
	case *hir.If:
		if err := ck.eachExpr(n.Cond, fn); err != nil {
			return err
		}
		if err := ck.eachExpr(n.Then, fn); err != nil {
			return err
		}
		return ck.eachExpr(n.Else, fn)
	case *hir.Loop:
		return ck.eachExpr(n.Body, fn)
	case *hir.While:
		if err := ck.eachExpr(n.Cond, fn); err != nil {
			return err
		}
		return ck.eachExpr(n.Body, fn)
	case *hir.Break:
		return ck.eachExpr(n.Value, fn)
	case *hir.Return:
		return ck.eachExpr(n.Value, fn)
	case *hir.CallPath:
		for _, a := range n.Args {
			if err := ck.eachExpr(a, fn); err != nil {
				return err
			}
		}
		return nil
	case *hir.CallValue:
		if err := ck.eachExpr(n.Fn, fn); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := ck.eachExpr(a, fn); err != nil {
				return err
			}
		}
		return nil
	case *hir.MethodCall:
		if err := ck.eachExpr(n.Recv, fn); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := ck.eachExpr(a, fn); err != nil {
				return err
			}
		}
		return nil
	case *hir.Field:
		return ck.eachExpr(n.Base, fn)
	case *hir.Index:
		if err := ck.eachExpr(n.Base, fn); err != nil {
			return err
		}
		return ck.eachExpr(n.Idx, fn)
	case *hir.Borrow:
		return ck.eachExpr(n.Inner, fn)
	case *hir.Deref:
		return ck.eachExpr(n.Inner, fn)
	case *hir.Cast:
		return ck.eachExpr(n.Inner, fn)
	case *hir.Unsize:
		return ck.eachExpr(n.Inner, fn)
	case *hir.Assign:
		if err := ck.eachExpr(n.Lhs, fn); err != nil {
			return err
		}
		return ck.eachExpr(n.Rhs, fn)
	case *hir.BinOp:
		if err := ck.eachExpr(n.Lhs, fn); err != nil {
			return err
		}
		return ck.eachExpr(n.Rhs, fn)
	case *hir.UnOp:
		return ck.eachExpr(n.Inner, fn)
	case *hir.StructLit:
		for i := range n.Fields {
			if err := ck.eachExpr(n.Fields[i].Value, fn); err != nil {
				return err
			}
		}
		return ck.eachExpr(n.Base, fn)
	case *hir.TupleLit:
		for _, el := range n.Elems {
			if err := ck.eachExpr(el, fn); err != nil {
				return err
			}
		}
		return nil
	case *hir.ArrayLit:
		for _, el := range n.Elems {
			if err := ck.eachExpr(el, fn); err != nil {
				return err
			}
		}
		return ck.eachExpr(n.Repeat, fn)
	default:
		return nil
	}
}
