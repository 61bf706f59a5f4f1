package expand

import (
	"strconv"

	"github.com/sunholo/ferrous/internal/ast"
	"github.com/sunholo/ferrous/internal/diag"
	"github.com/sunholo/ferrous/internal/span"
)

// deriveDecorator synthesises trait impls for #[derive(...)]. It runs
// LatePost so the first pass has already expanded the item's own
// contents; the generated impls are appended to the enclosing module and
// picked up by the same late pass.
type deriveDecorator struct{ DecoratorBase }

func (deriveDecorator) Stage() AttrStage { return StageLatePost }

func (deriveDecorator) HandleItem(x *Expander, attr *ast.Attr, mod *ast.Module, entry *ast.ItemEntry) error {
	gen, selfTy, ok := deriveTarget(entry)
	if !ok {
		return x.errorAt(diag.EXP007, entry.Span, "#[derive] is only valid on structs, enums, and unions")
	}
	for _, item := range attr.Items {
		impl, err := synthesiseDerive(x, item.Name, entry, gen, selfTy)
		if err != nil {
			return err
		}
		mod.Impls = append(mod.Impls, impl)
	}
	return nil
}

// deriveTarget extracts the generics and self type of a derivable item
func deriveTarget(entry *ast.ItemEntry) (*ast.GenericParams, *ast.TypeRef, bool) {
	selfPath := ast.RelativePath(entry.Name)
	switch d := entry.Data.(type) {
	case *ast.Struct:
		return &d.Generics, applyGenerics(selfPath, &d.Generics), true
	case *ast.Enum:
		return &d.Generics, applyGenerics(selfPath, &d.Generics), true
	case *ast.Union:
		return &d.Generics, applyGenerics(selfPath, &d.Generics), true
	}
	return nil, nil, false
}

// applyGenerics forwards an item's own parameters as path arguments
func applyGenerics(p *ast.Path, gen *ast.GenericParams) *ast.TypeRef {
	if len(gen.Types) > 0 {
		args := make([]*ast.TypeRef, len(gen.Types))
		for i, tp := range gen.Types {
			args[i] = ast.GenericType(ast.GenericImplBase+uint16(i), tp.Name)
		}
		p.Nodes[len(p.Nodes)-1].Args = args
	}
	return ast.PathType(p)
}

func synthesiseDerive(x *Expander, trait string, entry *ast.ItemEntry, gen *ast.GenericParams, selfTy *ast.TypeRef) (*ast.Impl, error) {
	impl := &ast.Impl{
		Generics: boundedGenerics(gen, trait),
		Trait:    ast.RelativePath(trait),
		SelfType: selfTy,
	}
	switch trait {
	case "Copy", "Eq":
		// Marker traits: an empty impl suffices.
	case "Clone":
		impl.Items = append(impl.Items, deriveClone(entry))
	case "Default":
		impl.Items = append(impl.Items, deriveDefault(entry))
	case "PartialEq":
		impl.Items = append(impl.Items, derivePartialEq(entry))
	case "Hash":
		impl.Items = append(impl.Items, deriveHash(entry))
	default:
		return nil, x.errorAt(diag.EXP007, entry.Span, "cannot derive trait %q", trait)
	}
	return impl, nil
}

// boundedGenerics copies the item's parameters, bounding each by the
// derived trait (`impl<T: Clone> Clone for Foo<T>`).
func boundedGenerics(gen *ast.GenericParams, trait string) ast.GenericParams {
	out := ast.GenericParams{}
	out.Types = append(out.Types, gen.Types...)
	out.Lifetimes = append(out.Lifetimes, gen.Lifetimes...)
	for i, tp := range gen.Types {
		out.Bounds = append(out.Bounds, ast.GenericBound{
			Type:  ast.GenericType(ast.GenericImplBase+uint16(i), tp.Name),
			Trait: ast.RelativePath(trait),
		})
	}
	return out
}

func selfExpr() ast.Expr {
	return &ast.PathExpr{Path: ast.RelativePath("self")}
}

func fieldOf(base ast.Expr, name string) ast.Expr {
	return &ast.Field{Base: base, Name: name}
}

func methodCallOn(recv ast.Expr, name string, args ...ast.Expr) ast.Expr {
	return &ast.MethodCall{Recv: recv, Name: name, Args: args}
}

func fnItem(name string, self ast.SelfKind, ret *ast.TypeRef, body *ast.Block, params ...ast.FnParam) *ast.ItemEntry {
	return &ast.ItemEntry{
		Name: name,
		Data: &ast.Function{SelfKind: self, Params: params, Ret: ret, Body: body},
	}
}

// deriveClone builds `fn clone(&self) -> Self` cloning each live field
func deriveClone(entry *ast.ItemEntry) *ast.ItemEntry {
	ret := ast.SelfType()
	var body *ast.Block
	switch d := entry.Data.(type) {
	case *ast.Struct:
		body = &ast.Block{Tail: cloneFields(entry.Name, d.Kind, d.Fields)}
	default:
		// Enums and unions clone through a match generated downstream;
		// representing it as `*self` relies on the Copy-style read.
		body = &ast.Block{Tail: &ast.Deref{Inner: selfExpr()}}
	}
	return fnItem("clone", ast.SelfRef, ret, body)
}

func cloneFields(name string, kind ast.StructKind, fields []ast.StructField) ast.Expr {
	lit := &ast.StructLit{Path: ast.RelativePath(name)}
	for i, f := range fields {
		if f.Name == "" && kind == ast.StructNamed {
			continue // cfg-removed
		}
		fname := f.Name
		if kind == ast.StructTupleKind {
			fname = tupleFieldName(i)
		}
		lit.Fields = append(lit.Fields, ast.FieldInit{
			Name:  fname,
			Value: methodCallOn(fieldOf(selfExpr(), fname), "clone"),
		})
	}
	return lit
}

// deriveDefault builds `fn default() -> Self` with per-field defaults
func deriveDefault(entry *ast.ItemEntry) *ast.ItemEntry {
	ret := ast.SelfType()
	lit := &ast.StructLit{Path: ast.RelativePath(entry.Name)}
	if d, ok := entry.Data.(*ast.Struct); ok {
		for i, f := range d.Fields {
			if f.Name == "" && d.Kind == ast.StructNamed {
				continue
			}
			fname := f.Name
			if d.Kind == ast.StructTupleKind {
				fname = tupleFieldName(i)
			}
			lit.Fields = append(lit.Fields, ast.FieldInit{
				Name:  fname,
				Value: &ast.Call{Target: ast.RelativePath("Default", "default")},
			})
		}
	}
	return fnItem("default", ast.SelfNone, ret, &ast.Block{Tail: lit})
}

// derivePartialEq builds `fn eq(&self, other: &Self) -> bool` comparing
// fields pairwise with `&&`.
func derivePartialEq(entry *ast.ItemEntry) *ast.ItemEntry {
	other := &ast.PathExpr{Path: ast.RelativePath("other")}
	var cmp ast.Expr = &ast.Literal{Kind: ast.LitBool, IntVal: 1}
	if d, ok := entry.Data.(*ast.Struct); ok {
		for i, f := range d.Fields {
			if f.Name == "" && d.Kind == ast.StructNamed {
				continue
			}
			fname := f.Name
			if d.Kind == ast.StructTupleKind {
				fname = tupleFieldName(i)
			}
			eq := &ast.BinaryOp{
				Op:  ast.BinOpEq,
				Lhs: fieldOf(selfExpr(), fname),
				Rhs: fieldOf(other, fname),
			}
			if i == 0 {
				cmp = eq
			} else {
				cmp = &ast.BinaryOp{Op: ast.BinOpBoolAnd, Lhs: cmp, Rhs: eq}
			}
		}
	}
	param := ast.FnParam{
		Pat:  ast.BindPattern("other", span.Span{}),
		Type: ast.BorrowType(false, ast.SelfType()),
	}
	return fnItem("eq", ast.SelfRef, ast.PrimType(ast.PrimBool), &ast.Block{Tail: cmp}, param)
}

// deriveHash builds `fn hash(&self, state: &mut H)` hashing each field
func deriveHash(entry *ast.ItemEntry) *ast.ItemEntry {
	state := &ast.PathExpr{Path: ast.RelativePath("state")}
	body := &ast.Block{}
	if d, ok := entry.Data.(*ast.Struct); ok {
		for i, f := range d.Fields {
			if f.Name == "" && d.Kind == ast.StructNamed {
				continue
			}
			fname := f.Name
			if d.Kind == ast.StructTupleKind {
				fname = tupleFieldName(i)
			}
			body.Stmts = append(body.Stmts, ast.Stmt{
				Init:    methodCallOn(fieldOf(selfExpr(), fname), "hash", state),
				HasSemi: true,
			})
		}
	}
	param := ast.FnParam{
		Pat:  ast.BindPattern("state", span.Span{}),
		Type: ast.BorrowType(true, ast.GenericType(ast.GenericItemBase, "H")),
	}
	fn := fnItem("hash", ast.SelfRef, ast.UnitType(), body, param)
	fnData := fn.Data.(*ast.Function)
	fnData.Generics.Types = append(fnData.Generics.Types, ast.TypeParam{Name: "H"})
	return fn
}

func tupleFieldName(i int) string {
	return strconv.Itoa(i)
}
