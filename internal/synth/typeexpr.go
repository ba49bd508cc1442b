package synth

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"github.com/kinmemodoki/handa/internal/model"
)

// typeExpr builds a printable AST expression for a type, registering imports
// for named types from other packages as it goes. Reconstructs from the
// go/types form so package references use this file's import names, not the
// aliases of whatever source file the record came from.
func (s *state) typeExpr(ref model.TypeRef) (ast.Expr, error) {
	if ref.Type != nil {
		return s.typeExprOf(ref.Type)
	}
	if ref.Expr == nil {
		return nil, fmt.Errorf("type %s: no expression and no type information", ref.Canonical)
	}
	return ref.Expr, nil
}

func (s *state) typeExprOf(t types.Type) (ast.Expr, error) {
	switch typ := t.(type) {
	case *types.Basic:
		return ast.NewIdent(typ.Name()), nil
	case *types.Pointer:
		elem, err := s.typeExprOf(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("pointer element: %w", err)
		}
		return &ast.StarExpr{X: elem}, nil
	case *types.Named:
		return s.namedExpr(typ.Obj()), nil
	case *types.Alias:
		return s.namedExpr(typ.Obj()), nil
	case *types.Slice:
		elem, err := s.typeExprOf(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("slice element: %w", err)
		}
		return &ast.ArrayType{Elt: elem}, nil
	case *types.Array:
		elem, err := s.typeExprOf(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return &ast.ArrayType{
			Len: &ast.BasicLit{Kind: token.INT, Value: fmt.Sprintf("%d", typ.Len())},
			Elt: elem,
		}, nil
	case *types.Map:
		key, err := s.typeExprOf(typ.Key())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		val, err := s.typeExprOf(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return &ast.MapType{Key: key, Value: val}, nil
	case *types.Signature:
		params := make([]*ast.Field, 0, typ.Params().Len())
		for i := 0; i < typ.Params().Len(); i++ {
			expr, err := s.typeExprOf(typ.Params().At(i).Type())
			if err != nil {
				return nil, fmt.Errorf("param %d: %w", i, err)
			}
			params = append(params, &ast.Field{Type: expr})
		}
		results := make([]*ast.Field, 0, typ.Results().Len())
		for i := 0; i < typ.Results().Len(); i++ {
			expr, err := s.typeExprOf(typ.Results().At(i).Type())
			if err != nil {
				return nil, fmt.Errorf("result %d: %w", i, err)
			}
			results = append(results, &ast.Field{Type: expr})
		}
		return &ast.FuncType{
			Params:  &ast.FieldList{List: params},
			Results: &ast.FieldList{List: results},
		}, nil
	case *types.Interface:
		if typ.Empty() {
			return ast.NewIdent("any"), nil
		}
		return nil, fmt.Errorf("unsupported anonymous interface type: %s", t)
	default:
		return nil, fmt.Errorf("unsupported type: %s", t.String())
	}
}

// namedExpr renders a (possibly package-qualified) type name, registering
// the import when the type lives outside the generated file's package.
func (s *state) namedExpr(obj *types.TypeName) ast.Expr {
	pkg := obj.Pkg()
	if pkg == nil || pkg.Path() == s.file.Package.Path {
		return ast.NewIdent(obj.Name())
	}

	name := s.importPkg(pkg.Path(), pkg.Name())
	return &ast.SelectorExpr{X: ast.NewIdent(name), Sel: ast.NewIdent(obj.Name())}
}

// importPkg registers an import and returns the name to reference it by.
func (s *state) importPkg(path, defaultName string) string {
	if imp, ok := s.file.Imports[path]; ok {
		imp.IsUsed = true
		return imp.Name
	}

	name := s.names.Get(defaultName)
	s.file.Imports[path] = &Import{
		Name:          name,
		IsDefaultName: name == defaultName,
		IsUsed:        true,
	}
	return name
}
