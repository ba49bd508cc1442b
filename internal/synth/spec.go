// Package synth walks a validated, ordered binding graph and produces
// generated-type specifications: the component implementations, provider
// fields, and accessor methods that realize the graph. Rendering the specs
// to source text is the gen package's job.
package synth

import (
	"go/ast"
	"go/token"

	"github.com/kinmemodoki/handa/internal/model"
)

// Package identifies the package generated code is emitted into.
type Package struct {
	Name string
	Path string
}

// Import is one import of a generated file. Name may differ from the
// package's default name when the default collides with another identifier.
type Import struct {
	Name          string
	IsDefaultName bool
	IsUsed        bool
}

// FieldSpec is one struct field or parameter of a generated type.
type FieldSpec struct {
	Name string
	Type ast.Expr
}

// FuncSpec is a generated function or method. Recv is nil for free
// functions.
type FuncSpec struct {
	Name    string
	Recv    *FieldSpec
	Params  []*FieldSpec
	Results []*FieldSpec
	Body    []ast.Stmt
	Doc     string
}

// TypeSpec is one generated struct type with its methods.
type TypeSpec struct {
	Name    string
	Fields  []*FieldSpec
	Methods []*FuncSpec
	Doc     string
	// Origin references the declaration the type was generated for, kept
	// for incremental-compilation bookkeeping.
	Origin model.DeclarationRef
}

// File is the ordered set of generated types and functions for one
// directive file. Order is deterministic: components root-first, each
// followed by its constructor, switch shards last.
type File struct {
	Package Package
	Imports map[string]*Import
	Types   []*TypeSpec
	Funcs   []*FuncSpec
	Origin  model.DeclarationRef
}

// ast construction helpers

func ident(name string) *ast.Ident {
	return ast.NewIdent(name)
}

func sel(x ast.Expr, name string) *ast.SelectorExpr {
	return &ast.SelectorExpr{X: x, Sel: ident(name)}
}

func call(fn ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Fun: fn, Args: args}
}

func indexed(fn ast.Expr, typeArgs ...ast.Expr) ast.Expr {
	if len(typeArgs) == 1 {
		return &ast.IndexExpr{X: fn, Index: typeArgs[0]}
	}
	return &ast.IndexListExpr{X: fn, Indices: typeArgs}
}

func assign(lhs, rhs ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{
		Lhs: []ast.Expr{lhs},
		Tok: token.ASSIGN,
		Rhs: []ast.Expr{rhs},
	}
}

func define(lhs, rhs ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{
		Lhs: []ast.Expr{lhs},
		Tok: token.DEFINE,
		Rhs: []ast.Expr{rhs},
	}
}

func exprStmt(x ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: x}
}

func returnStmt(results ...ast.Expr) *ast.ReturnStmt {
	return &ast.ReturnStmt{Results: results}
}
