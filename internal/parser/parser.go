// Package parser analyzes Go source for handa component declarations and
// lowers them to the declaration records the rest of the pipeline operates
// on.
package parser

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"

	"golang.org/x/tools/go/packages"

	"github.com/kinmemodoki/handa/internal/model"
)

const handaPkgPath = "github.com/kinmemodoki/handa"

// File is everything the parser extracted from one directive file.
type File struct {
	Path    string
	PkgName string
	PkgPath string
	// Roots are the component trees declared in the file, declaration
	// order.
	Roots []*model.ComponentDescriptor
	// Injectables maps canonical struct type names to their injection
	// sites, collected from the package and its direct imports.
	Injectables map[string]*model.InjectableType
	Origin      model.DeclarationRef
}

// Parser loads and analyzes directive files. One Parser is valid for one
// processing round; type information is reloaded each round so previously
// generated code becomes visible.
type Parser struct {
	fset *token.FileSet
}

func NewParser() *Parser {
	return &Parser{fset: token.NewFileSet()}
}

// ParseFile loads the package containing filename and extracts its
// component declarations. A file that does not import the handa package
// yields a nil File and no error.
func (p *Parser) ParseFile(filename string) (*File, error) {
	pkg, err := p.loadPackage(filename)
	if err != nil {
		return nil, err
	}

	if _, ok := pkg.Imports[handaPkgPath]; !ok {
		slog.Debug("handa package not imported", "file", filename)
		return nil, nil
	}

	target, err := targetSyntax(pkg, filename)
	if err != nil {
		return nil, err
	}

	file := &File{
		Path:    filename,
		PkgName: pkg.Name,
		PkgPath: pkg.PkgPath,
		Origin:  model.DeclarationRef{Pos: p.fset.Position(target.Pos()), Desc: filepath.Base(filename)},
	}

	ext := &extractor{
		fset:    p.fset,
		pkg:     pkg,
		info:    pkg.TypesInfo,
		modules: make(map[types.Object]*moduleDecl),
	}
	ext.indexModuleVars()

	var inspectErr error
	ast.Inspect(target, func(n ast.Node) bool {
		if inspectErr != nil {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if ext.markerName(call) != "Component" {
			return true
		}

		root, err := ext.parseComponent(call, nil)
		if err != nil {
			inspectErr = fmt.Errorf("component at %s: %w", p.fset.Position(call.Pos()), err)
			return false
		}
		file.Roots = append(file.Roots, root)
		return false
	})
	if inspectErr != nil {
		return nil, inspectErr
	}

	if len(file.Roots) == 0 {
		slog.Debug("no component declarations", "file", filename)
		return nil, nil
	}

	file.Injectables, err = ext.collectInjectables()
	if err != nil {
		return nil, err
	}

	slog.Info("parsed directive file", "file", filename, "components", len(file.Roots), "injectables", len(file.Injectables))
	return file, nil
}

func (p *Parser) loadPackage(filename string) (*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes |
			packages.NeedSyntax | packages.NeedTypesInfo,
		Fset: p.fset,
	}

	pkgs, err := packages.Load(cfg, "file="+filename)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, errors.New("no package contains the file")
	}

	// Type errors are tolerated: a directive may reference code another
	// directive has yet to generate, which a later round resolves.
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("absolute path of %s: %w", filename, err)
	}
	for _, pkg := range pkgs {
		for _, goFile := range pkg.GoFiles {
			absGoFile, err := filepath.Abs(goFile)
			if err != nil {
				continue
			}
			if absGoFile == abs {
				return pkg, nil
			}
		}
	}
	return nil, fmt.Errorf("file %s is not part of any loaded package", filename)
}

func targetSyntax(pkg *packages.Package, filename string) (*ast.File, error) {
	abs, _ := filepath.Abs(filename)
	for i, f := range pkg.Syntax {
		if f == nil || i >= len(pkg.GoFiles) {
			continue
		}
		absGoFile, _ := filepath.Abs(pkg.GoFiles[i])
		if absGoFile == abs {
			return f, nil
		}
	}
	return nil, fmt.Errorf("file %s not found in package syntax", filename)
}

// extractor is the per-file working state of one parse.
type extractor struct {
	fset    *token.FileSet
	pkg     *packages.Package
	info    *types.Info
	varInit map[types.Object]ast.Expr
	modules map[types.Object]*moduleDecl
}

// markerName returns the handa marker a call invokes, or "" for calls into
// anything else. Generic instantiations resolve to their origin object.
func (e *extractor) markerName(call *ast.CallExpr) string {
	fun := call.Fun
	switch f := fun.(type) {
	case *ast.IndexExpr:
		fun = f.X
	case *ast.IndexListExpr:
		fun = f.X
	}

	var name *ast.Ident
	switch f := fun.(type) {
	case *ast.SelectorExpr:
		name = f.Sel
	case *ast.Ident:
		name = f
	default:
		return ""
	}

	obj := e.info.Uses[name]
	if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != handaPkgPath {
		return ""
	}
	return obj.Name()
}

// typeArgs returns the explicit type argument expressions of a generic
// marker call.
func typeArgs(call *ast.CallExpr) []ast.Expr {
	switch fun := call.Fun.(type) {
	case *ast.IndexExpr:
		return []ast.Expr{fun.Index}
	case *ast.IndexListExpr:
		return fun.Indices
	default:
		return nil
	}
}

// stringArg evaluates a marker argument that must be a string literal.
func (e *extractor) stringArg(expr ast.Expr) (string, error) {
	tv, ok := e.info.Types[expr]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return "", fmt.Errorf("argument at %s must be a string literal", e.fset.Position(expr.Pos()))
	}
	return constant.StringVal(tv.Value), nil
}

func (e *extractor) declRef(pos token.Pos, desc string) model.DeclarationRef {
	return model.DeclarationRef{Pos: e.fset.Position(pos), Desc: desc}
}

func (e *extractor) typeRef(t types.Type, expr ast.Expr, pos token.Pos) (model.TypeRef, error) {
	return model.NewTypeRef(t, expr, e.fset.Position(pos))
}

func typeRefAt(t types.Type, pos token.Position) (model.TypeRef, error) {
	return model.NewTypeRef(t, nil, pos)
}

// indexModuleVars records the initializer expression of every package-level
// var so Install arguments naming a module variable can be followed to
// their Module call.
func (e *extractor) indexModuleVars() {
	e.varInit = make(map[types.Object]ast.Expr)
	for _, f := range e.pkg.Syntax {
		for _, decl := range f.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.VAR {
				continue
			}
			for _, spec := range gen.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok || len(vs.Names) != len(vs.Values) {
					continue
				}
				for i, name := range vs.Names {
					if obj := e.info.Defs[name]; obj != nil {
						e.varInit[obj] = vs.Values[i]
					}
				}
			}
		}
	}
}
