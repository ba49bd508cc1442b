package config

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"
)

const handaPkgPath = "github.com/kinmemodoki/handa"

// ModulesCmd lists module and component declarations under the enclosing
// Go module.
type ModulesCmd struct {
	Dir string `kong:"arg,optional,default='.',help='Directory to inspect'"`
}

// declaration is one discovered handa.Module or handa.Component call.
type declaration struct {
	kind string
	name string
	pos  token.Position
}

// Run executes the modules command.
func (c *ModulesCmd) Run(cli *CLI) error {
	setupLogger(cli.LogLevel)

	root, modPath, err := moduleRoot(c.Dir)
	if err != nil {
		return err
	}

	decls, err := scanDeclarations(root)
	if err != nil {
		return err
	}

	fmt.Printf("module %s (%s)\n", modPath, root)
	if len(decls) == 0 {
		fmt.Println("no declarations found")
		return nil
	}
	for _, d := range decls {
		rel, err := filepath.Rel(root, d.pos.Filename)
		if err != nil {
			rel = d.pos.Filename
		}
		fmt.Printf("%-10s %-30s %s:%d\n", d.kind, d.name, rel, d.pos.Line)
	}
	return nil
}

// moduleRoot walks up from dir to the enclosing go.mod and reports the
// directory and module path.
func moduleRoot(dir string) (string, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	for cur := abs; ; cur = filepath.Dir(cur) {
		data, err := os.ReadFile(filepath.Join(cur, "go.mod"))
		if err == nil {
			mf, err := modfile.ParseLax("go.mod", data, nil)
			if err != nil {
				return "", "", fmt.Errorf("parse %s: %w", filepath.Join(cur, "go.mod"), err)
			}
			if mf.Module == nil {
				return "", "", fmt.Errorf("%s: missing module directive", filepath.Join(cur, "go.mod"))
			}
			return cur, mf.Module.Mod.Path, nil
		}
		if filepath.Dir(cur) == cur {
			return "", "", fmt.Errorf("no go.mod found above %s", abs)
		}
	}
}

// scanDeclarations syntactically collects handa.Module and handa.Component
// calls from every Go file under root. Type checking is not needed for a
// listing, so files load fast.
func scanDeclarations(root string) ([]declaration, error) {
	var decls []declaration
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
		if err != nil {
			// Broken files are skipped; generation will report them.
			return nil
		}
		decls = append(decls, fileDeclarations(fset, f)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decls, nil
}

func fileDeclarations(fset *token.FileSet, f *ast.File) []declaration {
	alias := handaImportName(f)
	if alias == "" {
		return nil
	}

	var decls []declaration
	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name := calleeName(call, alias)
		if name != "Module" && name != "Component" {
			return true
		}
		if len(call.Args) == 0 {
			return true
		}
		lit, ok := call.Args[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		arg, err := strconv.Unquote(lit.Value)
		if err != nil {
			return true
		}
		decls = append(decls, declaration{
			kind: strings.ToLower(name),
			name: arg,
			pos:  fset.Position(call.Pos()),
		})
		return true
	})
	return decls
}

func handaImportName(f *ast.File) string {
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != handaPkgPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return "handa"
	}
	return ""
}

// calleeName matches alias.Name calls, unwrapping generic instantiation.
func calleeName(call *ast.CallExpr, alias string) string {
	fn := call.Fun
	switch e := fn.(type) {
	case *ast.IndexExpr:
		fn = e.X
	case *ast.IndexListExpr:
		fn = e.X
	}
	sel, ok := fn.(*ast.SelectorExpr)
	if !ok {
		return ""
	}
	x, ok := sel.X.(*ast.Ident)
	if !ok || x.Name != alias {
		return ""
	}
	return sel.Sel.Name
}
