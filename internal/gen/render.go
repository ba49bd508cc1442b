// Package gen renders synthesized file specifications to Go source and
// writes them next to their directive files.
package gen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/printer"
	"go/token"
	"sort"

	"github.com/kinmemodoki/handa/internal/synth"
)

const header = "// Code generated by handa; DO NOT EDIT.\n\n"

// Render produces gofmt-formatted source for one synthesized file.
func Render(file *synth.File) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	fmt.Fprintf(&buf, "package %s\n\n", file.Package.Name)

	writeImports(&buf, file)

	fset := token.NewFileSet()
	for _, typ := range file.Types {
		if err := writeType(&buf, fset, typ); err != nil {
			return nil, fmt.Errorf("type %s: %w", typ.Name, err)
		}
	}
	for _, fn := range file.Funcs {
		if err := writeFunc(&buf, fset, fn); err != nil {
			return nil, fmt.Errorf("func %s: %w", fn.Name, err)
		}
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		// The unformatted source is the only clue to what went wrong.
		return nil, fmt.Errorf("format generated source: %w\n%s", err, buf.String())
	}
	return src, nil
}

func writeImports(buf *bytes.Buffer, file *synth.File) {
	paths := make([]string, 0, len(file.Imports))
	for path, imp := range file.Imports {
		if imp.IsUsed {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	buf.WriteString("import (\n")
	for _, path := range paths {
		imp := file.Imports[path]
		if imp.IsDefaultName {
			fmt.Fprintf(buf, "\t%q\n", path)
		} else {
			fmt.Fprintf(buf, "\t%s %q\n", imp.Name, path)
		}
	}
	buf.WriteString(")\n\n")
}

func writeType(buf *bytes.Buffer, fset *token.FileSet, typ *synth.TypeSpec) error {
	if typ.Doc != "" {
		fmt.Fprintf(buf, "// %s\n", typ.Doc)
	}

	fields := &ast.FieldList{}
	for _, f := range typ.Fields {
		fields.List = append(fields.List, &ast.Field{
			Names: []*ast.Ident{ast.NewIdent(f.Name)},
			Type:  f.Type,
		})
	}
	decl := &ast.GenDecl{
		Tok: token.TYPE,
		Specs: []ast.Spec{&ast.TypeSpec{
			Name: ast.NewIdent(typ.Name),
			Type: &ast.StructType{Fields: fields},
		}},
	}
	if err := printer.Fprint(buf, fset, decl); err != nil {
		return err
	}
	buf.WriteString("\n\n")

	for _, m := range typ.Methods {
		if err := writeFunc(buf, fset, m); err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
	}
	return nil
}

func writeFunc(buf *bytes.Buffer, fset *token.FileSet, fn *synth.FuncSpec) error {
	if fn.Doc != "" {
		fmt.Fprintf(buf, "// %s\n", fn.Doc)
	}

	decl := &ast.FuncDecl{
		Name: ast.NewIdent(fn.Name),
		Type: &ast.FuncType{
			Params:  fieldList(fn.Params),
			Results: fieldList(fn.Results),
		},
		Body: &ast.BlockStmt{List: fn.Body},
	}
	if fn.Recv != nil {
		decl.Recv = &ast.FieldList{List: []*ast.Field{{
			Names: []*ast.Ident{ast.NewIdent(fn.Recv.Name)},
			Type:  fn.Recv.Type,
		}}}
	}

	if err := printer.Fprint(buf, fset, decl); err != nil {
		return err
	}
	buf.WriteString("\n\n")
	return nil
}

func fieldList(fields []*synth.FieldSpec) *ast.FieldList {
	list := &ast.FieldList{}
	for _, f := range fields {
		field := &ast.Field{Type: f.Type}
		if f.Name != "" {
			field.Names = []*ast.Ident{ast.NewIdent(f.Name)}
		}
		list.List = append(list.List, field)
	}
	return list
}
