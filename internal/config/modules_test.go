package config

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"
)

const wireSrc = `package app

import "github.com/kinmemodoki/handa"

type App interface{}

var storeModule = handa.Module("store",
	handa.Provide(NewStore),
)

var _ = handa.Component[App]("NewApp",
	handa.Install(storeModule),
)
`

// writeModule lays out a throwaway Go module for declaration scanning.
func writeModule(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"go.mod":              "module example.com/demo\n\ngo 1.24.0\n",
		"app/wire.go":         wireSrc,
		"app/wire_test.go":    "package app\n\nimport \"github.com/kinmemodoki/handa\"\n\nvar _ = handa.Module(\"skipped\")\n",
		"testdata/ignored.go": "package ignored\n\nimport \"github.com/kinmemodoki/handa\"\n\nvar _ = handa.Module(\"hidden\")\n",
	}
	for rel, src := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestModuleRoot(t *testing.T) {
	t.Parallel()

	root := writeModule(t)

	got, modPath, err := moduleRoot(filepath.Join(root, "app"))
	if err != nil {
		t.Fatalf("moduleRoot() error = %v", err)
	}
	if got != root {
		t.Errorf("root = %q, want %q", got, root)
	}
	if modPath != "example.com/demo" {
		t.Errorf("module path = %q, want %q", modPath, "example.com/demo")
	}
}

func TestModuleRootNotFound(t *testing.T) {
	t.Parallel()

	if _, _, err := moduleRoot(t.TempDir()); err == nil {
		t.Fatal("moduleRoot() expected an error outside any module")
	}
}

func TestScanDeclarations(t *testing.T) {
	t.Parallel()

	root := writeModule(t)

	decls, err := scanDeclarations(root)
	if err != nil {
		t.Fatalf("scanDeclarations() error = %v", err)
	}
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2: %+v", len(decls), decls)
	}

	want := []struct{ kind, name string }{
		{"module", "store"},
		{"component", "NewApp"},
	}
	for i, w := range want {
		if decls[i].kind != w.kind || decls[i].name != w.name {
			t.Errorf("decls[%d] = %s %q, want %s %q", i, decls[i].kind, decls[i].name, w.kind, w.name)
		}
	}
}

func TestFileDeclarationsAliasedImport(t *testing.T) {
	t.Parallel()

	src := `package app

import h "github.com/kinmemodoki/handa"

var _ = h.Module("aliased")
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "aliased.go", src, parser.SkipObjectResolution)
	if err != nil {
		t.Fatal(err)
	}

	decls := fileDeclarations(fset, f)
	if len(decls) != 1 || decls[0].name != "aliased" {
		t.Fatalf("got %+v, want one module %q", decls, "aliased")
	}
}

func TestFileDeclarationsNoImport(t *testing.T) {
	t.Parallel()

	src := `package app

type handa struct{}

func (handa) Module(string) {}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "plain.go", src, parser.SkipObjectResolution)
	if err != nil {
		t.Fatal(err)
	}

	if decls := fileDeclarations(fset, f); len(decls) != 0 {
		t.Fatalf("got %+v, want none without the handa import", decls)
	}
}
