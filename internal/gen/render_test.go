package gen

import (
	goparser "go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/plan"
	"github.com/kinmemodoki/handa/internal/resolve"
	"github.com/kinmemodoki/handa/internal/synth"
)

var testPkg = types.NewPackage("example.com/app", "app")

func named(name string) types.Type {
	tn := types.NewTypeName(token.NoPos, testPkg, name, nil)
	return types.NewNamed(tn, types.NewStruct(nil, nil), nil)
}

func refOf(t types.Type) model.TypeRef {
	return model.TypeRef{Canonical: t.String(), Type: t}
}

func keyOf(t types.Type) model.Key {
	return model.NewKey(refOf(t))
}

func provide(t *testing.T, fnName string, key model.Key, scope string, deps ...model.DependencyRequest) *model.ProvisionBinding {
	t.Helper()

	params := make([]*types.Var, len(deps))
	for i, d := range deps {
		params[i] = types.NewVar(token.NoPos, testPkg, "", d.Key.Type.Type)
	}
	results := []*types.Var{types.NewVar(token.NoPos, testPkg, "", key.Type.Type)}
	sig := types.NewSignatureType(nil, nil, nil, types.NewTuple(params...), types.NewTuple(results...), false)

	fn := model.FuncRef{Name: fnName, PkgPath: testPkg.Path(), Sig: sig}
	b, err := model.NewProvisionBinding(key, scope, fn, deps, false, "m", model.DeclarationRef{Desc: fnName})
	require.NoError(t, err)
	return b
}

// generate runs resolution through rendering for one root component.
func generate(t *testing.T, root *model.ComponentDescriptor) []byte {
	t.Helper()

	g, err := resolve.NewResolver(nil).Resolve(root)
	require.NoError(t, err)
	require.Empty(t, g.Problems)

	plans := make(map[*model.ComponentDescriptor]*plan.Plan)
	var collect func(res *resolve.ComponentResolution)
	collect = func(res *resolve.ComponentResolution) {
		p, err := plan.New().Plan(res)
		require.NoError(t, err)
		plans[res.Component] = p
		for _, child := range res.Children {
			collect(child)
		}
	}
	collect(g.Root)

	file, err := synth.New(synth.Options{}).Synthesize(
		[]*resolve.Graph{g}, plans,
		synth.Package{Name: testPkg.Name(), Path: testPkg.Path()},
		model.DeclarationRef{Desc: "test"},
	)
	require.NoError(t, err)

	src, err := Render(file)
	require.NoError(t, err)
	return src
}

func basicRoot(t *testing.T) *model.ComponentDescriptor {
	t.Helper()

	configKey := keyOf(types.NewPointer(named("Config")))
	serviceKey := keyOf(types.NewPointer(named("Service")))

	return &model.ComponentDescriptor{
		Type:     refOf(named("App")),
		CtorName: "NewApp",
		Modules: []*model.ModuleDescriptor{{Name: "app", Bindings: []model.Binding{
			provide(t, "NewConfig", configKey, ""),
			provide(t, "NewService", serviceKey, "", model.DependencyRequest{
				Key: configKey, Kind: model.RequestInstance, Site: model.DeclarationRef{Desc: "NewService"},
			}),
		}}},
		EntryPoints: []model.EntryPoint{{
			Name: "Service",
			Request: model.DependencyRequest{
				Key: serviceKey, Kind: model.RequestInstance, Site: model.DeclarationRef{Desc: "entry"},
			},
		}},
	}
}

func TestGenerateBasicComponent(t *testing.T) {
	t.Parallel()

	src := generate(t, basicRoot(t))
	text := string(src)

	assert.Contains(t, text, "// Code generated by handa; DO NOT EDIT.")
	assert.Contains(t, text, "package app")
	assert.Contains(t, text, "type appImpl struct")
	assert.Contains(t, text, "func NewApp() App {")
	assert.Contains(t, text, "func (c *appImpl) Service() *Service {")
	assert.Contains(t, text, "NewService(NewConfig())")

	fset := token.NewFileSet()
	_, err := goparser.ParseFile(fset, "app_handa.go", src, 0)
	require.NoError(t, err, "generated source must parse:\n%s", text)
}

func TestGenerateScopedBindingMemoized(t *testing.T) {
	t.Parallel()

	root := basicRoot(t)
	root.Scopes = []string{"singleton"}
	pb := root.Modules[0].Bindings[0].(*model.ProvisionBinding)
	configKey := pb.Key()
	root.Modules[0].Bindings[0] = provide(t, "NewConfig", configKey, "singleton")

	src := generate(t, root)
	text := string(src)

	assert.Contains(t, text, "handa.DoubleCheck", "scoped binding should be memoized")
	assert.Contains(t, text, "handa.Provider[*Config]")
	assert.Contains(t, text, `"github.com/kinmemodoki/handa"`)
}

func TestGenerateFutureBrokenCycle(t *testing.T) {
	t.Parallel()

	// A reads B's future while B's producer awaits A: the cycle is carried
	// entirely by the pre-allocated future field, no delegate involved.
	aKey := keyOf(types.NewPointer(named("A")))
	bKey := keyOf(types.NewPointer(named("B")))

	root := &model.ComponentDescriptor{
		Type:     refOf(named("App")),
		CtorName: "NewApp",
		Modules: []*model.ModuleDescriptor{{Name: "cycle", Bindings: []model.Binding{
			provide(t, "NewA", aKey, "", model.DependencyRequest{
				Key: bKey, Kind: model.RequestFuture, Site: model.DeclarationRef{Desc: "NewA"},
			}),
			model.NewProductionBinding(provide(t, "NewB", bKey, "", model.DependencyRequest{
				Key: aKey, Kind: model.RequestInstance, Site: model.DeclarationRef{Desc: "NewB"},
			})),
		}}},
		EntryPoints: []model.EntryPoint{{
			Name: "A",
			Request: model.DependencyRequest{
				Key: aKey, Kind: model.RequestInstance, Site: model.DeclarationRef{Desc: "entry"},
			},
		}},
	}

	src := generate(t, root)
	text := string(src)

	assert.Contains(t, text, "func NewApp(ctx context.Context) App {")
	assert.Contains(t, text, "errgroup.WithContext(ctx)")
	assert.Contains(t, text, "handa.NewFuture[*B]()")
	assert.Contains(t, text, "eg.Go(func() error {")
	assert.Contains(t, text, "func (c *appImpl) Wait() error {")
	assert.NotContains(t, text, "NewDelegate")

	fset := token.NewFileSet()
	_, err := goparser.ParseFile(fset, "app_handa.go", src, 0)
	require.NoError(t, err, "generated source must parse:\n%s", text)
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	first := generate(t, basicRoot(t))
	second := generate(t, basicRoot(t))
	assert.Equal(t, string(first), string(second))
}

func TestRenderImports(t *testing.T) {
	t.Parallel()

	file := &synth.File{
		Package: synth.Package{Name: "app", Path: "example.com/app"},
		Imports: map[string]*synth.Import{
			"context":             {Name: "context", IsDefaultName: true, IsUsed: true},
			"example.com/dropped": {Name: "dropped", IsDefaultName: true, IsUsed: false},
			"example.com/lib/v2":  {Name: "lib", IsDefaultName: false, IsUsed: true},
		},
	}

	src, err := Render(file)
	require.NoError(t, err)
	text := string(src)

	assert.Contains(t, text, "\"context\"")
	assert.Contains(t, text, "lib \"example.com/lib/v2\"")
	assert.NotContains(t, text, "dropped")
}

func TestWriterOutputPath(t *testing.T) {
	t.Parallel()

	w := NewWriter("_handa")
	assert.Equal(t, "pkg/app_handa.go", w.OutputPath("pkg/app.go"))
}

func TestWriterConflict(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := dir + "/app.go"
	file := &synth.File{
		Package: synth.Package{Name: "app", Path: "example.com/app"},
		Imports: map[string]*synth.Import{},
		Origin:  model.DeclarationRef{Desc: "component App"},
	}

	w := NewWriter("_handa")
	require.NoError(t, w.Write(src, file))
	err := w.Write(src, file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already generated")

	fset := token.NewFileSet()
	parsed, perr := goparser.ParseFile(fset, w.OutputPath(src), nil, goparser.ParseComments)
	require.NoError(t, perr)
	assert.Equal(t, "app", parsed.Name.Name)
}
