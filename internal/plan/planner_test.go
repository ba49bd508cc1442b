package plan

import (
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/pkg/collection"
	"github.com/kinmemodoki/handa/internal/resolve"
)

var testPkg = types.NewPackage("example.com/app", "app")

func named(name string) types.Type {
	tn := types.NewTypeName(token.NoPos, testPkg, name, nil)
	return types.NewNamed(tn, types.NewStruct(nil, nil), nil)
}

func keyOf(t types.Type) model.Key {
	return model.NewKey(model.TypeRef{Canonical: t.String(), Type: t})
}

func req(key model.Key, kind model.RequestKind) model.DependencyRequest {
	return model.DependencyRequest{Key: key, Kind: kind, Site: model.DeclarationRef{Desc: "request"}}
}

func provide(t *testing.T, key model.Key, deps ...model.DependencyRequest) *model.ProvisionBinding {
	t.Helper()

	params := make([]*types.Var, len(deps))
	for i, d := range deps {
		params[i] = types.NewVar(token.NoPos, testPkg, "", d.Key.Type.Type)
	}
	results := []*types.Var{types.NewVar(token.NoPos, testPkg, "", key.Type.Type)}
	sig := types.NewSignatureType(nil, nil, nil, types.NewTuple(params...), types.NewTuple(results...), false)

	b, err := model.NewProvisionBinding(key, "", model.FuncRef{Name: "provide", Sig: sig}, deps, false, "m", model.DeclarationRef{Desc: "provider"})
	require.NoError(t, err)
	return b
}

func resolved(t *testing.T, root *model.ComponentDescriptor) *resolve.ComponentResolution {
	t.Helper()
	g, err := resolve.NewResolver(nil).Resolve(root)
	require.NoError(t, err)
	require.Empty(t, g.Problems)
	return g.Root
}

func initOrder(p *Plan) []string {
	var order []string
	for _, s := range p.Steps {
		if s.Kind == StepInit {
			order = append(order, s.Binding.Key.ID())
		}
	}
	return order
}

func TestPlanOrdersDependenciesFirst(t *testing.T) {
	t.Parallel()

	cfg := keyOf(types.NewPointer(named("Config")))
	store := keyOf(types.NewPointer(named("Store")))
	svc := keyOf(types.NewPointer(named("Service")))

	root := &model.ComponentDescriptor{
		Type:     model.TypeRef{Canonical: "example.com/app.App"},
		CtorName: "NewApp",
		Modules: []*model.ModuleDescriptor{{Name: "app", Bindings: []model.Binding{
			provide(t, svc, req(store, model.RequestInstance), req(cfg, model.RequestInstance)),
			provide(t, store, req(cfg, model.RequestInstance)),
			provide(t, cfg),
		}}},
		EntryPoints: []model.EntryPoint{{
			Name:    "Service",
			Request: req(svc, model.RequestInstance),
		}},
	}

	p, err := New().Plan(resolved(t, root))
	require.NoError(t, err)

	order := initOrder(p)
	require.Len(t, order, 3)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[cfg.ID()], pos[store.ID()])
	assert.Less(t, pos[store.ID()], pos[svc.ID()])
}

func TestPlanDelegateForCycleHead(t *testing.T) {
	t.Parallel()

	aKey := keyOf(types.NewPointer(named("A")))
	bKey := keyOf(types.NewPointer(named("B")))

	root := &model.ComponentDescriptor{
		Type:     model.TypeRef{Canonical: "example.com/app.App"},
		CtorName: "NewApp",
		Modules: []*model.ModuleDescriptor{{Name: "cycle", Bindings: []model.Binding{
			provide(t, aKey, req(bKey, model.RequestProvider)),
			provide(t, bKey, req(aKey, model.RequestInstance)),
		}}},
		EntryPoints: []model.EntryPoint{{
			Name:    "A",
			Request: req(aKey, model.RequestInstance),
		}},
	}

	p, err := New().Plan(resolved(t, root))
	require.NoError(t, err)

	var kinds []StepKind
	var keys []string
	for _, s := range p.Steps {
		kinds = append(kinds, s.Kind)
		keys = append(keys, s.Binding.Key.ID())
	}

	// B carries the placeholder: A initializes against it, then B's real
	// field is built and patched in.
	require.Equal(t, []StepKind{StepDelegateDecl, StepInit, StepInit, StepBackpatch}, kinds)
	assert.Equal(t, bKey.ID(), keys[0])
	assert.Equal(t, aKey.ID(), keys[1])
	assert.Equal(t, bKey.ID(), keys[2])
	assert.Equal(t, bKey.ID(), keys[3])
}

func TestPlanFutureEdgeNotOrdered(t *testing.T) {
	t.Parallel()

	aKey := keyOf(types.NewPointer(named("A")))
	bKey := keyOf(types.NewPointer(named("B")))

	root := &model.ComponentDescriptor{
		Type:     model.TypeRef{Canonical: "example.com/app.App"},
		CtorName: "NewApp",
		Modules: []*model.ModuleDescriptor{{Name: "cycle", Bindings: []model.Binding{
			provide(t, aKey, req(bKey, model.RequestFuture)),
			model.NewProductionBinding(provide(t, bKey, req(aKey, model.RequestInstance))),
		}}},
		EntryPoints: []model.EntryPoint{{
			Name:    "A",
			Request: req(aKey, model.RequestInstance),
		}},
	}

	p, err := New().Plan(resolved(t, root))
	require.NoError(t, err)

	for _, s := range p.Steps {
		assert.Equal(t, StepInit, s.Kind, "future-broken cycle should plan without delegate steps")
	}

	// A's future read carries no ordering constraint; B's producer awaits A,
	// so A's field initializes before the producer is scheduled.
	order := initOrder(p)
	require.Equal(t, []string{aKey.ID(), bKey.ID()}, order)
}

func TestPlanResidualCycle(t *testing.T) {
	t.Parallel()

	aKey := keyOf(types.NewPointer(named("A")))
	bKey := keyOf(types.NewPointer(named("B")))

	comp := &model.ComponentDescriptor{
		Type:     model.TypeRef{Canonical: "example.com/app.App"},
		CtorName: "NewApp",
	}

	// A hand-built table with a hard cycle and no delegate: the planner must
	// refuse rather than emit an unordered constructor.
	res := &resolve.ComponentResolution{
		Component: comp,
		Bindings:  collection.NewOrderedMap[string, *resolve.ResolvedBinding](),
	}
	res.Bindings.Set(aKey.ID(), &resolve.ResolvedBinding{
		Key:     aKey,
		Binding: provide(t, aKey, req(bKey, model.RequestInstance)),
		Owner:   comp,
	})
	res.Bindings.Set(bKey.ID(), &resolve.ResolvedBinding{
		Key:     bKey,
		Binding: provide(t, bKey, req(aKey, model.RequestInstance)),
		Owner:   comp,
	})

	_, err := New().Plan(res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "residual cycle")
}
