package synth

import (
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/resolve"
)

var testPkg = types.NewPackage("example.com/app", "app")

func namedType(name string) types.Type {
	tn := types.NewTypeName(token.NoPos, testPkg, name, nil)
	return types.NewNamed(tn, types.NewStruct(nil, nil), nil)
}

func keyOf(t types.Type) model.Key {
	return model.NewKey(model.TypeRef{Canonical: t.String(), Type: t})
}

func provision(t *testing.T, key model.Key, scope string, returnsError bool) *model.ProvisionBinding {
	t.Helper()

	results := []*types.Var{types.NewVar(token.NoPos, testPkg, "", key.Type.Type)}
	if returnsError {
		results = append(results, types.NewVar(token.NoPos, testPkg, "", types.Universe.Lookup("error").Type()))
	}
	sig := types.NewSignatureType(nil, nil, nil, nil, types.NewTuple(results...), false)

	b, err := model.NewProvisionBinding(key, scope,
		model.FuncRef{Name: "provide", Sig: sig, ReturnsError: returnsError},
		nil, false, "m", model.DeclarationRef{Desc: "provider"})
	require.NoError(t, err)
	return b
}

func TestDecideStrategy(t *testing.T) {
	t.Parallel()

	key := keyOf(types.NewPointer(namedType("Dep")))
	target := keyOf(types.NewPointer(namedType("Impl")))
	delegate, err := model.NewDelegateBinding(model.Key{Type: model.TypeRef{Canonical: "example.com/app.Iface"}}, target, model.DeclarationRef{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		rb    *resolve.ResolvedBinding
		usage int
		want  strategy
	}{
		{
			name: "alias for delegate",
			rb:   &resolve.ResolvedBinding{Binding: delegate},
			want: strategyAlias,
		},
		{
			name: "none for subcomponent creator",
			rb: &resolve.ResolvedBinding{
				Binding: model.NewSubcomponentCreatorBinding(key, &model.ComponentDescriptor{}, model.DeclarationRef{}),
			},
			want: strategyNone,
		},
		{
			name: "none for members injection",
			rb: &resolve.ResolvedBinding{
				Binding: model.NewMembersInjectionBinding(key, key.Type, nil, nil, model.DeclarationRef{}),
			},
			want: strategyNone,
		},
		{
			name: "eager for bound instance",
			rb: &resolve.ResolvedBinding{
				Binding: model.NewBoundInstanceBinding(key, "dep", model.DeclarationRef{}),
			},
			want: strategyEager,
		},
		{
			name: "future for production",
			rb: &resolve.ResolvedBinding{
				Binding: model.NewProductionBinding(provision(t, key, "", false)),
			},
			want: strategyFuture,
		},
		{
			name: "eager for error-returning provider",
			rb:   &resolve.ResolvedBinding{Binding: provision(t, key, "", true)},
			want: strategyEager,
		},
		{
			name: "field when scoped",
			rb:   &resolve.ResolvedBinding{Binding: provision(t, key, "singleton", false)},
			want: strategyField,
		},
		{
			name: "field when cycle broken",
			rb: &resolve.ResolvedBinding{
				Binding:       provision(t, key, "", false),
				NeedsDelegate: true,
			},
			want: strategyField,
		},
		{
			name:  "field when shared",
			rb:    &resolve.ResolvedBinding{Binding: provision(t, key, "", false)},
			usage: 2,
			want:  strategyField,
		},
		{
			name:  "inline for single unscoped use",
			rb:    &resolve.ResolvedBinding{Binding: provision(t, key, "", false)},
			usage: 1,
			want:  strategyInline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, decideStrategy(tt.rb, tt.usage))
		})
	}
}

func TestStrategyHasField(t *testing.T) {
	t.Parallel()

	withField := []strategy{strategyField, strategyEager, strategyFuture}
	for _, s := range withField {
		assert.True(t, s.hasField())
	}
	without := []strategy{strategyNone, strategyInline, strategyAlias}
	for _, s := range without {
		assert.False(t, s.hasField())
	}
}
