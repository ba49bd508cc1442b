package model

import (
	"fmt"
	"go/ast"
	"go/types"
)

// BindingKind tags the Binding variants.
type BindingKind int

const (
	BindingProvision BindingKind = iota
	BindingProduction
	BindingInjection
	BindingBoundInstance
	BindingDelegate
	BindingMultibinding
	BindingOptional
	BindingSubcomponentCreator
	BindingMembersInjection
)

func (k BindingKind) String() string {
	switch k {
	case BindingProvision:
		return "provision"
	case BindingProduction:
		return "production"
	case BindingInjection:
		return "injection"
	case BindingBoundInstance:
		return "bound instance"
	case BindingDelegate:
		return "delegate"
	case BindingMultibinding:
		return "multibinding"
	case BindingOptional:
		return "optional"
	case BindingSubcomponentCreator:
		return "subcomponent creator"
	case BindingMembersInjection:
		return "members injection"
	default:
		return fmt.Sprintf("binding(%d)", int(k))
	}
}

// Binding is one rule for producing the value of a key. Dependencies returns
// the direct requests only; transitive resolution is the resolver's job.
type Binding interface {
	Key() Key
	Kind() BindingKind
	Dependencies() []DependencyRequest
	Scope() string
	DeclaredAt() DeclarationRef
	Nilable() bool
}

// Synthetic reports whether b was synthesized by the resolver rather than
// declared in a module. Only explicit bindings participate in
// duplicate-binding detection.
func Synthetic(b Binding) bool {
	switch b.Kind() {
	case BindingMultibinding, BindingOptional, BindingMembersInjection, BindingSubcomponentCreator:
		return true
	default:
		return false
	}
}

// FuncRef references a provider function well enough to call it from
// generated code. PkgPath is empty for functions in the generated file's
// own package.
type FuncRef struct {
	Name         string
	PkgPath      string
	Expr         ast.Expr
	Sig          *types.Signature
	ReturnsError bool
}

// ProvisionBinding is an explicit provider-function binding declared with
// Provide, possibly wrapped by Scoped, Named, or Nilable.
type ProvisionBinding struct {
	key        Key
	scope      string
	fn         FuncRef
	params     []DependencyRequest
	nilable    bool
	module     string
	declaredAt DeclarationRef
}

// NewProvisionBinding validates the provider's shape: exactly one non-error
// result, with at most one trailing error.
func NewProvisionBinding(key Key, scope string, fn FuncRef, params []DependencyRequest, nilable bool, module string, declaredAt DeclarationRef) (*ProvisionBinding, error) {
	if fn.Sig == nil {
		return nil, fmt.Errorf("provider %s at %s: missing signature", fn.Name, declaredAt)
	}

	results := fn.Sig.Results()
	nonError := 0
	for i := 0; i < results.Len(); i++ {
		if !types.Identical(results.At(i).Type(), types.Universe.Lookup("error").Type()) {
			nonError++
		}
	}
	if nonError != 1 {
		return nil, fmt.Errorf("provider %s at %s: must return exactly one value (plus an optional error), got %d", fn.Name, declaredAt, nonError)
	}
	if fn.Sig.Params().Len() != len(params) {
		return nil, fmt.Errorf("provider %s at %s: %d parameters but %d dependency requests", fn.Name, declaredAt, fn.Sig.Params().Len(), len(params))
	}

	return &ProvisionBinding{
		key:        key,
		scope:      scope,
		fn:         fn,
		params:     params,
		nilable:    nilable,
		module:     module,
		declaredAt: declaredAt,
	}, nil
}

func (b *ProvisionBinding) Key() Key                          { return b.key }
func (b *ProvisionBinding) Kind() BindingKind                 { return BindingProvision }
func (b *ProvisionBinding) Dependencies() []DependencyRequest { return b.params }
func (b *ProvisionBinding) Scope() string                     { return b.scope }
func (b *ProvisionBinding) DeclaredAt() DeclarationRef        { return b.declaredAt }
func (b *ProvisionBinding) Nilable() bool                     { return b.nilable }
func (b *ProvisionBinding) Fn() FuncRef                       { return b.fn }
func (b *ProvisionBinding) Module() string                    { return b.module }

// ProductionBinding is an Async provision: the provider runs on the
// component's errgroup and satisfies Future requests.
type ProductionBinding struct {
	ProvisionBinding
}

func NewProductionBinding(p *ProvisionBinding) *ProductionBinding {
	return &ProductionBinding{ProvisionBinding: *p}
}

func (b *ProductionBinding) Kind() BindingKind { return BindingProduction }

// InjectionSite is one tagged field of an injectable struct.
type InjectionSite struct {
	FieldName string
	Request   DependencyRequest
}

// InjectionBinding constructs a struct whose `handa:"inject"` fields are
// filled from the graph. Synthesized for requested struct types that have no
// explicit binding. Sites are ordered embedded-struct-first, then field
// declaration order.
type InjectionBinding struct {
	key        Key
	sites      []InjectionSite
	declaredAt DeclarationRef
}

func NewInjectionBinding(key Key, sites []InjectionSite, declaredAt DeclarationRef) (*InjectionBinding, error) {
	if len(sites) == 0 {
		return nil, fmt.Errorf("injectable type %s at %s: no injectable fields", key.Type, declaredAt)
	}
	seen := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		if _, ok := seen[site.FieldName]; ok {
			return nil, fmt.Errorf("injectable type %s at %s: duplicate injection site %s", key.Type, declaredAt, site.FieldName)
		}
		seen[site.FieldName] = struct{}{}
	}

	return &InjectionBinding{key: key, sites: sites, declaredAt: declaredAt}, nil
}

func (b *InjectionBinding) Key() Key          { return b.key }
func (b *InjectionBinding) Kind() BindingKind { return BindingInjection }

func (b *InjectionBinding) Dependencies() []DependencyRequest {
	deps := make([]DependencyRequest, 0, len(b.sites))
	for _, site := range b.sites {
		deps = append(deps, site.Request)
	}
	return deps
}

func (b *InjectionBinding) Scope() string              { return "" }
func (b *InjectionBinding) DeclaredAt() DeclarationRef { return b.declaredAt }
func (b *InjectionBinding) Nilable() bool              { return false }
func (b *InjectionBinding) Sites() []InjectionSite     { return b.sites }

// BoundInstanceBinding is supplied to the component constructor; it has no
// dependencies.
type BoundInstanceBinding struct {
	key        Key
	paramName  string
	declaredAt DeclarationRef
}

func NewBoundInstanceBinding(key Key, paramName string, declaredAt DeclarationRef) *BoundInstanceBinding {
	return &BoundInstanceBinding{key: key, paramName: paramName, declaredAt: declaredAt}
}

func (b *BoundInstanceBinding) Key() Key                          { return b.key }
func (b *BoundInstanceBinding) Kind() BindingKind                 { return BindingBoundInstance }
func (b *BoundInstanceBinding) Dependencies() []DependencyRequest { return nil }
func (b *BoundInstanceBinding) Scope() string                     { return "" }
func (b *BoundInstanceBinding) DeclaredAt() DeclarationRef        { return b.declaredAt }
func (b *BoundInstanceBinding) Nilable() bool                     { return false }
func (b *BoundInstanceBinding) ParamName() string                 { return b.paramName }

// DelegateBinding aliases one key to another (Bind). The alias is followed
// at resolution time; no indirection is generated.
type DelegateBinding struct {
	key        Key
	target     Key
	declaredAt DeclarationRef
}

// NewDelegateBinding validates that the target's type is assignable to the
// aliased interface.
func NewDelegateBinding(key, target Key, declaredAt DeclarationRef) (*DelegateBinding, error) {
	if key.Type.Type != nil && target.Type.Type != nil {
		if !types.AssignableTo(target.Type.Type, key.Type.Type) {
			return nil, fmt.Errorf("bind at %s: %s is not assignable to %s", declaredAt, target.Type, key.Type)
		}
	}

	return &DelegateBinding{key: key, target: target, declaredAt: declaredAt}, nil
}

func (b *DelegateBinding) Key() Key          { return b.key }
func (b *DelegateBinding) Kind() BindingKind { return BindingDelegate }

func (b *DelegateBinding) Dependencies() []DependencyRequest {
	return []DependencyRequest{{Key: b.target, Kind: RequestInstance, Site: b.declaredAt}}
}

func (b *DelegateBinding) Scope() string              { return "" }
func (b *DelegateBinding) DeclaredAt() DeclarationRef { return b.declaredAt }
func (b *DelegateBinding) Nilable() bool              { return false }
func (b *DelegateBinding) Target() Key                { return b.target }

// CollectionKind distinguishes set from map multibindings.
type CollectionKind int

const (
	CollectionSet CollectionKind = iota
	CollectionMap
)

// MultibindingContribution is one declared contribution to a collection key.
type MultibindingContribution struct {
	// CollectionKey is the aggregate key the contribution belongs to:
	// []E for sets, map[K]E for maps.
	CollectionKey Key
	// MapKey is the rendered map key literal; empty for set contributions.
	MapKey string
	// Elements marks an ElementsIntoSet contribution.
	Elements   bool
	Request    DependencyRequest
	DeclaredAt DeclarationRef
}

// MultibindingBinding aggregates every contribution for one collection key
// found across the component's ancestry. Synthesized by the resolver.
type MultibindingBinding struct {
	key           Key
	collection    CollectionKind
	contributions []*MultibindingContribution
	declaredAt    DeclarationRef
}

func NewMultibindingBinding(key Key, collection CollectionKind, contributions []*MultibindingContribution) *MultibindingBinding {
	var at DeclarationRef
	if len(contributions) > 0 {
		at = contributions[0].DeclaredAt
	}
	return &MultibindingBinding{
		key:           key,
		collection:    collection,
		contributions: contributions,
		declaredAt:    at,
	}
}

func (b *MultibindingBinding) Key() Key          { return b.key }
func (b *MultibindingBinding) Kind() BindingKind { return BindingMultibinding }

func (b *MultibindingBinding) Dependencies() []DependencyRequest {
	deps := make([]DependencyRequest, 0, len(b.contributions))
	for _, c := range b.contributions {
		deps = append(deps, c.Request)
	}
	return deps
}

func (b *MultibindingBinding) Scope() string                              { return "" }
func (b *MultibindingBinding) DeclaredAt() DeclarationRef                 { return b.declaredAt }
func (b *MultibindingBinding) Nilable() bool                              { return false }
func (b *MultibindingBinding) Collection() CollectionKind                 { return b.collection }
func (b *MultibindingBinding) Contributions() []*MultibindingContribution { return b.contributions }

// OptionalBinding wraps another key in Optional. Present iff the wrapped key
// resolves somewhere in the requesting component's chain.
type OptionalBinding struct {
	key        Key
	wrapped    Key
	present    bool
	declaredAt DeclarationRef
}

func NewOptionalBinding(key, wrapped Key, present bool, declaredAt DeclarationRef) *OptionalBinding {
	return &OptionalBinding{key: key, wrapped: wrapped, present: present, declaredAt: declaredAt}
}

func (b *OptionalBinding) Key() Key          { return b.key }
func (b *OptionalBinding) Kind() BindingKind { return BindingOptional }

func (b *OptionalBinding) Dependencies() []DependencyRequest {
	if !b.present {
		return nil
	}
	return []DependencyRequest{{Key: b.wrapped, Kind: RequestInstance, Site: b.declaredAt}}
}

func (b *OptionalBinding) Scope() string              { return "" }
func (b *OptionalBinding) DeclaredAt() DeclarationRef { return b.declaredAt }
func (b *OptionalBinding) Nilable() bool              { return false }
func (b *OptionalBinding) Wrapped() Key               { return b.wrapped }
func (b *OptionalBinding) Present() bool              { return b.present }

// SubcomponentCreatorBinding returns the constructor for a child component.
type SubcomponentCreatorBinding struct {
	key        Key
	child      *ComponentDescriptor
	declaredAt DeclarationRef
}

func NewSubcomponentCreatorBinding(key Key, child *ComponentDescriptor, declaredAt DeclarationRef) *SubcomponentCreatorBinding {
	return &SubcomponentCreatorBinding{key: key, child: child, declaredAt: declaredAt}
}

func (b *SubcomponentCreatorBinding) Key() Key          { return b.key }
func (b *SubcomponentCreatorBinding) Kind() BindingKind { return BindingSubcomponentCreator }

func (b *SubcomponentCreatorBinding) Dependencies() []DependencyRequest {
	// The child factory's bound instances are supplied by the caller, not by
	// the parent's graph.
	return nil
}

func (b *SubcomponentCreatorBinding) Scope() string               { return "" }
func (b *SubcomponentCreatorBinding) DeclaredAt() DeclarationRef  { return b.declaredAt }
func (b *SubcomponentCreatorBinding) Nilable() bool               { return false }
func (b *SubcomponentCreatorBinding) Child() *ComponentDescriptor { return b.child }

// MembersInjectionBinding describes field injection into an existing value.
// It produces no value of its own; Key is the MembersInjector[T] key.
type MembersInjectionBinding struct {
	key        Key
	target     TypeRef
	sites      []InjectionSite
	supertype  *DependencyRequest
	declaredAt DeclarationRef
}

func NewMembersInjectionBinding(key Key, target TypeRef, sites []InjectionSite, supertype *DependencyRequest, declaredAt DeclarationRef) *MembersInjectionBinding {
	return &MembersInjectionBinding{
		key:        key,
		target:     target,
		sites:      sites,
		supertype:  supertype,
		declaredAt: declaredAt,
	}
}

func (b *MembersInjectionBinding) Key() Key          { return b.key }
func (b *MembersInjectionBinding) Kind() BindingKind { return BindingMembersInjection }

func (b *MembersInjectionBinding) Dependencies() []DependencyRequest {
	deps := make([]DependencyRequest, 0, len(b.sites)+1)
	if b.supertype != nil {
		deps = append(deps, *b.supertype)
	}
	for _, site := range b.sites {
		deps = append(deps, site.Request)
	}
	return deps
}

func (b *MembersInjectionBinding) Scope() string                 { return "" }
func (b *MembersInjectionBinding) DeclaredAt() DeclarationRef    { return b.declaredAt }
func (b *MembersInjectionBinding) Nilable() bool                 { return false }
func (b *MembersInjectionBinding) Target() TypeRef               { return b.target }
func (b *MembersInjectionBinding) Sites() []InjectionSite        { return b.sites }
func (b *MembersInjectionBinding) Supertype() *DependencyRequest { return b.supertype }
