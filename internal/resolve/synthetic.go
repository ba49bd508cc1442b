package resolve

import (
	"strings"

	"github.com/kinmemodoki/handa/internal/model"
)

// synthesize attempts synthetic resolution for keys with no explicit
// binding: optional wrappers, multibinding aggregation, members injectors,
// and injectable-struct construction. Returns nil when nothing applies.
func (r *Resolver) synthesize(cs *componentScope, key model.Key, req model.DependencyRequest) (*ResolvedBinding, error) {
	switch req.Kind {
	case model.RequestOptional:
		return r.synthesizeOptional(cs, key, req), nil
	case model.RequestMembersInjector:
		return r.synthesizeMembersInjector(cs, key, req), nil
	}

	if rb := r.synthesizeMultibinding(cs, key); rb != nil {
		return rb, nil
	}

	return r.synthesizeInjection(cs, key, req), nil
}

// synthesizeOptional builds the Optional wrapper binding. It requires an
// OptionalOf declaration for the wrapped key in some module of the chain;
// presence is decided by whether the wrapped key is bindable anywhere in the
// chain.
func (r *Resolver) synthesizeOptional(cs *componentScope, key model.Key, req model.DependencyRequest) *ResolvedBinding {
	wrapped := req.Key

	declared := false
	for scope := cs; scope != nil && !declared; scope = scope.parent {
		for _, m := range scope.comp.InstalledModules() {
			for _, opt := range m.OptionalKeys {
				if opt.ID() == wrapped.ID() {
					declared = true
					break
				}
			}
		}
	}
	if !declared {
		return nil
	}

	present := r.bindable(cs, wrapped)
	binding := model.NewOptionalBinding(key, wrapped, present, req.Site)
	return &ResolvedBinding{Key: key, Binding: binding, Owner: cs.comp}
}

// bindable reports whether a key has an explicit binding anywhere in the
// chain, or can be satisfied by injectable-struct synthesis.
func (r *Resolver) bindable(cs *componentScope, key model.Key) bool {
	for scope := cs; scope != nil; scope = scope.parent {
		if scope.locals.Has(key.ID()) {
			return true
		}
	}
	_, ok := r.injectableFor(key)
	return ok
}

// synthesizeMultibinding aggregates contributions for slice and map
// collection keys across the entire ancestor chain: every component's
// installed modules contribute, root-first, install order, declaration
// order. Set element contributions come first, then whole-slice
// contributions, each family in discovery order. Map contributions must
// have unique keys; collisions are recorded with both sites named.
func (r *Resolver) synthesizeMultibinding(cs *componentScope, key model.Key) *ResolvedBinding {
	var collection model.CollectionKind
	switch {
	case strings.HasPrefix(key.Type.Canonical, "[]"):
		collection = model.CollectionSet
	case strings.HasPrefix(key.Type.Canonical, "map["):
		collection = model.CollectionMap
	default:
		return nil
	}

	chain := make([]*componentScope, 0, 2)
	for scope := cs; scope != nil; scope = scope.parent {
		chain = append(chain, scope)
	}

	var elements, setValues []*model.MultibindingContribution
	// Walk root-first for stable discovery order.
	for i := len(chain) - 1; i >= 0; i-- {
		for _, m := range chain[i].comp.InstalledModules() {
			for _, c := range m.Contributions {
				if c.CollectionKey.ID() != key.ID() {
					continue
				}
				if c.Elements {
					setValues = append(setValues, c)
				} else {
					elements = append(elements, c)
				}
			}
		}
	}

	contributions := append(elements, setValues...)
	if len(contributions) == 0 {
		return nil
	}

	if collection == model.CollectionMap {
		byKey := make(map[string]*model.MultibindingContribution, len(contributions))
		for _, c := range contributions {
			if prev, ok := byKey[c.MapKey]; ok {
				r.problems = append(r.problems, Problem{
					Kind:      ProblemMapKeyCollision,
					Component: cs.comp,
					Request:   model.DependencyRequest{Key: key, Kind: model.RequestInstance, Site: c.DeclaredAt},
					Sites:     []model.DeclarationRef{prev.DeclaredAt, c.DeclaredAt},
					MapKey:    c.MapKey,
				})
				continue
			}
			byKey[c.MapKey] = c
		}
	}

	binding := model.NewMultibindingBinding(key, collection, contributions)
	return &ResolvedBinding{Key: key, Binding: binding, Owner: cs.comp}
}

// synthesizeMembersInjector derives a members-injection binding from the
// target type's precomputed injection sites, chaining to the embedded
// struct's injector when one exists.
func (r *Resolver) synthesizeMembersInjector(cs *componentScope, key model.Key, req model.DependencyRequest) *ResolvedBinding {
	info, ok := r.injectableFor(req.Key)
	if !ok {
		return nil
	}

	var supertype *model.DependencyRequest
	if info.Embedded != nil {
		supertype = &model.DependencyRequest{
			Key:  model.NewKey(*info.Embedded),
			Kind: model.RequestMembersInjector,
			Site: info.DeclaredAt,
		}
	}

	binding := model.NewMembersInjectionBinding(key, info.Type, info.Sites, supertype, info.DeclaredAt)
	return &ResolvedBinding{Key: key, Binding: binding, Owner: cs.comp}
}

// synthesizeInjection builds an injection binding for a requested struct
// type with tagged fields and no explicit binding. Always unscoped.
func (r *Resolver) synthesizeInjection(cs *componentScope, key model.Key, req model.DependencyRequest) *ResolvedBinding {
	info, ok := r.injectableFor(key)
	if !ok {
		return nil
	}

	binding, err := model.NewInjectionBinding(key, info.Sites, info.DeclaredAt)
	if err != nil {
		// Shape problems were already reported when the injectable was
		// collected; an empty site list just means nothing to synthesize.
		return nil
	}
	return &ResolvedBinding{Key: key, Binding: binding, Owner: cs.comp}
}

// injectableFor looks up injection metadata for a key, accepting both the
// struct type and a pointer to it.
func (r *Resolver) injectableFor(key model.Key) (*model.InjectableType, bool) {
	if key.Qualifier != nil {
		return nil, false
	}

	canonical := strings.TrimPrefix(key.Type.Canonical, "*")
	info, ok := r.injectables[canonical]
	return info, ok
}
