package resolve

import (
	"fmt"
	"log/slog"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/pkg/collection"
)

// Resolver resolves the binding graph for one component tree. Memoization is
// per (component, key) through the resolution tables, valid for one
// processing round.
type Resolver struct {
	injectables map[string]*model.InjectableType
	problems    []Problem
}

// NewResolver creates a resolver. injectables maps canonical struct type
// names to their precomputed injection sites.
func NewResolver(injectables map[string]*model.InjectableType) *Resolver {
	if injectables == nil {
		injectables = make(map[string]*model.InjectableType)
	}
	return &Resolver{injectables: injectables}
}

// Resolve walks the component tree root-to-leaf and resolves every key
// reachable from each component's entry points. The returned graph contains
// every problem found; only infrastructure failures (a type vanishing
// mid-round) surface as errors.
func (r *Resolver) Resolve(root *model.ComponentDescriptor) (*Graph, error) {
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("component tree: %w", err)
	}

	rootScope, err := r.resolveComponent(root, nil)
	if err != nil {
		return nil, err
	}

	return &Graph{
		Root:     rootScope.res,
		Problems: r.problems,
	}, nil
}

// stackFrame is one in-progress resolution on the current traversal stack.
type stackFrame struct {
	keyID string
	key   model.Key
	kind  model.RequestKind
}

// componentScope is the mutable working state for one component during
// resolution.
type componentScope struct {
	parent *componentScope
	comp   *model.ComponentDescriptor
	res    *ComponentResolution
	// locals holds explicit bindings from directly installed modules plus
	// bound instances and subcomponent creators, keyed by Key.ID. Multiple
	// entries for one key is a duplicate-binding problem.
	locals *collection.OrderedMap[string, []model.Binding]
	stack  []stackFrame
	// pendingDelegates are cycle heads still on the stack when their cycle
	// was accepted; marked NeedsDelegate once their resolution lands.
	pendingDelegates map[string]struct{}
}

func (r *Resolver) resolveComponent(comp *model.ComponentDescriptor, parent *componentScope) (*componentScope, error) {
	cs := &componentScope{
		parent: parent,
		comp:   comp,
		res: &ComponentResolution{
			Component: comp,
			Bindings:  collection.NewOrderedMap[string, *ResolvedBinding](),
		},
		locals:           collection.NewOrderedMap[string, []model.Binding](),
		pendingDelegates: make(map[string]struct{}),
	}
	if parent != nil {
		cs.res.Parent = parent.res
		parent.res.Children = append(parent.res.Children, cs.res)
	}

	for _, m := range comp.InstalledModules() {
		for _, b := range m.Bindings {
			r.addLocal(cs, b)
		}
	}
	for _, bi := range comp.BoundInstances {
		r.addLocal(cs, bi)
	}
	for _, child := range comp.Children {
		key := model.NewKey(child.Type)
		r.addLocal(cs, model.NewSubcomponentCreatorBinding(key, child, child.DeclaredAt))
	}

	for _, ep := range comp.EntryPoints {
		slog.Debug("resolving entry point", "component", comp.Name(), "entry", ep.Name)
		if _, err := r.resolve(cs, ep.Request); err != nil {
			return nil, err
		}
	}

	for _, child := range comp.Children {
		if _, err := r.resolveComponent(child, cs); err != nil {
			return nil, err
		}
	}

	return cs, nil
}

func (r *Resolver) addLocal(cs *componentScope, b model.Binding) {
	id := b.Key().ID()
	existing, _ := cs.locals.Get(id)
	cs.locals.Set(id, append(existing, b))
}

// TableKey is the identity a request resolves under. Optional and
// members-injector requests resolve under derived wrapper keys so they never
// collide with the plain value binding of the same type.
func TableKey(req model.DependencyRequest) model.Key {
	switch req.Kind {
	case model.RequestOptional:
		return model.OptionalKey(req.Key)
	case model.RequestMembersInjector:
		return model.MembersInjectorKey(req.Key)
	default:
		return req.Key
	}
}

// resolve resolves one request at one component, memoized through the
// component's table. Returns nil (with a recorded problem) for unresolvable
// keys so resolution can continue and report everything at once.
func (r *Resolver) resolve(cs *componentScope, req model.DependencyRequest) (*ResolvedBinding, error) {
	key := TableKey(req)
	id := key.ID()

	// A key already on the stack is a cycle. Its table entry exists but its
	// dependencies are still being resolved, so the stack check must come
	// first.
	if idx := frameIndex(cs.stack, id); idx >= 0 {
		r.recordCycle(cs, idx, req)
		return nil, nil
	}

	if rb, ok := cs.res.Bindings.Get(id); ok {
		rb.RequestedBy = append(rb.RequestedBy, req)
		return rb, nil
	}

	cs.stack = append(cs.stack, stackFrame{keyID: id, key: key, kind: req.Kind})
	defer func() {
		cs.stack = cs.stack[:len(cs.stack)-1]
	}()

	rb, err := r.locate(cs, key, req)
	if err != nil || rb == nil {
		return nil, err
	}

	cs.res.Bindings.Set(id, rb)
	rb.RequestedBy = append(rb.RequestedBy, req)

	// Inherited bindings had their dependencies resolved where they are
	// owned; resolving them again here would wrongly re-own unscoped deps.
	if rb.Inherited {
		return rb, nil
	}

	for _, dep := range rb.Binding.Dependencies() {
		if _, err := r.resolve(cs, dep); err != nil {
			return nil, err
		}
	}

	// An accepted cycle through this key was recorded while its
	// dependencies resolved; the mark can only be applied now.
	if _, ok := cs.pendingDelegates[id]; ok {
		rb.NeedsDelegate = true
		delete(cs.pendingDelegates, id)
	}

	return rb, nil
}

// locate implements the lookup order: local explicit bindings, then the
// ancestor chain, then synthetic resolution.
func (r *Resolver) locate(cs *componentScope, key model.Key, req model.DependencyRequest) (*ResolvedBinding, error) {
	if locals, ok := cs.locals.Get(key.ID()); ok {
		if len(locals) > 1 {
			r.recordDuplicate(cs, req, locals)
		}
		return &ResolvedBinding{Key: key, Binding: locals[0], Owner: cs.comp}, nil
	}

	if rb, err := r.locateInherited(cs, key, req); rb != nil || err != nil {
		return rb, err
	}

	if rb, err := r.synthesize(cs, key, req); rb != nil || err != nil {
		return rb, err
	}

	r.problems = append(r.problems, Problem{
		Kind:      ProblemMissing,
		Component: cs.comp,
		Request:   req,
	})
	return nil, nil
}

// locateInherited searches the ancestor chain. A key found there is resolved
// in the ancestor's own scope first (so the owning component materializes
// it), then mirrored into this component's table as inherited.
func (r *Resolver) locateInherited(cs *componentScope, key model.Key, req model.DependencyRequest) (*ResolvedBinding, error) {
	for ancestor := cs.parent; ancestor != nil; ancestor = ancestor.parent {
		if rb, ok := ancestor.res.Bindings.Get(key.ID()); ok {
			return r.inherit(rb, req), nil
		}

		locals, ok := ancestor.locals.Get(key.ID())
		if !ok {
			continue
		}

		// Unscoped ancestor bindings not already resolved up there are
		// re-resolved locally: the requesting component owns its own copy
		// rather than coupling to siblings through the ancestor.
		if locals[0].Scope() == "" {
			if len(locals) > 1 {
				r.recordDuplicate(cs, req, locals)
			}
			return &ResolvedBinding{Key: key, Binding: locals[0], Owner: cs.comp}, nil
		}

		owned, err := r.resolve(ancestor, model.DependencyRequest{
			Key:  req.Key,
			Kind: req.Kind,
			Site: req.Site,
		})
		if err != nil {
			return nil, err
		}
		if owned == nil {
			return nil, nil
		}
		return r.inherit(owned, req), nil
	}

	return nil, nil
}

func (r *Resolver) inherit(owned *ResolvedBinding, req model.DependencyRequest) *ResolvedBinding {
	owned.RequestedBy = append(owned.RequestedBy, req)
	return &ResolvedBinding{
		Key:       owned.Key,
		Binding:   owned.Binding,
		Owner:     owned.Owner,
		Inherited: true,
	}
}

func frameIndex(stack []stackFrame, keyID string) int {
	for i, f := range stack {
		if f.keyID == keyID {
			return i
		}
	}
	return -1
}

// recordCycle reconstructs the cycle path from the stack and applies the
// deferred-edge policy: the cycle is permitted when at most one of its edges
// is a direct-instance request, because every other edge then compiles to a
// provider reference that does not need its target's value yet. Permitted
// cycles mark the revisited binding for forward-reference initialization.
func (r *Resolver) recordCycle(cs *componentScope, startIdx int, closing model.DependencyRequest) {
	frames := cs.stack[startIdx:]

	// Edge i is the request that reached frames[i]'s key. The head's own
	// frame kind is the edge from outside the cycle; the back edge into the
	// head is the closing request.
	cycle := make([]CycleEdge, 0, len(frames))
	cycle = append(cycle, CycleEdge{Key: frames[0].key, Kind: closing.Kind})
	for _, f := range frames[1:] {
		cycle = append(cycle, CycleEdge{Key: f.key, Kind: f.kind})
	}

	direct := 0
	delegateIdx := -1
	futureBroken := false
	for i, edge := range cycle {
		if !edge.Kind.Deferred() {
			direct++
			continue
		}
		switch edge.Kind {
		case model.RequestProducer, model.RequestProduced, model.RequestFuture:
			// A future read is already a forward reference: the field is
			// allocated before any initializer runs, so the edge needs no
			// placeholder.
			futureBroken = true
		default:
			if delegateIdx < 0 {
				delegateIdx = i
			}
		}
	}

	if direct <= 1 && (delegateIdx >= 0 || futureBroken) {
		if delegateIdx >= 0 {
			// The provider edge's target carries the placeholder: every
			// reference through that edge reads the placeholder instead of
			// the real field, which is what removes the edge from the
			// initialization order. The target is still on the stack; it
			// is marked once its resolution lands.
			cs.pendingDelegates[frames[delegateIdx].keyID] = struct{}{}
		}
		slog.Debug("deferred-edge cycle accepted", "cycle", FormatCycle(cycle))
		return
	}

	r.problems = append(r.problems, Problem{
		Kind:      ProblemCycle,
		Component: cs.comp,
		Request:   closing,
		Cycle:     cycle,
	})
}

func (r *Resolver) recordDuplicate(cs *componentScope, req model.DependencyRequest, bindings []model.Binding) {
	sites := make([]model.DeclarationRef, 0, len(bindings))
	for _, b := range bindings {
		sites = append(sites, b.DeclaredAt())
	}
	r.problems = append(r.problems, Problem{
		Kind:      ProblemDuplicate,
		Component: cs.comp,
		Request:   req,
		Sites:     sites,
	})
}
