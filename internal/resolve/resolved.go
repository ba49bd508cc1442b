// Package resolve builds the binding graph: for every component in a tree
// and every key reachable from its entry points, it determines which binding
// satisfies the key and which component owns the cached instance.
package resolve

import (
	"fmt"
	"strings"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/pkg/collection"
)

// ResolvedBinding is the resolution of one key at one component.
type ResolvedBinding struct {
	Key     model.Key
	Binding model.Binding
	// Owner is the component whose generated implementation instantiates
	// the binding. For inherited bindings this is an ancestor.
	Owner *model.ComponentDescriptor
	// Inherited is true in a descendant's table when the binding was found
	// further up the chain.
	Inherited bool
	// NeedsDelegate marks a binding on a provider-broken cycle; the planner
	// forward-declares its provider and back-patches it.
	NeedsDelegate bool
	// RequestedBy accumulates every site that requested the key, in
	// discovery order.
	RequestedBy []model.DependencyRequest
}

// ComponentResolution is the per-component lookup table the synthesis engine
// consumes. Bindings is keyed by Key.ID and iterates in resolution order,
// which is what makes regeneration deterministic.
type ComponentResolution struct {
	Component *model.ComponentDescriptor
	Parent    *ComponentResolution
	Children  []*ComponentResolution
	Bindings  *collection.OrderedMap[string, *ResolvedBinding]
}

// Owned returns the bindings this component instantiates, in resolution
// order.
func (r *ComponentResolution) Owned() []*ResolvedBinding {
	var owned []*ResolvedBinding
	r.Bindings.Iter(func(_ string, rb *ResolvedBinding) bool {
		if !rb.Inherited && rb.Owner == r.Component {
			owned = append(owned, rb)
		}
		return true
	})
	return owned
}

// Lookup finds the resolution for a key at this component.
func (r *ComponentResolution) Lookup(key model.Key) (*ResolvedBinding, bool) {
	return r.Bindings.Get(key.ID())
}

// Graph is the resolver's output for one component tree: the resolution
// tables plus every graph-shape problem discovered on the way. Problems are
// data, not errors; the validator formats and reports them exhaustively.
type Graph struct {
	Root     *ComponentResolution
	Problems []Problem
}

// ProblemKind classifies resolution problems.
type ProblemKind int

const (
	ProblemMissing ProblemKind = iota
	ProblemDuplicate
	ProblemCycle
	ProblemMapKeyCollision
)

// CycleEdge is one hop of a reported dependency cycle.
type CycleEdge struct {
	Key  model.Key
	Kind model.RequestKind
}

// Problem is one graph-shape violation found during resolution.
type Problem struct {
	Kind      ProblemKind
	Component *model.ComponentDescriptor
	Request   model.DependencyRequest
	// Sites names every declaration involved (both duplicates, both
	// colliding map contributions).
	Sites []model.DeclarationRef
	Cycle []CycleEdge
	// MapKey is the colliding key literal for map-key collisions.
	MapKey string
}

func (p Problem) String() string {
	switch p.Kind {
	case ProblemMissing:
		return fmt.Sprintf("missing binding for %s requested by %s", p.Request.Key, p.Request.Site)
	case ProblemDuplicate:
		sites := make([]string, 0, len(p.Sites))
		for _, s := range p.Sites {
			sites = append(sites, s.String())
		}
		return fmt.Sprintf("duplicate bindings for %s: %s", p.Request.Key, strings.Join(sites, "; "))
	case ProblemCycle:
		return fmt.Sprintf("dependency cycle: %s", FormatCycle(p.Cycle))
	case ProblemMapKeyCollision:
		sites := make([]string, 0, len(p.Sites))
		for _, s := range p.Sites {
			sites = append(sites, s.String())
		}
		return fmt.Sprintf("duplicate map key %s for %s: %s", p.MapKey, p.Request.Key, strings.Join(sites, "; "))
	default:
		return fmt.Sprintf("problem(%d)", int(p.Kind))
	}
}

// FormatCycle renders a cycle path with each edge annotated by its request
// kind: A -> B [instance] -> A [provider]. Edge i's kind is the kind of the
// request that reached node i; the head's kind annotates the closing back
// edge.
func FormatCycle(cycle []CycleEdge) string {
	if len(cycle) == 0 {
		return "<empty cycle>"
	}

	var b strings.Builder
	b.WriteString(cycle[0].Key.Type.String())
	for _, edge := range cycle[1:] {
		fmt.Fprintf(&b, " -> %s [%s]", edge.Key.Type, edge.Kind)
	}
	fmt.Fprintf(&b, " -> %s [%s]", cycle[0].Key.Type, cycle[0].Kind)
	return b.String()
}
