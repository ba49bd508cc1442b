// Package plan orders component field initialization: every binding's
// initializer may only reference fields that already exist, with
// forward-declared delegate providers breaking the cycles the resolver
// accepted.
package plan

import (
	"fmt"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/pkg/collection"
	"github.com/kinmemodoki/handa/internal/resolve"
)

// StepKind distinguishes initialization steps.
type StepKind int

const (
	// StepDelegateDecl declares a placeholder provider for a cycle head
	// before anything in the cycle initializes.
	StepDelegateDecl StepKind = iota
	// StepInit initializes a binding's backing field.
	StepInit
	// StepBackpatch points a previously declared placeholder at the real
	// provider, after the cycle head's own field exists.
	StepBackpatch
)

// Step is one entry of a component's initialization sequence.
type Step struct {
	Kind    StepKind
	Binding *resolve.ResolvedBinding
}

// Plan is the ordered initialization sequence for one component.
type Plan struct {
	Component *model.ComponentDescriptor
	Steps     []Step
}

// Planner computes initialization plans.
type Planner struct{}

func New() *Planner {
	return &Planner{}
}

// Plan topologically sorts the component's owned bindings. Edges are direct
// dependencies that resolve to other owned-here bindings; edges into a
// cycle-broken binding are carried by its placeholder and therefore ignored
// for ordering. Ties break by resolution order, which keeps regenerated
// output stable.
func (p *Planner) Plan(res *resolve.ComponentResolution) (*Plan, error) {
	owned := res.Owned()

	index := make(map[string]int, len(owned))
	for i, rb := range owned {
		index[rb.Key.ID()] = i
	}

	// dependents[i] lists the owned bindings whose initializers reference
	// binding i; indegree[i] counts binding i's unsatisfied dependencies.
	dependents := make([][]int, len(owned))
	indegree := make([]int, len(owned))
	for i, rb := range owned {
		for _, dep := range rb.Binding.Dependencies() {
			depRB, ok := res.Lookup(resolve.TableKey(dep))
			if !ok || depRB.Inherited || depRB.Owner != res.Component {
				continue
			}
			j, ok := index[depRB.Key.ID()]
			if !ok || j == i {
				continue
			}
			if depRB.NeedsDelegate && dep.Kind.Deferred() {
				// Deferred edges into a cycle head reference the
				// placeholder, not the real field.
				continue
			}
			if _, async := depRB.Binding.(*model.ProductionBinding); async && dep.Kind.Deferred() {
				// Future fields are allocated before any initializer runs,
				// so reading one does not need the producer scheduled
				// first.
				continue
			}
			dependents[j] = append(dependents[j], i)
			indegree[i]++
		}
	}

	plan := &Plan{Component: res.Component}
	for _, rb := range owned {
		if rb.NeedsDelegate {
			plan.Steps = append(plan.Steps, Step{Kind: StepDelegateDecl, Binding: rb})
		}
	}

	// Kahn's algorithm; the queue is seeded and drained in resolution order
	// so equal-rank bindings keep a deterministic sequence.
	ready := collection.NewQueue[int]()
	for i := range owned {
		if indegree[i] == 0 {
			ready.Push(i)
		}
	}

	initialized := 0
	ready.Iter(func(i int) bool {
		rb := owned[i]
		plan.Steps = append(plan.Steps, Step{Kind: StepInit, Binding: rb})
		if rb.NeedsDelegate {
			plan.Steps = append(plan.Steps, Step{Kind: StepBackpatch, Binding: rb})
		}
		initialized++

		for _, dependent := range dependents[i] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready.Push(dependent)
			}
		}
		return true
	})

	if initialized != len(owned) {
		// Validation rejects unbreakable cycles before planning; reaching
		// this means the graph and the plan disagree.
		return nil, fmt.Errorf("component %s: initialization order has a residual cycle (%d of %d bindings ordered)",
			res.Component.Type, initialized, len(owned))
	}

	return plan, nil
}
