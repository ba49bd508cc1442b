package synth

import (
	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/resolve"
)

// strategy decides how a resolved binding is materialized inside the
// generated component implementation.
type strategy uint8

const (
	// strategyNone is for bindings that only exist as methods on the
	// component, such as subcomponent creators and members injectors.
	strategyNone strategy = iota
	// strategyInline re-evaluates the binding expression at every use
	// site. Only unscoped instance bindings with a single use qualify.
	strategyInline
	// strategyField backs the binding with a Provider field on the
	// component, memoized when the binding is scoped.
	strategyField
	// strategyEager evaluates the binding inside the component
	// constructor and stores the value in a plain field. Error-returning
	// providers and bound instances always take this path.
	strategyEager
	// strategyAlias forwards every use to the delegate target and emits
	// nothing of its own.
	strategyAlias
	// strategyFuture runs the production function on the component's
	// errgroup and stores a Future field.
	strategyFuture
)

func (s strategy) hasField() bool {
	return s == strategyField || s == strategyEager || s == strategyFuture
}

// decideStrategy picks the materialization strategy for one owned binding.
// usage is the number of instance-kind requests observed for the binding's
// key within the owning component's resolution.
func decideStrategy(rb *resolve.ResolvedBinding, usage int) strategy {
	switch b := rb.Binding.(type) {
	case *model.DelegateBinding:
		return strategyAlias
	case *model.SubcomponentCreatorBinding, *model.MembersInjectionBinding:
		return strategyNone
	case *model.BoundInstanceBinding:
		return strategyEager
	case *model.ProductionBinding:
		return strategyFuture
	case *model.ProvisionBinding:
		if b.Fn().ReturnsError {
			return strategyEager
		}
	}
	if rb.Binding.Scope() != "" || rb.NeedsDelegate {
		return strategyField
	}
	if usage > 1 {
		return strategyField
	}
	return strategyInline
}

// usageCounts tallies, per table key, how many dependency edges inside the
// component reach that key. Deferred requests count too: a Provider edge
// still forces a shared field once a second consumer appears.
func usageCounts(res *resolve.ComponentResolution) map[string]int {
	counts := make(map[string]int)
	for _, rb := range res.Owned() {
		for _, dep := range rb.Binding.Dependencies() {
			counts[resolve.TableKey(dep).ID()]++
		}
	}
	for _, ep := range res.Component.EntryPoints {
		counts[resolve.TableKey(ep.Request).ID()]++
	}
	return counts
}
