package synth

import (
	"fmt"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/plan"
	"github.com/kinmemodoki/handa/internal/resolve"
)

// runtimePkgPath is the package generated code links against for providers,
// memoization, futures, and delegates.
const runtimePkgPath = "github.com/kinmemodoki/handa"

// Options tune generated code shape without changing its semantics.
type Options struct {
	// KeysPerSwitch caps how many provider fields a component may back
	// with individual closures; above the cap, providers dispatch through
	// shared switch shards. Zero disables sharding.
	KeysPerSwitch int
	// SingleCheckScopes lists scopes whose memoization skips
	// synchronization. Everything else double-checks.
	SingleCheckScopes []string
}

// Synthesizer turns resolved, planned component trees into generated-type
// specifications.
type Synthesizer struct {
	opts Options
}

func New(opts Options) *Synthesizer {
	return &Synthesizer{opts: opts}
}

// state is the working set for one output file.
type state struct {
	file  *File
	names *NamePool
	opts  Options
	plans map[*model.ComponentDescriptor]*plan.Plan
	comps map[*model.ComponentDescriptor]*compState
}

func (s *state) singleCheck(scope string) bool {
	for _, sc := range s.opts.SingleCheckScopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// Synthesize builds the output file for the component trees of one
// directive file. Graphs must have validated clean; plans must cover every
// component of every tree.
func (sy *Synthesizer) Synthesize(graphs []*resolve.Graph, plans map[*model.ComponentDescriptor]*plan.Plan, pkg Package, origin model.DeclarationRef) (*File, error) {
	s := &state{
		file: &File{
			Package: pkg,
			Imports: make(map[string]*Import),
			Origin:  origin,
		},
		names: NewNamePool(),
		opts:  sy.opts,
		plans: plans,
		comps: make(map[*model.ComponentDescriptor]*compState),
	}
	s.names.Register(pkg.Name)

	for _, g := range graphs {
		if len(g.Problems) > 0 {
			return nil, fmt.Errorf("refusing to synthesize a graph with %d unresolved problems", len(g.Problems))
		}
		g.Root.Component.Walk(func(c *model.ComponentDescriptor) {
			s.names.Register(typeBaseName(c.Type))
		})
	}

	for _, g := range graphs {
		if err := s.allocate(g.Root, nil); err != nil {
			return nil, err
		}
	}
	for _, g := range graphs {
		if err := s.emitComponent(s.comps[g.Root.Component]); err != nil {
			return nil, err
		}
	}
	return s.file, nil
}
