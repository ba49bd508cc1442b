// Package driver orchestrates the generation pipeline: parsing directive
// files, resolving and validating their binding graphs, and writing the
// generated implementations. Files are processed in rounds so that a file
// referencing types produced by another file in the same batch settles once
// that output exists.
package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kinmemodoki/handa/internal/gen"
	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/parser"
	"github.com/kinmemodoki/handa/internal/plan"
	"github.com/kinmemodoki/handa/internal/resolve"
	"github.com/kinmemodoki/handa/internal/synth"
	"github.com/kinmemodoki/handa/internal/validate"
)

const (
	defaultMaxRounds   = 8
	defaultParallelism = 4
)

// Options configures a generation run.
type Options struct {
	// Strict promotes nilability warnings to errors.
	Strict bool
	// KeysPerSwitch caps provider fields per generated switch shard.
	KeysPerSwitch int
	// SingleCheckScopes lists scopes memoized without double-checked locking.
	SingleCheckScopes []string
	// OutputSuffix is appended to the source base name, e.g. "_handa".
	OutputSuffix string
	// MaxRounds bounds retries for files deferred on missing types.
	MaxRounds int
	// Parallelism bounds concurrent file parses within a round.
	Parallelism int
}

// Driver runs the generation pipeline over directive files.
type Driver struct {
	opts Options
}

// New creates a driver. Zero-valued limits fall back to defaults.
func New(opts Options) *Driver {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaultMaxRounds
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	return &Driver{opts: opts}
}

// unit is one directive file moving through the rounds.
type unit struct {
	path string
	// err holds the deferral reason from the last attempt.
	err error
}

// ProcessFiles generates code for the given files. A file that fails because
// a referenced type is not present yet is retried on the next round; once a
// round completes without progress the remaining failures are reported.
func (d *Driver) ProcessFiles(files []string) error {
	pending := make([]*unit, 0, len(files))
	for _, f := range files {
		pending = append(pending, &unit{path: f})
	}

	for round := 1; len(pending) > 0; round++ {
		if round > d.opts.MaxRounds {
			return deferralError(pending)
		}
		slog.Debug("generation round", "round", round, "files", len(pending))

		parsed, err := d.parseAll(pending)
		if err != nil {
			return err
		}

		writer := gen.NewWriter(d.opts.OutputSuffix)
		var next []*unit
		progress := false
		for i, u := range pending {
			f := parsed[i]
			if f == nil {
				if u.err != nil {
					next = append(next, u)
					continue
				}
				// No component declarations in this file.
				progress = true
				continue
			}
			if err := d.generate(writer, f); err != nil {
				if errors.Is(err, model.ErrTypeNotPresent) {
					slog.Debug("deferring file", "file", u.path, "reason", err)
					u.err = err
					next = append(next, u)
					continue
				}
				return err
			}
			u.err = nil
			progress = true
		}
		if !progress && len(next) > 0 {
			return deferralError(next)
		}
		pending = next
	}
	return nil
}

// parseAll parses the round's files concurrently. Missing-type failures are
// recorded on the unit and skipped; any other parse error aborts the run.
func (d *Driver) parseAll(units []*unit) ([]*parser.File, error) {
	parsed := make([]*parser.File, len(units))

	eg := &errgroup.Group{}
	eg.SetLimit(d.opts.Parallelism)
	for i, u := range units {
		eg.Go(func() error {
			slog.Debug("parsing file", "file", u.path)
			f, err := parser.NewParser().ParseFile(u.path)
			if err != nil {
				if errors.Is(err, model.ErrTypeNotPresent) {
					u.err = err
					return nil
				}
				return fmt.Errorf("parse %s: %w", u.path, err)
			}
			u.err = nil
			parsed[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// generate runs resolution through code emission for one parsed file.
func (d *Driver) generate(w *gen.Writer, f *parser.File) error {
	slog.Info("found component declarations", "file", f.Path, "count", len(f.Roots))

	planner := plan.New()
	validator := validate.New(d.opts.Strict)
	graphs := make([]*resolve.Graph, 0, len(f.Roots))
	plans := make(map[*model.ComponentDescriptor]*plan.Plan)
	for _, root := range f.Roots {
		g, err := resolve.NewResolver(f.Injectables).Resolve(root)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", root.Type.Canonical, err)
		}

		diags := validator.Validate(g)
		for _, dg := range diags {
			if dg.Severity == validate.SeverityWarning {
				slog.Warn(dg.Message, "pos", dg.Site.Pos)
			}
		}
		if diags.HasErrors() {
			return fmt.Errorf("%s:\n%s", f.Path, diags)
		}

		if err := planTree(planner, g.Root, plans); err != nil {
			return fmt.Errorf("plan %s: %w", root.Type.Canonical, err)
		}
		graphs = append(graphs, g)
	}

	sy := synth.New(synth.Options{
		KeysPerSwitch:     d.opts.KeysPerSwitch,
		SingleCheckScopes: d.opts.SingleCheckScopes,
	})
	out, err := sy.Synthesize(graphs, plans, synth.Package{Name: f.PkgName, Path: f.PkgPath}, f.Origin)
	if err != nil {
		return fmt.Errorf("synthesize %s: %w", f.Path, err)
	}
	return w.Write(f.Path, out)
}

// planTree orders initialization for every component of one tree.
func planTree(p *plan.Planner, res *resolve.ComponentResolution, plans map[*model.ComponentDescriptor]*plan.Plan) error {
	pl, err := p.Plan(res)
	if err != nil {
		return err
	}
	plans[res.Component] = pl
	for _, child := range res.Children {
		if err := planTree(p, child, plans); err != nil {
			return err
		}
	}
	return nil
}

// deferralError reports every file still blocked on missing types.
func deferralError(units []*unit) error {
	var sb strings.Builder
	sb.WriteString("unresolved type references after retries:")
	for _, u := range units {
		fmt.Fprintf(&sb, "\n  %s: %v", u.path, u.err)
	}
	return errors.New(sb.String())
}
