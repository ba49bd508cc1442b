package validate

import (
	"fmt"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/resolve"
)

// Validator checks a resolved graph. Strict mode promotes nullability
// warnings to errors.
type Validator struct {
	strict bool
}

func New(strict bool) *Validator {
	return &Validator{strict: strict}
}

// Validate reports every violation in the graph: the resolver's recorded
// problems plus scope-compatibility and nullability checks over the
// resolution tables. Nothing stops at the first finding.
func (v *Validator) Validate(g *resolve.Graph) Diagnostics {
	var ds Diagnostics

	for _, p := range g.Problems {
		ds = append(ds, v.problemDiagnostic(p))
	}

	v.walk(g.Root, &ds)
	return ds
}

func (v *Validator) problemDiagnostic(p resolve.Problem) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Message:  fmt.Sprintf("%s (in component %s)", p, p.Component.Type),
		Site:     p.Request.Site,
	}
}

func (v *Validator) walk(res *resolve.ComponentResolution, ds *Diagnostics) {
	for _, rb := range res.Owned() {
		v.checkScope(res, rb, ds)
		v.checkNilability(rb, ds)
		v.checkAsyncRequests(res, rb, ds)
	}
	for _, ep := range res.Component.EntryPoints {
		v.checkAsyncRequest(res, ep.Request, ds)
	}
	for _, child := range res.Children {
		v.walk(child, ds)
	}
}

// checkScope enforces scope ownership: a binding scoped to S may only be
// instantiated by the component that installs S. A scoped binding owned by a
// component whose chain does not install the scope at the owner means some
// requesting component outside the scope's subtree reached it.
func (v *Validator) checkScope(res *resolve.ComponentResolution, rb *resolve.ResolvedBinding, ds *Diagnostics) {
	scope := rb.Binding.Scope()
	if scope == "" {
		return
	}

	if !rb.Owner.InstallsScope(scope) {
		*ds = append(*ds, Diagnostic{
			Severity: SeverityError,
			Message: fmt.Sprintf(
				"binding %s is scoped %q but component %s does not install that scope",
				rb.Key, scope, rb.Owner.Type,
			),
			Site: rb.Binding.DeclaredAt(),
		})
	}

	// A scoped binding must not depend directly on a binding owned by a
	// narrower (descendant) scope; the cached instance would outlive its
	// dependency's lifetime.
	for _, dep := range rb.Binding.Dependencies() {
		depRB, ok := res.Lookup(dep.Key)
		if !ok || depRB.Binding.Scope() == "" {
			continue
		}
		if isDescendant(depRB.Owner, rb.Owner) {
			*ds = append(*ds, Diagnostic{
				Severity: SeverityError,
				Message: fmt.Sprintf(
					"binding %s (scope %q) depends on %s (scope %q) owned by the narrower component %s",
					rb.Key, scope, dep.Key, depRB.Binding.Scope(), depRB.Owner.Type,
				),
				Site: rb.Binding.DeclaredAt(),
			})
		}
	}
}

// isDescendant reports whether comp is a strict descendant of ancestor.
func isDescendant(comp, ancestor *model.ComponentDescriptor) bool {
	for cur := comp.Parent; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// checkAsyncRequests enforces synchronous/asynchronous separation: outside
// another async binding, an async value is only reachable as a future.
// Async bindings themselves may request other async values directly; those
// are awaited inside their goroutine.
func (v *Validator) checkAsyncRequests(res *resolve.ComponentResolution, rb *resolve.ResolvedBinding, ds *Diagnostics) {
	if _, async := rb.Binding.(*model.ProductionBinding); async {
		return
	}
	for _, dep := range rb.Binding.Dependencies() {
		v.checkAsyncRequest(res, dep, ds)
	}
}

func (v *Validator) checkAsyncRequest(res *resolve.ComponentResolution, req model.DependencyRequest, ds *Diagnostics) {
	switch req.Kind {
	case model.RequestInstance, model.RequestProvider, model.RequestLazy:
	default:
		return
	}
	depRB, ok := res.Lookup(resolve.TableKey(req))
	if !ok {
		return
	}
	if _, async := depRB.Binding.(*model.ProductionBinding); !async {
		return
	}
	*ds = append(*ds, Diagnostic{
		Severity: SeverityError,
		Message: fmt.Sprintf(
			"binding %s is async and can only be requested here as handa.Future[%s]",
			depRB.Key, depRB.Key.Type,
		),
		Site: req.Site,
	})
}

// checkNilability warns for every site that requests a nilable binding
// without being typed to accept nil. Strict mode promotes the warning.
func (v *Validator) checkNilability(rb *resolve.ResolvedBinding, ds *Diagnostics) {
	if !rb.Binding.Nilable() {
		return
	}

	severity := SeverityWarning
	if v.strict {
		severity = SeverityError
	}

	for _, req := range rb.RequestedBy {
		if req.Nilable {
			continue
		}
		*ds = append(*ds, Diagnostic{
			Severity: severity,
			Message: fmt.Sprintf(
				"binding %s may produce nil but the requesting site does not accept nil",
				rb.Key,
			),
			Site: req.Site,
		})
	}
}
