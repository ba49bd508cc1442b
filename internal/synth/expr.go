package synth

import (
	"fmt"
	"go/ast"
	"go/token"
	"path"
	"strconv"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/resolve"
)

// emitCtx is where an expression is being emitted: which component's
// implementation, through which receiver expression, and whether we are
// inside the constructor (where cycle heads are reachable only through
// their delegate placeholders).
type emitCtx struct {
	cs     *compState
	recv   ast.Expr
	inCtor bool
}

// locate finds the resolution for a request and rebases the emit context
// onto the owning component, walking parent fields as needed. Inherited
// bindings always read the ancestor's already-constructed fields, so the
// rebased context is never in-constructor.
func (s *state) locate(ctx emitCtx, req model.DependencyRequest) (*resolve.ResolvedBinding, emitCtx, error) {
	key := resolve.TableKey(req)
	rb, ok := ctx.cs.res.Lookup(key)
	if !ok {
		return nil, ctx, fmt.Errorf("component %s: no resolution for %s", ctx.cs.res.Component.Type, key)
	}
	if rb.Owner == ctx.cs.res.Component {
		return rb, ctx, nil
	}

	recv := ctx.recv
	for cs := ctx.cs; cs != nil; cs = cs.parent {
		if cs.res.Component == rb.Owner {
			return rb, emitCtx{cs: cs, recv: recv}, nil
		}
		recv = sel(recv, cs.parentField)
	}
	return nil, ctx, fmt.Errorf("component %s: owner %s of %s is not an ancestor", ctx.cs.res.Component.Type, rb.Owner.Type, key)
}

// requestExpr builds the expression delivering a dependency request at a
// use site.
func (s *state) requestExpr(ctx emitCtx, req model.DependencyRequest) (ast.Expr, error) {
	switch req.Kind {
	case model.RequestInstance, model.RequestOptional:
		return s.instanceExpr(ctx, req)
	case model.RequestProvider:
		return s.providerExpr(ctx, req)
	case model.RequestLazy:
		p, err := s.providerExpr(ctx, req)
		if err != nil {
			return nil, err
		}
		return call(sel(s.handa(), "NewLazy"), p), nil
	case model.RequestProducer, model.RequestFuture:
		return s.futureExpr(ctx, req)
	case model.RequestMembersInjector:
		return s.membersInjectorExpr(ctx, req)
	case model.RequestProduced:
		return nil, fmt.Errorf("produced value for %s requested outside a production context", req.Key)
	default:
		return nil, fmt.Errorf("unsupported request kind %s for %s", req.Kind, req.Key)
	}
}

// instanceExpr builds the expression producing the value of a key.
func (s *state) instanceExpr(ctx emitCtx, req model.DependencyRequest) (ast.Expr, error) {
	rb, octx, err := s.locate(ctx, req)
	if err != nil {
		return nil, err
	}
	id := rb.Key.ID()

	switch octx.cs.strategies[id] {
	case strategyField:
		return call(sel(octx.recv, octx.cs.fieldNames[id])), nil
	case strategyEager:
		return sel(octx.recv, octx.cs.fieldNames[id]), nil
	case strategyInline:
		return s.bindingValueExpr(octx, rb)
	case strategyAlias:
		return s.instanceExpr(octx, rb.Binding.Dependencies()[0])
	case strategyFuture:
		return nil, fmt.Errorf("async binding %s requested as an instance by %s", rb.Key, req.Site)
	case strategyNone:
		if scb, ok := rb.Binding.(*model.SubcomponentCreatorBinding); ok {
			return s.inlineChildExpr(octx, scb)
		}
		return nil, fmt.Errorf("binding %s (%s) produces no value", rb.Key, rb.Binding.Kind())
	default:
		return nil, fmt.Errorf("binding %s: no strategy assigned", rb.Key)
	}
}

// inlineChildExpr constructs a child component where its type was requested
// as a plain dependency rather than through a creator entry point. Only
// children needing no caller input qualify.
func (s *state) inlineChildExpr(ctx emitCtx, scb *model.SubcomponentCreatorBinding) (ast.Expr, error) {
	child := s.comps[scb.Child()]
	if child == nil {
		return nil, fmt.Errorf("subcomponent %s: not synthesized", scb.Child().Type)
	}
	if len(scb.Child().BoundInstances) > 0 || child.ctorErr || child.hasAsync {
		return nil, fmt.Errorf("subcomponent %s requested as a dependency but its constructor needs caller input; request it through a creator entry point", scb.Child().Type)
	}
	return call(ident(child.ctorName), ctx.recv), nil
}

// providerExpr builds a Provider[T] expression for a request. Inside the
// constructor, deferred references to a cycle head go through its delegate
// placeholder so initialization order stays acyclic.
func (s *state) providerExpr(ctx emitCtx, req model.DependencyRequest) (ast.Expr, error) {
	rb, octx, err := s.locate(ctx, req)
	if err != nil {
		return nil, err
	}
	id := rb.Key.ID()

	if octx.inCtor && rb.NeedsDelegate {
		if v, ok := octx.cs.delegateVars[id]; ok {
			return call(sel(ident(v), "Provider")), nil
		}
	}

	switch octx.cs.strategies[id] {
	case strategyField:
		return sel(octx.recv, octx.cs.fieldNames[id]), nil
	case strategyEager:
		return s.providerClosure(rb, sel(octx.recv, octx.cs.fieldNames[id]))
	case strategyInline:
		value, err := s.bindingValueExpr(octx, rb)
		if err != nil {
			return nil, err
		}
		return s.providerClosure(rb, value)
	case strategyAlias:
		dep := rb.Binding.Dependencies()[0]
		dep.Kind = model.RequestProvider
		return s.providerExpr(octx, dep)
	default:
		return nil, fmt.Errorf("binding %s (%s) cannot back a provider", rb.Key, rb.Binding.Kind())
	}
}

// providerClosure wraps a value expression in func() T { return value }.
func (s *state) providerClosure(rb *resolve.ResolvedBinding, value ast.Expr) (ast.Expr, error) {
	result, err := s.boundTypeExpr(rb)
	if err != nil {
		return nil, err
	}
	return &ast.FuncLit{
		Type: &ast.FuncType{
			Params:  &ast.FieldList{},
			Results: &ast.FieldList{List: []*ast.Field{{Type: result}}},
		},
		Body: &ast.BlockStmt{List: []ast.Stmt{returnStmt(value)}},
	}, nil
}

func (s *state) futureExpr(ctx emitCtx, req model.DependencyRequest) (ast.Expr, error) {
	rb, octx, err := s.locate(ctx, req)
	if err != nil {
		return nil, err
	}
	id := rb.Key.ID()
	if octx.cs.strategies[id] != strategyFuture {
		return nil, fmt.Errorf("%s requested as a future but %s is not a production binding", rb.Key, rb.Binding.Kind())
	}
	return sel(octx.recv, octx.cs.fieldNames[id]), nil
}

func (s *state) membersInjectorExpr(ctx emitCtx, req model.DependencyRequest) (ast.Expr, error) {
	rb, octx, err := s.locate(ctx, req)
	if err != nil {
		return nil, err
	}
	name, ok := octx.cs.injectorNames[rb.Key.ID()]
	if !ok {
		return nil, fmt.Errorf("no injector method for %s on %s", rb.Key, octx.cs.res.Component.Type)
	}
	return sel(octx.recv, name), nil
}

// bindingValueExpr builds the raw construction expression for a binding,
// without memoization. The context must already be rebased onto the owner.
func (s *state) bindingValueExpr(ctx emitCtx, rb *resolve.ResolvedBinding) (ast.Expr, error) {
	switch b := rb.Binding.(type) {
	case *model.ProvisionBinding:
		return s.provisionCallExpr(ctx, b)
	case *model.InjectionBinding:
		return s.injectionLiteralExpr(ctx, b)
	case *model.MultibindingBinding:
		if b.Collection() == model.CollectionMap {
			return s.mapLiteralExpr(ctx, b)
		}
		return s.sliceLiteralExpr(ctx, b)
	case *model.OptionalBinding:
		return s.optionalExpr(ctx, b)
	default:
		return nil, fmt.Errorf("binding %s (%s) has no value expression", rb.Key, rb.Binding.Kind())
	}
}

// provisionCallExpr calls the provider function with its resolved
// arguments. Only for providers without an error result; error-returning
// providers are evaluated eagerly in the constructor.
func (s *state) provisionCallExpr(ctx emitCtx, b *model.ProvisionBinding) (ast.Expr, error) {
	args, err := s.argExprs(ctx, b.Dependencies())
	if err != nil {
		return nil, err
	}
	return call(s.fnExpr(b.Fn()), args...), nil
}

func (s *state) argExprs(ctx emitCtx, deps []model.DependencyRequest) ([]ast.Expr, error) {
	args := make([]ast.Expr, 0, len(deps))
	for _, dep := range deps {
		arg, err := s.requestExpr(ctx, dep)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// fnExpr references a provider function, qualifying it through this file's
// imports when it lives in another package.
func (s *state) fnExpr(fn model.FuncRef) ast.Expr {
	if fn.PkgPath == "" || fn.PkgPath == s.file.Package.Path {
		return ident(fn.Name)
	}
	name := s.importPkg(fn.PkgPath, path.Base(fn.PkgPath))
	return sel(ident(name), fn.Name)
}

// injectionLiteralExpr constructs an injectable struct as a composite
// literal over its injection sites, taking the address when the key is a
// pointer type.
func (s *state) injectionLiteralExpr(ctx emitCtx, b *model.InjectionBinding) (ast.Expr, error) {
	typ, err := s.typeExpr(b.Key().Type)
	if err != nil {
		return nil, err
	}

	pointer := false
	if star, ok := typ.(*ast.StarExpr); ok {
		pointer = true
		typ = star.X
	}

	lit := &ast.CompositeLit{Type: typ}
	for _, site := range b.Sites() {
		value, err := s.requestExpr(ctx, site.Request)
		if err != nil {
			return nil, err
		}
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{Key: ident(site.FieldName), Value: value})
	}

	if pointer {
		return &ast.UnaryExpr{Op: token.AND, X: lit}, nil
	}
	return lit, nil
}

// sliceLiteralExpr aggregates set contributions. Single elements fill a
// slice literal; whole-slice contributions splice in through append, in
// contribution order.
func (s *state) sliceLiteralExpr(ctx emitCtx, b *model.MultibindingBinding) (ast.Expr, error) {
	typ, err := s.typeExpr(b.Key().Type)
	if err != nil {
		return nil, err
	}

	lit := &ast.CompositeLit{Type: typ}
	expr := ast.Expr(lit)
	spliced := false

	for _, c := range b.Contributions() {
		value, err := s.requestExpr(ctx, c.Request)
		if err != nil {
			return nil, err
		}
		switch {
		case c.Elements:
			expr = &ast.CallExpr{
				Fun:      ident("append"),
				Args:     []ast.Expr{expr, value},
				Ellipsis: token.Pos(1),
			}
			spliced = true
		case !spliced:
			lit.Elts = append(lit.Elts, value)
		default:
			expr = call(ident("append"), expr, value)
		}
	}
	return expr, nil
}

// mapLiteralExpr aggregates map contributions into a map literal. Colliding
// keys were already reported during resolution; duplicates are dropped here
// to keep the literal well formed.
func (s *state) mapLiteralExpr(ctx emitCtx, b *model.MultibindingBinding) (ast.Expr, error) {
	typ, err := s.typeExpr(b.Key().Type)
	if err != nil {
		return nil, err
	}

	lit := &ast.CompositeLit{Type: typ}
	seen := make(map[string]bool, len(b.Contributions()))
	for _, c := range b.Contributions() {
		if seen[c.MapKey] {
			continue
		}
		seen[c.MapKey] = true

		value, err := s.requestExpr(ctx, c.Request)
		if err != nil {
			return nil, err
		}
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{
			Key:   &ast.BasicLit{Kind: token.STRING, Value: c.MapKey},
			Value: value,
		})
	}
	return lit, nil
}

// optionalExpr builds Present(value) or Absent[T]().
func (s *state) optionalExpr(ctx emitCtx, b *model.OptionalBinding) (ast.Expr, error) {
	wrapped, err := s.typeExpr(b.Wrapped().Type)
	if err != nil {
		return nil, err
	}
	if !b.Present() {
		return call(indexed(sel(s.handa(), "Absent"), wrapped)), nil
	}

	value, err := s.instanceExpr(ctx, b.Dependencies()[0])
	if err != nil {
		return nil, err
	}
	return call(sel(s.handa(), "Present"), value), nil
}

// boundTypeExpr is the Go type of the value a binding produces. For
// wrapper bindings this is the wrapper type, not the wrapped key's type.
func (s *state) boundTypeExpr(rb *resolve.ResolvedBinding) (ast.Expr, error) {
	if opt, ok := rb.Binding.(*model.OptionalBinding); ok {
		wrapped, err := s.typeExpr(opt.Wrapped().Type)
		if err != nil {
			return nil, err
		}
		return indexed(sel(s.handa(), "Optional"), wrapped), nil
	}
	return s.typeExpr(rb.Key.Type)
}

// resultTypeExpr is the declared type of an entry-point result for a
// request kind: the key's type under the kind's wrapper.
func (s *state) resultTypeExpr(req model.DependencyRequest) (ast.Expr, error) {
	typ, err := s.typeExpr(req.Key.Type)
	if err != nil {
		return nil, err
	}

	switch req.Kind {
	case model.RequestInstance:
		return typ, nil
	case model.RequestProvider:
		return indexed(sel(s.handa(), "Provider"), typ), nil
	case model.RequestLazy:
		return &ast.StarExpr{X: indexed(sel(s.handa(), "Lazy"), typ)}, nil
	case model.RequestProducer, model.RequestFuture:
		return &ast.StarExpr{X: indexed(sel(s.handa(), "Future"), typ)}, nil
	case model.RequestOptional:
		return indexed(sel(s.handa(), "Optional"), typ), nil
	case model.RequestMembersInjector:
		return indexed(sel(s.handa(), "MembersInjector"), typ), nil
	default:
		return nil, fmt.Errorf("request kind %s has no result type", req.Kind)
	}
}

// handa references the runtime package, importing it on first use.
func (s *state) handa() *ast.Ident {
	return ident(s.importPkg(runtimePkgPath, "handa"))
}

func strLit(v string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(v)}
}
