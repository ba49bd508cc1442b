package synth

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/kinmemodoki/handa/internal/model"
	"github.com/kinmemodoki/handa/internal/plan"
	"github.com/kinmemodoki/handa/internal/resolve"
	handastrings "github.com/kinmemodoki/handa/internal/pkg/strings"
)

// compState is the synthesis bookkeeping for one component: names and
// strategies are allocated for the whole tree first, so cross-component
// references resolve regardless of emission order.
type compState struct {
	res    *resolve.ComponentResolution
	plan   *plan.Plan
	parent *compState

	implName    string
	ctorName    string
	parentField string
	egField     string
	waitName    string

	strategies    map[string]strategy
	fieldNames    map[string]string
	injectorNames map[string]string
	// delegateVars maps cycle heads to their constructor-local placeholder
	// variables, populated while the constructor is emitted.
	delegateVars map[string]string

	shardNames  []string
	switchIDs   map[string]int
	switchOrder []*resolve.ResolvedBinding

	hasAsync   bool
	needsEgCtx bool
	ctorErr    bool
}

func typeBaseName(ref model.TypeRef) string {
	return handastrings.ToUpperCamel(keyBaseName(model.NewKey(ref)))
}

// allocate walks the component tree and fixes every generated name and
// per-binding strategy before any code is emitted.
func (s *state) allocate(res *resolve.ComponentResolution, parent *compState) error {
	cs := &compState{
		res:           res,
		plan:          s.plans[res.Component],
		parent:        parent,
		strategies:    make(map[string]strategy),
		fieldNames:    make(map[string]string),
		injectorNames: make(map[string]string),
		delegateVars:  make(map[string]string),
		switchIDs:     make(map[string]int),
	}
	if cs.plan == nil {
		return fmt.Errorf("component %s: no initialization plan", res.Component.Type)
	}

	base := typeBaseName(res.Component.Type)
	cs.implName = s.names.Get(handastrings.ToLowerCamel(base) + "Impl")
	if parent == nil {
		cs.ctorName = res.Component.CtorName
		s.names.Register(cs.ctorName)
	} else {
		cs.ctorName = s.names.Get("new" + base)
	}

	// Fields and methods share the struct's namespace; entry-point names
	// are fixed by the component interface and claim theirs first.
	members := NewNamePool()
	for _, ep := range res.Component.EntryPoints {
		members.Register(ep.Name)
	}
	if parent != nil {
		cs.parentField = members.Get("parent")
	}

	usage := usageCounts(res)
	owned := res.Owned()
	for _, rb := range owned {
		id := rb.Key.ID()
		strat := decideStrategy(rb, usage[id])
		cs.strategies[id] = strat

		if mib, ok := rb.Binding.(*model.MembersInjectionBinding); ok {
			cs.injectorNames[id] = members.Get("inject" + typeBaseName(mib.Target()))
			continue
		}

		switch strat {
		case strategyField:
			cs.fieldNames[id] = members.Get(keyBaseName(rb.Key) + "Provider")
		case strategyEager:
			name := keyBaseName(rb.Key)
			if bi, ok := rb.Binding.(*model.BoundInstanceBinding); ok && bi.ParamName() != "" {
				name = bi.ParamName()
			}
			cs.fieldNames[id] = members.Get(name)
		case strategyFuture:
			cs.fieldNames[id] = members.Get(keyBaseName(rb.Key) + "Future")
			cs.hasAsync = true
			for _, dep := range rb.Binding.Dependencies() {
				if awaitedInProducer(res, dep) {
					cs.needsEgCtx = true
				}
			}
		}

		if pb, ok := rb.Binding.(*model.ProvisionBinding); ok && strat == strategyEager && pb.Fn().ReturnsError {
			cs.ctorErr = true
		}
	}

	if cs.hasAsync {
		cs.egField = members.Get("eg")
		cs.waitName = members.Get("Wait")
	}

	if s.opts.KeysPerSwitch > 0 {
		var sharded []*resolve.ResolvedBinding
		for _, rb := range owned {
			if cs.strategies[rb.Key.ID()] == strategyField {
				sharded = append(sharded, rb)
			}
		}
		if len(sharded) > s.opts.KeysPerSwitch {
			cs.switchOrder = sharded
			for i, rb := range sharded {
				cs.switchIDs[rb.Key.ID()] = i
			}
			for n := 0; n*s.opts.KeysPerSwitch < len(sharded); n++ {
				cs.shardNames = append(cs.shardNames, s.names.Get(cs.implName+"Switch"+strconv.Itoa(n)))
			}
		}
	}

	s.comps[res.Component] = cs
	for _, child := range res.Children {
		if err := s.allocate(child, cs); err != nil {
			return err
		}
	}
	return nil
}

// emitComponent emits the implementation struct, its constructor, entry
// points, injector methods, and switch shards, then recurses into children.
func (s *state) emitComponent(cs *compState) error {
	spec := &TypeSpec{
		Name:   cs.implName,
		Doc:    fmt.Sprintf("%s implements %s.", cs.implName, cs.res.Component.Type),
		Origin: cs.res.Component.DeclaredAt,
	}

	if cs.parent != nil {
		spec.Fields = append(spec.Fields, &FieldSpec{
			Name: cs.parentField,
			Type: &ast.StarExpr{X: ident(cs.parent.implName)},
		})
	}
	if cs.hasAsync {
		egType := &ast.StarExpr{X: sel(ident(s.importPkg("golang.org/x/sync/errgroup", "errgroup")), "Group")}
		spec.Fields = append(spec.Fields, &FieldSpec{Name: cs.egField, Type: egType})
	}
	for _, rb := range cs.res.Owned() {
		field, err := s.bindingField(cs, rb)
		if err != nil {
			return err
		}
		if field != nil {
			spec.Fields = append(spec.Fields, field)
		}
	}

	for _, ep := range cs.res.Component.EntryPoints {
		method, err := s.entryMethod(cs, ep)
		if err != nil {
			return fmt.Errorf("entry point %s.%s: %w", cs.res.Component.Type, ep.Name, err)
		}
		spec.Methods = append(spec.Methods, method)
	}
	for _, rb := range cs.res.Owned() {
		mib, ok := rb.Binding.(*model.MembersInjectionBinding)
		if !ok {
			continue
		}
		method, err := s.injectorMethod(cs, rb, mib)
		if err != nil {
			return err
		}
		spec.Methods = append(spec.Methods, method)
	}
	if cs.hasAsync {
		spec.Methods = append(spec.Methods, s.waitMethod(cs))
	}

	ctor, err := s.constructor(cs)
	if err != nil {
		return fmt.Errorf("component %s: %w", cs.res.Component.Type, err)
	}

	s.file.Types = append(s.file.Types, spec)
	s.file.Funcs = append(s.file.Funcs, ctor)

	shards, err := s.switchShards(cs)
	if err != nil {
		return err
	}
	s.file.Types = append(s.file.Types, shards...)

	for _, child := range cs.res.Children {
		if err := s.emitComponent(s.comps[child.Component]); err != nil {
			return err
		}
	}
	return nil
}

// bindingField is the struct field backing a binding, nil for strategies
// that do not materialize one.
func (s *state) bindingField(cs *compState, rb *resolve.ResolvedBinding) (*FieldSpec, error) {
	id := rb.Key.ID()
	switch cs.strategies[id] {
	case strategyField:
		typ, err := s.boundTypeExpr(rb)
		if err != nil {
			return nil, err
		}
		return &FieldSpec{Name: cs.fieldNames[id], Type: indexed(sel(s.handa(), "Provider"), typ)}, nil
	case strategyEager:
		typ, err := s.boundTypeExpr(rb)
		if err != nil {
			return nil, err
		}
		return &FieldSpec{Name: cs.fieldNames[id], Type: typ}, nil
	case strategyFuture:
		typ, err := s.typeExpr(rb.Key.Type)
		if err != nil {
			return nil, err
		}
		return &FieldSpec{Name: cs.fieldNames[id], Type: &ast.StarExpr{X: indexed(sel(s.handa(), "Future"), typ)}}, nil
	default:
		return nil, nil
	}
}

// constructor builds the component's constructor: bound instances and the
// parent land in the composite literal, then the plan's steps initialize
// binding fields in dependency order.
func (s *state) constructor(cs *compState) (*FuncSpec, error) {
	locals := NewNamePool()
	locals.Register("err")
	cName := locals.Get("c")

	fn := &FuncSpec{Name: cs.ctorName}
	if cs.parent == nil {
		fn.Doc = fmt.Sprintf("%s assembles the %s dependency graph.", cs.ctorName, cs.res.Component.Type)
	}

	var lit ast.CompositeLit
	lit.Type = ident(cs.implName)

	if cs.hasAsync {
		ctxType := sel(ident(s.importPkg("context", "context")), "Context")
		fn.Params = append(fn.Params, &FieldSpec{Name: locals.Get("ctx"), Type: ctxType})
	}
	if cs.parent != nil {
		pName := locals.Get("parent")
		fn.Params = append(fn.Params, &FieldSpec{Name: pName, Type: &ast.StarExpr{X: ident(cs.parent.implName)}})
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{Key: ident(cs.parentField), Value: ident(pName)})
	}
	for _, bi := range cs.res.Component.BoundInstances {
		id := bi.Key().ID()
		typ, err := s.typeExpr(bi.Key().Type)
		if err != nil {
			return nil, err
		}
		pName := locals.Get(cs.fieldNames[id])
		fn.Params = append(fn.Params, &FieldSpec{Name: pName, Type: typ})
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{Key: ident(cs.fieldNames[id]), Value: ident(pName)})
	}

	resultType, err := s.typeExpr(cs.res.Component.Type)
	if err != nil {
		return nil, err
	}
	fn.Results = append(fn.Results, &FieldSpec{Type: resultType})
	if cs.ctorErr {
		fn.Results = append(fn.Results, &FieldSpec{Type: ident("error")})
	}

	var body []ast.Stmt
	egName, egCtxName := "", "_"
	if cs.hasAsync {
		egName = locals.Get("eg")
		if cs.needsEgCtx {
			egCtxName = locals.Get("egCtx")
		}
		body = append(body, &ast.AssignStmt{
			Lhs: []ast.Expr{ident(egName), ident(egCtxName)},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{call(sel(ident(s.importPkg("golang.org/x/sync/errgroup", "errgroup")), "WithContext"), ident("ctx"))},
		})
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{Key: ident(cs.egField), Value: ident(egName)})
	}

	body = append(body, define(ident(cName), &ast.UnaryExpr{Op: token.AND, X: &lit}))

	recv := ident(cName)

	// Future fields exist before any initializer runs: a binding may read a
	// future whose producer the plan schedules later.
	for _, rb := range cs.res.Owned() {
		id := rb.Key.ID()
		if cs.strategies[id] != strategyFuture {
			continue
		}
		typ, err := s.typeExpr(rb.Key.Type)
		if err != nil {
			return nil, err
		}
		body = append(body, assign(sel(recv, cs.fieldNames[id]), call(indexed(sel(s.handa(), "NewFuture"), typ))))
	}

	for _, step := range cs.plan.Steps {
		stmts, err := s.ctorStep(cs, locals, recv, egName, egCtxName, step)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", step.Binding.Key, err)
		}
		body = append(body, stmts...)
	}

	results := []ast.Expr{ident(cName)}
	if cs.ctorErr {
		results = append(results, ident("nil"))
	}
	body = append(body, returnStmt(results...))
	fn.Body = body
	return fn, nil
}

func (s *state) ctorStep(cs *compState, locals *NamePool, recv ast.Expr, egName, egCtxName string, step plan.Step) ([]ast.Stmt, error) {
	rb := step.Binding
	id := rb.Key.ID()

	switch step.Kind {
	case plan.StepDelegateDecl:
		typ, err := s.boundTypeExpr(rb)
		if err != nil {
			return nil, err
		}
		v := locals.Get(keyBaseName(rb.Key) + "Delegate")
		cs.delegateVars[id] = v
		return []ast.Stmt{define(ident(v), call(indexed(sel(s.handa(), "NewDelegate"), typ)))}, nil

	case plan.StepBackpatch:
		v, ok := cs.delegateVars[id]
		if !ok {
			return nil, fmt.Errorf("backpatch without a declared delegate")
		}
		p, err := s.ownProviderExpr(cs, recv, rb)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{exprStmt(call(sel(ident(v), "SetDelegate"), p))}, nil

	case plan.StepInit:
		return s.initStep(cs, locals, recv, egName, egCtxName, rb)

	default:
		return nil, fmt.Errorf("unknown step kind %d", step.Kind)
	}
}

// ownProviderExpr is the provider for a binding's own backing field, used
// when back-patching its delegate.
func (s *state) ownProviderExpr(cs *compState, recv ast.Expr, rb *resolve.ResolvedBinding) (ast.Expr, error) {
	id := rb.Key.ID()
	field := sel(recv, cs.fieldNames[id])
	switch cs.strategies[id] {
	case strategyField:
		return field, nil
	case strategyEager:
		return s.providerClosure(rb, field)
	default:
		return nil, fmt.Errorf("strategy cannot back-patch a delegate")
	}
}

func (s *state) initStep(cs *compState, locals *NamePool, recv ast.Expr, egName, egCtxName string, rb *resolve.ResolvedBinding) ([]ast.Stmt, error) {
	id := rb.Key.ID()
	ctx := emitCtx{cs: cs, recv: recv, inCtor: true}

	switch cs.strategies[id] {
	case strategyField:
		raw, err := s.fieldProviderExpr(cs, recv, rb)
		if err != nil {
			return nil, err
		}
		if scope := rb.Binding.Scope(); scope != "" {
			memo := "DoubleCheck"
			if s.singleCheck(scope) {
				memo = "SingleCheck"
			}
			raw = call(sel(s.handa(), memo), raw)
		}
		return []ast.Stmt{assign(sel(recv, cs.fieldNames[id]), raw)}, nil

	case strategyEager:
		if _, ok := rb.Binding.(*model.BoundInstanceBinding); ok {
			// Assigned in the composite literal.
			return nil, nil
		}
		pb, ok := rb.Binding.(*model.ProvisionBinding)
		if !ok {
			return nil, fmt.Errorf("eager strategy on %s binding", rb.Binding.Kind())
		}
		args, err := s.argExprs(ctx, pb.Dependencies())
		if err != nil {
			return nil, err
		}
		v := locals.Get(keyBaseName(rb.Key))
		return []ast.Stmt{
			&ast.AssignStmt{
				Lhs: []ast.Expr{ident(v), ident("err")},
				Tok: token.DEFINE,
				Rhs: []ast.Expr{call(s.fnExpr(pb.Fn()), args...)},
			},
			errCheckReturn(),
			assign(sel(recv, cs.fieldNames[id]), ident(v)),
		}, nil

	case strategyFuture:
		return s.futureInitStep(cs, recv, egName, egCtxName, rb)

	default:
		// Inline, alias, and method-only bindings need no initialization.
		return nil, nil
	}
}

// fieldProviderExpr is the unmemoized provider stored in a binding's field:
// either a closure over the construction expression, or a switching-shard
// adapter when the component's providers are sharded.
func (s *state) fieldProviderExpr(cs *compState, recv ast.Expr, rb *resolve.ResolvedBinding) (ast.Expr, error) {
	id := rb.Key.ID()
	if caseID, ok := cs.switchIDs[id]; ok {
		typ, err := s.boundTypeExpr(rb)
		if err != nil {
			return nil, err
		}
		shard := cs.shardNames[caseID/s.opts.KeysPerSwitch]
		get := sel(&ast.ParenExpr{X: &ast.UnaryExpr{Op: token.AND, X: &ast.CompositeLit{
			Type: ident(shard),
			Elts: []ast.Expr{
				&ast.KeyValueExpr{Key: ident("c"), Value: recv},
				&ast.KeyValueExpr{Key: ident("id"), Value: intLit(caseID)},
			},
		}}}, "Get")
		return call(indexed(sel(s.handa(), "FromSwitch"), typ), get), nil
	}

	value, err := s.bindingValueExpr(emitCtx{cs: cs, recv: recv, inCtor: true}, rb)
	if err != nil {
		return nil, err
	}
	return s.providerClosure(rb, value)
}

// futureInitStep schedules a production function on the errgroup. The
// binding's Future is allocated by the constructor before any step runs;
// the goroutine resolves it, with Fail on a production error so waiters
// are released. Produced dependencies are awaited inside the goroutine so
// only the goroutine blocks.
func (s *state) futureInitStep(cs *compState, recv ast.Expr, egName, egCtxName string, rb *resolve.ResolvedBinding) ([]ast.Stmt, error) {
	pb, ok := rb.Binding.(*model.ProductionBinding)
	if !ok {
		return nil, fmt.Errorf("future strategy on %s binding", rb.Binding.Kind())
	}
	id := rb.Key.ID()
	field := sel(recv, cs.fieldNames[id])

	goLocals := NewNamePool()
	goLocals.Register("err")
	ctx := emitCtx{cs: cs, recv: recv}

	var goBody []ast.Stmt
	args := make([]ast.Expr, 0, len(pb.Dependencies()))
	for _, dep := range pb.Dependencies() {
		if !awaitedInProducer(cs.res, dep) {
			arg, err := s.requestExpr(ctx, dep)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}
		dep.Kind = model.RequestFuture

		future, err := s.futureExpr(ctx, dep)
		if err != nil {
			return nil, err
		}
		v := goLocals.Get(keyBaseName(dep.Key))
		goBody = append(goBody,
			&ast.AssignStmt{
				Lhs: []ast.Expr{ident(v), ident("err")},
				Tok: token.DEFINE,
				Rhs: []ast.Expr{call(sel(future, "Wait"), ident(egCtxName))},
			},
			errCheckFail(field),
		)
		args = append(args, ident(v))
	}

	produce := call(s.fnExpr(pb.Fn()), args...)
	if pb.Fn().ReturnsError {
		v := goLocals.Get(keyBaseName(rb.Key))
		goBody = append(goBody,
			&ast.AssignStmt{
				Lhs: []ast.Expr{ident(v), ident("err")},
				Tok: token.DEFINE,
				Rhs: []ast.Expr{produce},
			},
			errCheckFail(field),
			exprStmt(call(sel(field, "Complete"), ident(v))),
		)
	} else {
		goBody = append(goBody, exprStmt(call(sel(field, "Complete"), produce)))
	}
	goBody = append(goBody, returnStmt(ident("nil")))

	goroutine := &ast.FuncLit{
		Type: &ast.FuncType{
			Params:  &ast.FieldList{},
			Results: &ast.FieldList{List: []*ast.Field{{Type: ident("error")}}},
		},
		Body: &ast.BlockStmt{List: goBody},
	}

	return []ast.Stmt{exprStmt(call(sel(ident(egName), "Go"), goroutine))}, nil
}

// entryMethod emits one of the component interface's methods.
func (s *state) entryMethod(cs *compState, ep model.EntryPoint) (*FuncSpec, error) {
	recv := &FieldSpec{Name: "c", Type: &ast.StarExpr{X: ident(cs.implName)}}
	ctx := emitCtx{cs: cs, recv: ident("c")}

	switch {
	case ep.Child != nil:
		return s.creatorMethod(cs, ep)

	case ep.MembersTarget != nil:
		target, err := s.pointerTypeExpr(*ep.MembersTarget)
		if err != nil {
			return nil, err
		}
		injector, err := s.membersInjectorExpr(ctx, ep.Request)
		if err != nil {
			return nil, err
		}
		return &FuncSpec{
			Name:   ep.Name,
			Recv:   recv,
			Params: []*FieldSpec{{Name: "target", Type: target}},
			Body:   []ast.Stmt{exprStmt(call(injector, ident("target")))},
		}, nil

	default:
		result, err := s.resultTypeExpr(ep.Request)
		if err != nil {
			return nil, err
		}
		value, err := s.requestExpr(ctx, ep.Request)
		if err != nil {
			return nil, err
		}
		return &FuncSpec{
			Name:    ep.Name,
			Recv:    recv,
			Results: []*FieldSpec{{Type: result}},
			Body:    []ast.Stmt{returnStmt(value)},
		}, nil
	}
}

// creatorMethod emits a subcomponent-creator entry point: it forwards the
// declared bound instances, plus the parent, to the child's constructor.
func (s *state) creatorMethod(cs *compState, ep model.EntryPoint) (*FuncSpec, error) {
	child := s.comps[ep.Child]
	if child == nil {
		return nil, fmt.Errorf("subcomponent %s: not synthesized", ep.Child.Type)
	}

	fn := &FuncSpec{
		Name: ep.Name,
		Recv: &FieldSpec{Name: "c", Type: &ast.StarExpr{X: ident(cs.implName)}},
	}

	args := make([]ast.Expr, 0, len(ep.Child.BoundInstances)+2)
	if child.hasAsync {
		ctxType := sel(ident(s.importPkg("context", "context")), "Context")
		fn.Params = append(fn.Params, &FieldSpec{Name: "ctx", Type: ctxType})
		args = append(args, ident("ctx"))
	}
	args = append(args, ident("c"))

	params := NewNamePool()
	params.Register("c")
	params.Register("ctx")
	for _, bi := range ep.Child.BoundInstances {
		typ, err := s.typeExpr(bi.Key().Type)
		if err != nil {
			return nil, err
		}
		name := bi.ParamName()
		if name == "" {
			name = keyBaseName(bi.Key())
		}
		name = params.Get(name)
		fn.Params = append(fn.Params, &FieldSpec{Name: name, Type: typ})
		args = append(args, ident(name))
	}

	result, err := s.typeExpr(ep.Child.Type)
	if err != nil {
		return nil, err
	}
	fn.Results = append(fn.Results, &FieldSpec{Type: result})
	if child.ctorErr {
		fn.Results = append(fn.Results, &FieldSpec{Type: ident("error")})
	}

	fn.Body = []ast.Stmt{returnStmt(call(ident(child.ctorName), args...))}
	return fn, nil
}

// injectorMethod fills the tagged fields of an existing value, injecting
// the embedded struct's members first when one participates.
func (s *state) injectorMethod(cs *compState, rb *resolve.ResolvedBinding, mib *model.MembersInjectionBinding) (*FuncSpec, error) {
	target, err := s.pointerTypeExpr(mib.Target())
	if err != nil {
		return nil, err
	}

	ctx := emitCtx{cs: cs, recv: ident("c")}
	var body []ast.Stmt

	if super := mib.Supertype(); super != nil {
		injector, err := s.membersInjectorExpr(ctx, *super)
		if err != nil {
			return nil, err
		}
		fieldName := typeBaseName(super.Key.Type)
		arg := ast.Expr(sel(ident("target"), fieldName))
		if !isPointerCanonical(super.Key.Type.Canonical) {
			arg = &ast.UnaryExpr{Op: token.AND, X: arg}
		}
		body = append(body, exprStmt(call(injector, arg)))
	}

	for _, site := range mib.Sites() {
		value, err := s.requestExpr(ctx, site.Request)
		if err != nil {
			return nil, err
		}
		body = append(body, assign(sel(ident("target"), site.FieldName), value))
	}

	return &FuncSpec{
		Name:   cs.injectorNames[rb.Key.ID()],
		Recv:   &FieldSpec{Name: "c", Type: &ast.StarExpr{X: ident(cs.implName)}},
		Params: []*FieldSpec{{Name: "target", Type: target}},
		Body:   body,
	}, nil
}

// waitMethod blocks until every production binding of the component has
// completed, surfacing the first production error.
func (s *state) waitMethod(cs *compState) *FuncSpec {
	return &FuncSpec{
		Name:    cs.waitName,
		Recv:    &FieldSpec{Name: "c", Type: &ast.StarExpr{X: ident(cs.implName)}},
		Results: []*FieldSpec{{Type: ident("error")}},
		Body:    []ast.Stmt{returnStmt(call(sel(sel(ident("c"), cs.egField), "Wait")))},
		Doc:     fmt.Sprintf("%s blocks until every async binding has completed.", cs.waitName),
	}
}

// switchShards emits the shared dispatch types for a sharded component.
// Each shard handles KeysPerSwitch consecutive binding ids.
func (s *state) switchShards(cs *compState) ([]*TypeSpec, error) {
	if len(cs.shardNames) == 0 {
		return nil, nil
	}

	ctx := emitCtx{cs: cs, recv: sel(ident("s"), "c")}
	shards := make([]*TypeSpec, 0, len(cs.shardNames))
	for n, name := range cs.shardNames {
		lo := n * s.opts.KeysPerSwitch
		hi := min(lo+s.opts.KeysPerSwitch, len(cs.switchOrder))

		var cases []ast.Stmt
		for i := lo; i < hi; i++ {
			rb := cs.switchOrder[i]
			value, err := s.bindingValueExpr(ctx, rb)
			if err != nil {
				return nil, fmt.Errorf("binding %s: %w", rb.Key, err)
			}
			cases = append(cases, &ast.CaseClause{
				List: []ast.Expr{intLit(i)},
				Body: []ast.Stmt{returnStmt(value)},
			})
		}

		shards = append(shards, &TypeSpec{
			Name: name,
			Doc:  fmt.Sprintf("%s dispatches providers %d through %d of %s.", name, lo, hi-1, cs.implName),
			Fields: []*FieldSpec{
				{Name: "c", Type: &ast.StarExpr{X: ident(cs.implName)}},
				{Name: "id", Type: ident("int")},
			},
			Methods: []*FuncSpec{{
				Name:    "Get",
				Recv:    &FieldSpec{Name: "s", Type: &ast.StarExpr{X: ident(name)}},
				Results: []*FieldSpec{{Type: ident("any")}},
				Body: []ast.Stmt{
					&ast.SwitchStmt{
						Tag:  sel(ident("s"), "id"),
						Body: &ast.BlockStmt{List: cases},
					},
					exprStmt(call(ident("panic"), strLit("unknown provider id"))),
				},
			}},
			Origin: cs.res.Component.DeclaredAt,
		})
	}
	return shards, nil
}

// pointerTypeExpr renders a type as a pointer, leaving it alone when it
// already is one.
func (s *state) pointerTypeExpr(ref model.TypeRef) (ast.Expr, error) {
	typ, err := s.typeExpr(ref)
	if err != nil {
		return nil, err
	}
	if _, ok := typ.(*ast.StarExpr); ok {
		return typ, nil
	}
	return &ast.StarExpr{X: typ}, nil
}

// awaitedInProducer reports whether a production function parameter must be
// awaited inside the goroutine: either an explicitly produced request, or a
// plain instance request whose binding turned out to be async.
func awaitedInProducer(res *resolve.ComponentResolution, dep model.DependencyRequest) bool {
	if dep.Kind == model.RequestProduced {
		return true
	}
	if dep.Kind != model.RequestInstance {
		return false
	}
	rb, ok := res.Lookup(resolve.TableKey(dep))
	if !ok {
		return false
	}
	_, isProduction := rb.Binding.(*model.ProductionBinding)
	return isProduction
}

func isPointerCanonical(canonical string) bool {
	return len(canonical) > 0 && canonical[0] == '*'
}

func intLit(v int) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(v)}
}

func errCheckReturn() ast.Stmt {
	return &ast.IfStmt{
		Cond: &ast.BinaryExpr{X: ident("err"), Op: token.NEQ, Y: ident("nil")},
		Body: &ast.BlockStmt{List: []ast.Stmt{returnStmt(ident("nil"), ident("err"))}},
	}
}

// errCheckFail fails the goroutine's own future before bailing out, so
// waiters on it do not block until their context is done.
func errCheckFail(field ast.Expr) ast.Stmt {
	return &ast.IfStmt{
		Cond: &ast.BinaryExpr{X: ident("err"), Op: token.NEQ, Y: ident("nil")},
		Body: &ast.BlockStmt{List: []ast.Stmt{
			exprStmt(call(sel(field, "Fail"), ident("err"))),
			returnStmt(ident("err")),
		}},
	}
}
