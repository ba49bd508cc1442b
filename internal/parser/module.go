package parser

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"github.com/kinmemodoki/handa/internal/model"
	handastrings "github.com/kinmemodoki/handa/internal/pkg/strings"
)

// moduleDecl is a parsed Module call. Bound instances are kept apart from
// ordinary bindings because they surface as constructor parameters of the
// installing component, not module locals.
type moduleDecl struct {
	desc      *model.ModuleDescriptor
	instances []*model.BoundInstanceBinding
}

// moduleFor resolves an Install argument to its module declaration,
// following package-level variables to their initializers. Parsed modules
// are memoized so installing one module into several components shares the
// descriptor.
func (e *extractor) moduleFor(expr ast.Expr) (*moduleDecl, error) {
	if ident, ok := expr.(*ast.Ident); ok {
		obj := e.info.Uses[ident]
		if obj == nil {
			return nil, fmt.Errorf("module reference %s does not resolve", ident.Name)
		}
		if mod, ok := e.modules[obj]; ok {
			return mod, nil
		}

		init, ok := e.varInit[obj]
		if !ok {
			return nil, fmt.Errorf("module %s: initializer not found in package", ident.Name)
		}
		mod, err := e.moduleFor(init)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", ident.Name, err)
		}
		e.modules[obj] = mod
		return mod, nil
	}

	call, ok := expr.(*ast.CallExpr)
	if !ok || e.markerName(call) != "Module" {
		return nil, fmt.Errorf("expression at %s is not a Module declaration", e.fset.Position(expr.Pos()))
	}
	return e.parseModule(call)
}

func (e *extractor) parseModule(call *ast.CallExpr) (*moduleDecl, error) {
	if len(call.Args) < 1 {
		return nil, fmt.Errorf("module declaration requires a name")
	}
	name, err := e.stringArg(call.Args[0])
	if err != nil {
		return nil, fmt.Errorf("module name: %w", err)
	}

	mod := &moduleDecl{
		desc: &model.ModuleDescriptor{
			Name:       name,
			DeclaredAt: e.declRef(call.Pos(), "module "+name),
		},
	}

	for _, arg := range call.Args[1:] {
		if err := e.parseBindingArg(arg, mod, wrapState{}); err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
	}
	return mod, nil
}

// wrapState accumulates the modifier wrappers around a Provide call while
// the binding expression chain is unwound.
type wrapState struct {
	scope        string
	qualifier    string
	nilable      bool
	async        bool
	bindTo       *model.TypeRef
	contribution model.ContributionKind
	mapKey       string
	mapKeyType   types.Type
}

// parseBindingArg lowers one binding expression of a Module call. Wrapper
// markers recurse with updated state; Provide terminates the chain.
func (e *extractor) parseBindingArg(expr ast.Expr, mod *moduleDecl, wrap wrapState) error {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return fmt.Errorf("binding at %s is not a marker call", e.fset.Position(expr.Pos()))
	}

	switch name := e.markerName(call); name {
	case "Provide":
		return e.finishProvision(call, mod, wrap)

	case "Scoped":
		scope, err := e.stringArg(call.Args[0])
		if err != nil {
			return err
		}
		wrap.scope = scope
		return e.parseBindingArg(call.Args[1], mod, wrap)

	case "Singleton":
		wrap.scope = "singleton"
		return e.parseBindingArg(call.Args[0], mod, wrap)

	case "Named":
		qualifier, err := e.stringArg(call.Args[0])
		if err != nil {
			return err
		}
		wrap.qualifier = qualifier
		return e.parseBindingArg(call.Args[1], mod, wrap)

	case "Bind":
		args := typeArgs(call)
		if len(args) == 0 {
			return fmt.Errorf("Bind at %s requires an explicit interface type argument", e.fset.Position(call.Pos()))
		}
		ref, err := e.typeRef(e.info.TypeOf(args[0]), args[0], args[0].Pos())
		if err != nil {
			return err
		}
		wrap.bindTo = &ref
		return e.parseBindingArg(call.Args[0], mod, wrap)

	case "IntoSet":
		wrap.contribution = model.ContributionSetElement
		return e.parseBindingArg(call.Args[0], mod, wrap)

	case "ElementsIntoSet":
		wrap.contribution = model.ContributionSetValues
		return e.parseBindingArg(call.Args[0], mod, wrap)

	case "IntoMap":
		tv, ok := e.info.Types[call.Args[0]]
		if !ok || tv.Value == nil {
			return fmt.Errorf("IntoMap at %s requires a constant key", e.fset.Position(call.Pos()))
		}
		wrap.contribution = model.ContributionMapEntry
		wrap.mapKey = tv.Value.ExactString()
		wrap.mapKeyType = tv.Type
		return e.parseBindingArg(call.Args[1], mod, wrap)

	case "Async":
		wrap.async = true
		return e.parseBindingArg(call.Args[0], mod, wrap)

	case "Nilable":
		wrap.nilable = true
		return e.parseBindingArg(call.Args[0], mod, wrap)

	case "OptionalOf":
		args := typeArgs(call)
		if len(args) == 0 {
			return fmt.Errorf("OptionalOf at %s requires a type argument", e.fset.Position(call.Pos()))
		}
		ref, err := e.typeRef(e.info.TypeOf(args[0]), args[0], args[0].Pos())
		if err != nil {
			return err
		}
		key := model.NewKey(ref)
		if wrap.qualifier != "" {
			key = model.QualifiedKey(ref, wrap.qualifier)
		}
		mod.desc.OptionalKeys = append(mod.desc.OptionalKeys, key)
		return nil

	case "BindInstance":
		args := typeArgs(call)
		if len(args) == 0 {
			return fmt.Errorf("BindInstance at %s requires a type argument", e.fset.Position(call.Pos()))
		}
		ref, err := e.typeRef(e.info.TypeOf(args[0]), args[0], args[0].Pos())
		if err != nil {
			return err
		}
		key := model.NewKey(ref)
		if wrap.qualifier != "" {
			key = model.QualifiedKey(ref, wrap.qualifier)
		}
		param := handastrings.ToLowerCamel(handastrings.Mangle(baseOf(ref.Canonical)))
		mod.instances = append(mod.instances,
			model.NewBoundInstanceBinding(key, param, e.declRef(call.Pos(), "bound instance "+key.String())))
		return nil

	default:
		return fmt.Errorf("unsupported binding marker %q at %s", name, e.fset.Position(call.Pos()))
	}
}

// finishProvision builds the provision (or production) binding a Provide
// chain terminates in, plus the delegate and multibinding records its
// wrappers imply.
func (e *extractor) finishProvision(call *ast.CallExpr, mod *moduleDecl, wrap wrapState) error {
	if len(call.Args) != 1 {
		return fmt.Errorf("Provide at %s takes exactly one function", e.fset.Position(call.Pos()))
	}

	fn, err := e.funcRef(call.Args[0])
	if err != nil {
		return err
	}
	site := e.declRef(call.Pos(), "provider "+fn.Name)

	provided, returnsError, err := e.providedType(fn.Sig, call.Args[0].Pos())
	if err != nil {
		return fmt.Errorf("provider %s: %w", fn.Name, err)
	}
	fn.ReturnsError = returnsError

	params := make([]model.DependencyRequest, 0, fn.Sig.Params().Len())
	for i := 0; i < fn.Sig.Params().Len(); i++ {
		p := fn.Sig.Params().At(i)
		req, err := e.requestForType(p.Type(), e.declRef(call.Pos(), fmt.Sprintf("provider %s param %s", fn.Name, p.Name())))
		if err != nil {
			return err
		}
		params = append(params, req)
	}

	key := model.NewKey(provided)
	if wrap.qualifier != "" {
		key = model.QualifiedKey(provided, wrap.qualifier)
	}

	if wrap.contribution != model.ContributionNone {
		return e.finishContribution(mod, wrap, key, fn, params, site)
	}

	binding, err := model.NewProvisionBinding(key, wrap.scope, fn, params, wrap.nilable, mod.desc.Name, site)
	if err != nil {
		return err
	}
	if wrap.async {
		mod.desc.Bindings = append(mod.desc.Bindings, model.NewProductionBinding(binding))
	} else {
		mod.desc.Bindings = append(mod.desc.Bindings, binding)
	}

	if wrap.bindTo != nil {
		aliasKey := model.NewKey(*wrap.bindTo)
		if wrap.qualifier != "" {
			aliasKey = model.QualifiedKey(*wrap.bindTo, wrap.qualifier)
		}
		delegate, err := model.NewDelegateBinding(aliasKey, key, site)
		if err != nil {
			return err
		}
		mod.desc.Bindings = append(mod.desc.Bindings, delegate)
	}
	return nil
}

// finishContribution registers a multibinding contribution: the element
// provider binds under a contribution-tagged key so same-typed elements do
// not collide with each other or with an ordinary binding of the type.
func (e *extractor) finishContribution(mod *moduleDecl, wrap wrapState, key model.Key, fn model.FuncRef, params []model.DependencyRequest, site model.DeclarationRef) error {
	if wrap.async {
		return fmt.Errorf("contribution at %s: async providers cannot contribute to collections", site)
	}
	if wrap.bindTo != nil {
		return fmt.Errorf("contribution at %s: Bind cannot wrap a collection contribution", site)
	}

	elemKey := key.WithContribution(wrap.contribution)
	ordinal := strconv.Itoa(len(mod.desc.Contributions))
	elemKey.Qualifier = &model.AnnotationRef{
		Name:    qualifierName(key),
		Members: map[string]string{"element": ordinal},
	}

	var collType types.Type
	switch wrap.contribution {
	case model.ContributionSetElement:
		collType = types.NewSlice(key.Type.Type)
	case model.ContributionSetValues:
		if _, ok := key.Type.Type.Underlying().(*types.Slice); !ok {
			return fmt.Errorf("contribution at %s: ElementsIntoSet provider must return a slice", site)
		}
		collType = key.Type.Type
	case model.ContributionMapEntry:
		if wrap.mapKeyType == nil {
			return fmt.Errorf("contribution at %s: map key type unresolved", site)
		}
		collType = types.NewMap(types.Default(wrap.mapKeyType), key.Type.Type)
	}

	collRef, err := typeRefAt(collType, site.Pos)
	if err != nil {
		return err
	}

	binding, err := model.NewProvisionBinding(elemKey, wrap.scope, fn, params, wrap.nilable, mod.desc.Name, site)
	if err != nil {
		return err
	}
	mod.desc.Bindings = append(mod.desc.Bindings, binding)

	mod.desc.Contributions = append(mod.desc.Contributions, &model.MultibindingContribution{
		CollectionKey: model.NewKey(collRef),
		MapKey:        wrap.mapKey,
		Elements:      wrap.contribution == model.ContributionSetValues,
		Request: model.DependencyRequest{
			Key:     elemKey,
			Kind:    model.RequestInstance,
			Site:    site,
			Nilable: canBeNil(key.Type.Type),
		},
		DeclaredAt: site,
	})
	return nil
}

// funcRef resolves a provider argument, which must name a declared
// function, to a callable reference.
func (e *extractor) funcRef(expr ast.Expr) (model.FuncRef, error) {
	var name *ast.Ident
	switch f := expr.(type) {
	case *ast.Ident:
		name = f
	case *ast.SelectorExpr:
		name = f.Sel
	default:
		return model.FuncRef{}, fmt.Errorf("provider at %s must be a named function", e.fset.Position(expr.Pos()))
	}

	obj, ok := e.info.Uses[name].(*types.Func)
	if !ok {
		return model.FuncRef{}, fmt.Errorf("provider %s at %s does not resolve to a function", name.Name, e.fset.Position(expr.Pos()))
	}

	ref := model.FuncRef{
		Name: obj.Name(),
		Expr: expr,
		Sig:  obj.Type().(*types.Signature),
	}
	if obj.Pkg() != nil {
		ref.PkgPath = obj.Pkg().Path()
	}
	return ref, nil
}

// providedType extracts the single non-error result of a provider
// signature.
func (e *extractor) providedType(sig *types.Signature, pos token.Pos) (model.TypeRef, bool, error) {
	var provided types.Type
	returnsError := false
	for i := 0; i < sig.Results().Len(); i++ {
		t := sig.Results().At(i).Type()
		if isErrorType(t) {
			returnsError = true
			continue
		}
		if provided != nil {
			return model.TypeRef{}, false, fmt.Errorf("more than one non-error result")
		}
		provided = t
	}
	if provided == nil {
		return model.TypeRef{}, false, fmt.Errorf("no non-error result")
	}

	ref, err := e.typeRef(provided, nil, pos)
	return ref, returnsError, err
}

func qualifierName(key model.Key) string {
	if key.Qualifier != nil {
		return key.Qualifier.Name
	}
	return "contribution"
}

func baseOf(canonical string) string {
	for i := len(canonical) - 1; i >= 0; i-- {
		if canonical[i] == '.' || canonical[i] == '/' {
			return canonical[i+1:]
		}
	}
	return canonical
}
