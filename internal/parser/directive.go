package parser

import (
	"fmt"
	"go/ast"
	"go/types"

	"github.com/kinmemodoki/handa/internal/model"
)

// parseComponent lowers a Component or Child marker call to a component
// descriptor, recursing into Child options.
func (e *extractor) parseComponent(call *ast.CallExpr, parent *model.ComponentDescriptor) (*model.ComponentDescriptor, error) {
	args := typeArgs(call)
	if len(args) != 1 {
		return nil, fmt.Errorf("component declaration requires exactly one type argument")
	}

	ifaceType := e.info.TypeOf(args[0])
	ref, err := e.typeRef(ifaceType, args[0], args[0].Pos())
	if err != nil {
		return nil, err
	}
	if _, ok := ifaceType.Underlying().(*types.Interface); !ok {
		return nil, fmt.Errorf("component type %s is not an interface", ref)
	}

	if len(call.Args) < 1 {
		return nil, fmt.Errorf("component %s: missing constructor name", ref)
	}
	ctor, err := e.stringArg(call.Args[0])
	if err != nil {
		return nil, fmt.Errorf("component %s constructor name: %w", ref, err)
	}

	comp := &model.ComponentDescriptor{
		Type:       ref,
		CtorName:   ctor,
		Parent:     parent,
		DeclaredAt: e.declRef(call.Pos(), "component "+ctor),
	}

	for _, opt := range call.Args[1:] {
		optCall, ok := opt.(*ast.CallExpr)
		if !ok {
			return nil, fmt.Errorf("component %s: option at %s is not a marker call", ref, e.fset.Position(opt.Pos()))
		}

		switch name := e.markerName(optCall); name {
		case "InScope":
			scope, err := e.stringArg(optCall.Args[0])
			if err != nil {
				return nil, err
			}
			comp.Scopes = append(comp.Scopes, scope)

		case "Install":
			for _, modExpr := range optCall.Args {
				mod, err := e.moduleFor(modExpr)
				if err != nil {
					return nil, fmt.Errorf("component %s: %w", ref, err)
				}
				comp.Modules = append(comp.Modules, mod.desc)
				comp.BoundInstances = append(comp.BoundInstances, mod.instances...)
			}

		case "Child":
			child, err := e.parseComponent(optCall, comp)
			if err != nil {
				return nil, err
			}
			comp.Children = append(comp.Children, child)

		default:
			return nil, fmt.Errorf("component %s: unsupported option %q at %s", ref, name, e.fset.Position(opt.Pos()))
		}
	}

	if err := e.collectEntryPoints(comp, ifaceType); err != nil {
		return nil, fmt.Errorf("component %s: %w", ref, err)
	}
	return comp, nil
}

// collectEntryPoints derives entry points from the component interface's
// method set. Result shape selects the request kind; a single-pointer-param
// void method is members injection; a result matching a declared child's
// interface is that child's creator.
func (e *extractor) collectEntryPoints(comp *model.ComponentDescriptor, ifaceType types.Type) error {
	iface := ifaceType.Underlying().(*types.Interface)

	for i := 0; i < iface.NumMethods(); i++ {
		m := iface.Method(i)
		sig := m.Type().(*types.Signature)
		site := e.declRef(m.Pos(), fmt.Sprintf("entry point %s.%s", comp.Type, m.Name()))

		ep := model.EntryPoint{Name: m.Name(), DeclaredAt: site}

		switch {
		case sig.Results().Len() == 0 && sig.Params().Len() == 1:
			ptr, ok := sig.Params().At(0).Type().(*types.Pointer)
			if !ok {
				return fmt.Errorf("entry point %s: a void method must take a pointer to the injection target", m.Name())
			}
			target, err := e.typeRef(ptr.Elem(), nil, m.Pos())
			if err != nil {
				return err
			}
			ep.MembersTarget = &target
			ep.Request = model.DependencyRequest{
				Key:  model.NewKey(target),
				Kind: model.RequestMembersInjector,
				Site: site,
			}

		case sig.Results().Len() >= 1:
			resType := sig.Results().At(0).Type()
			if sig.Results().Len() > 2 || (sig.Results().Len() == 2 && !isErrorType(sig.Results().At(1).Type())) {
				return fmt.Errorf("entry point %s: at most one value result plus an optional error", m.Name())
			}

			if child := childFor(comp, resType); child != nil {
				ep.Child = child
				ep.Request = model.DependencyRequest{
					Key:  model.NewKey(child.Type),
					Kind: model.RequestInstance,
					Site: site,
				}
				comp.EntryPoints = append(comp.EntryPoints, ep)
				continue
			}

			if sig.Params().Len() != 0 {
				return fmt.Errorf("entry point %s: value entry points take no parameters", m.Name())
			}
			req, err := e.requestForType(resType, site)
			if err != nil {
				return fmt.Errorf("entry point %s: %w", m.Name(), err)
			}
			ep.Request = req

		default:
			return fmt.Errorf("entry point %s: unsupported shape", m.Name())
		}

		comp.EntryPoints = append(comp.EntryPoints, ep)
	}
	return nil
}

func childFor(comp *model.ComponentDescriptor, t types.Type) *model.ComponentDescriptor {
	for _, child := range comp.Children {
		if child.Type.Type != nil && types.Identical(child.Type.Type, t) {
			return child
		}
	}
	return nil
}

// requestForType classifies a dependency site by its declared type: the
// handa wrapper types select deferred, optional, and members-injector
// delivery, everything else is a plain instance request.
func (e *extractor) requestForType(t types.Type, site model.DeclarationRef) (model.DependencyRequest, error) {
	kind := model.RequestInstance
	inner := t

	wrapper, arg := handaWrapper(t)
	switch wrapper {
	case "Provider":
		kind, inner = model.RequestProvider, arg
	case "Lazy":
		kind, inner = model.RequestLazy, arg
	case "Future":
		kind, inner = model.RequestFuture, arg
	case "Optional":
		kind, inner = model.RequestOptional, arg
	case "MembersInjector":
		kind, inner = model.RequestMembersInjector, arg
	}

	ref, err := typeRefAt(inner, site.Pos)
	if err != nil {
		return model.DependencyRequest{}, err
	}
	return model.DependencyRequest{
		Key:     model.NewKey(ref),
		Kind:    kind,
		Site:    site,
		Nilable: canBeNil(inner),
	}, nil
}

// handaWrapper reports the runtime wrapper a type instantiates, unwrapping
// one pointer for the pointer-shaped wrappers.
func handaWrapper(t types.Type) (string, types.Type) {
	if ptr, ok := t.(*types.Pointer); ok {
		name, arg := handaWrapper(ptr.Elem())
		if name == "Lazy" || name == "Future" {
			return name, arg
		}
		return "", nil
	}

	named, ok := t.(*types.Named)
	if !ok {
		return "", nil
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() != handaPkgPath {
		return "", nil
	}
	args := named.TypeArgs()
	if args == nil || args.Len() != 1 {
		return "", nil
	}
	return obj.Name(), args.At(0)
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// canBeNil reports whether a site of this type can hold nil.
func canBeNil(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Slice, *types.Map, *types.Chan, *types.Signature:
		return true
	default:
		return false
	}
}
