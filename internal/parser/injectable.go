package parser

import (
	"go/types"
	"reflect"
	"strings"

	"github.com/kinmemodoki/handa/internal/model"
)

// collectInjectables scans the package and its direct imports for struct
// types with `handa:"inject"` fields. The resolver uses the result both to
// synthesize construction bindings and to build members injectors.
func (e *extractor) collectInjectables() (map[string]*model.InjectableType, error) {
	out := make(map[string]*model.InjectableType)

	if err := e.collectScope(e.pkg.Types.Scope(), out); err != nil {
		return nil, err
	}
	for _, imp := range e.pkg.Imports {
		if imp.PkgPath == handaPkgPath || imp.Types == nil {
			continue
		}
		if err := e.collectScope(imp.Types.Scope(), out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *extractor) collectScope(scope *types.Scope, out map[string]*model.InjectableType) error {
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok {
			continue
		}
		st, ok := named.Underlying().(*types.Struct)
		if !ok {
			continue
		}

		site := e.declRef(tn.Pos(), "injectable "+named.String())
		sites, embedded, err := e.injectionSites(st, site)
		if err != nil {
			return err
		}
		if len(sites) == 0 && embedded == nil {
			continue
		}

		ref, err := typeRefAt(named, site.Pos)
		if err != nil {
			return err
		}
		out[named.String()] = &model.InjectableType{
			Type:       ref,
			Embedded:   embedded,
			Sites:      sites,
			DeclaredAt: site,
		}
	}
	return nil
}

// injectionSites reads a struct's tagged fields in declaration order. The
// first embedded struct that itself has injection sites becomes the
// members-injection supertype.
func (e *extractor) injectionSites(st *types.Struct, site model.DeclarationRef) ([]model.InjectionSite, *model.TypeRef, error) {
	var sites []model.InjectionSite
	var embedded *model.TypeRef

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)

		if f.Embedded() {
			if embedded == nil && hasInjectSites(f.Type(), 0) {
				ref, err := typeRefAt(f.Type(), site.Pos)
				if err != nil {
					return nil, nil, err
				}
				embedded = &ref
			}
			continue
		}

		tag := reflect.StructTag(st.Tag(i)).Get("handa")
		if tag == "" {
			continue
		}
		parts := strings.Split(tag, ",")
		if parts[0] != "inject" {
			continue
		}

		req, err := e.requestForType(f.Type(), site)
		if err != nil {
			return nil, nil, err
		}
		for _, opt := range parts[1:] {
			if q, ok := strings.CutPrefix(opt, "name="); ok {
				req.Key.Qualifier = &model.AnnotationRef{Name: q}
			}
		}

		sites = append(sites, model.InjectionSite{FieldName: f.Name(), Request: req})
	}
	return sites, embedded, nil
}

// hasInjectSites reports whether a type (or a struct it embeds) declares
// injection tags. Depth-limited against embedding cycles.
func hasInjectSites(t types.Type, depth int) bool {
	if depth > 8 {
		return false
	}
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	if !ok {
		return false
	}

	for i := 0; i < st.NumFields(); i++ {
		if reflect.StructTag(st.Tag(i)).Get("handa") != "" {
			return true
		}
		if st.Field(i).Embedded() && hasInjectSites(st.Field(i).Type(), depth+1) {
			return true
		}
	}
	return false
}
