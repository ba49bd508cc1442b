package model

import (
	"fmt"
)

// ModuleDescriptor groups the bindings declared by one Module call, plus the
// multibinding contributions and optional declarations that only become
// bindings during resolution.
type ModuleDescriptor struct {
	Name          string
	Bindings      []Binding
	Contributions []*MultibindingContribution
	// OptionalKeys are the wrapped keys declared with OptionalOf.
	OptionalKeys []Key
	DeclaredAt   DeclarationRef
}

// EntryPoint is one method of a component interface.
type EntryPoint struct {
	Name    string
	Request DependencyRequest
	// Child is set for subcomponent-creator entry points.
	Child *ComponentDescriptor
	// MembersTarget is set for InjectX(*X) members-injection entry points.
	MembersTarget *TypeRef
	DeclaredAt    DeclarationRef
}

// ComponentDescriptor is one node of the component tree. Constructed once
// per round from declarations and never mutated during resolution.
type ComponentDescriptor struct {
	Type     TypeRef
	CtorName string
	Scopes   []string
	Parent   *ComponentDescriptor
	Children []*ComponentDescriptor
	Modules  []*ModuleDescriptor
	// BoundInstances become constructor parameters of the generated
	// implementation, declaration order preserved.
	BoundInstances []*BoundInstanceBinding
	EntryPoints    []EntryPoint
	DeclaredAt     DeclarationRef
}

func (c *ComponentDescriptor) Name() string {
	return c.Type.Canonical
}

// IsRoot reports whether the component has no parent.
func (c *ComponentDescriptor) IsRoot() bool {
	return c.Parent == nil
}

// InstallsScope reports whether this component installs the named scope.
func (c *ComponentDescriptor) InstallsScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Ancestry returns the path from this component up to the root, self first.
func (c *ComponentDescriptor) Ancestry() []*ComponentDescriptor {
	var chain []*ComponentDescriptor
	for cur := c; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	return chain
}

// Walk visits the component and its descendants root-first.
func (c *ComponentDescriptor) Walk(visit func(*ComponentDescriptor)) {
	visit(c)
	for _, child := range c.Children {
		child.Walk(visit)
	}
}

// Validate checks tree-shape rules that are local to the descriptor: scopes
// must be unique along any root-to-leaf path, and child component types must
// not repeat an ancestor's type.
func (c *ComponentDescriptor) Validate() error {
	return c.validate(make(map[string]*ComponentDescriptor), make(map[string]struct{}))
}

func (c *ComponentDescriptor) validate(scopes map[string]*ComponentDescriptor, types map[string]struct{}) error {
	if _, ok := types[c.Type.Canonical]; ok {
		return fmt.Errorf("component %s at %s: repeats an ancestor component type", c.Type, c.DeclaredAt)
	}
	types[c.Type.Canonical] = struct{}{}
	defer delete(types, c.Type.Canonical)

	for _, s := range c.Scopes {
		if owner, ok := scopes[s]; ok {
			return fmt.Errorf("component %s at %s: scope %q is already installed by ancestor %s", c.Type, c.DeclaredAt, s, owner.Type)
		}
		scopes[s] = c
	}
	defer func() {
		for _, s := range c.Scopes {
			delete(scopes, s)
		}
	}()

	for _, child := range c.Children {
		if err := child.validate(scopes, types); err != nil {
			return err
		}
	}
	return nil
}

// InjectableType records the injection sites of one struct type: its
// `handa:"inject"` fields in embedded-struct-first, then declaration, order.
// Computed once by the front-end and cached for the round.
type InjectableType struct {
	Type TypeRef
	// Embedded references the first embedded struct that itself has
	// injection sites; its members are injected before this type's own.
	Embedded   *TypeRef
	Sites      []InjectionSite
	DeclaredAt DeclarationRef
}

// InstalledModules returns the modules installed directly in this component,
// deduplicated by name, declaration order preserved.
func (c *ComponentDescriptor) InstalledModules() []*ModuleDescriptor {
	seen := make(map[string]struct{}, len(c.Modules))
	mods := make([]*ModuleDescriptor, 0, len(c.Modules))
	for _, m := range c.Modules {
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		mods = append(mods, m)
	}
	return mods
}
