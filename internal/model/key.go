// Package model defines the declaration records the handa pipeline operates
// on: keys, dependency requests, bindings, and the module/component
// descriptor trees. Records are built once by the front-end parser and never
// mutated afterwards.
package model

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strings"
)

// ErrTypeNotPresent signals that a declaration references a type that is not
// visible in the current processing round. The driver catches it and
// reschedules the unit of work instead of reporting an error.
var ErrTypeNotPresent = errors.New("type not present")

// TypeNotPresentError carries the unresolved reference and where it was
// needed.
type TypeNotPresentError struct {
	Ref string
	Pos token.Position
}

func (e *TypeNotPresentError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("type %s not present (at %s)", e.Ref, e.Pos)
	}
	return fmt.Sprintf("type %s not present", e.Ref)
}

func (e *TypeNotPresentError) Unwrap() error {
	return ErrTypeNotPresent
}

// TypeRef is a resolved reference to a type. Canonical is the fully
// qualified rendering used for identity; Type and Expr carry the go/types
// form and a printable expression for synthesis.
type TypeRef struct {
	Canonical string
	Type      types.Type
	Expr      ast.Expr
}

// NewTypeRef builds a TypeRef from a resolved type. A nil or invalid type
// fails with a TypeNotPresentError so the caller can defer to a later round
// rather than proceed on bad data.
func NewTypeRef(t types.Type, expr ast.Expr, pos token.Position) (TypeRef, error) {
	if t == nil {
		return TypeRef{}, &TypeNotPresentError{Ref: "<nil>", Pos: pos}
	}
	if basic, ok := t.(*types.Basic); ok && basic.Kind() == types.Invalid {
		return TypeRef{}, &TypeNotPresentError{Ref: t.String(), Pos: pos}
	}

	return TypeRef{
		Canonical: t.String(),
		Type:      t,
		Expr:      expr,
	}, nil
}

func (r TypeRef) String() string {
	return r.Canonical
}

func (r TypeRef) IsZero() bool {
	return r.Canonical == ""
}

// AnnotationRef is a qualifier: a name plus optional members. Equality is
// structural over the name and the member set.
type AnnotationRef struct {
	Name    string
	Members map[string]string
}

func (a *AnnotationRef) String() string {
	if a == nil {
		return ""
	}
	if len(a.Members) == 0 {
		return a.Name
	}

	keys := make([]string, 0, len(a.Members))
	for k := range a.Members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(a.Name)
	b.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%s", k, a.Members[k])
	}
	b.WriteByte(')')
	return b.String()
}

// ContributionKind distinguishes multibinding contributions from ordinary
// bindings of the same type.
type ContributionKind int

const (
	ContributionNone ContributionKind = iota
	ContributionSetElement
	ContributionSetValues
	ContributionMapEntry
)

func (k ContributionKind) String() string {
	switch k {
	case ContributionNone:
		return "none"
	case ContributionSetElement:
		return "set element"
	case ContributionSetValues:
		return "set values"
	case ContributionMapEntry:
		return "map entry"
	default:
		return fmt.Sprintf("contribution(%d)", int(k))
	}
}

// Key is the canonical identity of a requested dependency: type, optional
// qualifier, and multibinding contribution kind. Equality is structural;
// keys are compared and mapped through ID.
type Key struct {
	Type         TypeRef
	Qualifier    *AnnotationRef
	Contribution ContributionKind
}

func NewKey(t TypeRef) Key {
	return Key{Type: t}
}

func QualifiedKey(t TypeRef, qualifier string) Key {
	return Key{Type: t, Qualifier: &AnnotationRef{Name: qualifier}}
}

// ID is the structural identity of the key, stable across calls and
// processes. Two keys with equal IDs resolve to the same binding.
func (k Key) ID() string {
	var b strings.Builder
	if q := k.Qualifier.String(); q != "" {
		b.WriteByte('@')
		b.WriteString(q)
		b.WriteByte(' ')
	}
	b.WriteString(k.Type.Canonical)
	if k.Contribution != ContributionNone {
		fmt.Fprintf(&b, " [%s]", k.Contribution)
	}
	return b.String()
}

func (k Key) String() string {
	return k.ID()
}

func (k Key) Equal(other Key) bool {
	return k.ID() == other.ID()
}

// WithContribution returns a copy of the key tagged as a multibinding
// contribution. The untagged key remains the collection key the
// contributions aggregate under.
func (k Key) WithContribution(c ContributionKind) Key {
	k.Contribution = c
	return k
}

// handaPkgPath is the module root package generated code links against.
const handaPkgPath = "github.com/kinmemodoki/handa"

// OptionalKey derives the identity of the Optional wrapper around a key.
// The wrapper key shares the wrapped key's qualifier.
func OptionalKey(wrapped Key) Key {
	return Key{
		Type: TypeRef{
			Canonical: fmt.Sprintf("%s.Optional[%s]", handaPkgPath, wrapped.Type.Canonical),
			Type:      wrapped.Type.Type,
			Expr:      wrapped.Type.Expr,
		},
		Qualifier: wrapped.Qualifier,
	}
}

// MembersInjectorKey derives the identity of the members-injector binding
// for a target type. Distinct from the target's own value key.
func MembersInjectorKey(target Key) Key {
	return Key{
		Type: TypeRef{
			Canonical: fmt.Sprintf("%s.MembersInjector[%s]", handaPkgPath, target.Type.Canonical),
			Type:      target.Type.Type,
			Expr:      target.Type.Expr,
		},
		Qualifier: target.Qualifier,
	}
}
