package model

import (
	"fmt"
	"go/token"
)

// RequestKind describes how a dependency is delivered at the requesting
// site. Kinds do not change which binding a key resolves to, only how the
// binding's result is wrapped.
type RequestKind int

const (
	RequestInstance RequestKind = iota
	RequestProvider
	RequestLazy
	RequestProducer
	RequestProduced
	RequestFuture
	RequestMembersInjector
	RequestOptional
)

func (k RequestKind) String() string {
	switch k {
	case RequestInstance:
		return "instance"
	case RequestProvider:
		return "provider"
	case RequestLazy:
		return "lazy"
	case RequestProducer:
		return "producer"
	case RequestProduced:
		return "produced"
	case RequestFuture:
		return "future"
	case RequestMembersInjector:
		return "members injector"
	case RequestOptional:
		return "optional"
	default:
		return fmt.Sprintf("request(%d)", int(k))
	}
}

// Deferred reports whether the request compiles to a factory reference
// rather than requiring the dependency's value to exist. A cycle is
// permitted when every edge past the first is deferred.
func (k RequestKind) Deferred() bool {
	switch k {
	case RequestProvider, RequestLazy, RequestProducer, RequestProduced, RequestFuture:
		return true
	default:
		return false
	}
}

// DeclarationRef locates a declaration in source for diagnostics and for
// originating-element bookkeeping on generated output.
type DeclarationRef struct {
	Pos  token.Position
	Desc string
}

func (r DeclarationRef) String() string {
	switch {
	case r.Desc != "" && r.Pos.IsValid():
		return fmt.Sprintf("%s (%s)", r.Desc, r.Pos)
	case r.Desc != "":
		return r.Desc
	case r.Pos.IsValid():
		return r.Pos.String()
	default:
		return "<unknown declaration>"
	}
}

// DependencyRequest is one edge in the binding graph: this site wants this
// key, delivered this way.
type DependencyRequest struct {
	Key     Key
	Kind    RequestKind
	Site    DeclarationRef
	Nilable bool
}

func (r DependencyRequest) String() string {
	return fmt.Sprintf("%s as %s", r.Key, r.Kind)
}
