package handa

import (
	"context"
	"sync"
)

// Provider produces a value of type T on every call. Generated code passes
// Providers where a dependency was requested deferred, which is also what
// breaks instantiation cycles.
type Provider[T any] func() T

// Lazy memoizes the first value produced by a provider. Unlike a scoped
// binding, each Lazy caches independently per requesting site.
type Lazy[T any] struct {
	once sync.Once
	p    Provider[T]
	v    T
}

// NewLazy wraps p in a Lazy. Used by generated code.
func NewLazy[T any](p Provider[T]) *Lazy[T] {
	return &Lazy[T]{p: p}
}

// Get returns the memoized value, invoking the underlying provider at most
// once.
func (l *Lazy[T]) Get() T {
	l.once.Do(func() {
		l.v = l.p()
		l.p = nil
	})
	return l.v
}

// Optional carries a value that is only bound when some module declares a
// concrete binding for it.
type Optional[T any] struct {
	value   T
	present bool
}

// Present returns a present Optional. Used by generated code.
func Present[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// Absent returns an absent Optional. Used by generated code.
func Absent[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the bound value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// MustGet returns the bound value and panics if it is absent.
func (o Optional[T]) MustGet() T {
	if !o.present {
		panic("handa: absent optional")
	}
	return o.value
}

// Future is the result of a production binding. The errgroup goroutine the
// component constructor starts for the binding resolves it, with the
// production error when the binding fails.
type Future[T any] struct {
	done chan struct{}
	v    T
	err  error
}

// NewFuture returns an unresolved Future. Used by generated code.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future. Resolving twice panics; a production
// binding runs exactly once per component.
func (f *Future[T]) Complete(v T) {
	f.v = v
	close(f.done)
}

// Fail resolves the future with the production error so waiters are
// released instead of blocking until their context is done. Used by
// generated code.
func (f *Future[T]) Fail(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the future is resolved or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.v, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// MembersInjector injects a component's bindings into the tagged fields of
// an existing value.
type MembersInjector[T any] func(target *T)

// SingleCheck memoizes p without synchronization. Generated code uses it for
// scoped bindings owned by components whose scope is not marked reentrant.
func SingleCheck[T any](p Provider[T]) Provider[T] {
	var (
		cached bool
		v      T
	)
	return func() T {
		if !cached {
			v = p()
			cached = true
		}
		return v
	}
}

// DoubleCheck memoizes p behind a sync.Once, safe for concurrent entry-point
// calls.
func DoubleCheck[T any](p Provider[T]) Provider[T] {
	var (
		once sync.Once
		v    T
	)
	return func() T {
		once.Do(func() {
			v = p()
		})
		return v
	}
}

// FromSwitch adapts one case of a switching provider's untyped dispatch to
// a typed Provider. Used by generated code when a component has enough
// bindings that per-binding provider types are collapsed into shared switch
// classes.
func FromSwitch[T any](get func() any) Provider[T] {
	return func() T {
		return get().(T)
	}
}

// delegateProvider is a Provider whose target is patched in after
// construction. The planner emits one for the forward-referenced edge of a
// provider-broken cycle.
type delegateProvider[T any] struct {
	delegate Provider[T]
}

// NewDelegate returns a provider placeholder for a cycle-breaking forward
// reference. Used by generated code.
func NewDelegate[T any]() *delegateProvider[T] {
	return &delegateProvider[T]{}
}

// SetDelegate back-patches the real provider. Calling the placeholder before
// the delegate is set panics; the planner orders initializers so that cannot
// happen for a validated graph.
func (d *delegateProvider[T]) SetDelegate(p Provider[T]) {
	d.delegate = p
}

// Provider returns the patchable provider function.
func (d *delegateProvider[T]) Provider() Provider[T] {
	return func() T {
		if d.delegate == nil {
			panic("handa: delegate provider used before initialization")
		}
		return d.delegate()
	}
}
