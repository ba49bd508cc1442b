// Package handa provides compile-time dependency-injection code generation
// for Go. Components, modules, and bindings are declared with the marker
// functions in this package; the handa tool analyzes those declarations
// statically and writes component implementations next to them. The marker
// calls themselves do nothing at runtime.
package handa

// name identifies a generated constructor or a qualifier.
type name = string

// binding is the marker interface implemented by everything that may appear
// inside a Module call.
type binding interface {
	handaBinding()
}

// funcBinding is implemented by bindings that wrap a provider function of
// type T. The code generator recovers the provider's signature through the
// Fn method's result type.
type funcBinding[T any] interface {
	binding
	Fn() T
}

// fnBinding wraps a provider function. T is the function type; its results
// become available keys and its parameters become dependency requests. A
// trailing error result is allowed.
type fnBinding[T any] struct {
	fn T
}

func (fnBinding[T]) handaBinding() {}

// Fn returns the wrapped provider function. Used by the code generator only.
func (b fnBinding[T]) Fn() T {
	return b.fn
}

// Provide declares a provision binding backed by a provider function.
//
//	handa.Provide(NewConfig)              // func() *Config
//	handa.Provide(NewStore)               // func(*Config) (*Store, error)
func Provide[T any](fn T) fnBinding[T] {
	return fnBinding[T]{fn: fn}
}

// scopedBinding attaches a scope to a wrapped binding.
type scopedBinding[T any, B funcBinding[T]] struct {
	b B
}

func (scopedBinding[T, B]) handaBinding() {}

func (b scopedBinding[T, B]) Fn() T {
	return b.b.Fn()
}

// Scoped caches the wrapped binding in the component that installs the named
// scope. At most one component on any root-to-leaf path may install a given
// scope.
func Scoped[T any, B funcBinding[T]](scope name, b B) scopedBinding[T, B] {
	return scopedBinding[T, B]{b: b}
}

// ScopeSingleton is the conventional root scope name.
const ScopeSingleton = "singleton"

// Singleton is shorthand for Scoped(ScopeSingleton, b).
func Singleton[T any, B funcBinding[T]](b B) scopedBinding[T, B] {
	return scopedBinding[T, B]{b: b}
}

// bindBinding aliases interface type S to the wrapped binding's concrete
// provided type.
type bindBinding[S, T any, B funcBinding[T]] struct {
	b B
}

func (bindBinding[S, T, B]) handaBinding() {}

func (b bindBinding[S, T, B]) Fn() T {
	return b.b.Fn()
}

// Bind declares a delegate binding: requests for S are satisfied by the
// wrapped binding's provided type, which must be assignable to S. No
// indirection is generated; the alias is followed at resolution time.
//
//	handa.Bind[UserRepository](handa.Provide(NewSQLUserRepository))
func Bind[S, T any, B funcBinding[T]](b B) bindBinding[S, T, B] {
	return bindBinding[S, T, B]{b: b}
}

// namedBinding qualifies the wrapped binding's provided key.
type namedBinding[T any, B funcBinding[T]] struct {
	b B
}

func (namedBinding[T, B]) handaBinding() {}

func (b namedBinding[T, B]) Fn() T {
	return b.b.Fn()
}

// Named qualifies the wrapped binding's key so that multiple bindings of the
// same type can coexist. Qualified keys are requested from injectable
// struct fields tagged `handa:"inject,name=<qualifier>"`.
func Named[T any, B funcBinding[T]](qualifier name, b B) namedBinding[T, B] {
	return namedBinding[T, B]{b: b}
}

// intoSetBinding contributes one element to the []T multibinding.
type intoSetBinding[T any, B funcBinding[T]] struct {
	b B
}

func (intoSetBinding[T, B]) handaBinding() {}

func (b intoSetBinding[T, B]) Fn() T {
	return b.b.Fn()
}

// IntoSet contributes the wrapped binding's provided value as one element of
// the []E multibinding, where E is the provided type. Elements keep the
// order their contributions were declared in.
func IntoSet[T any, B funcBinding[T]](b B) intoSetBinding[T, B] {
	return intoSetBinding[T, B]{b: b}
}

// elementsIntoSetBinding contributes a whole slice to a set multibinding.
type elementsIntoSetBinding[T any, B funcBinding[T]] struct {
	b B
}

func (elementsIntoSetBinding[T, B]) handaBinding() {}

func (b elementsIntoSetBinding[T, B]) Fn() T {
	return b.b.Fn()
}

// ElementsIntoSet contributes every element of the wrapped binding's provided
// slice to the matching []E multibinding. Slice contributions are appended
// after all single-element contributions.
func ElementsIntoSet[T any, B funcBinding[T]](b B) elementsIntoSetBinding[T, B] {
	return elementsIntoSetBinding[T, B]{b: b}
}

// intoMapBinding contributes one entry to a map multibinding.
type intoMapBinding[K comparable, T any, B funcBinding[T]] struct {
	b B
}

func (intoMapBinding[K, T, B]) handaBinding() {}

func (b intoMapBinding[K, T, B]) Fn() T {
	return b.b.Fn()
}

// IntoMap contributes the wrapped binding's provided value under key to the
// map[K]E multibinding. Two contributions with the same key for the same map
// are a generation error.
func IntoMap[K comparable, T any, B funcBinding[T]](key K, b B) intoMapBinding[K, T, B] {
	return intoMapBinding[K, T, B]{b: b}
}

// asyncBinding marks a production binding.
type asyncBinding[T any, B funcBinding[T]] struct {
	b B
}

func (asyncBinding[T, B]) handaBinding() {}

func (b asyncBinding[T, B]) Fn() T {
	return b.b.Fn()
}

// Async declares a production binding: the provider runs on an errgroup
// started by the component constructor, and its value is requested as
// handa.Future[T] (or awaited automatically when requested directly).
func Async[T any, B funcBinding[T]](b B) asyncBinding[T, B] {
	return asyncBinding[T, B]{b: b}
}

// nilableBinding marks a provision that may legitimately return nil.
type nilableBinding[T any, B funcBinding[T]] struct {
	b B
}

func (nilableBinding[T, B]) handaBinding() {}

func (b nilableBinding[T, B]) Fn() T {
	return b.b.Fn()
}

// Nilable marks the wrapped provision as possibly nil. Requesting a nilable
// key from a site not typed to accept nil is reported by the validator.
func Nilable[T any, B funcBinding[T]](b B) nilableBinding[T, B] {
	return nilableBinding[T, B]{b: b}
}

// optionalDecl declares that Optional[T] may be requested.
type optionalDecl[T any] struct{}

func (optionalDecl[T]) handaBinding() {}

// OptionalOf declares an optional binding for T: requests for
// handa.Optional[T] resolve present when some installed module binds T in
// the requesting component or an ancestor, and absent otherwise.
func OptionalOf[T any]() optionalDecl[T] {
	return optionalDecl[T]{}
}

// instanceDecl declares a bound instance.
type instanceDecl[T any] struct{}

func (instanceDecl[T]) handaBinding() {}

// BindInstance adds a parameter of type T to the generated component
// constructor and binds the supplied value.
func BindInstance[T any]() instanceDecl[T] {
	return instanceDecl[T]{}
}

// module groups bindings for installation into components.
type module struct{}

func (module) handaBinding() {}

// Module declares a named group of bindings. Modules may be installed into
// any number of components; installing the same module twice on one
// root-to-leaf path contributes its bindings once.
func Module(moduleName name, bindings ...binding) module {
	return module{}
}

// ComponentOption configures a Component or Child declaration.
type ComponentOption struct{}

// InScope declares that the component installs the named scope and caches
// every binding scoped to it.
func InScope(scope name) ComponentOption {
	return ComponentOption{}
}

// Install installs modules into the component.
func Install(mods ...module) ComponentOption {
	return ComponentOption{}
}

// Child declares a subcomponent whose entry points are the methods of
// interface C. The parent component gains a creator binding for C: an entry
// point returning C, or a request for C from a parent-owned binding,
// resolves to the generated child constructor.
func Child[C any](ctor name, opts ...ComponentOption) ComponentOption {
	return ComponentOption{}
}

// Component declares a component whose entry points are the methods of
// interface I. The generator emits an implementation of I and a constructor
// with the given name. Entry-point result types select the request kind:
// T itself, handa.Provider[T], handa.Lazy[T], handa.Future[T],
// handa.Optional[T], or a single-pointer-argument InjectX(*X) method for
// members injection.
//
//	var _ = handa.Component[App]("NewApp",
//		handa.InScope(handa.ScopeSingleton),
//		handa.Install(storeModule, httpModule),
//		handa.Child[RequestComponent]("NewRequestComponent",
//			handa.InScope("request"),
//			handa.Install(requestModule),
//		),
//	)
//
// Generation is triggered with go:generate:
//
//	//go:generate go tool handa $GOFILE
func Component[I any](ctor name, opts ...ComponentOption) struct{} {
	// Analyzed statically by the handa tool; the implementation is written
	// to a *_handa.go file beside the declaration.
	return struct{}{}
}
