// Package exception implements C16: the typed-exception-to-response
// registry consulted at the Connection's panic-recovery catch point
// and by the App facade's SetExceptionHandler embedder call. Go has no
// exception hierarchy, so a "typed exception" here is simply the
// dynamic type of a returned or recovered error value, looked up the
// same way languages with a concrete exception-class hierarchy map a
// handler to the most specific matching type.
package exception

import "reflect"

// Mapper converts a matched error into a response code and body.
type Mapper func(err error) (status int, body any)

// Registry is the handler-type table. Registries are built during
// pre-start wiring and read concurrently (never mutated) once the
// Server is serving requests.
type Registry struct {
	byType map[reflect.Type]Mapper
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byType: make(map[reflect.Type]Mapper)}
}

// Register associates the dynamic type of example with mapper. The
// value of example is never used, only its type — callers typically
// pass a zero value or a typed nil pointer of their error type.
func (r *Registry) Register(example error, mapper Mapper) {
	r.byType[reflect.TypeOf(example)] = mapper
}

// Lookup resolves err's dynamic type to a registered Mapper. found is
// false if no handler was registered for this exact type. The
// registry does not walk a Go error-wrapping chain or an interface
// hierarchy: a typed handler is keyed by exact concrete type, matching
// how languages with nominal exception classes dispatch on the most
// specific registered type, which in Go terms is the concrete type of
// the error itself.
func (r *Registry) Lookup(err error) (Mapper, bool) {
	if err == nil {
		return nil, false
	}
	m, ok := r.byType[reflect.TypeOf(err)]
	return m, ok
}
