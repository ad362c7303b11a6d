package peerrpc

import (
	"sync"
)

// Handler is a locally invocable method. Arguments arrive the way the codec
// decoded them (with the JSON codec, numbers are float64 and objects are
// map[string]any). A Handler passed as a call argument is remoted as a
// callback instead of being serialized.
type Handler func(args ...any) (any, error)

// Methods is the method set Register and Deregister operate on.
type Methods map[string]Handler

// methodKey flattens an optional namespace into the registry key. Keys are
// flat strings; the namespace is a naming convention, not nesting.
func methodKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + ":" + name
}

// registry is the mutable method table of one peer. Adapters deliver from
// their own goroutines, so access is locked even though each dispatch runs
// to completion on its own.
type registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func newRegistry() *registry {
	return &registry{handlers: map[string]Handler{}}
}

func (r *registry) register(methods Methods, namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, h := range methods {
		r.handlers[methodKey(namespace, name)] = h
	}
}

// deregister removes each named method; absent keys are not an error.
func (r *registry) deregister(methods Methods, namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range methods {
		delete(r.handlers, methodKey(namespace, name))
	}
}

func (r *registry) get(key string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	return h, ok
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = map[string]Handler{}
}
