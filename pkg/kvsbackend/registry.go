package kvsbackend

import (
	"fmt"
	"sync"

	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// Registry is a thread-safe name→Factory map. The zero value is not usable;
// construct one with NewRegistry. Register and Lookup are each atomic, but
// a build that looks a name up while that name is being registered
// concurrently may or may not find the new factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry. Concrete backend packages call
// Register against DefaultRegistry from their own init() to make themselves
// available by name without kvsbackend importing them.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry is the process-wide registry every kvs.Builder resolves
// backend names against unless a caller supplies its own.
var DefaultRegistry = NewRegistry()

// Register adds a new factory under name. It fails with
// KindBackendAlreadyRegistered if the name is already taken.
func (r *Registry) Register(name string, factory Factory) error {
	const op = "kvsbackend.Register"
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return kvserrors.New(kvserrors.KindBackendAlreadyRegistered, op, fmt.Sprintf("backend %q already registered", name))
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under name, or
// KindUnknownBackend if none was.
func (r *Registry) Lookup(name string) (Factory, error) {
	const op = "kvsbackend.Lookup"
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, kvserrors.New(kvserrors.KindUnknownBackend, op, "unknown backend: "+name)
	}
	return factory, nil
}

// LookupFromParameters reads the "name" key out of parameters and resolves
// it through Lookup. It fails with KindKeyNotFound if "name" is absent and
// KindInvalidBackendParameters if it is present but not a string.
func (r *Registry) LookupFromParameters(parameters kvsvalue.Map) (Factory, error) {
	const op = "kvsbackend.LookupFromParameters"
	value, ok := parameters["name"]
	if !ok {
		return nil, kvserrors.New(kvserrors.KindKeyNotFound, op, `backend parameters missing "name"`)
	}
	name, err := value.Str()
	if err != nil {
		return nil, kvserrors.New(kvserrors.KindInvalidBackendParameters, op, `"name" must be a string`)
	}
	return r.Lookup(name)
}
