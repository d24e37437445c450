package addons

import (
	"fmt"
)

// Registry holds the addons available to the pipeline. It is built once at
// start up and not modified afterwards.
type Registry struct {
	addons []Addon
	byName map[string]Addon
	def    Addon
}

// NewRegistry creates a registry with the given default addon, which runs
// when no other addon applies, and the given addons in registration order.
func NewRegistry(def Addon, addons ...Addon) (*Registry, error) {
	if def == nil {
		return nil, fmt.Errorf("registry requires a default addon")
	}

	r := &Registry{
		byName: make(map[string]Addon, len(addons)+1),
		def:    def,
	}
	for _, a := range append([]Addon{def}, addons...) {
		if a.Name() == "" {
			return nil, fmt.Errorf("addon with priority %d has no name", a.Priority())
		}
		if _, ok := r.byName[a.Name()]; ok {
			return nil, fmt.Errorf("addon %s is already registered", a.Name())
		}
		r.byName[a.Name()] = a
		r.addons = append(r.addons, a)
	}
	return r, nil
}

// Get returns the addon with the given name
func (r *Registry) Get(name string) (Addon, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// All returns the registered addons in registration order
func (r *Registry) All() []Addon {
	return append([]Addon(nil), r.addons...)
}

func (r *Registry) Default() Addon {
	return r.def
}

// Names returns the names of the registered addons in registration order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.addons))
	for _, a := range r.addons {
		names = append(names, a.Name())
	}
	return names
}
