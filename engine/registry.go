package engine

import (
	"fmt"
	"sort"
	"strings"
)

// All selects every registered engine in Resolve.
const All = "all"

// Registry is an immutable set of engines keyed by name.
type Registry struct {
	engines map[string]Engine
	names   []string
}

// NewRegistry builds a registry. Names must be unique and non-empty.
func NewRegistry(engines ...Engine) (*Registry, error) {
	r := &Registry{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		name := e.Name()
		if name == "" || name == All {
			return nil, fmt.Errorf("engine: invalid name %q", name)
		}
		if _, dup := r.engines[name]; dup {
			return nil, fmt.Errorf("engine: duplicate name %q", name)
		}
		r.engines[name] = e
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, bool) {
	e, ok := r.engines[name]
	return e, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns the engines in name order.
func (r *Registry) All() []Engine {
	out := make([]Engine, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.engines[n])
	}
	return out
}

// Resolve parses a comma-separated engine list, or "all".
// Known engines are returned in list order without duplicates; unknown names
// are returned separately so callers can decide whether they are fatal.
func (r *Registry) Resolve(list string) (engines []Engine, unknown []string) {
	if strings.TrimSpace(list) == All {
		return r.All(), nil
	}
	seen := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if e, ok := r.engines[name]; ok {
			engines = append(engines, e)
		} else {
			unknown = append(unknown, name)
		}
	}
	return engines, unknown
}
