package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/dissector"
)

// Factory builds a fresh dissector instance.
type Factory func() dissector.Dissector

// Metadata describes a registered dissector. Name is the protocol filter
// name; Dependencies name dissectors whose tables this one hands off to.
type Metadata struct {
	Name         string
	Description  string
	Dependencies []string
}

type registryEntry struct {
	meta    Metadata
	factory Factory
}

// Registry maps dissector names to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

func (r *Registry) Register(meta Metadata, f Factory) error {
	if meta.Name == "" {
		return fmt.Errorf("dissector name is empty: %w", core.ErrConfigInvalid)
	}
	if f == nil {
		return fmt.Errorf("dissector '%s' has nil factory: %w", meta.Name, core.ErrConfigInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[meta.Name]; exists {
		return fmt.Errorf("dissector '%s' already registered: %w", meta.Name, core.ErrConfigInvalid)
	}
	r.entries[meta.Name] = registryEntry{meta: meta, factory: f}
	return nil
}

func (r *Registry) Get(name string) (Factory, Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.entries[name]
	if !exists {
		return nil, Metadata{}, fmt.Errorf("dissector '%s': %w", name, core.ErrPluginNotFound)
	}
	return e.factory, e.meta, nil
}

// List returns every registered dissector sorted by name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadOrder returns names plus their transitive dependencies, ordered so
// every dissector comes after the ones it depends on. An empty names list
// selects every registered dissector. Ties are broken by name.
func (r *Registry) LoadOrder(names []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		for name := range r.entries {
			names = append(names, name)
		}
	}

	selected := make(map[string]bool)
	var visit func(name, from string) error
	visit = func(name, from string) error {
		if selected[name] {
			return nil
		}
		e, exists := r.entries[name]
		if !exists {
			if from != "" {
				return fmt.Errorf("dissector '%s' has unknown dependency '%s': %w", from, name, core.ErrPluginNotFound)
			}
			return fmt.Errorf("dissector '%s': %w", name, core.ErrPluginNotFound)
		}
		selected[name] = true
		for _, dep := range e.meta.Dependencies {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}

	graph := make(map[string][]string) // dependency -> dependents
	inDegree := make(map[string]int)
	for name := range selected {
		deps := r.entries[name].meta.Dependencies
		inDegree[name] = len(deps)
		for _, dep := range deps {
			graph[dep] = append(graph[dep], name)
		}
	}

	queue := make([]string, 0)
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(selected))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		dependents := graph[current]
		sort.Strings(dependents)
		for _, dep := range dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(selected) {
		return nil, fmt.Errorf("circular dependency detected among dissectors: %w", core.ErrConfigInvalid)
	}
	return result, nil
}

var dissectorReg = NewRegistry()

// Dissectors is the registry built-in dissectors register with.
func Dissectors() *Registry { return dissectorReg }

// RegisterDissector adds a built-in dissector. It is meant for init
// functions and panics on a bad or duplicate registration.
func RegisterDissector(meta Metadata, f Factory) {
	if err := dissectorReg.Register(meta, f); err != nil {
		panic(err)
	}
}

func ListDissectors() []Metadata {
	return dissectorReg.List()
}
