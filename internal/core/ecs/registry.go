package ecs

import "github.com/l1jgo/ecsched/internal/core/typeid"

// Registry tracks all component stores by component type and supports bulk
// cleanup on entity destroy.
type Registry struct {
	stores map[typeid.ID]Removable
	order  []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[typeid.ID]Removable, 16),
		order:  make([]Removable, 0, 16),
	}
}

// Register adds a component store to the registry.
func (r *Registry) Register(component typeid.ID, store Removable) {
	if _, ok := r.stores[component]; ok {
		return
	}
	r.stores[component] = store
	r.order = append(r.order, store)
}

// Store returns the store registered for component.
func (r *Registry) Store(component typeid.ID) (Removable, bool) {
	s, ok := r.stores[component]
	return s, ok
}

// Len returns the number of registered stores.
func (r *Registry) Len() int { return len(r.order) }

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.order {
		s.Remove(id)
	}
}
