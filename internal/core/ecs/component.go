package ecs

import (
	"errors"
	"fmt"

	"github.com/l1jgo/ecsched/internal/core/typeid"
)

var (
	ErrComponentNotFound = errors.New("ecs: component not found")
	ErrEntityNotAlive    = errors.New("ecs: entity not alive")
)

// ComponentNotFoundError reports an access to a component the entity lacks.
type ComponentNotFoundError struct {
	Entity    EntityID
	Component typeid.ID
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("ecs: component %s not found on entity %s", e.Component, e.Entity)
}

func (e *ComponentNotFoundError) Is(target error) bool {
	return target == ErrComponentNotFound
}

// ComponentOf returns the component type token for T.
func ComponentOf[T any]() typeid.ID {
	return typeid.Of[T]()
}

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// PtrComponentStore is a generic typed map store for ECS components. Stored
// pointers stay valid until the component is removed, so callers may mutate
// components in place.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// Add stores c on entity id, replacing any previous value, and returns the
// stored pointer.
func Add[T any](w *World, id EntityID, c T) (*T, error) {
	if !w.Alive(id) {
		return nil, fmt.Errorf("add %s on %s: %w", ComponentOf[T](), id, ErrEntityNotAlive)
	}
	store := ensureStore[T](w)
	p := &c
	store.Set(id, p)
	sig := w.signatures[id]
	sig.Set(uint32(ComponentOf[T]()))
	w.signatures[id] = sig
	return p, nil
}

// Get returns the component T of entity id.
func Get[T any](w *World, id EntityID) (*T, bool) {
	store := storeOf[T](w)
	if store == nil {
		return nil, false
	}
	return store.Get(id)
}

// Require is Get with a *ComponentNotFoundError when the component is absent.
func Require[T any](w *World, id EntityID) (*T, error) {
	if c, ok := Get[T](w, id); ok {
		return c, nil
	}
	return nil, &ComponentNotFoundError{Entity: id, Component: ComponentOf[T]()}
}

// Has reports whether entity id carries a T.
func Has[T any](w *World, id EntityID) bool {
	_, ok := Get[T](w, id)
	return ok
}

// Remove drops the component T from entity id.
func Remove[T any](w *World, id EntityID) {
	store := storeOf[T](w)
	if store == nil {
		return
	}
	store.Remove(id)
	if sig, ok := w.signatures[id]; ok {
		sig.Remove(uint32(ComponentOf[T]()))
		w.signatures[id] = sig
	}
}

func storeOf[T any](w *World) *PtrComponentStore[T] {
	s, ok := w.registry.Store(ComponentOf[T]())
	if !ok {
		return nil
	}
	return s.(*PtrComponentStore[T])
}

func ensureStore[T any](w *World) *PtrComponentStore[T] {
	if s := storeOf[T](w); s != nil {
		return s
	}
	s := NewPtrComponentStore[T]()
	w.registry.Register(ComponentOf[T](), s)
	return s
}

// mustFetch is used inside query fan-out, where a panic is routed to the
// runner barrier and surfaces as the call's error.
func mustFetch[T any](s *PtrComponentStore[T], id EntityID) *T {
	if s != nil {
		if c, ok := s.data[id]; ok {
			return c
		}
	}
	panic(&ComponentNotFoundError{Entity: id, Component: ComponentOf[T]()})
}
