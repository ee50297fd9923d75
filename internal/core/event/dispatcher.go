// Package event delivers typed events addressed to a target (usually an
// entity) to registered listeners.
package event

import (
	"reflect"
	"sync"
)

// Type identifies an event type.
type Type = reflect.Type

// TypeOf returns the Type of events of type E.
func TypeOf[E any]() Type {
	return reflect.TypeFor[E]()
}

// Handler receives an event sent to target. Returning true unregisters it.
type Handler[K comparable] func(target K, ev any) bool

type listener[K comparable] struct {
	id uint64
	fn Handler[K]
}

// Dispatcher delivers events synchronously, on the sender's goroutine, to the
// listeners registered for the event's dynamic type and to catch-all
// listeners. Registration is safe from any goroutine.
type Dispatcher[K comparable] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Type][]listener[K]
	any      []listener[K]
}

func NewDispatcher[K comparable]() *Dispatcher[K] {
	return &Dispatcher[K]{
		handlers: make(map[Type][]listener[K]),
	}
}

// Send delivers ev to every listener of its dynamic type, then to catch-all
// listeners. A nil event is ignored.
func (d *Dispatcher[K]) Send(target K, ev any) {
	if ev == nil {
		return
	}
	t := reflect.TypeOf(ev)

	d.mu.RLock()
	typed := d.handlers[t]
	all := d.any
	d.mu.RUnlock()

	// Slices are replaced, never mutated in place, so the snapshots stay valid
	// while handlers unlisten themselves.
	for _, l := range typed {
		if l.fn(target, ev) {
			d.remove(t, l.id)
		}
	}
	for _, l := range all {
		if l.fn(target, ev) {
			d.remove(nil, l.id)
		}
	}
}

// ListenType registers fn for events whose dynamic type is t. The returned
// function unregisters it.
func (d *Dispatcher[K]) ListenType(t Type, fn Handler[K]) (cancel func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	prev := d.handlers[t]
	next := make([]listener[K], len(prev), len(prev)+1)
	copy(next, prev)
	d.handlers[t] = append(next, listener[K]{id: id, fn: fn})
	d.mu.Unlock()
	return func() { d.remove(t, id) }
}

// ListenAny registers fn for every event.
func (d *Dispatcher[K]) ListenAny(fn Handler[K]) (cancel func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	next := make([]listener[K], len(d.any), len(d.any)+1)
	copy(next, d.any)
	d.any = append(next, listener[K]{id: id, fn: fn})
	d.mu.Unlock()
	return func() { d.remove(nil, id) }
}

// Listen registers a typed handler for events of type E.
func Listen[K comparable, E any](d *Dispatcher[K], fn func(target K, ev E) bool) (cancel func()) {
	return d.ListenType(TypeOf[E](), func(target K, ev any) bool {
		return fn(target, ev.(E))
	})
}

// Count returns the number of listeners registered for t.
func (d *Dispatcher[K]) Count(t Type) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[t])
}

func (d *Dispatcher[K]) remove(t Type, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var list []listener[K]
	if t == nil {
		list = d.any
	} else {
		list = d.handlers[t]
	}
	for i, l := range list {
		if l.id != id {
			continue
		}
		next := make([]listener[K], 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if t == nil {
			d.any = next
		} else if len(next) == 0 {
			delete(d.handlers, t)
		} else {
			d.handlers[t] = next
		}
		return
	}
}
