package ecs

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/kelindar/bitmap"

	"github.com/l1jgo/ecsched/internal/core/event"
	"github.com/l1jgo/ecsched/internal/core/runner"
)

// Added is sent to the world dispatcher once an entity has been created.
type Added struct{}

// Removed is sent to the world dispatcher just before an entity's
// components are cleared.
type Removed struct{}

// World is the top-level ECS container. It owns the entity pool, the component
// registry, the event dispatcher and a deferred destruction queue flushed at
// the end of each tick.
//
// Structural changes (create, destroy, Set, Remove) must happen on the tick
// goroutine. Component values may be mutated from parallel query slices.
type World struct {
	id           uuid.UUID
	pool         *EntityPool
	registry     *Registry
	signatures   map[EntityID]bitmap.Bitmap
	entities     []EntityID
	slots        map[EntityID]int
	destroyQueue []EntityID
	dispatcher   *event.Dispatcher[EntityID]
	runner       runner.Runner
	addons       map[reflect.Type]any
}

func NewWorld() *World {
	return &World{
		id:           uuid.New(),
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		signatures:   make(map[EntityID]bitmap.Bitmap, 1024),
		entities:     make([]EntityID, 0, 1024),
		slots:        make(map[EntityID]int, 1024),
		destroyQueue: make([]EntityID, 0, 64),
		dispatcher:   event.NewDispatcher[EntityID](),
		runner:       runner.Sequential,
		addons:       make(map[reflect.Type]any),
	}
}

func (w *World) ID() uuid.UUID                           { return w.id }
func (w *World) Pool() *EntityPool                       { return w.pool }
func (w *World) Registry() *Registry                     { return w.registry }
func (w *World) Dispatcher() *event.Dispatcher[EntityID] { return w.dispatcher }

// Runner returns the runner used by default for query fan-out.
func (w *World) Runner() runner.Runner { return w.runner }

// SetRunner replaces the default runner. A nil runner restores the
// sequential one.
func (w *World) SetRunner(r runner.Runner) {
	if r == nil {
		r = runner.Sequential
	}
	w.runner = r
}

// Len returns the number of live entities.
func (w *World) Len() int { return len(w.entities) }

// CreateEntity allocates a new entity and announces it with Added.
func (w *World) CreateEntity() EntityID {
	id := w.pool.Create()
	w.slots[id] = len(w.entities)
	w.entities = append(w.entities, id)
	w.signatures[id] = nil
	w.dispatcher.Send(id, Added{})
	return id
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// PendingDestruction returns the number of queued destroys.
func (w *World) PendingDestruction() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys all queued entities and clears their components.
// Entities queued twice are destroyed once.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if w.Destroy(id) {
			n++
		}
	}
	clear(w.destroyQueue)
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

// Destroy removes an entity immediately. Listeners receive Removed while the
// components are still readable.
func (w *World) Destroy(id EntityID) bool {
	if !w.pool.Alive(id) {
		return false
	}
	w.dispatcher.Send(id, Removed{})

	slot := w.slots[id]
	last := len(w.entities) - 1
	if slot != last {
		moved := w.entities[last]
		w.entities[slot] = moved
		w.slots[moved] = slot
	}
	w.entities = w.entities[:last]
	delete(w.slots, id)
	delete(w.signatures, id)

	w.registry.RemoveAll(id)
	w.pool.Destroy(id)
	return true
}

// Send dispatches ev to the listeners of target.
func (w *World) Send(target EntityID, ev any) {
	w.dispatcher.Send(target, ev)
}

// AcquireAddon returns the world's addon of type A, creating it on first use.
func AcquireAddon[A any](w *World, create func(*World) A) A {
	key := reflect.TypeFor[A]()
	if a, ok := w.addons[key]; ok {
		return a.(A)
	}
	a := create(w)
	w.addons[key] = a
	return a
}

// Addon returns the world's addon of type A if one was acquired.
func Addon[A any](w *World) (A, bool) {
	a, ok := w.addons[reflect.TypeFor[A]()]
	if !ok {
		var zero A
		return zero, false
	}
	return a.(A), true
}
