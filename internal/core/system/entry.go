package system

import (
	"sync"

	"github.com/l1jgo/ecsched/internal/core/ecs"
	"github.com/l1jgo/ecsched/internal/core/event"
	"github.com/l1jgo/ecsched/internal/core/typeid"
)

// Dependencies lists the systems that must run before and after one entry.
type Dependencies struct {
	After  []typeid.ID
	Before []typeid.ID
}

// Option declares an ordering constraint on an entry.
type Option func(*Dependencies)

// After makes the entry run after each of ids.
func After(ids ...typeid.ID) Option {
	return func(d *Dependencies) { d.After = append(d.After, ids...) }
}

// Before makes the entry run before each of ids.
func Before(ids ...typeid.ID) Option {
	return func(d *Dependencies) { d.Before = append(d.Before, ids...) }
}

// AfterOf is After(typeid.Of[S]()).
func AfterOf[S System]() Option { return After(typeid.Of[S]()) }

// BeforeOf is Before(typeid.Of[S]()).
func BeforeOf[S System]() Option { return Before(typeid.Of[S]()) }

// Entry is one system of a chain. It is immutable.
type Entry struct {
	id     typeid.ID
	create func() System
	deps   func() Dependencies
}

// New builds an entry for the system identified by id.
func New(id typeid.ID, create func() System, opts ...Option) Entry {
	return Entry{
		id:     id,
		create: create,
		deps: sync.OnceValue(func() Dependencies {
			var d Dependencies
			for _, opt := range opts {
				opt(&d)
			}
			return d
		}),
	}
}

// Of builds an entry keyed by the system type S.
func Of[S System](create func() S, opts ...Option) Entry {
	return New(typeid.Of[S](), func() System { return create() }, opts...)
}

func (e Entry) ID() typeid.ID { return e.id }

// Dependencies returns the ordering declared for the entry.
func (e Entry) Dependencies() Dependencies {
	if e.deps == nil {
		return Dependencies{}
	}
	return e.deps()
}

// Callback describes a system made of plain functions.
type Callback struct {
	Matcher  ecs.Matcher
	Trigger  []event.Type
	Children Chain
	Parallel bool
	Before   func(w *ecs.World)
	Execute  func(w *ecs.World, id ecs.EntityID)
	After    func(w *ecs.World)
}

type callbackSystem struct {
	cb Callback
}

func (s *callbackSystem) Descriptor() Descriptor {
	return Descriptor{
		Matcher:  s.cb.Matcher,
		Trigger:  s.cb.Trigger,
		Children: s.cb.Children,
		Parallel: s.cb.Parallel,
	}
}

func (s *callbackSystem) Execute(w *ecs.World, id ecs.EntityID) {
	if s.cb.Execute != nil {
		s.cb.Execute(w, id)
	}
}

func (s *callbackSystem) BeforeExecute(w *ecs.World) {
	if s.cb.Before != nil {
		s.cb.Before(w)
	}
}

func (s *callbackSystem) AfterExecute(w *ecs.World) {
	if s.cb.After != nil {
		s.cb.After(w)
	}
}

// Func builds an entry for a callback system identified by name. Other
// entries refer to it with FuncID(name).
func Func(name string, cb Callback, opts ...Option) Entry {
	return New(FuncID(name), func() System { return &callbackSystem{cb: cb} }, opts...)
}

// FuncID returns the identity of the callback system registered as name.
func FuncID(name string) typeid.ID { return typeid.Named(name) }
