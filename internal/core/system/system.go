// Package system defines the system contract and registers chains of systems
// into a scheduler, resolving their declared ordering.
package system

import (
	"github.com/l1jgo/ecsched/internal/core/ecs"
	"github.com/l1jgo/ecsched/internal/core/event"
)

// Descriptor tells the scheduler which entities a system handles and when.
type Descriptor struct {
	// Matcher selects the entities passed to Execute.
	Matcher ecs.Matcher
	// Trigger, when set, makes the system run once per matching entity for
	// each event of these types delivered since the previous tick, instead
	// of over the whole query every tick.
	Trigger []event.Type
	// Children are registered after the system and run as a group once it
	// finished.
	Children Chain
	// Parallel spreads Execute over the world's runner.
	Parallel bool
}

// System is the interface every ECS system implements. State belongs to the
// instance; one instance exists per scheduler.
type System interface {
	Descriptor() Descriptor
	Execute(w *ecs.World, id ecs.EntityID)
}

// BeforeExecuter is called once per tick before the system's entities.
type BeforeExecuter interface {
	BeforeExecute(w *ecs.World)
}

// AfterExecuter is called once per tick after the system's entities.
type AfterExecuter interface {
	AfterExecute(w *ecs.World)
}

// Disposer releases resources when the last handle of a system goes away.
type Disposer interface {
	Dispose(w *ecs.World) error
}

// Base can be embedded to provide Descriptor from a field.
type Base struct {
	Desc Descriptor
}

func (b *Base) Descriptor() Descriptor { return b.Desc }
