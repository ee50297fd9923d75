package system

import (
	"github.com/l1jgo/ecsched/internal/component"
	"github.com/l1jgo/ecsched/internal/core/ecs"
	coresys "github.com/l1jgo/ecsched/internal/core/system"
)

// PoisonSystem applies poison damage each tick and cures the poison once it
// runs out. Curing removes a component, so the system stays sequential.
type PoisonSystem struct {
	coresys.Base
}

func NewPoisonSystem() *PoisonSystem {
	return &PoisonSystem{Base: coresys.Base{Desc: coresys.Descriptor{
		Matcher: ecs.MatchAll(
			ecs.ComponentOf[component.Health](),
			ecs.ComponentOf[component.Poison](),
		),
	}}}
}

func (s *PoisonSystem) Execute(w *ecs.World, id ecs.EntityID) {
	p, _ := ecs.Get[component.Poison](w, id)
	h, _ := ecs.Get[component.Health](w, id)
	if h.HP > 0 {
		w.Modify(id, component.Damage{Amount: p.Damage})
	}
	p.Ticks--
	if p.Ticks <= 0 {
		ecs.Remove[component.Poison](w, id)
	}
}

// LifetimeSystem counts down Lifetime and queues expired entities for
// destruction.
type LifetimeSystem struct {
	coresys.Base
}

func NewLifetimeSystem() *LifetimeSystem {
	return &LifetimeSystem{Base: coresys.Base{Desc: coresys.Descriptor{
		Matcher: ecs.MatchAll(ecs.ComponentOf[component.Lifetime]()),
	}}}
}

func (s *LifetimeSystem) Execute(w *ecs.World, id ecs.EntityID) {
	l, _ := ecs.Get[component.Lifetime](w, id)
	l.Ticks--
	if l.Ticks <= 0 {
		w.MarkForDestruction(id)
	}
}
