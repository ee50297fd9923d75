package system

import (
	"github.com/l1jgo/ecsched/internal/component"
	"github.com/l1jgo/ecsched/internal/core/ecs"
	coresys "github.com/l1jgo/ecsched/internal/core/system"
)

// RegenSystem restores HP on every entity with Health and Regen. Each entity
// keeps its own timer, so intervals differ per entity.
//
// Runs on the world runner: Heal only touches the target's own Health.
type RegenSystem struct {
	coresys.Base
}

func NewRegenSystem() *RegenSystem {
	return &RegenSystem{Base: coresys.Base{Desc: coresys.Descriptor{
		Matcher: ecs.MatchAll(
			ecs.ComponentOf[component.Health](),
			ecs.ComponentOf[component.Regen](),
		),
		Parallel: true,
	}}}
}

func (s *RegenSystem) Execute(w *ecs.World, id ecs.EntityID) {
	h, _ := ecs.Get[component.Health](w, id)
	r, _ := ecs.Get[component.Regen](w, id)
	if h.HP <= 0 || h.HP >= h.MaxHP {
		return
	}
	if r.Step() {
		w.Modify(id, component.Heal{Amount: r.Amount})
	}
}
