package component

import "github.com/l1jgo/ecsched/internal/core/ecs"

// Components are pure data; all mutations happen in systems or commands.

// Name is the display name of an entity.
type Name struct {
	Value string
}

// Health holds current and maximum hit points.
type Health struct {
	HP    int32
	MaxHP int32
}

// Regen restores Amount HP every Interval ticks.
type Regen struct {
	Amount   int32
	Interval int32
	acc      int32
}

// Step advances the regen timer and reports whether a heal is due.
func (r *Regen) Step() bool {
	r.acc++
	if r.Interval <= 1 || r.acc >= r.Interval {
		r.acc = 0
		return true
	}
	return false
}

// Poison deals Damage every tick for Ticks ticks.
type Poison struct {
	Damage int32
	Ticks  int32
}

// Lifetime destroys the entity once Ticks reaches zero.
type Lifetime struct {
	Ticks int32
}

// Damage lowers HP, never below zero.
type Damage struct {
	Amount int32
}

func (d Damage) Execute(w *ecs.World, target ecs.EntityID) {
	if h, ok := ecs.Get[Health](w, target); ok {
		h.HP = max(h.HP-d.Amount, 0)
	}
}

func (Damage) ParallelSafe() {}

// Heal raises HP, never above MaxHP.
type Heal struct {
	Amount int32
}

func (c Heal) Execute(w *ecs.World, target ecs.EntityID) {
	if h, ok := ecs.Get[Health](w, target); ok {
		h.HP = min(h.HP+c.Amount, h.MaxHP)
	}
}

func (Heal) ParallelSafe() {}

var (
	_ ecs.ParallelCommand = Damage{}
	_ ecs.ParallelCommand = Heal{}
)
