package system

import (
	"go.uber.org/zap"

	"github.com/l1jgo/ecsched/internal/component"
	"github.com/l1jgo/ecsched/internal/core/ecs"
	"github.com/l1jgo/ecsched/internal/core/event"
	coresys "github.com/l1jgo/ecsched/internal/core/system"
)

// DamageDisplaySystem reports every Damage command, once per command, after
// it was applied.
type DamageDisplaySystem struct {
	log *zap.Logger
}

func NewDamageDisplaySystem(log *zap.Logger) *DamageDisplaySystem {
	return &DamageDisplaySystem{log: log}
}

func (s *DamageDisplaySystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{
		Matcher: ecs.MatchAll(ecs.ComponentOf[component.Health]()),
		Trigger: []event.Type{event.TypeOf[component.Damage]()},
	}
}

func (s *DamageDisplaySystem) Execute(w *ecs.World, id ecs.EntityID) {
	h, _ := ecs.Get[component.Health](w, id)
	name := id.String()
	if n, ok := ecs.Get[component.Name](w, id); ok {
		name = n.Value
	}
	s.log.Info("damaged",
		zap.String("entity", name),
		zap.Int32("hp", h.HP),
		zap.Int32("max_hp", h.MaxHP),
	)
}

// DeathSystem destroys entities whose HP dropped to zero. It reacts to
// Damage only, so entities spawned with zero HP are left alone.
type DeathSystem struct {
	log    *zap.Logger
	deaths int
	marked map[ecs.EntityID]struct{}
}

func NewDeathSystem(log *zap.Logger) *DeathSystem {
	return &DeathSystem{log: log, marked: make(map[ecs.EntityID]struct{})}
}

func (s *DeathSystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{
		Matcher: ecs.MatchAll(ecs.ComponentOf[component.Health]()),
		Trigger: []event.Type{event.TypeOf[component.Damage]()},
	}
}

func (s *DeathSystem) Execute(w *ecs.World, id ecs.EntityID) {
	h, _ := ecs.Get[component.Health](w, id)
	if h.HP > 0 {
		return
	}
	// Several hits in one tick queue the entity several times.
	if _, ok := s.marked[id]; ok {
		return
	}
	s.marked[id] = struct{}{}
	s.deaths++
	w.MarkForDestruction(id)
	s.log.Info("died", zap.Stringer("entity", id))
}

func (s *DeathSystem) BeforeExecute(*ecs.World) {
	clear(s.marked)
}

// Deaths returns the number of entities this system killed.
func (s *DeathSystem) Deaths() int { return s.deaths }
