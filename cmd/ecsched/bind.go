package main

import (
	"github.com/l1jgo/ecsched/internal/component"
	"github.com/l1jgo/ecsched/internal/scripting"
)

// bindComponents exposes the gameplay components to Lua systems.
func bindComponents(e *scripting.Engine) {
	scripting.Bind(e, "health", map[string]scripting.Field[component.Health]{
		"hp": {
			Get: func(h *component.Health) float64 { return float64(h.HP) },
			Set: func(h *component.Health, v float64) { h.HP = min(max(int32(v), 0), h.MaxHP) },
		},
		"max_hp": {
			Get: func(h *component.Health) float64 { return float64(h.MaxHP) },
		},
	})
	scripting.Bind(e, "poison", map[string]scripting.Field[component.Poison]{
		"damage": {
			Get: func(p *component.Poison) float64 { return float64(p.Damage) },
			Set: func(p *component.Poison, v float64) { p.Damage = int32(v) },
		},
		"ticks": {
			Get: func(p *component.Poison) float64 { return float64(p.Ticks) },
			Set: func(p *component.Poison, v float64) { p.Ticks = int32(v) },
		},
	})
	scripting.Bind(e, "lifetime", map[string]scripting.Field[component.Lifetime]{
		"ticks": {
			Get: func(l *component.Lifetime) float64 { return float64(l.Ticks) },
			Set: func(l *component.Lifetime, v float64) { l.Ticks = int32(v) },
		},
	})
	scripting.Bind(e, "regen", map[string]scripting.Field[component.Regen]{
		"amount": {
			Get: func(r *component.Regen) float64 { return float64(r.Amount) },
			Set: func(r *component.Regen, v float64) { r.Amount = int32(v) },
		},
		"interval": {
			Get: func(r *component.Regen) float64 { return float64(r.Interval) },
		},
	})
}
