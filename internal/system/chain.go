package system

import (
	"go.uber.org/zap"

	coresys "github.com/l1jgo/ecsched/internal/core/system"
)

// Gameplay returns the per-tick gameplay systems in dependency order:
// lifetimes, then poison, then regen, then reactions to damage.
func Gameplay(log *zap.Logger) coresys.Chain {
	return coresys.NewChain(
		coresys.Of(NewLifetimeSystem),
		coresys.Of(NewPoisonSystem, coresys.AfterOf[*LifetimeSystem]()),
		coresys.Of(NewRegenSystem, coresys.AfterOf[*PoisonSystem]()),
		coresys.Of(func() *DamageDisplaySystem { return NewDamageDisplaySystem(log) },
			coresys.AfterOf[*RegenSystem]()),
		coresys.Of(func() *DeathSystem { return NewDeathSystem(log) },
			coresys.AfterOf[*DamageDisplaySystem]()),
	)
}

// Cleanup returns the chain that must run last in a tick.
func Cleanup(log *zap.Logger) coresys.Chain {
	return coresys.NewChain(
		coresys.Of(func() *CleanupSystem { return NewCleanupSystem(log) }),
	)
}
