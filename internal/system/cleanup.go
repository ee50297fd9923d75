package system

import (
	"go.uber.org/zap"

	"github.com/l1jgo/ecsched/internal/core/ecs"
	coresys "github.com/l1jgo/ecsched/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
type CleanupSystem struct {
	log *zap.Logger
}

func NewCleanupSystem(log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{log: log}
}

func (s *CleanupSystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{Matcher: ecs.MatchNone()}
}

func (s *CleanupSystem) Execute(*ecs.World, ecs.EntityID) {}

func (s *CleanupSystem) AfterExecute(w *ecs.World) {
	if n := w.FlushDestroyQueue(); n > 0 {
		s.log.Debug("entities destroyed", zap.Int("count", n), zap.Int("alive", w.Len()))
	}
}
