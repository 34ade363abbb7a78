package system

import (
	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// CleanupSystem despawns entities tagged Dead. Despawning also drops every
// Targeting edge that pointed at them.
// Phase 3 (PostUpdate).
type CleanupSystem struct {
	sys  *ecs.System
	dead *ecs.QueryParam
}

func NewCleanupSystem() *CleanupSystem {
	s := &CleanupSystem{dead: ecs.NewQueryParam(ecs.With[component.Dead]())}
	s.sys = ecs.NewSystem("cleanup", s.update, s.dead)
	return s
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }
func (s *CleanupSystem) System() *ecs.System  { return s.sys }

func (s *CleanupSystem) update(ctx *ecs.SystemContext) {
	for row := range s.dead.Iter(ctx) {
		ctx.Commands().Delete(row.Entity())
	}
}
