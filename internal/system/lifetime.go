package system

import (
	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// LifetimeSystem counts down Lifetime and despawns expired entities.
// Phase 3 (PostUpdate).
type LifetimeSystem struct {
	sys    *ecs.System
	timed  *ecs.QueryParam
	time   *ecs.ReadRes[coresys.Time]
	events *ecs.WriteRes[*event.Bus]
}

func NewLifetimeSystem() *LifetimeSystem {
	s := &LifetimeSystem{
		timed:  ecs.NewQueryParam(ecs.Writes[component.Lifetime]()),
		time:   ecs.NewReadRes[coresys.Time](),
		events: ecs.NewWriteRes[*event.Bus](),
	}
	s.sys = ecs.NewSystem("lifetime", s.update, s.timed, s.time, s.events)
	return s
}

func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }
func (s *LifetimeSystem) System() *ecs.System  { return s.sys }

func (s *LifetimeSystem) update(ctx *ecs.SystemContext) {
	t, ok := s.time.Get(ctx)
	if !ok {
		return
	}
	bus, hasBus := s.events.Get(ctx)
	dt := t.Get().Delta
	for row := range s.timed.Iter(ctx) {
		lt := ecs.MutOf[component.Lifetime](row).Get()
		lt.Remaining -= dt
		if lt.Remaining > 0 {
			continue
		}
		ctx.Commands().Delete(row.Entity())
		if hasBus {
			event.Emit(*bus.Get(), event.EntityExpired{Entity: row.Entity()})
		}
	}
}
