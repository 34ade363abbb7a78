package system

import (
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// Stats is the resource holding running event totals.
type Stats struct {
	Spawned     int
	Expired     int
	TargetsLost int
}

// StatsSystem folds last tick's events into the Stats resource.
// Phase 1 (PreUpdate).
type StatsSystem struct {
	sys    *ecs.System
	events *ecs.ReadRes[*event.Bus]
	stats  *ecs.WriteRes[Stats]
}

func NewStatsSystem() *StatsSystem {
	s := &StatsSystem{
		events: ecs.NewReadRes[*event.Bus](),
		stats:  ecs.NewWriteRes[Stats](),
	}
	s.sys = ecs.NewSystem("stats", s.update, s.events, s.stats)
	return s
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }
func (s *StatsSystem) System() *ecs.System  { return s.sys }

func (s *StatsSystem) update(ctx *ecs.SystemContext) {
	bus, ok := s.events.Get(ctx)
	if !ok {
		return
	}
	m, ok := s.stats.Get(ctx)
	if !ok {
		return
	}
	b := bus.Value()
	spawned := len(event.Read[event.EntitySpawned](b))
	expired := len(event.Read[event.EntityExpired](b))
	lost := len(event.Read[event.TargetLost](b))
	if spawned+expired+lost == 0 {
		return
	}
	st := m.Get()
	st.Spawned += spawned
	st.Expired += expired
	st.TargetsLost += lost
}
