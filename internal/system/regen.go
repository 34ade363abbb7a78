package system

import (
	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/scripting"
)

// RegenSystem restores Health for living entities.
// Phase 3 (PostUpdate). Runs every tick; each Regen accumulates elapsed
// time and heals once per whole second.
type RegenSystem struct {
	sys    *ecs.System
	living *ecs.QueryParam
	time   *ecs.ReadRes[coresys.Time]
	engine *ecs.WriteRes[*scripting.Engine]
}

func NewRegenSystem() *RegenSystem {
	s := &RegenSystem{
		living: ecs.NewQueryParam(
			ecs.Writes[component.Health](),
			ecs.Writes[component.Regen](),
			ecs.Without[component.Dead](),
		),
		time:   ecs.NewReadRes[coresys.Time](),
		engine: ecs.NewWriteRes[*scripting.Engine](),
	}
	s.sys = ecs.NewSystem("regen", s.update, s.living, s.time, s.engine)
	return s
}

func (s *RegenSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }
func (s *RegenSystem) System() *ecs.System  { return s.sys }

func (s *RegenSystem) update(ctx *ecs.SystemContext) {
	t, ok := s.time.Get(ctx)
	if !ok {
		return
	}
	var engine *scripting.Engine
	if m, ok := s.engine.Get(ctx); ok {
		engine = *m.BypassChangeDetection()
	}
	dt := t.Get().Delta
	for row := range s.living.Iter(ctx) {
		// The accumulator is bookkeeping, not a change anyone reacts to.
		regen := ecs.MutOf[component.Regen](row).BypassChangeDetection()
		secs := regen.Accumulate(dt)
		if secs == 0 || regen.PerSecond == 0 {
			continue
		}
		hp := ecs.MutOf[component.Health](row)
		cur := hp.Value()
		next := min(cur.Current+secs*regen.PerSecond, cur.Max)
		if engine != nil {
			next = engine.CalcRegen(regen.PerSecond, secs, cur.Current, cur.Max)
		}
		// Full-health entities are left untouched so Changed[Health] stays quiet.
		ecs.SetIfNeq(hp, component.Health{Current: next, Max: cur.Max})
	}
}
