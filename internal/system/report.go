package system

import (
	"cmp"
	"slices"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/persist"
	"go.uber.org/zap"
)

// ReportSink receives every world report. *persist.ReportWriter implements
// it; insert one as a ReportSink resource to keep reports.
type ReportSink interface {
	Record(persist.WorldReport)
}

// reportTop is how many of the weakest living entities are listed.
const reportTop = 3

// ReportSystem logs a summary of the world. It is exclusive and runs alone
// at the end of the tick.
// Phase 4 (Last).
type ReportSystem struct {
	sys   *ecs.System
	every uint64
}

func NewReportSystem(every uint64) *ReportSystem {
	s := &ReportSystem{every: every}
	s.sys = ecs.NewExclusiveSystem("report", s.update)
	return s
}

func (s *ReportSystem) Phase() coresys.Phase { return coresys.PhaseLast }
func (s *ReportSystem) System() *ecs.System  { return s.sys }

func (s *ReportSystem) Condition() *ecs.Condition { return EveryTicks(s.every) }

type rankedEntity struct {
	entity ecs.Entity
	health int32
}

func (s *ReportSystem) update(ctx *ecs.SystemContext) {
	w := ctx.World()

	var living []rankedEntity
	q := w.Query(ecs.Reads[component.Health](), ecs.Without[component.Dead]())
	for row := range q.Iter() {
		living = append(living, rankedEntity{row.Entity(), ecs.RefOf[component.Health](row).Value().Current})
	}
	slices.SortFunc(living, func(a, b rankedEntity) int {
		return cmp.Or(cmp.Compare(a.health, b.health), cmp.Compare(a.entity, b.entity))
	})
	weakest := make([]string, 0, reportTop)
	for i := 0; i < len(living) && i < reportTop; i++ {
		weakest = append(weakest, living[i].entity.String())
	}

	rep := persist.WorldReport{
		Entities: w.Len(),
		Tables:   w.TableCount(),
		Living:   len(living),
		Hostile:  w.Query(ecs.With[component.Hostile]()).Count(),
		Weakest:  weakest,
	}
	if t, ok := ecs.Resource[coresys.Time](w); ok {
		rep.Tick = t.Ticks
	}
	if st, ok := ecs.Resource[Stats](w); ok {
		rep.Spawned, rep.Expired, rep.TargetsLost = st.Spawned, st.Expired, st.TargetsLost
	}

	ctx.Logger().Info("world report",
		zap.Uint64("tick", rep.Tick),
		zap.Int("entities", rep.Entities),
		zap.Int("tables", rep.Tables),
		zap.Int("living", rep.Living),
		zap.Int("hostile", rep.Hostile),
		zap.Strings("weakest", rep.Weakest),
		zap.Int("spawned", rep.Spawned),
		zap.Int("expired", rep.Expired),
		zap.Int("targets_lost", rep.TargetsLost),
	)
	if sink, ok := ecs.Resource[ReportSink](w); ok {
		(*sink).Record(rep)
	}
}
