package system

import (
	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/data"
)

// Sets grouping the demo systems inside their phases.
const (
	SetSimulation coresys.Set = "simulation" // movement, targeting, combat
	SetUpkeep     coresys.Set = "upkeep"     // regen, lifetime, cleanup
)

// Install registers the demo components, inserts the shared resources into
// w and adds every demo system to r. The runner still has to be initialized.
func Install(w *ecs.World, r *coresys.Runner, prefabs *data.PrefabTable, cfg config.DemoConfig) {
	component.Register()
	event.Install(w)
	ecs.InsertResource(w, prefabs)
	ecs.InitResource[Stats](w)

	r.Add(coresys.PhaseFirst, event.UpdateSystem())

	spawn := NewSpawnSystem(cfg.Seed)
	spawnCfg := r.Register(spawn).RunIf(spawn.Condition())
	r.Register(NewStatsSystem()).After(spawnCfg)

	movement := r.Register(NewMovementSystem()).InSet(SetSimulation)
	targeting := r.Register(NewTargetingSystem()).InSet(SetSimulation)
	combat := r.Register(NewCombatSystem()).InSet(SetSimulation)
	coresys.Chain(movement, targeting, combat)

	regen := r.Register(NewRegenSystem()).InSet(SetUpkeep)
	r.Register(NewLifetimeSystem()).InSet(SetUpkeep)
	r.Register(NewCleanupSystem()).InSet(SetUpkeep).After(regen)

	if cfg.ReportEvery > 0 {
		report := NewReportSystem(uint64(cfg.ReportEvery))
		r.Register(report).RunIf(report.Condition())
	}
}
