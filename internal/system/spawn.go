package system

import (
	"math/rand/v2"
	"time"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/data"
	"go.uber.org/zap"
)

// waveInterval is how often the wave prefabs are spawned again.
const waveInterval = 10 * time.Second

// SpawnSystem spawns every prefab once at start, then the hostile ones again
// every waveInterval. Entities are reserved by the command buffer and appear
// at the end of the phase.
// Phase 1 (PreUpdate).
type SpawnSystem struct {
	sys     *ecs.System
	prefabs *ecs.ReadRes[*data.PrefabTable]
	events  *ecs.WriteRes[*event.Bus]
	rng     *rand.Rand
	started bool
}

func NewSpawnSystem(seed uint64) *SpawnSystem {
	s := &SpawnSystem{
		prefabs: ecs.NewReadRes[*data.PrefabTable](),
		events:  ecs.NewWriteRes[*event.Bus](),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	s.sys = ecs.NewSystem("spawn", s.update, s.prefabs, s.events)
	return s
}

func (s *SpawnSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }
func (s *SpawnSystem) System() *ecs.System  { return s.sys }

// Condition gates the system to the first tick and each wave.
func (s *SpawnSystem) Condition() *ecs.Condition {
	return ecs.Or(ecs.RunOnce(), EveryInterval(waveInterval))
}

func (s *SpawnSystem) update(ctx *ecs.SystemContext) {
	ref, ok := s.prefabs.Get(ctx)
	if !ok {
		return
	}
	table := ref.Value()
	bus, hasBus := s.events.Get(ctx)
	initial := !s.started
	s.started = true

	cb := ctx.Commands()
	spawned := 0
	for _, name := range table.Names() {
		p := table.Get(name)
		if !initial && !p.Hostile {
			continue
		}
		for _, e := range p.Spawn(cb, s.rng) {
			if hasBus {
				event.Emit(*bus.Get(), event.EntitySpawned{Entity: e, Prefab: name})
			}
			spawned++
		}
	}
	ctx.Logger().Debug("spawn queued", zap.Int("entities", spawned), zap.Bool("initial", initial))
}
