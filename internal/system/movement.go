package system

import (
	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// MovementSystem integrates Velocity into Position.
// Phase 2 (Update).
type MovementSystem struct {
	sys    *ecs.System
	movers *ecs.QueryParam
	time   *ecs.ReadRes[coresys.Time]
}

func NewMovementSystem() *MovementSystem {
	s := &MovementSystem{
		movers: ecs.NewQueryParam(ecs.Writes[component.Position](), ecs.Reads[component.Velocity](), ecs.Without[component.Dead]()),
		time:   ecs.NewReadRes[coresys.Time](),
	}
	s.sys = ecs.NewSystem("movement", s.update, s.movers, s.time)
	return s
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }
func (s *MovementSystem) System() *ecs.System  { return s.sys }

func (s *MovementSystem) update(ctx *ecs.SystemContext) {
	t, ok := s.time.Get(ctx)
	if !ok {
		return
	}
	dt := t.Get().Delta.Seconds()
	for row := range s.movers.Iter(ctx) {
		v := ecs.RefOf[component.Velocity](row).Get()
		if v.DX == 0 && v.DY == 0 {
			continue
		}
		p := ecs.MutOf[component.Position](row).Get()
		p.X += v.DX * dt
		p.Y += v.DY * dt
	}
}
