package system

import (
	"math"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/scripting"
)

const defaultDamage = 1

// TargetingSystem gives every idle hostile the nearest living non-hostile
// entity as its target.
// Phase 2 (Update), after movement.
type TargetingSystem struct {
	sys     *ecs.System
	hunters *ecs.QueryParam
	prey    *ecs.QueryParam
	damage  int32
}

func NewTargetingSystem() *TargetingSystem {
	s := &TargetingSystem{
		hunters: ecs.NewQueryParam(
			ecs.Reads[component.Position](),
			ecs.With[component.Hostile](),
			ecs.WithoutRelation[component.Targeting](),
			ecs.Without[component.Dead](),
		),
		prey: ecs.NewQueryParam(
			ecs.Reads[component.Position](),
			ecs.With[component.Health](),
			ecs.Without[component.Hostile](),
			ecs.Without[component.Dead](),
		),
		damage: defaultDamage,
	}
	s.sys = ecs.NewSystem("targeting", s.update, s.hunters, s.prey)
	return s
}

func (s *TargetingSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }
func (s *TargetingSystem) System() *ecs.System  { return s.sys }

func (s *TargetingSystem) update(ctx *ecs.SystemContext) {
	type candidate struct {
		e   ecs.Entity
		pos component.Position
	}
	var prey []candidate
	for row := range s.prey.Iter(ctx) {
		prey = append(prey, candidate{row.Entity(), ecs.RefOf[component.Position](row).Value()})
	}
	if len(prey) == 0 {
		return
	}
	for row := range s.hunters.Iter(ctx) {
		hp := ecs.RefOf[component.Position](row).Value()
		best, bestDist := ecs.Entity(0), math.Inf(1)
		for _, c := range prey {
			if d := math.Hypot(c.pos.X-hp.X, c.pos.Y-hp.Y); d < bestDist {
				best, bestDist = c.e, d
			}
		}
		hunter, damage := row.Entity(), s.damage
		ctx.Commands().Exec(func(w *ecs.World) {
			ecs.AddRelation(w, hunter, best, component.Targeting{Damage: damage})
		})
	}
}

// CombatSystem applies each hostile's Targeting damage to its targets and
// marks the ones that drop to zero as Dead. With a *scripting.Engine
// resource the Lua calc_damage formula decides hits and damage; without one
// every edge hits for its base damage.
// Phase 2 (Update), after targeting.
type CombatSystem struct {
	sys       *ecs.System
	attackers *ecs.QueryParam
	victims   *ecs.QueryParam
	engine    *ecs.WriteRes[*scripting.Engine]
}

func NewCombatSystem() *CombatSystem {
	s := &CombatSystem{
		attackers: ecs.NewQueryParam(
			ecs.ReadsRelation[component.Targeting](),
			ecs.Reads[component.Position](),
			ecs.Without[component.Dead](),
		),
		victims: ecs.NewQueryParam(
			ecs.Writes[component.Health](),
			ecs.Reads[component.Position](),
			ecs.Without[component.Dead](),
		),
		engine: ecs.NewWriteRes[*scripting.Engine](),
	}
	s.sys = ecs.NewSystem("combat", s.update, s.attackers, s.victims, s.engine)
	return s
}

func (s *CombatSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }
func (s *CombatSystem) System() *ecs.System  { return s.sys }

func (s *CombatSystem) update(ctx *ecs.SystemContext) {
	var engine *scripting.Engine
	if m, ok := s.engine.Get(ctx); ok {
		// The VM is not state anyone reacts to.
		engine = *m.BypassChangeDetection()
	}
	for row := range s.attackers.Iter(ctx) {
		from := ecs.RefOf[component.Position](row).Value()
		for _, rel := range ecs.RelationsOf[component.Targeting](row) {
			victim, ok := s.victims.Get(ctx, rel.Target)
			if !ok {
				continue
			}
			hp := ecs.MutOf[component.Health](victim)
			cur := hp.Value()
			if cur.Current <= 0 {
				continue
			}
			damage := rel.Value.Damage
			if engine != nil {
				to := ecs.RefOf[component.Position](victim).Value()
				res := engine.CalcDamage(scripting.DamageContext{
					Base:      damage,
					Distance:  math.Hypot(to.X-from.X, to.Y-from.Y),
					TargetHP:  cur.Current,
					TargetMax: cur.Max,
				})
				if !res.IsHit || res.Damage <= 0 {
					continue
				}
				damage = res.Damage
			}
			h := hp.Get()
			h.Current = max(h.Current-damage, 0)
			if h.Current == 0 {
				ctx.Commands().AddTag(rel.Target, component.Dead{})
			}
		}
	}
}
