package component

import (
	"sync"
	"time"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
)

// Position is a point on the demo plane.
type Position struct {
	X, Y float64
}

// Velocity moves Position every tick. Inserting it also inserts a zero
// Position if the entity has none.
type Velocity struct {
	DX, DY float64 // units per second
}

type Health struct {
	Current int32
	Max     int32
}

// Regen restores Health per elapsed second.
type Regen struct {
	PerSecond int32
	acc       time.Duration
}

// Accumulate adds dt and returns how many whole seconds have elapsed.
func (r *Regen) Accumulate(dt time.Duration) int32 {
	r.acc += dt
	n := int32(r.acc / time.Second)
	r.acc -= time.Duration(n) * time.Second
	return n
}

// Lifetime despawns the entity once Remaining reaches zero.
type Lifetime struct {
	Remaining time.Duration
}

// Team changes rarely and is stored in a sparse set.
type Team struct {
	ID int
}

func (Team) StorageKind() ecs.StorageKind { return ecs.StorageSparseSet }

// Hostile marks entities that pick targets.
type Hostile struct{}

// Dead is added by the Health hook when Current drops to zero.
type Dead struct{}

func (Dead) StorageKind() ecs.StorageKind { return ecs.StorageSparseSet }

// Targeting is the relation from a hostile entity to what it attacks.
type Targeting struct {
	Damage int32
}

// Prefab records which prefab an entity was spawned from.
type Prefab struct {
	Name string
}

var registerOnce sync.Once

// Register declares the demo types with their hooks and requirements. Safe
// to call more than once.
func Register() {
	registerOnce.Do(func() {
		ecs.Register[Position]()
		ecs.Register[Velocity](ecs.Requires(func() Position { return Position{} }))
		ecs.Register[Regen]()
		ecs.Register[Health](
			ecs.Requires(func() Regen { return Regen{PerSecond: 1} }),
			ecs.WithHooks(ecs.Hooks{OnInsert: markDead}),
		)
		ecs.Register[Lifetime]()
		ecs.Register[Team]()
		ecs.Register[Hostile]()
		ecs.Register[Dead]()
		ecs.Register[Prefab]()
		ecs.RegisterRelation[Targeting](ecs.WithHooks(ecs.Hooks{OnRemove: targetLost}))
	})
}

func markDead(w *ecs.World, ctx ecs.HookContext) {
	h, ok := ecs.Get[Health](w, ctx.Entity)
	if ok && h.Current <= 0 && !ecs.Has[Dead](w, ctx.Entity) {
		ctx.Commands.AddTag(ctx.Entity, Dead{})
	}
}

// targetLost reports a source losing its last target, either because it
// dropped the relation or because the target despawned.
func targetLost(w *ecs.World, ctx ecs.HookContext) {
	if b, ok := ecs.Resource[*event.Bus](w); ok {
		event.Emit(*b, event.TargetLost{Source: ctx.Entity})
	}
}
