package system

import (
	"time"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
)

// EveryInterval is true on the first tick at or after each multiple of d of
// elapsed game time.
func EveryInterval(d time.Duration) *ecs.Condition {
	clock := ecs.NewReadRes[coresys.Time]()
	var next time.Duration
	return ecs.NewCondition("every_"+d.String(), func(ctx *ecs.SystemContext) bool {
		t, ok := clock.Get(ctx)
		if !ok {
			return false
		}
		elapsed := t.Get().Elapsed
		if next == 0 {
			next = d
		}
		if elapsed < next {
			return false
		}
		for next <= elapsed {
			next += d
		}
		return true
	}, clock)
}

// EveryTicks is true on every n-th runner tick.
func EveryTicks(n uint64) *ecs.Condition {
	clock := ecs.NewReadRes[coresys.Time]()
	return ecs.NewCondition("every_ticks", func(ctx *ecs.SystemContext) bool {
		t, ok := clock.Get(ctx)
		return ok && n > 0 && t.Get().Ticks%n == 0
	}, clock)
}
