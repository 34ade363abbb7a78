package ecs

// Tick is a wrapping change counter. Ticks are only ever compared relative to
// a (lastRun, thisRun) window, never as raw integers.
type Tick uint32

const (
	// CheckTickThreshold is how far the world tick may advance before stored
	// ticks are scanned and clamped.
	CheckTickThreshold Tick = 518_400_000

	// MaxChangeAge is the largest tick distance that cannot overflow before
	// the next scan.
	MaxChangeAge Tick = ^Tick(0) - (2*CheckTickThreshold - 1)
)

// IsNewerThan reports whether t happened after lastRun, as seen from thisRun.
// Works across wraparound as long as ticks are clamped every
// CheckTickThreshold increments.
func (t Tick) IsNewerThan(lastRun, thisRun Tick) bool {
	sinceInsert := min(thisRun.relativeTo(t), MaxChangeAge)
	sinceSystem := min(thisRun.relativeTo(lastRun), MaxChangeAge)
	return sinceSystem > sinceInsert
}

func (t Tick) relativeTo(other Tick) Tick {
	return t - other
}

// checkTick clamps t so it is never older than MaxChangeAge relative to now.
func (t *Tick) checkTick(now Tick) bool {
	if now.relativeTo(*t) > MaxChangeAge {
		*t = now - MaxChangeAge
		return true
	}
	return false
}

// ComponentTicks records when a stored value was added and last changed.
// Added never moves after insertion, so Added <= Changed holds throughout.
type ComponentTicks struct {
	Added   Tick
	Changed Tick
}

func newTicks(now Tick) ComponentTicks {
	return ComponentTicks{Added: now, Changed: now}
}

func (c ComponentTicks) IsAdded(lastRun, thisRun Tick) bool {
	return c.Added.IsNewerThan(lastRun, thisRun)
}

func (c ComponentTicks) IsChanged(lastRun, thisRun Tick) bool {
	return c.Changed.IsNewerThan(lastRun, thisRun)
}

// SetChanged stamps the value as changed at tick.
func (c *ComponentTicks) SetChanged(tick Tick) {
	c.Changed = tick
}

func (c *ComponentTicks) checkTicks(now Tick) {
	c.Added.checkTick(now)
	c.Changed.checkTick(now)
}
