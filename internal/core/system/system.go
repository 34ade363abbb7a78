package system

import (
	"fmt"
	"time"
)

// Phase defines execution ordering within a single tick. Each phase is its
// own Schedule; commands queued in one phase are visible to the next.
type Phase int

const (
	PhaseFirst      Phase = iota // 0: swap event buffers, read input
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: game logic
	PhasePostUpdate              // 3: regen, spawn, expiry
	PhaseLast                    // 4: reporting, cleanup

	phaseCount
)

var phaseNames = [phaseCount]string{"First", "PreUpdate", "Update", "PostUpdate", "Last"}

func (p Phase) String() string {
	if p >= 0 && p < phaseCount {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Time is the resource the Runner updates before every tick.
type Time struct {
	Delta   time.Duration
	Elapsed time.Duration
	Ticks   uint64
}
