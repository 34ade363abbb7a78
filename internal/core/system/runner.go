package system

import (
	"fmt"
	"time"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Runner executes the phase schedules in order each tick.
type Runner struct {
	phases [phaseCount]*Schedule
}

func NewRunner(log *zap.Logger, opts ...Option) *Runner {
	r := &Runner{}
	for p := range phaseCount {
		r.phases[p] = NewSchedule(p.String(), log, opts...)
	}
	return r
}

// Schedule returns the schedule of phase p.
func (r *Runner) Schedule(p Phase) *Schedule {
	return r.phases[p]
}

func (r *Runner) Add(p Phase, sys *ecs.System) *SystemConfig {
	return r.phases[p].AddSystem(sys)
}

// Provider is implemented by game systems that own an ecs.System and know
// their phase.
type Provider interface {
	Phase() Phase
	System() *ecs.System
}

func (r *Runner) Register(p Provider) *SystemConfig {
	return r.Add(p.Phase(), p.System())
}

// Initialize builds every phase against w. Errors of all phases are
// combined.
func (r *Runner) Initialize(w *ecs.World) error {
	var err error
	for _, s := range r.phases {
		if e := s.Initialize(w); e != nil {
			err = multierr.Append(err, fmt.Errorf("phase %s: %w", s.Name(), e))
		}
	}
	return err
}

// Close tears down every phase schedule.
func (r *Runner) Close() {
	for _, s := range r.phases {
		s.Close()
	}
}

// Tick advances Time by dt, runs all phases, then moves the world's change
// trackers forward and clamps old ticks when due.
func (r *Runner) Tick(w *ecs.World, dt time.Duration) {
	advanceTime(w, dt)
	for _, s := range r.phases {
		s.Run(w)
	}
	r.endTick(w)
}

// TickPhase advances Time and runs a single phase, e.g. PhaseFirst between
// full ticks. Change trackers are left alone.
func (r *Runner) TickPhase(w *ecs.World, phase Phase, dt time.Duration) {
	advanceTime(w, dt)
	r.phases[phase].Run(w)
}

func (r *Runner) endTick(w *ecs.World) {
	w.ClearTrackers()
	if w.CheckChangeTicks() {
		now := w.ChangeTick()
		for _, s := range r.phases {
			s.CheckTicks(now)
		}
	}
}

func advanceTime(w *ecs.World, dt time.Duration) {
	m, ok := ecs.ResourceMut[Time](w)
	if !ok {
		ecs.InsertResource(w, Time{Delta: dt, Elapsed: dt, Ticks: 1})
		return
	}
	t := m.Get()
	t.Delta = dt
	t.Elapsed += dt
	t.Ticks++
}
