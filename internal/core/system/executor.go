package system

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"golang.org/x/sync/errgroup"
)

// Run executes one pass of the schedule on w, building it first when
// needed. Stages run in order; systems of a stage run concurrently on
// worker goroutines. Command buffers are applied at flush points only. A
// panicking system aborts the pass and the panic is re-raised here as a
// *SystemPanic.
func (s *Schedule) Run(w *ecs.World) {
	if s.world != nil && s.world != w {
		panic(fmt.Sprintf("schedule: %s run with a world it was not initialized for", s.name))
	}
	switch s.state {
	case StateInvalid:
		panic(fmt.Sprintf("schedule: %s is invalid; reconfigure and initialize it again", s.name))
	case StateUnbuilt:
		if err := s.Initialize(w); err != nil {
			panic(fmt.Sprintf("schedule: %s: %v", s.name, err))
		}
	}

	p := s.plan
	setResults := make([]int8, len(p.sets)) // 0 unknown, 1 run, -1 skip
	for _, stage := range p.stages {
		runnable := make([]*ecs.System, 0, len(stage))
		for _, ps := range stage {
			if s.shouldRun(w, p, ps, setResults) {
				runnable = append(runnable, ps.node.system)
			}
		}
		s.runStage(w, runnable)
		if s.flush == FlushStage {
			applyDeferred(w, runnable)
		}
	}
	if s.flush == FlushEnd {
		for _, stage := range p.stages {
			for _, ps := range stage {
				ps.node.system.ApplyDeferred(w)
			}
		}
	}
}

// shouldRun evaluates set conditions once per pass and the system's own
// conditions every time. Every condition of a node is evaluated, so their
// tick windows advance together.
func (s *Schedule) shouldRun(w *ecs.World, p *plan, ps *plannedSystem, setResults []int8) bool {
	run := true
	for _, slot := range ps.sets {
		if setResults[slot] == 0 {
			setResults[slot] = 1
			if !evaluateAll(w, p.sets[slot]) {
				setResults[slot] = -1
			}
		}
		if setResults[slot] < 0 {
			run = false
		}
	}
	if !run {
		return false
	}
	return evaluateAll(w, ps.conditions)
}

func evaluateAll(w *ecs.World, conds []*ecs.Condition) bool {
	ok := true
	for _, c := range conds {
		if !c.Evaluate(w) {
			ok = false
		}
	}
	return ok
}

func (s *Schedule) runStage(w *ecs.World, systems []*ecs.System) {
	if len(systems) == 0 {
		return
	}
	if len(systems) == 1 || systems[0].IsExclusive() {
		for _, sys := range systems {
			if sp := runGuarded(w, sys); sp != nil {
				panic(sp)
			}
		}
		return
	}
	var g errgroup.Group
	limit := s.workers
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for _, sys := range systems {
		g.Go(func() error {
			if sp := runGuarded(w, sys); sp != nil {
				return sp
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var sp *SystemPanic
		if errors.As(err, &sp) {
			panic(sp)
		}
		panic(err)
	}
}

func runGuarded(w *ecs.World, sys *ecs.System) (sp *SystemPanic) {
	defer func() {
		if r := recover(); r != nil {
			sp = &SystemPanic{System: sys.Name(), Value: r, Stack: debug.Stack()}
		}
	}()
	sys.Run(w)
	return nil
}

func applyDeferred(w *ecs.World, systems []*ecs.System) {
	for _, sys := range systems {
		sys.ApplyDeferred(w)
	}
}
