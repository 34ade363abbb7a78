package system

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

type phased struct {
	phase Phase
	sys   *ecs.System
}

func (p phased) Phase() Phase        { return p.phase }
func (p phased) System() *ecs.System { return p.sys }

func TestRunnerPhaseOrder(t *testing.T) {
	w := newTestWorld(t)
	r := NewRunner(zaptest.NewLogger(t))
	r.Register(phased{PhaseLast, tracer("last")})
	r.Register(phased{PhaseUpdate, tracer("update")})
	r.Register(phased{PhaseFirst, tracer("first")})
	if err := r.Initialize(w); err != nil {
		t.Fatal(err)
	}
	r.Tick(w, time.Millisecond)
	if got := traced(w); !slices.Equal(got, []string{"first", "update", "last"}) {
		t.Errorf("trace = %v", got)
	}

	r.TickPhase(w, PhaseFirst, time.Millisecond)
	if got := traced(w); !slices.Equal(got, []string{"first", "update", "last", "first"}) {
		t.Errorf("trace after TickPhase = %v", got)
	}
}

func TestRunnerTime(t *testing.T) {
	w := newTestWorld(t)
	r := NewRunner(zaptest.NewLogger(t))
	clock := ecs.NewReadRes[Time]()
	var seen []Time
	r.Add(PhaseUpdate, ecs.NewSystem("clock", func(ctx *ecs.SystemContext) {
		if c, ok := clock.Get(ctx); ok {
			seen = append(seen, c.Value())
		}
	}, clock))

	r.Tick(w, 100*time.Millisecond)
	r.Tick(w, 50*time.Millisecond)
	want := []Time{
		{Delta: 100 * time.Millisecond, Elapsed: 100 * time.Millisecond, Ticks: 1},
		{Delta: 50 * time.Millisecond, Elapsed: 150 * time.Millisecond, Ticks: 2},
	}
	if !slices.Equal(seen, want) {
		t.Errorf("seen = %+v, want %+v", seen, want)
	}
}

func TestRunnerClearsTrackersEachTick(t *testing.T) {
	w := newTestWorld(t)
	r := NewRunner(zaptest.NewLogger(t))
	before := w.LastChangeTick()
	r.Tick(w, time.Millisecond)
	after := w.LastChangeTick()
	if after == before {
		t.Error("Tick did not move the tracker window")
	}
	r.Tick(w, time.Millisecond)
	if w.LastChangeTick() == after {
		t.Error("second Tick did not move the tracker window")
	}
}

func TestRunnerInitializeCombinesPhases(t *testing.T) {
	r := NewRunner(zaptest.NewLogger(t))
	for _, p := range []Phase{PhaseFirst, PhaseLast} {
		c := r.Add(p, reader("loop"))
		c.After(c)
	}
	err := r.Initialize(newTestWorld(t))
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("Initialize = %v", err)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("got %d phase errors, want 2", n)
	}
	if r.Schedule(PhaseUpdate).State() != StateBuilt {
		t.Error("a valid phase was not built")
	}
}

func TestPhaseString(t *testing.T) {
	if PhasePostUpdate.String() != "PostUpdate" || Phase(9).String() != "Phase(9)" {
		t.Errorf("names = %s %s", PhasePostUpdate, Phase(9))
	}
}
