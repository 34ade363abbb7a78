package system

import (
	"testing"
	"time"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/data"
	"github.com/l1jgo/ecscore/internal/persist"
	"github.com/l1jgo/ecscore/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const step = 100 * time.Millisecond

type memSink struct{ reports []persist.WorldReport }

func (m *memSink) Record(r persist.WorldReport) { m.reports = append(m.reports, r) }

func prefabCount(w *ecs.World, name string) int {
	n := 0
	for row := range w.Query(ecs.Reads[component.Prefab]()).Iter() {
		if ecs.RefOf[component.Prefab](row).Value().Name == name {
			n++
		}
	}
	return n
}

func TestDemoSimulation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := ecs.NewWorld(ecs.WithLogger(zap.New(core)))
	r := coresys.NewRunner(zaptest.NewLogger(t), coresys.WithAmbiguityDetection(coresys.AmbiguityError))
	Install(w, r, data.DefaultPrefabTable(), config.DemoConfig{Seed: 3, ReportEvery: 5})
	engine, err := scripting.NewEngine("", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	ecs.InsertResource(w, engine)
	sink := &memSink{}
	ecs.InsertResource[ReportSink](w, sink)
	if err := r.Initialize(w); err != nil {
		t.Fatalf("demo schedule has build errors: %v", err)
	}

	r.Tick(w, step)
	if w.Len() != 68 {
		t.Fatalf("first tick spawned %d entities, want 68", w.Len())
	}
	r.Tick(w, step)
	if st, _ := ecs.Resource[Stats](w); st.Spawned != 68 {
		t.Errorf("stats counted %d spawns", st.Spawned)
	}

	// Sparks live for two seconds.
	for range 23 {
		r.Tick(w, step)
	}
	if n := prefabCount(w, "spark"); n != 0 {
		t.Errorf("%d sparks outlived their lifetime", n)
	}
	if st, _ := ecs.Resource[Stats](w); st.Expired < 20 {
		t.Errorf("stats counted %d expiries, want at least 20", st.Expired)
	}
	if n := w.Query(ecs.With[component.Hostile]()).Count(); n != 8 {
		t.Errorf("%d hostiles before the first wave, want 8", n)
	}
	if n := logs.FilterMessage("world report").Len(); n != 5 {
		t.Errorf("%d reports in 25 ticks, want 5", n)
	}
	if len(sink.reports) != 5 || sink.reports[4].Tick != 25 || sink.reports[4].Hostile != 8 {
		t.Errorf("sink got %+v", sink.reports)
	}

	// Crossing ten seconds of game time brings the next wave.
	r.Tick(w, 10*time.Second)
	if n := w.Query(ecs.With[component.Hostile]()).Count(); n != 16 {
		t.Errorf("%d hostiles after the wave, want 16", n)
	}
}

func TestCombatKillsTarget(t *testing.T) {
	component.Register()
	w := ecs.NewWorld(ecs.WithLogger(zaptest.NewLogger(t)))
	bus := event.Install(w)
	hunter := w.Spawn(component.Position{}, component.Hostile{})
	prey := w.Spawn(component.Position{X: 1}, component.Health{Current: 3, Max: 3})
	w.Spawn(component.Position{X: 50}, component.Health{Current: 3, Max: 3})

	s := coresys.NewSchedule("combat", zaptest.NewLogger(t))
	coresys.Chain(
		s.AddSystem(NewTargetingSystem().System()),
		s.AddSystem(NewCombatSystem().System()),
		s.AddSystem(NewCleanupSystem().System()),
	)

	s.Run(w)
	if got := ecs.RelationTargets[component.Targeting](w, hunter); len(got) != 1 || got[0] != prey {
		t.Fatalf("hunter targets %v, want the nearest prey %v", got, prey)
	}
	s.Run(w)
	if hp, _ := ecs.Get[component.Health](w, prey); hp.Current != 1 {
		t.Errorf("prey health = %d after two passes, want 1", hp.Current)
	}
	s.Run(w)
	if w.Contains(prey) {
		t.Fatal("prey survived at zero health")
	}
	if got := ecs.RelationTargets[component.Targeting](w, hunter); len(got) != 0 {
		t.Errorf("hunter still targets %v", got)
	}
	bus.SwapBuffers()
	if lost := event.Read[event.TargetLost](bus); len(lost) != 1 || lost[0].Source != hunter {
		t.Errorf("target lost events = %v", lost)
	}
}

func TestEveryInterval(t *testing.T) {
	w := ecs.NewWorld()
	cond := EveryInterval(time.Second)
	if cond.Evaluate(w) {
		t.Error("true without a clock")
	}
	for _, c := range []struct {
		elapsed time.Duration
		want    bool
	}{
		{500 * time.Millisecond, false},
		{time.Second, true},
		{1500 * time.Millisecond, false},
		{3200 * time.Millisecond, true},
		{3500 * time.Millisecond, false},
		{4 * time.Second, true},
	} {
		ecs.InsertResource(w, coresys.Time{Elapsed: c.elapsed})
		if got := cond.Evaluate(w); got != c.want {
			t.Errorf("elapsed %s: %v, want %v", c.elapsed, got, c.want)
		}
	}
}

func TestEveryTicks(t *testing.T) {
	w := ecs.NewWorld()
	cond := EveryTicks(3)
	var fired []uint64
	for tick := uint64(1); tick <= 9; tick++ {
		ecs.InsertResource(w, coresys.Time{Ticks: tick})
		if cond.Evaluate(w) {
			fired = append(fired, tick)
		}
	}
	if len(fired) != 3 || fired[0] != 3 || fired[2] != 9 {
		t.Errorf("fired on %v", fired)
	}
	if EveryTicks(0).Evaluate(w) {
		t.Error("EveryTicks(0) fired")
	}
}
