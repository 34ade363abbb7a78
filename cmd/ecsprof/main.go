// ecsprof profiles the storage hot paths: batch spawn through a command
// buffer, query iteration with writes, table migration and despawn.
//
//	go build ./cmd/ecsprof
//	./ecsprof -mode mem
//	go tool pprof -http=":8000" -nodefraction=0.001 ./ecsprof mem.pprof
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/pkg/profile"
	"go.uber.org/zap"
)

func main() {
	mode := flag.String("mode", "cpu", "profile mode: cpu, mem or none")
	rounds := flag.Int("rounds", 50, "worlds to build")
	iters := flag.Int("iters", 200, "spawn/iterate/despawn cycles per world")
	entities := flag.Int("entities", 1000, "entities per cycle")
	dir := flag.String("out", ".", "profile output directory")
	flag.Parse()

	var p interface{ Stop() }
	switch *mode {
	case "cpu":
		p = profile.Start(profile.CPUProfile, profile.ProfilePath(*dir), profile.NoShutdownHook)
	case "mem":
		p = profile.Start(profile.MemProfileAllocs, profile.ProfilePath(*dir), profile.NoShutdownHook)
	case "none":
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
	component.Register()
	run(*rounds, *iters, *entities)
	if p != nil {
		p.Stop()
	}
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		w := ecs.NewWorld(ecs.WithEntityCapacity(numEntities), ecs.WithCommandBufferSize(numEntities))
		sched := coresys.NewSchedule("profile", zap.NewNop())
		sched.AddSystem(integrate())
		if err := sched.Initialize(w); err != nil {
			panic(err)
		}

		rows := make([][]any, numEntities)
		for i := range rows {
			rows[i] = []any{component.Velocity{DX: 1, DY: float64(i)}}
		}

		for range iters {
			cb := w.NewCommandBuffer()
			cb.Insert(nil, rows...)
			cb.Write(w)
			cb.Close()

			sched.Run(w)

			// Migrate half of them through a second table, then despawn all.
			var all []ecs.Entity
			for e := range w.Entities() {
				all = append(all, e)
			}
			for i, e := range all {
				if i%2 == 0 {
					ecs.Insert(w, e, component.Lifetime{})
				}
			}
			for _, e := range all {
				w.Despawn(e)
			}
			w.ClearTrackers()
		}
	}
}

func integrate() *ecs.System {
	q := ecs.NewQueryParam(ecs.Writes[component.Position](), ecs.Reads[component.Velocity]())
	return ecs.NewSystem("integrate", func(ctx *ecs.SystemContext) {
		for row := range q.Iter(ctx) {
			v := ecs.RefOf[component.Velocity](row).Get()
			pos := ecs.MutOf[component.Position](row).Get()
			pos.X += v.DX
			pos.Y += v.DY
		}
	}, q)
}
