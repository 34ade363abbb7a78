package data

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
)

func TestParsePrefabTableRejects(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"missing name", "prefabs:\n  - count: 2\n", "missing name"},
		{"duplicate", "prefabs:\n  - name: a\n  - name: a\n", "defined twice"},
		{"negative count", "prefabs:\n  - name: a\n    count: -1\n", "negative count"},
		{"bad yaml", "prefabs: [\n", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrefabTable([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaultPrefabTable(t *testing.T) {
	table := DefaultPrefabTable()
	if got := table.Names(); !slices.Equal(got, []string{"villager", "raider", "spark"}) {
		t.Fatalf("names = %v", got)
	}
	raider := table.Get("raider")
	if !raider.Hostile || raider.Lifetime != 30*time.Second || raider.Count != 8 {
		t.Errorf("raider = %+v", raider)
	}
	if table.Get("missing") != nil {
		t.Error("Get of an unknown prefab returned a value")
	}
}

func TestRows(t *testing.T) {
	table, err := ParsePrefabTable([]byte(`
prefabs:
  - name: guard
    position: {x: 10, y: 10, spread: 2}
    health: {current: 30}
    team: 3
    hostile: true
`))
	if err != nil {
		t.Fatal(err)
	}
	p := table.Get("guard")
	if p.Count != 1 {
		t.Errorf("count defaulted to %d, want 1", p.Count)
	}
	tags, rows := p.Rows(rand.New(rand.NewPCG(1, 2)))
	if len(tags) != 3 {
		t.Errorf("got %d tags, want prefab, hostile and team", len(tags))
	}
	if len(rows) != 1 || len(rows[0]) != 3 {
		t.Fatalf("rows = %v", rows)
	}
}

func TestSpawn(t *testing.T) {
	component.Register()
	table, err := ParsePrefabTable([]byte(`
prefabs:
  - name: guard
    count: 5
    position: {x: 10, y: 10, spread: 2}
    velocity: {dx: 1}
    health: {current: 30}
    lifetime: 1s
`))
	if err != nil {
		t.Fatal(err)
	}
	w := ecs.NewWorld()
	cb := w.NewCommandBuffer()
	ids := table.Get("guard").Spawn(cb, rand.New(rand.NewPCG(7, 7)))
	cb.Write(w)
	cb.Close()

	if len(ids) != 5 || w.Len() != 5 {
		t.Fatalf("spawned %d ids, world has %d entities", len(ids), w.Len())
	}
	for _, e := range ids {
		pos, ok := ecs.Get[component.Position](w, e)
		if !ok || pos.X < 8 || pos.X > 12 || pos.Y < 8 || pos.Y > 12 {
			t.Errorf("%v: position %+v outside the spread", e, pos)
		}
		hp, _ := ecs.Get[component.Health](w, e)
		if hp == nil || hp.Max != 30 {
			t.Errorf("%v: health %+v, want max defaulted to current", e, hp)
		}
		if prefab, _ := ecs.Get[component.Prefab](w, e); prefab == nil || prefab.Name != "guard" {
			t.Errorf("%v: prefab tag %+v", e, prefab)
		}
		if !ecs.Has[component.Lifetime](w, e) || ecs.Has[component.Hostile](w, e) {
			t.Errorf("%v: wrong lifetime or hostile tags", e)
		}
	}
}
