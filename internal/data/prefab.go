package data

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/l1jgo/ecscore/internal/component"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"gopkg.in/yaml.v3"
)

// Prefab describes a batch of entities spawned together.
type Prefab struct {
	Name     string        `yaml:"name"`
	Count    int           `yaml:"count"`
	Position *PositionSpec `yaml:"position"`
	Velocity *VelocitySpec `yaml:"velocity"`
	Health   *HealthSpec   `yaml:"health"`
	Lifetime time.Duration `yaml:"lifetime"` // 0 = forever
	Team     int           `yaml:"team"`     // 0 = none
	Hostile  bool          `yaml:"hostile"`
}

type PositionSpec struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Spread float64 `yaml:"spread"` // random offset in [-spread, spread] per axis
}

type VelocitySpec struct {
	DX float64 `yaml:"dx"`
	DY float64 `yaml:"dy"`
}

type HealthSpec struct {
	Current int32 `yaml:"current"`
	Max     int32 `yaml:"max"`
	Regen   int32 `yaml:"regen"`
}

type prefabListFile struct {
	Prefabs []Prefab `yaml:"prefabs"`
}

// PrefabTable holds all prefabs indexed by name.
type PrefabTable struct {
	prefabs map[string]*Prefab
	order   []string
}

//go:embed prefabs.yaml
var defaultPrefabs []byte

// DefaultPrefabTable returns the built-in prefab set.
func DefaultPrefabTable() *PrefabTable {
	t, err := ParsePrefabTable(defaultPrefabs)
	if err != nil {
		panic("data: built-in prefabs: " + err.Error())
	}
	return t
}

// LoadPrefabTable loads prefabs from a YAML file.
func LoadPrefabTable(path string) (*PrefabTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefabs: %w", err)
	}
	t, err := ParsePrefabTable(data)
	if err != nil {
		return nil, fmt.Errorf("parse prefabs %s: %w", path, err)
	}
	return t, nil
}

func ParsePrefabTable(data []byte) (*PrefabTable, error) {
	var f prefabListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	t := &PrefabTable{prefabs: make(map[string]*Prefab, len(f.Prefabs))}
	for i := range f.Prefabs {
		p := &f.Prefabs[i]
		if p.Name == "" {
			return nil, fmt.Errorf("prefab %d: missing name", i)
		}
		if _, dup := t.prefabs[p.Name]; dup {
			return nil, fmt.Errorf("prefab %q defined twice", p.Name)
		}
		if p.Count < 0 {
			return nil, fmt.Errorf("prefab %q: negative count", p.Name)
		}
		if p.Count == 0 {
			p.Count = 1
		}
		t.prefabs[p.Name] = p
		t.order = append(t.order, p.Name)
	}
	return t, nil
}

// Get returns a prefab by name.
func (t *PrefabTable) Get(name string) *Prefab {
	return t.prefabs[name]
}

// Names lists prefabs in file order.
func (t *PrefabTable) Names() []string {
	return append([]string(nil), t.order...)
}

func (t *PrefabTable) Count() int {
	return len(t.prefabs)
}

// Rows builds one component row per entity of p, plus the tags shared by
// all of them, ready for CommandBuffer.Insert.
func (p *Prefab) Rows(rng *rand.Rand) (tags []any, rows [][]any) {
	tags = append(tags, ecs.C(component.Prefab{Name: p.Name}))
	if p.Hostile {
		tags = append(tags, ecs.C(component.Hostile{}))
	}
	if p.Team != 0 {
		tags = append(tags, ecs.C(component.Team{ID: p.Team}))
	}
	rows = make([][]any, p.Count)
	for i := range rows {
		var row []any
		if p.Position != nil {
			pos := component.Position{X: p.Position.X, Y: p.Position.Y}
			if s := p.Position.Spread; s > 0 {
				pos.X += (rng.Float64()*2 - 1) * s
				pos.Y += (rng.Float64()*2 - 1) * s
			}
			row = append(row, ecs.C(pos))
		}
		if p.Velocity != nil {
			row = append(row, ecs.C(component.Velocity{DX: p.Velocity.DX, DY: p.Velocity.DY}))
		}
		if p.Health != nil {
			hp := component.Health{Current: p.Health.Current, Max: p.Health.Max}
			if hp.Max == 0 {
				hp.Max = hp.Current
			}
			row = append(row, ecs.C(hp), ecs.C(component.Regen{PerSecond: p.Health.Regen}))
		}
		if p.Lifetime > 0 {
			row = append(row, ecs.C(component.Lifetime{Remaining: p.Lifetime}))
		}
		rows[i] = row
	}
	return tags, rows
}

// Spawn queues every entity of p on cb and returns the reserved ids.
func (p *Prefab) Spawn(cb *ecs.CommandBuffer, rng *rand.Rand) []ecs.Entity {
	tags, rows := p.Rows(rng)
	return cb.Insert(tags, rows...)
}
