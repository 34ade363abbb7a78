package event

import (
	"slices"
	"testing"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

func TestBusDoubleBuffer(t *testing.T) {
	b := NewBus()
	Emit(b, EntityExpired{Entity: 1})
	if n := len(Read[EntityExpired](b)); n != 0 {
		t.Fatalf("event readable in the tick it was emitted: %d", n)
	}
	b.SwapBuffers()
	Emit(b, EntityExpired{Entity: 2})
	if got := Read[EntityExpired](b); !slices.Equal(got, []EntityExpired{{Entity: 1}}) {
		t.Errorf("front = %v", got)
	}
	b.SwapBuffers()
	if got := Read[EntityExpired](b); !slices.Equal(got, []EntityExpired{{Entity: 2}}) {
		t.Errorf("front after second swap = %v", got)
	}
	b.SwapBuffers()
	if n := len(Read[EntityExpired](b)); n != 0 {
		t.Errorf("%d stale events survived two swaps", n)
	}
}

func TestDispatchAll(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(ev EntitySpawned) { got = append(got, ev.Prefab) })
	Emit(b, EntitySpawned{Prefab: "a"})
	Emit(b, EntitySpawned{Prefab: "b"})
	Emit(b, TargetLost{})
	b.SwapBuffers()
	b.DispatchAll()
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("handled = %v", got)
	}
}

func TestUpdateSystem(t *testing.T) {
	w := ecs.NewWorld()
	b := Install(w)
	sys := UpdateSystem()
	Emit(b, TargetLost{Source: 9})
	sys.Run(w)
	if got := Read[TargetLost](b); len(got) != 1 || got[0].Source != 9 {
		t.Errorf("after update = %v", got)
	}
	sys.Run(w)
	if n := len(Read[TargetLost](b)); n != 0 {
		t.Errorf("%d events still readable a tick later", n)
	}
}
