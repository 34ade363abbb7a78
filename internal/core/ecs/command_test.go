package ecs

import (
	"slices"
	"testing"
)

func TestCommandBufferAppliesInOrder(t *testing.T) {
	w := NewWorld(WithCommandBufferSize(4))
	e := w.Spawn(C(testPos{}))
	cb := w.NewCommandBuffer()

	spawned := cb.Spawn(C(testPos{5, 5}))
	cb.AddComponent(e, C(testVel{1, 1}))
	cb.RemoveComponent(e, ComponentIDOf[testPos]())
	var order []int
	cb.Exec(func(w *World) { order = append(order, 1) })
	cb.Exec(func(w *World) {
		order = append(order, 2)
		// Queued while writing; applied in the same pass.
		cb.Exec(func(*World) { order = append(order, 3) })
	})
	if w.Contains(spawned) || Has[testVel](w, e) {
		t.Fatal("commands applied before Write")
	}
	if cb.Len() != 5 {
		t.Errorf("Len = %d, want 5", cb.Len())
	}

	cb.Write(w)
	if !w.Contains(spawned) {
		t.Error("queued spawn not applied")
	}
	if !Has[testVel](w, e) || Has[testPos](w, e) {
		t.Error("insert/remove not applied")
	}
	if !slices.Equal(order, []int{1, 2, 3}) {
		t.Errorf("exec order = %v", order)
	}
	if cb.Len() != 0 {
		t.Errorf("Len after Write = %d", cb.Len())
	}
}

func TestCommandBufferForeignWorldPanics(t *testing.T) {
	w1, w2 := NewWorld(), NewWorld()
	cb := w1.NewCommandBuffer()
	mustPanic(t, "Write to another world", func() { cb.Write(w2) })
}

func TestCommandBufferReservesEntities(t *testing.T) {
	w := NewWorld()
	cb := w.NewCommandBufferWithCapacity(8)
	if got := w.Allocator().Len(); got != 8 {
		t.Fatalf("reserved %d entities, want 8", got)
	}
	es := cb.Insert([]any{C(testTag{})}, []any{C(testPos{1, 0})}, []any{C(testPos{2, 0})})
	cb.Write(w)
	for _, e := range es {
		if !Has[testTag](w, e) || !Has[testPos](w, e) {
			t.Errorf("%s missing shared or row values", e)
		}
	}
	// Two used, pool refilled to capacity.
	if got := w.Allocator().Len(); got != 10 {
		t.Errorf("allocator Len = %d, want 10", got)
	}

	cb.SetCapacity(2)
	if got := w.Allocator().Len(); got != 4 {
		t.Errorf("allocator Len after shrink = %d, want 4", got)
	}

	pending := cb.Spawn(C(testPos{}))
	cb.Close()
	if w.Allocator().Alive(pending) {
		t.Error("Close leaked a pending spawn")
	}
	if got := w.Allocator().Len(); got != 2 {
		t.Errorf("allocator Len after Close = %d, want the 2 spawned", got)
	}
}

func TestCommandBufferDeleteReservedEntity(t *testing.T) {
	w := NewWorld()
	cb := w.NewCommandBufferWithCapacity(0)
	e := cb.Spawn(C(testPos{}))
	cb.Delete(e)
	cb.Write(w)
	if w.Contains(e) || w.Allocator().Alive(e) {
		t.Error("entity deleted in the same buffer still exists")
	}
}

func TestEntityBuilder(t *testing.T) {
	w := NewWorld()
	cb := w.NewCommandBuffer()
	e := cb.StartEntity().With(C(testPos{3, 4})).WithTag(C(testTag{})).Build()
	cb.Write(w)
	if p, ok := Get[testPos](w, e); !ok || *p != (testPos{3, 4}) || !Has[testTag](w, e) {
		t.Errorf("built entity = %v, %v", p, ok)
	}
	cb.RemoveTag(e, C(testTag{}))
	cb.Write(w)
	if Has[testTag](w, e) {
		t.Error("RemoveTag not applied")
	}
}
