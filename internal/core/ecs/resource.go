package ecs

type resourceSlot struct {
	value any // *T
	ticks ComponentTicks
}

// InsertResource stores v as the world's T, replacing any previous value.
func InsertResource[T any](w *World, v T) {
	info := resourceInfoFor[T]()
	tick := w.ChangeTick()
	if slot, ok := w.resources[info.id]; ok {
		*slot.value.(*T) = v
		slot.ticks.SetChanged(tick)
		return
	}
	p := new(T)
	*p = v
	w.resources[info.id] = &resourceSlot{value: p, ticks: newTicks(tick)}
}

// InitResource inserts the zero T unless one is present.
func InitResource[T any](w *World) {
	if !HasResource[T](w) {
		var zero T
		InsertResource(w, zero)
	}
}

// Resource returns a read-only pointer to the world's T.
func Resource[T any](w *World) (*T, bool) {
	slot, ok := w.resources[resourceInfoFor[T]().id]
	if !ok {
		return nil, false
	}
	return slot.value.(*T), true
}

// ResourceMut returns a change-tracked handle to the world's T, windowed by
// the world's tracker ticks.
func ResourceMut[T any](w *World) (Mut[T], bool) {
	return resourceMut[T](w, w.lastChangeTick, w.ChangeTick())
}

func resourceMut[T any](w *World, lastRun, thisRun Tick) (Mut[T], bool) {
	slot, ok := w.resources[resourceInfoFor[T]().id]
	if !ok {
		return Mut[T]{}, false
	}
	return Mut[T]{value: slot.value.(*T), ticks: &slot.ticks, lastRun: lastRun, thisRun: thisRun}, true
}

func resourceRef[T any](w *World, lastRun, thisRun Tick) (Ref[T], bool) {
	slot, ok := w.resources[resourceInfoFor[T]().id]
	if !ok {
		return Ref[T]{}, false
	}
	return Ref[T]{value: slot.value.(*T), ticks: &slot.ticks, lastRun: lastRun, thisRun: thisRun}, true
}

// RemoveResource takes T out of the world.
func RemoveResource[T any](w *World) (T, bool) {
	id := resourceInfoFor[T]().id
	slot, ok := w.resources[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(w.resources, id)
	return *slot.value.(*T), true
}

func HasResource[T any](w *World) bool {
	_, ok := w.resources[resourceInfoFor[T]().id]
	return ok
}
