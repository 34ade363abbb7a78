package ecs

// Ref is a read-only handle to a stored value together with its change ticks,
// seen from the (lastRun, thisRun) window of whoever fetched it.
type Ref[T any] struct {
	value   *T
	ticks   *ComponentTicks
	lastRun Tick
	thisRun Tick
}

// Get returns the value. The pointer must not be written through.
func (r Ref[T]) Get() *T { return r.value }

// Value returns a copy of the value.
func (r Ref[T]) Value() T { return *r.value }

func (r Ref[T]) IsAdded() bool   { return r.ticks.IsAdded(r.lastRun, r.thisRun) }
func (r Ref[T]) IsChanged() bool { return r.ticks.IsChanged(r.lastRun, r.thisRun) }

func (r Ref[T]) LastChanged() Tick { return r.ticks.Changed }
func (r Ref[T]) Added() Tick       { return r.ticks.Added }

// Mut is a change-tracked mutable handle. Taking the pointer through Get
// stamps the value as changed at thisRun; Value and the Is* methods never do.
type Mut[T any] struct {
	value   *T
	ticks   *ComponentTicks
	lastRun Tick
	thisRun Tick
}

// Get returns a writable pointer and marks the value changed.
func (m Mut[T]) Get() *T {
	m.ticks.SetChanged(m.thisRun)
	return m.value
}

// Set overwrites the value and marks it changed.
func (m Mut[T]) Set(v T) {
	*m.Get() = v
}

// Value returns a copy of the value without marking it changed.
func (m Mut[T]) Value() T { return *m.value }

// BypassChangeDetection returns a writable pointer without stamping. Writes
// made through it are invisible to Changed filters.
func (m Mut[T]) BypassChangeDetection() *T { return m.value }

// SetChanged stamps the value as changed at thisRun.
func (m Mut[T]) SetChanged() { m.ticks.SetChanged(m.thisRun) }

// SetLastChanged overrides the changed tick directly.
func (m Mut[T]) SetLastChanged(t Tick) { m.ticks.Changed = t }

func (m Mut[T]) IsAdded() bool   { return m.ticks.IsAdded(m.lastRun, m.thisRun) }
func (m Mut[T]) IsChanged() bool { return m.ticks.IsChanged(m.lastRun, m.thisRun) }

func (m Mut[T]) LastChanged() Tick { return m.ticks.Changed }

// AsRef downgrades the handle without stamping.
func (m Mut[T]) AsRef() Ref[T] {
	return Ref[T]{value: m.value, ticks: m.ticks, lastRun: m.lastRun, thisRun: m.thisRun}
}

// SetIfNeq writes v and stamps only when it differs from the stored value.
// Reports whether a write happened.
func SetIfNeq[T comparable](m Mut[T], v T) bool {
	if *m.value == v {
		return false
	}
	*m.Get() = v
	return true
}

// ReplaceIfNeq is SetIfNeq that also returns the previous value when a write
// happened.
func ReplaceIfNeq[T comparable](m Mut[T], v T) (T, bool) {
	old := *m.value
	if old == v {
		var zero T
		return zero, false
	}
	*m.Get() = v
	return old, true
}
