package ecs

// sparseStore is the type-erased view of a sparse set the World works with.
type sparseStore interface {
	has(e Entity) bool
	insertAny(e Entity, v any, tick Tick) (replaced bool)
	getAny(e Entity) (any, bool)
	ptrOf(e Entity) any
	setAny(e Entity, v any)
	removeAny(e Entity) (any, bool)
	ticksOf(e Entity) *ComponentTicks
	entities() []Entity
	len() int
	checkTicks(now Tick)
}

// sparseSet stores values densely and maps entity index to dense position.
// sparse holds position+1 so the zero value means absent.
type sparseSet[T any] struct {
	dense  []T
	ticks  []ComponentTicks
	owners []Entity
	sparse []int32
}

func newSparseSet[T any]() *sparseSet[T] {
	return &sparseSet[T]{}
}

func (s *sparseSet[T]) pos(e Entity) int {
	idx := int(e.Index())
	if idx >= len(s.sparse) {
		return -1
	}
	p := int(s.sparse[idx]) - 1
	if p < 0 || s.owners[p] != e {
		return -1
	}
	return p
}

func (s *sparseSet[T]) has(e Entity) bool { return s.pos(e) >= 0 }

func (s *sparseSet[T]) get(e Entity) (*T, *ComponentTicks, bool) {
	p := s.pos(e)
	if p < 0 {
		return nil, nil, false
	}
	return &s.dense[p], &s.ticks[p], true
}

func (s *sparseSet[T]) insert(e Entity, v T, tick Tick) bool {
	if p := s.pos(e); p >= 0 {
		s.dense[p] = v
		s.ticks[p].SetChanged(tick)
		return true
	}
	idx := int(e.Index())
	if idx >= len(s.sparse) {
		grown := make([]int32, max(idx+1, 2*len(s.sparse)))
		copy(grown, s.sparse)
		s.sparse = grown
	}
	s.dense = append(s.dense, v)
	s.ticks = append(s.ticks, newTicks(tick))
	s.owners = append(s.owners, e)
	s.sparse[idx] = int32(len(s.dense))
	return false
}

func (s *sparseSet[T]) remove(e Entity) (T, bool) {
	var zero T
	p := s.pos(e)
	if p < 0 {
		return zero, false
	}
	v := s.dense[p]
	last := len(s.dense) - 1
	if p < last {
		moved := s.owners[last]
		s.dense[p] = s.dense[last]
		s.ticks[p] = s.ticks[last]
		s.owners[p] = moved
		s.sparse[moved.Index()] = int32(p + 1)
	}
	s.dense[last] = zero
	s.dense = s.dense[:last]
	s.ticks = s.ticks[:last]
	s.owners = s.owners[:last]
	s.sparse[e.Index()] = 0
	return v, true
}

func (s *sparseSet[T]) insertAny(e Entity, v any, tick Tick) bool {
	return s.insert(e, v.(T), tick)
}

func (s *sparseSet[T]) getAny(e Entity) (any, bool) {
	v, _, ok := s.get(e)
	if !ok {
		return nil, false
	}
	return *v, true
}

func (s *sparseSet[T]) ptrOf(e Entity) any {
	v, _, ok := s.get(e)
	if !ok {
		return nil
	}
	return v
}

func (s *sparseSet[T]) setAny(e Entity, v any) {
	if p := s.pos(e); p >= 0 {
		s.dense[p] = v.(T)
	}
}

func (s *sparseSet[T]) removeAny(e Entity) (any, bool) {
	v, ok := s.remove(e)
	if !ok {
		return nil, false
	}
	return v, true
}

func (s *sparseSet[T]) ticksOf(e Entity) *ComponentTicks {
	_, t, ok := s.get(e)
	if !ok {
		return nil
	}
	return t
}

func (s *sparseSet[T]) entities() []Entity { return s.owners }

func (s *sparseSet[T]) len() int { return len(s.dense) }

func (s *sparseSet[T]) checkTicks(now Tick) {
	for i := range s.ticks {
		s.ticks[i].checkTicks(now)
		if inner, ok := any(&s.dense[i]).(innerTicks); ok {
			inner.checkTicks(now)
		}
	}
}
