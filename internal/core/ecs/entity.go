package ecs

import (
	"fmt"
	"iter"
	"sync"
)

// Entity encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on delete to invalidate stale refs.
// Generations start at 1, so the zero Entity never names a live entity.
type Entity uint64

func NewEntity(index uint32, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }
func (e Entity) IsZero() bool       { return e == 0 }

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// EntityAllocator issues entity identities with generational indices and a
// free list. It is the only piece of world state shared by command buffers
// running on different goroutines, so every method takes the lock.
type EntityAllocator struct {
	mu          sync.Mutex
	generations []uint32
	alive       []bool
	freeList    []uint32
	live        int
}

func NewEntityAllocator() *EntityAllocator {
	return &EntityAllocator{
		generations: make([]uint32, 0, 1024),
		alive:       make([]bool, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

// Create issues a recycled index with its bumped generation, or a fresh index.
func (a *EntityAllocator) Create() Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createLocked()
}

func (a *EntityAllocator) createLocked() Entity {
	a.live++
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.alive[idx] = true
		return NewEntity(idx, a.generations[idx])
	}
	idx := uint32(len(a.generations))
	a.generations = append(a.generations, 1)
	a.alive = append(a.alive, true)
	return NewEntity(idx, 1)
}

// CreateEntities returns a lazy, unbounded sequence of freshly allocated
// entities. Every range over the sequence starts a new run; the caller stops
// it by breaking out of the loop.
func (a *EntityAllocator) CreateEntities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for {
			if !yield(a.Create()) {
				return
			}
		}
	}
}

// Alive reports whether e is the current generation of an allocated index.
func (a *EntityAllocator) Alive(e Entity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aliveLocked(e)
}

func (a *EntityAllocator) aliveLocked(e Entity) bool {
	idx := e.Index()
	if int(idx) >= len(a.generations) {
		return false
	}
	return a.alive[idx] && a.generations[idx] == e.Generation()
}

// Delete frees e for reuse and bumps its generation. Stale or unknown
// entities are ignored and report false.
func (a *EntityAllocator) Delete(e Entity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.aliveLocked(e) {
		return false
	}
	idx := e.Index()
	a.alive[idx] = false
	a.generations[idx]++
	if a.generations[idx] == 0 {
		a.generations[idx] = 1
	}
	a.freeList = append(a.freeList, idx)
	a.live--
	return true
}

// Len returns the number of allocated (not yet deleted) entities.
func (a *EntityAllocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}
