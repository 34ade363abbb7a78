package ecs

import (
	"go.uber.org/zap"
)

type commandKind uint8

const (
	cmdSpawn commandKind = iota
	cmdInsert
	cmdRemove
	cmdDelete
	cmdExec
	cmdRunSystem
)

type command struct {
	kind   commandKind
	entity Entity
	values []Value
	infos  []*componentInfo
	fn     func(w *World)
	system SystemID
}

// CommandBuffer queues world mutations for later. It belongs to one system
// or goroutine at a time and is applied in FIFO order by Write. It keeps a
// small pool of entities reserved from the allocator so spawning does not
// take the allocator lock per entity.
type CommandBuffer struct {
	world    *World
	commands []command
	reserved []Entity
	capacity int
}

func newCommandBuffer(w *World, capacity int) *CommandBuffer {
	cb := &CommandBuffer{world: w, capacity: capacity}
	cb.resize()
	return cb
}

// Len returns the number of queued commands.
func (cb *CommandBuffer) Len() int { return len(cb.commands) }

func (cb *CommandBuffer) Capacity() int { return cb.capacity }

// SetCapacity changes how many entities stay reserved, returning surplus
// ones to the allocator immediately.
func (cb *CommandBuffer) SetCapacity(n int) {
	cb.capacity = max(n, 0)
	cb.resize()
}

func (cb *CommandBuffer) resize() {
	a := cb.world.allocator
	for len(cb.reserved) < cb.capacity {
		cb.reserved = append(cb.reserved, a.Create())
	}
	for len(cb.reserved) > cb.capacity {
		last := len(cb.reserved) - 1
		a.Delete(cb.reserved[last])
		cb.reserved = cb.reserved[:last]
	}
}

func (cb *CommandBuffer) takeEntity() Entity {
	if n := len(cb.reserved); n > 0 {
		e := cb.reserved[n-1]
		cb.reserved = cb.reserved[:n-1]
		return e
	}
	return cb.world.allocator.Create()
}

// Insert reserves one entity per row and queues its spawn with tags plus the
// row's values. Values follow the same rules as World.Spawn.
func (cb *CommandBuffer) Insert(tags []any, rows ...[]any) []Entity {
	shared := valuesOf(tags)
	out := make([]Entity, len(rows))
	for i, row := range rows {
		values := make([]Value, 0, len(shared)+len(row))
		values = append(values, shared...)
		values = append(values, valuesOf(row)...)
		e := cb.takeEntity()
		cb.commands = append(cb.commands, command{kind: cmdSpawn, entity: e, values: values})
		out[i] = e
	}
	return out
}

// Spawn queues a single entity and returns its reserved id.
func (cb *CommandBuffer) Spawn(values ...any) Entity {
	return cb.Insert(nil, values)[0]
}

func (cb *CommandBuffer) AddComponent(e Entity, values ...any) {
	cb.commands = append(cb.commands, command{kind: cmdInsert, entity: e, values: valuesOf(values)})
}

func (cb *CommandBuffer) RemoveComponent(e Entity, ids ...ComponentID) {
	infos := make([]*componentInfo, len(ids))
	for i, id := range ids {
		infos[i] = components.get(id)
	}
	cb.commands = append(cb.commands, command{kind: cmdRemove, entity: e, infos: infos})
}

// AddTag queues a zero-sized marker component.
func (cb *CommandBuffer) AddTag(e Entity, tag any) {
	cb.AddComponent(e, tag)
}

// RemoveTag removes the component of tag's type.
func (cb *CommandBuffer) RemoveTag(e Entity, tag any) {
	v := valueOf(tag)
	cb.commands = append(cb.commands, command{kind: cmdRemove, entity: e, infos: []*componentInfo{v.info}})
}

// Delete queues a despawn.
func (cb *CommandBuffer) Delete(e Entity) {
	cb.commands = append(cb.commands, command{kind: cmdDelete, entity: e})
}

// Exec queues fn to run with exclusive world access.
func (cb *CommandBuffer) Exec(fn func(w *World)) {
	cb.commands = append(cb.commands, command{kind: cmdExec, fn: fn})
}

// RunSystem queues a run of a registered one-shot system. Failures are
// logged.
func (cb *CommandBuffer) RunSystem(id SystemID) {
	cb.commands = append(cb.commands, command{kind: cmdRunSystem, system: id})
}

// StartEntity begins a builder that queues one spawn on Build.
func (cb *CommandBuffer) StartEntity() *EntityBuilder {
	return &EntityBuilder{cb: cb}
}

// Write applies every queued command to w in the order queued, then refills
// or shrinks the reserved entity pool. Commands queued by hooks while
// writing are applied in the same pass. It panics when w is not the world
// the buffer was created for.
func (cb *CommandBuffer) Write(w *World) {
	if w != cb.world {
		panic("ecs: command buffer written to a world it was not created for")
	}
	n := 0
	for i := 0; i < len(cb.commands); i++ {
		c := cb.commands[i]
		cb.commands[i] = command{}
		cb.apply(w, c)
		n++
	}
	cb.commands = cb.commands[:0]
	cb.resize()
	w.log.Debug("command buffer flushed", zap.Int("commands", n))
}

func (cb *CommandBuffer) apply(w *World, c command) {
	switch c.kind {
	case cmdSpawn:
		w.spawnReserved(c.entity, c.values)
	case cmdInsert:
		if w.Contains(c.entity) {
			w.insert(c.entity, c.values)
		}
	case cmdRemove:
		if w.Contains(c.entity) {
			w.remove(c.entity, c.infos)
		}
	case cmdDelete:
		if !w.Despawn(c.entity) && w.allocator.Alive(c.entity) {
			// Reserved but never spawned.
			w.allocator.Delete(c.entity)
		}
	case cmdExec:
		c.fn(w)
	case cmdRunSystem:
		if err := w.RunSystem(c.system); err != nil {
			w.log.Warn("queued system run failed", zap.Error(err))
		}
	}
}

// Close drops queued commands and returns every entity the buffer still
// holds, reserved or queued for spawn, to the allocator.
func (cb *CommandBuffer) Close() {
	a := cb.world.allocator
	for _, c := range cb.commands {
		if c.kind == cmdSpawn {
			a.Delete(c.entity)
		}
	}
	cb.commands = nil
	for _, e := range cb.reserved {
		a.Delete(e)
	}
	cb.reserved = nil
	cb.capacity = 0
}

// EntityBuilder accumulates components for one entity.
type EntityBuilder struct {
	cb     *CommandBuffer
	values []any
}

func (b *EntityBuilder) With(values ...any) *EntityBuilder {
	b.values = append(b.values, values...)
	return b
}

func (b *EntityBuilder) WithTag(tag any) *EntityBuilder {
	b.values = append(b.values, tag)
	return b
}

// Build queues the spawn and returns the reserved entity.
func (b *EntityBuilder) Build() Entity {
	return b.cb.Insert(nil, b.values)[0]
}
