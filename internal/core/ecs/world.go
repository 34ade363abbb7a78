package ecs

import (
	"fmt"
	"iter"
	"reflect"
	"sync/atomic"

	"github.com/l1jgo/ecscore/internal/config"
	"go.uber.org/zap"
)

// MaxRequiredDepth bounds how deep required components may pull in further
// required components.
const MaxRequiredDepth = 64

const defaultCommandBufferSize = 16

var nextWorldID atomic.Uint64

type entityLocation struct {
	owner  Entity
	table  tableID
	row    int32
	sparse mask
}

// World is the top-level ECS container. It owns the entity allocator, the
// archetype tables, sparse sets and resources. Structural changes need
// exclusive access; systems running concurrently only read it and queue
// their writes in command buffers.
type World struct {
	id        uint64
	log       *zap.Logger
	allocator *EntityAllocator

	locations   []entityLocation
	tables      []*table
	tableByMask map[mask]tableID
	sparse      [MaxComponentTypes]sparseStore
	relations   mask
	resources   map[ComponentID]*resourceSlot
	count       int

	changeTick     atomic.Uint32
	lastChangeTick Tick
	lastCheckTick  Tick

	commandBufferSize int
	hookCommands      *CommandBuffer
	depth             int
	flushing          bool

	systems systemRegistry
}

type WorldOption func(*World)

func WithLogger(log *zap.Logger) WorldOption {
	return func(w *World) { w.log = log }
}

// WithCommandBufferSize sets how many entities each new command buffer
// reserves up front.
func WithCommandBufferSize(n int) WorldOption {
	return func(w *World) { w.commandBufferSize = n }
}

// WithEntityCapacity preallocates the location index.
func WithEntityCapacity(n int) WorldOption {
	return func(w *World) { w.locations = make([]entityLocation, 0, n) }
}

// OptionsFromConfig translates the [world] config section.
func OptionsFromConfig(cfg config.WorldConfig) []WorldOption {
	return []WorldOption{
		WithEntityCapacity(cfg.EntityCapacity),
		WithCommandBufferSize(cfg.CommandBufferSize),
	}
}

func NewWorld(opts ...WorldOption) *World {
	w := &World{
		id:                nextWorldID.Add(1),
		log:               zap.NewNop(),
		allocator:         NewEntityAllocator(),
		tableByMask:       make(map[mask]tableID, 16),
		resources:         make(map[ComponentID]*resourceSlot),
		commandBufferSize: defaultCommandBufferSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.changeTick.Store(1)
	w.systems.init()
	// Pre-create the empty table every new entity starts in.
	w.tableFor(mask{})
	w.hookCommands = newCommandBuffer(w, 0)
	return w
}

func (w *World) ID() uint64                  { return w.id }
func (w *World) Logger() *zap.Logger         { return w.log }
func (w *World) Allocator() *EntityAllocator { return w.allocator }

// Len returns the number of spawned entities.
func (w *World) Len() int { return w.count }

// TableCount returns the number of archetype tables created so far.
func (w *World) TableCount() int { return len(w.tables) }

// ChangeTick returns the current world tick. Direct writes stamp with it.
func (w *World) ChangeTick() Tick { return Tick(w.changeTick.Load()) }

// IncrementChangeTick advances the world tick and returns the value before
// the increment. Every system run takes its thisRun from here.
func (w *World) IncrementChangeTick() Tick { return Tick(w.changeTick.Add(1) - 1) }

func (w *World) LastChangeTick() Tick { return w.lastChangeTick }

// ClearTrackers moves the window used by ad-hoc queries and GetMut forward,
// so changes made before this call no longer report as changed.
func (w *World) ClearTrackers() {
	w.lastChangeTick = w.IncrementChangeTick()
}

// CheckChangeTicks clamps every stored tick once the world tick advanced at
// least CheckTickThreshold since the last scan. Reports whether it scanned.
func (w *World) CheckChangeTicks() bool {
	now := w.ChangeTick()
	if now.relativeTo(w.lastCheckTick) < CheckTickThreshold {
		return false
	}
	for _, t := range w.tables {
		t.checkTicks(now)
	}
	for _, s := range w.sparse {
		if s != nil {
			s.checkTicks(now)
		}
	}
	for _, r := range w.resources {
		r.ticks.checkTicks(now)
	}
	w.lastCheckTick = now
	return true
}

// Contains reports whether e is alive and spawned in this world.
func (w *World) Contains(e Entity) bool {
	idx := int(e.Index())
	if e.IsZero() || idx >= len(w.locations) {
		return false
	}
	loc := &w.locations[idx]
	return loc.owner == e && loc.table != noTable
}

// Entities yields every spawned entity in table order.
func (w *World) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, t := range w.tables {
			for _, e := range t.entities {
				if !yield(e) {
					return
				}
			}
		}
	}
}

func (w *World) location(e Entity) *entityLocation {
	if !w.Contains(e) {
		return nil
	}
	return &w.locations[e.Index()]
}

func (w *World) tableFor(m mask) *table {
	if id, ok := w.tableByMask[m]; ok {
		return w.tables[id]
	}
	ids := m.ids()
	infos := make([]*componentInfo, len(ids))
	for i, id := range ids {
		infos[i] = components.get(id)
		infos[i].used.Store(true)
		if infos[i].kind == kindRelation {
			w.relations.set(id)
		}
	}
	t := newTable(tableID(len(w.tables)), m, infos)
	w.tables = append(w.tables, t)
	w.tableByMask[m] = t.id
	w.log.Debug("table created", zap.Int32("table", int32(t.id)), zap.Int("columns", len(infos)))
	return t
}

func (w *World) sparseFor(info *componentInfo) sparseStore {
	if s := w.sparse[info.id]; s != nil {
		return s
	}
	info.used.Store(true)
	s := info.newSparse()
	w.sparse[info.id] = s
	if info.kind == kindRelation {
		w.relations.set(info.id)
	}
	return s
}

// place puts an allocated entity into the empty table.
func (w *World) place(e Entity) {
	idx := int(e.Index())
	for len(w.locations) <= idx {
		w.locations = append(w.locations, entityLocation{table: noTable})
	}
	empty := w.tables[0]
	empty.entities = append(empty.entities, e)
	w.locations[idx] = entityLocation{owner: e, table: empty.id, row: int32(empty.len() - 1)}
	w.count++
}

func (w *World) relocate(moved Entity, row int) {
	if !moved.IsZero() {
		w.locations[moved.Index()].row = int32(row)
	}
}

func (w *World) has(loc *entityLocation, info *componentInfo) bool {
	if info.storage == StorageSparseSet {
		return loc.sparse.has(info.id)
	}
	return w.tables[loc.table].mask.has(info.id)
}

// Value is a component value tagged with its registered type. Build one
// with C; values of explicitly registered types may also be passed bare.
type Value struct {
	info *componentInfo
	v    any
}

// C wraps v so any World or CommandBuffer call accepting values can store it
// without a prior Register.
func C[T any](v T) Value {
	return Value{info: infoFor[T](), v: v}
}

func valueOf(v any) Value {
	if val, ok := v.(Value); ok {
		return val
	}
	info, ok := components.lookup(reflect.TypeOf(v))
	if !ok || info.kind != kindComponent {
		panic(fmt.Sprintf("ecs: component type %T is not registered; call ecs.Register or wrap it with ecs.C", v))
	}
	return Value{info: info, v: v}
}

func valuesOf(vs []any) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = valueOf(v)
	}
	return out
}

// Spawn creates an entity holding values.
func (w *World) Spawn(values ...any) Entity {
	e := w.allocator.Create()
	w.place(e)
	if len(values) > 0 {
		w.insert(e, valuesOf(values))
	}
	return e
}

// SpawnBatch spawns one entity per row.
func (w *World) SpawnBatch(rows [][]any) []Entity {
	out := make([]Entity, len(rows))
	for i, row := range rows {
		out[i] = w.Spawn(row...)
	}
	return out
}

// spawnReserved spawns an entity a command buffer reserved from the
// allocator. Entities deleted or already spawned in the meantime are skipped.
func (w *World) spawnReserved(e Entity, values []Value) bool {
	if w.Contains(e) || !w.allocator.Alive(e) {
		w.log.Debug("reserved entity no longer spawnable", zap.Stringer("entity", e))
		return false
	}
	w.place(e)
	if len(values) > 0 {
		w.insert(e, values)
	}
	return true
}

// Insert adds or replaces values on e. Returns false if e is not alive.
func (w *World) Insert(e Entity, values ...any) bool {
	if !w.Contains(e) {
		return false
	}
	w.insert(e, valuesOf(values))
	return true
}

// Insert adds or replaces a single typed component.
func Insert[T any](w *World, e Entity, v T) bool {
	if !w.Contains(e) {
		return false
	}
	w.insert(e, []Value{C(v)})
	return true
}

// Remove takes T off e and returns it.
func Remove[T any](w *World, e Entity) (T, bool) {
	var zero T
	if !w.Contains(e) {
		return zero, false
	}
	out := w.remove(e, []*componentInfo{infoFor[T]()})
	if out[0] == nil {
		return zero, false
	}
	return out[0].(T), true
}

// RemoveIDs removes the given component ids from e, ignoring absent ones.
func (w *World) RemoveIDs(e Entity, ids ...ComponentID) bool {
	if !w.Contains(e) {
		return false
	}
	infos := make([]*componentInfo, len(ids))
	for i, id := range ids {
		infos[i] = components.get(id)
	}
	w.remove(e, infos)
	return true
}

// Get returns a read-only pointer to e's T. The pointer is valid until the
// next structural change and must not be written through.
func Get[T any](w *World, e Entity) (*T, bool) {
	v, _, ok := componentPtr[T](w, infoFor[T](), e)
	return v, ok
}

// GetRef is Get with change information relative to the world's tracker
// window.
func GetRef[T any](w *World, e Entity) (Ref[T], bool) {
	v, ticks, ok := componentPtr[T](w, infoFor[T](), e)
	if !ok {
		return Ref[T]{}, false
	}
	return Ref[T]{value: v, ticks: ticks, lastRun: w.lastChangeTick, thisRun: w.ChangeTick()}, true
}

// GetMut returns a change-tracked handle to e's T.
func GetMut[T any](w *World, e Entity) (Mut[T], bool) {
	v, ticks, ok := componentPtr[T](w, infoFor[T](), e)
	if !ok {
		return Mut[T]{}, false
	}
	return Mut[T]{value: v, ticks: ticks, lastRun: w.lastChangeTick, thisRun: w.ChangeTick()}, true
}

func Has[T any](w *World, e Entity) bool {
	loc := w.location(e)
	return loc != nil && w.has(loc, infoFor[T]())
}

// HasID reports whether e holds the component with the given id.
func (w *World) HasID(e Entity, id ComponentID) bool {
	loc := w.location(e)
	return loc != nil && w.has(loc, components.get(id))
}

// componentPtr locates the stored T for info on e in either layout.
func componentPtr[T any](w *World, info *componentInfo, e Entity) (*T, *ComponentTicks, bool) {
	loc := w.location(e)
	if loc == nil {
		return nil, nil, false
	}
	if info.storage == StorageSparseSet {
		if !loc.sparse.has(info.id) {
			return nil, nil, false
		}
		return w.sparse[info.id].(*sparseSet[T]).get(e)
	}
	t := w.tables[loc.table]
	c := t.column(info.id)
	if c == nil {
		return nil, nil, false
	}
	col := c.(*typedColumn[T])
	return &col.data[loc.row], &col.ticks[loc.row], true
}

// expandRequired appends required components missing from e, depth-first in
// declaration order. A type already given or already on e is never
// inserted twice. A type reached again while its own requirements are
// being expanded panics.
func (w *World) expandRequired(loc *entityLocation, values []Value) []Value {
	var seen, stack mask
	for _, v := range values {
		seen.set(v.info.id)
	}
	out := values
	var visit func(info *componentInfo, depth int)
	visit = func(info *componentInfo, depth int) {
		if depth > MaxRequiredDepth {
			panic(fmt.Sprintf("ecs: required components of %s nest deeper than %d", info.name, MaxRequiredDepth))
		}
		stack.set(info.id)
		for _, req := range info.required {
			if stack.has(req.info.id) {
				panic(fmt.Sprintf("ecs: %s requires itself through %s", req.info.name, info.name))
			}
			if seen.has(req.info.id) || w.has(loc, req.info) {
				continue
			}
			seen.set(req.info.id)
			out = append(out, Value{info: req.info, v: req.factory()})
			visit(req.info, depth+1)
		}
		stack.unset(info.id)
	}
	for _, v := range values {
		if len(v.info.required) > 0 {
			visit(v.info, 1)
		}
	}
	return out
}

// dedupe keeps the last value given for each type at the position of the
// first.
func dedupe(values []Value) []Value {
	var seen mask
	dup := false
	for _, v := range values {
		if seen.has(v.info.id) {
			dup = true
			break
		}
		seen.set(v.info.id)
	}
	if !dup {
		return values
	}
	pos := make(map[ComponentID]int, len(values))
	out := make([]Value, 0, len(values))
	for _, v := range values {
		if i, ok := pos[v.info.id]; ok {
			out[i] = v
			continue
		}
		pos[v.info.id] = len(out)
		out = append(out, v)
	}
	return out
}

func (w *World) insert(e Entity, values []Value) {
	loc := &w.locations[e.Index()]
	values = w.expandRequired(loc, dedupe(values))
	tick := w.ChangeTick()
	w.depth++

	existed := make([]bool, len(values))
	for i, v := range values {
		existed[i] = w.has(loc, v.info)
		if existed[i] {
			w.trigger(v.info.hooks.OnReplace, e, v.info)
		}
	}

	loc = &w.locations[e.Index()]
	src := w.tables[loc.table]
	dstMask := src.mask
	for i, v := range values {
		if !existed[i] && v.info.storage == StorageTable {
			dstMask.set(v.info.id)
		}
	}
	if dstMask != src.mask {
		dst := w.tableFor(dstMask)
		row, moved := src.moveRow(int(loc.row), dst)
		w.relocate(moved, int(loc.row))
		loc.table = dst.id
		loc.row = int32(row)
	}

	t := w.tables[loc.table]
	for i, v := range values {
		if v.info.storage == StorageSparseSet {
			w.sparseFor(v.info).insertAny(e, v.v, tick)
			loc.sparse.set(v.info.id)
			continue
		}
		c := t.column(v.info.id)
		if existed[i] {
			c.setAny(int(loc.row), v.v)
			c.ticksAt(int(loc.row)).SetChanged(tick)
		} else {
			c.pushAny(v.v, newTicks(tick))
		}
	}

	for i, v := range values {
		if !existed[i] {
			w.trigger(v.info.hooks.OnAdd, e, v.info)
		}
	}
	for _, v := range values {
		w.trigger(v.info.hooks.OnInsert, e, v.info)
	}
	w.depth--
	w.flushHookCommands()
}

// remove takes the given types off e and returns the removed values, nil
// for types e did not hold.
func (w *World) remove(e Entity, infos []*componentInfo) []any {
	loc := &w.locations[e.Index()]
	out := make([]any, len(infos))
	present := make([]*componentInfo, 0, len(infos))
	for _, info := range infos {
		if w.has(loc, info) {
			present = append(present, info)
		}
	}
	if len(present) == 0 {
		return out
	}
	w.depth++
	for _, info := range present {
		w.trigger(info.hooks.OnReplace, e, info)
	}
	for _, info := range present {
		w.trigger(info.hooks.OnRemove, e, info)
	}

	loc = &w.locations[e.Index()]
	src := w.tables[loc.table]
	dstMask := src.mask
	for i, info := range infos {
		if !w.has(loc, info) {
			continue
		}
		if info.storage == StorageSparseSet {
			out[i], _ = w.sparse[info.id].removeAny(e)
			loc.sparse.unset(info.id)
			continue
		}
		out[i] = src.column(info.id).getAny(int(loc.row))
		dstMask.unset(info.id)
	}
	if dstMask != src.mask {
		dst := w.tableFor(dstMask)
		row, moved := src.moveRow(int(loc.row), dst)
		w.relocate(moved, int(loc.row))
		loc.table = dst.id
		loc.row = int32(row)
	}
	w.depth--
	w.flushHookCommands()
	return out
}

// Despawn removes e and all its data and frees its id. Relation edges from
// other entities targeting e are removed as well.
func (w *World) Despawn(e Entity) bool {
	loc := w.location(e)
	if loc == nil {
		return false
	}
	w.depth++
	t := w.tables[loc.table]
	owned := append(t.mask.ids(), loc.sparse.ids()...)
	infos := make([]*componentInfo, len(owned))
	for i, id := range owned {
		infos[i] = components.get(id)
	}
	for _, info := range infos {
		w.trigger(info.hooks.OnDespawn, e, info)
	}
	for _, info := range infos {
		w.trigger(info.hooks.OnReplace, e, info)
	}
	for _, info := range infos {
		w.trigger(info.hooks.OnRemove, e, info)
	}

	// Hooks may have moved e to another table or despawned it already.
	loc = w.location(e)
	if loc == nil {
		w.depth--
		w.flushHookCommands()
		return true
	}
	for _, id := range loc.sparse.ids() {
		w.sparse[id].removeAny(e)
	}
	t = w.tables[loc.table]
	row := int(loc.row)
	moved := t.swapRemove(row)
	w.relocate(moved, row)
	*loc = entityLocation{table: noTable}
	w.count--
	w.allocator.Delete(e)

	w.removeRelationsTo(e)
	w.depth--
	w.flushHookCommands()
	return true
}

func (w *World) trigger(h Hook, e Entity, info *componentInfo) {
	if h == nil {
		return
	}
	h(w, HookContext{Entity: e, Component: info.id, Commands: w.hookCommands})
}

// flushHookCommands applies commands queued by hooks once the outermost
// mutation finished.
func (w *World) flushHookCommands() {
	if w.depth > 0 || w.flushing || w.hookCommands.Len() == 0 {
		return
	}
	w.flushing = true
	defer func() { w.flushing = false }()
	w.hookCommands.Write(w)
}

// NewCommandBuffer creates a command buffer bound to w that reserves the
// world's configured number of entities up front.
func (w *World) NewCommandBuffer() *CommandBuffer {
	return newCommandBuffer(w, w.commandBufferSize)
}

// NewCommandBufferWithCapacity overrides the reserved entity count.
func (w *World) NewCommandBufferWithCapacity(capacity int) *CommandBuffer {
	return newCommandBuffer(w, capacity)
}
