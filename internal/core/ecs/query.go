package ecs

import (
	"fmt"
	"iter"
)

type termKind uint8

const (
	termRead termKind = iota
	termWrite
	termMaybe
	termWith
	termWithout
	termAdded
	termChanged
	termTargets
	termNotTargets
)

// Term is one element of a query: data it fetches or a filter it applies.
type Term struct {
	kind    termKind
	info    *componentInfo
	targets []Entity
}

func (t Term) fetches() bool {
	return t.kind == termRead || t.kind == termWrite || t.kind == termMaybe
}

// Reads fetches T read-only.
func Reads[T any]() Term { return Term{kind: termRead, info: infoFor[T]()} }

// Writes fetches T for writing through Mut.
func Writes[T any]() Term { return Term{kind: termWrite, info: infoFor[T]()} }

// Maybe fetches T read-only when present without requiring it.
func Maybe[T any]() Term { return Term{kind: termMaybe, info: infoFor[T]()} }

func With[T any]() Term    { return Term{kind: termWith, info: infoFor[T]()} }
func Without[T any]() Term { return Term{kind: termWithout, info: infoFor[T]()} }

// Added matches entities whose T was added since the query's last run.
func Added[T any]() Term { return Term{kind: termAdded, info: infoFor[T]()} }

// Changed matches entities whose T was added or written since the query's
// last run.
func Changed[T any]() Term { return Term{kind: termChanged, info: infoFor[T]()} }

func ReadsRelation[R any]() Term  { return Term{kind: termRead, info: relationInfoFor[R]()} }
func WritesRelation[R any]() Term { return Term{kind: termWrite, info: relationInfoFor[R]()} }

// WithRelation matches entities holding at least one R edge.
func WithRelation[R any]() Term { return Term{kind: termWith, info: relationInfoFor[R]()} }

func WithoutRelation[R any]() Term { return Term{kind: termWithout, info: relationInfoFor[R]()} }

// Targets matches sources holding an R edge to every one of targets.
func Targets[R any](targets ...Entity) Term {
	return Term{kind: termTargets, info: relationInfoFor[R](), targets: targets}
}

// NotTargets matches entities holding no R edge to any of targets,
// including entities without R at all.
func NotTargets[R any](targets ...Entity) Term {
	return Term{kind: termNotTargets, info: relationInfoFor[R](), targets: targets}
}

// queryState is the compiled, world-bound form of a term list. Matched
// tables are cached and extended as new tables appear.
type queryState struct {
	world  *World
	terms  []Term
	access Access

	tableRequired  mask
	tableExcluded  mask
	sparseRequired []*componentInfo
	sparseExcluded []*componentInfo
	rowFilters     []Term

	matched []*table
	scanned int
}

func compileQuery(terms []Term) *queryState {
	q := &queryState{terms: terms}
	var fetched mask
	for _, t := range terms {
		id := t.info.id
		if t.fetches() {
			if fetched.has(id) && (t.kind == termWrite || q.access.Writes(id)) {
				panic(fmt.Sprintf("ecs: query accesses %s mutably more than once", t.info.name))
			}
			fetched.set(id)
		}
		switch t.kind {
		case termWrite:
			q.access.AddWrite(id)
		case termRead, termMaybe, termAdded, termChanged, termTargets:
			q.access.AddRead(id)
		}
		switch t.kind {
		case termRead, termWrite, termWith, termAdded, termChanged, termTargets:
			if t.info.storage == StorageSparseSet {
				q.sparseRequired = append(q.sparseRequired, t.info)
			} else {
				q.tableRequired.set(id)
			}
		case termWithout:
			if t.info.storage == StorageSparseSet {
				q.sparseExcluded = append(q.sparseExcluded, t.info)
			} else {
				q.tableExcluded.set(id)
			}
		}
		switch t.kind {
		case termAdded, termChanged, termTargets, termNotTargets:
			q.rowFilters = append(q.rowFilters, t)
		}
	}
	if q.tableRequired.intersects(q.tableExcluded) {
		// Never matches; keep it that way without special-casing iteration.
		q.tableRequired = q.tableExcluded
	}
	return q
}

func (q *queryState) bind(w *World) {
	if q.world == nil {
		q.world = w
		return
	}
	if q.world != w {
		panic("ecs: query used with a world it was not created for")
	}
}

func (q *queryState) update() {
	for ; q.scanned < len(q.world.tables); q.scanned++ {
		t := q.world.tables[q.scanned]
		if t.mask.contains(q.tableRequired) && !t.mask.intersects(q.tableExcluded) {
			q.matched = append(q.matched, t)
		}
	}
}

func (q *queryState) matchesRow(loc *entityLocation, e Entity, t *table, row int, lastRun, thisRun Tick) bool {
	for _, info := range q.sparseRequired {
		if !loc.sparse.has(info.id) {
			return false
		}
	}
	for _, info := range q.sparseExcluded {
		if loc.sparse.has(info.id) {
			return false
		}
	}
	for _, f := range q.rowFilters {
		switch f.kind {
		case termAdded, termChanged:
			ticks := q.world.ticksOf(f.info, t, row, e)
			if f.kind == termAdded && !ticks.IsAdded(lastRun, thisRun) {
				return false
			}
			if f.kind == termChanged && !ticks.IsChanged(lastRun, thisRun) {
				return false
			}
		case termTargets:
			edges := q.world.edgesAt(f.info, t, row, e)
			for _, target := range f.targets {
				if !edges.hasTarget(target) {
					return false
				}
			}
		case termNotTargets:
			if !q.world.has(loc, f.info) {
				continue
			}
			edges := q.world.edgesAt(f.info, t, row, e)
			for _, target := range f.targets {
				if edges.hasTarget(target) {
					return false
				}
			}
		}
	}
	return true
}

func (q *queryState) iter(lastRun, thisRun Tick) iter.Seq[Row] {
	q.update()
	return func(yield func(Row) bool) {
		for _, t := range q.matched {
			for row := 0; row < len(t.entities); row++ {
				e := t.entities[row]
				loc := &q.world.locations[e.Index()]
				if !q.matchesRow(loc, e, t, row, lastRun, thisRun) {
					continue
				}
				r := Row{q: q, table: t, row: row, entity: e, lastRun: lastRun, thisRun: thisRun}
				if !yield(r) {
					return
				}
			}
		}
	}
}

func (q *queryState) get(e Entity, lastRun, thisRun Tick) (Row, bool) {
	loc := q.world.location(e)
	if loc == nil {
		return Row{}, false
	}
	t := q.world.tables[loc.table]
	if !t.mask.contains(q.tableRequired) || t.mask.intersects(q.tableExcluded) {
		return Row{}, false
	}
	row := int(loc.row)
	if !q.matchesRow(loc, e, t, row, lastRun, thisRun) {
		return Row{}, false
	}
	return Row{q: q, table: t, row: row, entity: e, lastRun: lastRun, thisRun: thisRun}, true
}

func (w *World) ticksOf(info *componentInfo, t *table, row int, e Entity) *ComponentTicks {
	if info.storage == StorageSparseSet {
		return w.sparse[info.id].ticksOf(e)
	}
	return t.column(info.id).ticksAt(row)
}

func (w *World) edgesAt(info *componentInfo, t *table, row int, e Entity) edgeList {
	if info.storage == StorageSparseSet {
		return w.sparse[info.id].ptrOf(e).(edgeList)
	}
	return t.column(info.id).ptrAt(row).(edgeList)
}

// Query is an ad-hoc query over the world, windowed by the world's tracker
// ticks. Structural changes while iterating are not allowed.
type Query struct {
	state   *queryState
	lastRun Tick
	thisRun Tick
}

// Query compiles terms against w. It panics when the terms fetch the same
// type mutably more than once.
func (w *World) Query(terms ...Term) *Query {
	s := compileQuery(terms)
	s.bind(w)
	return &Query{state: s, lastRun: w.lastChangeTick, thisRun: w.ChangeTick()}
}

func (q *Query) Iter() iter.Seq[Row] { return q.state.iter(q.lastRun, q.thisRun) }

func (q *Query) Get(e Entity) (Row, bool) { return q.state.get(e, q.lastRun, q.thisRun) }

func (q *Query) Count() int {
	n := 0
	for range q.Iter() {
		n++
	}
	return n
}

// Single returns the only matching row; ok is false on zero or several.
func (q *Query) Single() (Row, bool) { return single(q.Iter()) }

func (q *Query) Access() Access { return q.state.access }

func single(seq iter.Seq[Row]) (Row, bool) {
	var out Row
	n := 0
	for r := range seq {
		out = r
		n++
		if n > 1 {
			return Row{}, false
		}
	}
	return out, n == 1
}

// Row is one matched entity during iteration.
type Row struct {
	q       *queryState
	table   *table
	row     int
	entity  Entity
	lastRun Tick
	thisRun Tick
}

func (r Row) Entity() Entity { return r.entity }

func rowPtr[T any](r Row, info *componentInfo) (*T, *ComponentTicks, bool) {
	if info.storage == StorageSparseSet {
		s := r.q.world.sparse[info.id]
		if s == nil {
			return nil, nil, false
		}
		return s.(*sparseSet[T]).get(r.entity)
	}
	c := r.table.column(info.id)
	if c == nil {
		return nil, nil, false
	}
	col := c.(*typedColumn[T])
	return &col.data[r.row], &col.ticks[r.row], true
}

// RefOf reads T from a row of a query that fetches T.
func RefOf[T any](r Row) Ref[T] {
	info := infoFor[T]()
	if !r.q.access.Reads(info.id) {
		panic(fmt.Sprintf("ecs: query does not fetch %s", info.name))
	}
	v, ticks, ok := rowPtr[T](r, info)
	if !ok {
		panic(fmt.Sprintf("ecs: %s absent on %s; use MaybeRefOf", info.name, r.entity))
	}
	return Ref[T]{value: v, ticks: ticks, lastRun: r.lastRun, thisRun: r.thisRun}
}

// MutOf returns a change-tracked handle to T from a row of a query that
// writes T.
func MutOf[T any](r Row) Mut[T] {
	info := infoFor[T]()
	if !r.q.access.Writes(info.id) {
		panic(fmt.Sprintf("ecs: query does not write %s", info.name))
	}
	v, ticks, _ := rowPtr[T](r, info)
	return Mut[T]{value: v, ticks: ticks, lastRun: r.lastRun, thisRun: r.thisRun}
}

func MaybeRefOf[T any](r Row) (Ref[T], bool) {
	info := infoFor[T]()
	if !r.q.access.Reads(info.id) {
		panic(fmt.Sprintf("ecs: query does not fetch %s", info.name))
	}
	v, ticks, ok := rowPtr[T](r, info)
	if !ok {
		return Ref[T]{}, false
	}
	return Ref[T]{value: v, ticks: ticks, lastRun: r.lastRun, thisRun: r.thisRun}, true
}

func relationEdgesOf[R any](r Row, write bool) *relationEdges[R] {
	info := relationInfoFor[R]()
	if write && !r.q.access.Writes(info.id) {
		panic(fmt.Sprintf("ecs: query does not write %s", info.name))
	}
	if !r.q.access.Reads(info.id) {
		panic(fmt.Sprintf("ecs: query does not fetch %s", info.name))
	}
	edges, _, ok := rowPtr[relationEdges[R]](r, info)
	if !ok {
		return nil
	}
	return edges
}

// RelationsOf lists the R edges of the row's entity in insertion order.
func RelationsOf[R any](r Row) []Relation[R] {
	edges := relationEdgesOf[R](r, false)
	if edges == nil {
		return nil
	}
	out := make([]Relation[R], len(edges.targets))
	for i := range edges.targets {
		out[i] = Relation[R]{Target: edges.targets[i], Value: &edges.values[i], ticks: &edges.ticks[i]}
	}
	return out
}

func RelationOf[R any](r Row, target Entity) (*R, bool) {
	edges := relationEdgesOf[R](r, false)
	if edges == nil {
		return nil, false
	}
	i := edges.index(target)
	if i < 0 {
		return nil, false
	}
	return &edges.values[i], true
}

// RelationMutOf returns a change-tracked handle to the data of one edge.
func RelationMutOf[R any](r Row, target Entity) (Mut[R], bool) {
	edges := relationEdgesOf[R](r, true)
	if edges == nil {
		return Mut[R]{}, false
	}
	i := edges.index(target)
	if i < 0 {
		return Mut[R]{}, false
	}
	return Mut[R]{value: &edges.values[i], ticks: &edges.ticks[i], lastRun: r.lastRun, thisRun: r.thisRun}, true
}
