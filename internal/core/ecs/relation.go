package ecs

// relationEdges is the stored value of a relation type on its source entity:
// one data cell and tick pair per target, in insertion order.
type relationEdges[R any] struct {
	targets []Entity
	values  []R
	ticks   []ComponentTicks
}

func (r *relationEdges[R]) index(target Entity) int {
	for i, t := range r.targets {
		if t == target {
			return i
		}
	}
	return -1
}

func (r *relationEdges[R]) hasTarget(target Entity) bool { return r.index(target) >= 0 }

func (r *relationEdges[R]) targetList() []Entity { return r.targets }

// removeTarget drops the edge to target keeping the order of the rest.
func (r *relationEdges[R]) removeTarget(target Entity) (R, bool) {
	var zero R
	i := r.index(target)
	if i < 0 {
		return zero, false
	}
	v := r.values[i]
	r.targets = append(r.targets[:i], r.targets[i+1:]...)
	r.values = append(r.values[:i], r.values[i+1:]...)
	r.ticks = append(r.ticks[:i], r.ticks[i+1:]...)
	return v, true
}

func (r *relationEdges[R]) removeTargetAny(target Entity) bool {
	_, ok := r.removeTarget(target)
	return ok
}

func (r *relationEdges[R]) empty() bool { return len(r.targets) == 0 }

func (r *relationEdges[R]) checkTicks(now Tick) {
	for i := range r.ticks {
		r.ticks[i].checkTicks(now)
	}
}

// edgeList is the type-erased view of relationEdges used by target filters
// and despawn cleanup.
type edgeList interface {
	hasTarget(target Entity) bool
	targetList() []Entity
	removeTargetAny(target Entity) bool
	empty() bool
}

// Relation is one edge of relation R as seen from its source.
type Relation[R any] struct {
	Target Entity
	Value  *R
	ticks  *ComponentTicks
}

func (r Relation[R]) IsAdded(lastRun, thisRun Tick) bool {
	return r.ticks.IsAdded(lastRun, thisRun)
}

func (r Relation[R]) IsChanged(lastRun, thisRun Tick) bool {
	return r.ticks.IsChanged(lastRun, thisRun)
}

// AddRelation sets the R edge from source to target, replacing the data of
// an existing edge. Both entities must be alive.
func AddRelation[R any](w *World, source, target Entity, v R) bool {
	if !w.Contains(source) || !w.Contains(target) {
		return false
	}
	info := relationInfoFor[R]()
	tick := w.ChangeTick()
	edges, ticks, ok := componentPtr[relationEdges[R]](w, info, source)
	if !ok {
		w.insert(source, []Value{{info: info, v: relationEdges[R]{
			targets: []Entity{target},
			values:  []R{v},
			ticks:   []ComponentTicks{newTicks(tick)},
		}}})
		return true
	}
	if i := edges.index(target); i >= 0 {
		edges.values[i] = v
		edges.ticks[i].SetChanged(tick)
	} else {
		edges.targets = append(edges.targets, target)
		edges.values = append(edges.values, v)
		edges.ticks = append(edges.ticks, newTicks(tick))
	}
	ticks.SetChanged(tick)
	return true
}

// RemoveRelation drops the R edge from source to target and returns its
// data. The relation is removed from source with its last edge.
func RemoveRelation[R any](w *World, source, target Entity) (R, bool) {
	var zero R
	info := relationInfoFor[R]()
	edges, ticks, ok := componentPtr[relationEdges[R]](w, info, source)
	if !ok {
		return zero, false
	}
	v, ok := edges.removeTarget(target)
	if !ok {
		return zero, false
	}
	if edges.empty() {
		w.remove(source, []*componentInfo{info})
	} else {
		ticks.SetChanged(w.ChangeTick())
	}
	return v, true
}

// GetRelation returns the data of the R edge from source to target.
func GetRelation[R any](w *World, source, target Entity) (*R, bool) {
	edges, _, ok := componentPtr[relationEdges[R]](w, relationInfoFor[R](), source)
	if !ok {
		return nil, false
	}
	i := edges.index(target)
	if i < 0 {
		return nil, false
	}
	return &edges.values[i], true
}

// RelationTargets lists the targets of source's R edges.
func RelationTargets[R any](w *World, source Entity) []Entity {
	edges, _, ok := componentPtr[relationEdges[R]](w, relationInfoFor[R](), source)
	if !ok {
		return nil
	}
	return append([]Entity(nil), edges.targets...)
}

func (w *World) edgesOf(id ComponentID, e Entity) edgeList {
	loc := w.location(e)
	if loc == nil {
		return nil
	}
	info := components.get(id)
	if info.storage == StorageSparseSet {
		if !loc.sparse.has(id) {
			return nil
		}
		return w.sparse[id].ptrOf(e).(edgeList)
	}
	c := w.tables[loc.table].column(id)
	if c == nil {
		return nil
	}
	return c.ptrAt(int(loc.row)).(edgeList)
}

// removeRelationsTo drops every edge of every relation type pointing at
// target. Sources left without edges lose the relation.
func (w *World) removeRelationsTo(target Entity) {
	if w.relations.isEmpty() {
		return
	}
	type emptied struct {
		source Entity
		info   *componentInfo
	}
	var drop []emptied
	tick := w.ChangeTick()
	for _, id := range w.relations.ids() {
		info := components.get(id)
		if info.storage == StorageSparseSet {
			s := w.sparse[id]
			if s == nil {
				continue
			}
			for _, src := range s.entities() {
				edges := s.ptrOf(src).(edgeList)
				if edges.removeTargetAny(target) {
					s.ticksOf(src).SetChanged(tick)
					if edges.empty() {
						drop = append(drop, emptied{src, info})
					}
				}
			}
			continue
		}
		for _, t := range w.tables {
			c := t.column(id)
			if c == nil {
				continue
			}
			for row, src := range t.entities {
				edges := c.ptrAt(row).(edgeList)
				if edges.removeTargetAny(target) {
					c.ticksAt(row).SetChanged(tick)
					if edges.empty() {
						drop = append(drop, emptied{src, info})
					}
				}
			}
		}
	}
	for _, d := range drop {
		if w.Contains(d.source) {
			w.remove(d.source, []*componentInfo{d.info})
		}
	}
}
