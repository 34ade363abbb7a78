package ecs

// Access is the set of component, relation and resource ids a system or
// query reads and writes. Two accesses conflict when one writes an id the
// other reads or writes, or when either is exclusive.
type Access struct {
	reads     mask
	writes    mask
	exclusive bool
}

func (a *Access) AddRead(id ComponentID)  { a.reads.set(id) }
func (a *Access) AddWrite(id ComponentID) { a.writes.set(id) }

// SetExclusive marks the access as needing the whole world.
func (a *Access) SetExclusive() { a.exclusive = true }

func (a Access) IsExclusive() bool { return a.exclusive }

func (a Access) HasWrites() bool { return a.exclusive || !a.writes.isEmpty() }

func (a Access) Reads(id ComponentID) bool  { return a.reads.has(id) || a.writes.has(id) }
func (a Access) Writes(id ComponentID) bool { return a.writes.has(id) }

// Extend merges other into a.
func (a *Access) Extend(other Access) {
	for i := range a.reads {
		a.reads[i] |= other.reads[i]
		a.writes[i] |= other.writes[i]
	}
	a.exclusive = a.exclusive || other.exclusive
}

func (a Access) ConflictsWith(b Access) bool {
	if a.exclusive || b.exclusive {
		return true
	}
	return a.writes.intersects(b.reads) || a.writes.intersects(b.writes) || b.writes.intersects(a.reads)
}

// Conflicts lists the ids a and b conflict on. Exclusive accesses conflict
// without naming any id.
func (a Access) Conflicts(b Access) []ComponentID {
	var m mask
	for i := range m {
		m[i] = a.writes[i]&(b.reads[i]|b.writes[i]) | b.writes[i]&a.reads[i]
	}
	return m.ids()
}

// ConflictNames renders the conflicting ids of a and b by type name.
func (a Access) ConflictNames(b Access) []string {
	ids := a.Conflicts(b)
	if len(ids) == 0 && (a.exclusive || b.exclusive) {
		return []string{"World"}
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = componentName(id)
	}
	return names
}
