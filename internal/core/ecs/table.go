package ecs

import "math/bits"

// mask is a set of component ids, one bit per id.
type mask [MaxComponentTypes / 64]uint64

func (m *mask) set(id ComponentID)   { m[id>>6] |= 1 << (id & 63) }
func (m *mask) unset(id ComponentID) { m[id>>6] &^= 1 << (id & 63) }

func (m mask) has(id ComponentID) bool { return m[id>>6]&(1<<(id&63)) != 0 }

// contains reports whether every bit of sub is set in m.
func (m mask) contains(sub mask) bool {
	for i := range m {
		if m[i]&sub[i] != sub[i] {
			return false
		}
	}
	return true
}

func (m mask) intersects(other mask) bool {
	for i := range m {
		if m[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

func (m mask) isEmpty() bool {
	for i := range m {
		if m[i] != 0 {
			return false
		}
	}
	return true
}

// ids lists the set bits in ascending order.
func (m mask) ids() []ComponentID {
	var out []ComponentID
	for i, word := range m {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, ComponentID(i*64+b))
			word &^= 1 << b
		}
	}
	return out
}

type tableID int32

const noTable tableID = -1

// table holds every entity sharing one signature of table-stored components
// as parallel dense columns plus the entity column. Rows are dense; removal
// swaps the last row in.
type table struct {
	id       tableID
	mask     mask
	slots    [MaxComponentTypes]int16 // column index per component id, -1 if absent
	columns  []column
	entities []Entity
}

func newTable(id tableID, m mask, infos []*componentInfo) *table {
	t := &table{id: id, mask: m, columns: make([]column, 0, len(infos))}
	for i := range t.slots {
		t.slots[i] = -1
	}
	for _, info := range infos {
		t.slots[info.id] = int16(len(t.columns))
		t.columns = append(t.columns, info.newColumn())
	}
	return t
}

func (t *table) len() int { return len(t.entities) }

func (t *table) column(id ComponentID) column {
	s := t.slots[id]
	if s < 0 {
		return nil
	}
	return t.columns[s]
}

// swapRemove drops row from every column and returns the entity that now
// occupies it, or the zero Entity when row was last.
func (t *table) swapRemove(row int) Entity {
	last := len(t.entities) - 1
	for _, c := range t.columns {
		c.swapRemove(row)
	}
	var moved Entity
	if row < last {
		moved = t.entities[last]
		t.entities[row] = moved
	}
	t.entities = t.entities[:last]
	return moved
}

// moveRow migrates row into dst. Columns dst shares are moved; the rest are
// dropped. Returns the new row in dst and the entity swapped into row here.
func (t *table) moveRow(row int, dst *table) (int, Entity) {
	e := t.entities[row]
	for id, s := range t.slots {
		if s < 0 {
			continue
		}
		src := t.columns[s]
		if d := dst.column(ComponentID(id)); d != nil {
			src.moveRow(row, d)
		} else {
			src.swapRemove(row)
		}
	}
	dst.entities = append(dst.entities, e)
	last := len(t.entities) - 1
	var moved Entity
	if row < last {
		moved = t.entities[last]
		t.entities[row] = moved
	}
	t.entities = t.entities[:last]
	return len(dst.entities) - 1, moved
}

func (t *table) checkTicks(now Tick) {
	for _, c := range t.columns {
		c.checkTicks(now)
	}
}
