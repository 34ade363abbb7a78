package ecs

// column is one dense component array inside a table, paired with the change
// ticks of each row. All columns of a table stay the same length.
type column interface {
	len() int
	pushAny(v any, ticks ComponentTicks)
	getAny(row int) any
	// ptrAt returns *T for row.
	ptrAt(row int) any
	setAny(row int, v any)
	ticksAt(row int) *ComponentTicks
	// swapRemove drops row, moving the last row into its place.
	swapRemove(row int)
	// moveRow appends row to dst, which must hold the same type, then
	// swap-removes it here.
	moveRow(row int, dst column)
	checkTicks(now Tick)
}

// typedColumn is the generic column behind every component type. No reflect
// on the hot path; the type assertion happens once per access.
type typedColumn[T any] struct {
	data  []T
	ticks []ComponentTicks
}

func (c *typedColumn[T]) len() int { return len(c.data) }

func (c *typedColumn[T]) push(v T, ticks ComponentTicks) {
	c.data = append(c.data, v)
	c.ticks = append(c.ticks, ticks)
}

func (c *typedColumn[T]) pushAny(v any, ticks ComponentTicks) {
	c.push(v.(T), ticks)
}

func (c *typedColumn[T]) getAny(row int) any { return c.data[row] }

func (c *typedColumn[T]) ptrAt(row int) any { return &c.data[row] }

func (c *typedColumn[T]) setAny(row int, v any) { c.data[row] = v.(T) }

func (c *typedColumn[T]) ticksAt(row int) *ComponentTicks { return &c.ticks[row] }

func (c *typedColumn[T]) swapRemove(row int) {
	last := len(c.data) - 1
	if row < last {
		c.data[row] = c.data[last]
		c.ticks[row] = c.ticks[last]
	}
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
	c.ticks = c.ticks[:last]
}

func (c *typedColumn[T]) moveRow(row int, dst column) {
	d := dst.(*typedColumn[T])
	d.push(c.data[row], c.ticks[row])
	c.swapRemove(row)
}

func (c *typedColumn[T]) checkTicks(now Tick) {
	for i := range c.ticks {
		c.ticks[i].checkTicks(now)
		if inner, ok := any(&c.data[i]).(innerTicks); ok {
			inner.checkTicks(now)
		}
	}
}

// innerTicks is implemented by stored values that carry their own ticks,
// such as relation edge lists.
type innerTicks interface {
	checkTicks(now Tick)
}
