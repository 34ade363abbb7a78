package ecs

import (
	"fmt"
	"iter"

	"go.uber.org/zap"
)

// Param is a declared system input. Its access is added to the owning
// system's access when the system is created; a param belongs to exactly
// one system.
type Param interface {
	paramAccess(a *Access)
	bindParam(owner *System)
}

// paramOwner is embedded by every param to enforce single ownership.
type paramOwner struct {
	owner *System
}

func (p *paramOwner) bindParam(owner *System) {
	if p.owner != nil {
		panic(fmt.Sprintf("ecs: parameter of %s reused by %s", p.owner.name, owner.name))
	}
	p.owner = owner
}

func (p *paramOwner) check(ctx *SystemContext) {
	if ctx.system != p.owner {
		panic(fmt.Sprintf("ecs: parameter of %s used from %s", p.owner.name, ctx.system.name))
	}
}

// QueryParam is a query declared as a system parameter. Its change filters
// and Mut handles use the running system's ticks.
type QueryParam struct {
	paramOwner
	state *queryState
}

// NewQueryParam compiles terms into a parameter. It panics when the terms
// fetch the same type mutably more than once.
func NewQueryParam(terms ...Term) *QueryParam {
	return &QueryParam{state: compileQuery(terms)}
}

func (p *QueryParam) paramAccess(a *Access) { a.Extend(p.state.access) }

func (p *QueryParam) Iter(ctx *SystemContext) iter.Seq[Row] {
	p.check(ctx)
	p.state.bind(ctx.world)
	return p.state.iter(ctx.lastRun, ctx.thisRun)
}

func (p *QueryParam) Get(ctx *SystemContext, e Entity) (Row, bool) {
	p.check(ctx)
	p.state.bind(ctx.world)
	return p.state.get(e, ctx.lastRun, ctx.thisRun)
}

func (p *QueryParam) Single(ctx *SystemContext) (Row, bool) {
	return single(p.Iter(ctx))
}

func (p *QueryParam) Count(ctx *SystemContext) int {
	n := 0
	for range p.Iter(ctx) {
		n++
	}
	return n
}

// ReadRes declares read access to resource T.
type ReadRes[T any] struct {
	paramOwner
	info *componentInfo
}

func NewReadRes[T any]() *ReadRes[T] { return &ReadRes[T]{info: resourceInfoFor[T]()} }

func (p *ReadRes[T]) paramAccess(a *Access) { a.AddRead(p.info.id) }

func (p *ReadRes[T]) Get(ctx *SystemContext) (Ref[T], bool) {
	p.check(ctx)
	return resourceRef[T](ctx.world, ctx.lastRun, ctx.thisRun)
}

// WriteRes declares write access to resource T.
type WriteRes[T any] struct {
	paramOwner
	info *componentInfo
}

func NewWriteRes[T any]() *WriteRes[T] { return &WriteRes[T]{info: resourceInfoFor[T]()} }

func (p *WriteRes[T]) paramAccess(a *Access) { a.AddWrite(p.info.id) }

func (p *WriteRes[T]) Get(ctx *SystemContext) (Mut[T], bool) {
	p.check(ctx)
	return resourceMut[T](ctx.world, ctx.lastRun, ctx.thisRun)
}

// SystemContext is handed to a system for one run.
type SystemContext struct {
	world   *World
	system  *System
	lastRun Tick
	thisRun Tick
}

func (c *SystemContext) LastRun() Tick { return c.lastRun }
func (c *SystemContext) ThisRun() Tick { return c.thisRun }
func (c *SystemContext) Name() string  { return c.system.name }

// World returns the world to an exclusive system. Other systems only see the
// world through their parameters and panic here.
func (c *SystemContext) World() *World {
	if !c.system.access.exclusive {
		panic(fmt.Sprintf("ecs: system %s is not exclusive", c.system.name))
	}
	return c.world
}

// Commands returns the system's command buffer. It is applied at the next
// flush point, never while the stage is running.
func (c *SystemContext) Commands() *CommandBuffer {
	if c.system.condition {
		panic(fmt.Sprintf("ecs: run condition %s cannot queue commands", c.system.name))
	}
	if c.system.commands == nil {
		c.system.commands = c.world.NewCommandBuffer()
	}
	return c.system.commands
}

// Logger returns the world logger named after the system.
func (c *SystemContext) Logger() *zap.Logger { return c.system.log }

// System is a unit of logic with declared access.
type System struct {
	name      string
	fn        func(ctx *SystemContext)
	params    []Param
	access    Access
	condition bool

	world    *World
	lastRun  Tick
	commands *CommandBuffer
	log      *zap.Logger
}

// NewSystem builds a system from fn and the params it uses. It panics when
// two params conflict with each other.
func NewSystem(name string, fn func(ctx *SystemContext), params ...Param) *System {
	s := &System{name: name, fn: fn, params: params}
	for _, p := range params {
		var a Access
		p.paramAccess(&a)
		if names := s.access.ConflictNames(a); len(names) > 0 {
			panic(fmt.Sprintf("ecs: system %s has conflicting parameters on %v", name, names))
		}
		s.access.Extend(a)
		p.bindParam(s)
	}
	return s
}

// NewExclusiveSystem builds a system that gets the whole world. It always
// runs alone.
func NewExclusiveSystem(name string, fn func(ctx *SystemContext)) *System {
	s := &System{name: name, fn: fn}
	s.access.SetExclusive()
	return s
}

func (s *System) Name() string      { return s.name }
func (s *System) Access() Access    { return s.access }
func (s *System) IsExclusive() bool { return s.access.exclusive }
func (s *System) LastRun() Tick     { return s.lastRun }

// Init binds the system to w. Everything stored before the first run
// counts as changed for it.
func (s *System) Init(w *World) {
	if s.world != nil {
		if s.world != w {
			panic(fmt.Sprintf("ecs: system %s initialized with a second world", s.name))
		}
		return
	}
	s.world = w
	s.log = w.log.Named(s.name)
	s.lastRun = w.ChangeTick().relativeTo(MaxChangeAge)
}

// Run executes the system once with its own tick window. Queued commands
// stay pending until ApplyDeferred.
func (s *System) Run(w *World) {
	s.Init(w)
	ctx := SystemContext{world: w, system: s, lastRun: s.lastRun, thisRun: w.IncrementChangeTick()}
	s.fn(&ctx)
	s.lastRun = ctx.thisRun
}

// ApplyDeferred writes the system's pending commands into w.
func (s *System) ApplyDeferred(w *World) {
	if s.commands != nil && s.commands.Len() > 0 {
		s.commands.Write(w)
	}
}

// CheckTicks clamps lastRun so it never falls behind now by more than
// MaxChangeAge.
func (s *System) CheckTicks(now Tick) { s.lastRun.checkTick(now) }

// Close returns the system's reserved entities to the allocator.
func (s *System) Close() {
	if s.commands != nil {
		s.commands.Close()
		s.commands = nil
	}
}

// Condition is a read-only predicate gating systems or sets. Conditions
// keep their own last-run tick, so change checks inside one see what
// changed since that condition last evaluated.
type Condition struct {
	name    string
	sys     *System
	pred    func(ctx *SystemContext) bool
	combine func(w *World) bool
	inner   []*Condition
}

// NewCondition builds a condition from pred. Params may only read.
func NewCondition(name string, pred func(ctx *SystemContext) bool, params ...Param) *Condition {
	c := &Condition{name: name, pred: pred}
	c.sys = NewSystem(name, nil, params...)
	c.sys.condition = true
	if c.sys.access.HasWrites() {
		panic(fmt.Sprintf("ecs: run condition %s requests write access", name))
	}
	return c
}

func (c *Condition) Name() string { return c.name }

func (c *Condition) Access() Access {
	var a Access
	if c.sys != nil {
		a.Extend(c.sys.access)
	}
	for _, in := range c.inner {
		a.Extend(in.Access())
	}
	return a
}

func (c *Condition) Init(w *World) {
	if c.sys != nil {
		c.sys.Init(w)
	}
	for _, in := range c.inner {
		in.Init(w)
	}
}

// Evaluate runs the predicate against w.
func (c *Condition) Evaluate(w *World) bool {
	if c.combine != nil {
		return c.combine(w)
	}
	s := c.sys
	s.Init(w)
	ctx := SystemContext{world: w, system: s, lastRun: s.lastRun, thisRun: w.IncrementChangeTick()}
	ok := c.pred(&ctx)
	s.lastRun = ctx.thisRun
	return ok
}

func (c *Condition) CheckTicks(now Tick) {
	if c.sys != nil {
		c.sys.CheckTicks(now)
	}
	for _, in := range c.inner {
		in.CheckTicks(now)
	}
}

// RunOnce is true on its first evaluation only.
func RunOnce() *Condition {
	done := false
	return NewCondition("run_once", func(*SystemContext) bool {
		if done {
			return false
		}
		done = true
		return true
	})
}

func ResourceExists[T any]() *Condition {
	res := NewReadRes[T]()
	return NewCondition("resource_exists", func(ctx *SystemContext) bool {
		_, ok := res.Get(ctx)
		return ok
	}, res)
}

// ResourceChanged is true when T was inserted or written since the
// condition last evaluated.
func ResourceChanged[T any]() *Condition {
	res := NewReadRes[T]()
	return NewCondition("resource_changed", func(ctx *SystemContext) bool {
		r, ok := res.Get(ctx)
		return ok && r.IsChanged()
	}, res)
}

func ResourceEquals[T comparable](v T) *Condition {
	res := NewReadRes[T]()
	return NewCondition("resource_equals", func(ctx *SystemContext) bool {
		r, ok := res.Get(ctx)
		return ok && r.Value() == v
	}, res)
}

func Not(c *Condition) *Condition {
	return &Condition{
		name:    "not(" + c.name + ")",
		inner:   []*Condition{c},
		combine: func(w *World) bool { return !c.Evaluate(w) },
	}
}

// And short-circuits: b is not evaluated when a is false.
func And(a, b *Condition) *Condition {
	return &Condition{
		name:    "and(" + a.name + ", " + b.name + ")",
		inner:   []*Condition{a, b},
		combine: func(w *World) bool { return a.Evaluate(w) && b.Evaluate(w) },
	}
}

func Or(a, b *Condition) *Condition {
	return &Condition{
		name:    "or(" + a.name + ", " + b.name + ")",
		inner:   []*Condition{a, b},
		combine: func(w *World) bool { return a.Evaluate(w) || b.Evaluate(w) },
	}
}
