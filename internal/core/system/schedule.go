package system

import (
	"fmt"
	"strings"

	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AmbiguityLevel controls what Initialize does with unordered systems whose
// access conflicts.
type AmbiguityLevel uint8

const (
	AmbiguityIgnore AmbiguityLevel = iota
	AmbiguityWarn
	AmbiguityError
)

func ParseAmbiguityLevel(s string) (AmbiguityLevel, error) {
	switch s {
	case "ignore":
		return AmbiguityIgnore, nil
	case "warn", "":
		return AmbiguityWarn, nil
	case "error":
		return AmbiguityError, nil
	}
	return 0, fmt.Errorf("unknown ambiguity level %q", s)
}

// FlushMode selects when command buffers are applied during a run.
type FlushMode uint8

const (
	// FlushStage applies every system's commands after each stage.
	FlushStage FlushMode = iota
	// FlushEnd applies them once after the last stage.
	FlushEnd
)

type State uint8

const (
	StateUnbuilt State = iota
	StateBuilt
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "Unbuilt"
	case StateBuilt:
		return "Built"
	case StateInvalid:
		return "Invalid"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option func(*Schedule)

func WithAmbiguityDetection(level AmbiguityLevel) Option {
	return func(s *Schedule) { s.ambiguity = level }
}

// WithWorkers bounds how many systems of one stage run at once. Zero
// means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Schedule) { s.workers = n }
}

func WithFlush(mode FlushMode) Option {
	return func(s *Schedule) { s.flush = mode }
}

// OptionsFromConfig translates the [schedule] config section.
func OptionsFromConfig(cfg config.ScheduleConfig) ([]Option, error) {
	level, err := ParseAmbiguityLevel(cfg.AmbiguityDetection)
	if err != nil {
		return nil, err
	}
	flush := FlushStage
	switch cfg.Flush {
	case "", "stage":
	case "end":
		flush = FlushEnd
	default:
		return nil, fmt.Errorf("unknown flush mode %q", cfg.Flush)
	}
	return []Option{
		WithAmbiguityDetection(level),
		WithWorkers(cfg.Workers),
		WithFlush(flush),
	}, nil
}

// Schedule orders systems and sets into stages and runs them against one
// world.
type Schedule struct {
	name      string
	log       *zap.Logger
	ambiguity AmbiguityLevel
	workers   int
	flush     FlushMode

	systems []*node
	sets    map[labelKey]*node
	setList []*node

	state State
	world *ecs.World
	plan  *plan
}

func NewSchedule(name string, log *zap.Logger, opts ...Option) *Schedule {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Schedule{
		name:      name,
		log:       log.With(zap.String("schedule", name)),
		ambiguity: AmbiguityWarn,
		sets:      make(map[labelKey]*node),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Schedule) Name() string { return s.name }
func (s *Schedule) State() State { return s.state }

// Len returns the number of systems added.
func (s *Schedule) Len() int { return len(s.systems) }

func (s *Schedule) invalidate() {
	s.state = StateUnbuilt
	s.plan = nil
}

// AddSystem adds sys and returns its config for ordering and conditions.
func (s *Schedule) AddSystem(sys *ecs.System) *SystemConfig {
	n := &node{kind: nodeSystem, name: sys.Name(), system: sys, order: len(s.systems)}
	s.systems = append(s.systems, n)
	s.invalidate()
	return &SystemConfig{sched: s, node: n}
}

// AddSystems adds several systems with no ordering between them.
func (s *Schedule) AddSystems(systems ...*ecs.System) []*SystemConfig {
	out := make([]*SystemConfig, len(systems))
	for i, sys := range systems {
		out[i] = s.AddSystem(sys)
	}
	return out
}

// Configure returns the config of a system already added to s.
func (s *Schedule) Configure(sys *ecs.System) (*SystemConfig, bool) {
	for _, n := range s.systems {
		if n.system == sys {
			return &SystemConfig{sched: s, node: n}, true
		}
	}
	return nil, false
}

// Close drops the pending commands of every system and returns the entities
// their command buffers still reserve to the world's allocator. The
// schedule may run again afterwards; buffers are recreated on demand.
func (s *Schedule) Close() {
	for _, n := range s.systems {
		n.system.Close()
	}
}

// ConfigureSet returns the config of set, creating it on first use.
func (s *Schedule) ConfigureSet(set Set) *SetConfig {
	return &SetConfig{sched: s, node: s.setNode(set.labelKey())}
}

func (s *Schedule) setNode(key labelKey) *node {
	if n, ok := s.sets[key]; ok {
		return n
	}
	name := key.name
	if key.kind == labelSystemName {
		name = "SystemLabel(" + key.name + ")"
	}
	n := &node{kind: nodeSet, name: name, key: key}
	s.sets[key] = n
	s.setList = append(s.setList, n)
	s.invalidate()
	return n
}

func (s *Schedule) resolve(l Label) *node {
	key := l.labelKey()
	if key.kind == labelNode {
		if key.node.system == nil || !s.owns(key.node) {
			panic("schedule: label refers to a system of another schedule")
		}
		return key.node
	}
	return s.setNode(key)
}

func (s *Schedule) owns(n *node) bool {
	return n.order < len(s.systems) && s.systems[n.order] == n
}

// Initialize validates the graph and plans stages for w. On failure the
// schedule is Invalid and the error combines every finding of the first
// failing check.
func (s *Schedule) Initialize(w *ecs.World) error {
	if s.world != nil && s.world != w {
		panic(fmt.Sprintf("schedule: %s initialized with a second world", s.name))
	}
	s.world = w
	if s.state == StateBuilt {
		return nil
	}
	p, err := s.build()
	if err != nil {
		s.state = StateInvalid
		s.plan = nil
		return err
	}
	for _, n := range s.systems {
		n.system.Init(w)
		for _, c := range n.conditions {
			c.Init(w)
		}
	}
	for _, n := range s.setList {
		for _, c := range n.conditions {
			c.Init(w)
		}
	}
	s.plan = p
	s.state = StateBuilt
	s.log.Debug("schedule built", zap.Int("systems", len(s.systems)), zap.Strings("stages", p.describe()))
	return nil
}

// Stages returns the planned system names per stage, or nil before a
// successful build.
func (s *Schedule) Stages() [][]string {
	if s.plan == nil {
		return nil
	}
	out := make([][]string, len(s.plan.stages))
	for i, st := range s.plan.stages {
		for _, sys := range st {
			out[i] = append(out[i], sys.node.name)
		}
	}
	return out
}

// CheckTicks clamps the last-run ticks of every system and condition.
func (s *Schedule) CheckTicks(now ecs.Tick) {
	for _, n := range s.systems {
		n.system.CheckTicks(now)
		for _, c := range n.conditions {
			c.CheckTicks(now)
		}
	}
	for _, n := range s.setList {
		for _, c := range n.conditions {
			c.CheckTicks(now)
		}
	}
}

// graph is the indexed view of the schedule used while building: sets
// first, then systems.
type graph struct {
	nodes     []*node
	index     map[*node]int
	hierarchy *digraph
	deps      *digraph
}

func (s *Schedule) buildGraph() *graph {
	// Resolving labels may create sets, so resolve everything first.
	for _, n := range s.systems {
		s.setNode(systemName(n.name).labelKey())
		s.resolveAll(n)
	}
	for i := 0; i < len(s.setList); i++ {
		s.resolveAll(s.setList[i])
	}
	g := &graph{index: make(map[*node]int)}
	g.nodes = append(g.nodes, s.setList...)
	g.nodes = append(g.nodes, s.systems...)
	for i, n := range g.nodes {
		g.index[n] = i
	}
	g.hierarchy = newDigraph(len(g.nodes))
	g.deps = newDigraph(len(g.nodes))
	for i, n := range g.nodes {
		if n.kind == nodeSystem {
			g.hierarchy.addEdge(g.index[s.sets[systemName(n.name).labelKey()]], i)
		}
		for _, p := range n.parents {
			g.hierarchy.addEdge(g.index[s.resolve(p)], i)
		}
		for _, b := range n.before {
			g.deps.addEdge(i, g.index[s.resolve(b)])
		}
		for _, a := range n.after {
			g.deps.addEdge(g.index[s.resolve(a)], i)
		}
	}
	return g
}

func (s *Schedule) resolveAll(n *node) {
	for _, ls := range [][]Label{n.parents, n.before, n.after, n.ambiguousWith} {
		for _, l := range ls {
			s.resolve(l)
		}
	}
}

func (g *graph) names(idx []int) []string {
	out := make([]string, len(idx))
	for i, v := range idx {
		out[i] = g.nodes[v].name
	}
	return out
}

func cycleErrors(kind error, g *graph, cycles [][]int) error {
	var err error
	for _, c := range cycles {
		nodes := g.names(c)
		if len(c) == 1 {
			nodes = append(nodes, nodes[0])
		}
		err = multierr.Append(err, &BuildError{Kind: kind, Nodes: nodes})
	}
	return err
}

func (s *Schedule) build() (*plan, error) {
	g := s.buildGraph()

	if cycles := g.hierarchy.cycles(); len(cycles) > 0 {
		return nil, cycleErrors(ErrHierarchyCycle, g, cycles)
	}
	if cycles := g.deps.cycles(); len(cycles) > 0 {
		return nil, cycleErrors(ErrDependencyCycle, g, cycles)
	}

	hOrder := g.hierarchy.topoSort(func(int) int { return 0 })
	below := g.hierarchy.reachability(hOrder)

	if err := g.checkRedundancy(below); err != nil {
		return nil, err
	}
	if err := g.checkCrossDependency(below); err != nil {
		return nil, err
	}
	if err := s.checkSystemLabels(g); err != nil {
		return nil, err
	}

	flat := g.flatten(below)
	if cycles := flat.cycles(); len(cycles) > 0 {
		return nil, cycleErrors(ErrDependencyCycle, g, cycles)
	}
	order := flat.topoSort(func(v int) int {
		if n := g.nodes[v]; n.kind == nodeSystem {
			return n.order
		}
		return -1
	})
	reach := flat.reachability(order)

	if err := s.checkAmbiguity(g, below, reach); err != nil {
		return nil, err
	}
	return s.planStages(g, flat, order, below), nil
}

// checkRedundancy rejects a containment edge p->c when c is also below
// another child of p.
func (g *graph) checkRedundancy(below []bitset) error {
	var err error
	for p, children := range g.hierarchy.out {
		for _, c := range children {
			for _, x := range children {
				if x != c && below[x].has(c) {
					err = multierr.Append(err, &BuildError{Kind: ErrHierarchyRedundancy, Nodes: g.names([]int{p, c})})
					break
				}
			}
		}
	}
	return err
}

// checkCrossDependency rejects ordering edges between a node and one of its
// ancestors or descendants.
func (g *graph) checkCrossDependency(below []bitset) error {
	var err error
	for a, outs := range g.deps.out {
		for _, b := range outs {
			if below[a].has(b) || below[b].has(a) {
				err = multierr.Append(err, &BuildError{Kind: ErrCrossDependency, Nodes: g.names([]int{a, b})})
			}
		}
	}
	return err
}

// checkSystemLabels rejects ordering against a system name shared by
// several systems.
func (s *Schedule) checkSystemLabels(g *graph) error {
	count := make(map[string]int)
	for _, n := range s.systems {
		count[n.name]++
	}
	var err error
	reported := make(map[string]bool)
	for _, n := range g.nodes {
		for _, ls := range [][]Label{n.before, n.after, n.ambiguousWith} {
			for _, l := range ls {
				key := l.labelKey()
				if key.kind != labelSystemName || count[key.name] < 2 || reported[key.name] {
					continue
				}
				reported[key.name] = true
				err = multierr.Append(err, &BuildError{
					Kind:  ErrSystemTypeSetAmbiguity,
					Nodes: []string{n.name, "SystemLabel(" + key.name + ")"},
				})
			}
		}
	}
	return err
}

// members returns the systems a node stands for: itself, or every system
// below a set.
func (g *graph) members(v int, below []bitset) []int {
	if g.nodes[v].kind == nodeSystem {
		return []int{v}
	}
	var out []int
	below[v].each(func(i int) {
		if g.nodes[i].kind == nodeSystem {
			out = append(out, i)
		}
	})
	return out
}

// flatten projects ordering edges between sets onto their systems. A set
// without systems stays in the graph as a pass-through node so ordering
// through it is kept.
func (g *graph) flatten(below []bitset) *digraph {
	flat := newDigraph(len(g.nodes))
	expand := func(v int) []int {
		if m := g.members(v, below); len(m) > 0 {
			return m
		}
		return []int{v}
	}
	for a, outs := range g.deps.out {
		for _, b := range outs {
			for _, x := range expand(a) {
				for _, y := range expand(b) {
					flat.addEdge(x, y)
				}
			}
		}
	}
	return flat
}

// ancestors lists the sets above v.
func (g *graph) ancestors(v int, below []bitset) []int {
	var out []int
	for i, n := range g.nodes {
		if n.kind == nodeSet && below[i].has(v) {
			out = append(out, i)
		}
	}
	return out
}

func (s *Schedule) checkAmbiguity(g *graph, below, reach []bitset) error {
	if s.ambiguity == AmbiguityIgnore {
		return nil
	}
	n := len(g.nodes)
	ignoreAll := newBitset(n)
	ignore := make([]bitset, n)
	for v, nd := range g.nodes {
		if nd.kind != nodeSystem {
			continue
		}
		ignore[v] = newBitset(n)
		for _, src := range append(g.ancestors(v, below), v) {
			sn := g.nodes[src]
			if sn.ambiguousAll {
				ignoreAll.set(v)
			}
			for _, l := range sn.ambiguousWith {
				for _, m := range g.members(g.index[s.resolve(l)], below) {
					ignore[v].set(m)
				}
			}
		}
	}

	var err error
	for i, a := range s.systems {
		ai := g.index[a]
		for _, b := range s.systems[i+1:] {
			bi := g.index[b]
			if reach[ai].has(bi) || reach[bi].has(ai) {
				continue
			}
			if ignoreAll.has(ai) || ignoreAll.has(bi) || ignore[ai].has(bi) || ignore[bi].has(ai) {
				continue
			}
			aa, ba := a.system.Access(), b.system.Access()
			if !aa.ConflictsWith(ba) {
				continue
			}
			conflicts := aa.ConflictNames(ba)
			if s.ambiguity == AmbiguityWarn {
				s.log.Warn("ambiguous system order",
					zap.String("first", a.name),
					zap.String("second", b.name),
					zap.Strings("conflicts", conflicts),
				)
				continue
			}
			err = multierr.Append(err, &BuildError{
				Kind:      ErrAmbiguity,
				Nodes:     []string{a.name, b.name},
				Conflicts: conflicts,
			})
		}
	}
	return err
}

type plannedSystem struct {
	node       *node
	conditions []*ecs.Condition
	sets       []int // indices into plan.sets gating this system
}

type plan struct {
	stages [][]*plannedSystem
	// sets holds the conditions of every set gating some system.
	sets [][]*ecs.Condition
}

func (p *plan) describe() []string {
	out := make([]string, len(p.stages))
	for i, st := range p.stages {
		names := make([]string, len(st))
		for j, sys := range st {
			names[j] = sys.node.name
		}
		out[i] = strings.Join(names, ",")
	}
	return out
}

// planStages walks systems in topological order, placing each in the
// earliest stage after all its predecessors that holds nothing it
// conflicts with. Exclusive systems get a stage of their own.
func (s *Schedule) planStages(g *graph, flat *digraph, order []int, below []bitset) *plan {
	n := len(g.nodes)
	preds := make([][]int, n)
	for a, outs := range flat.out {
		for _, b := range outs {
			preds[b] = append(preds[b], a)
		}
	}
	end := make([]int, n) // first stage a successor may use
	p := &plan{}
	var access [][]ecs.Access
	setSlot := make(map[int]int)

	for _, v := range order {
		earliest := 0
		for _, u := range preds[v] {
			earliest = max(earliest, end[u])
		}
		nd := g.nodes[v]
		if nd.kind != nodeSystem {
			end[v] = earliest
			continue
		}
		acc := nd.system.Access()
		st := earliest
		for ; st < len(p.stages); st++ {
			if fits(access[st], acc) {
				break
			}
		}
		if st == len(p.stages) {
			p.stages = append(p.stages, nil)
			access = append(access, nil)
		}
		ps := &plannedSystem{node: nd, conditions: nd.conditions}
		for _, set := range g.ancestors(v, below) {
			if len(g.nodes[set].conditions) == 0 {
				continue
			}
			slot, ok := setSlot[set]
			if !ok {
				slot = len(p.sets)
				setSlot[set] = slot
				p.sets = append(p.sets, g.nodes[set].conditions)
			}
			ps.sets = append(ps.sets, slot)
		}
		p.stages[st] = append(p.stages[st], ps)
		access[st] = append(access[st], acc)
		end[v] = st + 1
	}
	return p
}

func fits(stage []ecs.Access, acc ecs.Access) bool {
	for _, other := range stage {
		if other.ConflictsWith(acc) {
			return false
		}
	}
	return true
}
