package system

import "github.com/l1jgo/ecscore/internal/core/ecs"

type labelKind uint8

const (
	labelSet labelKind = iota
	labelSystemName
	labelNode
)

type labelKey struct {
	kind labelKind
	name string
	node *node
}

// Label names something ordering and membership can refer to: a Set, every
// system sharing a name (SystemLabel), or one added system (*SystemConfig).
type Label interface {
	labelKey() labelKey
}

// Set is a named group of systems and sets.
type Set string

func (s Set) labelKey() labelKey { return labelKey{kind: labelSet, name: string(s)} }

type systemName string

func (s systemName) labelKey() labelKey { return labelKey{kind: labelSystemName, name: string(s)} }

// SystemLabel refers to every system added under name. Each system is an
// implicit member of its name's set. Ordering against a name shared by
// several systems fails the build.
func SystemLabel(name string) Label { return systemName(name) }

type nodeKind uint8

const (
	nodeSystem nodeKind = iota
	nodeSet
)

type node struct {
	kind   nodeKind
	name   string
	system *ecs.System
	key    labelKey
	order  int // insertion order among systems

	parents       []Label
	before        []Label
	after         []Label
	conditions    []*ecs.Condition
	ambiguousWith []Label
	ambiguousAll  bool
}

// SystemConfig configures a system added to a schedule. Every method edits
// the schedule in place and invalidates its build.
type SystemConfig struct {
	sched *Schedule
	node  *node
}

func (c *SystemConfig) labelKey() labelKey { return labelKey{kind: labelNode, node: c.node} }

func (c *SystemConfig) System() *ecs.System { return c.node.system }

func (c *SystemConfig) InSet(sets ...Label) *SystemConfig {
	c.node.parents = append(c.node.parents, sets...)
	c.sched.invalidate()
	return c
}

// Before orders the system ahead of every system under the labels.
func (c *SystemConfig) Before(labels ...Label) *SystemConfig {
	c.node.before = append(c.node.before, labels...)
	c.sched.invalidate()
	return c
}

func (c *SystemConfig) After(labels ...Label) *SystemConfig {
	c.node.after = append(c.node.after, labels...)
	c.sched.invalidate()
	return c
}

// RunIf gates the system on cond. All conditions must hold.
func (c *SystemConfig) RunIf(cond *ecs.Condition) *SystemConfig {
	c.node.conditions = append(c.node.conditions, cond)
	c.sched.invalidate()
	return c
}

// AmbiguousWith silences ambiguity reports between this system and the
// systems under the labels.
func (c *SystemConfig) AmbiguousWith(labels ...Label) *SystemConfig {
	c.node.ambiguousWith = append(c.node.ambiguousWith, labels...)
	c.sched.invalidate()
	return c
}

func (c *SystemConfig) AmbiguousWithAll() *SystemConfig {
	c.node.ambiguousAll = true
	c.sched.invalidate()
	return c
}

// SetConfig configures a set. Conditions on a set gate every system under
// it and are evaluated at most once per run.
type SetConfig struct {
	sched *Schedule
	node  *node
}

func (c *SetConfig) labelKey() labelKey { return c.node.key }

func (c *SetConfig) InSet(sets ...Label) *SetConfig {
	c.node.parents = append(c.node.parents, sets...)
	c.sched.invalidate()
	return c
}

func (c *SetConfig) Before(labels ...Label) *SetConfig {
	c.node.before = append(c.node.before, labels...)
	c.sched.invalidate()
	return c
}

func (c *SetConfig) After(labels ...Label) *SetConfig {
	c.node.after = append(c.node.after, labels...)
	c.sched.invalidate()
	return c
}

func (c *SetConfig) RunIf(cond *ecs.Condition) *SetConfig {
	c.node.conditions = append(c.node.conditions, cond)
	c.sched.invalidate()
	return c
}

func (c *SetConfig) AmbiguousWith(labels ...Label) *SetConfig {
	c.node.ambiguousWith = append(c.node.ambiguousWith, labels...)
	c.sched.invalidate()
	return c
}

func (c *SetConfig) AmbiguousWithAll() *SetConfig {
	c.node.ambiguousAll = true
	c.sched.invalidate()
	return c
}

// Chain orders labels one after another.
func Chain(labels ...Label) {
	for i := 1; i < len(labels); i++ {
		switch c := labels[i].(type) {
		case *SystemConfig:
			c.After(labels[i-1])
		case *SetConfig:
			c.After(labels[i-1])
		default:
			switch p := labels[i-1].(type) {
			case *SystemConfig:
				p.Before(labels[i])
			case *SetConfig:
				p.Before(labels[i])
			default:
				panic("schedule: Chain needs a *SystemConfig or *SetConfig next to every label")
			}
		}
	}
}
