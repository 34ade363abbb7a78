package system

import (
	"errors"
	"fmt"
	"strings"
)

// Build errors. A failed Initialize returns one *BuildError per finding of
// the first failing check, combined with multierr; match them with
// errors.Is.
var (
	ErrHierarchyCycle         = errors.New("set hierarchy contains a cycle")
	ErrDependencyCycle        = errors.New("system dependencies contain a cycle")
	ErrHierarchyRedundancy    = errors.New("set hierarchy contains a redundant edge")
	ErrCrossDependency        = errors.New("nodes have both an ordering and a containment relation")
	ErrSystemTypeSetAmbiguity = errors.New("system label used for ordering names several systems")
	ErrAmbiguity              = errors.New("systems with conflicting access have no ordering")
)

// BuildError is one finding of schedule validation.
type BuildError struct {
	Kind  error
	Nodes []string
	// Conflicts names the contested types of an ambiguity.
	Conflicts []string
}

func (e *BuildError) Error() string {
	sep := ", "
	if e.Kind == ErrHierarchyCycle || e.Kind == ErrDependencyCycle {
		sep = " -> "
	}
	msg := fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Nodes, sep))
	if len(e.Conflicts) > 0 {
		msg += " (conflict on " + strings.Join(e.Conflicts, ", ") + ")"
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Kind }

// SystemPanic carries a panic raised by a system on a worker goroutine back
// to the goroutine running the schedule, where it is re-raised.
type SystemPanic struct {
	System string
	Value  any
	Stack  []byte
}

func (p *SystemPanic) Error() string {
	return fmt.Sprintf("system %s panicked: %v", p.System, p.Value)
}
