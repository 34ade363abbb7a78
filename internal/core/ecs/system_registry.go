package ecs

import (
	"errors"
	"fmt"
)

var (
	ErrSystemIDNotRegistered = errors.New("system id not registered")
	ErrRecursive             = errors.New("system tried to run itself recursively")
	ErrSelfRemove            = errors.New("system tried to remove itself while running")
)

// SystemID addresses a one-shot system registered on a world. It is the
// entity the system is stored on.
type SystemID Entity

func (id SystemID) Entity() Entity { return Entity(id) }
func (id SystemID) String() string { return "system " + Entity(id).String() }

// registeredSystem is the component holding a one-shot system.
type registeredSystem struct {
	system *System
}

func (registeredSystem) StorageKind() StorageKind { return StorageSparseSet }

type systemRegistry struct {
	running map[SystemID]bool
}

func (r *systemRegistry) init() {
	r.running = make(map[SystemID]bool)
}

// RegisterSystem stores s on a fresh entity and returns its id. The system
// keeps its tick state across runs.
func (w *World) RegisterSystem(s *System) SystemID {
	s.Init(w)
	e := w.Spawn(C(registeredSystem{system: s}))
	return SystemID(e)
}

// RunSystem runs a registered system once and applies its commands.
func (w *World) RunSystem(id SystemID) error {
	rs, ok := Get[registeredSystem](w, Entity(id))
	if !ok {
		return fmt.Errorf("run %s: %w", id, ErrSystemIDNotRegistered)
	}
	if w.systems.running[id] {
		return fmt.Errorf("run %s: %w", id, ErrRecursive)
	}
	s := rs.system
	w.systems.running[id] = true
	defer delete(w.systems.running, id)
	s.Run(w)
	s.ApplyDeferred(w)
	return nil
}

// UnregisterSystem removes a registered system and despawns its entity.
func (w *World) UnregisterSystem(id SystemID) error {
	rs, ok := Get[registeredSystem](w, Entity(id))
	if !ok {
		return fmt.Errorf("unregister %s: %w", id, ErrSystemIDNotRegistered)
	}
	if w.systems.running[id] {
		return fmt.Errorf("unregister %s: %w", id, ErrSelfRemove)
	}
	s := rs.system
	w.Despawn(Entity(id))
	s.Close()
	return nil
}
