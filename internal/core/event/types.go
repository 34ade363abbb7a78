package event

import "github.com/l1jgo/ecscore/internal/core/ecs"

// Demo event types.

type EntitySpawned struct {
	Entity ecs.Entity
	Prefab string
}

type EntityExpired struct {
	Entity ecs.Entity
}

// TargetLost is emitted when an entity loses its last target.
type TargetLost struct {
	Source ecs.Entity
}
