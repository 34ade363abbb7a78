package ecs

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// MaxComponentTypes bounds the process-wide number of component, relation
// and resource types. Signatures are fixed-size bitmasks of this width.
const MaxComponentTypes = 256

// ComponentID is the process-wide identifier of a registered type.
type ComponentID uint16

// StorageKind selects the layout a component type is stored in.
type StorageKind uint8

const (
	// StorageTable stores values in dense per-signature columns. Fast to
	// iterate; adding or removing the type migrates the entity's row.
	StorageTable StorageKind = iota
	// StorageSparseSet stores values in a per-type sparse set. Adding or
	// removing never migrates; iteration is slower.
	StorageSparseSet
)

func (k StorageKind) String() string {
	switch k {
	case StorageTable:
		return "Table"
	case StorageSparseSet:
		return "SparseSet"
	default:
		return fmt.Sprintf("StorageKind(%d)", int(k))
	}
}

// StorageDeclarer lets a component type pick its storage kind without an
// explicit Register call.
type StorageDeclarer interface {
	StorageKind() StorageKind
}

var (
	ErrStorageKindConflict = errors.New("component already registered with a different storage kind")
	ErrAlreadyRegistered   = errors.New("component already registered")
)

type componentKind uint8

const (
	kindComponent componentKind = iota
	kindRelation
	kindResource
)

// HookContext describes the mutation a hook fires for. Structural changes a
// hook wants to make go through Commands; they are applied once the
// outermost world mutation completes.
type HookContext struct {
	Entity    Entity
	Component ComponentID
	Commands  *CommandBuffer
}

type Hook func(w *World, ctx HookContext)

// Hooks are invoked by the World at the matching lifecycle point. OnReplace
// and OnRemove see the old value still in place; OnAdd and OnInsert see the
// new one.
type Hooks struct {
	OnAdd     Hook
	OnInsert  Hook
	OnReplace Hook
	OnRemove  Hook
	OnDespawn Hook
}

func (h Hooks) empty() bool {
	return h.OnAdd == nil && h.OnInsert == nil && h.OnReplace == nil && h.OnRemove == nil && h.OnDespawn == nil
}

type requiredComponent struct {
	info    *componentInfo
	factory func() any
}

type componentInfo struct {
	id        ComponentID
	typ       reflect.Type
	name      string
	kind      componentKind
	storage   StorageKind
	hooks     Hooks
	required  []requiredComponent
	explicit  bool
	used      atomic.Bool
	newColumn func() column
	newSparse func() sparseStore
}

// ComponentInfo is the read-only view of a registered type.
type ComponentInfo struct {
	ID       ComponentID
	Name     string
	Storage  StorageKind
	Relation bool
	Resource bool
}

type componentRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*componentInfo
	infos  []*componentInfo
}

var components = &componentRegistry{
	byType: make(map[reflect.Type]*componentInfo, 64),
}

func (r *componentRegistry) lookup(t reflect.Type) (*componentInfo, bool) {
	r.mu.RLock()
	info, ok := r.byType[t]
	r.mu.RUnlock()
	return info, ok
}

func (r *componentRegistry) get(id ComponentID) *componentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infos[id]
}

type componentOptions struct {
	storage  *StorageKind
	hooks    Hooks
	required []requiredComponent
}

// ComponentOption configures a type at registration.
type ComponentOption func(*componentOptions)

func WithStorage(kind StorageKind) ComponentOption {
	return func(o *componentOptions) { o.storage = &kind }
}

func WithHooks(h Hooks) ComponentOption {
	return func(o *componentOptions) { o.hooks = h }
}

// Requires declares that inserting the registered type also inserts R,
// built by factory, unless the entity already has R. Requirements expand
// depth-first in declaration order.
func Requires[R any](factory func() R) ComponentOption {
	info := infoFor[R]()
	return func(o *componentOptions) {
		o.required = append(o.required, requiredComponent{
			info:    info,
			factory: func() any { return factory() },
		})
	}
}

type registration struct {
	typ       reflect.Type
	name      string
	kind      componentKind
	declared  StorageKind
	explicit  bool
	opts      componentOptions
	newColumn func() column
	newSparse func() sparseStore
}

func (r *componentRegistry) register(reg registration) (*componentInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.byType[reg.typ]; ok {
		return info, r.reconcile(info, reg)
	}
	if len(r.infos) >= MaxComponentTypes {
		panic(fmt.Sprintf("ecs: cannot register %s: maximum number of component types (%d) reached", reg.name, MaxComponentTypes))
	}
	storage := reg.declared
	if reg.opts.storage != nil {
		storage = *reg.opts.storage
	}
	info := &componentInfo{
		id:        ComponentID(len(r.infos)),
		typ:       reg.typ,
		name:      reg.name,
		kind:      reg.kind,
		storage:   storage,
		hooks:     reg.opts.hooks,
		required:  reg.opts.required,
		explicit:  reg.explicit,
		newColumn: reg.newColumn,
		newSparse: reg.newSparse,
	}
	r.infos = append(r.infos, info)
	r.byType[reg.typ] = info
	return info, nil
}

// reconcile checks a repeated registration against the existing entry.
// An implicit entry no world has stored yet may still be upgraded.
func (r *componentRegistry) reconcile(info *componentInfo, reg registration) error {
	if !reg.explicit {
		return nil
	}
	upgradable := !info.explicit && !info.used.Load()
	if reg.opts.storage != nil && *reg.opts.storage != info.storage {
		if !upgradable {
			return fmt.Errorf("register %s as %s (is %s): %w", info.name, *reg.opts.storage, info.storage, ErrStorageKindConflict)
		}
		info.storage = *reg.opts.storage
	}
	if !reg.opts.hooks.empty() || len(reg.opts.required) > 0 {
		if !upgradable {
			return fmt.Errorf("register %s: %w", info.name, ErrAlreadyRegistered)
		}
		info.hooks = reg.opts.hooks
		info.required = reg.opts.required
	}
	info.explicit = true
	return nil
}

func componentRegistration[T any](explicit bool, opts componentOptions) registration {
	declared := StorageTable
	if d, ok := any(new(T)).(StorageDeclarer); ok {
		declared = d.StorageKind()
	}
	t := reflect.TypeFor[T]()
	return registration{
		typ:       t,
		name:      t.String(),
		kind:      kindComponent,
		declared:  declared,
		explicit:  explicit,
		opts:      opts,
		newColumn: func() column { return &typedColumn[T]{} },
		newSparse: func() sparseStore { return newSparseSet[T]() },
	}
}

// TryRegister registers T as a component type. Registering the same type
// again with a different storage kind, or with hooks or requirements once
// it has been registered explicitly, fails.
func TryRegister[T any](opts ...ComponentOption) (ComponentID, error) {
	var o componentOptions
	for _, opt := range opts {
		opt(&o)
	}
	info, err := components.register(componentRegistration[T](true, o))
	if err != nil {
		return 0, err
	}
	return info.id, nil
}

// Register is TryRegister that panics on conflict.
func Register[T any](opts ...ComponentOption) ComponentID {
	id, err := TryRegister[T](opts...)
	if err != nil {
		panic("ecs: " + err.Error())
	}
	return id
}

// RegisterRelation registers R as relation data stored per (source, target)
// pair. Only WithStorage and WithHooks apply to relations.
func RegisterRelation[R any](opts ...ComponentOption) ComponentID {
	var o componentOptions
	for _, opt := range opts {
		opt(&o)
	}
	o.required = nil
	info, err := components.register(relationRegistration[R](true, o))
	if err != nil {
		panic("ecs: " + err.Error())
	}
	return info.id
}

// ComponentIDOf returns T's id, registering it with default options first
// if needed.
func ComponentIDOf[T any]() ComponentID {
	return infoFor[T]().id
}

// RelationIDOf returns the id of relation type R.
func RelationIDOf[R any]() ComponentID {
	return relationInfoFor[R]().id
}

// ResourceIDOf returns the id of resource type T. Resource ids never
// collide with the component id of the same Go type.
func ResourceIDOf[T any]() ComponentID {
	return resourceInfoFor[T]().id
}

// LookupComponent returns the registered description of id.
func LookupComponent(id ComponentID) (ComponentInfo, bool) {
	components.mu.RLock()
	defer components.mu.RUnlock()
	if int(id) >= len(components.infos) {
		return ComponentInfo{}, false
	}
	info := components.infos[id]
	return ComponentInfo{
		ID:       info.id,
		Name:     info.name,
		Storage:  info.storage,
		Relation: info.kind == kindRelation,
		Resource: info.kind == kindResource,
	}, true
}

func componentName(id ComponentID) string {
	if info, ok := LookupComponent(id); ok {
		return info.Name
	}
	return fmt.Sprintf("component#%d", id)
}

func infoFor[T any]() *componentInfo {
	if info, ok := components.lookup(reflect.TypeFor[T]()); ok {
		return info
	}
	info, err := components.register(componentRegistration[T](false, componentOptions{}))
	if err != nil {
		panic("ecs: " + err.Error())
	}
	return info
}

// relationKey gives every relation type its own registry key, distinct from
// the component key of the same Go type.
type relationKey[R any] struct{}

func relationRegistration[R any](explicit bool, opts componentOptions) registration {
	return registration{
		typ:       reflect.TypeFor[relationKey[R]](),
		name:      "Relation<" + reflect.TypeFor[R]().String() + ">",
		kind:      kindRelation,
		declared:  StorageTable,
		explicit:  explicit,
		opts:      opts,
		newColumn: func() column { return &typedColumn[relationEdges[R]]{} },
		newSparse: func() sparseStore { return newSparseSet[relationEdges[R]]() },
	}
}

func relationInfoFor[R any]() *componentInfo {
	if info, ok := components.lookup(reflect.TypeFor[relationKey[R]]()); ok {
		return info
	}
	info, err := components.register(relationRegistration[R](false, componentOptions{}))
	if err != nil {
		panic("ecs: " + err.Error())
	}
	return info
}

type resourceKey[T any] struct{}

func resourceInfoFor[T any]() *componentInfo {
	t := reflect.TypeFor[resourceKey[T]]()
	if info, ok := components.lookup(t); ok {
		return info
	}
	info, err := components.register(registration{
		typ:  t,
		name: "Res<" + reflect.TypeFor[T]().String() + ">",
		kind: kindResource,
	})
	if err != nil {
		panic("ecs: " + err.Error())
	}
	return info
}
