package event

import (
	"reflect"
	"sync"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// Bus is a double-buffered event bus. Events emitted in tick N are readable
// in tick N+1. SwapBuffers() is called at tick start by UpdateSystem.
// The bus lives in the world as a *Bus resource; systems emitting declare
// ecs.WriteRes[*Bus], systems only reading declare ecs.ReadRes[*Bus].
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]func(any)
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

// Emit queues an event into the back buffer (will be readable next tick).
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeFor[T]()
	b.back[t] = append(b.back[t], event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeFor[T]()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// Read returns this tick's events of type T in emit order.
func Read[T any](b *Bus) []T {
	events := b.front[reflect.TypeFor[T]()]
	out := make([]T, len(events))
	for i, ev := range events {
		out[i] = ev.(T)
	}
	return out
}

// SwapBuffers rotates back→front and clears the new back buffer.
// Called once at tick start.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	for t, events := range b.front {
		handlers := b.handlers[t]
		for _, ev := range events {
			for _, h := range handlers {
				h(ev)
			}
		}
	}
}

// Install inserts a fresh bus as a world resource and returns it.
func Install(w *ecs.World) *Bus {
	b := NewBus()
	ecs.InsertResource(w, b)
	return b
}

// UpdateSystem swaps the bus buffers and dispatches the new front buffer.
// Add it to PhaseFirst.
func UpdateSystem() *ecs.System {
	bus := ecs.NewWriteRes[*Bus]()
	return ecs.NewSystem("event_update", func(ctx *ecs.SystemContext) {
		m, ok := bus.Get(ctx)
		if !ok {
			return
		}
		b := *m.Get()
		b.SwapBuffers()
		b.DispatchAll()
	}, bus)
}
