package ecs

import "sync"

type testPos struct{ X, Y int }

type testVel struct{ DX, DY int }

type testTag struct{}

type testSparse struct{ N int }

func (testSparse) StorageKind() StorageKind { return StorageSparseSet }

type testLikes struct{ Weight int }

type testRes struct{ N int }

// hooked records its lifecycle into hookLog.
type hooked struct{ V int }

var (
	hookLog      []string
	replacedSeen []int

	registerHooked = sync.OnceFunc(func() {
		Register[hooked](WithHooks(Hooks{
			OnAdd:    func(*World, HookContext) { hookLog = append(hookLog, "add") },
			OnInsert: func(*World, HookContext) { hookLog = append(hookLog, "insert") },
			OnReplace: func(w *World, ctx HookContext) {
				hookLog = append(hookLog, "replace")
				if v, ok := Get[hooked](w, ctx.Entity); ok {
					replacedSeen = append(replacedSeen, v.V)
				}
			},
			OnRemove:  func(*World, HookContext) { hookLog = append(hookLog, "remove") },
			OnDespawn: func(*World, HookContext) { hookLog = append(hookLog, "despawn") },
		}))
	})
)

type reqA struct{}

type reqB struct{ N int }

type reqC struct{ N int }

type cycA struct{}

type cycB struct{}

var registerRequired = sync.OnceFunc(func() {
	Register[reqB](Requires(func() reqC { return reqC{N: 2} }))
	Register[reqA](Requires(func() reqB { return reqB{N: 1} }))
	Register[cycA](Requires(func() cycB { return cycB{} }))
	Register[cycB](Requires(func() cycA { return cycA{} }))
})

func collect(q *Query) []Entity {
	var out []Entity
	for r := range q.Iter() {
		out = append(out, r.Entity())
	}
	return out
}

func sameSet(a, b []Entity) bool {
	if len(a) != len(b) {
		return false
	}
	m := make(map[Entity]int, len(a))
	for _, e := range a {
		m[e]++
	}
	for _, e := range b {
		m[e]--
		if m[e] < 0 {
			return false
		}
	}
	return true
}
