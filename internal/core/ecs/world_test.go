package ecs

import (
	"slices"
	"testing"
)

func TestSpawnInsertRemove(t *testing.T) {
	w := NewWorld()
	e := w.Spawn(C(testPos{1, 2}))
	if !w.Contains(e) || w.Len() != 1 {
		t.Fatalf("Contains = %v, Len = %d", w.Contains(e), w.Len())
	}
	if p, ok := Get[testPos](w, e); !ok || *p != (testPos{1, 2}) {
		t.Fatalf("Get = %v, %v", p, ok)
	}
	if Has[testVel](w, e) {
		t.Error("entity has a component it was never given")
	}

	if !Insert(w, e, testVel{3, 4}) {
		t.Fatal("Insert failed")
	}
	// empty, {pos}, {pos, vel}
	if w.TableCount() != 3 {
		t.Errorf("TableCount = %d, want 3", w.TableCount())
	}
	if p, _ := Get[testPos](w, e); *p != (testPos{1, 2}) {
		t.Errorf("position lost on migration: %v", *p)
	}

	old, ok := Remove[testPos](w, e)
	if !ok || old != (testPos{1, 2}) {
		t.Errorf("Remove = %v, %v", old, ok)
	}
	if Has[testPos](w, e) {
		t.Error("removed component still present")
	}
	if v, ok := Get[testVel](w, e); !ok || *v != (testVel{3, 4}) {
		t.Errorf("velocity after remove = %v, %v", v, ok)
	}
	if _, ok := Remove[testPos](w, e); ok {
		t.Error("second Remove reported a value")
	}

	if !w.Despawn(e) {
		t.Fatal("Despawn failed")
	}
	if w.Contains(e) || w.Len() != 0 || w.Allocator().Alive(e) {
		t.Error("entity survived Despawn")
	}
	if Insert(w, e, testPos{}) || w.Despawn(e) {
		t.Error("dead entity accepted a mutation")
	}
}

func TestDespawnKeepsOtherRowsAddressable(t *testing.T) {
	w := NewWorld()
	var es []Entity
	for i := range 4 {
		es = append(es, w.Spawn(C(testPos{i, i})))
	}
	w.Despawn(es[0])
	w.Despawn(es[2])
	for _, i := range []int{1, 3} {
		p, ok := Get[testPos](w, es[i])
		if !ok || p.X != i {
			t.Errorf("entity %d: Get = %v, %v", i, p, ok)
		}
	}
	got := slices.Collect(w.Entities())
	if !sameSet(got, []Entity{es[1], es[3]}) {
		t.Errorf("Entities = %v", got)
	}
}

func TestStaleEntityIsRejected(t *testing.T) {
	w := NewWorld()
	e := w.Spawn(C(testPos{}))
	w.Despawn(e)
	e2 := w.Spawn(C(testPos{7, 7}))
	if e2.Index() != e.Index() {
		t.Skipf("index not recycled (%s, %s)", e, e2)
	}
	if w.Contains(e) || Has[testPos](w, e) {
		t.Error("stale handle sees the recycled entity")
	}
	if _, ok := Get[testPos](w, e); ok {
		t.Error("Get through a stale handle succeeded")
	}
}

func TestSparseComponentDoesNotMigrate(t *testing.T) {
	w := NewWorld()
	e := w.Spawn(C(testPos{}))
	tables := w.TableCount()
	Insert(w, e, testSparse{N: 7})
	if w.TableCount() != tables {
		t.Errorf("sparse insert created a table: %d -> %d", tables, w.TableCount())
	}
	if s, ok := Get[testSparse](w, e); !ok || s.N != 7 {
		t.Fatalf("Get sparse = %v, %v", s, ok)
	}
	Insert(w, e, testVel{})
	if s, ok := Get[testSparse](w, e); !ok || s.N != 7 {
		t.Errorf("sparse value lost when the table row moved: %v, %v", s, ok)
	}
	if _, ok := Remove[testSparse](w, e); !ok || Has[testSparse](w, e) {
		t.Error("sparse Remove failed")
	}
	info, _ := LookupComponent(ComponentIDOf[testSparse]())
	if info.Storage != StorageSparseSet {
		t.Errorf("storage = %s, want SparseSet", info.Storage)
	}
}

func TestDuplicateValuesKeepLast(t *testing.T) {
	w := NewWorld()
	e := w.Spawn(C(testPos{1, 1}), C(testVel{}), C(testPos{2, 2}))
	if p, _ := Get[testPos](w, e); *p != (testPos{2, 2}) {
		t.Errorf("position = %v, want the last given", *p)
	}
}

func TestBareValueNeedsRegistration(t *testing.T) {
	type unregistered struct{}
	w := NewWorld()
	defer func() {
		if recover() == nil {
			t.Error("spawning an unregistered bare value did not panic")
		}
	}()
	w.Spawn(unregistered{})
}

func TestHookOrder(t *testing.T) {
	registerHooked()
	w := NewWorld()
	hookLog, replacedSeen = nil, nil

	e := w.Spawn(C(hooked{V: 1}))
	if want := []string{"add", "insert"}; !slices.Equal(hookLog, want) {
		t.Errorf("spawn hooks = %v, want %v", hookLog, want)
	}

	hookLog = nil
	Insert(w, e, hooked{V: 2})
	if want := []string{"replace", "insert"}; !slices.Equal(hookLog, want) {
		t.Errorf("replace hooks = %v, want %v", hookLog, want)
	}
	if !slices.Equal(replacedSeen, []int{1}) {
		t.Errorf("OnReplace saw %v, want the old value 1", replacedSeen)
	}

	hookLog = nil
	Remove[hooked](w, e)
	if want := []string{"replace", "remove"}; !slices.Equal(hookLog, want) {
		t.Errorf("remove hooks = %v, want %v", hookLog, want)
	}

	Insert(w, e, hooked{V: 3})
	hookLog = nil
	w.Despawn(e)
	if want := []string{"despawn", "replace", "remove"}; !slices.Equal(hookLog, want) {
		t.Errorf("despawn hooks = %v, want %v", hookLog, want)
	}
}

func TestHookCommandsApplyAfterMutation(t *testing.T) {
	type marked struct{}
	type trigger struct{}
	// A repeated run finds trigger already registered.
	_, _ = TryRegister[trigger](WithHooks(Hooks{OnAdd: func(w *World, ctx HookContext) {
		ctx.Commands.AddComponent(ctx.Entity, C(marked{}))
	}}))
	w := NewWorld()
	e := w.Spawn(C(trigger{}))
	if !Has[marked](w, e) {
		t.Error("command queued by a hook was not applied")
	}
}

func TestRequiredComponents(t *testing.T) {
	registerRequired()
	w := NewWorld()

	e := w.Spawn(C(reqA{}))
	b, okB := Get[reqB](w, e)
	c, okC := Get[reqC](w, e)
	if !okB || !okC || b.N != 1 || c.N != 2 {
		t.Fatalf("required components = %v %v, %v %v", b, okB, c, okC)
	}

	e = w.Spawn(C(reqA{}), C(reqB{N: 5}))
	if b, _ := Get[reqB](w, e); b.N != 5 {
		t.Errorf("explicit value replaced by the default: %d", b.N)
	}
	if !Has[reqC](w, e) {
		t.Error("requirement of an explicit value not inserted")
	}

	e = w.Spawn(C(reqC{N: 9}))
	Insert(w, e, reqA{})
	if c, _ := Get[reqC](w, e); c.N != 9 {
		t.Errorf("existing component overwritten by a default: %d", c.N)
	}

}

func TestRequirementCyclePanics(t *testing.T) {
	registerRequired()
	w := NewWorld()
	defer func() {
		if recover() == nil {
			t.Error("spawning a type that requires itself through another did not panic")
		}
	}()
	w.Spawn(C(cycA{}))
}

func TestManyEntities(t *testing.T) {
	const n = 5000
	for _, tt := range []struct {
		name string
		opts []WorldOption
	}{
		{"default", nil},
		{"preallocated", []WorldOption{WithEntityCapacity(1024)}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld(tt.opts...)
			es := make([]Entity, n)
			for i := range es {
				es[i] = w.Spawn(C(testPos{i, -i}))
			}
			if w.Len() != n {
				t.Fatalf("Len = %d, want %d", w.Len(), n)
			}
			if c := cap(w.locations); c > 4*n {
				t.Errorf("location index capacity %d for %d entities", c, n)
			}
			for i, e := range es {
				if p, ok := Get[testPos](w, e); !ok || *p != (testPos{i, -i}) {
					t.Fatalf("entity %d: Get = %v, %v", i, p, ok)
				}
			}
			for _, e := range es[:n/2] {
				w.Despawn(e)
			}
			for i := range n / 2 {
				w.Spawn(C(testPos{i, i}))
			}
			if w.Len() != n {
				t.Errorf("Len after recycling = %d, want %d", w.Len(), n)
			}
			if p, _ := Get[testPos](w, es[n-1]); *p != (testPos{n - 1, 1 - n}) {
				t.Errorf("last entity = %v", *p)
			}
		})
	}
}

func TestDespawnAfterHookMovesEntity(t *testing.T) {
	type mover struct{}
	_, _ = TryRegister[mover](WithHooks(Hooks{OnDespawn: func(w *World, ctx HookContext) {
		Insert(w, ctx.Entity, testVel{1, 1})
	}}))
	w := NewWorld()
	kept := w.Spawn(C(mover{}), C(testVel{7, 7}))
	gone := w.Spawn(C(mover{}))
	other := w.Spawn(C(mover{}))

	if !w.Despawn(gone) {
		t.Fatal("Despawn failed")
	}
	if w.Contains(gone) || w.Len() != 2 {
		t.Fatalf("Contains = %v, Len = %d", w.Contains(gone), w.Len())
	}
	if v, ok := Get[testVel](w, kept); !ok || *v != (testVel{7, 7}) {
		t.Errorf("row sharing the hook's table = %v, %v", v, ok)
	}
	if !Has[mover](w, other) || Has[testVel](w, other) {
		t.Error("entity left in the original table was disturbed")
	}
}

func TestRegisterStorageConflict(t *testing.T) {
	type flip struct{}
	if _, err := TryRegister[flip](WithStorage(StorageTable)); err != nil {
		t.Fatal(err)
	}
	if _, err := TryRegister[flip](WithStorage(StorageSparseSet)); err == nil {
		t.Error("re-registering with another storage kind succeeded")
	}

	type late struct{}
	ComponentIDOf[late]()
	if _, err := TryRegister[late](WithStorage(StorageSparseSet)); err != nil {
		t.Errorf("unused implicit registration not upgradable: %v", err)
	}
	if info, _ := LookupComponent(ComponentIDOf[late]()); info.Storage != StorageSparseSet {
		t.Errorf("storage = %s after upgrade", info.Storage)
	}
}

func TestGetMutStampsChange(t *testing.T) {
	w := NewWorld()
	e := w.Spawn(C(testPos{}))
	w.ClearTrackers()

	ref, _ := GetRef[testPos](w, e)
	if ref.IsChanged() {
		t.Fatal("value changed before any write")
	}
	m, _ := GetMut[testPos](w, e)
	if SetIfNeq(m, testPos{}) {
		t.Error("SetIfNeq wrote an equal value")
	}
	if ref.IsChanged() {
		t.Error("equal write stamped the value")
	}
	if !SetIfNeq(m, testPos{1, 0}) {
		t.Error("SetIfNeq skipped a different value")
	}
	ref, _ = GetRef[testPos](w, e)
	if !ref.IsChanged() || ref.IsAdded() {
		t.Errorf("IsChanged = %v, IsAdded = %v", ref.IsChanged(), ref.IsAdded())
	}
	if old, ok := ReplaceIfNeq(m, testPos{2, 0}); !ok || old.X != 1 {
		t.Errorf("ReplaceIfNeq = %v, %v", old, ok)
	}
}

func TestResources(t *testing.T) {
	w := NewWorld()
	if HasResource[testRes](w) {
		t.Fatal("fresh world has a resource")
	}
	InitResource[testRes](w)
	InsertResource(w, testRes{N: 1})
	InitResource[testRes](w)
	if r, ok := Resource[testRes](w); !ok || r.N != 1 {
		t.Fatalf("Resource = %v, %v", r, ok)
	}
	m, _ := ResourceMut[testRes](w)
	m.Get().N++
	if r, _ := Resource[testRes](w); r.N != 2 {
		t.Errorf("write through ResourceMut lost: %d", r.N)
	}
	if ResourceIDOf[testRes]() == ComponentIDOf[testRes]() {
		t.Error("resource id collides with the component id of the same type")
	}
	if v, ok := RemoveResource[testRes](w); !ok || v.N != 2 || HasResource[testRes](w) {
		t.Errorf("RemoveResource = %v, %v", v, ok)
	}
}
