package ecs

import (
	"slices"
	"testing"
)

func TestQueryFilters(t *testing.T) {
	w := NewWorld()
	e1 := w.Spawn(C(testPos{1, 0}))
	e2 := w.Spawn(C(testPos{2, 0}), C(testVel{1, 1}))
	e3 := w.Spawn(C(testPos{3, 0}), C(testTag{}))
	e4 := w.Spawn(C(testVel{}))
	e5 := w.Spawn(C(testPos{5, 0}), C(testSparse{N: 1}))

	tests := []struct {
		name  string
		terms []Term
		want  []Entity
	}{
		{"reads", []Term{Reads[testPos]()}, []Entity{e1, e2, e3, e5}},
		{"with", []Term{Reads[testPos](), With[testVel]()}, []Entity{e2}},
		{"without", []Term{Reads[testPos](), Without[testTag]()}, []Entity{e1, e2, e5}},
		{"sparse with", []Term{With[testSparse]()}, []Entity{e5}},
		{"sparse without", []Term{Reads[testPos](), Without[testSparse]()}, []Entity{e1, e2, e3}},
		{"contradiction", []Term{With[testVel](), Without[testVel]()}, nil},
		{"vel only", []Term{Reads[testVel](), Without[testPos]()}, []Entity{e4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collect(w.Query(tt.terms...)); !sameSet(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	q := w.Query(Reads[testPos](), Maybe[testVel]())
	for r := range q.Iter() {
		_, ok := MaybeRefOf[testVel](r)
		if ok != (r.Entity() == e2) {
			t.Errorf("MaybeRefOf on %s = %v", r.Entity(), ok)
		}
	}
	if _, ok := q.Get(e4); ok {
		t.Error("Get matched an entity without a required component")
	}
	if r, ok := q.Get(e3); !ok || RefOf[testPos](r).Value().X != 3 {
		t.Error("Get missed a matching entity")
	}
	if q.Count() != 4 {
		t.Errorf("Count = %d, want 4", q.Count())
	}
	if _, ok := q.Single(); ok {
		t.Error("Single succeeded with several matches")
	}
	if r, ok := w.Query(With[testTag]()).Single(); !ok || r.Entity() != e3 {
		t.Error("Single missed the only match")
	}
}

func TestQuerySeesNewTables(t *testing.T) {
	w := NewWorld()
	q := w.Query(Reads[testPos]())
	if q.Count() != 0 {
		t.Fatal("empty world matched")
	}
	w.Spawn(C(testPos{}), C(testTag{}))
	if q.Count() != 1 {
		t.Error("table created after the query was not matched")
	}
}

func TestQueryChangeFilters(t *testing.T) {
	w := NewWorld()
	old := w.Spawn(C(testPos{}))
	w.ClearTrackers()
	fresh := w.Spawn(C(testPos{}))

	if got := collect(w.Query(Added[testPos]())); !sameSet(got, []Entity{fresh}) {
		t.Errorf("Added = %v, want only %s", got, fresh)
	}
	m, _ := GetMut[testPos](w, old)
	m.Get().X = 1
	if got := collect(w.Query(Changed[testPos]())); !sameSet(got, []Entity{old, fresh}) {
		t.Errorf("Changed = %v", got)
	}

	w.ClearTrackers()
	if n := w.Query(Changed[testPos]()).Count(); n != 0 {
		t.Errorf("Changed after ClearTrackers matched %d", n)
	}
	m, _ = GetMut[testPos](w, old)
	m.BypassChangeDetection().X = 2
	if n := w.Query(Changed[testPos]()).Count(); n != 0 {
		t.Error("write bypassing change detection was reported")
	}
}

func TestQueryRejectsAliasedWrites(t *testing.T) {
	tests := []struct {
		name  string
		terms []Term
		panic bool
	}{
		{"write write", []Term{Writes[testPos](), Writes[testPos]()}, true},
		{"write read", []Term{Writes[testPos](), Reads[testPos]()}, true},
		{"read write", []Term{Reads[testPos](), Writes[testPos]()}, true},
		{"maybe write", []Term{Maybe[testPos](), Writes[testPos]()}, true},
		{"read read", []Term{Reads[testPos](), Reads[testPos]()}, false},
		{"write with", []Term{Writes[testPos](), With[testPos]()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if got := recover() != nil; got != tt.panic {
					t.Errorf("panicked = %v, want %v", got, tt.panic)
				}
			}()
			NewQueryParam(tt.terms...)
		})
	}
}

func TestRowAccessorsCheckDeclaredAccess(t *testing.T) {
	w := NewWorld()
	w.Spawn(C(testPos{}), C(testVel{}))
	r, ok := w.Query(Reads[testPos](), With[testVel]()).Single()
	if !ok {
		t.Fatal("no row")
	}
	mustPanic(t, "MutOf on a read", func() { MutOf[testPos](r) })
	mustPanic(t, "RefOf on a filter", func() { RefOf[testVel](r) })
}

func TestRelations(t *testing.T) {
	w := NewWorld()
	a := w.Spawn(C(testPos{}))
	b := w.Spawn(C(testPos{}))
	c := w.Spawn(C(testPos{}))
	d := w.Spawn(C(testPos{}))

	AddRelation(w, a, b, testLikes{Weight: 1})
	AddRelation(w, a, c, testLikes{Weight: 2})
	AddRelation(w, d, b, testLikes{Weight: 3})
	AddRelation(w, a, b, testLikes{Weight: 4})

	if got := RelationTargets[testLikes](w, a); !slices.Equal(got, []Entity{b, c}) {
		t.Errorf("targets of a = %v, want [b c] in insertion order", got)
	}
	if v, ok := GetRelation[testLikes](w, a, b); !ok || v.Weight != 4 {
		t.Errorf("edge a->b = %v, %v; want replaced data", v, ok)
	}
	if AddRelation(w, a, 0, testLikes{}) {
		t.Error("edge to a dead entity accepted")
	}

	check := func(name string, q *Query, want ...Entity) {
		t.Helper()
		if got := collect(q); !sameSet(got, want) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	check("WithRelation", w.Query(WithRelation[testLikes]()), a, d)
	check("WithoutRelation", w.Query(Reads[testPos](), WithoutRelation[testLikes]()), b, c)
	check("Targets b", w.Query(Targets[testLikes](b)), a, d)
	check("Targets b c", w.Query(Targets[testLikes](b, c)), a)
	check("NotTargets c", w.Query(Reads[testPos](), NotTargets[testLikes](c)), b, c, d)

	r, _ := w.Query(ReadsRelation[testLikes]()).Get(a)
	rels := RelationsOf[testLikes](r)
	if len(rels) != 2 || rels[1].Target != c || rels[1].Value.Weight != 2 {
		t.Errorf("RelationsOf = %+v", rels)
	}
	mustPanic(t, "RelationMutOf on a read", func() { RelationMutOf[testLikes](r, b) })

	w.Despawn(b)
	if got := RelationTargets[testLikes](w, a); !slices.Equal(got, []Entity{c}) {
		t.Errorf("targets of a after despawn = %v", got)
	}
	if got := RelationTargets[testLikes](w, d); got != nil {
		t.Errorf("d kept edges to a despawned target: %v", got)
	}
	check("WithRelation after despawn", w.Query(WithRelation[testLikes]()), a)

	if v, ok := RemoveRelation[testLikes](w, a, c); !ok || v.Weight != 2 {
		t.Errorf("RemoveRelation = %v, %v", v, ok)
	}
	check("WithRelation after remove", w.Query(WithRelation[testLikes]()))
}

func TestSpawnBatch(t *testing.T) {
	w := NewWorld()
	ids := w.SpawnBatch([][]any{
		{C(testPos{}), C(testVel{1, 1}), C(testSparse{1})},
		{C(testPos{}), C(testVel{1, 1})},
		{C(testPos{}), C(testVel{1, 1}), C(testSparse{2})},
	})
	if len(ids) != 3 || w.Len() != 3 {
		t.Fatalf("SpawnBatch = %v, world has %d", ids, w.Len())
	}
	if got := collect(w.Query(With[testPos](), With[testSparse]())); !sameSet(got, []Entity{ids[0], ids[2]}) {
		t.Errorf("rows with the sparse value = %v", got)
	}
	if s, _ := Get[testSparse](w, ids[2]); s.N != 2 {
		t.Errorf("sparse value = %v", *s)
	}
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}
