package arena

import "testing"

type handle int

type entity struct {
	id   handle
	name string
}

func TestAllocWithIdAssignsDenseIds(t *testing.T) {
	var a Arena[handle, entity]
	if !a.IsEmpty() {
		t.Fatal("new Arena should be empty")
	}

	idA := a.AllocWithId(func(id handle) entity { return entity{id: id, name: "a"} })
	idB := a.AllocWithId(func(id handle) entity { return entity{id: id, name: "b"} })

	if idA != 0 || idB != 1 {
		t.Errorf("ids = %d, %d, want 0, 1", idA, idB)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
	if got := a.Get(idA).name; got != "a" {
		t.Errorf("Get(idA).name = %q, want %q", got, "a")
	}
}

func TestIterVisitsInsertionOrder(t *testing.T) {
	var a Arena[handle, entity]
	for _, name := range []string{"x", "y", "z"} {
		a.AllocWithId(func(id handle) entity { return entity{id: id, name: name} })
	}

	var got []string
	a.Iter(func(e *entity) { got = append(got, e.name) })
	want := []string{"x", "y", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Iter order = %v, want %v", got, want)
		}
	}
}

func TestGetAndIncIdStopsAtEnd(t *testing.T) {
	var a Arena[handle, entity]
	a.AllocWithId(func(id handle) entity { return entity{id: id, name: "only"} })

	cursor := a.FirstId()
	first := a.GetAndIncId(&cursor)
	if first == nil || first.name != "only" {
		t.Fatalf("first = %v, want entity named \"only\"", first)
	}
	if second := a.GetAndIncId(&cursor); second != nil {
		t.Errorf("second GetAndIncId = %v, want nil", second)
	}
}
