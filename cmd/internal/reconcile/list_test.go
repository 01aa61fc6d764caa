package reconcile

import (
	"math/rand"
	"testing"

	v1 "talkwire/shared/contracts/realtime/v1"
)

func TestApply_CreateUpdateDeleteScenario(t *testing.T) {
	t.Parallel()

	l := New[v1.Message]()
	events := []v1.MessageEvent{
		{Action: v1.ActionCreate, Message: v1.Message{ID: 5, Text: "hi"}},
		{Action: v1.ActionUpdate, Message: v1.Message{ID: 5, Text: "hi there"}},
		{Action: v1.ActionDelete, Message: v1.Message{ID: 5}},
	}
	for _, ev := range events {
		ApplyEvent(l, ev)
	}
	if l.Has(5) {
		t.Fatalf("expected id 5 to be gone, items=%+v", l.Items())
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty list, got %d", l.Len())
	}
}

func TestApply_CreateIsIdempotent(t *testing.T) {
	t.Parallel()

	l := New[v1.Message]()
	l.Seed([]v1.Message{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}})

	out := l.Apply(v1.ActionCreate, v1.Message{ID: 2, Text: "dup"})
	if out.Changed {
		t.Fatalf("duplicate CREATE must be a no-op")
	}
	got, _ := l.Get(2)
	if got.Text != "b" {
		t.Fatalf("duplicate CREATE overwrote entry: %+v", got)
	}
	if l.Len() != 2 {
		t.Fatalf("len=%d want 2", l.Len())
	}
}

func TestApply_UpdateAndDeleteUnknownAreNoops(t *testing.T) {
	t.Parallel()

	l := New[v1.Chat]()
	l.Seed([]v1.Chat{{ID: 1, Name: "general"}})

	if out := l.Apply(v1.ActionUpdate, v1.Chat{ID: 9, Name: "ghost"}); out.Changed {
		t.Fatalf("UPDATE of unknown id must be a no-op")
	}
	if out := l.Apply(v1.ActionDelete, v1.Chat{ID: 9}); out.Changed || out.Deleted {
		t.Fatalf("DELETE of unknown id must be a no-op")
	}
	if out := l.Apply(v1.Action("PATCH"), v1.Chat{ID: 1, Name: "x"}); out.Changed {
		t.Fatalf("unknown action must be a no-op")
	}
	if l.Len() != 1 || l.Has(9) {
		t.Fatalf("unexpected items: %+v", l.Items())
	}
}

func TestApply_DeleteReportsDeleted(t *testing.T) {
	t.Parallel()

	l := New[v1.Contact]()
	l.Seed([]v1.Contact{{ID: 1}, {ID: 2}, {ID: 3}})

	out := l.Apply(v1.ActionDelete, v1.Contact{ID: 2})
	if !out.Changed || !out.Deleted {
		t.Fatalf("expected Changed+Deleted, got %+v", out)
	}
	items := l.Items()
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 3 {
		t.Fatalf("order not preserved after delete: %+v", items)
	}
	// Index must still resolve after the shift.
	if c, ok := l.Get(3); !ok || c.ID != 3 {
		t.Fatalf("Get(3) after delete = %+v, %v", c, ok)
	}
}

func TestSeed_DropsDuplicateIDs(t *testing.T) {
	t.Parallel()

	l := New[v1.Request]()
	l.Seed([]v1.Request{{ID: 1, Status: "first"}, {ID: 1, Status: "second"}, {ID: 2}})
	if l.Len() != 2 {
		t.Fatalf("len=%d want 2", l.Len())
	}
	r, _ := l.Get(1)
	if r.Status != "first" {
		t.Fatalf("expected first occurrence kept, got %+v", r)
	}
}

func TestZeroValueListIsUsable(t *testing.T) {
	t.Parallel()

	var l List[v1.Message]
	if l.Has(1) {
		t.Fatalf("zero list must be empty")
	}
	if !l.Add(v1.Message{ID: 1}) {
		t.Fatalf("Add on zero list failed")
	}
	if !l.Has(1) {
		t.Fatalf("Add did not take effect")
	}
}

// model is a straightforward slice-scanning reference of the policy.
type model struct {
	items []v1.Message
}

func (m *model) find(id int64) int {
	for i, it := range m.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (m *model) apply(a v1.Action, e v1.Message) {
	i := m.find(e.ID)
	switch a {
	case v1.ActionCreate:
		if i < 0 {
			m.items = append(m.items, e)
		}
	case v1.ActionUpdate:
		if i >= 0 {
			m.items[i] = e
		}
	case v1.ActionDelete:
		if i >= 0 {
			m.items = append(m.items[:i], m.items[i+1:]...)
		}
	}
}

func TestApply_RandomSequencesMatchReplay(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	actions := []v1.Action{v1.ActionCreate, v1.ActionUpdate, v1.ActionDelete}

	for round := 0; round < 200; round++ {
		l := New[v1.Message]()
		ref := &model{}

		for step := 0; step < 60; step++ {
			a := actions[rng.Intn(len(actions))]
			e := v1.Message{ID: int64(rng.Intn(8) + 1), Text: string(rune('a' + rng.Intn(26)))}
			l.Apply(a, e)
			ref.apply(a, e)
		}

		got := l.Items()
		seen := make(map[int64]struct{}, len(got))
		for _, it := range got {
			if _, dup := seen[it.ID]; dup {
				t.Fatalf("round %d: duplicate id %d in %+v", round, it.ID, got)
			}
			seen[it.ID] = struct{}{}
		}

		if len(got) != len(ref.items) {
			t.Fatalf("round %d: len=%d want=%d", round, len(got), len(ref.items))
		}
		for i := range got {
			if got[i] != ref.items[i] {
				t.Fatalf("round %d: item[%d]=%+v want=%+v", round, i, got[i], ref.items[i])
			}
		}
	}
}
