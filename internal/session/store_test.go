package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	store := NewStore()

	first := store.GetOrCreate("alpha")
	second := store.GetOrCreate("alpha")

	if first != second {
		t.Fatal("expected the same session for repeated ids")
	}
	if len(first.History()) != 0 {
		t.Fatalf("expected a fresh session to be empty, got %d turns", len(first.History()))
	}
}

func TestSessionIsolation(t *testing.T) {
	store := NewStore()

	a := store.GetOrCreate("a")
	b := store.GetOrCreate("b")

	a.AppendExchange("question for a", "answer for a")

	if len(b.History()) != 0 {
		t.Fatalf("session b should be untouched, got %d turns", len(b.History()))
	}
	if len(a.History()) != 2 {
		t.Fatalf("session a should have 2 turns, got %d", len(a.History()))
	}
}

func TestHistoryOrderAndRoles(t *testing.T) {
	store := NewStore()
	sess := store.GetOrCreate("order")

	sess.AppendExchange("first question", "first answer")
	sess.AppendExchange("second question", "second answer")

	turns := sess.History()
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}

	want := []Turn{
		{Role: RoleHuman, Content: "first question"},
		{Role: RoleAssistant, Content: "first answer"},
		{Role: RoleHuman, Content: "second question"},
		{Role: RoleAssistant, Content: "second answer"},
	}
	for i, turn := range turns {
		if turn != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, turn, want[i])
		}
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	store := NewStore()
	sess := store.GetOrCreate("copy")
	sess.AppendExchange("q", "a")

	snapshot := sess.History()
	snapshot[0].Content = "mutated"

	if sess.History()[0].Content != "q" {
		t.Fatal("mutating a history snapshot must not affect the session")
	}
}

func TestClear(t *testing.T) {
	store := NewStore()
	sess := store.GetOrCreate("gone")
	sess.AppendExchange("q", "a")

	if !store.Clear("gone") {
		t.Fatal("clearing an existing session should report true")
	}
	if store.Clear("gone") {
		t.Fatal("clearing an absent session should report false")
	}

	if len(store.GetOrCreate("gone").History()) != 0 {
		t.Fatal("a cleared session should start empty on next access")
	}
}

func TestClearAbsentIsNoOp(t *testing.T) {
	store := NewStore()

	if store.Clear("never-existed") {
		t.Fatal("clearing an unknown session should report false")
	}
	if len(store.ListIDs()) != 0 {
		t.Fatal("clear must not create sessions")
	}
}

func TestListIDsSorted(t *testing.T) {
	store := NewStore()
	store.GetOrCreate("zebra")
	store.GetOrCreate("apple")
	store.GetOrCreate("mango")

	ids := store.ListIDs()
	want := []string{"apple", "mango", "zebra"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i, id := range ids {
		if id != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, id, want[i])
		}
	}
}

func TestClearAll(t *testing.T) {
	store := NewStore()
	store.GetOrCreate("one")
	store.GetOrCreate("two")

	store.ClearAll()

	if len(store.ListIDs()) != 0 {
		t.Fatalf("expected no sessions after ClearAll, got %v", store.ListIDs())
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	sessions := make([]*Session, 50)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(sessions); i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("concurrent access should converge on one session")
		}
	}
}

func TestConcurrentAppends(t *testing.T) {
	store := NewStore()
	sess := store.GetOrCreate("busy")

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	turns := sess.History()
	if len(turns) != 50 {
		t.Fatalf("expected 50 turns, got %d", len(turns))
	}

	// Pairs stay adjacent even under concurrency.
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != RoleHuman || turns[i+1].Role != RoleAssistant {
			t.Fatalf("turn pair at %d out of order: %s then %s", i, turns[i].Role, turns[i+1].Role)
		}
		if "a"+turns[i].Content[1:] != turns[i+1].Content {
			t.Fatalf("turn pair at %d mismatched: %q then %q", i, turns[i].Content, turns[i+1].Content)
		}
	}
}
