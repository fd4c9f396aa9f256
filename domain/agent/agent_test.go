package agent

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a := New("helper", "answers questions", "conv-1", nil)

	if a.ID == "" {
		t.Error("New() should assign an ID")
	}
	if a.State == nil || a.State.ID == "" {
		t.Fatal("New() should create a state with an ID")
	}
	if a.ConversationID() != "conv-1" {
		t.Errorf("ConversationID() = %s, want conv-1", a.ConversationID())
	}
	if a.Config == nil {
		t.Error("Config should be initialized")
	}
	if a.ActionCount() != 0 {
		t.Errorf("ActionCount() = %d, want 0", a.ActionCount())
	}
	if a.Version != 0 {
		t.Errorf("Version = %d, want 0", a.Version)
	}
}

func TestAction_Lifecycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		finish     func(*Action) error
		wantStatus ActionStatus
	}{
		{"complete", func(a *Action) error { return a.Complete("ok") }, ActionCompleted},
		{"fail", func(a *Action) error { return a.Fail("boom") }, ActionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			action := NewAction("search", nil)
			if action.Status != ActionPending {
				t.Fatalf("Status = %s, want pending", action.Status)
			}
			if action.CompletedAt != nil {
				t.Error("CompletedAt should be nil while pending")
			}
			if err := action.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if action.CompletedAt != nil {
				t.Error("CompletedAt should be nil while running")
			}
			if err := tt.finish(action); err != nil {
				t.Fatalf("finish error = %v", err)
			}
			if action.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", action.Status, tt.wantStatus)
			}
			if action.CompletedAt == nil {
				t.Error("CompletedAt should be set once terminal")
			}
		})
	}
}

func TestAction_TerminalIsAbsorbing(t *testing.T) {
	t.Parallel()

	action := NewAction("search", nil)
	_ = action.Complete("done")

	if err := action.Fail("late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fail() after Complete error = %v, want ErrInvalidTransition", err)
	}
	if err := action.Complete("again"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Complete() twice error = %v, want ErrInvalidTransition", err)
	}
	if err := action.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start() after Complete error = %v, want ErrInvalidTransition", err)
	}
	if action.Status != ActionCompleted || action.Result != "done" {
		t.Errorf("action changed after terminal: status=%s result=%v", action.Status, action.Result)
	}
}

func TestAgent_HistoryOnlyGrows(t *testing.T) {
	t.Parallel()

	a := New("helper", "", "conv", nil)
	first := NewAction("search", map[string]any{"query": "x"})
	second := NewAction("generate", nil)

	a.AddAction(first)
	_ = a.StartAction(first)
	_ = a.FailAction(first, errors.New("boom"))
	a.AddAction(second)

	actions := a.Actions()
	if len(actions) != 2 {
		t.Fatalf("len(Actions()) = %d, want 2", len(actions))
	}
	if actions[0].ID != first.ID || actions[1].ID != second.ID {
		t.Error("Actions() should preserve insertion order")
	}
	if actions[0].Error != "boom" {
		t.Errorf("Error = %q, want boom", actions[0].Error)
	}
}

func TestAgent_MutateForeignAction(t *testing.T) {
	t.Parallel()

	a := New("helper", "", "conv", nil)
	foreign := NewAction("search", nil)

	if err := a.CompleteAction(foreign, nil); !errors.Is(err, ErrActionNotInHistory) {
		t.Errorf("CompleteAction() error = %v, want ErrActionNotInHistory", err)
	}
}

func TestAgent_Memory(t *testing.T) {
	t.Parallel()

	a := New("helper", "", "conv", nil)
	before := a.UpdatedAt()

	a.SetMemory(MemoryLastQuery, "what is X")
	a.SetMemory("b", 1)

	v, ok := a.Memory(MemoryLastQuery)
	if !ok || v != "what is X" {
		t.Errorf("Memory(last_query) = %v, %v, want what is X, true", v, ok)
	}
	if _, ok := a.Memory("missing"); ok {
		t.Error("Memory(missing) should report absence")
	}
	keys := a.MemoryKeys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != MemoryLastQuery {
		t.Errorf("MemoryKeys() = %v, want [b last_query]", keys)
	}
	if a.UpdatedAt().Before(before) {
		t.Error("SetMemory() should advance UpdatedAt")
	}
}

func TestAgent_ConcurrentActions(t *testing.T) {
	t.Parallel()

	a := New("helper", "", "conv", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			action := NewAction("noop", nil)
			a.AddAction(action)
			_ = a.StartAction(action)
			_ = a.CompleteAction(action, "ok")
		}()
	}
	wg.Wait()

	if a.ActionCount() != 50 {
		t.Errorf("ActionCount() = %d, want 50", a.ActionCount())
	}
	for _, action := range a.Actions() {
		if action.Status != ActionCompleted {
			t.Errorf("action %s status = %s, want completed", action.ID, action.Status)
		}
	}
}

func TestAgent_JSONRoundtrip(t *testing.T) {
	t.Parallel()

	a := New("helper", "desc", "conv", map[string]any{"model": "m"})
	action := NewAction("search", map[string]any{"query": "x"})
	a.AddAction(action)
	_ = a.CompleteAction(action, []any{"doc1"})
	a.Version = 3

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Agent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ID != a.ID || decoded.Version != 3 {
		t.Errorf("decoded = %s/%d, want %s/3", decoded.ID, decoded.Version, a.ID)
	}
	if decoded.ConversationID() != "conv" {
		t.Errorf("ConversationID() = %s, want conv", decoded.ConversationID())
	}
	if decoded.ActionCount() != 1 || decoded.Actions()[0].Status != ActionCompleted {
		t.Error("decoded agent should keep the completed action")
	}
}
