package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

func TestAgentRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAgentRepository()
	a := agent.New("helper", "desc", "conv-1", nil)
	a.SetMemory("k", "v")

	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if a.Version != 1 {
		t.Errorf("Version after insert = %d, want 1", a.Version)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == a {
		t.Error("GetByID() should return a copy")
	}
	if v, _ := got.Memory("k"); v != "v" {
		t.Errorf("Memory(k) = %v, want v", v)
	}

	byConv, err := repo.GetByConversationID(ctx, "conv-1")
	if err != nil || byConv.ID != a.ID {
		t.Errorf("GetByConversationID() = %v, %v", byConv, err)
	}
}

func TestAgentRepository_Versioning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAgentRepository()
	a := agent.New("helper", "", "conv", nil)
	_ = repo.Save(ctx, a)

	first, _ := repo.GetByID(ctx, a.ID)
	second, _ := repo.GetByID(ctx, a.ID)

	first.SetMemory("writer", "first")
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save(first) error = %v", err)
	}
	second.SetMemory("writer", "second")
	if err := repo.Save(ctx, second); !errors.Is(err, agent.ErrConcurrentUpdate) {
		t.Errorf("Save(stale) error = %v, want ErrConcurrentUpdate", err)
	}

	dup := agent.New("dup", "", "conv", nil)
	dup.ID = a.ID
	if err := repo.Save(ctx, dup); !errors.Is(err, agent.ErrConcurrentUpdate) {
		t.Errorf("Save(duplicate insert) error = %v, want ErrConcurrentUpdate", err)
	}

	ghost := agent.New("ghost", "", "conv", nil)
	ghost.Version = 4
	if err := repo.Save(ctx, ghost); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("Save(unknown with version) error = %v, want ErrAgentNotFound", err)
	}
}

func TestAgentRepository_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAgentRepository()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("GetByID() error = %v, want ErrAgentNotFound", err)
	}
	if _, err := repo.GetByConversationID(ctx, "missing"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("GetByConversationID() error = %v, want ErrAgentNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("Delete() error = %v, want ErrAgentNotFound", err)
	}
	if _, err := repo.GetByID(ctx, ""); !errors.Is(err, agent.ErrInvalidAgentID) {
		t.Errorf("GetByID(\"\") error = %v, want ErrInvalidAgentID", err)
	}
}

func TestAgentRepository_ListAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAgentRepository()
	first := agent.New("first", "", "c1", nil)
	second := agent.New("second", "", "c2", nil)
	second.State.CreatedAt = first.State.CreatedAt.Add(time.Second)
	_ = repo.Save(ctx, second)
	_ = repo.Save(ctx, first)

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 || all[0].Name != "first" || all[1].Name != "second" {
		t.Errorf("ListAll() order wrong: %v", names(all))
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	all, _ = repo.ListAll(ctx)
	if len(all) != 1 {
		t.Errorf("ListAll() after delete len = %d, want 1", len(all))
	}
}

func TestAgentRepository_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewAgentRepository().Save(ctx, agent.New("a", "", "c", nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}

func names(agents []*agent.Agent) []string {
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = a.Name
	}
	return out
}

func TestAgentRepository_GetByConversationID_EarliestWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAgentRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var first *agent.Agent
	for i := 4; i >= 0; i-- {
		a := agent.New("helper", "desc", "shared", nil)
		a.State.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if i == 0 {
			first = a
		}
	}

	for range 20 {
		got, err := repo.GetByConversationID(ctx, "shared")
		if err != nil {
			t.Fatalf("GetByConversationID() error = %v", err)
		}
		if got.ID != first.ID {
			t.Fatalf("GetByConversationID() = %s, want earliest %s", got.ID, first.ID)
		}
	}
}
