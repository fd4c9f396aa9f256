package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/storagetest"
)

func newRepo(t *testing.T, size int) (*AgentRepository, *memory.AgentRepository) {
	t.Helper()
	backing := memory.NewAgentRepository()
	repo, err := NewAgentRepository(backing, size)
	if err != nil {
		t.Fatalf("NewAgentRepository() error = %v", err)
	}
	return repo, backing
}

func TestAgentRepository_Conformance(t *testing.T) {
	t.Parallel()

	repo, _ := newRepo(t, 8)
	storagetest.AgentRepository(t, repo)
}

func TestNewAgentRepository_InvalidSize(t *testing.T) {
	t.Parallel()

	if _, err := NewAgentRepository(memory.NewAgentRepository(), 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("NewAgentRepository(0) error = %v, want ErrInvalidSize", err)
	}
}

func TestAgentRepository_HitsAndIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newRepo(t, 4)

	a := agent.New("helper", "", "conv", nil)
	if err := repo.Save(ctx, a); err != nil {
		t.Fatal(err)
	}

	first, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	first.SetMemory("scratch", "mutated")

	second, _ := repo.GetByID(ctx, a.ID)
	if _, ok := second.Memory("scratch"); ok {
		t.Error("mutating a returned agent leaked into the cache")
	}

	stats := repo.Stats()
	if stats.Hits != 2 || stats.Misses != 0 {
		t.Errorf("Stats() = %+v, want 2 hits 0 misses", stats)
	}
}

func TestAgentRepository_Eviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newRepo(t, 2)

	var ids []string
	for i := 0; i < 3; i++ {
		a := agent.New("a", "", "", nil)
		_ = repo.Save(ctx, a)
		ids = append(ids, a.ID)
	}

	stats := repo.Stats()
	if stats.Size != 2 || stats.Evictions != 1 {
		t.Errorf("Stats() = %+v, want size 2 with 1 eviction", stats)
	}

	// The evicted agent is still served from the backing store.
	if _, err := repo.GetByID(ctx, ids[0]); err != nil {
		t.Errorf("GetByID(evicted) error = %v", err)
	}
	if repo.Stats().Misses != 1 {
		t.Errorf("Misses = %d, want 1", repo.Stats().Misses)
	}
}

func TestAgentRepository_ConflictDropsEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, backing := newRepo(t, 4)

	a := agent.New("helper", "", "conv", nil)
	_ = repo.Save(ctx, a)

	// Another writer updates the backing store directly.
	other, _ := backing.GetByID(ctx, a.ID)
	other.SetMemory("k", "v")
	_ = backing.Save(ctx, other)

	a.SetMemory("k", "stale")
	if err := repo.Save(ctx, a); !errors.Is(err, agent.ErrConcurrentUpdate) {
		t.Fatalf("Save(stale) error = %v, want ErrConcurrentUpdate", err)
	}

	fresh, _ := repo.GetByID(ctx, a.ID)
	if v, _ := fresh.Memory("k"); v != "v" {
		t.Errorf("Memory(k) = %v, want v from the winning writer", v)
	}
}

func TestAgentRepository_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newRepo(t, 4)
	a := agent.New("helper", "", "conv", nil)
	_ = repo.Save(ctx, a)

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("GetByID() after Delete error = %v, want ErrAgentNotFound", err)
	}
}
