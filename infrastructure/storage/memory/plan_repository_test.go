package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

func TestPlanRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewPlanRepository()

	p := plan.New("agent-1", "summarize", []string{"short"})
	_, _ = p.AddStep(plan.StepSpec{ActionType: "search", Parameters: map[string]any{"query": "x"}})
	_, _ = p.AddStep(plan.StepSpec{ActionType: "generate", Dependencies: []int{1}})

	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.Steps) != 2 || got.Steps[1].Dependencies[0] != 1 {
		t.Errorf("GetByID() steps = %+v", got.Steps)
	}

	_ = got.TransitionTo(plan.StatusInProgress)
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}
	if err := repo.Save(ctx, p); !errors.Is(err, plan.ErrConcurrentUpdate) {
		t.Errorf("Save(stale) error = %v, want ErrConcurrentUpdate", err)
	}

	other := plan.New("agent-2", "other", nil)
	_ = repo.Save(ctx, other)

	list, err := repo.ListByAgentID(ctx, "agent-1")
	if err != nil {
		t.Fatalf("ListByAgentID() error = %v", err)
	}
	if len(list) != 1 || list[0].Status != plan.StatusInProgress {
		t.Errorf("ListByAgentID() = %d plans, want 1 in progress", len(list))
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrPlanNotFound", err)
	}
}
