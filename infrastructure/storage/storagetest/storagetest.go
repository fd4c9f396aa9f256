// Package storagetest holds behavior checks shared by every repository
// backend. Backend tests call these with a freshly opened repository.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/plan"
)

// AgentRepository checks versioned saves, lookups and deletion.
func AgentRepository(t *testing.T, repo agent.Repository) {
	t.Helper()
	ctx := context.Background()

	conv := "conv-" + uuid.NewString()
	a := agent.New("helper", "answers", conv, map[string]any{"model": "m"})
	action := agent.NewAction("search", map[string]any{"query": "go"})
	a.AddAction(action)
	_ = a.CompleteAction(action, []any{"doc"})

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
	if got.Name != "helper" || got.ActionCount() != 1 || got.Version != 1 {
		t.Errorf("GetByID() = %s/%d actions/v%d, want helper/1/v1", got.Name, got.ActionCount(), got.Version)
	}

	byConv, err := repo.GetByConversationID(ctx, conv)
	if err != nil || byConv.ID != a.ID {
		t.Errorf("GetByConversationID() = %v, %v, want %s", byConv, err, a.ID)
	}

	got.SetMemory(agent.MemoryLastQuery, "go")
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version after update = %d, want 2", got.Version)
	}

	// a still carries version 1.
	if err := repo.Save(ctx, a); !errors.Is(err, agent.ErrConcurrentUpdate) {
		t.Errorf("Save(stale) error = %v, want ErrConcurrentUpdate", err)
	}
	if a.Version != 1 {
		t.Errorf("rejected Save changed Version to %d", a.Version)
	}

	dup := agent.New("dup", "", conv, nil)
	dup.ID = a.ID
	if err := repo.Save(ctx, dup); !errors.Is(err, agent.ErrConcurrentUpdate) {
		t.Errorf("Save(duplicate insert) error = %v, want ErrConcurrentUpdate", err)
	}

	ghost := agent.New("ghost", "", "conv-"+uuid.NewString(), nil)
	ghost.Version = 4
	if err := repo.Save(ctx, ghost); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("Save(unknown with version) error = %v, want ErrAgentNotFound", err)
	}

	if _, err := repo.GetByID(ctx, "missing-"+uuid.NewString()); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrAgentNotFound", err)
	}
	if _, err := repo.GetByID(ctx, ""); !errors.Is(err, agent.ErrInvalidAgentID) {
		t.Errorf("GetByID(\"\") error = %v, want ErrInvalidAgentID", err)
	}

	list, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	found := false
	for _, item := range list {
		if item.ID == a.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("ListAll() does not contain %s", a.ID)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("Delete(twice) error = %v, want ErrAgentNotFound", err)
	}
}

// PlanRepository checks versioned saves and per-agent listing.
func PlanRepository(t *testing.T, repo plan.Repository) {
	t.Helper()
	ctx := context.Background()

	agentID := "agent-" + uuid.NewString()
	p := plan.New(agentID, "summarize", []string{"short"})
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

	second := plan.New(agentID, "second", nil)
	second.CreatedAt = p.CreatedAt.Add(time.Second)
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Save(second) error = %v", err)
	}
	_ = repo.Save(ctx, plan.New("agent-"+uuid.NewString(), "other", nil))

	list, err := repo.ListByAgentID(ctx, agentID)
	if err != nil {
		t.Fatalf("ListByAgentID() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != p.ID || list[0].Status != plan.StatusInProgress {
		t.Errorf("ListByAgentID() = %d plans, want [in-progress %s, %s]", len(list), p.ID, second.ID)
	}

	if _, err := repo.GetByID(ctx, "missing-"+uuid.NewString()); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrPlanNotFound", err)
	}
}

// EvaluationRepository checks evaluation and improvement storage.
func EvaluationRepository(t *testing.T, repo evaluation.Repository) {
	t.Helper()
	ctx := context.Background()

	agentID := "agent-" + uuid.NewString()
	older := evaluation.New(agentID, "resp-1", "q", "r", []string{"ctx"})
	older.SetScore(evaluation.CriterionScore{Criterion: evaluation.Relevance, Score: 0.9, Reason: "on topic"})
	older.ComputeOverall(evaluation.DefaultSettings().Weights)
	newer := evaluation.New(agentID, "resp-2", "q", "r2", nil)
	newer.CreatedAt = older.CreatedAt.Add(time.Second)

	for _, e := range []*evaluation.Evaluation{older, newer} {
		if err := repo.SaveEvaluation(ctx, e); err != nil {
			t.Fatalf("SaveEvaluation() error = %v", err)
		}
	}

	got, err := repo.GetEvaluationByID(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetEvaluationByID() error = %v", err)
	}
	if got.Scores[evaluation.Relevance].Score != 0.9 || got.OverallScore != older.OverallScore {
		t.Errorf("GetEvaluationByID() = %+v", got)
	}

	list, err := repo.ListEvaluations(ctx, agentID)
	if err != nil {
		t.Fatalf("ListEvaluations() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Errorf("ListEvaluations() should return newest first, got %d items", len(list))
	}

	first := evaluation.NewImprovement(older.ID, "r", "better", []evaluation.Suggestion{
		{Criterion: evaluation.Completeness, Suggestion: "add detail", Priority: 7},
	})
	latest := evaluation.NewImprovement(older.ID, "r", "best", nil)
	latest.CreatedAt = first.CreatedAt.Add(time.Second)
	for _, i := range []*evaluation.Improvement{first, latest} {
		if err := repo.SaveImprovement(ctx, i); err != nil {
			t.Fatalf("SaveImprovement() error = %v", err)
		}
	}

	imp, err := repo.GetImprovementByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetImprovementByID() error = %v", err)
	}
	if len(imp.Suggestions) != 1 || imp.Suggestions[0].Priority != 7 {
		t.Errorf("GetImprovementByID() suggestions = %+v", imp.Suggestions)
	}

	byEval, err := repo.GetImprovementByEvaluationID(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetImprovementByEvaluationID() error = %v", err)
	}
	if byEval.ID != latest.ID {
		t.Errorf("GetImprovementByEvaluationID() = %s, want latest %s", byEval.ID, latest.ID)
	}

	if _, err := repo.GetEvaluationByID(ctx, "missing"); !errors.Is(err, evaluation.ErrEvaluationNotFound) {
		t.Errorf("GetEvaluationByID(missing) error = %v, want ErrEvaluationNotFound", err)
	}
	if _, err := repo.GetImprovementByEvaluationID(ctx, newer.ID); !errors.Is(err, evaluation.ErrImprovementNotFound) {
		t.Errorf("GetImprovementByEvaluationID(none) error = %v, want ErrImprovementNotFound", err)
	}
}
