package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

func TestEvaluationRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewEvaluationRepository()

	older := evaluation.New("agent-1", "r1", "q", "r", []string{"ctx"})
	older.SetScore(evaluation.CriterionScore{Criterion: evaluation.Relevance, Score: 0.9, Reason: "ok"})
	newer := evaluation.New("agent-1", "r2", "q", "r", nil)
	newer.CreatedAt = older.CreatedAt.Add(time.Second)
	foreign := evaluation.New("agent-2", "r3", "q", "r", nil)

	for _, e := range []*evaluation.Evaluation{older, newer, foreign} {
		if err := repo.SaveEvaluation(ctx, e); err != nil {
			t.Fatalf("SaveEvaluation() error = %v", err)
		}
	}

	got, err := repo.GetEvaluationByID(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetEvaluationByID() error = %v", err)
	}
	if got.Scores[evaluation.Relevance].Score != 0.9 {
		t.Errorf("relevance = %v, want 0.9", got.Scores[evaluation.Relevance].Score)
	}

	list, _ := repo.ListEvaluations(ctx, "agent-1")
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Errorf("ListEvaluations() should return newest first, got %d items", len(list))
	}

	imp := evaluation.NewImprovement(older.ID, "r", "better", []evaluation.Suggestion{evaluation.GenericSuggestion()})
	if err := repo.SaveImprovement(ctx, imp); err != nil {
		t.Fatalf("SaveImprovement() error = %v", err)
	}
	byEval, err := repo.GetImprovementByEvaluationID(ctx, older.ID)
	if err != nil || byEval.ID != imp.ID {
		t.Errorf("GetImprovementByEvaluationID() = %v, %v", byEval, err)
	}
	if _, err := repo.GetImprovementByID(ctx, imp.ID); err != nil {
		t.Errorf("GetImprovementByID() error = %v", err)
	}

	if _, err := repo.GetEvaluationByID(ctx, "missing"); !errors.Is(err, evaluation.ErrEvaluationNotFound) {
		t.Errorf("GetEvaluationByID(missing) error = %v", err)
	}
	if _, err := repo.GetImprovementByEvaluationID(ctx, newer.ID); !errors.Is(err, evaluation.ErrImprovementNotFound) {
		t.Errorf("GetImprovementByEvaluationID(no improvement) error = %v", err)
	}
}
