package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

// EvaluationRepository is an in-memory implementation of evaluation.Repository.
type EvaluationRepository struct {
	evaluations  map[string][]byte
	improvements map[string][]byte
	byEvaluation map[string]string // evaluation ID -> latest improvement ID
	mu           sync.RWMutex
}

// NewEvaluationRepository creates a new in-memory evaluation repository.
func NewEvaluationRepository() *EvaluationRepository {
	return &EvaluationRepository{
		evaluations:  make(map[string][]byte),
		improvements: make(map[string][]byte),
		byEvaluation: make(map[string]string),
	}
}

// SaveEvaluation stores an evaluation.
func (r *EvaluationRepository) SaveEvaluation(ctx context.Context, e *evaluation.Evaluation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations[e.ID] = data
	return nil
}

// GetEvaluationByID retrieves an evaluation.
func (r *EvaluationRepository) GetEvaluationByID(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.evaluations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", evaluation.ErrEvaluationNotFound, id)
	}
	var e evaluation.Evaluation
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveImprovement stores an improvement and indexes it by evaluation.
func (r *EvaluationRepository) SaveImprovement(ctx context.Context, i *evaluation.Improvement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(i)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.improvements[i.ID] = data
	r.byEvaluation[i.EvaluationID] = i.ID
	return nil
}

// GetImprovementByID retrieves an improvement.
func (r *EvaluationRepository) GetImprovementByID(ctx context.Context, id string) (*evaluation.Improvement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.improvement(id)
}

// GetImprovementByEvaluationID retrieves the latest improvement for an evaluation.
func (r *EvaluationRepository) GetImprovementByEvaluationID(ctx context.Context, evaluationID string) (*evaluation.Improvement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEvaluation[evaluationID]
	if !ok {
		return nil, fmt.Errorf("%w: evaluation %s", evaluation.ErrImprovementNotFound, evaluationID)
	}
	return r.improvement(id)
}

// improvement must be called with the read lock held.
func (r *EvaluationRepository) improvement(id string) (*evaluation.Improvement, error) {
	data, ok := r.improvements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", evaluation.ErrImprovementNotFound, id)
	}
	var i evaluation.Improvement
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, err
	}
	return &i, nil
}

// ListEvaluations returns an agent's evaluations, newest first.
func (r *EvaluationRepository) ListEvaluations(ctx context.Context, agentID string) ([]*evaluation.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*evaluation.Evaluation, 0)
	for _, data := range r.evaluations {
		var e evaluation.Evaluation
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		if e.AgentID == agentID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

var _ evaluation.Repository = (*EvaluationRepository)(nil)
