package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

// EvaluationRepository is a PostgreSQL-backed implementation of evaluation.Repository.
type EvaluationRepository struct {
	store *Store
}

// SaveEvaluation stores an evaluation, overwriting an existing ID.
func (r *EvaluationRepository) SaveEvaluation(ctx context.Context, e *evaluation.Evaluation) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = r.store.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, agent_id, overall_score, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET agent_id = EXCLUDED.agent_id,
			overall_score = EXCLUDED.overall_score, data = EXCLUDED.data`, r.store.table("evaluations")),
		e.ID, e.AgentID, e.OverallScore, data, e.CreatedAt,
	)
	return err
}

// GetEvaluationByID retrieves an evaluation.
func (r *EvaluationRepository) GetEvaluationByID(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	var data []byte
	err := r.store.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE id = $1", r.store.table("evaluations")), id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", evaluation.ErrEvaluationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var e evaluation.Evaluation
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveImprovement stores an improvement, overwriting an existing ID.
func (r *EvaluationRepository) SaveImprovement(ctx context.Context, i *evaluation.Improvement) error {
	data, err := json.Marshal(i)
	if err != nil {
		return err
	}
	_, err = r.store.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, evaluation_id, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET evaluation_id = EXCLUDED.evaluation_id, data = EXCLUDED.data`,
		r.store.table("improvements")),
		i.ID, i.EvaluationID, data, i.CreatedAt,
	)
	return err
}

// GetImprovementByID retrieves an improvement.
func (r *EvaluationRepository) GetImprovementByID(ctx context.Context, id string) (*evaluation.Improvement, error) {
	return r.improvement(ctx, id,
		fmt.Sprintf("SELECT data FROM %s WHERE id = $1", r.store.table("improvements")), id)
}

// GetImprovementByEvaluationID returns the latest improvement for an evaluation.
func (r *EvaluationRepository) GetImprovementByEvaluationID(ctx context.Context, evaluationID string) (*evaluation.Improvement, error) {
	return r.improvement(ctx, "evaluation "+evaluationID,
		fmt.Sprintf("SELECT data FROM %s WHERE evaluation_id = $1 ORDER BY created_at DESC LIMIT 1", r.store.table("improvements")),
		evaluationID)
}

func (r *EvaluationRepository) improvement(ctx context.Context, label, query string, args ...any) (*evaluation.Improvement, error) {
	var data []byte
	err := r.store.pool.QueryRow(ctx, query, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", evaluation.ErrImprovementNotFound, label)
	}
	if err != nil {
		return nil, err
	}
	var i evaluation.Improvement
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, err
	}
	return &i, nil
}

// ListEvaluations returns an agent's evaluations, newest first.
func (r *EvaluationRepository) ListEvaluations(ctx context.Context, agentID string) ([]*evaluation.Evaluation, error) {
	rows, err := r.store.pool.Query(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE agent_id = $1 ORDER BY created_at DESC", r.store.table("evaluations")),
		agentID,
	)
	if err != nil {
		return nil, err
	}
	return collectJSON[evaluation.Evaluation](rows)
}

var _ evaluation.Repository = (*EvaluationRepository)(nil)
