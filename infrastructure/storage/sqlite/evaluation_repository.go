package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

// EvaluationRepository is a SQLite-backed implementation of evaluation.Repository.
type EvaluationRepository struct {
	db *sql.DB
}

// SaveEvaluation stores an evaluation, overwriting an existing ID.
func (r *EvaluationRepository) SaveEvaluation(ctx context.Context, e *evaluation.Evaluation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, agent_id, overall_score, data, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET agent_id = excluded.agent_id,
			overall_score = excluded.overall_score, data = excluded.data`,
		e.ID, e.AgentID, e.OverallScore, data, e.CreatedAt.UnixNano(),
	)
	return err
}

// GetEvaluationByID retrieves an evaluation.
func (r *EvaluationRepository) GetEvaluationByID(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT data FROM evaluations WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", evaluation.ErrEvaluationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(data)
}

// SaveImprovement stores an improvement, overwriting an existing ID.
func (r *EvaluationRepository) SaveImprovement(ctx context.Context, i *evaluation.Improvement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(i)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO improvements (id, evaluation_id, data, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET evaluation_id = excluded.evaluation_id, data = excluded.data`,
		i.ID, i.EvaluationID, data, i.CreatedAt.UnixNano(),
	)
	return err
}

// GetImprovementByID retrieves an improvement.
func (r *EvaluationRepository) GetImprovementByID(ctx context.Context, id string) (*evaluation.Improvement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.improvement(ctx, id, "SELECT data FROM improvements WHERE id = ?", id)
}

// GetImprovementByEvaluationID returns the latest improvement for an evaluation.
func (r *EvaluationRepository) GetImprovementByEvaluationID(ctx context.Context, evaluationID string) (*evaluation.Improvement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.improvement(ctx, "evaluation "+evaluationID,
		"SELECT data FROM improvements WHERE evaluation_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		evaluationID)
}

func (r *EvaluationRepository) improvement(ctx context.Context, label, query string, args ...any) (*evaluation.Improvement, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT data FROM evaluations WHERE agent_id = ? ORDER BY created_at DESC, rowid DESC", agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*evaluation.Evaluation
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		e, err := decodeEvaluation(data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func decodeEvaluation(data []byte) (*evaluation.Evaluation, error) {
	var e evaluation.Evaluation
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

var _ evaluation.Repository = (*EvaluationRepository)(nil)
