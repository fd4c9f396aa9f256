package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

// EvaluationRepository is a Redis-backed implementation of evaluation.Repository.
type EvaluationRepository struct {
	store *Store
}

func (r *EvaluationRepository) evaluationKey(id string) string {
	return r.store.key("evaluation", id)
}

func (r *EvaluationRepository) agentEvaluationsKey(agentID string) string {
	return r.store.key("agent", agentID, "evaluations")
}

func (r *EvaluationRepository) improvementKey(id string) string {
	return r.store.key("improvement", id)
}

func (r *EvaluationRepository) evaluationImprovementsKey(evaluationID string) string {
	return r.store.key("evaluation", evaluationID, "improvements")
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
	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.evaluationKey(e.ID), data, 0)
		pipe.ZAdd(ctx, r.agentEvaluationsKey(e.AgentID), redis.Z{Score: score(e.CreatedAt), Member: e.ID})
		return nil
	})
	return err
}

// GetEvaluationByID retrieves an evaluation.
func (r *EvaluationRepository) GetEvaluationByID(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := r.store.client.Get(ctx, r.evaluationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
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
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(i)
	if err != nil {
		return err
	}
	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.improvementKey(i.ID), data, 0)
		pipe.ZAdd(ctx, r.evaluationImprovementsKey(i.EvaluationID), redis.Z{Score: score(i.CreatedAt), Member: i.ID})
		return nil
	})
	return err
}

// GetImprovementByID retrieves an improvement.
func (r *EvaluationRepository) GetImprovementByID(ctx context.Context, id string) (*evaluation.Improvement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := r.store.client.Get(ctx, r.improvementKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", evaluation.ErrImprovementNotFound, id)
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

// GetImprovementByEvaluationID returns the latest improvement for an evaluation.
func (r *EvaluationRepository) GetImprovementByEvaluationID(ctx context.Context, evaluationID string) (*evaluation.Improvement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := r.store.client.ZRevRange(ctx, r.evaluationImprovementsKey(evaluationID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: evaluation %s", evaluation.ErrImprovementNotFound, evaluationID)
	}
	return r.GetImprovementByID(ctx, ids[0])
}

// ListEvaluations returns an agent's evaluations, newest first.
func (r *EvaluationRepository) ListEvaluations(ctx context.Context, agentID string) ([]*evaluation.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := r.store.client.ZRevRange(ctx, r.agentEvaluationsKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*evaluation.Evaluation, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetEvaluationByID(ctx, id)
		if errors.Is(err, evaluation.ErrEvaluationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

var _ evaluation.Repository = (*EvaluationRepository)(nil)
