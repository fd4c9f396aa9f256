package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store owns the client shared by the repositories.
//
// Key layout under the prefix:
//
//	agent:<id>                     hash {data, version, conversation}
//	agents                         zset of agent IDs by creation time
//	conversation:<id>              agent ID
//	plan:<id>                      hash {data, version}
//	agent:<id>:plans               zset of plan IDs by creation time
//	evaluation:<id>                evaluation JSON
//	agent:<id>:evaluations         zset of evaluation IDs by creation time
//	improvement:<id>               improvement JSON
//	evaluation:<id>:improvements   zset of improvement IDs by creation time
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// NewStore wraps an existing client.
func NewStore(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Open connects using cfg.
func Open(ctx context.Context, cfg Config, opts ...ConfigOption) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(client, cfg.KeyPrefix), nil
}

func (s *Store) key(parts ...string) string {
	k := s.keyPrefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// Agents returns the agent repository.
func (s *Store) Agents() *AgentRepository {
	return &AgentRepository{store: s}
}

// Plans returns the plan repository.
func (s *Store) Plans() *PlanRepository {
	return &PlanRepository{store: s}
}

// Evaluations returns the evaluation repository.
func (s *Store) Evaluations() *EvaluationRepository {
	return &EvaluationRepository{store: s}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

type writeOutcome int

const (
	written writeOutcome = iota
	conflict
	missing
)

// versionedWrite runs write inside a WATCH transaction on key once the stored
// version matches previous. A concurrent change to key during the
// transaction counts as a conflict.
func (s *Store) versionedWrite(ctx context.Context, key string, previous int64, write func(redis.Pipeliner)) (writeOutcome, error) {
	outcome := written
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, "version").Int64()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}

		switch {
		case previous == 0 && exists:
			outcome = conflict
			return nil
		case previous != 0 && !exists:
			outcome = missing
			return nil
		case previous != 0 && stored != previous:
			outcome = conflict
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return conflict, nil
	}
	return outcome, err
}

// score orders sorted-set members by time; microseconds stay exact in a float64.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}
