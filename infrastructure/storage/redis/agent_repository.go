package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// AgentRepository is a Redis-backed implementation of agent.Repository.
type AgentRepository struct {
	store *Store
}

func (r *AgentRepository) agentKey(id string) string { return r.store.key("agent", id) }
func (r *AgentRepository) indexKey() string          { return r.store.key("agents") }
func (r *AgentRepository) conversationKey(id string) string {
	return r.store.key("conversation", id)
}

// Save inserts or updates an agent using optimistic versioning.
func (r *AgentRepository) Save(ctx context.Context, a *agent.Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a == nil || a.ID == "" {
		return agent.ErrInvalidAgentID
	}

	previous := a.Version
	a.Version = previous + 1
	data, err := json.Marshal(a)
	if err != nil {
		a.Version = previous
		return err
	}

	key := r.agentKey(a.ID)
	outcome, err := r.store.versionedWrite(ctx, key, previous, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, "data", data, "version", a.Version, "conversation", a.ConversationID())
		pipe.Set(ctx, r.conversationKey(a.ConversationID()), a.ID, 0)
		if previous == 0 {
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: score(a.State.CreatedAt), Member: a.ID})
		}
	})

	switch {
	case err != nil:
		a.Version = previous
		return err
	case outcome == conflict:
		a.Version = previous
		return fmt.Errorf("%w: %s", agent.ErrConcurrentUpdate, a.ID)
	case outcome == missing:
		a.Version = previous
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, a.ID)
	}
	return nil
}

// GetByID retrieves an agent by ID.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, agent.ErrInvalidAgentID
	}

	data, err := r.store.client.HGet(ctx, r.agentKey(id), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeAgent(data)
}

// GetByConversationID retrieves the agent bound to a conversation.
func (r *AgentRepository) GetByConversationID(ctx context.Context, conversationID string) (*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := r.store.client.Get(ctx, r.conversationKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: conversation %s", agent.ErrAgentNotFound, conversationID)
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes an agent by ID.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := r.agentKey(id)
	conv, err := r.store.client.HGet(ctx, key, "conversation").Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	if err != nil {
		return err
	}

	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, r.indexKey(), id)
		pipe.Del(ctx, r.conversationKey(conv))
		return nil
	})
	return err
}

// ListAll returns every agent ordered by creation time.
func (r *AgentRepository) ListAll(ctx context.Context) ([]*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := r.store.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	cmds, err := r.store.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HGet(ctx, r.agentKey(id), "data")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([]*agent.Agent, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.(*redis.StringCmd).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		a, err := decodeAgent(data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAgent(data []byte) (*agent.Agent, error) {
	var a agent.Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ agent.Repository = (*AgentRepository)(nil)
