package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// AgentRepository is a PostgreSQL-backed implementation of agent.Repository.
type AgentRepository struct {
	store *Store
}

// Save inserts or updates an agent using optimistic versioning.
func (r *AgentRepository) Save(ctx context.Context, a *agent.Agent) error {
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

	table := r.store.table("agents")
	outcome, err := r.store.versionedWrite(ctx, "agents", a.ID, previous,
		fmt.Sprintf(`INSERT INTO %s (id, conversation_id, version, data, created_at)
			VALUES ($1, $2, $3, $4, $5)`, table),
		[]any{a.ID, a.ConversationID(), a.Version, data, a.State.CreatedAt},
		fmt.Sprintf(`UPDATE %s SET conversation_id = $1, version = $2, data = $3
			WHERE id = $4 AND version = $5`, table),
		[]any{a.ConversationID(), a.Version, data, a.ID, previous},
	)

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
	if id == "" {
		return nil, agent.ErrInvalidAgentID
	}
	a, err := r.one(ctx, fmt.Sprintf("SELECT data FROM %s WHERE id = $1", r.store.table("agents")), id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	return a, err
}

// GetByConversationID retrieves the agent bound to a conversation.
func (r *AgentRepository) GetByConversationID(ctx context.Context, conversationID string) (*agent.Agent, error) {
	a, err := r.one(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE conversation_id = $1 ORDER BY created_at LIMIT 1", r.store.table("agents")),
		conversationID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %s", agent.ErrAgentNotFound, conversationID)
	}
	return a, err
}

// Delete removes an agent by ID.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.store.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.store.table("agents")), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	return nil
}

// ListAll returns every agent ordered by creation time.
func (r *AgentRepository) ListAll(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := r.store.pool.Query(ctx, fmt.Sprintf("SELECT data FROM %s ORDER BY created_at, id", r.store.table("agents")))
	if err != nil {
		return nil, err
	}
	return collectJSON[agent.Agent](rows)
}

func (r *AgentRepository) one(ctx context.Context, query string, args ...any) (*agent.Agent, error) {
	var data []byte
	if err := r.store.pool.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		return nil, err
	}
	var a agent.Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// collectJSON decodes a single JSON column from every row.
func collectJSON[T any](rows pgx.Rows) ([]*T, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*T, error) {
		var data []byte
		if err := row.Scan(&data); err != nil {
			return nil, err
		}
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

var _ agent.Repository = (*AgentRepository)(nil)
