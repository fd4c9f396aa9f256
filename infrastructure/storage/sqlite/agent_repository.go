package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// AgentRepository is a SQLite-backed implementation of agent.Repository.
type AgentRepository struct {
	db *sql.DB
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

	outcome, err := versionedWrite{
		table:    "agents",
		id:       a.ID,
		previous: previous,
		insert: `INSERT INTO agents (id, conversation_id, version, data, created_at)
			VALUES (?, ?, ?, ?, ?)`,
		insertArgs: []any{a.ID, a.ConversationID(), a.Version, data, a.State.CreatedAt.UnixNano()},
		update: `UPDATE agents SET conversation_id = ?, version = ?, data = ?
			WHERE id = ? AND version = ?`,
		updateArgs: []any{a.ConversationID(), a.Version, data, a.ID, previous},
	}.exec(ctx, r.db)

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

	a, err := r.scanOne(ctx, "SELECT data FROM agents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	return a, err
}

// GetByConversationID retrieves the agent bound to a conversation.
func (r *AgentRepository) GetByConversationID(ctx context.Context, conversationID string) (*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a, err := r.scanOne(ctx,
		"SELECT data FROM agents WHERE conversation_id = ? ORDER BY created_at LIMIT 1",
		conversationID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %s", agent.ErrAgentNotFound, conversationID)
	}
	return a, err
}

// Delete removes an agent by ID.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	return nil
}

// ListAll returns every agent ordered by creation time.
func (r *AgentRepository) ListAll(ctx context.Context) ([]*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT data FROM agents ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agent.Agent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a agent.Agent
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *AgentRepository) scanOne(ctx context.Context, query string, args ...any) (*agent.Agent, error) {
	var data []byte
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		return nil, err
	}
	var a agent.Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ agent.Repository = (*AgentRepository)(nil)
