package agent

import "context"

// Repository persists agents.
//
// Save inserts an agent with Version 0 and updates one whose Version matches
// the stored revision; either way the agent's Version is advanced on success.
// A mismatch returns ErrConcurrentUpdate.
type Repository interface {
	// Save inserts or updates an agent.
	Save(ctx context.Context, a *Agent) error

	// GetByID retrieves an agent. Returns ErrAgentNotFound if absent.
	GetByID(ctx context.Context, id string) (*Agent, error)

	// GetByConversationID retrieves the agent bound to a conversation.
	GetByConversationID(ctx context.Context, conversationID string) (*Agent, error)

	// Delete removes an agent. Returns ErrAgentNotFound if absent.
	Delete(ctx context.Context, id string) error

	// ListAll returns every agent ordered by creation time.
	ListAll(ctx context.Context) ([]*Agent, error)
}
