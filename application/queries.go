package application

import (
	"time"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/event"
)

// DefaultPageSize is used when a paged query leaves Limit at zero.
const DefaultPageSize = 10

// GetAgentByID returns one agent, or nil if absent.
type GetAgentByID struct {
	AgentID string
}

// GetAgentByConversationID returns the agent bound to a conversation, or nil.
type GetAgentByConversationID struct {
	ConversationID string
}

// ListAgents returns every agent.
type ListAgents struct{}

// GetAgentActions pages through an agent's action history, oldest first.
type GetAgentActions struct {
	AgentID    string
	Limit      int
	Offset     int
	ActionType string
}

// GetPlanByID returns one plan, or nil if absent.
type GetPlanByID struct {
	PlanID string
}

// ListPlansByAgentID returns an agent's plans.
type ListPlansByAgentID struct {
	AgentID string
}

// GetEvaluationByID returns one evaluation, or nil if absent.
type GetEvaluationByID struct {
	EvaluationID string
}

// ListEvaluationsByAgentID pages through an agent's evaluations, newest first.
type ListEvaluationsByAgentID struct {
	AgentID string
	Limit   int
	Offset  int
}

// GetImprovementByID returns one improvement, or nil if absent.
type GetImprovementByID struct {
	ImprovementID string
}

// GetImprovementByEvaluationID returns the latest improvement of an evaluation, or nil.
type GetImprovementByEvaluationID struct {
	EvaluationID string
}

// GetAvailableActions lists the registered actions.
type GetAvailableActions struct{}

// GetAgentEvents pages through an agent's recorded events.
type GetAgentEvents struct {
	AgentID string
	Types   []event.Type
	Limit   int
	Offset  int
}

// AgentView is the read model of an agent.
type AgentView struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	ConversationID string         `json:"conversation_id"`
	Config         map[string]any `json:"config"`
	Memory         map[string]any `json:"memory"`
	ActionCount    int            `json:"action_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Version        int64          `json:"version"`
}

// NewAgentView snapshots an agent.
func NewAgentView(a *agent.Agent) *AgentView {
	memory := make(map[string]any)
	for _, key := range a.MemoryKeys() {
		if v, ok := a.Memory(key); ok {
			memory[key] = v
		}
	}
	return &AgentView{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		ConversationID: a.ConversationID(),
		Config:         a.Config,
		Memory:         memory,
		ActionCount:    a.ActionCount(),
		CreatedAt:      a.State.CreatedAt,
		UpdatedAt:      a.UpdatedAt(),
		Version:        a.Version,
	}
}

// ActionView is the read model of one recorded action.
type ActionView struct {
	ID          string             `json:"id"`
	ActionType  string             `json:"action_type"`
	Parameters  map[string]any     `json:"parameters"`
	Result      any                `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	Status      agent.ActionStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// AgentActionsResult is one page of an action history.
type AgentActionsResult struct {
	Actions []ActionView `json:"actions"`
	Total   int          `json:"total"`
}

// EvaluationSummary is the list form of an evaluation.
type EvaluationSummary struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	ResponseID   string    `json:"response_id"`
	Query        string    `json:"query"`
	OverallScore float64   `json:"overall_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// EvaluationListResult is one page of evaluations.
type EvaluationListResult struct {
	Evaluations []EvaluationSummary `json:"evaluations"`
	Total       int                 `json:"total"`
}

// AgentEventsResult is one page of recorded events.
type AgentEventsResult struct {
	Events []event.Event `json:"events"`
}

// page returns the [offset, offset+limit) window of n items.
func page(n, limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}
