package application

import (
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/plan"
)

// CreateAgent creates and persists an agent.
type CreateAgent struct {
	Name           string
	Description    string
	ConversationID string
	Config         map[string]any
}

// CreateAgentResult identifies the created agent.
type CreateAgentResult struct {
	AgentID        string `json:"agent_id"`
	Name           string `json:"name"`
	ConversationID string `json:"conversation_id"`
}

// DeleteAgent removes an agent.
type DeleteAgent struct {
	AgentID string
}

// DeleteAgentResult identifies the deleted agent.
type DeleteAgentResult struct {
	AgentID string `json:"agent_id"`
}

// ExecuteAgentAction runs one registered action for an agent.
type ExecuteAgentAction struct {
	AgentID    string
	ActionType string
	Parameters map[string]any
}

// ExecuteAgentActionResult describes the recorded action.
type ExecuteAgentActionResult struct {
	AgentID    string             `json:"agent_id"`
	ActionID   string             `json:"action_id"`
	ActionType string             `json:"action_type"`
	Parameters map[string]any     `json:"parameters"`
	Result     any                `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	Status     agent.ActionStatus `json:"status"`
}

// ProcessAgentQuery answers a query, optionally through a generated plan.
type ProcessAgentQuery struct {
	AgentID     string
	Query       string
	UsePlanning bool
}

// ProcessAgentQueryResult is the agent's answer.
type ProcessAgentQueryResult struct {
	AgentID    string         `json:"agent_id"`
	Query      string         `json:"query"`
	Response   string         `json:"response"`
	Sources    []string       `json:"sources"`
	Improved   bool           `json:"improved"`
	Evaluation map[string]any `json:"evaluation,omitempty"`
	Plan       *PlanSummary   `json:"plan,omitempty"`
	Error      string         `json:"error,omitempty"`
	Details    *PlanResult    `json:"details,omitempty"`
}

// CreatePlan generates and persists a plan for a task.
type CreatePlan struct {
	AgentID     string
	Task        string
	Constraints []string
}

// CreatePlanResult identifies the created plan.
type CreatePlanResult struct {
	AgentID   string `json:"agent_id"`
	PlanID    string `json:"plan_id"`
	Task      string `json:"task"`
	StepCount int    `json:"step_count"`
}

// ExecutePlan runs a persisted plan.
type ExecutePlan struct {
	AgentID string
	PlanID  string
}

// ExecutePlanResult is the outcome of the plan.
type ExecutePlanResult struct {
	AgentID        string      `json:"agent_id"`
	PlanID         string      `json:"plan_id"`
	Task           string      `json:"task"`
	Status         plan.Status `json:"status"`
	CompletedSteps []int       `json:"completed_steps"`
	Results        map[int]any `json:"results"`
}

// EvaluateResponse scores and persists an evaluation of a response.
type EvaluateResponse struct {
	AgentID    string
	Query      string
	Response   string
	Context    []string
	ResponseID string
}

// EvaluateResponseResult summarizes the evaluation.
type EvaluateResponseResult struct {
	AgentID          string                                             `json:"agent_id"`
	EvaluationID     string                                             `json:"evaluation_id"`
	OverallScore     float64                                            `json:"overall_score"`
	CriterionScores  map[evaluation.Criterion]evaluation.CriterionScore `json:"criterion_scores"`
	NeedsImprovement bool                                               `json:"needs_improvement"`
}

// ImproveResponse revises the response of a persisted evaluation.
type ImproveResponse struct {
	AgentID      string
	EvaluationID string
}

// ImproveResponseResult describes the persisted improvement.
type ImproveResponseResult struct {
	AgentID          string                  `json:"agent_id"`
	EvaluationID     string                  `json:"evaluation_id"`
	ImprovementID    string                  `json:"improvement_id"`
	OriginalResponse string                  `json:"original_response"`
	ImprovedResponse string                  `json:"improved_response"`
	Suggestions      []evaluation.Suggestion `json:"suggestions"`
}
