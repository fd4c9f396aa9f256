package event

// Type classifies domain events.
type Type string

// Event types published by the orchestration services.
const (
	TypeAgentCreated Type = "agent.created"

	TypeActionStarted   Type = "action.started"
	TypeActionCompleted Type = "action.completed"
	TypeActionFailed    Type = "action.failed"

	TypePlanCreated       Type = "plan.created"
	TypePlanStepCompleted Type = "plan.step_completed"
	TypePlanStepFailed    Type = "plan.step_failed"
	TypePlanCompleted     Type = "plan.completed"
	TypePlanFailed        Type = "plan.failed"

	TypeResponseEvaluated Type = "response.evaluated"
	TypeResponseImproved  Type = "response.improved"
)

// AgentCreatedPayload contains data for agent.created events.
type AgentCreatedPayload struct {
	AgentID        string `json:"agent_id"`
	Name           string `json:"name"`
	ConversationID string `json:"conversation_id"`
}

// ActionStartedPayload contains data for action.started events.
type ActionStartedPayload struct {
	AgentID    string         `json:"agent_id"`
	ActionID   string         `json:"action_id"`
	ActionType string         `json:"action_type"`
	Parameters map[string]any `json:"parameters"`
}

// ActionCompletedPayload contains data for action.completed events.
type ActionCompletedPayload struct {
	AgentID    string `json:"agent_id"`
	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
	Result     any    `json:"result"`
	DurationMS int64  `json:"duration_ms"`
}

// ActionFailedPayload contains data for action.failed events.
type ActionFailedPayload struct {
	AgentID    string `json:"agent_id"`
	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}

// PlanCreatedPayload contains data for plan.created events.
type PlanCreatedPayload struct {
	AgentID   string `json:"agent_id"`
	PlanID    string `json:"plan_id"`
	Task      string `json:"task"`
	StepCount int    `json:"step_count"`
}

// PlanStepCompletedPayload contains data for plan.step_completed events.
type PlanStepCompletedPayload struct {
	AgentID    string `json:"agent_id"`
	PlanID     string `json:"plan_id"`
	StepNumber int    `json:"step_number"`
	ActionType string `json:"action_type"`
	Result     any    `json:"result"`
}

// PlanStepFailedPayload contains data for plan.step_failed events.
type PlanStepFailedPayload struct {
	AgentID    string `json:"agent_id"`
	PlanID     string `json:"plan_id"`
	StepNumber int    `json:"step_number"`
	ActionType string `json:"action_type"`
	Error      string `json:"error"`
}

// PlanFinishedPayload contains data for plan.completed and plan.failed events.
type PlanFinishedPayload struct {
	AgentID        string `json:"agent_id"`
	PlanID         string `json:"plan_id"`
	Task           string `json:"task"`
	Status         string `json:"status"`
	CompletedSteps []int  `json:"completed_steps"`
}

// ResponseEvaluatedPayload contains data for response.evaluated events.
type ResponseEvaluatedPayload struct {
	AgentID          string  `json:"agent_id"`
	EvaluationID     string  `json:"evaluation_id"`
	ResponseID       string  `json:"response_id"`
	OverallScore     float64 `json:"overall_score"`
	NeedsImprovement bool    `json:"needs_improvement"`
}

// ResponseImprovedPayload contains data for response.improved events.
type ResponseImprovedPayload struct {
	AgentID          string `json:"agent_id"`
	EvaluationID     string `json:"evaluation_id"`
	ImprovementID    string `json:"improvement_id"`
	OriginalResponse string `json:"original_response"`
	ImprovedResponse string `json:"improved_response"`
}
