package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

const planSystemPrompt = `You are a planning assistant. You break tasks into numbered steps that use only the available actions. Respond with JSON only.`

// PlanGenerator implements plan.Generator with an LLM.
type PlanGenerator struct {
	client *Client
}

// NewPlanGenerator creates a plan generator backed by client.
func NewPlanGenerator(client *Client) *PlanGenerator {
	return &PlanGenerator{client: client}
}

var _ plan.Generator = (*PlanGenerator)(nil)

type planResponse struct {
	Steps []struct {
		StepNumber   int            `json:"step_number"`
		ActionType   string         `json:"action_type"`
		Description  string         `json:"description"`
		Parameters   map[string]any `json:"parameters"`
		Dependencies []int          `json:"dependencies"`
	} `json:"steps"`
}

// Generate asks the model for a step list. Transport failures and
// unparseable output are reported as *plan.GenerationError.
func (g *PlanGenerator) Generate(ctx context.Context, req plan.GenerateRequest) ([]plan.StepSpec, error) {
	content, err := g.client.Complete(ctx, PurposePlan, planSystemPrompt, buildPlanPrompt(req))
	if err != nil {
		return nil, &plan.GenerationError{Task: req.Task, Err: err}
	}

	var resp planResponse
	if _, err := decodeJSON(content, &resp); err != nil {
		return nil, &plan.GenerationError{
			Task: req.Task,
			Err:  fmt.Errorf("failed to parse plan: %w (content: %s)", err, truncate(content, 200)),
		}
	}
	if resp.Steps == nil {
		return nil, &plan.GenerationError{Task: req.Task, Err: fmt.Errorf("no steps returned")}
	}

	specs := make([]plan.StepSpec, 0, len(resp.Steps))
	for _, s := range resp.Steps {
		specs = append(specs, plan.StepSpec{
			ActionType:   s.ActionType,
			Description:  s.Description,
			Parameters:   s.Parameters,
			Dependencies: s.Dependencies,
		})
	}
	return specs, nil
}

func buildPlanPrompt(req plan.GenerateRequest) string {
	var sb strings.Builder

	sb.WriteString("Create a step-by-step plan to complete the following task:\n\n")
	sb.WriteString("Task: " + req.Task + "\n\n")

	sb.WriteString("Available actions:\n")
	for _, a := range req.AvailableActions {
		sb.WriteString("- " + a + "\n")
	}

	sb.WriteString("\nConstraints:\n")
	if len(req.Constraints) == 0 {
		sb.WriteString("- No specific constraints\n")
	}
	for _, c := range req.Constraints {
		sb.WriteString("- " + c + "\n")
	}

	sb.WriteString(`
Create a detailed plan with numbered steps. Each step should include:
1. The action to execute (must be one of the available actions)
2. A description of what this step accomplishes
3. Parameters required for the action
4. Dependencies (which steps must be completed before this one)

Respond in the following JSON format:
` + "```json" + `
{
  "steps": [
    {
      "step_number": 1,
      "action_type": "action_name",
      "description": "What this step does",
      "parameters": {"param1": "value1"},
      "dependencies": []
    }
  ]
}
` + "```\n")

	// Repeat the task last so it stays in the final line of context.
	sb.WriteString("Task: " + req.Task)
	return sb.String()
}
