package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

const improveSystemPrompt = `You revise responses to address evaluation feedback. Give suggestions as JSON first, then the improved response.`

// Improver implements evaluation.Improver with an LLM.
type Improver struct {
	client *Client
}

// NewImprover creates an improver backed by client.
func NewImprover(client *Client) *Improver {
	return &Improver{client: client}
}

var _ evaluation.Improver = (*Improver)(nil)

// Improve asks the model for suggestions and a revised response. When the
// suggestions cannot be parsed the error wraps evaluation.ErrUnparseable and
// the result still carries any revised text the model produced.
func (i *Improver) Improve(ctx context.Context, req evaluation.ImproveRequest) (evaluation.ImproveResult, error) {
	content, err := i.client.Complete(ctx, PurposeImprove, improveSystemPrompt, buildImprovePrompt(req))
	if err != nil {
		return evaluation.ImproveResult{}, err
	}

	var parsed struct {
		Suggestions []struct {
			Criterion  string `json:"criterion"`
			Suggestion string `json:"suggestion"`
			Priority   int    `json:"priority"`
		} `json:"suggestions"`
	}
	rest, err := decodeJSON(content, &parsed)
	result := evaluation.ImproveResult{ImprovedResponse: stripFences(rest)}
	if err != nil {
		return result, fmt.Errorf("%w: %v", evaluation.ErrUnparseable, err)
	}

	for _, s := range parsed.Suggestions {
		criterion, perr := evaluation.ParseCriterion(s.Criterion)
		if perr != nil {
			criterion = evaluation.General
		}
		result.Suggestions = append(result.Suggestions, evaluation.Suggestion{
			Criterion:  criterion,
			Suggestion: s.Suggestion,
			Priority:   s.Priority,
		})
	}
	return result, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = ""
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func buildImprovePrompt(req evaluation.ImproveRequest) string {
	var sb strings.Builder

	sb.WriteString("Improve the following response based on the evaluation feedback.\n\n")
	sb.WriteString("Query: " + req.Query + "\n\n")
	sb.WriteString("Context:\n" + strings.Join(req.Context, "\n\n") + "\n\n")
	sb.WriteString("Evaluation:\n" + req.EvaluationSummary + "\n\n")
	sb.WriteString(`Your task is to improve the response by addressing the issues identified in the evaluation.
Focus on fixing problems with relevance, factual accuracy, completeness, logical coherence, and ethical compliance.

First, provide specific improvement suggestions in the following JSON format:
` + "```json" + `
{
  "suggestions": [
    {"criterion": "relevance", "suggestion": "Focus more directly on the question asked", "priority": 8}
  ]
}
` + "```" + `

Then, provide an improved version of the response that addresses these suggestions.

`)
	sb.WriteString("Original Response: " + req.Response)
	return sb.String()
}
