package evaluation

import "context"

// ScoreRequest asks for a judgment of one criterion.
type ScoreRequest struct {
	Criterion Criterion
	Query     string
	Response  string
	Context   []string
}

// ScoreResult is a scorer's typed judgment.
type ScoreResult struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Scorer judges a response against one criterion.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (ScoreResult, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, req ScoreRequest) (ScoreResult, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	return f(ctx, req)
}

// ImproveRequest asks for a revised response.
type ImproveRequest struct {
	Query             string
	Response          string
	Context           []string
	EvaluationSummary string
}

// ImproveResult is an improver's typed output.
type ImproveResult struct {
	ImprovedResponse string       `json:"improved_response"`
	Suggestions      []Suggestion `json:"suggestions"`
}

// Improver revises a response given its evaluation.
type Improver interface {
	Improve(ctx context.Context, req ImproveRequest) (ImproveResult, error)
}

// ImproverFunc adapts a function to the Improver interface.
type ImproverFunc func(ctx context.Context, req ImproveRequest) (ImproveResult, error)

// Improve calls f.
func (f ImproverFunc) Improve(ctx context.Context, req ImproveRequest) (ImproveResult, error) {
	return f(ctx, req)
}
