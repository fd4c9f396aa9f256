// Package evaluation provides response scoring and improvement: criteria,
// weighted scores, improvement thresholds and the collaborators that produce
// per-criterion judgments and revised responses.
package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Criterion is a named quality dimension a response is scored on.
type Criterion string

const (
	Relevance         Criterion = "relevance"
	FactualAccuracy   Criterion = "factual_accuracy"
	Completeness      Criterion = "completeness"
	LogicalCoherence  Criterion = "logical_coherence"
	EthicalCompliance Criterion = "ethical_compliance"

	// General is used for suggestions that apply to the whole response.
	General Criterion = "general"
)

// Criteria lists the scored criteria in canonical order.
func Criteria() []Criterion {
	return []Criterion{Relevance, FactualAccuracy, Completeness, LogicalCoherence, EthicalCompliance}
}

// ParseCriterion converts a name into a scored criterion.
func ParseCriterion(name string) (Criterion, error) {
	c := Criterion(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Criteria() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCriterion, name)
}

// CriterionScore is the judgment for one criterion.
type CriterionScore struct {
	Criterion Criterion `json:"criterion"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason"`
}

// Evaluation is the scored assessment of one response.
type Evaluation struct {
	ID           string                       `json:"id"`
	AgentID      string                       `json:"agent_id"`
	ResponseID   string                       `json:"response_id"`
	Query        string                       `json:"query"`
	Response     string                       `json:"response"`
	Context      []string                     `json:"context"`
	Scores       map[Criterion]CriterionScore `json:"criterion_scores"`
	OverallScore float64                      `json:"overall_score"`
	CreatedAt    time.Time                    `json:"created_at"`
}

// New creates an evaluation without scores.
func New(agentID, responseID, query, response string, context []string) *Evaluation {
	if responseID == "" {
		responseID = uuid.NewString()
	}
	if context == nil {
		context = []string{}
	}
	return &Evaluation{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		ResponseID: responseID,
		Query:      query,
		Response:   response,
		Context:    context,
		Scores:     make(map[Criterion]CriterionScore),
		CreatedAt:  time.Now(),
	}
}

// SetScore records a criterion score, clamped to [0,1].
func (e *Evaluation) SetScore(score CriterionScore) {
	score.Score = Clamp(score.Score)
	e.Scores[score.Criterion] = score
}

// ComputeOverall sets OverallScore to the weighted mean of the scored
// criteria. Criteria without a weight count with weight zero.
func (e *Evaluation) ComputeOverall(weights map[Criterion]float64) float64 {
	e.OverallScore = WeightedMean(e.Scores, weights)
	return e.OverallScore
}

// NeedsImprovement returns true if the overall score is below the overall
// threshold or any scored criterion with a threshold falls below it.
func (e *Evaluation) NeedsImprovement(thresholds map[Criterion]float64, overall float64) bool {
	if e.OverallScore < overall {
		return true
	}
	for c, score := range e.Scores {
		if threshold, ok := thresholds[c]; ok && score.Score < threshold {
			return true
		}
	}
	return false
}

// OrderedScores returns the scores in canonical criterion order.
func (e *Evaluation) OrderedScores() []CriterionScore {
	out := make([]CriterionScore, 0, len(e.Scores))
	for _, c := range Criteria() {
		if s, ok := e.Scores[c]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Summary renders one "criterion: score - reason" line per score.
func (e *Evaluation) Summary() string {
	lines := make([]string, 0, len(e.Scores))
	for _, s := range e.OrderedScores() {
		lines = append(lines, fmt.Sprintf("%s: %.2f - %s", s.Criterion, s.Score, s.Reason))
	}
	return strings.Join(lines, "\n")
}

// WeightedMean returns Σ(score·weight)/Σweight, or 0 when the weights sum to zero.
func WeightedMean(scores map[Criterion]CriterionScore, weights map[Criterion]float64) float64 {
	var total, weightSum float64
	for c, s := range scores {
		w := weights[c]
		total += Clamp(s.Score) * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return Clamp(total / weightSum)
}

// Clamp bounds a score to [0,1]. NaN counts as 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Suggestion is one ranked improvement hint.
type Suggestion struct {
	Criterion  Criterion `json:"criterion"`
	Suggestion string    `json:"suggestion"`
	Priority   int       `json:"priority"`
}

// DefaultPriority is used for suggestions that carry no priority.
const DefaultPriority = 5

// GenericSuggestion is substituted when the improver output is unusable.
func GenericSuggestion() Suggestion {
	return Suggestion{
		Criterion:  General,
		Suggestion: "Improve the response based on evaluation feedback",
		Priority:   DefaultPriority,
	}
}

// NormalizePriority maps 0 to the default and clamps the rest to [1,10].
func NormalizePriority(p int) int {
	switch {
	case p == 0:
		return DefaultPriority
	case p < 1:
		return 1
	case p > 10:
		return 10
	default:
		return p
	}
}

// RankSuggestions normalizes priorities and sorts by descending priority.
// Ties keep their input order.
func RankSuggestions(in []Suggestion) []Suggestion {
	out := make([]Suggestion, len(in))
	for i, s := range in {
		s.Priority = NormalizePriority(s.Priority)
		out[i] = s
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Improvement is a revised response derived from an evaluation.
type Improvement struct {
	ID               string       `json:"id"`
	EvaluationID     string       `json:"evaluation_id"`
	OriginalResponse string       `json:"original_response"`
	ImprovedResponse string       `json:"improved_response"`
	Suggestions      []Suggestion `json:"suggestions"`
	CreatedAt        time.Time    `json:"created_at"`
}

// NewImprovement creates an improvement with ranked suggestions.
func NewImprovement(evaluationID, original, improved string, suggestions []Suggestion) *Improvement {
	return &Improvement{
		ID:               uuid.NewString(),
		EvaluationID:     evaluationID,
		OriginalResponse: original,
		ImprovedResponse: improved,
		Suggestions:      RankSuggestions(suggestions),
		CreatedAt:        time.Now(),
	}
}
