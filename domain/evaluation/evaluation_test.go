package evaluation

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func scored(values map[Criterion]float64) *Evaluation {
	e := New("agent", "", "q", "r", nil)
	for c, v := range values {
		e.SetScore(CriterionScore{Criterion: c, Score: v, Reason: "because"})
	}
	return e
}

func TestWeightedMean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scores  map[Criterion]float64
		weights map[Criterion]float64
		want    float64
	}{
		{
			name:    "equal weights",
			scores:  map[Criterion]float64{Relevance: 0.9, FactualAccuracy: 0.8, Completeness: 0.7},
			weights: map[Criterion]float64{Relevance: 1, FactualAccuracy: 1, Completeness: 1},
			want:    0.8,
		},
		{
			name:    "zero weights",
			scores:  map[Criterion]float64{Relevance: 0.9},
			weights: map[Criterion]float64{},
			want:    0,
		},
		{
			name:    "unweighted criterion ignored",
			scores:  map[Criterion]float64{Relevance: 0.6, Completeness: 0.0},
			weights: map[Criterion]float64{Relevance: 0.5},
			want:    0.6,
		},
		{
			name:    "default weights all ones",
			scores:  map[Criterion]float64{Relevance: 1, FactualAccuracy: 1, Completeness: 1, LogicalCoherence: 1, EthicalCompliance: 1},
			weights: DefaultSettings().Weights,
			want:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := scored(tt.scores)
			got := e.ComputeOverall(tt.weights)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ComputeOverall() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("ComputeOverall() = %v, want within [0,1]", got)
			}
		})
	}
}

func TestSetScore_Clamps(t *testing.T) {
	t.Parallel()

	e := scored(map[Criterion]float64{Relevance: 1.7, Completeness: -0.2})
	if got := e.Scores[Relevance].Score; got != 1 {
		t.Errorf("relevance = %v, want 1", got)
	}
	if got := e.Scores[Completeness].Score; got != 0 {
		t.Errorf("completeness = %v, want 0", got)
	}
}

func TestNaNScore(t *testing.T) {
	t.Parallel()

	if got := Clamp(math.NaN()); got != 0 {
		t.Errorf("Clamp(NaN) = %v, want 0", got)
	}

	raw := map[Criterion]CriterionScore{
		Relevance:       {Criterion: Relevance, Score: math.NaN()},
		FactualAccuracy: {Criterion: FactualAccuracy, Score: 1},
	}
	if got := WeightedMean(raw, map[Criterion]float64{Relevance: 1, FactualAccuracy: 1}); got != 0.5 {
		t.Errorf("WeightedMean() = %v, want 0.5", got)
	}

	settings := DefaultSettings()
	e := scored(map[Criterion]float64{Relevance: math.NaN()})
	overall := e.ComputeOverall(settings.Weights)
	if math.IsNaN(overall) || overall < 0 || overall > 1 {
		t.Errorf("ComputeOverall() = %v, want a score in [0,1]", overall)
	}
	if !e.NeedsImprovement(settings.Thresholds, settings.OverallThreshold) {
		t.Error("NeedsImprovement() = false, want true for a NaN score")
	}
}

func TestNeedsImprovement(t *testing.T) {
	t.Parallel()

	settings := DefaultSettings()

	tests := []struct {
		name    string
		overall float64
		scores  map[Criterion]float64
		want    bool
	}{
		{"overall below threshold", 0.70, map[Criterion]float64{Relevance: 0.9}, true},
		{"overall at threshold", 0.75, map[Criterion]float64{Relevance: 0.9}, false},
		{"criterion below threshold", 0.9, map[Criterion]float64{EthicalCompliance: 0.85}, true},
		{"all above", 0.9, map[Criterion]float64{Relevance: 0.95, FactualAccuracy: 0.9}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := scored(tt.scores)
			e.OverallScore = tt.overall
			if got := e.NeedsImprovement(settings.Thresholds, settings.OverallThreshold); got != tt.want {
				t.Errorf("NeedsImprovement() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	e := New("a", "r1", "q", "r", nil)
	e.SetScore(CriterionScore{Criterion: FactualAccuracy, Score: 0.5, Reason: "unsure"})
	e.SetScore(CriterionScore{Criterion: Relevance, Score: 0.9, Reason: "on topic"})

	want := "relevance: 0.90 - on topic\nfactual_accuracy: 0.50 - unsure"
	if got := e.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestNew_GeneratesResponseID(t *testing.T) {
	t.Parallel()

	if e := New("a", "", "q", "r", nil); e.ResponseID == "" {
		t.Error("New() should generate a response ID when none is given")
	}
	if e := New("a", "given", "q", "r", nil); e.ResponseID != "given" {
		t.Errorf("ResponseID = %s, want given", e.ResponseID)
	}
}

func TestRankSuggestions(t *testing.T) {
	t.Parallel()

	in := []Suggestion{
		{Criterion: Relevance, Suggestion: "a", Priority: 3},
		{Criterion: Completeness, Suggestion: "b", Priority: 0},
		{Criterion: FactualAccuracy, Suggestion: "c", Priority: 42},
		{Criterion: General, Suggestion: "d", Priority: -4},
	}

	got := RankSuggestions(in)
	wantOrder := []string{"c", "b", "a", "d"}
	wantPriority := []int{10, 5, 3, 1}
	for i := range got {
		if got[i].Suggestion != wantOrder[i] || got[i].Priority != wantPriority[i] {
			t.Errorf("RankSuggestions()[%d] = %s/%d, want %s/%d",
				i, got[i].Suggestion, got[i].Priority, wantOrder[i], wantPriority[i])
		}
	}
	if in[1].Priority != 0 {
		t.Error("RankSuggestions() should not modify its input")
	}
}

func TestGenericSuggestion(t *testing.T) {
	t.Parallel()

	s := GenericSuggestion()
	if s.Criterion != General || s.Priority != 5 || !strings.Contains(s.Suggestion, "evaluation feedback") {
		t.Errorf("GenericSuggestion() = %+v", s)
	}
}

func TestParseCriterion(t *testing.T) {
	t.Parallel()

	if c, err := ParseCriterion(" Relevance "); err != nil || c != Relevance {
		t.Errorf("ParseCriterion() = %v, %v, want relevance", c, err)
	}
	if _, err := ParseCriterion("style"); !errors.Is(err, ErrUnknownCriterion) {
		t.Errorf("ParseCriterion(style) error = %v, want ErrUnknownCriterion", err)
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()

	base := DefaultSettings()
	merged := base.Merge(Settings{
		Thresholds: map[Criterion]float64{Relevance: 0.5},
		Weights:    map[Criterion]float64{Relevance: 1},
	})

	if merged.Thresholds[Relevance] != 0.5 || merged.Weights[Relevance] != 1 {
		t.Errorf("Merge() = %+v, want relevance overridden", merged)
	}
	if merged.OverallThreshold != 0.75 {
		t.Errorf("OverallThreshold = %v, want 0.75", merged.OverallThreshold)
	}
	if base.Thresholds[Relevance] != 0.7 {
		t.Error("Merge() should not modify the receiver")
	}

	if err := merged.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	bad := base.Clone()
	bad.Thresholds[Relevance] = 1.5
	if err := bad.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("Validate() error = %v, want ErrInvalidThreshold", err)
	}
	bad = base.Clone()
	bad.Weights[Completeness] = -1
	if err := bad.Validate(); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("Validate() error = %v, want ErrInvalidWeight", err)
	}
}
