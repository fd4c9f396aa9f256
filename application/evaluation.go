package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/telemetry"
)

// fallbackScore is recorded for a criterion whose scorer failed.
const fallbackScore = 0.5

// EvaluationService scores responses and revises the ones that fall short.
type EvaluationService struct {
	scorer   evaluation.Scorer
	scorers  map[evaluation.Criterion]evaluation.Scorer
	improver evaluation.Improver
	events   event.Publisher
	tracer   trace.Tracer

	mu       sync.RWMutex
	settings evaluation.Settings
}

// NewEvaluationService creates an evaluation service.
func NewEvaluationService(config Config) (*EvaluationService, error) {
	if config.Scorer == nil {
		return nil, fmt.Errorf("%w: scorer", ErrMissingDependency)
	}
	if config.Improver == nil {
		return nil, fmt.Errorf("%w: improver", ErrMissingDependency)
	}

	settings := config.Settings
	if settings.Thresholds == nil && settings.Weights == nil && settings.OverallThreshold == 0 {
		settings = evaluation.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &EvaluationService{
		scorer:   config.Scorer,
		scorers:  make(map[evaluation.Criterion]evaluation.Scorer, len(config.Scorers)),
		improver: config.Improver,
		events:   config.Events,
		tracer:   config.Tracer,
		settings: settings.Clone(),
	}
	for c, scorer := range config.Scorers {
		s.scorers[c] = scorer
	}
	if s.events == nil {
		s.events = event.NopPublisher{}
	}
	return s, nil
}

// Settings returns a copy of the current thresholds and weights.
func (s *EvaluationService) Settings() evaluation.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// ApplySettings replaces the thresholds and weights.
func (s *EvaluationService) ApplySettings(settings evaluation.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings.Clone()
	s.mu.Unlock()

	logging.Info().
		Add(logging.Component("evaluation")).
		Add(logging.Score(settings.OverallThreshold)).
		Msg("evaluation settings applied")
	return nil
}

// SetThreshold sets the minimum acceptable score for one criterion.
func (s *EvaluationService) SetThreshold(criterion evaluation.Criterion, threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: %s=%v", evaluation.ErrInvalidThreshold, criterion, threshold)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Thresholds[criterion] = threshold
	return nil
}

// SetWeight sets how much one criterion counts toward the overall score.
func (s *EvaluationService) SetWeight(criterion evaluation.Criterion, weight float64) error {
	if weight < 0 {
		return fmt.Errorf("%w: %s=%v", evaluation.ErrInvalidWeight, criterion, weight)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Weights[criterion] = weight
	return nil
}

// SetOverallThreshold sets the minimum acceptable overall score.
func (s *EvaluationService) SetOverallThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: overall=%v", evaluation.ErrInvalidThreshold, threshold)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.OverallThreshold = threshold
	return nil
}

// criteria returns the criteria with a weight or threshold, in canonical order.
func criteria(settings evaluation.Settings) []evaluation.Criterion {
	var out []evaluation.Criterion
	for _, c := range evaluation.Criteria() {
		_, weighted := settings.Weights[c]
		_, thresholded := settings.Thresholds[c]
		if weighted || thresholded {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return evaluation.Criteria()
	}
	return out
}

func (s *EvaluationService) scorerFor(c evaluation.Criterion) evaluation.Scorer {
	if scorer, ok := s.scorers[c]; ok && scorer != nil {
		return scorer
	}
	return s.scorer
}

// EvaluateResponse scores a response on every configured criterion and
// computes the weighted overall score. A scorer failure records a neutral
// score with the failure as its reason; only context errors abort.
func (s *EvaluationService) EvaluateResponse(ctx context.Context, a *agent.Agent, query, response string, snippets []string, responseID string) (_ *evaluation.Evaluation, err error) {
	if responseID == "" {
		responseID = uuid.NewString()
	}

	ctx, span := telemetry.StartSpan(ctx, s.tracer, "ragent.evaluate_response",
		telemetry.AttrAgentID.String(a.ID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	settings := s.Settings()
	e := evaluation.New(a.ID, responseID, query, response, snippets)

	for _, c := range criteria(settings) {
		result, err := s.scorerFor(c).Score(ctx, evaluation.ScoreRequest{
			Criterion: c,
			Query:     query,
			Response:  response,
			Context:   e.Context,
		})
		if err != nil {
			if isContextError(err) {
				return nil, err
			}
			logging.Warn().
				Add(logging.Component("evaluation")).
				Add(logging.AgentID(a.ID)).
				Add(logging.Criterion(string(c))).
				Add(logging.ErrorField(err)).
				Msg("scorer failed, using neutral score")
			result = evaluation.ScoreResult{
				Score:  fallbackScore,
				Reason: "Failed to parse evaluation: " + err.Error(),
			}
		}
		e.SetScore(evaluation.CriterionScore{Criterion: c, Score: result.Score, Reason: result.Reason})
	}

	e.ComputeOverall(settings.Weights)
	needsImprovement := e.NeedsImprovement(settings.Thresholds, settings.OverallThreshold)

	a.SetMemory(agent.MemoryLastEvaluation, e.ID)
	publish(ctx, s.events, a.ID, event.TypeResponseEvaluated, event.ResponseEvaluatedPayload{
		AgentID:          a.ID,
		EvaluationID:     e.ID,
		ResponseID:       responseID,
		OverallScore:     e.OverallScore,
		NeedsImprovement: needsImprovement,
	})

	logging.Info().
		Add(logging.Component("evaluation")).
		Add(logging.AgentID(a.ID)).
		Add(logging.EvaluationID(e.ID)).
		Add(logging.Score(e.OverallScore)).
		Add(logging.Flag("needs_improvement", needsImprovement)).
		Msg("response evaluated")

	return e, nil
}

// NeedsImprovement judges an evaluation against the current settings.
func (s *EvaluationService) NeedsImprovement(e *evaluation.Evaluation) bool {
	settings := s.Settings()
	return e.NeedsImprovement(settings.Thresholds, settings.OverallThreshold)
}

// ImproveResponse asks the improver to revise the evaluated response. An
// improver failure substitutes one generic suggestion; the revised text falls
// back to whatever the improver produced, then to the original response.
func (s *EvaluationService) ImproveResponse(ctx context.Context, a *agent.Agent, e *evaluation.Evaluation) (_ *evaluation.Improvement, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "ragent.improve_response",
		telemetry.AttrAgentID.String(a.ID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	result, err := s.improver.Improve(ctx, evaluation.ImproveRequest{
		Query:             e.Query,
		Response:          e.Response,
		Context:           e.Context,
		EvaluationSummary: e.Summary(),
	})
	if err != nil {
		if isContextError(err) {
			return nil, err
		}
		logging.Warn().
			Add(logging.Component("evaluation")).
			Add(logging.EvaluationID(e.ID)).
			Add(logging.ErrorField(err)).
			Msg("improver failed, using generic suggestion")
		result.Suggestions = []evaluation.Suggestion{evaluation.GenericSuggestion()}
		err = nil
	}

	revised := strings.TrimSpace(result.ImprovedResponse)
	if revised == "" {
		revised = e.Response
	}
	improvement := evaluation.NewImprovement(e.ID, e.Response, revised, result.Suggestions)

	a.SetMemory(agent.MemoryLastImprovement, improvement.ID)
	publish(ctx, s.events, a.ID, event.TypeResponseImproved, event.ResponseImprovedPayload{
		AgentID:          a.ID,
		EvaluationID:     e.ID,
		ImprovementID:    improvement.ID,
		OriginalResponse: improvement.OriginalResponse,
		ImprovedResponse: improvement.ImprovedResponse,
	})

	logging.Info().
		Add(logging.Component("evaluation")).
		Add(logging.AgentID(a.ID)).
		Add(logging.EvaluationID(e.ID)).
		Add(logging.Count("suggestions", len(improvement.Suggestions))).
		Msg("response improved")

	return improvement, nil
}

// EvaluateAndImproveResult is the outcome of EvaluateAndImprove.
type EvaluateAndImproveResult struct {
	Evaluation  *evaluation.Evaluation  `json:"evaluation"`
	Improvement *evaluation.Improvement `json:"improvement,omitempty"`
	Response    string                  `json:"response"`
	Improved    bool                    `json:"improved"`
}

// EvaluateAndImprove evaluates a response and improves it when the
// evaluation falls short of the current settings.
func (s *EvaluationService) EvaluateAndImprove(ctx context.Context, a *agent.Agent, query, response string, snippets []string) (EvaluateAndImproveResult, error) {
	e, err := s.EvaluateResponse(ctx, a, query, response, snippets, "")
	if err != nil {
		return EvaluateAndImproveResult{}, err
	}
	out := EvaluateAndImproveResult{Evaluation: e, Response: response}
	if !s.NeedsImprovement(e) {
		return out, nil
	}

	improvement, err := s.ImproveResponse(ctx, a, e)
	if err != nil {
		return out, err
	}
	out.Improvement = improvement
	out.Response = improvement.ImprovedResponse
	out.Improved = true
	return out, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
