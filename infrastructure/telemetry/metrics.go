package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/ragent/domain/event"
)

// Metrics derives counters and histograms from domain events. It is an
// event subscriber, so services stay unaware of it.
type Metrics struct {
	events       metric.Int64Counter
	actions      metric.Int64Counter
	actionTime   metric.Float64Histogram
	plans        metric.Int64Counter
	planSteps    metric.Int64Counter
	evaluations  metric.Int64Counter
	overallScore metric.Float64Histogram
	improvements metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider, or on mp
// when given.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)

	m := &Metrics{}
	var errs []error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}
	histogram := func(name, desc, unit string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return h
	}

	m.events = counter("ragent.events", "Domain events published", "{event}")
	m.actions = counter("ragent.actions", "Actions finished, by type and status", "{action}")
	m.actionTime = histogram("ragent.action.duration", "Action execution time", "ms")
	m.plans = counter("ragent.plans", "Plans created or finished, by status", "{plan}")
	m.planSteps = counter("ragent.plan.steps", "Plan steps finished, by status", "{step}")
	m.evaluations = counter("ragent.evaluations", "Responses evaluated", "{evaluation}")
	m.overallScore = histogram("ragent.evaluation.overall_score", "Weighted overall evaluation score", "1")
	m.improvements = counter("ragent.improvements", "Responses improved", "{improvement}")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var _ event.Subscriber = (*Metrics)(nil)

// Handle records the event. Undecodable payloads only count as events.
func (m *Metrics) Handle(ctx context.Context, e event.Event) error {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(e.Type))))

	switch e.Type {
	case event.TypeActionCompleted:
		var p event.ActionCompletedPayload
		if err := e.UnmarshalPayload(&p); err != nil {
			return err
		}
		m.recordAction(ctx, p.ActionType, "completed", p.DurationMS)

	case event.TypeActionFailed:
		var p event.ActionFailedPayload
		if err := e.UnmarshalPayload(&p); err != nil {
			return err
		}
		m.recordAction(ctx, p.ActionType, "failed", p.DurationMS)

	case event.TypePlanCreated:
		m.plans.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "created")))

	case event.TypePlanCompleted, event.TypePlanFailed:
		var p event.PlanFinishedPayload
		if err := e.UnmarshalPayload(&p); err != nil {
			return err
		}
		m.plans.Add(ctx, 1, metric.WithAttributes(attribute.String("status", p.Status)))

	case event.TypePlanStepCompleted:
		m.planSteps.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "completed")))

	case event.TypePlanStepFailed:
		m.planSteps.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))

	case event.TypeResponseEvaluated:
		var p event.ResponseEvaluatedPayload
		if err := e.UnmarshalPayload(&p); err != nil {
			return err
		}
		attrs := metric.WithAttributes(attribute.Bool("needs_improvement", p.NeedsImprovement))
		m.evaluations.Add(ctx, 1, attrs)
		m.overallScore.Record(ctx, p.OverallScore, attrs)

	case event.TypeResponseImproved:
		m.improvements.Add(ctx, 1)
	}
	return nil
}

func (m *Metrics) recordAction(ctx context.Context, actionType, status string, durationMS int64) {
	attrs := metric.WithAttributes(
		attribute.String("action_type", actionType),
		attribute.String("status", status),
	)
	m.actions.Add(ctx, 1, attrs)
	m.actionTime.Record(ctx, float64(durationMS), attrs)
}
