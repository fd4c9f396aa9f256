package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the tracer registered in the otel globals.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a span on tracer, or on the global tracer when nil.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Tracer()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Span attribute keys.
const (
	AttrAgentID    = attribute.Key("ragent.agent_id")
	AttrActionType = attribute.Key("ragent.action_type")
	AttrPlanID     = attribute.Key("ragent.plan_id")
	AttrStepCount  = attribute.Key("ragent.step_count")
	AttrCriterion  = attribute.Key("ragent.criterion")
	AttrScore      = attribute.Key("ragent.score")
)
