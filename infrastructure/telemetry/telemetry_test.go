package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/event"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	p, err := New(context.Background(), config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, span := StartSpan(context.Background(), p.Tracer(), "noop")
	if span.IsRecording() {
		t.Error("disabled provider should not record spans")
	}
	EndSpan(span, nil)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_UnknownExporter(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin"}, WithoutGlobal())
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("New() error = %v, want ErrUnknownExporter", err)
	}
}

func TestNew_StdoutExporter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := context.Background()
	p, err := New(ctx, config.TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1},
		WithWriter(&buf), WithService("ragent-test", "0.0.1"), WithoutGlobal())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, span := StartSpan(ctx, p.Tracer(), "plan.execute", AttrPlanID.String("p-1"))
	EndSpan(span, errors.New("step failed"))

	if err := p.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"plan.execute", "p-1", "step failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("exported span missing %q", want)
		}
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func mustEvent(t *testing.T, typ event.Type, payload any) event.Event {
	t.Helper()

	e, err := event.NewEvent("agent-1", typ, payload)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	return e
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func histogramCount(t *testing.T, reader *sdkmetric.ManualReader, name string) uint64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var count uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
				for _, dp := range h.DataPoints {
					count += dp.Count
				}
			}
		}
	}
	return count
}

func TestMetrics_Handle(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	events := []event.Event{
		mustEvent(t, event.TypeActionStarted, event.ActionStartedPayload{ActionType: "search"}),
		mustEvent(t, event.TypeActionCompleted, event.ActionCompletedPayload{ActionType: "search", DurationMS: 12}),
		mustEvent(t, event.TypeActionFailed, event.ActionFailedPayload{ActionType: "generate", Error: "x"}),
		mustEvent(t, event.TypePlanCreated, event.PlanCreatedPayload{PlanID: "p"}),
		mustEvent(t, event.TypePlanStepCompleted, event.PlanStepCompletedPayload{PlanID: "p", StepNumber: 1}),
		mustEvent(t, event.TypePlanStepFailed, event.PlanStepFailedPayload{PlanID: "p", StepNumber: 2}),
		mustEvent(t, event.TypePlanFailed, event.PlanFinishedPayload{PlanID: "p", Status: "failed"}),
		mustEvent(t, event.TypeResponseEvaluated, event.ResponseEvaluatedPayload{OverallScore: 0.6, NeedsImprovement: true}),
		mustEvent(t, event.TypeResponseImproved, event.ResponseImprovedPayload{ImprovementID: "i"}),
	}
	for _, e := range events {
		if err := m.Handle(ctx, e); err != nil {
			t.Fatalf("Handle(%s) error = %v", e.Type, err)
		}
	}

	tests := []struct {
		name string
		want int64
	}{
		{"ragent.events", int64(len(events))},
		{"ragent.actions", 2},
		{"ragent.plans", 2},
		{"ragent.plan.steps", 2},
		{"ragent.evaluations", 1},
		{"ragent.improvements", 1},
	}
	for _, tt := range tests {
		if got := sumOf(t, reader, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
	if got := histogramCount(t, reader, "ragent.evaluation.overall_score"); got != 1 {
		t.Errorf("overall_score count = %d, want 1", got)
	}
	if got := histogramCount(t, reader, "ragent.action.duration"); got != 2 {
		t.Errorf("action.duration count = %d, want 2", got)
	}
}

func TestMetrics_BadPayload(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	e := event.Event{ID: "e", AgentID: "a", Type: event.TypeActionCompleted, Payload: []byte(`"not an object"`)}

	if err := m.Handle(context.Background(), e); err == nil {
		t.Error("Handle() should report an undecodable payload")
	}
	if got := sumOf(t, reader, "ragent.events"); got != 1 {
		t.Errorf("ragent.events = %d, want 1", got)
	}
}
