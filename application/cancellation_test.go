package application

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
)

// cancelling returns an action that cancels its own run and reports it.
func cancelling(cancel context.CancelFunc) action.Action {
	return action.Func(func(ctx context.Context, _ *agent.Agent, _ map[string]any) (any, error) {
		cancel()
		return nil, ctx.Err()
	})
}

type delivered struct {
	mu    sync.Mutex
	types []event.Type
}

func (d *delivered) Handle(_ context.Context, e event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.types = append(d.types, e.Type)
	return nil
}

func (d *delivered) has(t event.Type) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Contains(d.types, t)
}

func newEventBus() (*bus.EventBus, *memory.EventStore, *delivered) {
	store := memory.NewEventStore()
	b := bus.NewEventBus(bus.WithStore(store))
	sub := &delivered{}
	b.SubscribeAll(sub)
	return b, store, sub
}

func storedTypes(t *testing.T, store *memory.EventStore, agentID string) []event.Type {
	t.Helper()
	events, err := store.LoadEvents(context.Background(), agentID)
	if err != nil {
		t.Fatalf("LoadEvents() error = %v", err)
	}
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestExecuteAction_CancelledStillPublishesFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, store, sub := newEventBus()
	f := newFixture(t, map[string]action.Action{"search": cancelling(cancel)}, WithEvents(events))
	a := newAgent()

	record, err := f.services.Execution.ExecuteAction(ctx, a, "search", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ExecuteAction() error = %v, want context.Canceled", err)
	}
	if record.Status != agent.ActionFailed {
		t.Errorf("Status = %s, want failed", record.Status)
	}
	if !sub.has(event.TypeActionFailed) {
		t.Errorf("delivered = %v, want action.failed", sub.types)
	}
	if got := storedTypes(t, store, a.ID); !slices.Contains(got, event.TypeActionFailed) {
		t.Errorf("stored = %v, want action.failed", got)
	}
}

func TestExecutePlan_CancelledStepStillPublishesFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, store, sub := newEventBus()
	f := newFixture(t, map[string]action.Action{"search": cancelling(cancel)}, WithEvents(events))
	a := newAgent()

	p, err := f.services.Planning.CreatePlan(context.Background(), a, "task", nil)
	if err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}
	if _, err := f.services.Planning.ExecutePlan(ctx, a, p); !errors.Is(err, context.Canceled) {
		t.Fatalf("ExecutePlan() error = %v, want context.Canceled", err)
	}

	for _, want := range []event.Type{event.TypeActionFailed, event.TypePlanStepFailed, event.TypePlanFailed} {
		if !sub.has(want) {
			t.Errorf("delivered = %v, want %s", sub.types, want)
		}
		if got := storedTypes(t, store, a.ID); !slices.Contains(got, want) {
			t.Errorf("stored = %v, want %s", got, want)
		}
	}
}
