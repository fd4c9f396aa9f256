package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/ragent/domain/event"
)

// EventStore checks per-agent sequencing, range reads and filtering.
func EventStore(t *testing.T, store interface {
	event.Store
	event.Querier
}) {
	t.Helper()
	ctx := context.Background()

	a := "agent-a-" + uuid.NewString()
	b := "agent-b-" + uuid.NewString()

	e1, _ := event.NewEvent(a, event.TypeActionStarted, map[string]any{"action_type": "search"})
	e2, _ := event.NewEvent(a, event.TypeActionCompleted, nil)
	e3, _ := event.NewEvent(b, event.TypeAgentCreated, nil)
	e4, _ := event.NewEvent(a, event.TypeActionStarted, nil)

	if err := store.Append(ctx, e1, e2, e3); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, e4); err != nil {
		t.Fatalf("Append() second batch error = %v", err)
	}

	events, err := store.LoadEvents(ctx, a)
	if err != nil {
		t.Fatalf("LoadEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(LoadEvents(a)) = %d, want 3", len(events))
	}
	for i, e := range events {
		if e.Sequence != uint64(i+1) {
			t.Errorf("events[%d].Sequence = %d, want %d", i, e.Sequence, i+1)
		}
		if e.ID == "" {
			t.Errorf("events[%d] has no ID", i)
		}
	}
	if string(events[0].Payload) == "" {
		t.Error("payload should survive storage")
	}

	from, _ := store.LoadEventsFrom(ctx, a, 2)
	if len(from) != 2 || from[0].Type != event.TypeActionCompleted {
		t.Errorf("LoadEventsFrom(a, 2) = %+v", from)
	}

	other, _ := store.LoadEvents(ctx, b)
	if len(other) != 1 || other[0].Sequence != 1 {
		t.Errorf("LoadEvents(b) = %+v, want independent sequence", other)
	}

	started, err := store.Query(ctx, a, event.QueryOptions{Types: []event.Type{event.TypeActionStarted}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(started) != 2 {
		t.Errorf("Query(started) = %d events, want 2", len(started))
	}
	paged, _ := store.Query(ctx, a, event.QueryOptions{Offset: 1, Limit: 1})
	if len(paged) != 1 || paged[0].Sequence != 2 {
		t.Errorf("Query(offset 1, limit 1) = %+v, want sequence 2", paged)
	}

	agents, err := store.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents() error = %v", err)
	}
	seen := map[string]bool{}
	for _, id := range agents {
		seen[id] = true
	}
	if !seen[a] || !seen[b] {
		t.Errorf("ListAgents() = %v, want both %s and %s", agents, a, b)
	}

	bad := event.Event{AgentID: a}
	if err := store.Append(ctx, bad); !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append(untyped) error = %v, want ErrInvalidEvent", err)
	}
	if n, _ := store.LoadEvents(ctx, a); len(n) != 3 {
		t.Errorf("rejected append changed history to %d events", len(n))
	}
}
