package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/event"
)

type createThing struct{ Name string }
type deleteThing struct{ ID string }

type thingResult struct{ ID string }

func TestCommandBus_Dispatch(t *testing.T) {
	t.Parallel()

	b := NewCommandBus()
	err := RegisterCommand(b, func(_ context.Context, c createThing) (thingResult, error) {
		return thingResult{ID: "id-" + c.Name}, nil
	})
	if err != nil {
		t.Fatalf("RegisterCommand() error = %v", err)
	}

	got, err := Send[thingResult](context.Background(), b, createThing{Name: "a"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.ID != "id-a" {
		t.Errorf("Send() = %v, want id-a", got.ID)
	}
	if !b.IsRegistered(createThing{}) {
		t.Error("IsRegistered() = false, want true")
	}
}

func TestCommandBus_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	b := NewCommandBus()
	fn := func(context.Context, createThing) (thingResult, error) { return thingResult{}, nil }

	if err := RegisterCommand(b, fn); err != nil {
		t.Fatalf("first RegisterCommand() error = %v", err)
	}
	if err := RegisterCommand(b, fn); !errors.Is(err, ErrHandlerExists) {
		t.Errorf("second RegisterCommand() error = %v, want ErrHandlerExists", err)
	}
}

func TestCommandBus_Unrouted(t *testing.T) {
	t.Parallel()

	b := NewCommandBus()
	_, err := b.Dispatch(context.Background(), deleteThing{ID: "x"})

	var routing *RoutingError
	if !errors.As(err, &routing) {
		t.Fatalf("Dispatch() error = %v, want *RoutingError", err)
	}
	if routing.Bus != "command" || routing.RequestType != "bus.deleteThing" {
		t.Errorf("RoutingError = %+v", routing)
	}
	if !errors.Is(err, ErrNoHandler) {
		t.Error("errors.Is(err, ErrNoHandler) = false, want true")
	}
}

func TestCommandBus_ResultWithError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	b := NewCommandBus()
	_ = RegisterCommand(b, func(context.Context, createThing) (thingResult, error) {
		return thingResult{ID: "partial"}, boom
	})

	got, err := Send[thingResult](context.Background(), b, createThing{})
	if !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want boom", err)
	}
	if got.ID != "partial" {
		t.Errorf("Send() result = %v, want partial result kept", got)
	}
}

func TestCommandBus_NilHandler(t *testing.T) {
	t.Parallel()

	if err := NewCommandBus().Register(createThing{}, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("Register(nil) error = %v, want ErrNilHandler", err)
	}
}

func TestQueryBus(t *testing.T) {
	t.Parallel()

	b := NewQueryBus()
	_ = RegisterQuery(b, func(_ context.Context, q deleteThing) (*thingResult, error) {
		if q.ID == "missing" {
			return nil, nil
		}
		return &thingResult{ID: q.ID}, nil
	})

	got, err := Ask[*thingResult](context.Background(), b, deleteThing{ID: "x"})
	if err != nil || got == nil || got.ID != "x" {
		t.Errorf("Ask() = %v, %v, want x", got, err)
	}

	got, err = Ask[*thingResult](context.Background(), b, deleteThing{ID: "missing"})
	if err != nil || got != nil {
		t.Errorf("Ask(missing) = %v, %v, want nil view", got, err)
	}

	if _, err := Ask[string](context.Background(), b, deleteThing{ID: "x"}); !errors.Is(err, ErrUnexpectedResult) {
		t.Errorf("Ask[string]() error = %v, want ErrUnexpectedResult", err)
	}
	if _, err := b.Dispatch(context.Background(), createThing{}); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Dispatch(unregistered) error = %v, want ErrNoHandler", err)
	}
}

type recordingStore struct {
	appended []event.Event
	err      error
}

func (s *recordingStore) Append(_ context.Context, events ...event.Event) error {
	s.appended = append(s.appended, events...)
	return s.err
}

func (s *recordingStore) LoadEvents(context.Context, string) ([]event.Event, error) {
	return s.appended, nil
}

func (s *recordingStore) LoadEventsFrom(context.Context, string, uint64) ([]event.Event, error) {
	return s.appended, nil
}

func TestEventBus_DeliveryOrder(t *testing.T) {
	t.Parallel()

	b := NewEventBus()
	var order []string
	record := func(name string) event.Subscriber {
		return event.SubscriberFunc(func(context.Context, event.Event) error {
			order = append(order, name)
			return nil
		})
	}

	b.Subscribe(event.TypeAgentCreated, record("first"))
	b.SubscribeAll(record("wildcard"))
	b.Subscribe(event.TypeAgentCreated, record("second"))
	b.Subscribe(event.TypePlanCreated, record("other"))

	e, _ := event.NewEvent("a", event.TypeAgentCreated, nil)
	if err := b.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []string{"first", "wildcard", "second"}
	if len(order) != len(want) {
		t.Fatalf("delivered to %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestEventBus_LogAndContinue(t *testing.T) {
	t.Parallel()

	b := NewEventBus()
	delivered := 0
	b.SubscribeAll(event.SubscriberFunc(func(context.Context, event.Event) error {
		return errors.New("subscriber failed")
	}))
	b.SubscribeAll(event.SubscriberFunc(func(context.Context, event.Event) error {
		panic("subscriber panicked")
	}))
	b.SubscribeAll(event.SubscriberFunc(func(context.Context, event.Event) error {
		delivered++
		return nil
	}))

	e1, _ := event.NewEvent("a", event.TypeActionStarted, nil)
	e2, _ := event.NewEvent("a", event.TypeActionCompleted, nil)
	if err := b.Publish(context.Background(), e1, e2); err != nil {
		t.Fatalf("Publish() error = %v, want nil", err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
}

func TestEventBus_StoreAppend(t *testing.T) {
	t.Parallel()

	store := &recordingStore{err: errors.New("disk full")}
	b := NewEventBus(WithStore(store))
	delivered := false
	b.SubscribeAll(event.SubscriberFunc(func(context.Context, event.Event) error {
		delivered = true
		return nil
	}))

	e, _ := event.NewEvent("a", event.TypePlanCreated, nil)
	if err := b.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(store.appended) != 1 {
		t.Errorf("appended = %d, want 1", len(store.appended))
	}
	if !delivered {
		t.Error("store failure should not stop delivery")
	}
}

func TestEventBus_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := event.NewEvent("a", event.TypePlanCreated, nil)
	if err := NewEventBus().Publish(ctx, e); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
}
