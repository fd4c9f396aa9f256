package action

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

func TestFunc_Execute(t *testing.T) {
	t.Parallel()

	var got map[string]any
	f := Func(func(_ context.Context, _ *agent.Agent, params map[string]any) (any, error) {
		got = params
		return "ok", nil
	})

	result, err := f.Execute(context.Background(), agent.New("a", "", "c", nil), map[string]any{"q": "x"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("Execute() = %v, want ok", result)
	}
	if got["q"] != "x" {
		t.Errorf("params[q] = %v, want x", got["q"])
	}
}

func TestUnknownActionError(t *testing.T) {
	t.Parallel()

	var err error = &UnknownActionError{ActionType: "frobnicate"}

	if !errors.Is(err, ErrUnknownAction) {
		t.Error("errors.Is(err, ErrUnknownAction) = false, want true")
	}
	if err.Error() != "unknown action type: frobnicate" {
		t.Errorf("Error() = %q, want %q", err.Error(), "unknown action type: frobnicate")
	}

	var target *UnknownActionError
	if !errors.As(err, &target) || target.ActionType != "frobnicate" {
		t.Error("errors.As should expose the action type")
	}
}
