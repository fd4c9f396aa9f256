package plan

import (
	"context"
	"fmt"
	"strings"
)

// StepSpec describes a step proposed by a generator, before numbering.
type StepSpec struct {
	ActionType   string         `json:"action_type"`
	Description  string         `json:"description"`
	Parameters   map[string]any `json:"parameters"`
	Dependencies []int          `json:"dependencies"`
}

// GenerateRequest is the input to a plan generator.
type GenerateRequest struct {
	Task             string
	AvailableActions []string
	Constraints      []string
}

// Generator produces the step list for a task.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]StepSpec, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) ([]StepSpec, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) ([]StepSpec, error) {
	return f(ctx, req)
}

// ValidateSpecs rejects generator output the executor cannot run.
func ValidateSpecs(specs []StepSpec) error {
	if specs == nil {
		return fmt.Errorf("no steps returned")
	}
	for i, spec := range specs {
		if strings.TrimSpace(spec.ActionType) == "" {
			return fmt.Errorf("step %d has no action type", i+1)
		}
	}
	return nil
}

// FailurePolicy decides what happens to the rest of a plan after a step fails.
type FailurePolicy string

const (
	// FailureAbort stops the plan at the first failed step.
	FailureAbort FailurePolicy = "abort"

	// FailureContinue keeps running steps that do not depend on the failure.
	FailureContinue FailurePolicy = "continue"
)

// ParseFailurePolicy converts a name into a FailurePolicy. Empty means abort.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", FailureAbort:
		return FailureAbort, nil
	case FailureContinue:
		return FailureContinue, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFailurePolicy, name)
	}
}
