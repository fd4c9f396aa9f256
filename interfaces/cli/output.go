package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	api "github.com/felixgeelhaar/ragent/interfaces/api"
)

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatValue renders an action result: strings as is, everything else as JSON.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// resolveAgent returns agentID, or creates a throwaway agent when it is empty.
func resolveAgent(ctx context.Context, rt *api.Runtime, agentID string) (string, error) {
	if agentID != "" {
		return agentID, nil
	}
	created, err := bus.Send[application.CreateAgentResult](ctx, rt.Commands, application.CreateAgent{
		Name:        "cli",
		Description: "Created for a single command",
	})
	if err != nil {
		return "", err
	}
	return created.AgentID, nil
}
