package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/plan"
)

const testConfig = `
name: cli-test
version: "1"
logging:
  level: error
resilience:
  retry:
    enabled: false
retrieval:
  backend: memory
  documents:
    - id: go
      title: Go
      content: Go is a compiled language with goroutines and channels
    - id: rust
      title: Rust
      content: Rust is a systems language focused on memory safety
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragent.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

func runJSON(t *testing.T, out any, args ...string) {
	t.Helper()
	stdout, err := run(t, append([]string{"--json"}, args...)...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		t.Fatalf("%v output is not JSON: %v\n%s", args, err, stdout)
	}
}

func TestApp_Version(t *testing.T) {
	output, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(output, "ragent version") {
		t.Errorf("version output missing 'ragent version', got: %s", output)
	}
}

func TestApp_Help(t *testing.T) {
	output, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"retrieval-augmented", "query", "plan", "evaluate", "validate", "agent"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q, got: %s", want, output)
		}
	}
}

func TestApp_Validate(t *testing.T) {
	path := writeConfig(t, testConfig)

	output, err := run(t, "validate", "-c", path)
	if err != nil {
		t.Fatalf("validate command failed: %v", err)
	}
	if !strings.Contains(output, "valid") {
		t.Errorf("validate output missing 'valid', got: %s", output)
	}
	if !strings.Contains(output, "2 documents") {
		t.Errorf("validate output missing document count, got: %s", output)
	}
}

func TestApp_ValidateJSON(t *testing.T) {
	path := writeConfig(t, testConfig)

	var got map[string]any
	runJSON(t, &got, "validate", "-c", path)
	if got["valid"] != true || got["name"] != "cli-test" {
		t.Errorf("validate --json = %v", got)
	}
}

func TestApp_ValidateInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "name: x\nversion: \"1\"\nstorage:\n  backend: cassandra\n"},
		{"threshold out of range", "name: x\nversion: \"1\"\nevaluation:\n  thresholds:\n    relevance: 2\n"},
		{"malformed yaml", "name: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := run(t, "validate", "-c", path); err == nil {
				t.Error("validate command should fail for invalid config")
			}
		})
	}
}

func TestApp_ValidateRequiresPath(t *testing.T) {
	if _, err := run(t, "validate"); err == nil {
		t.Error("validate without -c should fail")
	}
}

func TestApp_Actions(t *testing.T) {
	path := writeConfig(t, testConfig)

	output, err := run(t, "actions", "-c", path)
	if err != nil {
		t.Fatalf("actions command failed: %v", err)
	}
	for _, want := range []string{"search", "generate", "evaluate", "improve", "remember", "recall"} {
		if !strings.Contains(output, want) {
			t.Errorf("actions output missing %q, got: %s", want, output)
		}
	}
}

func TestApp_Query(t *testing.T) {
	path := writeConfig(t, testConfig)

	var answer application.ProcessAgentQueryResult
	runJSON(t, &answer, "query", "-c", path, "What", "are", "goroutines?")

	if answer.AgentID == "" {
		t.Error("query should run on a throwaway agent")
	}
	if answer.Query != "What are goroutines?" {
		t.Errorf("Query = %q, want the joined arguments", answer.Query)
	}
	if answer.Response == "" {
		t.Error("Response should not be empty")
	}
	if len(answer.Sources) == 0 || !strings.Contains(answer.Sources[0], "goroutines") {
		t.Errorf("Sources = %v, want the Go document", answer.Sources)
	}
}

func TestApp_QueryPlanning(t *testing.T) {
	path := writeConfig(t, testConfig)

	var answer application.ProcessAgentQueryResult
	runJSON(t, &answer, "query", "-c", path, "--planning", "Compare Go and Rust")

	if answer.Plan == nil || len(answer.Plan.Steps) != 2 {
		t.Fatalf("Plan = %+v, want two steps", answer.Plan)
	}
	for _, s := range answer.Plan.Steps {
		if s.Status != plan.StepCompleted {
			t.Errorf("step %d status = %s, want completed", s.StepNumber, s.Status)
		}
	}
}

func TestApp_QueryText(t *testing.T) {
	path := writeConfig(t, testConfig)

	output, err := run(t, "query", "-c", path, "goroutines")
	if err != nil {
		t.Fatalf("query command failed: %v", err)
	}
	if !strings.Contains(output, "Sources:") {
		t.Errorf("query output missing sources, got: %s", output)
	}
}

func TestApp_AgentCreate(t *testing.T) {
	path := writeConfig(t, testConfig)

	var created application.CreateAgentResult
	runJSON(t, &created, "agent", "create", "-c", path, "--name", "helper", "--conversation", "conv-1")

	if created.AgentID == "" || created.Name != "helper" || created.ConversationID != "conv-1" {
		t.Errorf("agent create = %+v", created)
	}
}

func TestApp_AgentCreateRequiresName(t *testing.T) {
	if _, err := run(t, "agent", "create"); err == nil {
		t.Error("agent create without --name should fail")
	}
}

func TestApp_AgentNotFound(t *testing.T) {
	path := writeConfig(t, testConfig)

	tests := []struct {
		name string
		args []string
	}{
		{"show", []string{"agent", "show", "-c", path, "missing"}},
		{"delete", []string{"agent", "delete", "-c", path, "missing"}},
		{"exec", []string{"agent", "exec", "-c", path, "missing", "search", "--param", "query=go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if !errors.Is(err, agent.ErrAgentNotFound) {
				t.Errorf("%s error = %v, want ErrAgentNotFound", tt.name, err)
			}
		})
	}
}

func TestApp_AgentListEmpty(t *testing.T) {
	path := writeConfig(t, testConfig)

	output, err := run(t, "agent", "list", "-c", path)
	if err != nil {
		t.Fatalf("agent list failed: %v", err)
	}
	if !strings.Contains(output, "No agents") {
		t.Errorf("agent list output = %s, want 'No agents'", output)
	}
}

func TestApp_EvaluateImprove(t *testing.T) {
	path := writeConfig(t, testConfig)

	var out evaluateOutput
	runJSON(t, &out, "evaluate", "-c", path, "--improve", "-q", "What is Go?", "--context", "Go is a language", "Go is a language")

	if out.Evaluation.EvaluationID == "" {
		t.Fatal("evaluation should be persisted with an id")
	}
	if math.Abs(out.Evaluation.OverallScore-0.85) > 1e-9 {
		t.Errorf("OverallScore = %v, want 0.85", out.Evaluation.OverallScore)
	}
	// 0.85 is below the ethical compliance threshold of 0.9.
	if !out.Evaluation.NeedsImprovement {
		t.Error("NeedsImprovement = false, want true")
	}
	if out.Improvement == nil || out.Improvement.EvaluationID != out.Evaluation.EvaluationID {
		t.Errorf("Improvement = %+v, want one for the evaluation", out.Improvement)
	}
}

func TestApp_EvaluationNotFound(t *testing.T) {
	path := writeConfig(t, testConfig)

	if _, err := run(t, "evaluation", "show", "-c", path, "missing"); err == nil {
		t.Error("evaluation show should fail for an unknown id")
	}
	if _, err := run(t, "improvement", "show", "-c", path, "--evaluation", "missing"); err == nil {
		t.Error("improvement show should fail for an unknown evaluation")
	}
}
