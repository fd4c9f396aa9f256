// Package llm adapts chat-completion providers to the plan generator,
// scorer, improver and text generator collaborators.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by providers and adapters.
var (
	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrEmptyCompletion indicates the provider returned no content.
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrNoJSON indicates no JSON object could be located in a completion.
	ErrNoJSON = errors.New("no JSON object in completion")
)

// Purpose tags a completion with the collaborator that issued it.
type Purpose string

const (
	PurposePlan     Purpose = "plan"
	PurposeScore    Purpose = "score"
	PurposeImprove  Purpose = "improve"
	PurposeGenerate Purpose = "generate"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a chat completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Name returns the provider name for logging.
	Name() string
}

// CompletionRequest represents a chat completion request.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`

	// Purpose is not sent on the wire.
	Purpose Purpose `json:"-"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// CompletionResponse represents a chat completion response.
type CompletionResponse struct {
	ID      string  `json:"id"`
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Usage   Usage   `json:"usage"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError represents an API error reported by a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s error (status %d): %s: %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
