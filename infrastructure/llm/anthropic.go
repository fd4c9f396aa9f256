package llm

import (
	"context"
	"strings"
	"time"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// AnthropicConfig configures the Anthropic Messages API.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string // https://api.anthropic.com when empty
	Model   string
	Timeout time.Duration
}

// AnthropicProvider talks to /v1/messages.
type AnthropicProvider struct {
	endpoint
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	return &AnthropicProvider{newEndpoint("anthropic", cfg.BaseURL, "https://api.anthropic.com", cfg.Model, cfg.Timeout,
		map[string]string{"x-api-key": cfg.APIKey, "anthropic-version": anthropicVersion})}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// text returns the first text block.
func (r anthropicResponse) text() string {
	for _, b := range r.Content {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

// splitSystem lifts system messages out of the conversation; the Messages
// API takes them as a separate field.
func splitSystem(msgs []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			system = append(system, m.Content)
		} else {
			rest = append(rest, m)
		}
	}
	return strings.Join(system, "\n\n"), rest
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	system, msgs := splitSystem(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	var out anthropicResponse
	if err := p.post(ctx, "/v1/messages", anthropicRequest{
		Model:       p.modelFor(req),
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    msgs,
		Temperature: req.Temperature,
	}, &out); err != nil {
		return CompletionResponse{}, err
	}

	content := out.text()
	if content == "" {
		return CompletionResponse{}, ErrEmptyCompletion
	}
	in, gen := out.Usage.InputTokens, out.Usage.OutputTokens
	return CompletionResponse{
		ID:      out.ID,
		Model:   out.Model,
		Message: Message{Role: out.Role, Content: content},
		Usage:   Usage{PromptTokens: in, CompletionTokens: gen, TotalTokens: in + gen},
	}, nil
}
