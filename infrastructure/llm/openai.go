package llm

import (
	"context"
	"time"
)

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // https://api.openai.com when empty
	Model   string
	Timeout time.Duration
}

// OpenAIProvider talks to /v1/chat/completions. Any server speaking the same
// protocol works through BaseURL.
type OpenAIProvider struct {
	endpoint
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{newEndpoint("openai", cfg.BaseURL, "https://api.openai.com", cfg.Model, cfg.Timeout,
		map[string]string{"Authorization": "Bearer " + cfg.APIKey})}
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var out openAIChatResponse
	if err := p.post(ctx, "/v1/chat/completions", openAIChatRequest{
		Model:       p.modelFor(req),
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, &out); err != nil {
		return CompletionResponse{}, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return CompletionResponse{}, ErrEmptyCompletion
	}
	return CompletionResponse{ID: out.ID, Model: out.Model, Message: out.Choices[0].Message, Usage: out.Usage}, nil
}
