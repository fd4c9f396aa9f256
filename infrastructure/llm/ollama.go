package llm

import (
	"context"
	"time"
)

// OllamaConfig configures a local Ollama server. No API key is needed.
type OllamaConfig struct {
	BaseURL string // http://localhost:11434 when empty
	Model   string
	Timeout time.Duration
}

// OllamaProvider talks to /api/chat with streaming disabled.
type OllamaProvider struct {
	endpoint
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	return &OllamaProvider{newEndpoint("ollama", cfg.BaseURL, "http://localhost:11434", cfg.Model, cfg.Timeout, nil)}
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var out ollamaChatResponse
	if err := p.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    p.modelFor(req),
		Messages: req.Messages,
		Options:  ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}, &out); err != nil {
		return CompletionResponse{}, err
	}
	if out.Message.Content == "" {
		return CompletionResponse{}, ErrEmptyCompletion
	}
	return CompletionResponse{
		Model:   out.Model,
		Message: out.Message,
		Usage: Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}
