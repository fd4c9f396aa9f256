package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/resilience"
)

// Client issues completions through a provider, guarded by the resilience
// executor when one is configured.
type Client struct {
	provider    Provider
	executor    *resilience.Executor
	model       string
	temperature float64
	maxTokens   int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithExecutor routes completions through a resilience executor.
func WithExecutor(e *resilience.Executor) ClientOption {
	return func(c *Client) {
		c.executor = e
	}
}

// WithModel overrides the provider's default model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// NewClient creates a client for provider.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:    provider,
		temperature: 0.2,
		maxTokens:   1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	timeout := cfg.Timeout.Duration()
	switch strings.ToLower(cfg.Provider) {
	case "", "mock":
		return NewMockProvider(nil), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	case "ollama":
		return NewOllamaProvider(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// NewClientFromConfig builds the provider and client described by cfg.
func NewClientFromConfig(cfg config.LLMConfig, opts ...ClientOption) (*Client, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	base := []ClientOption{WithModel(cfg.Model)}
	if cfg.Temperature > 0 {
		base = append(base, WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		base = append(base, WithMaxTokens(cfg.MaxTokens))
	}
	return NewClient(provider, append(base, opts...)...), nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Complete sends a system and user prompt and returns the completion text.
func (c *Client) Complete(ctx context.Context, purpose Purpose, system, user string) (string, error) {
	req := CompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Purpose:     purpose,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	start := time.Now()
	call := func(ctx context.Context) (CompletionResponse, error) {
		return c.provider.Complete(ctx, req)
	}

	var (
		resp CompletionResponse
		err  error
	)
	if c.executor != nil {
		resp, err = resilience.Do(ctx, c.executor, "llm:"+c.provider.Name(), true, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		logging.Warn().
			Add(logging.Component("llm")).
			Add(logging.Backend(c.provider.Name())).
			Add(logging.Str("purpose", string(purpose))).
			Add(logging.ErrorField(err)).
			Msg("completion failed")
		return "", fmt.Errorf("%s completion failed: %w", c.provider.Name(), err)
	}

	logging.Debug().
		Add(logging.Component("llm")).
		Add(logging.Backend(c.provider.Name())).
		Add(logging.Str("purpose", string(purpose))).
		Add(logging.Duration(time.Since(start))).
		Add(logging.Count("total_tokens", resp.Usage.TotalTokens)).
		Msg("completion received")

	return resp.Message.Content, nil
}
