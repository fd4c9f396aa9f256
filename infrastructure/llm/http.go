package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/ragent"
)

const (
	defaultTimeout   = 120 * time.Second
	maxErrorBodySize = 512
)

// endpoint is the HTTP plumbing shared by the remote providers: one base URL,
// a default model and the auth headers sent with every call.
type endpoint struct {
	provider string
	baseURL  string
	model    string
	headers  map[string]string
	client   *http.Client
}

func newEndpoint(provider, baseURL, fallbackURL, model string, timeout time.Duration, headers map[string]string) endpoint {
	if baseURL == "" {
		baseURL = fallbackURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return endpoint{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (e endpoint) Name() string { return e.provider }

// modelFor prefers the model named on the request.
func (e endpoint) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return e.model
}

// post sends body as JSON to path and decodes a 200 response into out.
func (e endpoint) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", e.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", e.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ragent.UserAgent())
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", e.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", e.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return providerError(e.provider, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", e.provider, err)
	}
	return nil
}

// providerError builds an APIError from a non-200 body, truncating payloads
// that are not a recognizable error envelope.
func providerError(provider string, status int, body []byte) *APIError {
	apiErr := &APIError{Provider: provider, StatusCode: status}

	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Type, apiErr.Message = envelope.Error.Type, envelope.Error.Message
		return apiErr
	}

	msg := string(body)
	if len(msg) > maxErrorBodySize {
		msg = msg[:maxErrorBodySize] + "..."
	}
	apiErr.Message = msg
	return apiErr
}
