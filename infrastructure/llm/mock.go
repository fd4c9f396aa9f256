package llm

import (
	"context"
	"sync"
)

// Responder produces a completion for a request.
type Responder func(req CompletionRequest) (string, error)

// MockProvider returns scripted completions for tests and offline runs.
// Queued responses are served first, in order; afterwards the responder
// answers.
type MockProvider struct {
	mu        sync.Mutex
	queue     []mockReply
	responder Responder
	requests  []CompletionRequest
}

type mockReply struct {
	content string
	err     error
}

// NewMockProvider creates a mock provider. A nil responder uses
// DefaultResponder.
func NewMockProvider(responder Responder) *MockProvider {
	if responder == nil {
		responder = DefaultResponder
	}
	return &MockProvider{responder: responder}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// Enqueue appends a completion to serve before the responder is consulted.
func (p *MockProvider) Enqueue(content string) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, mockReply{content: content})
	return p
}

// EnqueueError appends a failure to serve before the responder is consulted.
func (p *MockProvider) EnqueueError(err error) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, mockReply{err: err})
	return p
}

// Requests returns the requests received so far.
func (p *MockProvider) Requests() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CompletionRequest(nil), p.requests...)
}

// Complete implements the Provider interface.
func (p *MockProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	var reply mockReply
	if len(p.queue) > 0 {
		reply = p.queue[0]
		p.queue = p.queue[1:]
	} else {
		reply.content, reply.err = p.responder(req)
	}
	p.mu.Unlock()

	if reply.err != nil {
		return CompletionResponse{}, reply.err
	}
	return CompletionResponse{
		Model:   "mock",
		Message: Message{Role: "assistant", Content: reply.content},
	}, nil
}

// DefaultResponder answers each purpose with a well-formed canned reply.
func DefaultResponder(req CompletionRequest) (string, error) {
	switch req.Purpose {
	case PurposePlan:
		return "```json\n" + `{"steps": [
  {"step_number": 1, "action_type": "search", "description": "Find relevant documents", "parameters": {"query": "` + jsonEscape(lastUserLine(req, "Task: ")) + `"}, "dependencies": []},
  {"step_number": 2, "action_type": "generate", "description": "Answer from the documents", "parameters": {"query": "` + jsonEscape(lastUserLine(req, "Task: ")) + `"}, "dependencies": [1]}
]}` + "\n```", nil
	case PurposeScore:
		return "```json\n{\"score\": 0.85, \"reason\": \"mock evaluation\"}\n```", nil
	case PurposeImprove:
		return "```json\n{\"suggestions\": [{\"criterion\": \"completeness\", \"suggestion\": \"Add supporting detail\", \"priority\": 6}]}\n```\n" +
			lastUserLine(req, "Original Response: "), nil
	default:
		return "Based on the available context: " + lastUserLine(req, "Question: "), nil
	}
}
