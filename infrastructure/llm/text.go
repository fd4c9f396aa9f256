package llm

import (
	"context"
	"strings"
)

const generateSystemPrompt = `You answer questions using only the supplied context.`

// TextGenerator produces an answer for a query from retrieved context.
type TextGenerator interface {
	GenerateText(ctx context.Context, query string, passages []string) (string, error)
}

// TextGeneratorFunc adapts a function to the TextGenerator interface.
type TextGeneratorFunc func(ctx context.Context, query string, passages []string) (string, error)

// GenerateText calls f.
func (f TextGeneratorFunc) GenerateText(ctx context.Context, query string, passages []string) (string, error) {
	return f(ctx, query, passages)
}

// ContextGenerator implements TextGenerator with an LLM.
type ContextGenerator struct {
	client *Client
}

// NewTextGenerator creates a text generator backed by client.
func NewTextGenerator(client *Client) *ContextGenerator {
	return &ContextGenerator{client: client}
}

var _ TextGenerator = (*ContextGenerator)(nil)

// GenerateText answers query from the given context passages.
func (g *ContextGenerator) GenerateText(ctx context.Context, query string, passages []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Answer the question using the context below:\n\n")
	sb.WriteString("Context:\n" + strings.Join(passages, "\n\n") + "\n\n")
	sb.WriteString("Question: " + query + "\n\nAnswer:")

	content, err := g.client.Complete(ctx, PurposeGenerate, generateSystemPrompt, sb.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
