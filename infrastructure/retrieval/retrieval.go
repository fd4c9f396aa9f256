// Package retrieval provides the document retrievers behind the search action.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 5

var (
	// ErrInvalidDocument indicates a document without an ID or content.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrUnknownBackend indicates an unsupported retrieval backend.
	ErrUnknownBackend = errors.New("unknown retrieval backend")

	// ErrClosed indicates the retriever was closed.
	ErrClosed = errors.New("retriever closed")
)

// Document is a retrievable passage.
type Document struct {
	ID       string            `json:"id"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Score is the relevance assigned by the retriever for one query.
	Score float64 `json:"score,omitempty"`
}

// Validate checks the document can be indexed.
func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: %s has no content", ErrInvalidDocument, d.ID)
	}
	return nil
}

// Retriever returns the documents most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Document, error)
}

// Index is a retriever that documents can be added to.
type Index interface {
	Retriever
	Add(ctx context.Context, docs ...Document) error
	Count() int
	Close() error
}

// Contents returns the content of each document, in order.
func Contents(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out
}

// New builds the index selected by cfg and seeds it with cfg.Documents.
func New(ctx context.Context, cfg config.RetrievalConfig) (Index, error) {
	var (
		idx Index
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		idx = NewMemory()
	case "bleve":
		idx, err = NewBleve(cfg.IndexPath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(cfg.Documents))
	for _, d := range cfg.Documents {
		docs = append(docs, Document{ID: d.ID, Title: d.Title, Content: d.Content, Metadata: d.Metadata})
	}
	if len(docs) > 0 {
		if err := idx.Add(ctx, docs...); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("seed documents: %w", err)
		}
	}
	return idx, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
