package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Bleve is a full-text retriever backed by a bleve index.
type Bleve struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// bleveDocument is the indexed shape of a Document.
type bleveDocument struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewBleve opens the index at path, creating it if needed. An empty path
// keeps the index in memory.
func NewBleve(path string) (*Bleve, error) {
	mapping := bleve.NewIndexMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		return &Bleve{index: index}, nil
	}

	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Bleve{index: index}, nil
}

var _ Index = (*Bleve)(nil)

// Add indexes documents in one batch.
func (b *Bleve) Add(ctx context.Context, docs ...Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
		if err := batch.Index(d.ID, bleveDocument{Title: d.Title, Content: d.Content, Metadata: d.Metadata}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", d.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Retrieve runs a match query over title and content.
func (b *Bleve) Retrieve(ctx context.Context, query string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return []Document{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = normalizeLimit(limit)
	req.Fields = []string{"*"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	docs := make([]Document, 0, len(result.Hits))
	for _, hit := range result.Hits {
		d := Document{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["title"].(string); ok {
			d.Title = v
		}
		if v, ok := hit.Fields["content"].(string); ok {
			d.Content = v
		}
		for k, v := range hit.Fields {
			name, ok := strings.CutPrefix(k, "metadata.")
			if !ok {
				continue
			}
			if s, ok := v.(string); ok {
				if d.Metadata == nil {
					d.Metadata = make(map[string]string)
				}
				d.Metadata[name] = s
			}
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Count returns the number of indexed documents.
func (b *Bleve) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n) // #nosec G115 -- document counts fit in int
}

// Close flushes and closes the index.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
