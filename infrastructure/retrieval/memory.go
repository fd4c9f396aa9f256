package retrieval

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process keyword retriever. A document scores the share of
// distinct query terms it contains; title matches count double.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]Document
	order  []string
	closed bool
}

// NewMemory creates an empty in-memory retriever.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

var _ Index = (*Memory)(nil)

// Add indexes documents. Re-adding an ID replaces the document.
func (m *Memory) Add(ctx context.Context, docs ...Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, d := range docs {
		if _, exists := m.docs[d.ID]; !exists {
			m.order = append(m.order, d.ID)
		}
		m.docs[d.ID] = d
	}
	return nil
}

// Retrieve returns up to limit documents sharing at least one term with the
// query. Ties keep insertion order.
func (m *Memory) Retrieve(ctx context.Context, query string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := distinct(tokenize(query))
	if len(terms) == 0 {
		return []Document{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	scored := make([]Document, 0)
	for _, id := range m.order {
		d := m.docs[id]
		if s := score(terms, d); s > 0 {
			d.Score = s
			scored = append(scored, d)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit = normalizeLimit(limit); len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Count returns the number of indexed documents.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Close releases the documents.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.docs = nil
	m.order = nil
	return nil
}

func score(terms []string, d Document) float64 {
	body := set(tokenize(d.Content))
	title := set(tokenize(d.Title))

	var hits float64
	for _, t := range terms {
		if body[t] {
			hits++
		}
		if title[t] {
			hits++
		}
	}
	return hits / float64(len(terms))
}

func set(tokens []string) map[string]bool {
	out := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		out[t] = true
	}
	return out
}

func distinct(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
