package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/config"
)

var corpus = []Document{
	{ID: "rag", Title: "Retrieval augmented generation", Content: "RAG combines document retrieval with text generation."},
	{ID: "go", Title: "Go concurrency", Content: "Goroutines and channels make concurrent programs simple."},
	{ID: "eval", Title: "Evaluation", Content: "Responses are scored for relevance and completeness."},
}

func newIndexes(t *testing.T) map[string]Index {
	t.Helper()

	b, err := NewBleve("")
	if err != nil {
		t.Fatalf("NewBleve() error = %v", err)
	}
	idx := map[string]Index{"memory": NewMemory(), "bleve": b}
	for name, i := range idx {
		if err := i.Add(context.Background(), corpus...); err != nil {
			t.Fatalf("%s Add() error = %v", name, err)
		}
		t.Cleanup(func() { _ = i.Close() })
	}
	return idx
}

func TestRetrieve_RanksMatches(t *testing.T) {
	t.Parallel()

	for name, idx := range newIndexes(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			docs, err := idx.Retrieve(context.Background(), "retrieval generation", 5)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if len(docs) == 0 || docs[0].ID != "rag" {
				t.Fatalf("Retrieve() = %v, want rag first", docs)
			}
			if docs[0].Content != corpus[0].Content {
				t.Errorf("Content = %q, want stored content", docs[0].Content)
			}
			if docs[0].Score <= 0 {
				t.Errorf("Score = %v, want > 0", docs[0].Score)
			}
		})
	}
}

func TestRetrieve_Limit(t *testing.T) {
	t.Parallel()

	for name, idx := range newIndexes(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			docs, err := idx.Retrieve(context.Background(), "relevance concurrency retrieval", 1)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if len(docs) != 1 {
				t.Errorf("len(Retrieve()) = %d, want 1", len(docs))
			}
		})
	}
}

func TestRetrieve_NoMatchOrEmptyQuery(t *testing.T) {
	t.Parallel()

	for name, idx := range newIndexes(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, q := range []string{"", "   ", "zebra"} {
				docs, err := idx.Retrieve(context.Background(), q, 3)
				if err != nil {
					t.Fatalf("Retrieve(%q) error = %v", q, err)
				}
				if len(docs) != 0 {
					t.Errorf("Retrieve(%q) = %v, want none", q, docs)
				}
			}
		})
	}
}

func TestIndex_RejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	for name, idx := range newIndexes(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, d := range []Document{{Content: "no id"}, {ID: "empty"}} {
				if err := idx.Add(context.Background(), d); !errors.Is(err, ErrInvalidDocument) {
					t.Errorf("Add(%+v) error = %v, want ErrInvalidDocument", d, err)
				}
			}
			if idx.Count() != len(corpus) {
				t.Errorf("Count() = %d, want %d", idx.Count(), len(corpus))
			}
		})
	}
}

func TestMemory_ReplaceKeepsOrder(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	_ = m.Add(ctx, Document{ID: "a", Content: "alpha shared"}, Document{ID: "b", Content: "beta shared"})
	_ = m.Add(ctx, Document{ID: "a", Content: "alpha shared again"})

	docs, _ := m.Retrieve(ctx, "shared", 5)
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("Retrieve() = %v, want [a b]", docs)
	}
	if docs[0].Content != "alpha shared again" {
		t.Errorf("Content = %q, want the replacement", docs[0].Content)
	}
}

func TestMemory_Closed(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	_ = m.Close()

	if _, err := m.Retrieve(context.Background(), "x", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Retrieve() error = %v, want ErrClosed", err)
	}
	if err := m.Add(context.Background(), corpus[0]); !errors.Is(err, ErrClosed) {
		t.Errorf("Add() error = %v, want ErrClosed", err)
	}
}

func TestBleve_PersistsToPath(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/index"
	b, err := NewBleve(path)
	if err != nil {
		t.Fatalf("NewBleve() error = %v", err)
	}
	if err := b.Add(context.Background(), corpus...); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewBleve(path)
	if err != nil {
		t.Fatalf("NewBleve() reopen error = %v", err)
	}
	defer reopened.Close()

	if reopened.Count() != len(corpus) {
		t.Errorf("Count() = %d, want %d", reopened.Count(), len(corpus))
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend string
		wantErr error
	}{
		{"", nil},
		{"memory", nil},
		{"bleve", nil},
		{"elastic", ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			t.Parallel()

			idx, err := New(context.Background(), config.RetrievalConfig{
				Backend:   tt.backend,
				Documents: []config.DocumentConfig{{ID: "d1", Content: "seeded text"}},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer idx.Close()

			if idx.Count() != 1 {
				t.Errorf("Count() = %d, want 1", idx.Count())
			}
		})
	}
}

func TestContents(t *testing.T) {
	t.Parallel()

	got := Contents(corpus[:2])
	if len(got) != 2 || got[0] != corpus[0].Content || got[1] != corpus[1].Content {
		t.Errorf("Contents() = %v", got)
	}
}
