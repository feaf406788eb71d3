// Package catalog searches documents kept in the local SQLite catalog.
package catalog

import (
	"context"
	"log/slog"

	"github.com/btouchard/scout/internal/search"
	"github.com/btouchard/scout/internal/store"
)

const (
	Name = "catalog"
	icon = "catalog.svg"
)

// DocumentSearcher is the part of the store the catalog reads from.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, tokens []string, limit int) ([]store.Document, error)
}

// Searcher answers queries from a DocumentSearcher.
type Searcher struct {
	docs  DocumentSearcher
	limit int
}

// NewSearcher creates a Searcher returning at most limit documents per query.
func NewSearcher(docs DocumentSearcher, limit int) *Searcher {
	return &Searcher{docs: docs, limit: limit}
}

// Search implements search.Searcher.
func (s *Searcher) Search(ctx context.Context, id int, query string) []search.Result {
	tokens := search.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	docs, err := s.docs.SearchDocuments(ctx, tokens, s.limit)
	if err != nil {
		slog.Warn("catalog search failed", "request_id", id, "error", err)
		return nil
	}

	results := make([]search.Result, 0, len(docs))
	for _, d := range docs {
		// Title hits weigh double.
		score := 2*search.TokenMatches(tokens, d.Title) + search.TokenMatches(tokens, d.Body)
		if score == 0 {
			continue
		}
		results = append(results, search.Result{
			ID:       d.ID,
			Title:    d.Title,
			Subtitle: snippet(d.Body, 120),
			URL:      d.URL,
			Score:    score,
		})
	}
	return results
}

// New returns the catalog provider running its searches on runner.
func New(docs DocumentSearcher, runner *search.Runner, limit, buffer int) *search.BlockingProvider {
	return search.NewBlockingProvider(search.NewBase(Name, icon, buffer), NewSearcher(docs, limit), runner)
}

func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
