// Package search ranks indexed articles against a natural-language query.
package search

import (
	"context"
	"strings"

	"newspulse/errs"
	"newspulse/index"
	"newspulse/types"
)

// QueryEmbedder produces vectors for search queries.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) (types.Vector, error)
}

// Engine embeds queries and ranks matches from the index.
type Engine struct {
	embedder QueryEmbedder
	store    index.Store
}

// New builds a search engine over the given embedder and index.
func New(embedder QueryEmbedder, store index.Store) *Engine {
	return &Engine{embedder: embedder, store: store}
}

// Search embeds the query and returns up to topK results ordered by
// descending score. Validation happens before any external call; an empty
// index yields an empty slice, not an error.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.InvalidQuery("query must not be empty")
	}
	if topK < 1 {
		return nil, errs.InvalidQuery("top_k must be at least 1")
	}

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := e.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, types.SearchResult{
			Title:       m.Record.Title,
			Content:     m.Record.Body,
			Author:      m.Record.Author,
			PublishedAt: m.Record.PublishedAt,
			Summary:     m.Record.Summary,
			Topics:      m.Record.Topics,
			URL:         m.Record.SourceURL,
			Score:       scoreFromSimilarity(m.Similarity),
		})
	}
	return results, nil
}

// scoreFromSimilarity maps cosine similarity in [-1, 1] onto [0, 1].
func scoreFromSimilarity(similarity float64) float64 {
	score := (similarity + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
