package types

import "time"

// RawArticle is the immutable output of the fetch capability. It lives only
// for the duration of a pipeline run and is never persisted as-is.
type RawArticle struct {
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Vector is an embedding produced by a single embedding scheme version.
// Vectors from different scheme versions are never comparable.
type Vector []float32

// ProcessedArticle is the structured record derived from a RawArticle.
// Content fields are fixed once created; only Vector and EmbedVersion change
// when the article is re-embedded under a newer scheme version.
type ProcessedArticle struct {
	Fingerprint  string    `json:"fingerprint"`
	SourceURL    string    `json:"source_url"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Author       string    `json:"author,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	FetchedAt    time.Time `json:"fetched_at"`
	Summary      string    `json:"summary"`
	Topics       []string  `json:"topics"`
	EmbedVersion string    `json:"embed_version"`
	Vector       Vector    `json:"-"`
}

// SearchResult is the per-query view of an indexed article. The raw vector is
// never exposed; Score is normalized into [0,1].
type SearchResult struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary"`
	Topics      []string  `json:"topics"`
	URL         string    `json:"url"`
	Score       float64   `json:"score"`
}
