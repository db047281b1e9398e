// Package index abstracts the external vector database holding one record
// per content fingerprint.
package index

import (
	"context"

	"newspulse/types"
)

// Match is one nearest-neighbor hit. Similarity is the raw cosine
// similarity in [-1,1]; score normalization happens at query time in the
// search engine, not here.
type Match struct {
	Fingerprint string
	Similarity  float64
	Record      types.ProcessedArticle
}

// Store is the vector-database contract. All operations are keyed by the
// content fingerprint and safe to retry; Upsert never creates a second
// record for an existing fingerprint.
type Store interface {
	// Upsert inserts or overwrites the record for rec.Fingerprint.
	Upsert(ctx context.Context, rec types.ProcessedArticle) error

	// Get returns the stored record, or nil when the fingerprint is absent.
	// The returned record does not carry the raw vector.
	Get(ctx context.Context, fp string) (*types.ProcessedArticle, error)

	// Query returns up to topK matches ordered by descending similarity,
	// ties broken by more recent publish timestamp.
	Query(ctx context.Context, vector types.Vector, topK int) ([]Match, error)

	// Delete removes the record; deleting an absent fingerprint is a no-op.
	Delete(ctx context.Context, fp string) error

	// Count reports the number of indexed records.
	Count(ctx context.Context) (int, error)
}
