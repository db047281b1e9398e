// Package embeddings maps text to fixed-dimension vectors under a versioned
// embedding scheme. The version is stored next to every vector in the index;
// vectors from different versions are never compared.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"newspulse/errs"
	"newspulse/retry"
	"newspulse/types"
)

// InputType distinguishes document embeddings from query embeddings; some
// providers (Cohere among them) produce asymmetric vectors.
type InputType string

const (
	InputDocument InputType = "search_document"
	InputQuery    InputType = "search_query"
)

// Provider abstracts a text->embedding backend. Implementations return one
// vector per input text, in order.
type Provider interface {
	EmbedTexts(ctx context.Context, texts []string, input InputType) ([]types.Vector, error)
	ModelName() string
}

// Generator produces vectors tagged with the current scheme version and
// retries transient provider failures.
type Generator struct {
	provider Provider
	version  string
	policy   retry.Policy
}

// NewGenerator wires a provider to a scheme version.
func NewGenerator(provider Provider, version string, policy retry.Policy) *Generator {
	return &Generator{provider: provider, version: version, policy: policy}
}

// Version returns the scheme version this generator produces.
func (g *Generator) Version() string { return g.version }

// EmbedDocument embeds article text for indexing.
func (g *Generator) EmbedDocument(ctx context.Context, text string) (types.Vector, error) {
	return g.embed(ctx, text, InputDocument)
}

// EmbedQuery embeds query text for retrieval.
func (g *Generator) EmbedQuery(ctx context.Context, text string) (types.Vector, error) {
	return g.embed(ctx, text, InputQuery)
}

func (g *Generator) embed(ctx context.Context, text string, input InputType) (types.Vector, error) {
	if text == "" {
		return nil, errs.EmbeddingFailed(errors.New("empty input text"))
	}

	var vector types.Vector
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		vectors, err := g.provider.EmbedTexts(ctx, []string{text}, input)
		if err != nil {
			return err
		}
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			return fmt.Errorf("provider returned %d embeddings for 1 input", len(vectors))
		}
		vector = vectors[0]
		return nil
	}, errs.IsTransient)
	if err != nil {
		return nil, errs.EmbeddingFailed(err)
	}

	return vector, nil
}
