package embeddings

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	coherecore "github.com/cohere-ai/cohere-go/v2/core"

	"newspulse/errs"
	"newspulse/types"
)

// CohereProvider implements Provider using the Cohere Embed v2 API.
type CohereProvider struct {
	client *cohereclient.Client
	model  string
}

// NewCohereProvider builds a provider for the given API key and model.
func NewCohereProvider(apiKey, model string) *CohereProvider {
	// Force HTTP/1.1; the Cohere endpoint intermittently resets HTTP/2 streams.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereProvider{client: client, model: model}
}

func (c *CohereProvider) ModelName() string { return c.model }

// EmbedTexts requests float embeddings for the given texts.
func (c *CohereProvider) EmbedTexts(ctx context.Context, texts []string, input InputType) ([]types.Vector, error) {
	if len(texts) == 0 {
		return []types.Vector{}, nil
	}

	inputType := cohere.EmbedInputTypeSearchDocument
	if input == InputQuery {
		inputType = cohere.EmbedInputTypeSearchQuery
	}

	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      inputType,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, classifyCohereError(fmt.Errorf("cohere embed: %w", err))
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}

	floats := resp.Embeddings.Float
	if len(floats) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}

	out := make([]types.Vector, len(floats))
	for i, vec := range floats {
		fv := make(types.Vector, len(vec))
		for j, v := range vec {
			fv[j] = float32(v)
		}
		out[i] = fv
	}
	return out, nil
}

// classifyCohereError marks rate limits, server errors and timeouts as
// transient so callers retry them; everything else is terminal.
func classifyCohereError(err error) error {
	var apiErr *coherecore.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return errs.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Transient(err)
	}
	return err
}
