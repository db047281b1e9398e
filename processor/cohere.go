package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	coherecore "github.com/cohere-ai/cohere-go/v2/core"

	"newspulse/errs"
)

// CohereChat implements ChatClient on the Cohere chat API.
type CohereChat struct {
	client *cohereclient.Client
	model  string
}

// NewCohereChat builds a chat client for the given API key and model.
func NewCohereChat(apiKey, model string) *CohereChat {
	return &CohereChat{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}
}

// Chat sends the prompt and returns the raw model text.
func (c *CohereChat) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message: prompt,
		Model:   &c.model,
	})
	if err != nil {
		return "", classifyChatError(fmt.Errorf("cohere chat: %w", err))
	}
	if resp == nil || resp.Text == "" {
		return "", errors.New("cohere chat returned empty response")
	}
	return resp.Text, nil
}

func classifyChatError(err error) error {
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
