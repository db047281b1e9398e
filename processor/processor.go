// Package processor turns raw scraped text into a structured draft (summary
// plus topic labels) through a GenAI chat capability. Each invocation is
// independent: a failure marks that one article as failed and never aborts
// the batch.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"newspulse/errs"
	"newspulse/retry"
	"newspulse/types"
)

const (
	// MaxSummaryLen bounds generated summaries; anything longer is truncated
	// at a rune boundary.
	MaxSummaryLen = 600

	// MaxTopics caps the topic labels kept per article.
	MaxTopics = 8
)

const instruction = `Summarize the news article below and identify its main topics.
Respond with a single JSON object of the form {"summary": "...", "topics": ["..."]}.
The summary must be no more than 2 sentences covering only the main article content.
The topics must be a list of 1-3 items, each 1-2 words.`

// ChatClient is the narrow GenAI capability the processor depends on.
type ChatClient interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Draft is the processor output merged into a ProcessedArticle downstream.
type Draft struct {
	Summary string
	Topics  []string
}

// Processor validates provider output at the boundary so nothing
// unstructured flows past it.
type Processor struct {
	chat   ChatClient
	policy retry.Policy
}

// New wires a chat client with the shared retry policy.
func New(chat ChatClient, policy retry.Policy) *Processor {
	return &Processor{chat: chat, policy: policy}
}

// Process generates a draft for one article. Transient provider errors are
// retried with backoff; malformed output is terminal.
func (p *Processor) Process(ctx context.Context, article types.RawArticle) (Draft, error) {
	prompt := buildPrompt(article)

	var raw string
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		out, err := p.chat.Chat(ctx, prompt)
		if err != nil {
			return err
		}
		raw = out
		return nil
	}, errs.IsTransient)
	if err != nil {
		return Draft{}, errs.ProcessingFailed(err)
	}

	draft, err := parseDraft(raw)
	if err != nil {
		return Draft{}, errs.ProcessingFailed(err)
	}
	return draft, nil
}

func buildPrompt(article types.RawArticle) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nTitle: ")
	b.WriteString(article.Title)
	b.WriteString("\n\n")
	b.WriteString(article.Body)
	return b.String()
}

// parseDraft validates the provider response into a typed draft.
func parseDraft(raw string) (Draft, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return Draft{}, errors.New("empty model response")
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Topics  []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Draft{}, fmt.Errorf("malformed model response: %w", err)
	}

	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		return Draft{}, errors.New("model returned empty summary")
	}
	if runes := []rune(summary); len(runes) > MaxSummaryLen {
		summary = string(runes[:MaxSummaryLen])
	}

	return Draft{Summary: summary, Topics: normalizeTopics(parsed.Topics)}, nil
}

// normalizeTopics trims, deduplicates case-insensitively and caps the list.
// Order of first appearance is preserved; comparisons treat it as a set.
func normalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		key := strings.ToLower(topic)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, topic)
		if len(out) == MaxTopics {
			break
		}
	}
	return out
}

// stripCodeFence unwraps ```json fenced blocks some models insist on.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
