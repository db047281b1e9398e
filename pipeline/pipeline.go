// Package pipeline orchestrates ingestion: fetch, fingerprint, dedup check,
// process, embed, upsert. Items run concurrently under a bounded worker
// pool; one item's failure never aborts the batch, and re-running the same
// sources is convergent once every item reaches the current embed version.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"newspulse/errs"
	"newspulse/fingerprint"
	"newspulse/index"
	"newspulse/processor"
	"newspulse/types"
)

// Fetcher is the black-box fetch capability (one call per source item).
type Fetcher interface {
	Fetch(ctx context.Context, source string) (types.RawArticle, error)
}

// ArticleProcessor derives summary and topics from a raw article.
type ArticleProcessor interface {
	Process(ctx context.Context, article types.RawArticle) (processor.Draft, error)
}

// Embedder produces document vectors under the current scheme version.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) (types.Vector, error)
	Version() string
}

// Prescreen is an optional fast-path membership check (bloom filter). A
// negative answer means the fingerprint was never marked, so the index
// lookup can be skipped; the store stays authoritative for version checks.
type Prescreen interface {
	Seen(ctx context.Context, fp string) (bool, error)
	Mark(ctx context.Context, fp string) error
}

// Archiver persists a raw JSON copy of newly indexed articles. Best effort.
type Archiver interface {
	Archive(ctx context.Context, rec types.ProcessedArticle) error
}

// Publisher emits an event for each inserted or updated article. Best effort.
type Publisher interface {
	PublishIndexed(rec types.ProcessedArticle, outcome types.Outcome) error
}

// Timeouts bound each stage's external call.
type Timeouts struct {
	Fetch   time.Duration
	Process time.Duration
	Embed   time.Duration
	Store   time.Duration
}

// Deps wires the pipeline's collaborators. Prescreen, Archiver and
// Publisher are optional.
type Deps struct {
	Fetcher   Fetcher
	Processor ArticleProcessor
	Embedder  Embedder
	Store     index.Store
	Prescreen Prescreen
	Archiver  Archiver
	Publisher Publisher
	Workers   int
	Timeouts  Timeouts
}

// Pipeline runs ingestion batches.
type Pipeline struct {
	deps Deps
}

// New constructs a pipeline; Workers defaults to 5 and zero timeouts mean
// no per-stage deadline beyond the batch context.
func New(deps Deps) *Pipeline {
	if deps.Workers <= 0 {
		deps.Workers = 5
	}
	return &Pipeline{deps: deps}
}

// Run ingests a batch of sources and reports per-item outcomes. The batch
// always completes unless ctx is cancelled; cancellation is observed
// between items and the partial report is returned with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, sources []string) (types.BatchReport, error) {
	report := types.BatchReport{StartedAt: time.Now().UTC()}
	if len(sources) == 0 {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	// One result slot per item; workers never share slots so no interleaved
	// partial writes are possible.
	results := make([]*types.ItemResult, len(sources))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.deps.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := p.runItem(ctx, sources[i])
				results[i] = &res
			}
		}()
	}

	cancelled := false
dispatch:
	for i := range sources {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for _, res := range results {
		if res == nil {
			continue // never dispatched before cancellation
		}
		report.Items = append(report.Items, *res)
		switch res.Outcome {
		case types.OutcomeInserted:
			report.Inserted++
		case types.OutcomeUpdated:
			report.Updated++
		case types.OutcomeSkipped:
			report.Skipped++
		case types.OutcomeFailed:
			report.Failed = append(report.Failed, types.ItemFailure{
				Source: res.Source,
				Stage:  res.Stage,
				Reason: res.Reason,
			})
		}
	}
	report.FinishedAt = time.Now().UTC()

	if cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// runItem walks one source through the stage machine to a terminal outcome.
func (p *Pipeline) runItem(ctx context.Context, source string) types.ItemResult {
	res := types.ItemResult{Source: source}

	raw, err := p.fetch(ctx, source)
	if err != nil {
		return failed(res, types.StageFetch, err)
	}

	fp := fingerprint.New(raw.Title, raw.Body)
	res.Fingerprint = fp

	existing, err := p.lookup(ctx, fp)
	if err != nil {
		return failed(res, types.StageLookup, err)
	}

	version := p.deps.Embedder.Version()
	if existing != nil && existing.EmbedVersion == version {
		res.Outcome = types.OutcomeSkipped
		return res
	}

	var rec types.ProcessedArticle
	if existing != nil {
		// Same content at a stale embed version: keep the stored content
		// fields untouched and only refresh the vector and version.
		rec = *existing
	} else {
		draft, err := p.process(ctx, raw)
		if err != nil {
			return failed(res, types.StageProcess, err)
		}
		rec = types.ProcessedArticle{
			Fingerprint: fp,
			SourceURL:   raw.SourceURL,
			Title:       raw.Title,
			Body:        raw.Body,
			Author:      raw.Author,
			PublishedAt: raw.PublishedAt,
			FetchedAt:   raw.FetchedAt,
			Summary:     draft.Summary,
			Topics:      draft.Topics,
		}
	}

	vector, err := p.embed(ctx, rec.Title+"\n\n"+rec.Body)
	if err != nil {
		return failed(res, types.StageEmbed, err)
	}
	rec.Vector = vector
	rec.EmbedVersion = version

	if err := p.upsert(ctx, rec); err != nil {
		return failed(res, types.StageUpsert, err)
	}

	if existing != nil {
		res.Outcome = types.OutcomeUpdated
	} else {
		res.Outcome = types.OutcomeInserted
	}
	p.afterIndexed(ctx, rec, res.Outcome)
	return res
}

// lookup consults the optional prescreen before hitting the store. The
// bloom filter has no false negatives, so "never marked" means the store
// cannot hold the fingerprint and the round trip is skipped.
func (p *Pipeline) lookup(ctx context.Context, fp string) (*types.ProcessedArticle, error) {
	if p.deps.Prescreen != nil {
		seen, err := p.deps.Prescreen.Seen(ctx, fp)
		if err != nil {
			log.Printf("pipeline: prescreen check failed, falling back to store: %v", err)
		} else if !seen {
			return nil, nil
		}
	}

	ctx, cancel := p.stageContext(ctx, p.deps.Timeouts.Store)
	defer cancel()
	return p.deps.Store.Get(ctx, fp)
}

func (p *Pipeline) fetch(ctx context.Context, source string) (types.RawArticle, error) {
	ctx, cancel := p.stageContext(ctx, p.deps.Timeouts.Fetch)
	defer cancel()
	raw, err := p.deps.Fetcher.Fetch(ctx, source)
	if err != nil && !errors.Is(err, errs.ErrFetchFailed) {
		err = errs.FetchFailed(err)
	}
	return raw, err
}

func (p *Pipeline) process(ctx context.Context, raw types.RawArticle) (processor.Draft, error) {
	ctx, cancel := p.stageContext(ctx, p.deps.Timeouts.Process)
	defer cancel()
	return p.deps.Processor.Process(ctx, raw)
}

func (p *Pipeline) embed(ctx context.Context, text string) (types.Vector, error) {
	ctx, cancel := p.stageContext(ctx, p.deps.Timeouts.Embed)
	defer cancel()
	return p.deps.Embedder.EmbedDocument(ctx, text)
}

func (p *Pipeline) upsert(ctx context.Context, rec types.ProcessedArticle) error {
	ctx, cancel := p.stageContext(ctx, p.deps.Timeouts.Store)
	defer cancel()
	return p.deps.Store.Upsert(ctx, rec)
}

// afterIndexed runs the best-effort side channels. None of them can fail
// the item; the record is already durable in the index.
func (p *Pipeline) afterIndexed(ctx context.Context, rec types.ProcessedArticle, outcome types.Outcome) {
	if p.deps.Prescreen != nil {
		if err := p.deps.Prescreen.Mark(ctx, rec.Fingerprint); err != nil {
			log.Printf("pipeline: prescreen mark failed for %s: %v", rec.Fingerprint, err)
		}
	}
	if p.deps.Archiver != nil {
		if err := p.deps.Archiver.Archive(ctx, rec); err != nil {
			log.Printf("pipeline: archive failed for %s: %v", rec.Fingerprint, err)
		}
	}
	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.PublishIndexed(rec, outcome); err != nil {
			log.Printf("pipeline: publish failed for %s: %v", rec.Fingerprint, err)
		}
	}
}

func (p *Pipeline) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func failed(res types.ItemResult, stage types.Stage, err error) types.ItemResult {
	res.Outcome = types.OutcomeFailed
	res.Stage = stage
	res.Reason = err.Error()
	return res
}
