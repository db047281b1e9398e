// Command ingest runs one ingestion batch from the command line: discover
// article URLs from an RSS feed (or take them as arguments), push them
// through the pipeline and print the batch report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"newspulse/config"
	"newspulse/embeddings"
	"newspulse/feeds"
	"newspulse/index"
	"newspulse/pipeline"
	"newspulse/processor"
	"newspulse/retry"
)

func main() {
	_ = godotenv.Load()

	feed := flag.String("feed", feeds.DefaultFeedPreset, "feed preset name or feed URL")
	count := flag.Int("count", 0, "max articles to discover from the feed (default from FETCH_COUNT)")
	flag.Parse()

	cfg := config.Load()
	if cfg.CohereAPIKey == "" {
		log.Fatal("COHERE_API_KEY is required")
	}
	if *count <= 0 {
		*count = cfg.FetchCount
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := retry.DefaultPolicy()
	store, err := index.NewChromaStore(index.ChromaConfig{
		Host:       cfg.ChromaHost,
		Port:       cfg.ChromaPort,
		Collection: cfg.ChromaCollection,
	}, policy)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}

	fetcher := feeds.NewClient()
	p := pipeline.New(pipeline.Deps{
		Fetcher: fetcher,
		Processor: processor.New(
			processor.NewCohereChat(cfg.CohereAPIKey, cfg.ChatModel), policy),
		Embedder: embeddings.NewGenerator(
			embeddings.NewCohereProvider(cfg.CohereAPIKey, cfg.EmbedModel),
			cfg.EmbedVersion, policy),
		Store:   store,
		Workers: cfg.WorkerCount,
		Timeouts: pipeline.Timeouts{
			Fetch:   config.FetchTimeout,
			Process: config.ProcessTimeout,
			Embed:   config.EmbedTimeout,
			Store:   config.StoreTimeout,
		},
	})

	sources := flag.Args()
	if len(sources) == 0 {
		feedURL := feeds.ResolveFeedURL(*feed)
		log.Printf("Discovering up to %d articles from %s", *count, feedURL)
		sources, err = fetcher.Discover(ctx, feedURL, *count)
		if err != nil {
			log.Fatalf("Feed discovery failed: %v", err)
		}
	}
	if len(sources) == 0 {
		log.Println("No articles to ingest")
		return
	}

	log.Printf("Ingesting %d articles with %d workers", len(sources), cfg.WorkerCount)
	report, err := p.Run(ctx, sources)
	if err != nil {
		log.Printf("Batch interrupted: %v", err)
	}

	fmt.Println("=== Ingestion Summary ===")
	fmt.Printf("Inserted: %d\n", report.Inserted)
	fmt.Printf("Updated:  %d\n", report.Updated)
	fmt.Printf("Skipped:  %d\n", report.Skipped)
	fmt.Printf("Failed:   %d\n", len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("  %s (stage %s): %s\n", f.Source, f.Stage, f.Reason)
	}

	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
