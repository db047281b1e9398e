package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"newspulse/api"
	"newspulse/archive"
	"newspulse/config"
	"newspulse/embeddings"
	"newspulse/events"
	"newspulse/feeds"
	"newspulse/index"
	"newspulse/pipeline"
	"newspulse/prescreen"
	"newspulse/processor"
	"newspulse/retry"
	"newspulse/search"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.CohereAPIKey == "" {
		log.Fatal("COHERE_API_KEY is required")
	}

	policy := retry.DefaultPolicy()

	store, err := index.NewChromaStore(index.ChromaConfig{
		Host:       cfg.ChromaHost,
		Port:       cfg.ChromaPort,
		Collection: cfg.ChromaCollection,
	}, policy)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}

	embedder := embeddings.NewGenerator(
		embeddings.NewCohereProvider(cfg.CohereAPIKey, cfg.EmbedModel),
		cfg.EmbedVersion,
		policy,
	)
	proc := processor.New(processor.NewCohereChat(cfg.CohereAPIKey, cfg.ChatModel), policy)
	fetcher := feeds.NewClient()

	deps := pipeline.Deps{
		Fetcher:   fetcher,
		Processor: proc,
		Embedder:  embedder,
		Store:     store,
		Workers:   cfg.WorkerCount,
		Timeouts: pipeline.Timeouts{
			Fetch:   config.FetchTimeout,
			Process: config.ProcessTimeout,
			Embed:   config.EmbedTimeout,
			Store:   config.StoreTimeout,
		},
	}

	// Optional integrations, each enabled by its configuration.
	if cfg.RedisAddr != "" {
		filter, err := prescreen.New(prescreen.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("Warning: prescreen disabled: %v", err)
		} else {
			defer filter.Close()
			deps.Prescreen = filter
			log.Println("Prescreen bloom filter enabled")
		}
	}
	if cfg.S3Bucket != "" {
		arch, err := archive.New(context.Background(), archive.Config{
			Bucket: cfg.S3Bucket,
			Region: cfg.S3Region,
			Prefix: cfg.S3Prefix,
		})
		if err != nil {
			log.Printf("Warning: archive disabled: %v", err)
		} else {
			deps.Archiver = arch
			log.Printf("S3 archive enabled (bucket %s)", cfg.S3Bucket)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewProducer(events.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Printf("Warning: event publishing disabled: %v", err)
		} else {
			defer producer.Close()
			deps.Publisher = producer
			log.Printf("Kafka events enabled (topic %s)", cfg.KafkaTopic)
		}
	}

	ingester := pipeline.New(deps)
	engine := search.New(embedder, store)

	r := api.NewRouter(api.Deps{
		Searcher:   engine,
		Ingester:   ingester,
		Discoverer: fetcher,
		Store:      store,
		FetchCount: cfg.FetchCount,
	})

	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET  /api/health")
	log.Println("  GET  /api/stats")
	log.Println("  GET  /api/search")
	log.Println("  POST /api/ingest")

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
