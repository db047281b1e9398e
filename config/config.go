// Package config centralizes environment-driven settings. Values come from
// the process environment (main loads .env via godotenv first); every field
// has a default so the service runs locally against default endpoints.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Ingestion settings.
const (
	// DefaultWorkerCount bounds concurrent pipeline items to respect
	// provider rate limits.
	DefaultWorkerCount = 5

	// DefaultFetchCount is how many articles to take per feed.
	DefaultFetchCount = 10
)

// Per-stage timeouts for external calls.
const (
	FetchTimeout   = 30 * time.Second
	ProcessTimeout = 60 * time.Second
	EmbedTimeout   = 60 * time.Second
	StoreTimeout   = 15 * time.Second
)

// Search settings.
const (
	DefaultTopK = 3
	MaxTopK     = 10
)

// Config holds everything main needs to wire the service.
type Config struct {
	Port string

	CohereAPIKey string
	ChatModel    string
	EmbedModel   string
	// EmbedVersion tags every stored vector; bump it when the embedding
	// model or its parameters change so stale records get re-embedded.
	EmbedVersion string

	ChromaHost       string
	ChromaPort       int
	ChromaCollection string

	WorkerCount int
	FetchCount  int

	// Optional integrations; empty means disabled.
	RedisAddr     string
	RedisPassword string
	KafkaBrokers  []string
	KafkaTopic    string
	S3Bucket      string
	S3Region      string
	S3Prefix      string
}

// Load reads configuration from the environment.
func Load() Config {
	embedModel := GetEnvOrDefault("EMBED_MODEL", "embed-english-v3.0")

	cfg := Config{
		Port: GetEnvOrDefault("PORT", "8080"),

		CohereAPIKey: os.Getenv("COHERE_API_KEY"),
		ChatModel:    GetEnvOrDefault("CHAT_MODEL", "command-r-08-2024"),
		EmbedModel:   embedModel,
		EmbedVersion: GetEnvOrDefault("EMBED_VERSION", embedModel+"@1"),

		ChromaHost:       GetEnvOrDefault("CHROMA_HOST", "localhost"),
		ChromaPort:       getEnvInt("CHROMA_PORT", 8000),
		ChromaCollection: GetEnvOrDefault("CHROMA_COLLECTION", "news-articles"),

		WorkerCount: getEnvInt("WORKER_COUNT", DefaultWorkerCount),
		FetchCount:  getEnvInt("FETCH_COUNT", DefaultFetchCount),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASS"),
		KafkaTopic:    GetEnvOrDefault("KAFKA_TOPIC", "newspulse.articles.indexed"),
		S3Bucket:      strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:      strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Prefix:      strings.Trim(strings.TrimSpace(os.Getenv("S3_PREFIX")), "/"),
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

// GetEnvOrDefault returns the env value or fallback when unset/empty.
func GetEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
