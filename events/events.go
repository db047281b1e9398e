// Package events publishes article-indexed notifications to Kafka so
// downstream consumers can react to new or refreshed records.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"newspulse/types"
)

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// IndexedEvent is the wire payload for an inserted or updated article.
type IndexedEvent struct {
	Fingerprint  string    `json:"fingerprint"`
	Outcome      string    `json:"outcome"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	EmbedVersion string    `json:"embed_version"`
	PublishedAt  time.Time `json:"published_at"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// Producer emits indexed events, keyed by fingerprint so updates for the
// same article land on the same partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a synchronous Kafka producer.
func NewProducer(config ProducerConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Producer{producer: producer, topic: config.Topic}, nil
}

// PublishIndexed sends one event for an inserted or updated record.
func (p *Producer) PublishIndexed(rec types.ProcessedArticle, outcome types.Outcome) error {
	event := IndexedEvent{
		Fingerprint:  rec.Fingerprint,
		Outcome:      string(outcome),
		Title:        rec.Title,
		URL:          rec.SourceURL,
		EmbedVersion: rec.EmbedVersion,
		PublishedAt:  rec.PublishedAt,
		IndexedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal indexed event: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(rec.Fingerprint),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish indexed event: %w", err)
	}
	return nil
}

// Close shuts down the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
