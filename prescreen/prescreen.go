// Package prescreen provides a RedisBloom-backed membership filter over
// article fingerprints. It is a fast path in front of the index: a
// fingerprint that was never marked cannot be in the index, so the lookup
// round trip can be skipped. The filter never produces false negatives.
package prescreen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the Redis connection and the bloom filter key.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// Capacity and ErrorRate feed BF.RESERVE when the key does not exist.
	Capacity  int
	ErrorRate float64
}

const opTimeout = 5 * time.Second

// Filter wraps the RedisBloom BF.* commands for fingerprint membership.
type Filter struct {
	client *redis.Client
	key    string
}

// New connects to Redis, verifies connectivity and reserves the bloom
// filter if it does not exist yet. A failed BF.RESERVE is not fatal since
// BF.ADD auto-creates the filter with server defaults.
func New(cfg Config) (*Filter, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Key == "" {
		cfg.Key = "newspulse:fingerprints"
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100000
	}
	if cfg.ErrorRate <= 0 {
		cfg.ErrorRate = 0.001
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	exists, err := client.Exists(ctx, cfg.Key).Result()
	if err == nil && exists == 0 {
		client.Do(ctx, "BF.RESERVE", cfg.Key, fmt.Sprintf("%f", cfg.ErrorRate), cfg.Capacity)
	}

	return &Filter{client: client, key: cfg.Key}, nil
}

// Close releases the underlying Redis client.
func (f *Filter) Close() error {
	return f.client.Close()
}

// Seen reports whether the fingerprint may have been marked before. A
// false result is definitive; a true result may be a false positive.
func (f *Filter) Seen(ctx context.Context, fp string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := f.client.Do(ctx, "BF.EXISTS", f.key, fp).Result()
	if err != nil {
		return false, err
	}
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case string:
		return v == "1", nil
	default:
		return false, fmt.Errorf("unexpected BF.EXISTS response type %T: %v", res, res)
	}
}

// Mark records the fingerprint in the filter.
func (f *Filter) Mark(ctx context.Context, fp string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return f.client.Do(ctx, "BF.ADD", f.key, fp).Err()
}
