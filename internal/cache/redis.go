package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ukcensusapi/internal/metadata"
)

// DefaultRedisPrefix is prepended to every metadata key stored in Redis.
const DefaultRedisPrefix = "ukcensusapi:metadata:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379/0")
	URL string

	// Prefix is prepended to keys (defaults to "ukcensusapi:metadata:")
	Prefix string
}

// RedisStore implements metadata.Store in Redis. Records are stored without
// expiry; dataset schemas change only when the service republishes a table.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and returns a store.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	slog.Info("redis metadata store connected", "prefix", prefix)

	return &RedisStore{client: client, prefix: prefix}, nil
}

// Key returns the Redis key for table.
func (s *RedisStore) Key(table string) string {
	return s.prefix + table + metadataSuffix
}

// Get retrieves the record for table from Redis.
func (s *RedisStore) Get(ctx context.Context, table string) (*metadata.Record, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.Key(table)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Not cached yet, not an error
		}
		return nil, fmt.Errorf("failed to get metadata from redis: %w", err)
	}

	var rec metadata.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse metadata from redis: %w", err)
	}
	if rec.TableID == "" {
		return nil, nil
	}

	return &rec, nil
}

// Set stores the record for table in Redis with no expiry.
func (s *RedisStore) Set(ctx context.Context, table string, rec *metadata.Record) error {
	if err := validTable(table); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := s.client.Set(ctx, s.Key(table), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set metadata in redis: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
