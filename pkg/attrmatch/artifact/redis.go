package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

// DefaultRedisPrefix namespaces artifact keys.
const DefaultRedisPrefix = "attrmatch:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore publishes bundles to Redis so lookup services can load them.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w: %v", internalerr.ErrStoreUnavailable, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(rawURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(RedisConfig{Addr: opts.Addr, Password: opts.Password, DB: opts.DB, Prefix: prefix})
}

func (s *RedisStore) latestKey() string {
	return s.prefix + "latest"
}

func (s *RedisStore) bundleKey(runID string) string {
	return s.prefix + "bundle:" + runID
}

// Save writes the bundle and moves the latest pointer in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, b *Bundle) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.bundleKey(b.RunID), data, 0)
		pipe.Set(ctx, s.latestKey(), b.RunID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save bundle: %w", err)
	}
	return nil
}

// Latest implements Store.
func (s *RedisStore) Latest(ctx context.Context) (*Bundle, error) {
	runID, err := s.client.Get(ctx, s.latestKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("latest bundle: %w", internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return s.Get(ctx, runID)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, runID string) (*Bundle, error) {
	data, err := s.client.Get(ctx, s.bundleKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("bundle %s: %w", runID, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return Decode(data)
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
