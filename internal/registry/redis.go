package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "beacon:registry:"

// RedisStore keeps tracking-id mappings in Redis with a per-key TTL, so
// registrations survive a process restart and expire without a janitor.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis at the given URL (redis://...) and
// verifies the connection before returning.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, trackingID string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal registry entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+trackingID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", trackingID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, trackingID string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+trackingID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", trackingID, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("unmarshal registry entry %s: %w", trackingID, err)
	}
	return e, true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
