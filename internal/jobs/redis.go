package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps job records in a shared Redis instance so every gateway
// instance answers a status poll with the same record, regardless of which
// instance runs the job.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed job store.
func NewRedisStore(client redis.UniversalClient, retention time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &RedisStore{
		client:    client,
		retention: retention,
		keyPrefix: "job",
	}, nil
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + ":" + id
}

// Put implements Store. Every write refreshes the TTL, so records expire
// retention after their last update.
func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, s.key(rec.ID), data, s.retention).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &rec, nil
}
