package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"meetprobe/internal/core/state"
)

func snapshotKey(prefix string) string { return prefix + "snapshot" }

// RedisSnapshotSink stores the latest snapshot under one key and publishes
// each one on a channel for remote watchers.
type RedisSnapshotSink struct {
	client  *redis.Client
	key     string
	channel string
	ttl     time.Duration
}

func NewRedisSnapshotSink(client *redis.Client, prefix, channel string, ttl time.Duration) *RedisSnapshotSink {
	return &RedisSnapshotSink{
		client:  client,
		key:     snapshotKey(prefix),
		channel: channel,
		ttl:     ttl,
	}
}

func (s *RedisSnapshotSink) Save(ctx context.Context, snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key, data, s.ttl)
	if s.channel != "" {
		pipe.Publish(ctx, s.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot to Redis: %w", err)
	}
	return nil
}

func (s *RedisSnapshotSink) Load(ctx context.Context) (state.Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.Snapshot{}, false, nil
	}
	if err != nil {
		return state.Snapshot{}, false, fmt.Errorf("failed to get snapshot from Redis: %w", err)
	}

	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return state.Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *RedisSnapshotSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the factory owns the client.
func (s *RedisSnapshotSink) Close() error {
	return nil
}
