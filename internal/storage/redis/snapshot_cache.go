// Package redis caches the latest snapshot row set so the signal stage
// can run without a full history read. A cache miss falls back to the
// history store; the cache is never the source of truth.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

const latestSnapshotKey = "leadlag:snapshot:latest"

// SnapshotCache stores the latest snapshot rows as a single JSON value.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures the cache connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds staleness; an expired entry is a miss.
	TTL time.Duration
}

// NewSnapshotCache connects to redis and verifies the connection.
func NewSnapshotCache(ctx context.Context, opts Options) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl}, nil
}

// Put replaces the cached latest row set.
func (c *SnapshotCache) Put(ctx context.Context, rows []*domain.LeaderSnapshot) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal snapshot rows: %w", err)
	}
	if err := c.client.Set(ctx, latestSnapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot cache: %w", err)
	}
	return nil
}

// Get returns the cached latest row set. Returns storage.ErrNotFound on a
// miss so callers can fall back to the history store.
func (c *SnapshotCache) Get(ctx context.Context) ([]*domain.LeaderSnapshot, error) {
	data, err := c.client.Get(ctx, latestSnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot cache: %w", err)
	}

	var rows []*domain.LeaderSnapshot
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot rows: %w", err)
	}
	for _, r := range rows {
		domain.NormalizeSnapshot(r)
	}
	return rows, nil
}

// Close releases the client.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
