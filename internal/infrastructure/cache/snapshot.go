// Package cache keeps the latest belief snapshot per user in Redis so the
// read path never touches Postgres or waits behind an in-flight cycle.
// Writes go through on cycle commit; misses fall back to the repository.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frontieralpha/frontier/internal/domain"
)

// Config holds Redis connection settings for the snapshot cache.
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Enabled  bool          `yaml:"enabled"`
}

// DefaultConfig returns a disabled cache pointing at the local default.
func DefaultConfig() Config {
	return Config{
		Addr:    "localhost:6379",
		TTL:     15 * time.Minute,
		Enabled: false,
	}
}

// SnapshotCache is the Redis-backed belief snapshot cache.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects a snapshot cache and verifies the connection.
func New(ctx context.Context, cfg Config) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl}, nil
}

func beliefKey(userID string) string {
	return "frontier:beliefs:" + userID
}

// GetBeliefs returns the cached snapshot, or nil on a miss.
func (c *SnapshotCache) GetBeliefs(ctx context.Context, userID string) (*domain.BeliefState, error) {
	payload, err := c.client.Get(ctx, beliefKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get belief snapshot: %w", err)
	}

	var state domain.BeliefState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal belief snapshot: %w", err)
	}
	return &state, nil
}

// SetBeliefs writes through the latest snapshot.
func (c *SnapshotCache) SetBeliefs(ctx context.Context, state *domain.BeliefState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal belief snapshot: %w", err)
	}
	if err := c.client.Set(ctx, beliefKey(state.UserID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set belief snapshot: %w", err)
	}
	return nil
}

// Invalidate drops a user's snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, beliefKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate belief snapshot: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
