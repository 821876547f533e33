// Package cache caches competition snapshots in Redis so repeated scans of
// the same keyword do not burn YouTube API quota. The cache is optional:
// with no Redis address configured every lookup is a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nicheradar/nicheradar/internal/core/domain"
)

const (
	competitionKeyFmt = "competition:%s"
	pingTimeout       = 5 * time.Second
)

// CompetitionCache stores keyword competition snapshots with a TTL.
type CompetitionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewCompetitionCache connects to Redis at addr. An empty addr disables the
// cache; a failed ping disables it too, logged as a warning, so a missing
// Redis never blocks a scan.
func NewCompetitionCache(ctx context.Context, addr string, ttl time.Duration, logger *zerolog.Logger) *CompetitionCache {
	c := &CompetitionCache{ttl: ttl, logger: logger}

	if addr == "" {
		logger.Info().Msg("redis address not set, competition cache disabled")

		return c
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, competition cache disabled")

		_ = client.Close()

		return c
	}

	c.client = client

	return c
}

// Enabled reports whether a Redis connection is available.
func (c *CompetitionCache) Enabled() bool {
	return c.client != nil
}

// Get returns the cached snapshot for a topic key, or (nil, false) on miss.
// Read errors other than a plain miss are logged and treated as misses.
func (c *CompetitionCache) Get(ctx context.Context, topicKey string) (*domain.CompetitionSnapshot, bool) {
	if c.client == nil {
		return nil, false
	}

	val, err := c.client.Get(ctx, fmt.Sprintf(competitionKeyFmt, topicKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("topic", topicKey).Msg("competition cache read failed")
		}

		return nil, false
	}

	var snap domain.CompetitionSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		c.logger.Warn().Err(err).Str("topic", topicKey).Msg("competition cache entry corrupt")

		return nil, false
	}

	return &snap, true
}

// Set stores a snapshot under the topic key with the configured TTL.
func (c *CompetitionCache) Set(ctx context.Context, topicKey string, snap *domain.CompetitionSnapshot) error {
	if c.client == nil {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal competition snapshot: %w", err)
	}

	if err := c.client.Set(ctx, fmt.Sprintf(competitionKeyFmt, topicKey), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("store competition snapshot: %w", err)
	}

	return nil
}

// Close releases the Redis connection.
func (c *CompetitionCache) Close() error {
	if c.client == nil {
		return nil
	}

	return c.client.Close()
}
