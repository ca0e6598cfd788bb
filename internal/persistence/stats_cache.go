package persistence

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
)

// StatsCache stores computed incident statistics in Redis under the filter key.
// Cache misses and Redis errors both fall through to a fresh computation.
type StatsCache struct {
	redis  *Redis
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsCache builds a cache with the given TTL. A zero TTL disables caching.
func NewStatsCache(redis *Redis, ttl time.Duration, logger *zap.Logger) *StatsCache {
	return &StatsCache{redis: redis, ttl: ttl, logger: logger}
}

// Get returns the cached statistics for key, or false when absent.
func (c *StatsCache) Get(ctx context.Context, key string) (*domain.IncidentStatistics, bool) {
	if c == nil || c.redis == nil || c.redis.Client == nil || c.ttl <= 0 {
		return nil, false
	}
	raw, err := c.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var stats domain.IncidentStatistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.Warn("corrupt stats cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &stats, true
}

// Set stores statistics under key for the configured TTL.
func (c *StatsCache) Set(ctx context.Context, key string, stats *domain.IncidentStatistics) {
	if c == nil || c.redis == nil || c.redis.Client == nil || c.ttl <= 0 || stats == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.redis.Client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache stats", zap.String("key", key), zap.Error(err))
	}
}
