// Package cache provides multi-tier caching for prediction results.
// Identical intake features always produce the same score for a given
// model, so cached entries stay valid until the model is swapped.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/domain"
)

const redisKeyPrefix = "triage:prediction:"

// Config represents configuration for the prediction cache
type Config struct {
	// Maximum number of entries in the in-memory tier
	MaxMemorySize int
	// Redis client for the distributed tier, nil disables it
	RedisClient *redis.Client
	// TTL applied to Redis entries
	RedisTTL time.Duration
}

// Stats tracks cache performance metrics
type Stats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RedisHits    int64     `json:"redis_hits"`
	RedisMisses  int64     `json:"redis_misses"`
	Purges       int64     `json:"purges"`
	LastReset    time.Time `json:"last_reset"`
}

// PredictionCache caches scored results keyed by model ID and intake
// features. Tier 1 is an in-memory LRU for hot entries, tier 2 an
// optional shared Redis instance.
type PredictionCache struct {
	memory   *lru.Cache[string, domain.PredictionResult]
	redis    *redis.Client
	redisTTL time.Duration

	logger  *logrus.Logger
	stats   Stats
	statsMu sync.RWMutex
}

// New creates a prediction cache with the given configuration
func New(config Config, logger *logrus.Logger) (*PredictionCache, error) {
	if config.MaxMemorySize <= 0 {
		config.MaxMemorySize = 1000
	}
	if config.RedisTTL == 0 {
		config.RedisTTL = time.Hour
	}

	memory, err := lru.New[string, domain.PredictionResult](config.MaxMemorySize)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	return &PredictionCache{
		memory:   memory,
		redis:    config.RedisClient,
		redisTTL: config.RedisTTL,
		logger:   logger,
		stats:    Stats{LastReset: time.Now()},
	}, nil
}

// Key builds the cache key for a feature vector scored by a model.
// The model ID is part of the key so stale entries from a replaced
// model can never be served.
func Key(modelID string, features domain.FeatureVector) string {
	payload := fmt.Sprintf("%s::%d|%d|%t|%t|%g",
		modelID, features.Age, features.Severity, features.Rural, features.Chronic, features.WaitingTime)
	hash := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(hash[:])
}

// Get retrieves a cached prediction, checking the memory tier first
// and falling back to Redis. Redis hits are promoted into memory.
func (c *PredictionCache) Get(ctx context.Context, modelID string, features domain.FeatureVector) (domain.PredictionResult, bool) {
	key := Key(modelID, features)

	if result, ok := c.memory.Get(key); ok {
		c.incrementStat(func(s *Stats) { s.MemoryHits++ })
		return result, true
	}
	c.incrementStat(func(s *Stats) { s.MemoryMisses++ })

	if c.redis == nil {
		return domain.PredictionResult{}, false
	}

	data, err := c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Redis cache lookup failed")
		}
		c.incrementStat(func(s *Stats) { s.RedisMisses++ })
		return domain.PredictionResult{}, false
	}

	var result domain.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.WithError(err).Warn("Discarding corrupt Redis cache entry")
		c.incrementStat(func(s *Stats) { s.RedisMisses++ })
		return domain.PredictionResult{}, false
	}

	c.incrementStat(func(s *Stats) { s.RedisHits++ })
	c.memory.Add(key, result)
	return result, true
}

// Set stores a prediction result in both tiers
func (c *PredictionCache) Set(ctx context.Context, modelID string, features domain.FeatureVector, result domain.PredictionResult) {
	key := Key(modelID, features)
	c.memory.Add(key, result)

	if c.redis == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal prediction for Redis")
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+key, data, c.redisTTL).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to write prediction to Redis")
	}
}

// Purge drops all cached predictions. Called when a new model is
// activated so results from the old model cannot leak through.
func (c *PredictionCache) Purge(ctx context.Context) {
	c.memory.Purge()
	c.incrementStat(func(s *Stats) { s.Purges++ })

	if c.redis == nil {
		return
	}

	iter := c.redis.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to scan Redis cache keys during purge")
		return
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			c.logger.WithError(err).Warn("Failed to delete Redis cache keys during purge")
		}
	}

	c.logger.WithField("redis_keys", len(keys)).Debug("Prediction cache purged")
}

// Stats returns a snapshot of cache performance counters
func (c *PredictionCache) Stats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// ResetStats clears performance counters
func (c *PredictionCache) ResetStats() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats = Stats{LastReset: time.Now()}
}

func (c *PredictionCache) incrementStat(update func(*Stats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	update(&c.stats)
}
