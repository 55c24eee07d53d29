// Package cache provides an optional Redis-backed cache for animal detail
// payloads. The fetch phase consults it before issuing a detail request and
// stores fetched payloads afterwards, so a rerun against the same dataset
// skips most of the slow upstream calls. Correctness never depends on it:
// with no Redis client configured every lookup is a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested animal was not found in cache.
	ErrCacheMiss = errors.New("cache miss")
)

// DefaultTTL keeps cached details for one hour.
const DefaultTTL = time.Hour

// Store caches detail payloads in Redis keyed by animal id.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a cache store. TTL <= 0 falls back to DefaultTTL.
func New(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves a cached detail payload. Returns ErrCacheMiss if the animal
// is not cached.
func (s *Store) Get(ctx context.Context, animalID int64) (json.RawMessage, error) {
	data, err := s.redis.Get(ctx, detailKey(animalID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.Inc()
	return data, nil
}

// Set stores a detail payload under the configured TTL.
func (s *Store) Set(ctx context.Context, animalID int64, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("payload cannot be empty")
	}
	if err := s.redis.Set(ctx, detailKey(animalID), payload, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cached detail payload.
func (s *Store) Delete(ctx context.Context, animalID int64) error {
	if err := s.redis.Del(ctx, detailKey(animalID)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// detailKey builds the deterministic cache key for an animal.
func detailKey(animalID int64) string {
	return fmt.Sprintf("animals:detail:%d", animalID)
}
