package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// CacheRepository abstracts the byte-level cache backend.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheService wraps the cache backend with JSON serialization and
// hit/miss accounting. A nil repository disables caching transparently.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService builds a cache facade.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheService{
		repo:    repo,
		metrics: metrics,
		ttl:     ttl,
		logger:  logger,
		enabled: repo != nil,
	}
}

// Get loads and decodes a cached value; returns false on miss or error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.enabled {
		return false
	}
	raw, err := s.repo.Get(ctx, key)
	if err != nil || raw == nil {
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cache payload corrupted", zap.String("key", key), zap.Error(err))
		_ = s.repo.Delete(ctx, key)
		return false
	}
	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
	return true
}

// Set encodes and stores a value with the configured TTL. Failures are
// logged, never surfaced.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.enabled {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.repo.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete drops a cached key.
func (s *CacheService) Delete(ctx context.Context, key string) {
	if !s.enabled {
		return
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
