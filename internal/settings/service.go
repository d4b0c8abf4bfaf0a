package settings

import (
	"context"
	"errors"
	"time"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "automation:settings:"

// Store is the persistent flag storage.
type Store interface {
	Lookup(ctx context.Context, tenantID *uuid.UUID, key string) (enabled, found bool, err error)
	Set(ctx context.Context, tenantID *uuid.UUID, key string, enabled bool) error
}

// Service resolves automation flags. Automations without a stored flag are enabled.
type Service struct {
	store Store
	cache *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewService builds the service. A nil cache or non-positive ttl disables caching.
func NewService(store Store, cache *redis.Client, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, cache: cache, ttl: ttl, log: log}
}

// IsAutomationEnabled answers the gate check for one tenant and key. Cache
// failures fall through to the store; store failures are DependencyUnavailable.
func (s *Service) IsAutomationEnabled(ctx context.Context, tenantID *uuid.UUID, key string) (bool, error) {
	cacheKey := cacheKeyFor(tenantID, key)

	if s.cachingEnabled() {
		val, err := s.cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			return val == "1", nil
		case !errors.Is(err, redis.Nil):
			s.log.Warn("settings cache read failed", "error", err, "key", cacheKey)
		}
	}

	enabled, found, err := s.store.Lookup(ctx, tenantID, key)
	if err != nil {
		if apperr.Is(err, apperr.KindDependencyUnavailable) {
			return false, err
		}
		return false, apperr.DependencyUnavailable("settings service unavailable", err)
	}
	if !found {
		enabled = true
	}

	if s.cachingEnabled() {
		val := "0"
		if enabled {
			val = "1"
		}
		if err := s.cache.Set(ctx, cacheKey, val, s.ttl).Err(); err != nil {
			s.log.Warn("settings cache write failed", "error", err, "key", cacheKey)
		}
	}
	return enabled, nil
}

// SetAutomationEnabled stores a flag and drops the cached value. Setting the
// platform flag (nil tenant) cannot invalidate tenant keys, so those expire
// with the TTL.
func (s *Service) SetAutomationEnabled(ctx context.Context, tenantID *uuid.UUID, key string, enabled bool) error {
	if err := s.store.Set(ctx, tenantID, key, enabled); err != nil {
		return err
	}
	if s.cachingEnabled() {
		if err := s.cache.Del(ctx, cacheKeyFor(tenantID, key)).Err(); err != nil {
			s.log.Warn("settings cache invalidation failed", "error", err)
		}
	}
	return nil
}

func (s *Service) cachingEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

func cacheKeyFor(tenantID *uuid.UUID, key string) string {
	scope := "global"
	if tenantID != nil {
		scope = tenantID.String()
	}
	return cachePrefix + scope + ":" + key
}
