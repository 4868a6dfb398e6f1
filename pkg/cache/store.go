// Package cache is a two-tier store for short-lived artifacts (extracted
// document text, mainly). The primary tier is a networked backend; a local
// in-process map takes over whenever the primary is absent or failing.
// Artifacts cached here are needed for at most one conversation turn, so
// losing them at TTL expiry is intended behavior.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-chat-core/internal/pkg/logger"
	"ai-chat-core/pkg/health"

	gocache "github.com/patrickmn/go-cache"
)

// ErrInvalidTTL rejects non-positive expirations at the door.
var ErrInvalidTTL = errors.New("cache: ttl must be positive")

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	BackendPrimary  = "primary"
	BackendFallback = "fallback"
)

// Health reports which tier is currently authoritative.
type Health struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

type Store struct {
	primary  Backend // nil when no networked backend was configured
	fallback *gocache.Cache
	monitor  *health.Monitor
	logger   logger.ILogger
}

// NewStore builds the two-tier store. The fallback map has its janitor
// disabled: expiry is enforced lazily at read time, there is no sweep
// goroutine.
func NewStore(primary Backend, monitor *health.Monitor, log logger.ILogger) *Store {
	return &Store{
		primary:  primary,
		fallback: gocache.New(gocache.NoExpiration, 0),
		monitor:  monitor,
		logger:   log,
	}
}

// Put stores payload under key for ttl. It returns false when the primary
// tier did not take the write (degraded mode, the fallback holds the entry),
// letting callers log the degradation without treating it as a hard error.
// Only a serialization failure is an error.
func (s *Store) Put(ctx context.Context, key string, payload interface{}, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("cache: serialize payload: %w", err)
	}

	primaryOK := false
	if s.primary != nil && s.monitor.IsConnected() {
		err := s.primary.Set(ctx, key, data, ttl)
		s.monitor.ReportOutcome(err == nil)
		if err != nil {
			s.logger.Warn("Cache", "Primary write failed, entry kept in fallback", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		} else {
			primaryOK = true
		}
	}

	if !primaryOK {
		s.fallback.Set(key, data, ttl)
	}

	return primaryOK, nil
}

// Get returns the payload for key, or false when absent or expired.
// Primary connectivity failures are absorbed: the read is retried against
// the fallback map, never surfaced to the caller.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if s.primary != nil && s.monitor.IsConnected() {
		data, err := s.primary.Get(ctx, key)
		switch {
		case err == nil:
			s.monitor.ReportOutcome(true)
			return data, true
		case errors.Is(err, ErrKeyNotFound):
			// A miss is still a successful round-trip. The entry may live
			// in the fallback after a degraded write, so keep looking.
			s.monitor.ReportOutcome(true)
		default:
			s.monitor.ReportOutcome(false)
			s.logger.Warn("Cache", "Primary read failed, trying fallback", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	// go-cache enforces expiry lazily on read; an expired entry comes back
	// as not found, which is exactly the contract here.
	if x, found := s.fallback.Get(key); found {
		return x.([]byte), true
	}
	return nil, false
}

// Delete removes key from both tiers. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) {
	if s.primary != nil {
		if err := s.primary.Del(ctx, key); err != nil {
			s.logger.Debug("Cache", "Primary delete failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	s.fallback.Delete(key)
}

// HealthCheck performs one lightweight round-trip to the primary and reports
// which tier is currently authoritative.
func (s *Store) HealthCheck(ctx context.Context) Health {
	if s.primary == nil {
		return Health{Status: StatusUnhealthy, Backend: BackendFallback}
	}
	if err := s.primary.Ping(ctx); err != nil {
		s.monitor.ReportOutcome(false)
		return Health{Status: StatusUnhealthy, Backend: BackendFallback}
	}
	s.monitor.ReportOutcome(true)
	return Health{Status: StatusHealthy, Backend: BackendPrimary}
}
