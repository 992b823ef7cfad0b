package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
)

const lockStripes = 64

// WindowStore holds the per-key request log of the sliding window
type WindowStore interface {
	Get(ctx context.Context, key string) ([]time.Time, error)
	// Set replaces the log for key; an empty slice removes the key
	Set(ctx context.Context, key string, timestamps []time.Time) error
	Delete(ctx context.Context, key string) error
	Range(ctx context.Context, fn func(key string) bool) error
}

// RateLimitConfig holds configuration for the sliding window limiter
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// RateLimitService is a sliding window log limiter. Read-modify-write on a
// key is serialised by a striped mutex; distinct keys proceed in parallel.
type RateLimitService struct {
	store  WindowStore
	config RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
	locks  [lockStripes]sync.Mutex
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store WindowStore, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source
func (s *RateLimitService) WithClock(now func() time.Time) *RateLimitService {
	s.now = now
	return s
}

func (s *RateLimitService) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

// CheckLimit records a request for key if the window has room. Rejected
// requests are not recorded.
func (s *RateLimitService) CheckLimit(ctx context.Context, key string) (*models.RateLimitResult, error) {
	limit := s.config.MaxAttempts
	if !s.config.Enabled {
		return &models.RateLimitResult{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	now := s.now()
	timestamps, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("rate limit lookup: %w", err)
	}
	kept := pruneWindow(timestamps, now.Add(-s.config.Window))

	if len(kept) >= limit {
		if len(kept) != len(timestamps) {
			if err := s.store.Set(ctx, key, kept); err != nil {
				return nil, fmt.Errorf("rate limit update: %w", err)
			}
		}
		retryAfter := kept[0].Add(s.config.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &models.RateLimitResult{
			Allowed:    false,
			Current:    len(kept),
			Limit:      limit,
			Remaining:  0,
			RetryAfter: retryAfter,
		}, nil
	}

	kept = append(kept, now)
	if err := s.store.Set(ctx, key, kept); err != nil {
		return nil, fmt.Errorf("rate limit update: %w", err)
	}

	return &models.RateLimitResult{
		Allowed:   true,
		Current:   len(kept),
		Limit:     limit,
		Remaining: limit - len(kept),
	}, nil
}

// ResetLimit clears all recorded requests for key
func (s *RateLimitService) ResetLimit(ctx context.Context, key string) error {
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	s.logger.Info("rate limit reset", slog.String("key", key))
	return nil
}

// Cleanup prunes every key and drops those left empty. It returns the number
// of keys removed; a second call with no traffic in between removes nothing.
func (s *RateLimitService) Cleanup(ctx context.Context) (int, error) {
	var keys []string
	if err := s.store.Range(ctx, func(key string) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		return 0, fmt.Errorf("rate limit sweep: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		dropped, err := s.pruneKey(ctx, key)
		if err != nil {
			return removed, err
		}
		if dropped {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("rate limit windows pruned", slog.Int("removed_keys", removed), slog.Int("scanned_keys", len(keys)))
	}
	return removed, nil
}

func (s *RateLimitService) pruneKey(ctx context.Context, key string) (bool, error) {
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	timestamps, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit sweep: %w", err)
	}
	// already gone, for instance reset between Range and here
	if len(timestamps) == 0 {
		return false, nil
	}
	kept := pruneWindow(timestamps, s.now().Add(-s.config.Window))
	if len(kept) == len(timestamps) {
		return false, nil
	}
	if err := s.store.Set(ctx, key, kept); err != nil {
		return false, fmt.Errorf("rate limit sweep: %w", err)
	}
	return len(kept) == 0, nil
}

// pruneWindow keeps timestamps strictly after windowStart, preserving order
func pruneWindow(timestamps []time.Time, windowStart time.Time) []time.Time {
	kept := make([]time.Time, 0, len(timestamps)+1)
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	return kept
}
