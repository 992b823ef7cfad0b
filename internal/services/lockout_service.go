package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	pkglogger "github.com/derushio/d-next-ddd-example-sub002/pkg/logger"
)

// LoginAttemptRepository defines the persistence the lockout tracker needs
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	GetLockoutSnapshot(ctx context.Context, email string, window time.Duration) (*models.LockoutSnapshot, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutConfig holds configuration for account lockout
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
}

// AttemptInput describes one sign-in outcome to record
type AttemptInput struct {
	Email         string
	Success       bool
	IPAddress     string
	UserAgent     string
	FailureReason string
}

// LockoutService derives lockout status from the append-only attempt log
type LockoutService struct {
	repo   LoginAttemptRepository
	config LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewLockoutService(repo LoginAttemptRepository, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// Threshold is the number of failures that locks an account
func (s *LockoutService) Threshold() int {
	return s.config.Threshold
}

// RecordAttempt appends an attempt. It records even when lockout is disabled.
func (s *LockoutService) RecordAttempt(ctx context.Context, in AttemptInput) error {
	attempt := &models.LoginAttempt{
		Email:         normalizeEmail(in.Email),
		Success:       in.Success,
		FailureReason: optionalString(in.FailureReason),
		IPAddress:     optionalString(in.IPAddress),
		UserAgent:     optionalString(in.UserAgent),
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}

// CheckLockout computes the current lock state for email. Failures count
// within the lockout duration ending at the last failure since the last
// success, so a lock always lasts the full duration after the failure that
// completed it. Locks expire lazily: once the last qualifying failure is older
// than the lockout duration the account reads as unlocked with a full allowance.
func (s *LockoutService) CheckLockout(ctx context.Context, email string) (*models.LockoutStatus, error) {
	if !s.config.Enabled {
		return s.unlocked(), nil
	}

	snap, err := s.repo.GetLockoutSnapshot(ctx, normalizeEmail(email), s.config.Duration)
	if err != nil {
		return nil, fmt.Errorf("lockout snapshot: %w", err)
	}

	if snap.LastFailureAt == nil {
		return s.unlocked(), nil
	}
	until := snap.LastFailureAt.Add(s.config.Duration)
	if !until.After(s.now()) {
		return s.unlocked(), nil
	}

	remaining := s.config.Threshold - snap.FailedCount
	if remaining < 0 {
		remaining = 0
	}
	status := &models.LockoutStatus{
		FailedAttempts:    snap.FailedCount,
		RemainingAttempts: remaining,
	}
	if snap.FailedCount >= s.config.Threshold {
		status.IsLocked = true
		status.LockoutUntil = &until
	}
	return status, nil
}

// ResetAttempts writes a synthetic success so later checks start from a clean
// boundary. History is never deleted.
func (s *LockoutService) ResetAttempts(ctx context.Context, email string) error {
	if err := s.RecordAttempt(ctx, AttemptInput{
		Email:         email,
		Success:       true,
		FailureReason: models.FailureReasonAdminReset,
	}); err != nil {
		return err
	}
	s.logger.Info("lockout reset", slog.String("email", pkglogger.SanitizedEmail(normalizeEmail(email))))
	return nil
}

// Cleanup deletes attempts older than retentionDays and returns how many were removed
func (s *LockoutService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", retentionDays)
	}

	cutoff := s.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("login attempt cleanup: %w", err)
	}
	return deleted, nil
}

func (s *LockoutService) unlocked() *models.LockoutStatus {
	return &models.LockoutStatus{RemainingAttempts: s.config.Threshold}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
