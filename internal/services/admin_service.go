package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	pkgauth "github.com/derushio/d-next-ddd-example-sub002/pkg/auth"
	pkglogger "github.com/derushio/d-next-ddd-example-sub002/pkg/logger"
)

// AdminLockoutTracker is the subset of LockoutService used by operators.
type AdminLockoutTracker interface {
	CheckLockout(ctx context.Context, email string) (*models.LockoutStatus, error)
	ResetAttempts(ctx context.Context, email string) error
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// AdminRateLimiter is the subset of RateLimitService used by operators.
type AdminRateLimiter interface {
	ResetLimit(ctx context.Context, key string) error
	Cleanup(ctx context.Context) (int, error)
}

// MaintenanceResult reports what one cleanup pass removed.
type MaintenanceResult struct {
	RateLimitKeysRemoved int   `json:"rate_limit_keys_removed"`
	LoginAttemptsDeleted int64 `json:"login_attempts_deleted"`
}

// AdminService exposes lockout and rate limit administration.
type AdminService struct {
	lockout       AdminLockoutTracker
	limiter       AdminRateLimiter
	retentionDays int
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	lockout AdminLockoutTracker,
	limiter AdminRateLimiter,
	retentionDays int,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AdminService {
	return &AdminService{
		lockout:       lockout,
		limiter:       limiter,
		retentionDays: retentionDays,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

type emailRequest struct {
	Email string `validate:"required,email,max=254"`
}

// GetLockoutStatus returns the derived lock state for email.
func (s *AdminService) GetLockoutStatus(ctx context.Context, email string) (*models.LockoutStatus, error) {
	email = normalizeEmail(email)
	if err := ValidateRequest(&emailRequest{Email: email}); err != nil {
		return nil, err
	}

	status, err := s.lockout.CheckLockout(ctx, email)
	if err != nil {
		s.logger.Error("admin: lockout status failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return status, nil
}

// ResetLockout clears the effective failure count for email.
func (s *AdminService) ResetLockout(ctx context.Context, adminID, email string) error {
	email = normalizeEmail(email)
	if err := ValidateRequest(&emailRequest{Email: email}); err != nil {
		return err
	}

	if err := s.lockout.ResetAttempts(ctx, email); err != nil {
		s.logger.Error("admin: lockout reset failed", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAdminAction(ctx, pkglogger.EventLockoutReset, adminID, map[string]string{
		"email": pkglogger.SanitizedEmail(email),
	})
	return nil
}

// ResetRateLimit clears a limiter key such as "signin:203.0.113.10".
func (s *AdminService) ResetRateLimit(ctx context.Context, adminID, key string) error {
	if key == "" {
		return &models.ValidationError{Field: "key", Message: "this field is required"}
	}

	if err := s.limiter.ResetLimit(ctx, key); err != nil {
		s.logger.Error("admin: rate limit reset failed", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAdminAction(ctx, pkglogger.EventRateLimitReset, adminID, map[string]string{
		"key": pkglogger.SanitizedKey(key),
	})
	return nil
}

// RunMaintenance prunes idle rate limit windows and expired login attempts.
func (s *AdminService) RunMaintenance(ctx context.Context) (*MaintenanceResult, error) {
	return RunMaintenance(ctx, s.limiter, s.lockout, s.retentionDays)
}

// RunMaintenance performs one cleanup pass. Both steps run even if the first fails.
func RunMaintenance(ctx context.Context, limiter AdminRateLimiter, lockout AdminLockoutTracker, retentionDays int) (*MaintenanceResult, error) {
	var result MaintenanceResult
	var errs []error

	removed, err := limiter.Cleanup(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("rate limit cleanup: %w", err))
	}
	result.RateLimitKeysRemoved = removed

	deleted, err := lockout.Cleanup(ctx, retentionDays)
	if err != nil {
		errs = append(errs, fmt.Errorf("login attempt cleanup: %w", err))
	}
	result.LoginAttemptsDeleted = deleted

	return &result, errors.Join(errs...)
}

// EnsureAdmin creates the bootstrap admin account if no account uses email.
func EnsureAdmin(ctx context.Context, users UserRepository, email, password string, cost int, logger *slog.Logger) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("admin lookup: %w", err)
	}

	if len(password) < pkgauth.MinPasswordLen {
		return fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", pkgauth.MinPasswordLen)
	}

	hash, err := pkgauth.HashPassword(password, cost)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}

	created, err := users.Create(ctx, &models.User{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if errors.Is(err, models.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("admin create: %w", err)
	}

	logger.Info("bootstrap admin created",
		slog.String("user_id", created.ID),
		slog.String("email", pkglogger.SanitizedEmail(created.Email)),
		slog.Int("bcrypt_cost", cost))
	return nil
}
