package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/services"
)

// CleanupManager periodically prunes idle rate limit windows and login
// attempts older than the retention period
type CleanupManager struct {
	limiter       services.AdminRateLimiter
	lockout       services.AdminLockoutTracker
	retentionDays int
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	limiter services.AdminRateLimiter,
	lockout services.AdminLockoutTracker,
	retentionDays int,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		limiter:       limiter,
		lockout:       lockout,
		retentionDays: retentionDays,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start runs a pass immediately and then on every tick until ctx is done or Stop is called
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := services.RunMaintenance(cleanupCtx, cm.limiter, cm.lockout, cm.retentionDays)
	if err != nil {
		cm.logger.Error("cleanup pass failed", slog.Any("error", err))
	}

	if result != nil && (result.RateLimitKeysRemoved > 0 || result.LoginAttemptsDeleted > 0) {
		cm.logger.Info("cleanup pass completed",
			slog.Int("rate_limit_keys_removed", result.RateLimitKeysRemoved),
			slog.Int64("login_attempts_deleted", result.LoginAttemptsDeleted),
		)
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
