package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/database"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt appends an attempt. Rows are never updated.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	query := `
		INSERT INTO login_attempts (id, email, success, failure_reason, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.Email,
		attempt.Success,
		attempt.FailureReason,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.CreatedAt.UTC(),
	)

	return database.MapPostgresError(err)
}

// GetLockoutSnapshot reads the last success and the last failure after it,
// then counts the failures in the window that ends at that last failure. All
// reads share one snapshot transaction.
func (r *LoginAttemptRepository) GetLockoutSnapshot(ctx context.Context, email string, window time.Duration) (*models.LockoutSnapshot, error) {
	var snap models.LockoutSnapshot

	err := r.db.WithSnapshot(ctx, func(tx pgx.Tx) error {
		var lastSuccess time.Time
		err := tx.QueryRow(ctx, `
			SELECT created_at FROM login_attempts
			WHERE email = $1 AND success = true
			ORDER BY created_at DESC
			LIMIT 1
		`, email).Scan(&lastSuccess)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		default:
			snap.LastSuccessAt = &lastSuccess
		}

		var lastFailure time.Time
		err = tx.QueryRow(ctx, `
			SELECT created_at FROM login_attempts
			WHERE email = $1 AND success = false
			  AND ($2::timestamptz IS NULL OR created_at >= $2)
			ORDER BY created_at DESC
			LIMIT 1
		`, email, snap.LastSuccessAt).Scan(&lastFailure)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil
		case err != nil:
			return err
		}
		snap.LastFailureAt = &lastFailure

		boundary := lastFailure.Add(-window)
		if snap.LastSuccessAt != nil && snap.LastSuccessAt.After(boundary) {
			boundary = *snap.LastSuccessAt
		}

		return tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM login_attempts
			WHERE email = $1 AND success = false AND created_at >= $2 AND created_at <= $3
		`, email, boundary, lastFailure).Scan(&snap.FailedCount)
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &snap, nil
}

// DeleteOlderThan removes attempts created before cutoff and returns how many were deleted
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
