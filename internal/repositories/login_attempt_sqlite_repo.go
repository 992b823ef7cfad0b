package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/database"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/google/uuid"
)

// SQLiteLoginAttemptRepository stores attempts with unix millisecond timestamps
type SQLiteLoginAttemptRepository struct {
	db *database.SQLiteDB
}

func NewSQLiteLoginAttemptRepository(db *database.SQLiteDB) *SQLiteLoginAttemptRepository {
	return &SQLiteLoginAttemptRepository{db: db}
}

func (r *SQLiteLoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	_, err := r.db.Conn.ExecContext(ctx, `
		INSERT INTO login_attempts (id, email, success, failure_reason, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		attempt.ID,
		attempt.Email,
		attempt.Success,
		attempt.FailureReason,
		attempt.IPAddress,
		attempt.UserAgent,
		toMillis(attempt.CreatedAt),
	)

	return database.MapSQLiteError(err)
}

func (r *SQLiteLoginAttemptRepository) GetLockoutSnapshot(ctx context.Context, email string, window time.Duration) (*models.LockoutSnapshot, error) {
	var snap models.LockoutSnapshot

	err := r.db.WithSnapshot(ctx, func(tx *sql.Tx) error {
		var lastSuccess sql.NullInt64
		if err := tx.QueryRowContext(ctx, `
			SELECT MAX(created_at) FROM login_attempts
			WHERE email = ? AND success = 1
		`, email).Scan(&lastSuccess); err != nil {
			return err
		}
		if lastSuccess.Valid {
			t := fromMillis(lastSuccess.Int64)
			snap.LastSuccessAt = &t
		}

		var lastFailure sql.NullInt64
		if err := tx.QueryRowContext(ctx, `
			SELECT MAX(created_at) FROM login_attempts
			WHERE email = ? AND success = 0 AND created_at >= ?
		`, email, lastSuccess.Int64).Scan(&lastFailure); err != nil {
			return err
		}
		if !lastFailure.Valid {
			return nil
		}
		t := fromMillis(lastFailure.Int64)
		snap.LastFailureAt = &t

		boundary := lastFailure.Int64 - window.Milliseconds()
		if lastSuccess.Valid && lastSuccess.Int64 > boundary {
			boundary = lastSuccess.Int64
		}

		return tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM login_attempts
			WHERE email = ? AND success = 0 AND created_at >= ? AND created_at <= ?
		`, email, boundary, lastFailure.Int64).Scan(&snap.FailedCount)
	})
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}

	return &snap, nil
}

func (r *SQLiteLoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.Conn.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, database.MapSQLiteError(err)
	}
	return res.RowsAffected()
}
