package models

import "time"

// Failure reason codes stored on login attempts
const (
	FailureReasonInvalidCredentials = "invalid_credentials"
	FailureReasonAccountLocked      = "account_locked"
	FailureReasonAdminReset         = "admin_reset"
)

// LoginAttempt is one immutable row of the sign-in audit log
type LoginAttempt struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
	IPAddress     *string   `db:"ip_address"`
	UserAgent     *string   `db:"user_agent"`
	CreatedAt     time.Time `db:"created_at"`
}

// LockoutSnapshot is the result of the three lockout reads, taken inside one transaction.
type LockoutSnapshot struct {
	LastSuccessAt *time.Time
	FailedCount   int
	LastFailureAt *time.Time
}

// LockoutStatus is derived from the attempt log on every check; it is never stored.
type LockoutStatus struct {
	IsLocked          bool       `json:"is_locked"`
	FailedAttempts    int        `json:"failed_attempts"`
	RemainingAttempts int        `json:"remaining_attempts"`
	LockoutUntil      *time.Time `json:"lockout_until,omitempty"`
}
