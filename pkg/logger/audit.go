package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventSignIn          = "sign_in"
	EventAccountLocked   = "account_locked"
	EventRateLimited     = "rate_limited"
	EventLockoutReset    = "lockout_reset"
	EventRateLimitReset  = "rate_limit_reset"
	EventAttemptsCleanup = "login_attempts_cleanup"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogAuthAttempt logs a sign-in outcome. Emails are always masked.
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}
	attrs := al.baseAttrs("auth", event.EventType)
	attrs = append(attrs, slog.Bool("success", event.Success))

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogAccountLocked records the transition of an account into lockout
func (al *AuditLogger) LogAccountLocked(ctx context.Context, email, ipAddress string, failedAttempts int, until time.Time) {
	if al == nil {
		return
	}
	attrs := al.baseAttrs("lockout", EventAccountLocked)
	attrs = append(attrs,
		slog.String("email", SanitizedEmail(email)),
		slog.Int("failed_attempts", failedAttempts),
		slog.String("locked_until", until.UTC().Format(time.RFC3339)),
	)
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
}

// LogRateLimited records a rejected request. The key may embed an email and is masked.
func (al *AuditLogger) LogRateLimited(ctx context.Context, key string, current, limit int, retryAfter time.Duration) {
	if al == nil {
		return
	}
	attrs := al.baseAttrs("ratelimit", EventRateLimited)
	attrs = append(attrs,
		slog.String("key", SanitizedKey(key)),
		slog.Int("current", current),
		slog.Int("limit", limit),
		slog.Duration("retry_after", retryAfter),
	)
	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
}

// LogAdminAction logs operator actions such as lockout or rate limit resets
func (al *AuditLogger) LogAdminAction(ctx context.Context, eventType, adminID string, metadata map[string]string) {
	if al == nil {
		return
	}
	attrs := al.baseAttrs("admin", eventType)
	if adminID != "" {
		attrs = append(attrs, slog.String("admin_id", adminID))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

func (al *AuditLogger) baseAttrs(auditType, eventType string) []slog.Attr {
	return []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", eventType),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
}
