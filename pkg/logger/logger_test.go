package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLogger(buf *bytes.Buffer) *AuditLogger {
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	al.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return al
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@example.com", "u***@*******.com"},
		{"a@b.io", "a@*.io"},
		{"not-an-email", "[invalid-email]"},
		{"a@b@c", "[invalid-email]"},
		{"@example.com", "[invalid-email]"},
		{"longusername@localhost", "l***@localhost"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizedEmail(tt.in), tt.in)
	}
}

func TestSanitizedKey(t *testing.T) {
	assert.Equal(t, "203.0.113.10", SanitizedKey("203.0.113.10"))
	assert.Equal(t, "203.0.113.10:u***@*******.com", SanitizedKey("203.0.113.10:user@example.com"))
	assert.Equal(t, "2001:db8::1:u***@*******.com", SanitizedKey("2001:db8::1:user@example.com"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("email=a@b.com"))
	assert.True(t, SanitizeQueryString("token=abc"))
	assert.True(t, SanitizeQueryString("Access_Token=abc&page=1"))
	assert.True(t, SanitizeQueryString("bad=%zz"))
	assert.False(t, SanitizeQueryString("page=2"))
	assert.False(t, SanitizeQueryString(""))
}

func TestLogAuthAttempt_MasksEmailAndUsesWarnOnFailure(t *testing.T) {
	var buf bytes.Buffer
	al := newTestAuditLogger(&buf)

	al.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:     EventSignIn,
		Email:         "user@example.com",
		IPAddress:     "203.0.113.10",
		Success:       false,
		FailureReason: "invalid_credentials",
	})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "u***@*******.com", entry["email"])
	assert.Equal(t, "invalid_credentials", entry["failure_reason"])
	assert.Equal(t, "2026-01-02T03:04:05Z", entry["timestamp"])
	assert.NotContains(t, buf.String(), "user@example.com")
}

func TestLogAuthAttempt_SuccessIsInfo(t *testing.T) {
	var buf bytes.Buffer
	al := newTestAuditLogger(&buf)

	al.LogAuthAttempt(context.Background(), AuditEvent{EventType: EventSignIn, UserID: "u-1", Success: true})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.NotContains(t, entry, "email")
}

func TestLogAccountLocked(t *testing.T) {
	var buf bytes.Buffer
	al := newTestAuditLogger(&buf)

	al.LogAccountLocked(context.Background(), "user@example.com", "10.0.0.1", 5, time.Date(2026, 1, 2, 3, 19, 5, 0, time.UTC))

	entry := decodeLine(t, &buf)
	assert.Equal(t, EventAccountLocked, entry["event_type"])
	assert.Equal(t, float64(5), entry["failed_attempts"])
	assert.Equal(t, "2026-01-02T03:19:05Z", entry["locked_until"])
}

func TestLogRateLimited_MasksKey(t *testing.T) {
	var buf bytes.Buffer
	al := newTestAuditLogger(&buf)

	al.LogRateLimited(context.Background(), "10.0.0.1:user@example.com", 6, 5, time.Minute)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "10.0.0.1:u***@*******.com", entry["key"])
	assert.Equal(t, float64(5), entry["limit"])
}

func TestNilAuditLoggerIsNoop(t *testing.T) {
	var al *AuditLogger
	assert.NotPanics(t, func() {
		al.LogAuthAttempt(context.Background(), AuditEvent{})
		al.LogAccountLocked(context.Background(), "a@b.c", "", 1, time.Now())
		al.LogRateLimited(context.Background(), "k", 1, 1, time.Second)
		al.LogAdminAction(context.Background(), EventLockoutReset, "admin", nil)
	})
}
