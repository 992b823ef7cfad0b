package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)
}

func TestLoad_SecurityDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	sec := cfg.Security
	if !sec.RateLimitEnabled || !sec.LockoutEnabled {
		t.Errorf("rate limiting and lockout should be enabled by default")
	}
	if sec.RateLimitMaxAttempts != 5 {
		t.Errorf("RateLimitMaxAttempts: got %d, want 5", sec.RateLimitMaxAttempts)
	}
	if sec.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow: got %v, want 1m", sec.RateLimitWindow)
	}
	if sec.LockoutThreshold != 5 {
		t.Errorf("LockoutThreshold: got %d, want 5", sec.LockoutThreshold)
	}
	if sec.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 15m", sec.LockoutDuration)
	}
	if sec.RetentionDays != 90 {
		t.Errorf("RetentionDays: got %d, want 90", sec.RetentionDays)
	}
	if sec.RateLimitKey != RateLimitKeyIP || sec.RateLimitStore != StoreMemory {
		t.Errorf("unexpected key/store defaults: %q/%q", sec.RateLimitKey, sec.RateLimitStore)
	}
}

func TestLoad_ServerTimeouts_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestLoad_CustomSecurityValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("RATE_LIMIT_ENABLED", "false")
	os.Setenv("RATE_LIMIT_MAX_ATTEMPTS", "20")
	os.Setenv("RATE_LIMIT_WINDOW", "5m")
	os.Setenv("RATE_LIMIT_KEY", "ip_email")
	os.Setenv("LOCKOUT_THRESHOLD", "3")
	os.Setenv("LOCKOUT_DURATION", "30m")
	os.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1/32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Security.RateLimitEnabled {
		t.Errorf("RateLimitEnabled should be false")
	}
	if cfg.Security.RateLimitMaxAttempts != 20 {
		t.Errorf("RateLimitMaxAttempts: got %d, want 20", cfg.Security.RateLimitMaxAttempts)
	}
	if cfg.Security.RateLimitWindow != 5*time.Minute {
		t.Errorf("RateLimitWindow: got %v, want 5m", cfg.Security.RateLimitWindow)
	}
	if cfg.Security.RateLimitKey != RateLimitKeyIPEmail {
		t.Errorf("RateLimitKey: got %q", cfg.Security.RateLimitKey)
	}
	if cfg.Security.LockoutThreshold != 3 || cfg.Security.LockoutDuration != 30*time.Minute {
		t.Errorf("unexpected lockout values: %d/%v", cfg.Security.LockoutThreshold, cfg.Security.LockoutDuration)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "127.0.0.1/32" {
		t.Errorf("TrustedProxies: got %v", cfg.Server.TrustedProxies)
	}
}

func TestLoad_RejectsOutOfBoundsValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero max attempts", "RATE_LIMIT_MAX_ATTEMPTS", "0"},
		{"window too short", "RATE_LIMIT_WINDOW", "500ms"},
		{"window too long", "RATE_LIMIT_WINDOW", "48h"},
		{"unknown key strategy", "RATE_LIMIT_KEY", "cookie"},
		{"unknown store", "RATE_LIMIT_STORE", "memcached"},
		{"threshold too high", "LOCKOUT_THRESHOLD", "1000"},
		{"lockout too short", "LOCKOUT_DURATION", "10s"},
		{"retention zero", "LOGIN_ATTEMPT_RETENTION_DAYS", "0"},
		{"bcrypt cost too low", "BCRYPT_COST", "2"},
		{"unknown driver", "DB_DRIVER", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			os.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("LOCKOUT_DURATION", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Security.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration: got %v, want default 15m", cfg.Security.LockoutDuration)
	}
}

func TestLoad_SQLiteDoesNotRequireDBPassword(t *testing.T) {
	os.Clearenv()
	t.Cleanup(os.Clearenv)
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_DRIVER", "sqlite")
	os.Setenv("SQLITE_PATH", ":memory:")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver: got %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	os.Clearenv()
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Error("Load() without JWT_SECRET should fail")
	}

	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	if _, err := Load(); err == nil {
		t.Error("Load() with postgres driver and no DB_PASSWORD should fail")
	}
}

func TestLoad_LockoutEmailRequiresSender(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("NOTIFY_LOCKOUT_EMAIL", "true")

	if _, err := Load(); err == nil {
		t.Error("Load() with NOTIFY_LOCKOUT_EMAIL and no EMAIL_FROM_ADDRESS should fail")
	}
}

func TestValidateJWTSecret(t *testing.T) {
	if err := validateJWTSecret("short", "development"); err == nil {
		t.Error("short secret should be rejected")
	}
	if err := validateJWTSecret("sixteen-chars-ok", "production"); err == nil {
		t.Error("16-char secret should be rejected in production")
	}
	if err := validateJWTSecret("a-production-grade-secret-of-32+chars", "production"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_AdminSeed(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("ADMIN_EMAIL", "admin@example.com")

	if _, err := Load(); err == nil {
		t.Error("Load() with ADMIN_EMAIL and no ADMIN_PASSWORD should fail")
	}

	os.Setenv("ADMIN_PASSWORD", "short")
	if _, err := Load(); err == nil {
		t.Error("Load() with a short ADMIN_PASSWORD should fail")
	}

	os.Setenv("ADMIN_PASSWORD", "a-long-admin-password")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Admin.Email != "admin@example.com" {
		t.Errorf("Admin.Email: got %q", cfg.Admin.Email)
	}
}
