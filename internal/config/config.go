package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	RateLimitKeyIP      = "ip"
	RateLimitKeyEmail   = "email"
	RateLimitKeyIPEmail = "ip_email"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Redis    RedisConfig
	Email    EmailConfig
	Admin    AdminConfig
}

type DatabaseConfig struct {
	Driver            string `validate:"oneof=postgres sqlite"`
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	SQLitePath        string
	AutoMigrate       bool
}

type ServerConfig struct {
	Port                   string
	Env                    string
	LogLevel               string
	TrustedProxies         []string
	HTTPRateLimitPerMinute int `validate:"gte=0"`
	ReadTimeout            time.Duration
	WriteTimeout           time.Duration
	IdleTimeout            time.Duration
}

type AuthConfig struct {
	JWTSecret           string
	AccessTokenExpiry   time.Duration
	RefreshTokenExpiry  time.Duration
	BcryptCost          int `validate:"gte=4,lte=31"`
	TimingDelayBaseMs   int `validate:"gte=0,lte=5000"`
	TimingDelayRandomMs int `validate:"gte=0,lte=5000"`
}

// SecurityConfig holds the rate limiting and lockout knobs. Bounds are enforced by Validate.
type SecurityConfig struct {
	RateLimitEnabled     bool
	RateLimitMaxAttempts int           `validate:"gte=1,lte=10000"`
	RateLimitWindow      time.Duration `validate:"gte=1s,lte=24h"`
	RateLimitKey         string        `validate:"oneof=ip email ip_email"`
	RateLimitStore       string        `validate:"oneof=memory redis"`
	RateLimitMaxKeys     int           `validate:"gte=0"`

	LockoutEnabled   bool
	LockoutThreshold int           `validate:"gte=1,lte=100"`
	LockoutDuration  time.Duration `validate:"gte=1m,lte=24h"`

	RetentionDays   int           `validate:"gte=1,lte=3650"`
	CleanupInterval time.Duration `validate:"gte=1s"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0,lte=15"`
}

type EmailConfig struct {
	NotifyLockout bool
	AWSRegion     string
	FromAddress   string
}

// AdminConfig seeds an admin account on startup when both fields are set.
type AdminConfig struct {
	Email    string `validate:"omitempty,email"`
	Password string `validate:"omitempty,min=8"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:            strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "signin"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			SQLitePath:        getEnv("SQLITE_PATH", "signin.db"),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:                   getEnv("PORT", "8080"),
			Env:                    env,
			LogLevel:               getEnv("LOG_LEVEL", "info"),
			TrustedProxies:         getEnvAsList("TRUSTED_PROXIES"),
			HTTPRateLimitPerMinute: getEnvAsInt("HTTP_RATE_LIMIT_PER_MINUTE", 60),
			ReadTimeout:            getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:           getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:            getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			AccessTokenExpiry:   getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry:  getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			BcryptCost:          getEnvAsInt("BCRYPT_COST", 12),
			TimingDelayBaseMs:   getEnvAsInt("TIMING_DELAY_BASE_MS", 0),
			TimingDelayRandomMs: getEnvAsInt("TIMING_DELAY_RANDOM_MS", 0),
		},
		Security: SecurityConfig{
			RateLimitEnabled:     getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RateLimitMaxAttempts: getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			RateLimitKey:         strings.ToLower(getEnv("RATE_LIMIT_KEY", RateLimitKeyIP)),
			RateLimitStore:       strings.ToLower(getEnv("RATE_LIMIT_STORE", StoreMemory)),
			RateLimitMaxKeys:     getEnvAsInt("RATE_LIMIT_MAX_KEYS", 100000),
			LockoutEnabled:       getEnvAsBool("LOCKOUT_ENABLED", true),
			LockoutThreshold:     getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:      getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			RetentionDays:        getEnvAsInt("LOGIN_ATTEMPT_RETENTION_DAYS", 90),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			NotifyLockout: getEnvAsBool("NOTIFY_LOCKOUT_EMAIL", false),
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			FromAddress:   getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Database.Driver == DriverPostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if (cfg.Admin.Email == "") != (cfg.Admin.Password == "") {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if cfg.Email.NotifyLockout && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when NOTIFY_LOCKOUT_EMAIL is set")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks numeric bounds and enumerations on every section
func (c *Config) Validate() error {
	sections := []interface{}{&c.Database, &c.Server, &c.Auth, &c.Security, &c.Redis, &c.Admin}
	for _, section := range sections {
		if err := validate.Struct(section); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
				fe := ve[0]
				return fmt.Errorf("invalid configuration: %s failed %q (%s) with value %v",
					fe.StructNamespace(), fe.Tag(), fe.Param(), fe.Value())
			}
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
