package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/auth"
	"github.com/derushio/d-next-ddd-example-sub002/internal/background"
	"github.com/derushio/d-next-ddd-example-sub002/internal/config"
	"github.com/derushio/d-next-ddd-example-sub002/internal/database"
	"github.com/derushio/d-next-ddd-example-sub002/internal/handlers"
	middlewareCustom "github.com/derushio/d-next-ddd-example-sub002/internal/middleware"
	"github.com/derushio/d-next-ddd-example-sub002/internal/repositories"
	"github.com/derushio/d-next-ddd-example-sub002/internal/routes"
	"github.com/derushio/d-next-ddd-example-sub002/internal/services"
	pkghttp "github.com/derushio/d-next-ddd-example-sub002/pkg/http"
	pkglogger "github.com/derushio/d-next-ddd-example-sub002/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// storage is the driver-specific half of the wiring
type storage struct {
	users    services.UserRepository
	attempts services.LoginAttemptRepository
	health   routes.HealthChecker
	close    func()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("rate_limit_store", cfg.Security.RateLimitStore),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStorage(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.close()

	windowStore, closeWindows, err := openWindowStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize rate limit store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeWindows()

	// Bootstrap first admin user if configured
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := services.EnsureAdmin(ctx, store.users, cfg.Admin.Email, cfg.Admin.Password, cfg.Auth.BcryptCost, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Security services
	auditLogger := pkglogger.NewAuditLogger(logger)

	limiter := services.NewRateLimitService(windowStore, services.RateLimitConfig{
		Enabled:     cfg.Security.RateLimitEnabled,
		MaxAttempts: cfg.Security.RateLimitMaxAttempts,
		Window:      cfg.Security.RateLimitWindow,
	}, logger)

	lockout := services.NewLockoutService(store.attempts, services.LockoutConfig{
		Enabled:   cfg.Security.LockoutEnabled,
		Threshold: cfg.Security.LockoutThreshold,
		Duration:  cfg.Security.LockoutDuration,
	}, logger)

	verifier, err := auth.NewCredentialVerifier(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Error("failed to initialize credential verifier", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   time.Duration(cfg.Auth.TimingDelayBaseMs) * time.Millisecond,
		RandomDelay: time.Duration(cfg.Auth.TimingDelayRandomMs) * time.Millisecond,
	})

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	authService := services.NewAuthService(services.AuthServiceDeps{
		Users:       store.users,
		Verifier:    verifier,
		Sessions:    tokenManager,
		Limiter:     limiter,
		Lockout:     lockout,
		Notifier:    notifier,
		Timing:      timingDelay,
		Logger:      logger,
		AuditLogger: auditLogger,
	}, cfg.Security.RateLimitKey)
	adminService := services.NewAdminService(lockout, limiter, cfg.Security.RetentionDays, logger, auditLogger)

	cleanupManager := background.NewCleanupManager(limiter, lockout, cfg.Security.RetentionDays, logger, cfg.Security.CleanupInterval)

	// Setup router
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(cfg.Server.Env))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:       handlers.NewAuthHandler(authService, ipConfig),
		AdminHandler:      handlers.NewAdminHandler(adminService),
		TokenManager:      tokenManager,
		Users:             store.users,
		Health:            store.health,
		IPConfig:          ipConfig,
		SignInPerIPMinute: cfg.Server.HTTPRateLimitPerMinute,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Let pending lockout notifications finish before the stores close
	authService.Drain()

	logger.Info("server stopped gracefully")
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		// In-memory databases start empty and must always be migrated
		if cfg.Database.AutoMigrate || cfg.Database.SQLitePath == ":memory:" {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return &storage{
			users:    repositories.NewSQLiteUserRepository(db),
			attempts: repositories.NewSQLiteLoginAttemptRepository(db),
			health:   db,
			close:    db.Close,
		}, nil

	default:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return &storage{
			users:    repositories.NewUserRepository(db),
			attempts: repositories.NewLoginAttemptRepository(db),
			health:   db,
			close:    db.Close,
		}, nil
	}
}

func openWindowStore(cfg *config.Config, logger *slog.Logger) (services.WindowStore, func(), error) {
	if cfg.Security.RateLimitStore != config.StoreRedis {
		return repositories.NewMemoryWindowStore(cfg.Security.RateLimitMaxKeys), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("unable to reach redis: %w", err)
	}

	logger.Info("rate limit store connected", slog.String("store", "redis"), slog.String("addr", cfg.Redis.Addr))

	// Keys outlive the window slightly so a slow clock never drops live entries
	store := repositories.NewRedisWindowStore(client, cfg.Security.RateLimitWindow+time.Minute)
	return store, func() { client.Close() }, nil
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (services.LockoutNotifier, error) {
	if !cfg.Email.NotifyLockout {
		return services.NewLogLockoutNotifier(logger), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ses, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	if err != nil {
		return nil, err
	}
	return ses, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
