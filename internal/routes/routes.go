package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/auth"
	"github.com/derushio/d-next-ddd-example-sub002/internal/handlers"
	"github.com/derushio/d-next-ddd-example-sub002/internal/middleware"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	pkghttp "github.com/derushio/d-next-ddd-example-sub002/pkg/http"
	"github.com/go-chi/chi/v5"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the handlers and guards mounted by RegisterRoutes
type Dependencies struct {
	AuthHandler       *handlers.AuthHandler
	AdminHandler      *handlers.AdminHandler
	TokenManager      *auth.TokenManager
	Users             auth.UserRepository
	Health            HealthChecker
	IPConfig          *pkghttp.IPConfig
	SignInPerIPMinute int
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	router.Get("/health", healthHandler(deps.Health))

	// Public routes
	router.With(middleware.RateLimitByIP(deps.SignInPerIPMinute, deps.IPConfig)).
		Post("/auth/signin", deps.AuthHandler.SignIn)

	// Admin-only routes
	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.TokenManager))
		r.Use(auth.RequireRole(deps.Users, models.RoleAdmin))

		r.Get("/lockouts", deps.AdminHandler.GetLockoutStatus)
		r.Post("/lockouts/reset", deps.AdminHandler.ResetLockout)
		r.Delete("/ratelimits/{key}", deps.AdminHandler.ResetRateLimit)
		r.Post("/maintenance/cleanup", deps.AdminHandler.RunMaintenance)
	})
}

func healthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.HealthCheck(ctx); err != nil {
				pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
				return
			}
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
