package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	pkghttp "github.com/derushio/d-next-ddd-example-sub002/pkg/http"
)

type contextKey string

// UserContextKey holds the *models.TokenClaims of an authenticated request
const UserContextKey contextKey = "user"

// UserRepository is the account lookup RequireRole needs
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// bearerToken returns the credentials of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithClaims returns a copy of ctx carrying claims
func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// AuthMiddleware admits requests carrying a valid access token. Refresh
// tokens are rejected.
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Missing or malformed bearer token")
				return
			}

			claims, err := tm.ValidateToken(token)
			if err != nil || claims.Type != models.TokenTypeAccess {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole checks the caller's current role in the database, so a demoted
// admin loses access before their token expires
func RequireRole(userRepo UserRepository, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			switch {
			case errors.Is(err, models.ErrNotFound):
				pkghttp.WriteUnauthorized(w, "Unauthorized")
			case err != nil:
				pkghttp.WriteInternalError(w, "Internal server error")
			case user.Role != role:
				pkghttp.WriteForbidden(w, "Insufficient permissions")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// GetUserFromContext returns the claims set by AuthMiddleware, or nil
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, _ := r.Context().Value(UserContextKey).(*models.TokenClaims)
	return claims
}
