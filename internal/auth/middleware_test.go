package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserRepo struct {
	users map[string]*models.User
	err   error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r) == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!", time.Minute, time.Hour)
	pair, err := tm.IssueSession(&models.User{ID: "u1", Role: models.RoleUser})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"lowercase scheme", "bearer " + pair.AccessToken, http.StatusOK},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"valid access token", "Bearer " + pair.AccessToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			AuthMiddleware(tm)(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
		"user-1":  {ID: "user-1", Role: models.RoleUser},
	}}

	withClaims := func(userID string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		return req.WithContext(WithClaims(req.Context(), &models.TokenClaims{UserID: userID, Type: models.TokenTypeAccess}))
	}

	t.Run("admin allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireRole(repo, models.RoleAdmin)(okHandler()).ServeHTTP(w, withClaims("admin-1"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("user forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireRole(repo, models.RoleAdmin)(okHandler()).ServeHTTP(w, withClaims("user-1"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("deleted user unauthorized", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireRole(repo, models.RoleAdmin)(okHandler()).ServeHTTP(w, withClaims("ghost"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no claims", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireRole(repo, models.RoleAdmin)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		failing := &mockUserRepo{err: errors.New("connection reset")}
		RequireRole(failing, models.RoleAdmin)(okHandler()).ServeHTTP(w, withClaims("admin-1"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
