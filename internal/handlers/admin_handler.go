package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/auth"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/derushio/d-next-ddd-example-sub002/internal/services"
	pkghttp "github.com/derushio/d-next-ddd-example-sub002/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the operator service contract.
type AdminServiceInterface interface {
	GetLockoutStatus(ctx context.Context, email string) (*models.LockoutStatus, error)
	ResetLockout(ctx context.Context, adminID, email string) error
	ResetRateLimit(ctx context.Context, adminID, key string) error
	RunMaintenance(ctx context.Context) (*services.MaintenanceResult, error)
}

// AdminHandler handles lockout and rate limit administration.
type AdminHandler struct {
	service AdminServiceInterface
	now     func() time.Time
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service, now: time.Now}
}

// ResetLockoutRequest is the body of POST /admin/lockouts/reset.
type ResetLockoutRequest struct {
	Email string `json:"email"`
}

func adminID(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.UserID
	}
	return ""
}

// GetLockoutStatus handles GET /admin/lockouts?email=
func (h *AdminHandler) GetLockoutStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetLockoutStatus(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeServiceError(w, err, h.now())
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// ResetLockout handles POST /admin/lockouts/reset
func (h *AdminHandler) ResetLockout(w http.ResponseWriter, r *http.Request) {
	var req ResetLockoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.ResetLockout(r.Context(), adminID(r), req.Email); err != nil {
		writeServiceError(w, err, h.now())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetRateLimit handles DELETE /admin/ratelimits/{key}
func (h *AdminHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid rate limit key")
		return
	}

	if err := h.service.ResetRateLimit(r.Context(), adminID(r), key); err != nil {
		writeServiceError(w, err, h.now())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunMaintenance handles POST /admin/maintenance/cleanup
func (h *AdminHandler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunMaintenance(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Cleanup did not complete")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, result)
}
