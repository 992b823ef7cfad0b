package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/derushio/d-next-ddd-example-sub002/internal/services"
	pkghttp "github.com/derushio/d-next-ddd-example-sub002/pkg/http"
)

const maxBodyBytes = 1 << 16

// AuthServiceInterface defines the interface for sign-in business logic
type AuthServiceInterface interface {
	SignIn(ctx context.Context, in services.SignInInput) (*services.SignInResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	now      func() time.Time
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
		now:      time.Now,
	}
}

// SignInRequest represents the request body for sign-in
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles POST /auth/signin
// @Summary Sign in with email and password
// @Accept json
// @Param request body SignInRequest true "Sign-in request"
// @Produce json
// @Success 200 {object} services.SignInResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 423 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.SignIn(r.Context(), services.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, err, h.now())
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// writeServiceError maps service errors onto status codes. Messages never
// reveal whether the account exists.
func writeServiceError(w http.ResponseWriter, err error, now time.Time) {
	var (
		ve  *models.ValidationError
		rle *models.RateLimitError
		le  *models.AccountLockedError
	)

	switch {
	case errors.As(err, &ve):
		pkghttp.WriteValidationFailed(w, ve.Error())
	case errors.As(err, &rle):
		pkghttp.WriteTooManyRequests(w, "Too many sign-in attempts, try again later", rle.RetryAfter)
	case errors.As(err, &le):
		pkghttp.WriteLocked(w, "Account is temporarily locked, try again later", le.RetryAfter(now))
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteInvalidCredentials(w)
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	default:
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}
