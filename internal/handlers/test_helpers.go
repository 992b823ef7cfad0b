package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/derushio/d-next-ddd-example-sub002/internal/auth"
	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/derushio/d-next-ddd-example-sub002/internal/services"
	pkghttp "github.com/derushio/d-next-ddd-example-sub002/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAdminContext attaches the claims AuthMiddleware would set for an admin
func WithAdminContext(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithClaims(req.Context(), &models.TokenClaims{
		UserID: userID,
		Role:   models.RoleAdmin,
		Type:   models.TokenTypeAccess,
	}))
}

// AssertJSONResponse checks the status and content type, then decodes the body into target
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignInFunc func(ctx context.Context, in services.SignInInput) (*services.SignInResult, error)
}

func (m *MockAuthService) SignIn(ctx context.Context, in services.SignInInput) (*services.SignInResult, error) {
	if m.SignInFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.SignInFunc(ctx, in)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	GetLockoutStatusFunc func(ctx context.Context, email string) (*models.LockoutStatus, error)
	ResetLockoutFunc     func(ctx context.Context, adminID, email string) error
	ResetRateLimitFunc   func(ctx context.Context, adminID, key string) error
	RunMaintenanceFunc   func(ctx context.Context) (*services.MaintenanceResult, error)
}

func (m *MockAdminService) GetLockoutStatus(ctx context.Context, email string) (*models.LockoutStatus, error) {
	if m.GetLockoutStatusFunc == nil {
		return &models.LockoutStatus{}, nil
	}
	return m.GetLockoutStatusFunc(ctx, email)
}

func (m *MockAdminService) ResetLockout(ctx context.Context, adminID, email string) error {
	if m.ResetLockoutFunc == nil {
		return nil
	}
	return m.ResetLockoutFunc(ctx, adminID, email)
}

func (m *MockAdminService) ResetRateLimit(ctx context.Context, adminID, key string) error {
	if m.ResetRateLimitFunc == nil {
		return nil
	}
	return m.ResetRateLimitFunc(ctx, adminID, key)
}

func (m *MockAdminService) RunMaintenance(ctx context.Context) (*services.MaintenanceResult, error) {
	if m.RunMaintenanceFunc == nil {
		return &services.MaintenanceResult{}, nil
	}
	return m.RunMaintenanceFunc(ctx)
}
