package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/BradenHooton/leafcheck/internal/services"
	pkghttp "github.com/BradenHooton/leafcheck/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
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

// WithAuthUser puts a verified user in the request context the way
// auth.AuthMiddleware does
func WithAuthUser(req *http.Request, userID, role string) *http.Request {
	now := time.Now()
	user := &models.User{
		ID:         userID,
		Username:   "user-" + userID,
		Email:      userID + "@example.com",
		IsVerified: true,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return req.WithContext(auth.WithUser(req.Context(), user))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc       func(ctx context.Context, username, email, password string) (*services.RegisterResponse, error)
	VerifyOTPFunc      func(ctx context.Context, email, code string) (*services.AuthResponse, error)
	ResendOTPFunc      func(ctx context.Context, email string) (*services.MessageResponse, error)
	LoginFunc          func(ctx context.Context, email, password string) (*services.AuthResponse, error)
	ForgotPasswordFunc func(ctx context.Context, email string) (*services.ForgotPasswordResponse, error)
	ResetPasswordFunc  func(ctx context.Context, token, newPassword string) (*services.AuthResponse, error)
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) (*services.RegisterResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RegisterFunc(ctx, username, email, password)
}

func (m *MockAuthService) VerifyOTP(ctx context.Context, email, code string) (*services.AuthResponse, error) {
	if m.VerifyOTPFunc == nil {
		return nil, models.ErrInvalidOrExpiredOTP
	}
	return m.VerifyOTPFunc(ctx, email, code)
}

func (m *MockAuthService) ResendOTP(ctx context.Context, email string) (*services.MessageResponse, error) {
	if m.ResendOTPFunc == nil {
		return nil, models.ErrNotFoundOrAlreadyVerified
	}
	return m.ResendOTPFunc(ctx, email)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) (*services.ForgotPasswordResponse, error) {
	if m.ForgotPasswordFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) (*services.AuthResponse, error) {
	if m.ResetPasswordFunc == nil {
		return nil, models.ErrInvalidOrExpiredToken
	}
	return m.ResetPasswordFunc(ctx, token, newPassword)
}

func (m *MockAuthService) GetCurrentUser(user *models.User) *services.UserSummary {
	return services.NewUserSummary(user)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	ListUsersFunc func(ctx context.Context, limit, offset int) ([]*services.UserSummary, error)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*services.UserSummary, error) {
	if m.ListUsersFunc == nil {
		return []*services.UserSummary{}, nil
	}
	return m.ListUsersFunc(ctx, limit, offset)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
// This helper allows tests to set URL parameters that would normally be extracted
// by the Chi router from the URL path.
//
// Example usage:
//
//	req := httptest.NewRequest("PUT", "/auth/reset-password/abc", body)
//	req = WithChiRouteContext(req, map[string]string{
//	    "resettoken": "abc",
//	})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
