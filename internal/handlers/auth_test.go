package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/leafcheck/internal/handlers"
	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/BradenHooton/leafcheck/internal/services"
	pkgauth "github.com/BradenHooton/leafcheck/pkg/auth"
	pkghttp "github.com/BradenHooton/leafcheck/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegisterRequest() handlers.RegisterRequest {
	return handlers.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}
}

func TestRegister_Success(t *testing.T) {
	var gotUsername, gotEmail string
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, username, email, password string) (*services.RegisterResponse, error) {
			gotUsername, gotEmail = username, email
			return &services.RegisterResponse{Message: "check your email", UserID: "user-1"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", validRegisterRequest())

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp services.RegisterResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "user-1", resp.UserID)
	assert.Empty(t, resp.OTP)
	assert.Equal(t, "alice", gotUsername)
	assert.Equal(t, "alice@example.com", gotEmail)
	assert.NotContains(t, w.Body.String(), `"otp"`)
}

func TestRegister_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		req  handlers.RegisterRequest
	}{
		{"short username", handlers.RegisterRequest{Username: "al", Email: "a@example.com", Password: "secret1"}},
		{"long username", handlers.RegisterRequest{Username: "abcdefghijklmnopqrstuvwxyz0123456", Email: "a@example.com", Password: "secret1"}},
		{"bad email", handlers.RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret1"}},
		{"missing password", handlers.RegisterRequest{Username: "alice", Email: "a@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mockAuth := &handlers.MockAuthService{
				RegisterFunc: func(ctx context.Context, username, email, password string) (*services.RegisterResponse, error) {
					called = true
					return nil, nil
				},
			}

			handler := handlers.NewAuthHandler(mockAuth)
			w := httptest.NewRecorder()
			handler.Register(w, handlers.NewTestRequest(t, "POST", "/auth/register", tt.req))

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
			assert.False(t, called, "service must not be reached")
		})
	}
}

func TestRegister_InvalidJSON(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})
	req := httptest.NewRequest("POST", "/auth/register", nil)

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegister_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"duplicate email", models.ErrDuplicateEmail, 400, "duplicate_email"},
		{"duplicate username", models.ErrDuplicateUsername, 400, "duplicate_username"},
		{"short password", &pkgauth.PasswordValidationError{Reason: "must be at least 6 characters"}, 400, "invalid_password"},
		{"notification failed", models.ErrNotificationFailed, 500, "notification_failed"},
		{"internal", models.ErrInternalServer, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				RegisterFunc: func(ctx context.Context, username, email, password string) (*services.RegisterResponse, error) {
					return nil, tt.err
				},
			}

			handler := handlers.NewAuthHandler(mockAuth)
			w := httptest.NewRecorder()
			handler.Register(w, handlers.NewTestRequest(t, "POST", "/auth/register", validRegisterRequest()))

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestVerifyOTP_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyOTPFunc: func(ctx context.Context, email, code string) (*services.AuthResponse, error) {
			assert.Equal(t, "123456", code)
			return &services.AuthResponse{
				Token: "jwt-token",
				User:  &services.UserSummary{ID: "user-1", Username: "alice", Email: email, Role: models.RoleUser},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/verify-otp", handlers.VerifyOTPRequest{
		Email: "alice@example.com",
		OTP:   "123456",
	})

	w := httptest.NewRecorder()
	handler.VerifyOTP(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "jwt-token", resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestVerifyOTP_MalformedCode(t *testing.T) {
	for _, code := range []string{"12345", "1234567", "12345a", ""} {
		t.Run(code, func(t *testing.T) {
			handler := handlers.NewAuthHandler(&handlers.MockAuthService{})
			req := handlers.NewTestRequest(t, "POST", "/auth/verify-otp", handlers.VerifyOTPRequest{
				Email: "alice@example.com",
				OTP:   code,
			})

			w := httptest.NewRecorder()
			handler.VerifyOTP(w, req)

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
		})
	}
}

func TestVerifyOTP_InvalidOrExpired(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/verify-otp", handlers.VerifyOTPRequest{
		Email: "alice@example.com",
		OTP:   "000000",
	})

	w := httptest.NewRecorder()
	handler.VerifyOTP(w, req)

	handlers.AssertErrorResponse(t, w, 400, "invalid_or_expired_otp")
}

func TestResendOTP(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			ResendOTPFunc: func(ctx context.Context, email string) (*services.MessageResponse, error) {
				return &services.MessageResponse{Message: "sent"}, nil
			},
		}
		handler := handlers.NewAuthHandler(mockAuth)

		w := httptest.NewRecorder()
		handler.ResendOTP(w, handlers.NewTestRequest(t, "POST", "/auth/resend-otp", handlers.EmailRequest{Email: "a@example.com"}))

		var resp services.MessageResponse
		handlers.AssertJSONResponse(t, w, 200, &resp)
		assert.Equal(t, "sent", resp.Message)
	})

	t.Run("unknown or verified", func(t *testing.T) {
		handler := handlers.NewAuthHandler(&handlers.MockAuthService{})

		w := httptest.NewRecorder()
		handler.ResendOTP(w, handlers.NewTestRequest(t, "POST", "/auth/resend-otp", handlers.EmailRequest{Email: "a@example.com"}))

		handlers.AssertErrorResponse(t, w, 404, "not_found_or_already_verified")
	})

	t.Run("notification failed", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			ResendOTPFunc: func(ctx context.Context, email string) (*services.MessageResponse, error) {
				return nil, models.ErrNotificationFailed
			},
		}
		handler := handlers.NewAuthHandler(mockAuth)

		w := httptest.NewRecorder()
		handler.ResendOTP(w, handlers.NewTestRequest(t, "POST", "/auth/resend-otp", handlers.EmailRequest{Email: "a@example.com"}))

		handlers.AssertErrorResponse(t, w, 500, "notification_failed")
	})
}

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*services.AuthResponse, error) {
			return &services.AuthResponse{
				Token: "jwt-token",
				User:  &services.UserSummary{ID: "user-1", Email: email},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "jwt-token", resp.Token)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "invalid_credentials")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.NeedsVerification)
}

func TestLogin_NeedsVerification(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*services.AuthResponse, error) {
			return nil, models.ErrEmailNotVerified
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "needs_verification")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["needs_verification"])
	assert.NotContains(t, body, "token")
}

func TestForgotPassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			ForgotPasswordFunc: func(ctx context.Context, email string) (*services.ForgotPasswordResponse, error) {
				return &services.ForgotPasswordResponse{Message: "Email sent"}, nil
			},
		}
		handler := handlers.NewAuthHandler(mockAuth)

		w := httptest.NewRecorder()
		handler.ForgotPassword(w, handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.EmailRequest{Email: "a@example.com"}))

		var resp services.ForgotPasswordResponse
		handlers.AssertJSONResponse(t, w, 200, &resp)
		assert.Equal(t, "Email sent", resp.Message)
		assert.NotContains(t, w.Body.String(), "reset_token")
	})

	t.Run("unknown email", func(t *testing.T) {
		handler := handlers.NewAuthHandler(&handlers.MockAuthService{})

		w := httptest.NewRecorder()
		handler.ForgotPassword(w, handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.EmailRequest{Email: "a@example.com"}))

		handlers.AssertErrorResponse(t, w, 404, "not_found")
	})

	t.Run("notification failed", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			ForgotPasswordFunc: func(ctx context.Context, email string) (*services.ForgotPasswordResponse, error) {
				return nil, models.ErrNotificationFailed
			},
		}
		handler := handlers.NewAuthHandler(mockAuth)

		w := httptest.NewRecorder()
		handler.ForgotPassword(w, handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.EmailRequest{Email: "a@example.com"}))

		handlers.AssertErrorResponse(t, w, 500, "notification_failed")
	})
}

func TestResetPassword_Success(t *testing.T) {
	var gotToken string
	mockAuth := &handlers.MockAuthService{
		ResetPasswordFunc: func(ctx context.Context, token, newPassword string) (*services.AuthResponse, error) {
			gotToken = token
			return &services.AuthResponse{
				Message: "Password reset successful",
				Token:   "jwt-token",
				User:    &services.UserSummary{ID: "user-1"},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth)
	req := handlers.NewTestRequest(t, "PUT", "/auth/reset-password/abc123", handlers.ResetPasswordRequest{Password: "newpass1"})
	req = handlers.WithChiRouteContext(req, map[string]string{"resettoken": "abc123"})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "abc123", gotToken)
	assert.Equal(t, "jwt-token", resp.Token)
	assert.Equal(t, "Password reset successful", resp.Message)
}

func TestResetPassword_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid token", models.ErrInvalidOrExpiredToken, 400, "invalid_or_expired_token"},
		{"short password", &pkgauth.PasswordValidationError{Reason: "must be at least 6 characters"}, 400, "invalid_password"},
		{"internal", models.ErrInternalServer, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				ResetPasswordFunc: func(ctx context.Context, token, newPassword string) (*services.AuthResponse, error) {
					return nil, tt.err
				},
			}

			handler := handlers.NewAuthHandler(mockAuth)
			req := handlers.NewTestRequest(t, "PUT", "/auth/reset-password/abc123", handlers.ResetPasswordRequest{Password: "x"})
			req = handlers.WithChiRouteContext(req, map[string]string{"resettoken": "abc123"})

			w := httptest.NewRecorder()
			handler.ResetPassword(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestResetPassword_MissingToken(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})
	req := handlers.NewTestRequest(t, "PUT", "/auth/reset-password/", handlers.ResetPasswordRequest{Password: "newpass1"})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	handlers.AssertErrorResponse(t, w, 400, "invalid_or_expired_token")
}

func TestMe(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})

	t.Run("authenticated", func(t *testing.T) {
		req := handlers.NewTestRequest(t, "GET", "/auth/me", nil)
		req = handlers.WithAuthUser(req, "user-1", models.RoleUser)

		w := httptest.NewRecorder()
		handler.Me(w, req)

		var resp handlers.CurrentUserResponse
		handlers.AssertJSONResponse(t, w, 200, &resp)
		require.NotNil(t, resp.User)
		assert.Equal(t, "user-1", resp.User.ID)
		assert.NotContains(t, w.Body.String(), "password")
		assert.NotContains(t, w.Body.String(), "otp")
	})

	t.Run("no user in context", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Me(w, handlers.NewTestRequest(t, "GET", "/auth/me", nil))

		handlers.AssertErrorResponse(t, w, 401, "unauthorized")
	})
}
