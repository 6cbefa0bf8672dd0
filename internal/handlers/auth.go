package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/BradenHooton/leafcheck/internal/services"
	pkgauth "github.com/BradenHooton/leafcheck/pkg/auth"
	pkghttp "github.com/BradenHooton/leafcheck/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, username, email, password string) (*services.RegisterResponse, error)
	VerifyOTP(ctx context.Context, email, code string) (*services.AuthResponse, error)
	ResendOTP(ctx context.Context, email string) (*services.MessageResponse, error)
	Login(ctx context.Context, email, password string) (*services.AuthResponse, error)
	ForgotPassword(ctx context.Context, email string) (*services.ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*services.AuthResponse, error)
	GetCurrentUser(user *models.User) *services.UserSummary
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyOTPRequest represents the request body for OTP verification
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// EmailRequest is the body of resend-otp and forgot-password
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordRequest represents the request body for a password reset. The
// token travels in the URL.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// CurrentUserResponse wraps the user summary returned by /me
type CurrentUserResponse struct {
	User *services.UserSummary `json:"user"`
}

// decodeAndValidate reads a JSON body into req and validates it. It writes
// the 400 response itself and reports whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}

	return true
}

// writePasswordError reports a password outside the accepted bounds
func writePasswordError(w http.ResponseWriter, err error) bool {
	var pwErr *pkgauth.PasswordValidationError
	if errors.As(err, &pwErr) {
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_password", "Password "+pwErr.Reason)
		return true
	}
	return false
}

// Register handles user registration
// @Summary User registration
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 201 {object} services.RegisterResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), strings.TrimSpace(req.Username), req.Email, req.Password)
	if err != nil {
		if writePasswordError(w, err) {
			return
		}
		switch {
		case errors.Is(err, models.ErrDuplicateEmail):
			pkghttp.WriteError(w, http.StatusBadRequest, "duplicate_email", "User already exists")
		case errors.Is(err, models.ErrDuplicateUsername):
			pkghttp.WriteError(w, http.StatusBadRequest, "duplicate_username", "Username is already taken")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Username and email are required")
		case errors.Is(err, models.ErrNotificationFailed):
			pkghttp.WriteError(w, http.StatusInternalServerError, "notification_failed", "Could not send verification email")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// VerifyOTP confirms the registration code and starts a session
// @Summary Verify email with OTP
// @Accept json
// @Param request body VerifyOTPRequest true "Verify OTP request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredOTP) {
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_or_expired_otp", "Invalid or expired OTP")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ResendOTP issues a fresh code for an unverified account
// @Summary Resend verification OTP
// @Accept json
// @Param request body EmailRequest true "Resend OTP request"
// @Produce json
// @Success 200 {object} services.MessageResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/resend-otp [post]
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.ResendOTP(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFoundOrAlreadyVerified):
			pkghttp.WriteError(w, http.StatusNotFound, "not_found_or_already_verified", "User not found or already verified")
		case errors.Is(err, models.ErrNotificationFailed):
			pkghttp.WriteError(w, http.StatusInternalServerError, "notification_failed", "Could not send verification email")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		case errors.Is(err, models.ErrEmailNotVerified):
			pkghttp.WriteNeedsVerification(w, "Please verify your email before logging in")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ForgotPassword starts a password reset
// @Summary Request a password reset link
// @Accept json
// @Param request body EmailRequest true "Forgot password request"
// @Produce json
// @Success 200 {object} services.ForgotPasswordResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrNotificationFailed):
			pkghttp.WriteError(w, http.StatusInternalServerError, "notification_failed", "Email could not be sent")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ResetPassword consumes a reset token and sets a new password
// @Summary Reset password
// @Accept json
// @Param resettoken path string true "Reset token"
// @Param request body ResetPasswordRequest true "Reset password request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/reset-password/{resettoken} [put]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "resettoken")
	if token == "" {
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_or_expired_token", "Invalid or expired token")
		return
	}

	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.ResetPassword(r.Context(), token, req.Password)
	if err != nil {
		if writePasswordError(w, err) {
			return
		}
		if errors.Is(err, models.ErrInvalidOrExpiredToken) {
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_or_expired_token", "Invalid or expired token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated user
// @Summary Current user
// @Security BearerAuth
// @Produce json
// @Success 200 {object} CurrentUserResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CurrentUserResponse{User: h.service.GetCurrentUser(user)})
}
