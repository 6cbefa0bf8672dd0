package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential store
	ErrDuplicateEmail    = errors.New("a verified account with this email already exists")
	ErrDuplicateUsername = errors.New("username is already taken")

	// Auth workflow
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrEmailNotVerified          = errors.New("email address not verified")
	ErrInvalidOrExpiredOTP       = errors.New("invalid or expired OTP")
	ErrInvalidOrExpiredToken     = errors.New("invalid or expired reset token")
	ErrNotFoundOrAlreadyVerified = errors.New("user not found or already verified")
	ErrNotificationFailed        = errors.New("notification could not be sent")

	// Token service
	ErrInvalidToken = errors.New("invalid session token")
)
