package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     interface{}
		field   string
		message string
	}{
		{"short username", RegisterRequest{Username: "al", Email: "a@example.com", Password: "secret1"}, "username", "Username must be between 3 and 32 characters"},
		{"missing username", RegisterRequest{Email: "a@example.com", Password: "secret1"}, "username", "Please choose a username"},
		{"bad email", RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret1"}, "email", "Please provide a valid email address"},
		{"missing password", LoginRequest{Email: "a@example.com"}, "password", "Please provide a password"},
		{"otp with letters", VerifyOTPRequest{Email: "a@example.com", OTP: "12a456"}, "otp", "The verification code is 6 digits"},
		{"short otp", VerifyOTPRequest{Email: "a@example.com", OTP: "1234"}, "otp", "The verification code is 6 digits"},
		{"missing otp", VerifyOTPRequest{Email: "a@example.com"}, "otp", "Please enter the verification code from your email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			require.Error(t, err)

			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, tt.message, fe.Error())
		})
	}

	assert.NoError(t, ValidateRequest(LoginRequest{Email: "a@example.com", Password: "x"}))
	assert.NoError(t, ValidateRequest(VerifyOTPRequest{Email: "a@example.com", OTP: "123456"}))
}
