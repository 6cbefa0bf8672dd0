package auth_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSecretIssuer_IssueOTP(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := auth.NewSecretIssuer(10*time.Minute, 10*time.Minute).WithClock(fixedClock(now))

	secret, err := issuer.IssueOTP()
	require.NoError(t, err)

	assert.True(t, auth.ValidOTPFormat(secret.Plaintext), "otp %q should be six digits", secret.Plaintext)
	assert.Equal(t, auth.HashSecret(secret.Plaintext), secret.Hash)
	assert.NotEqual(t, secret.Plaintext, secret.Hash)
	assert.Len(t, secret.Hash, 64)
	assert.Equal(t, now.Add(10*time.Minute), secret.ExpiresAt)
}

func TestSecretIssuer_IssueOTP_Varies(t *testing.T) {
	issuer := auth.NewSecretIssuer(time.Minute, time.Minute)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		secret, err := issuer.IssueOTP()
		require.NoError(t, err)
		seen[secret.Plaintext] = struct{}{}
	}

	// 50 draws from a million codes should almost never collapse to a few values
	assert.Greater(t, len(seen), 40)
}

func TestSecretIssuer_IssueResetToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := auth.NewSecretIssuer(10*time.Minute, 15*time.Minute).WithClock(fixedClock(now))

	first, err := issuer.IssueResetToken()
	require.NoError(t, err)
	second, err := issuer.IssueResetToken()
	require.NoError(t, err)

	assert.Len(t, first.Plaintext, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, first.Plaintext)
	assert.NotEqual(t, first.Plaintext, second.Plaintext)
	assert.Equal(t, auth.HashSecret(first.Plaintext), first.Hash)
	assert.Equal(t, now.Add(15*time.Minute), first.ExpiresAt)
}

func TestSecretIssuer_Verify(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := auth.NewSecretIssuer(10*time.Minute, 10*time.Minute).WithClock(fixedClock(issuedAt))

	secret, err := issuer.IssueOTP()
	require.NoError(t, err)

	wrong := "000000"
	if secret.Plaintext == wrong {
		wrong = "111111"
	}

	tests := []struct {
		name      string
		candidate string
		at        time.Time
		hash      *string
		expiresAt *time.Time
		want      bool
	}{
		{"correct within window", secret.Plaintext, issuedAt.Add(5 * time.Minute), &secret.Hash, &secret.ExpiresAt, true},
		{"correct at expiry instant", secret.Plaintext, secret.ExpiresAt, &secret.Hash, &secret.ExpiresAt, true},
		{"correct after expiry", secret.Plaintext, issuedAt.Add(11 * time.Minute), &secret.Hash, &secret.ExpiresAt, false},
		{"wrong code", wrong, issuedAt, &secret.Hash, &secret.ExpiresAt, false},
		{"empty candidate", "", issuedAt, &secret.Hash, &secret.ExpiresAt, false},
		{"nothing stored", secret.Plaintext, issuedAt, nil, nil, false},
		{"hash without expiry", secret.Plaintext, issuedAt, &secret.Hash, nil, false},
		{"plaintext stored instead of hash", secret.Plaintext, issuedAt, &secret.Plaintext, &secret.ExpiresAt, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer.WithClock(fixedClock(tt.at))
			assert.Equal(t, tt.want, issuer.Verify(tt.candidate, tt.hash, tt.expiresAt))
		})
	}
}

func TestValidOTPFormat(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"12 456", false},
		{"١٢٣٤٥٦", false}, // non-ASCII digits
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ValidOTPFormat(tt.code))
		})
	}
}
