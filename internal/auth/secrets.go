package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	// OTPLength is the number of digits in a verification code.
	OTPLength = 6

	resetTokenBytes = 32
	otpKeyBytes     = 20
)

// SecretIssuer mints OTPs and password reset tokens. Callers persist only the
// hash and expiry; the plaintext is handed to the user once.
type SecretIssuer struct {
	otpExpiry   time.Duration
	resetExpiry time.Duration
	now         func() time.Time
}

// NewSecretIssuer creates a SecretIssuer with the given validity windows
func NewSecretIssuer(otpExpiry, resetExpiry time.Duration) *SecretIssuer {
	return &SecretIssuer{
		otpExpiry:   otpExpiry,
		resetExpiry: resetExpiry,
		now:         time.Now,
	}
}

// WithClock replaces the time source. Used by tests to move past expiry.
func (si *SecretIssuer) WithClock(now func() time.Time) *SecretIssuer {
	si.now = now
	return si
}

// IssueOTP mints a six digit code. Each code comes from an HOTP over a fresh
// random key and counter, so codes are independent of each other.
func (si *SecretIssuer) IssueOTP() (models.IssuedSecret, error) {
	key := make([]byte, otpKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return models.IssuedSecret{}, fmt.Errorf("failed to generate otp key: %w", err)
	}

	var counter [8]byte
	if _, err := rand.Read(counter[:]); err != nil {
		return models.IssuedSecret{}, fmt.Errorf("failed to generate otp counter: %w", err)
	}

	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(key)
	code, err := hotp.GenerateCodeCustom(secret, binary.BigEndian.Uint64(counter[:]), hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return models.IssuedSecret{}, fmt.Errorf("failed to generate otp: %w", err)
	}

	return models.IssuedSecret{
		Plaintext: code,
		Hash:      HashSecret(code),
		ExpiresAt: si.now().Add(si.otpExpiry),
	}, nil
}

// IssueResetToken mints a 256-bit hex token, safe to embed in a URL path.
func (si *SecretIssuer) IssueResetToken() (models.IssuedSecret, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return models.IssuedSecret{}, fmt.Errorf("failed to generate reset token: %w", err)
	}

	token := hex.EncodeToString(b)

	return models.IssuedSecret{
		Plaintext: token,
		Hash:      HashSecret(token),
		ExpiresAt: si.now().Add(si.resetExpiry),
	}, nil
}

// Verify reports whether candidate matches the stored hash and the window
// has not closed. The expiry instant itself is still valid.
func (si *SecretIssuer) Verify(candidate string, storedHash *string, expiresAt *time.Time) bool {
	if storedHash == nil || expiresAt == nil || candidate == "" {
		return false
	}

	candidateHash := HashSecret(candidate)
	match := subtle.ConstantTimeCompare([]byte(candidateHash), []byte(*storedHash)) == 1

	return match && !si.now().After(*expiresAt)
}

// HashSecret returns the hex SHA-256 digest stored in place of a secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ValidOTPFormat accepts exactly six ASCII digits.
func ValidOTPFormat(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
