package models

import (
	"strings"
	"time"
)

// Roles understood by the access gate.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	// Password is plaintext awaiting hashing by the store on Create/Save.
	// It is never persisted.
	Password string

	IsVerified   bool
	OTPCodeHash  *string
	OTPExpiresAt *time.Time

	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IssuedSecret is a freshly minted OTP or reset token. Plaintext goes to the
// user, Hash and ExpiresAt go to the store.
type IssuedSecret struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// SetOTP records a pending OTP. Hash and expiry are always set together.
func (u *User) SetOTP(s IssuedSecret) {
	hash, exp := s.Hash, s.ExpiresAt
	u.OTPCodeHash = &hash
	u.OTPExpiresAt = &exp
}

// ClearOTP drops any pending OTP.
func (u *User) ClearOTP() {
	u.OTPCodeHash = nil
	u.OTPExpiresAt = nil
}

// SetResetToken records a pending password reset.
func (u *User) SetResetToken(s IssuedSecret) {
	hash, exp := s.Hash, s.ExpiresAt
	u.ResetTokenHash = &hash
	u.ResetTokenExpiresAt = &exp
}

// ClearResetToken drops any pending password reset.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// NormalizeEmail is the canonical form used for every lookup and write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
