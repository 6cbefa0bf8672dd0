package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// TokenManager handles session token generation and validation
type TokenManager struct {
	secret        []byte
	sessionExpiry time.Duration
	now           func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, sessionExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        []byte(secret),
		sessionExpiry: sessionExpiry,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating tokens.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Issue signs a session token for userID. The token carries the user id
// only: no email, role or credential material.
func (tm *TokenManager) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("failed to sign session token: empty user id")
	}

	now := tm.now()

	claims := &models.TokenClaims{
		Type:   models.TokenTypeSession,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Verify checks signature, algorithm, validity window and token type, and
// returns the user id. Every failure is models.ErrInvalidToken.
func (tm *TokenManager) Verify(tokenString string) (string, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil || !token.Valid {
		return "", models.ErrInvalidToken
	}

	if claims.Type != models.TokenTypeSession || claims.UserID == "" {
		return "", models.ErrInvalidToken
	}

	return claims.UserID, nil
}
