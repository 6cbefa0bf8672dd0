package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/leafcheck/internal/models"
	pkghttp "github.com/BradenHooton/leafcheck/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated user in context
	UserContextKey contextKey = "user"
)

// UserRepository is the lookup the gate needs to resolve a token's subject
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware admits requests carrying a valid bearer token whose user
// still exists and has verified their email. The user is placed in context.
func AuthMiddleware(tm *TokenManager, userRepo UserRepository, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Not authorized, no token")
				return
			}

			userID, err := tm.Verify(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Not authorized, token failed")
				return
			}

			user, err := userRepo.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Not authorized, user not found")
					return
				}
				logger.Error("failed to load user for token",
					slog.String("user_id", userID),
					slog.String("error", err.Error()))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if !user.IsVerified {
				pkghttp.WriteNeedsVerification(w, "Please verify your email to access this resource")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole admits only users whose role is one of roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				pkghttp.WriteUnauthorized(w, "Not authorized")
				return
			}

			if !user.HasRole(roles...) {
				pkghttp.WriteForbidden(w, "User role "+user.Role+" is not authorized to access this route")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// UserFromContext extracts the authenticated user, or nil
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
