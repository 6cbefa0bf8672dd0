package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/leafcheck/internal/models"
)

// UserRepository defines the credential store the services depend on. The
// Set/Clear/Consume methods are conditional single-record updates; the auth
// workflow changes secrets and the verified flag only through them.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, bool, error)
	Save(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	SetOTP(ctx context.Context, id string, otp models.IssuedSecret) (*models.User, error)
	ClearOTP(ctx context.Context, id, hash string) error
	ConsumeOTP(ctx context.Context, id, hash string, now time.Time) (*models.User, error)
	SetResetToken(ctx context.Context, id string, reset models.IssuedSecret) (*models.User, error)
	ClearResetToken(ctx context.Context, id, hash string) error
	ConsumeResetToken(ctx context.Context, hash, newPassword string, now time.Time) (*models.User, error)
	VerifyPassword(user *models.User, candidate string) bool
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UserSummary is the only user projection returned to clients
type UserSummary struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserSummary projects a user, dropping every hash and expiry
func NewUserSummary(user *models.User) *UserSummary {
	if user == nil {
		return nil
	}
	return &UserSummary{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// UserService handles user administration
type UserService struct {
	repo   UserRepository
	logger *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// ListUsers returns a page of user summaries, newest first. Out of range
// limits are clamped.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*UserSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	summaries := make([]*UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, NewUserSummary(u))
	}

	return summaries, nil
}

// EnsureAdmin creates a verified admin account unless the email is already
// registered. An existing unverified record for the email is taken over.
// It reports whether an account was written.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil && existing.IsVerified {
		s.logger.Info("admin user already exists", slog.String("user_id", existing.ID))
		return false, nil
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, err
	}

	admin := &models.User{
		Username:   username,
		Email:      email,
		Password:   password,
		Role:       models.RoleAdmin,
		IsVerified: true,
	}

	saved, _, err := s.repo.Create(ctx, admin)
	if err != nil {
		return false, err
	}

	// The upsert keeps is_verified and role of a reused record
	if !saved.IsVerified || saved.Role != models.RoleAdmin {
		saved.IsVerified = true
		saved.Role = models.RoleAdmin
		saved.ClearOTP()
		if _, err := s.repo.Save(ctx, saved); err != nil {
			return false, err
		}
	}

	s.logger.Info("admin user created", slog.String("user_id", saved.ID))
	return true, nil
}
