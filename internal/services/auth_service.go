package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/BradenHooton/leafcheck/internal/models"
	pkgauth "github.com/BradenHooton/leafcheck/pkg/auth"
	pkglogger "github.com/BradenHooton/leafcheck/pkg/logger"
)

// AuthOptions holds the workflow settings taken from configuration
type AuthOptions struct {
	// DevMode echoes OTPs and reset tokens in responses. Never set in production.
	DevMode       bool
	FrontendURL   string
	NotifyTimeout time.Duration
}

// AuthService runs the registration, verification, login and password reset
// workflow on top of the credential store.
type AuthService struct {
	repo        UserRepository
	secrets     *auth.SecretIssuer
	tm          *auth.TokenManager
	notifier    Notifier
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	opts        AuthOptions
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	secrets *auth.SecretIssuer,
	tm *auth.TokenManager,
	notifier Notifier,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	opts AuthOptions,
) *AuthService {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 15 * time.Second
	}
	return &AuthService{
		repo:        repo,
		secrets:     secrets,
		tm:          tm,
		notifier:    notifier,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
		opts:        opts,
		now:         time.Now,
	}
}

// AuthResponse is returned by every operation that issues a session token
type AuthResponse struct {
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token"`
	User    *UserSummary `json:"user"`
}

// RegisterResponse acknowledges a registration. OTP is set in dev mode only.
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	OTP     string `json:"otp,omitempty"`
}

// MessageResponse is a plain acknowledgement. OTP is set in dev mode only.
type MessageResponse struct {
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}

// ForgotPasswordResponse acknowledges a reset request. The token and link are
// set in dev mode only.
type ForgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
	ResetURL   string `json:"reset_url,omitempty"`
}

// Register creates an unverified account, or takes over an existing
// unverified one with the same email, and emails it a fresh OTP.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*RegisterResponse, error) {
	username = strings.TrimSpace(username)
	email = models.NormalizeEmail(email)
	if username == "" || email == "" {
		return nil, models.ErrBadRequest
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	otp, err := s.secrets.IssueOTP()
	if err != nil {
		s.logger.Error("failed to issue otp", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	candidate := &models.User{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleUser,
	}
	candidate.SetOTP(otp)

	user, created, err := s.repo.Create(ctx, candidate)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) || errors.Is(err, models.ErrDuplicateUsername) {
			s.logger.Info("registration rejected", slog.String("reason", err.Error()))
			s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventRegister,
				Email:         email,
				FailureReason: "duplicate",
			})
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.notify(ctx, verificationEmail(user.Email, user.Username, otp.Plaintext, otp.ExpiresAt, s.now())); err != nil {
		s.rollbackRegistration(ctx, user, otp.Hash, created)
		s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventRegister,
			UserID:        user.ID,
			Email:         email,
			FailureReason: "notification_failed",
		})
		return nil, models.ErrNotificationFailed
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.Bool("reused", !created))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegister,
		UserID:    user.ID,
		Email:     email,
		Success:   true,
	})

	resp := &RegisterResponse{
		Message: "Registration successful. Please check your email for the verification code.",
		UserID:  user.ID,
	}
	if s.opts.DevMode {
		resp.OTP = otp.Plaintext
	}
	return resp, nil
}

// rollbackRegistration undoes a registration whose OTP never reached the
// user. A new record is deleted. A reused record already lost its previous
// OTP to the upsert, so only the undelivered one is cleared, and only if no
// newer code has replaced it.
func (s *AuthService) rollbackRegistration(ctx context.Context, user *models.User, otpHash string, created bool) {
	ctx = context.WithoutCancel(ctx)

	if created {
		if err := s.repo.Delete(ctx, user.ID); err != nil {
			s.logger.Error("failed to roll back registration",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
		}
		return
	}

	if err := s.repo.ClearOTP(ctx, user.ID, otpHash); err != nil {
		s.logger.Error("failed to clear undelivered otp",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
}

// VerifyOTP marks the account verified when code matches the pending OTP and
// returns a session token. Failures never mutate the record. The store only
// consumes the code if it is still the pending one, so a code replaced by a
// concurrent resend or re-registration is rejected.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*AuthResponse, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !auth.ValidOTPFormat(code) {
		return nil, models.ErrInvalidOrExpiredOTP
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidOrExpiredOTP
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.secrets.Verify(code, user.OTPCodeHash, user.OTPExpiresAt) {
		s.logger.Info("otp verification failed", slog.String("user_id", user.ID))
		s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventVerifyOTP,
			UserID:        user.ID,
			FailureReason: "invalid_or_expired_otp",
		})
		return nil, models.ErrInvalidOrExpiredOTP
	}

	saved, err := s.repo.ConsumeOTP(ctx, user.ID, auth.HashSecret(code), s.now())
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredOTP) {
			s.logger.Info("otp already consumed or replaced", slog.String("user_id", user.ID))
			s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventVerifyOTP,
				UserID:        user.ID,
				FailureReason: "invalid_or_expired_otp",
			})
			return nil, models.ErrInvalidOrExpiredOTP
		}
		s.logger.Error("failed to consume otp", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := s.tm.Issue(saved.ID)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("user_id", saved.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("user_id", saved.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventVerifyOTP,
		UserID:    saved.ID,
		Success:   true,
	})

	return &AuthResponse{
		Message: "Email verified successfully",
		Token:   token,
		User:    NewUserSummary(saved),
	}, nil
}

// ResendOTP replaces the pending OTP of an unverified account and emails the
// new one. The previous code stops verifying immediately.
func (s *AuthService) ResendOTP(ctx context.Context, email string) (*MessageResponse, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, models.ErrNotFoundOrAlreadyVerified
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFoundOrAlreadyVerified
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if user.IsVerified {
		return nil, models.ErrNotFoundOrAlreadyVerified
	}

	otp, err := s.secrets.IssueOTP()
	if err != nil {
		s.logger.Error("failed to issue otp", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Refused by the store if the account was verified since the read
	saved, err := s.repo.SetOTP(ctx, user.ID, otp)
	if err != nil {
		if errors.Is(err, models.ErrNotFoundOrAlreadyVerified) {
			return nil, err
		}
		s.logger.Error("failed to save otp", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.notify(ctx, verificationEmail(saved.Email, saved.Username, otp.Plaintext, otp.ExpiresAt, s.now())); err != nil {
		if rbErr := s.repo.ClearOTP(context.WithoutCancel(ctx), saved.ID, otp.Hash); rbErr != nil {
			s.logger.Error("failed to clear undelivered otp",
				slog.String("user_id", saved.ID),
				slog.Any("error", rbErr))
		}
		s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventResendOTP,
			UserID:        saved.ID,
			FailureReason: "notification_failed",
		})
		return nil, models.ErrNotificationFailed
	}

	s.logger.Info("otp resent", slog.String("user_id", saved.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventResendOTP,
		UserID:    saved.ID,
		Success:   true,
	})

	resp := &MessageResponse{Message: "A new verification code has been sent to your email"}
	if s.opts.DevMode {
		resp.OTP = otp.Plaintext
	}
	return resp, nil
}

// Login checks the password first and the verification flag second, so the
// needs-verification signal is only given to callers who know the password.
// Every failure is padded to a common duration.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	start := time.Now()
	email = models.NormalizeEmail(email)

	fail := func(userID, reason string, err error) (*AuthResponse, error) {
		s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLogin,
			UserID:        userID,
			Email:         email,
			FailureReason: reason,
		})
		s.timing.PadFailure(ctx, start)
		return nil, err
	}

	var user *models.User
	if email != "" {
		found, err := s.repo.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to get user by email", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		user = found
	}

	// VerifyPassword burns a dummy comparison when user is nil
	passwordOK := s.repo.VerifyPassword(user, password)
	if user == nil || !passwordOK {
		s.logger.Info("login failed: invalid credentials")
		userID := ""
		if user != nil {
			userID = user.ID
		}
		return fail(userID, "invalid_credentials", models.ErrInvalidCredentials)
	}

	if !user.IsVerified {
		s.logger.Info("login blocked: email not verified", slog.String("user_id", user.ID))
		return fail(user.ID, "email_not_verified", models.ErrEmailNotVerified)
	}

	token, err := s.tm.Issue(user.ID)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Success:   true,
	})

	return &AuthResponse{
		Token: token,
		User:  NewUserSummary(user),
	}, nil
}

// ForgotPassword stores a pending reset for the account and emails the link.
// Unknown emails are reported as models.ErrNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResponse, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, models.ErrNotFound
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventForgotPassword,
				Email:         email,
				FailureReason: "not_found",
			})
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	reset, err := s.secrets.IssueResetToken()
	if err != nil {
		s.logger.Error("failed to issue reset token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	saved, err := s.repo.SetResetToken(ctx, user.ID, reset)
	if err != nil {
		s.logger.Error("failed to save reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	link := ResetLink(s.opts.FrontendURL, reset.Plaintext)

	if err := s.notify(ctx, passwordResetEmail(saved.Email, link, reset.ExpiresAt, s.now())); err != nil {
		if rbErr := s.repo.ClearResetToken(context.WithoutCancel(ctx), saved.ID, reset.Hash); rbErr != nil {
			s.logger.Error("failed to clear undelivered reset token",
				slog.String("user_id", saved.ID),
				slog.Any("error", rbErr))
		}
		s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventForgotPassword,
			UserID:        saved.ID,
			FailureReason: "notification_failed",
		})
		return nil, models.ErrNotificationFailed
	}

	s.logger.Info("password reset requested", slog.String("user_id", saved.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventForgotPassword,
		UserID:    saved.ID,
		Success:   true,
	})

	resp := &ForgotPasswordResponse{Message: "Password reset email sent"}
	if s.opts.DevMode {
		resp.ResetToken = reset.Plaintext
		resp.ResetURL = link
	}
	return resp, nil
}

// ResetPassword consumes a reset token, sets the new password and returns a
// session token. The token is single use. Holding it proves control of the
// mailbox, so a still-unverified account becomes verified too.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*AuthResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.ErrInvalidOrExpiredToken
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByResetTokenHash(ctx, auth.HashSecret(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.secrets.Verify(token, user.ResetTokenHash, user.ResetTokenExpiresAt) {
		s.logger.Info("reset token rejected", slog.String("user_id", user.ID))
		s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventResetPassword,
			UserID:        user.ID,
			FailureReason: "invalid_or_expired_token",
		})
		return nil, models.ErrInvalidOrExpiredToken
	}

	// Only one caller can spend the token; a concurrent reset that already
	// consumed it leaves nothing for this one to match.
	saved, err := s.repo.ConsumeResetToken(ctx, *user.ResetTokenHash, newPassword, s.now())
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredToken) {
			s.logger.Info("reset token already consumed", slog.String("user_id", user.ID))
			s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventResetPassword,
				UserID:        user.ID,
				FailureReason: "invalid_or_expired_token",
			})
			return nil, models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to save new password", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	sessionToken, err := s.tm.Issue(saved.ID)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("user_id", saved.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("password reset", slog.String("user_id", saved.ID))
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventResetPassword,
		UserID:    saved.ID,
		Success:   true,
	})

	return &AuthResponse{
		Message: "Password updated successfully",
		Token:   sessionToken,
		User:    NewUserSummary(saved),
	}, nil
}

// GetCurrentUser projects the user the access gate resolved
func (s *AuthService) GetCurrentUser(user *models.User) *UserSummary {
	return NewUserSummary(user)
}

// notify sends msg with the configured bound. A notifier that ignores its
// context still cannot hold the request past the deadline.
func (s *AuthService) notify(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.notifier.Send(ctx, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("notification failed",
				slog.String("email", pkglogger.SanitizedEmail(msg.To)),
				slog.Any("error", err))
		}
		return err
	case <-ctx.Done():
		s.logger.Error("notification timed out",
			slog.String("email", pkglogger.SanitizedEmail(msg.To)),
			slog.Duration("timeout", s.opts.NotifyTimeout))
		return fmt.Errorf("notify: %w", ctx.Err())
	}
}
