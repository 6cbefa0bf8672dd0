package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/leafcheck/internal/database"
	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/BradenHooton/leafcheck/pkg/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, password_hash, is_verified,
	otp_code_hash, otp_expires_at, reset_token_hash, reset_token_expires_at,
	role, created_at, updated_at`

// userColumnsPublic selects everything except the password hash.
const userColumnsPublic = `id, username, email, ''::text AS password_hash, is_verified,
	otp_code_hash, otp_expires_at, reset_token_hash, reset_token_expires_at,
	role, created_at, updated_at`

// UserRepository is the Postgres-backed credential store. It owns password
// hashing: plaintext set on User.Password is hashed on Create and Save.
type UserRepository struct {
	pool       *pgxpool.Pool
	bcryptCost int
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool, bcryptCost: auth.BcryptCost}
}

// WithBcryptCost overrides the hashing cost. Integration tests lower it.
func (r *UserRepository) WithBcryptCost(cost int) *UserRepository {
	r.bcryptCost = cost
	return r
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow populates a User from a row selected with userColumns, followed
// by any extra destinations.
func scanUserRow(scanner rowScanner, extra ...interface{}) (*models.User, error) {
	var user models.User

	dest := []interface{}{
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsVerified,
		&user.OTPCodeHash, &user.OTPExpiresAt, &user.ResetTokenHash, &user.ResetTokenExpiresAt,
		&user.Role, &user.CreatedAt, &user.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := scanner.Scan(dest...); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// GetByID returns the user without its password hash.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumnsPublic + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

// GetByResetTokenHash finds the user holding a pending reset with this hash.
// Expiry is not checked here.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	query := `SELECT ` + userColumnsPublic + ` FROM users WHERE reset_token_hash = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, hash))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumnsPublic + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// Create inserts a user, or reuses an existing unverified record with the same
// email in one statement. The reused record takes the new username, password
// and OTP. created reports whether a new row was inserted. A verified record
// with the same email is never touched and yields models.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, bool, error) {
	if user.Password == "" {
		return nil, false, fmt.Errorf("create user: password is required")
	}

	hash, err := auth.HashPasswordWithCost(user.Password, r.bcryptCost)
	if err != nil {
		return nil, false, err
	}
	user.Password = ""
	user.PasswordHash = hash

	user.ID = uuid.New().String()
	user.Email = models.NormalizeEmail(user.Email)

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, is_verified, otp_code_hash, otp_expires_at, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (email) DO UPDATE SET
			username       = EXCLUDED.username,
			password_hash  = EXCLUDED.password_hash,
			otp_code_hash  = EXCLUDED.otp_code_hash,
			otp_expires_at = EXCLUDED.otp_expires_at,
			updated_at     = EXCLUDED.updated_at
		WHERE users.is_verified = FALSE
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`

	var inserted bool
	saved, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsVerified,
		user.OTPCodeHash, user.OTPExpiresAt, user.Role, user.CreatedAt, user.UpdatedAt,
	), &inserted)
	if err != nil {
		// The conflict WHERE clause filtered the row out: the email belongs
		// to a verified account.
		if errors.Is(err, models.ErrNotFound) {
			return nil, false, models.ErrDuplicateEmail
		}
		return nil, false, err
	}

	return saved, inserted, nil
}

// Save persists every mutable field of user in a single UPDATE. The password
// hash only changes when user.Password carries a new plaintext. It does not
// guard against concurrent writers; secret lifecycle changes go through the
// conditional SetOTP/ConsumeOTP/SetResetToken/ConsumeResetToken instead.
func (r *UserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	var newHash *string
	if user.Password != "" {
		hash, err := auth.HashPasswordWithCost(user.Password, r.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.Password = ""
		user.PasswordHash = hash
		newHash = &hash
	}

	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			username               = $1,
			password_hash          = COALESCE($2, password_hash),
			is_verified            = $3,
			otp_code_hash          = $4,
			otp_expires_at         = $5,
			reset_token_hash       = $6,
			reset_token_expires_at = $7,
			role                   = $8,
			updated_at             = $9
		WHERE id = $10
		RETURNING ` + userColumnsPublic

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, newHash, user.IsVerified,
		user.OTPCodeHash, user.OTPExpiresAt, user.ResetTokenHash, user.ResetTokenExpiresAt,
		user.Role, user.UpdatedAt, user.ID,
	))
}

// SetOTP stores a fresh OTP pair on an unverified account. A verified or
// missing account yields models.ErrNotFoundOrAlreadyVerified and is left
// untouched.
func (r *UserRepository) SetOTP(ctx context.Context, id string, otp models.IssuedSecret) (*models.User, error) {
	query := `
		UPDATE users SET
			otp_code_hash  = $2,
			otp_expires_at = $3,
			updated_at     = $4
		WHERE id = $1 AND is_verified = FALSE
		RETURNING ` + userColumnsPublic

	user, err := scanUserRow(r.pool.QueryRow(ctx, query, id, otp.Hash, otp.ExpiresAt, time.Now()))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNotFoundOrAlreadyVerified
	}
	return user, err
}

// ClearOTP drops the pending OTP only while it is still the one with hash,
// so a newer code issued in the meantime survives.
func (r *UserRepository) ClearOTP(ctx context.Context, id, hash string) error {
	query := `
		UPDATE users SET otp_code_hash = NULL, otp_expires_at = NULL, updated_at = $3
		WHERE id = $1 AND otp_code_hash = $2
	`

	if _, err := r.pool.Exec(ctx, query, id, hash, time.Now()); err != nil {
		return fmt.Errorf("failed to clear otp: %w", err)
	}
	return nil
}

// ConsumeOTP verifies the account and clears its OTP in one statement, but
// only if the stored code still has hash and has not expired at now. Two
// callers racing on one code cannot both succeed.
func (r *UserRepository) ConsumeOTP(ctx context.Context, id, hash string, now time.Time) (*models.User, error) {
	query := `
		UPDATE users SET
			is_verified    = TRUE,
			otp_code_hash  = NULL,
			otp_expires_at = NULL,
			updated_at     = $4
		WHERE id = $1
			AND is_verified = FALSE
			AND otp_code_hash = $2
			AND otp_expires_at >= $3
		RETURNING ` + userColumnsPublic

	user, err := scanUserRow(r.pool.QueryRow(ctx, query, id, hash, now, time.Now()))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidOrExpiredOTP
	}
	return user, err
}

// SetResetToken stores a pending reset, replacing any earlier one.
func (r *UserRepository) SetResetToken(ctx context.Context, id string, reset models.IssuedSecret) (*models.User, error) {
	query := `
		UPDATE users SET
			reset_token_hash       = $2,
			reset_token_expires_at = $3,
			updated_at             = $4
		WHERE id = $1
		RETURNING ` + userColumnsPublic

	return scanUserRow(r.pool.QueryRow(ctx, query, id, reset.Hash, reset.ExpiresAt, time.Now()))
}

// ClearResetToken drops the pending reset only while it is still the one
// with hash.
func (r *UserRepository) ClearResetToken(ctx context.Context, id, hash string) error {
	query := `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $3
		WHERE id = $1 AND reset_token_hash = $2
	`

	if _, err := r.pool.Exec(ctx, query, id, hash, time.Now()); err != nil {
		return fmt.Errorf("failed to clear reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken spends the reset token with hash, if it has not expired
// at now, and sets newPassword in the same statement. The account ends up
// verified with no pending OTP. A spent, replaced or expired token yields
// models.ErrInvalidOrExpiredToken.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, hash, newPassword string, now time.Time) (*models.User, error) {
	passwordHash, err := auth.HashPasswordWithCost(newPassword, r.bcryptCost)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE users SET
			password_hash          = $2,
			reset_token_hash       = NULL,
			reset_token_expires_at = NULL,
			is_verified            = TRUE,
			otp_code_hash          = NULL,
			otp_expires_at         = NULL,
			updated_at             = $4
		WHERE reset_token_hash = $1 AND reset_token_expires_at >= $3
		RETURNING ` + userColumnsPublic

	user, err := scanUserRow(r.pool.QueryRow(ctx, query, hash, passwordHash, now, time.Now()))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidOrExpiredToken
	}
	return user, err
}

// VerifyPassword compares candidate against the stored hash. A nil user or a
// record loaded without its hash still costs one bcrypt comparison.
func (r *UserRepository) VerifyPassword(user *models.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" {
		auth.CompareDummy(candidate)
		return false
	}
	return auth.ComparePassword(user.PasswordHash, candidate) == nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ClearExpiredSecrets nulls OTP and reset pairs whose window has passed.
// Expired secrets already fail verification; this only keeps the table tidy.
func (r *UserRepository) ClearExpiredSecrets(ctx context.Context) (int64, error) {
	query := `
		UPDATE users SET
			otp_code_hash          = CASE WHEN otp_expires_at < NOW() THEN NULL ELSE otp_code_hash END,
			otp_expires_at         = CASE WHEN otp_expires_at < NOW() THEN NULL ELSE otp_expires_at END,
			reset_token_hash       = CASE WHEN reset_token_expires_at < NOW() THEN NULL ELSE reset_token_hash END,
			reset_token_expires_at = CASE WHEN reset_token_expires_at < NOW() THEN NULL ELSE reset_token_expires_at END
		WHERE otp_expires_at < NOW() OR reset_token_expires_at < NOW()
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired secrets: %w", err)
	}

	return result.RowsAffected(), nil
}
