package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/leafcheck/internal/models"
	pkgauth "github.com/BradenHooton/leafcheck/pkg/auth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.User, error)
	GetByResetTokenHashFunc func(ctx context.Context, hash string) (*models.User, error)
	ListFunc                func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc              func(ctx context.Context, user *models.User) (*models.User, bool, error)
	SaveFunc                func(ctx context.Context, user *models.User) (*models.User, error)
	DeleteFunc              func(ctx context.Context, id string) error
	SetOTPFunc              func(ctx context.Context, id string, otp models.IssuedSecret) (*models.User, error)
	ClearOTPFunc            func(ctx context.Context, id, hash string) error
	ConsumeOTPFunc          func(ctx context.Context, id, hash string, now time.Time) (*models.User, error)
	SetResetTokenFunc       func(ctx context.Context, id string, reset models.IssuedSecret) (*models.User, error)
	ClearResetTokenFunc     func(ctx context.Context, id, hash string) error
	ConsumeResetTokenFunc   func(ctx context.Context, hash, newPassword string, now time.Time) (*models.User, error)
	VerifyPasswordFunc      func(user *models.User, candidate string) bool
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	if m.GetByResetTokenHashFunc != nil {
		return m.GetByResetTokenHashFunc(ctx, hash)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, bool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, false, models.ErrInternalServer
}

func (m *MockUserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetOTP(ctx context.Context, id string, otp models.IssuedSecret) (*models.User, error) {
	if m.SetOTPFunc != nil {
		return m.SetOTPFunc(ctx, id, otp)
	}
	return nil, models.ErrNotFoundOrAlreadyVerified
}

func (m *MockUserRepository) ClearOTP(ctx context.Context, id, hash string) error {
	if m.ClearOTPFunc != nil {
		return m.ClearOTPFunc(ctx, id, hash)
	}
	return nil
}

func (m *MockUserRepository) ConsumeOTP(ctx context.Context, id, hash string, now time.Time) (*models.User, error) {
	if m.ConsumeOTPFunc != nil {
		return m.ConsumeOTPFunc(ctx, id, hash, now)
	}
	return nil, models.ErrInvalidOrExpiredOTP
}

func (m *MockUserRepository) SetResetToken(ctx context.Context, id string, reset models.IssuedSecret) (*models.User, error) {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(ctx, id, reset)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) ClearResetToken(ctx context.Context, id, hash string) error {
	if m.ClearResetTokenFunc != nil {
		return m.ClearResetTokenFunc(ctx, id, hash)
	}
	return nil
}

func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, hash, newPassword string, now time.Time) (*models.User, error) {
	if m.ConsumeResetTokenFunc != nil {
		return m.ConsumeResetTokenFunc(ctx, hash, newPassword, now)
	}
	return nil, models.ErrInvalidOrExpiredToken
}

func (m *MockUserRepository) VerifyPassword(user *models.User, candidate string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(user, candidate)
	}
	return false
}

// MockNotifier implements Notifier for testing. Sent records every message
// handed to it, including ones SendFunc fails.
type MockNotifier struct {
	SendFunc func(ctx context.Context, msg Message) error

	mu   sync.Mutex
	Sent []Message
}

func (m *MockNotifier) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

// Messages returns a copy of the recorded messages
func (m *MockNotifier) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Sent...)
}

// MemoryUserRepository is an in-memory UserRepository with the same
// upsert-by-reuse and uniqueness rules as the Postgres store. Records are
// copied in and out so unsaved mutations never leak into the store.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	deleted []string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: make(map[string]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.OTPCodeHash != nil {
		v := *u.OTPCodeHash
		c.OTPCodeHash = &v
	}
	if u.OTPExpiresAt != nil {
		v := *u.OTPExpiresAt
		c.OTPExpiresAt = &v
	}
	if u.ResetTokenHash != nil {
		v := *u.ResetTokenHash
		c.ResetTokenHash = &v
	}
	if u.ResetTokenExpiresAt != nil {
		v := *u.ResetTokenExpiresAt
		c.ResetTokenExpiresAt = &v
	}
	c.Password = ""
	return &c
}

func (r *MemoryUserRepository) findByEmail(email string) *models.User {
	for _, u := range r.byID {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (r *MemoryUserRepository) usernameTaken(username, exceptID string) bool {
	for _, u := range r.byID {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := cloneUser(u)
	c.PasswordHash = ""
	return c, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u := r.findByEmail(models.NormalizeEmail(email)); u != nil {
		return cloneUser(u), nil
	}
	return nil, models.ErrNotFound
}

func (r *MemoryUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == hash {
			return cloneUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, cloneUser(u))
	}
	if offset >= len(users) {
		return []*models.User{}, nil
	}
	users = users[offset:]
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, bool, error) {
	hash, err := pkgauth.HashPasswordWithCost(user.Password, bcrypt.MinCost)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	now := time.Now()

	if existing := r.findByEmail(email); existing != nil {
		if existing.IsVerified {
			return nil, false, models.ErrDuplicateEmail
		}
		if r.usernameTaken(user.Username, existing.ID) {
			return nil, false, models.ErrDuplicateUsername
		}
		existing.Username = user.Username
		existing.PasswordHash = hash
		existing.OTPCodeHash = user.OTPCodeHash
		existing.OTPExpiresAt = user.OTPExpiresAt
		existing.UpdatedAt = now
		stored := cloneUser(existing)
		r.byID[existing.ID] = stored
		return cloneUser(stored), false, nil
	}

	if r.usernameTaken(user.Username, "") {
		return nil, false, models.ErrDuplicateUsername
	}

	stored := cloneUser(user)
	stored.ID = uuid.New().String()
	stored.Email = email
	stored.PasswordHash = hash
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.Role == "" {
		stored.Role = models.RoleUser
	}
	r.byID[stored.ID] = stored

	return cloneUser(stored), true, nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	var hash string
	if user.Password != "" {
		h, err := pkgauth.HashPasswordWithCost(user.Password, bcrypt.MinCost)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return nil, models.ErrNotFound
	}

	stored := cloneUser(user)
	stored.Email = existing.Email
	stored.CreatedAt = existing.CreatedAt
	stored.PasswordHash = existing.PasswordHash
	if hash != "" {
		stored.PasswordHash = hash
		user.Password = ""
	}
	stored.UpdatedAt = time.Now()
	r.byID[user.ID] = stored

	out := cloneUser(stored)
	out.PasswordHash = ""
	return out, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.byID, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *MemoryUserRepository) SetOTP(ctx context.Context, id string, otp models.IssuedSecret) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok || u.IsVerified {
		return nil, models.ErrNotFoundOrAlreadyVerified
	}
	u.SetOTP(otp)
	u.UpdatedAt = time.Now()
	return publicCopy(u), nil
}

func (r *MemoryUserRepository) ClearOTP(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.byID[id]; ok && u.OTPCodeHash != nil && *u.OTPCodeHash == hash {
		u.ClearOTP()
		u.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryUserRepository) ConsumeOTP(ctx context.Context, id, hash string, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok || u.IsVerified || u.OTPCodeHash == nil || *u.OTPCodeHash != hash ||
		u.OTPExpiresAt == nil || now.After(*u.OTPExpiresAt) {
		return nil, models.ErrInvalidOrExpiredOTP
	}
	u.IsVerified = true
	u.ClearOTP()
	u.UpdatedAt = time.Now()
	return publicCopy(u), nil
}

func (r *MemoryUserRepository) SetResetToken(ctx context.Context, id string, reset models.IssuedSecret) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	u.SetResetToken(reset)
	u.UpdatedAt = time.Now()
	return publicCopy(u), nil
}

func (r *MemoryUserRepository) ClearResetToken(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.byID[id]; ok && u.ResetTokenHash != nil && *u.ResetTokenHash == hash {
		u.ClearResetToken()
		u.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryUserRepository) ConsumeResetToken(ctx context.Context, hash, newPassword string, now time.Time) (*models.User, error) {
	passwordHash, err := pkgauth.HashPasswordWithCost(newPassword, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != hash {
			continue
		}
		if u.ResetTokenExpiresAt == nil || now.After(*u.ResetTokenExpiresAt) {
			break
		}
		u.PasswordHash = passwordHash
		u.ClearResetToken()
		u.IsVerified = true
		u.ClearOTP()
		u.UpdatedAt = time.Now()
		return publicCopy(u), nil
	}
	return nil, models.ErrInvalidOrExpiredToken
}

// publicCopy is the projection the store returns from writes: no hash.
func publicCopy(u *models.User) *models.User {
	c := cloneUser(u)
	c.PasswordHash = ""
	return c
}

func (r *MemoryUserRepository) VerifyPassword(user *models.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return pkgauth.ComparePassword(user.PasswordHash, candidate) == nil
}

// Count returns the number of stored users
func (r *MemoryUserRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Stored returns a copy of the stored record for id, including its hash
func (r *MemoryUserRepository) Stored(id string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	return cloneUser(u)
}

// NewTestUser creates a verified user for testing
func NewTestUser(id, username, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:         id,
		Username:   username,
		Email:      email,
		IsVerified: true,
		Role:       models.RoleUser,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
