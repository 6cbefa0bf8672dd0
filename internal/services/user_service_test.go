package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_ListUsers_Success(t *testing.T) {
	users := []*models.User{
		NewTestUser("user1", "alice", "a@x.com"),
		NewTestUser("user2", "bob", "b@x.com"),
	}
	users[0].PasswordHash = "$2a$12$should-never-leave"

	mockUserRepo := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			return users, nil
		},
	}

	svc := NewUserService(mockUserRepo, discardLogger())

	result, err := svc.ListUsers(context.Background(), 10, 0)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "user1", result[0].ID)
	assert.Equal(t, "alice", result[0].Username)
	assert.Equal(t, "b@x.com", result[1].Email)
}

func TestUserService_ListUsers_ClampsPaging(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"default limit", 0, 0, DefaultListLimit, 0},
		{"max limit", 1000, 5, MaxListLimit, 5},
		{"negative offset", 10, -3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			mockUserRepo := &MockUserRepository{
				ListFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
					gotLimit, gotOffset = limit, offset
					return nil, nil
				},
			}

			svc := NewUserService(mockUserRepo, discardLogger())
			result, err := svc.ListUsers(context.Background(), tt.limit, tt.offset)

			require.NoError(t, err)
			assert.Empty(t, result)
			assert.Equal(t, tt.wantLimit, gotLimit)
			assert.Equal(t, tt.wantOffset, gotOffset)
		})
	}
}

func TestUserService_ListUsers_DatabaseError(t *testing.T) {
	mockUserRepo := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			return nil, errors.New("connection reset")
		},
	}

	svc := NewUserService(mockUserRepo, discardLogger())

	result, err := svc.ListUsers(context.Background(), 10, 0)

	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Nil(t, result)
}

func TestUserService_EnsureAdmin_CreatesVerifiedAdmin(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewUserService(repo, discardLogger())

	created, err := svc.EnsureAdmin(context.Background(), "admin", "Admin@X.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := repo.GetByEmail(context.Background(), "admin@x.com")
	require.NoError(t, err)
	assert.True(t, admin.IsVerified)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, repo.VerifyPassword(admin, "adminpass"))
}

func TestUserService_EnsureAdmin_ExistingVerifiedUntouched(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewUserService(repo, discardLogger())

	_, err := svc.EnsureAdmin(context.Background(), "admin", "admin@x.com", "adminpass")
	require.NoError(t, err)

	created, err := svc.EnsureAdmin(context.Background(), "admin", "admin@x.com", "otherpass")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := repo.GetByEmail(context.Background(), "admin@x.com")
	require.NoError(t, err)
	assert.True(t, repo.VerifyPassword(admin, "adminpass"))
}

func TestUserService_EnsureAdmin_TakesOverPendingRecord(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewUserService(repo, discardLogger())

	pending := &models.User{Username: "squatter", Email: "admin@x.com", Password: "whatever1"}
	_, _, err := repo.Create(context.Background(), pending)
	require.NoError(t, err)

	created, err := svc.EnsureAdmin(context.Background(), "admin", "admin@x.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, repo.Count())

	admin, err := repo.GetByEmail(context.Background(), "admin@x.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Username)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.IsVerified)
}

func TestNewUserSummary_Nil(t *testing.T) {
	assert.Nil(t, NewUserSummary(nil))
}
