package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/middleware/auth"
)

func newTestAuthService(repo *MockUserRepository) AuthService {
	clock := &fakeClock{t: time.Now()}
	return NewAuthService(repo, newTestTokens(clock))
}

func TestRegister_Success(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "testuser").Return(nil, gorm.ErrRecordNotFound)
	mockUserRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil)

	result, err := authService.Register(ctx, "testuser", "password123")

	require.NoError(t, err)
	assert.Equal(t, "testuser", result.User.Username)
	assert.NotEqual(t, "password123", result.User.PasswordHash)
	assert.NoError(t, auth.VerifyPassword(result.User.PasswordHash, "password123"))
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	username, err := authService.Tokens().Verify(result.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "testuser", username)
	mockUserRepo.AssertExpectations(t)
}

func TestRegister_UsernameExists(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "testuser").Return(&models.User{Username: "testuser"}, nil)

	_, err := authService.Register(ctx, "testuser", "password123")

	assert.ErrorIs(t, err, ErrUsernameTaken)
	mockUserRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateOnInsert(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "testuser").Return(nil, gorm.ErrRecordNotFound)
	mockUserRepo.On("Create", ctx, mock.Anything).Return(gorm.ErrDuplicatedKey)

	_, err := authService.Register(ctx, "testuser", "password123")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_Validation(t *testing.T) {
	authService := newTestAuthService(new(MockUserRepository))
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"short username", "ab", "password123", ErrInvalidUsername},
		{"bad characters", "bad name!", "password123", ErrInvalidUsername},
		{"reserved prefix", "anon_guest", "password123", ErrInvalidUsername},
		{"short password", "testuser", "12345", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authService.Register(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
			var typed *Error
			require.True(t, errors.As(err, &typed))
			assert.Equal(t, CategoryValidation, typed.Category)
		})
	}
}

func TestLogin_Success(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	hash, _ := auth.HashPassword("password123")
	mockUserRepo.On("FindByUsername", ctx, "testuser").Return(&models.User{Username: "testuser", PasswordHash: hash, IsAdmin: true}, nil)

	result, err := authService.Login(ctx, "testuser", "password123")

	require.NoError(t, err)
	assert.True(t, result.User.IsAdmin)
	assert.NotEmpty(t, result.AccessToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	hash, _ := auth.HashPassword("password123")
	mockUserRepo.On("FindByUsername", ctx, "testuser").Return(&models.User{Username: "testuser", PasswordHash: hash}, nil)
	mockUserRepo.On("FindByUsername", ctx, "ghost").Return(nil, gorm.ErrRecordNotFound)
	mockUserRepo.On("FindByUsername", ctx, "anon_12345678").Return(&models.User{Username: "anon_12345678", IsAnonymous: true}, nil)

	_, err := authService.Login(ctx, "testuser", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = authService.Login(ctx, "ghost", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = authService.Login(ctx, "anon_12345678", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "testuser").Return(&models.User{Username: "testuser"}, nil)

	refresh, err := authService.Tokens().Issue("testuser", RefreshToken)
	require.NoError(t, err)

	access, err := authService.Refresh(ctx, refresh)
	require.NoError(t, err)
	username, err := authService.Tokens().Verify(access, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "testuser", username)

	// an access token cannot be used to refresh
	_, err = authService.Refresh(ctx, access)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestAuthenticate_UserGone(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "removed").Return(nil, gorm.ErrRecordNotFound)

	token, _ := authService.Tokens().Issue("removed", AccessToken)
	_, err := authService.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "root").Return(nil, gorm.ErrRecordNotFound)
	mockUserRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil)
	mockUserRepo.On("SetAdmin", ctx, "root", true).Return(nil)

	require.NoError(t, authService.EnsureAdmin(ctx, "root", "rootpassword"))
	mockUserRepo.AssertCalled(t, "SetAdmin", ctx, "root", true)
}

func TestChangePassword(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	hash, _ := auth.HashPassword("password123")
	mockUserRepo.On("FindByUsername", ctx, "alice").Return(&models.User{Username: "alice", PasswordHash: hash}, nil)
	mockUserRepo.On("FindByUsername", ctx, "ghost").Return(nil, gorm.ErrRecordNotFound)
	mockUserRepo.On("UpdatePassword", ctx, "alice", mock.AnythingOfType("string")).Return(nil)

	assert.ErrorIs(t, authService.ChangePassword(ctx, "alice", "password123", "short"), ErrWeakPassword)
	assert.ErrorIs(t, authService.ChangePassword(ctx, "alice", "wrongpassword", "newpassword1"), ErrInvalidCredentials)
	assert.ErrorIs(t, authService.ChangePassword(ctx, "ghost", "password123", "newpassword1"), ErrUserNotFound)
	mockUserRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, authService.ChangePassword(ctx, "alice", "password123", "newpassword1"))
	stored := mockUserRepo.Calls[len(mockUserRepo.Calls)-1].Arguments.String(2)
	assert.NoError(t, auth.VerifyPassword(stored, "newpassword1"))
	assert.Error(t, auth.VerifyPassword(stored, "password123"))
}

func TestListUsers(t *testing.T) {
	mockUserRepo := new(MockUserRepository)
	authService := newTestAuthService(mockUserRepo)
	ctx := context.Background()

	room := "General"
	mockUserRepo.On("List", ctx, true).Return([]models.User{{Username: "alice", CurrentRoom: &room}}, nil)
	mockUserRepo.On("List", ctx, false).Return(nil, errors.New("connection reset"))

	users, err := authService.ListUsers(ctx, true)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	_, err = authService.ListUsers(ctx, false)
	assert.ErrorIs(t, err, ErrStorage)
}
