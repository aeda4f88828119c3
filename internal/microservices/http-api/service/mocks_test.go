package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"roomchat/internal/microservices/http-api/models"
)

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByConnectionID(ctx context.Context, connID string) (*models.User, error) {
	args := m.Called(ctx, connID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) BindConnection(ctx context.Context, username, connID string) (*models.User, error) {
	args := m.Called(ctx, username, connID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) JoinRoom(ctx context.Context, username, room, connID string) (*models.User, bool, error) {
	args := m.Called(ctx, username, room, connID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockUserRepository) EnterRoom(ctx context.Context, username, room, connID string) (bool, error) {
	args := m.Called(ctx, username, room, connID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) LeaveRoom(ctx context.Context, username, room string) (bool, error) {
	args := m.Called(ctx, username, room)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ReleaseConnection(ctx context.Context, username, connID string) (bool, error) {
	args := m.Called(ctx, username, connID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) DeleteAnonymous(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) NicknameInRoom(ctx context.Context, nickname, room string) (bool, error) {
	args := m.Called(ctx, nickname, room)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ListInRoom(ctx context.Context, room string) ([]models.User, error) {
	args := m.Called(ctx, room)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) CountInRoom(ctx context.Context, room string) (int64, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) CountOnline(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	args := m.Called(ctx, username, isAdmin)
	return args.Error(0)
}

func (m *MockUserRepository) ResetPresence(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) List(ctx context.Context, onlineOnly bool) ([]models.User, error) {
	args := m.Called(ctx, onlineOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return m.Called(ctx, username, passwordHash).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}
