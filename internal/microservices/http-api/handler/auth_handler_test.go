package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/middleware"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/response"
	"roomchat/internal/microservices/http-api/service"
)

// MockAuthService mocks the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, username, password string) (*service.AuthResult, error) {
	args := m.Called(username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*service.AuthResult, error) {
	args := m.Called(username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(refreshToken)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	args := m.Called(accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	return m.Called(username, currentPassword, newPassword).Error(0)
}

func (m *MockAuthService) ListUsers(ctx context.Context, onlineOnly bool) ([]models.User, error) {
	args := m.Called(onlineOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockAuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	return m.Called(username, password).Error(0)
}

func (m *MockAuthService) Tokens() service.TokenService {
	return service.NewTokenService("handler-test-secret-at-least-32-characters", 15*time.Minute, time.Hour, time.Now)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func postJSON(router http.Handler, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRegister_Success(t *testing.T) {
	mockAuthService := new(MockAuthService)
	handler := NewAuthHandler(mockAuthService)
	router := setupRouter()
	router.POST("/register", handler.Register)

	mockAuthService.On("Register", "testuser", "password123").Return(&service.AuthResult{
		User:         &models.User{Username: "testuser"},
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}, nil)

	w := postJSON(router, "/register", dto.RegisterRequest{Username: "testuser", Password: "password123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp dto.AuthResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "access-token", resp.AccessToken)
	assert.Equal(t, "refresh-token", resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.False(t, resp.IsAdmin)
	mockAuthService.AssertExpectations(t)
}

func TestRegister_UsernameTaken(t *testing.T) {
	mockAuthService := new(MockAuthService)
	handler := NewAuthHandler(mockAuthService)
	router := setupRouter()
	router.POST("/register", handler.Register)

	mockAuthService.On("Register", "testuser", "password123").Return(nil, service.ErrUsernameTaken)

	w := postJSON(router, "/register", dto.RegisterRequest{Username: "testuser", Password: "password123"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "username_taken", decodeError(t, w).Code)
	mockAuthService.AssertExpectations(t)
}

func TestRegister_InvalidJSON(t *testing.T) {
	mockAuthService := new(MockAuthService)
	router := setupRouter()
	router.POST("/register", NewAuthHandler(mockAuthService).Register)

	w := postJSON(router, "/register", "invalid json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/register", dto.RegisterRequest{Username: "ab", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decodeError(t, w).Code)
	mockAuthService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestLogin_Success(t *testing.T) {
	mockAuthService := new(MockAuthService)
	handler := NewAuthHandler(mockAuthService)
	router := setupRouter()
	router.POST("/login", handler.Login)

	mockAuthService.On("Login", "root", "secret99").Return(&service.AuthResult{
		User:         &models.User{Username: "root", IsAdmin: true},
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}, nil)

	w := postJSON(router, "/login", dto.LoginRequest{Username: "root", Password: "secret99"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.AuthResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "root", resp.Username)
	assert.True(t, resp.IsAdmin)
	mockAuthService.AssertExpectations(t)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockAuthService := new(MockAuthService)
	router := setupRouter()
	router.POST("/login", NewAuthHandler(mockAuthService).Login)

	mockAuthService.On("Login", "root", "wrong").Return(nil, service.ErrInvalidCredentials)

	w := postJSON(router, "/login", dto.LoginRequest{Username: "root", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "invalid_credentials", body.Code)
	assert.Equal(t, service.CategoryAuth, body.Category)
}

func TestRefresh(t *testing.T) {
	mockAuthService := new(MockAuthService)
	router := setupRouter()
	router.POST("/refresh", NewAuthHandler(mockAuthService).Refresh)

	mockAuthService.On("Refresh", "good").Return("new-access", nil)
	mockAuthService.On("Refresh", "expired").Return("", service.ErrTokenExpired)

	w := postJSON(router, "/refresh", dto.RefreshTokenRequest{RefreshToken: "good"})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.RefreshResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new-access", resp.AccessToken)

	w = postJSON(router, "/refresh", dto.RefreshTokenRequest{RefreshToken: "expired"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_expired", decodeError(t, w).Code)
}

func TestVerify(t *testing.T) {
	mockAuthService := new(MockAuthService)
	router := setupRouter()
	router.POST("/verify", NewAuthHandler(mockAuthService).Verify)

	mockAuthService.On("Authenticate", "good").Return(&models.User{Username: "alice"}, nil)
	mockAuthService.On("Authenticate", "bad").Return(nil, service.ErrTokenInvalid)

	w := postJSON(router, "/verify", dto.VerifyRequest{Token: "good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"username":"alice"}`, w.Body.String())

	w = postJSON(router, "/verify", dto.VerifyRequest{Token: "bad"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false,"error":"token_invalid"}`, w.Body.String())
}

func TestMe(t *testing.T) {
	mockAuthService := new(MockAuthService)
	router := setupRouter()
	router.GET("/me", middleware.AuthMiddleware(mockAuthService), NewAuthHandler(mockAuthService).Me)

	room := "General"
	mockAuthService.On("Authenticate", "token").Return(&models.User{Username: "alice", CurrentRoom: &room}, nil)

	req, _ := http.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.UserResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "General", *resp.CurrentRoom)
}
