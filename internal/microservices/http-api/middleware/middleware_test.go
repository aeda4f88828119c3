package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/microservices/http-api/repository"
	"roomchat/internal/microservices/http-api/response"
	"roomchat/internal/microservices/http-api/service"
	"roomchat/internal/testutil"
)

const testSecret = "middleware-test-secret-of-at-least-32-chars"

func setupAuth(t *testing.T) (service.AuthService, repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(testutil.NewDB(t))
	tokens := service.NewTokenService(testSecret, time.Hour, 24*time.Hour, time.Now)
	return service.NewAuthService(users, tokens), users
}

func protectedRouter(auth service.AuthService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(auth)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString(ContextUsername)})
	})
	r.GET("/protected", handlers...)
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		token, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth, _ := setupAuth(t)
	result, err := auth.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)
	r := protectedRouter(auth)

	w := get(r, "Bearer "+result.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"alice"}`, w.Body.String())

	w = get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "no_token", errorCode(t, w))

	w = get(r, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_invalid", errorCode(t, w))

	// a refresh token is not an access token
	w = get(r, "Bearer "+result.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "wrong_token_kind", errorCode(t, w))
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	auth, users := setupAuth(t)
	_, err := auth.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)

	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := service.NewTokenService(testSecret, time.Hour, 24*time.Hour, past).Issue("alice", service.AccessToken)
	require.NoError(t, err)

	w := get(protectedRouter(service.NewAuthService(users, service.NewTokenService(testSecret, time.Hour, 24*time.Hour, time.Now))), "Bearer "+stale)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_expired", errorCode(t, w))
}

func TestRequireAdmin(t *testing.T) {
	auth, users := setupAuth(t)
	ctx := context.Background()
	plain, err := auth.Register(ctx, "bob", "password123")
	require.NoError(t, err)
	require.NoError(t, auth.EnsureAdmin(ctx, "root", "password123"))
	admin, err := auth.Login(ctx, "root", "password123")
	require.NoError(t, err)
	r := protectedRouter(auth, RequireAdmin())

	w := get(r, "Bearer "+plain.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "admin_required", errorCode(t, w))

	assert.Equal(t, http.StatusOK, get(r, "Bearer "+admin.AccessToken).Code)

	// the capability is read per request, not baked into the token
	require.NoError(t, users.SetAdmin(ctx, "root", false))
	assert.Equal(t, http.StatusForbidden, get(r, "Bearer "+admin.AccessToken).Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func limitedRouter(l Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(l, testutil.DiscardLogger()))
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit_Memory(t *testing.T) {
	r := limitedRouter(NewMemoryLimiter(3))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "").Code)
	}
	w := get(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", errorCode(t, w))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(limitedRouter(failingLimiter{}), "").Code)
}

func TestRedisLimiter(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	l := NewRedisLimiter(client, 2, time.Minute)
	l.prefix = "roomchat:test:" + t.Name() + ":"
	t.Cleanup(func() { client.Del(ctx, l.prefix+"10.0.0.1") })

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	// the window slides
	l.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/rooms", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
