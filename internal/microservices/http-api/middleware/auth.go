package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/response"
	"roomchat/internal/microservices/http-api/service"
)

// context keys set by AuthMiddleware
const (
	ContextUser     = "user"
	ContextUsername = "username"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2) // 0 is Bearer, 1 is token
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthMiddleware is a Gin middleware for JWT authentication of API requests.
// It resolves the access token to the current user record and stores it in
// the request context for handlers to use.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, service.ErrNoToken)
			return
		}
		token, ok := BearerToken(authHeader)
		if !ok {
			response.Error(c, service.WithMessage(service.ErrTokenInvalid, "invalid authorization header format"))
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			// a token for a removed account is as good as a forged one
			if errors.Is(err, service.ErrUserNotFound) {
				err = service.ErrTokenInvalid
			}
			response.Error(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUsername, user.Username)
		c.Next()
	}
}

// RequireAdmin rejects callers whose account lacks the admin capability.
// Must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, service.ErrNoToken)
			return
		}
		if !user.IsAdmin {
			response.Error(c, service.ErrAdminRequired)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
