package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/middleware"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/response"
	"roomchat/internal/microservices/http-api/service"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		Username:     result.User.Username,
		IsAdmin:      result.User.IsAdmin,
		ExpiresIn:    int64(h.authService.Tokens().TTL(service.AccessToken).Seconds()),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.authResponse(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.authResponse(result))
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	accessToken, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RefreshResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.authService.Tokens().TTL(service.AccessToken).Seconds()),
	})
}

// Verify reports whether an access token is usable; it never fails with 401.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	user, err := h.authService.Authenticate(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusOK, dto.VerifyResponse{Valid: false, Error: service.AsError(err).Code})
		return
	}
	c.JSON(http.StatusOK, dto.VerifyResponse{Valid: true, Username: user.Username})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, service.ErrNoToken)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func toUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		Username:    u.Username,
		IsAdmin:     u.IsAdmin,
		IsAnonymous: u.IsAnonymous,
		CurrentRoom: u.CurrentRoom,
		CreatedAt:   u.CreatedAt,
	}
}
