package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/middleware"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/response"
	"roomchat/internal/microservices/http-api/service"
)

// LivePresence performs the account changes that live connections must hear
// about. Implemented by the websocket hub.
type LivePresence interface {
	Logout(ctx context.Context, username string) error
	DeleteUser(ctx context.Context, actor *models.User, target string) error
}

// AccountHandler serves the account endpoints under /auth that need a signed-in caller.
type AccountHandler struct {
	authService service.AuthService
	live        LivePresence
}

func NewAccountHandler(authService service.AuthService, live LivePresence) *AccountHandler {
	return &AccountHandler{authService: authService, live: live}
}

func (h *AccountHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.live.Logout(c.Request.Context(), user.Username); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "logged out"})
}

func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.authService.ChangePassword(c.Request.Context(), user.Username, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "password updated"})
}

func (h *AccountHandler) ListUsers(c *gin.Context) {
	var q dto.UserListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}

	users, err := h.authService.ListUsers(c.Request.Context(), q.Online)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, dto.UserListResponse{Users: out, Total: len(out)})
}

func (h *AccountHandler) DeleteUser(c *gin.Context) {
	target := c.Param("name")
	if err := h.live.DeleteUser(c.Request.Context(), middleware.CurrentUser(c), target); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": target, "deleted": true})
}
