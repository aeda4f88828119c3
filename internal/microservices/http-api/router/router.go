// Package router wires handlers and middleware into the gin engine.
package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"roomchat/internal/microservices/http-api/handler"
	"roomchat/internal/microservices/http-api/middleware"
	"roomchat/internal/microservices/http-api/service"
	"roomchat/internal/microservices/websocket"
)

type Deps struct {
	Auth     service.AuthService
	Rooms    service.RoomService
	Messages service.MessageService
	Uploads  service.UploadService
	Hub      *websocket.Hub
	Limiter  middleware.Limiter // nil disables HTTP rate limiting
	Logger   *slog.Logger

	CORSOrigins []string
	WS          websocket.HandlerConfig

	// local uploads are served from UploadBaseURL when it is a path
	UploadDir     string
	UploadBaseURL string
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.CORS(d.CORSOrigins))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"time":        time.Now().UTC(),
			"connections": d.Hub.SessionCount(),
		})
	})
	r.GET("/ws", websocket.WSHandler(d.Hub, d.WS, d.Logger))
	if d.UploadDir != "" && strings.HasPrefix(d.UploadBaseURL, "/") {
		r.Static(d.UploadBaseURL, d.UploadDir)
	}

	api := r.Group("")
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter, d.Logger))
	}
	authRequired := middleware.AuthMiddleware(d.Auth)
	adminOnly := middleware.RequireAdmin()

	authHandler := handler.NewAuthHandler(d.Auth)
	accountHandler := handler.NewAccountHandler(d.Auth, d.Hub)
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/verify", authHandler.Verify)
		auth.GET("/me", authRequired, authHandler.Me)

		auth.POST("/logout", authRequired, accountHandler.Logout)
		auth.POST("/change-password", authRequired, accountHandler.ChangePassword)
		auth.GET("/users", authRequired, accountHandler.ListUsers)
		auth.DELETE("/users/:name", authRequired, accountHandler.DeleteUser)
	}

	roomHandler := handler.NewRoomHandler(d.Rooms, d.Messages, d.Hub)
	api.GET("/stats", roomHandler.Stats)
	rooms := api.Group("/rooms")
	{
		rooms.GET("", roomHandler.List)
		rooms.GET("/:name", roomHandler.Get)
		rooms.GET("/:name/summary", roomHandler.Summary)
		rooms.GET("/:name/members", roomHandler.Members)
		rooms.GET("/:name/messages", roomHandler.Messages)
		rooms.DELETE("/:name/messages/:id", authRequired, roomHandler.DeleteMessage)

		rooms.POST("", authRequired, adminOnly, roomHandler.Create)
		rooms.PATCH("/:name", authRequired, adminOnly, roomHandler.Update)
		rooms.DELETE("/:name", authRequired, adminOnly, roomHandler.Delete)
	}

	uploadHandler := handler.NewUploadHandler(d.Uploads)
	upload := api.Group("/upload", authRequired)
	{
		upload.POST("", uploadHandler.Upload)
		upload.GET("/list", uploadHandler.List)
		upload.POST("/validate", uploadHandler.Validate)
		upload.POST("/delete", uploadHandler.Delete)
		upload.POST("/thumbnail", uploadHandler.Thumbnail)
	}

	return r
}
