package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// HTTP upgrade handler to WebSocket connections

type HandlerConfig struct {
	AllowedOrigins    []string // "*" allows any origin
	MessagesPerSecond float64  // 0 disables the per-connection limiter
	Burst             int
}

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients (the CLI) send no Origin
				return true
			}
			for _, o := range allowed {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler upgrades the request and hands the connection to the hub. The
// optional access token comes from ?token= or the Authorization header.
func WSHandler(hub *Hub, cfg HandlerConfig, logger *slog.Logger) gin.HandlerFunc {
	upgrader := newUpgrader(cfg.AllowedOrigins)
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already written the HTTP error
			logger.Warn("ws_upgrade_failed", "remote", c.ClientIP(), "error", err)
			return
		}

		var limiter *rate.Limiter
		if cfg.MessagesPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst)
		}
		client := NewClient(uuid.NewString(), conn, hub, limiter, logger)

		// status must be queued before the read loop can dispatch anything
		hub.Connect(c.Request.Context(), client, token)

		go client.WritePump()
		go client.ReadPump()
	}
}
