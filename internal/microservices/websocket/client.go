package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"roomchat/internal/microservices/http-api/service"
)

// Individual client connection handler

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // ping before pong wait expires, 10% slack for network jitter
	MaxMessageSize = 32 * 1024           // maximum frame size allowed from peer
	sendBufferSize = 256
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte // outbound frames, drained by WritePump
	done    chan struct{}
	hub     *Hub
	limiter *rate.Limiter
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. limiter may be nil.
func NewClient(id string, conn *websocket.Conn, hub *Hub, limiter *rate.Limiter, logger *slog.Logger) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		hub:     hub,
		limiter: limiter,
		logger:  logger.With("conn_id", id),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a frame; a slow reader loses frames instead of stalling the room.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops both pumps; safe to call from anywhere, more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// ReadPump feeds inbound frames to the hub until the connection fails, then
// runs the hub's disconnect cleanup. One ReadPump per connection.
func (c *Client) ReadPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultOpTimeout)
		c.hub.Disconnect(ctx, c.id)
		cancel()
		_ = c.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read_failed", "error", err)
			}
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.hub.SendError(c.id, EventError, service.ErrRateLimited)
			continue
		}
		c.hub.Dispatch(c.id, frame)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write_failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(WriteWait))
			return
		}
	}
}
