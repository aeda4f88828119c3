package websocket

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/repository"
	"roomchat/internal/microservices/http-api/service"
)

// Central hub: binds live connections to user identities and rooms.
//
// The durable user record (current_room, connection_id) is the source of truth;
// the hub mirrors it in broadcast groups. Every operation touching a user in a
// room holds that room's lock and then the user's lock, and broadcasts while
// holding them, so events of one room go out in the order operations were
// accepted. There is no hub-wide operation lock.

const (
	DefaultOpTimeout = 10 * time.Second
	maxLockAttempts  = 5
	anonymousPrefix  = "anon_"
)

// Conn is the hub's handle on one live connection.
type Conn interface {
	ID() string
	// Send queues a frame without blocking.
	Send(data []byte) error
	Close() error
}

// State of a connection in the presence state machine.
type State string

const (
	StateAnonymous  State = "anonymous"
	StateIdentified State = "identified"
	StateInRoom     State = "in_room"
	StateClosed     State = "closed"
)

type session struct {
	conn     Conn
	mu       sync.Mutex
	username string // bound identity, "" while anonymous
	room     string // subscribed broadcast group
}

func (s *session) snapshot() (username, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.room
}

func (s *session) set(username, room string) {
	s.mu.Lock()
	s.username, s.room = username, room
	s.mu.Unlock()
}

// leaveRoom drops the subscription if it still points at room.
func (s *session) leaveRoom(room string) {
	s.mu.Lock()
	if s.room == room {
		s.room = ""
	}
	s.mu.Unlock()
}

type Hub struct {
	auth      service.AuthService
	rooms     service.RoomService
	messages  service.MessageService
	users     repository.UserRepository
	logger    *slog.Logger
	opTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session // map[connID]
	groups   map[string]*Room    // map[room name]

	roomLocks *keyedMutex
	userLocks *keyedMutex
}

func NewHub(auth service.AuthService, rooms service.RoomService, messages service.MessageService, users repository.UserRepository, logger *slog.Logger) *Hub {
	return &Hub{
		auth:      auth,
		rooms:     rooms,
		messages:  messages,
		users:     users,
		logger:    logger,
		opTimeout: DefaultOpTimeout,
		sessions:  make(map[string]*session),
		groups:    make(map[string]*Room),
		roomLocks: newKeyedMutex(),
		userLocks: newKeyedMutex(),
	}
}

// SessionState reports where a connection is in the state machine.
func (h *Hub) SessionState(connID string) (State, string) {
	sess := h.session(connID)
	if sess == nil {
		return StateClosed, ""
	}
	username, room := sess.snapshot()
	switch {
	case room != "":
		return StateInRoom, room
	case username != "":
		return StateIdentified, ""
	default:
		return StateAnonymous, ""
	}
}

// GroupSize is the number of connections subscribed to room.
func (h *Hub) GroupSize(room string) int {
	h.mu.RLock()
	g := h.groups[room]
	h.mu.RUnlock()
	if g == nil {
		return 0
	}
	return g.Count()
}

// SessionCount is the number of open connections.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes every connection; their read loops then disconnect them.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.sessions))
	for _, s := range h.sessions {
		conns = append(conns, s.conn)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		_ = c.Close()
	}
	h.logger.Info("hub_shutdown", "connections", len(conns))
}

func (h *Hub) session(connID string) *session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[connID]
}

func (h *Hub) liveSession(connID string) (*session, error) {
	sess := h.session(connID)
	if sess == nil {
		return nil, service.WithMessage(service.ErrValidation, "connection is closed")
	}
	return sess, nil
}

// subscribe and unsubscribe must run under the room's lock.
func (h *Hub) subscribe(room string, c Conn) {
	h.mu.Lock()
	g, ok := h.groups[room]
	if !ok {
		g = NewRoom(room, h.logger)
		h.groups[room] = g
	}
	h.mu.Unlock()
	g.Add(c)
}

func (h *Hub) unsubscribe(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[room]
	if !ok {
		return
	}
	g.Remove(connID)
	if g.Count() == 0 {
		delete(h.groups, room)
	}
}

func (h *Hub) sendTo(c Conn, event EventType, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		h.logger.Error("encode_failed", "event", event, "error", err)
		return
	}
	if err := c.Send(frame); err != nil {
		h.logger.Warn("send_failed", "conn_id", c.ID(), "event", event, "error", err)
	}
}

func (h *Hub) broadcast(room string, event EventType, data any, exclude string) {
	h.mu.RLock()
	g := h.groups[room]
	h.mu.RUnlock()
	if g == nil {
		return
	}
	frame, err := Encode(event, data)
	if err != nil {
		h.logger.Error("encode_failed", "event", event, "error", err)
		return
	}
	g.Broadcast(frame, exclude)
}

// SendError answers a connection with a typed error event.
func (h *Hub) SendError(connID string, event EventType, err error) {
	sess := h.session(connID)
	if sess == nil {
		return
	}
	h.sendTo(sess.conn, errorEventFor(event), newErrorPayload(err))
}

func presence(user *models.User, room string) PresencePayload {
	return PresencePayload{
		Username:    user.Username,
		Nickname:    user.Nickname,
		Room:        room,
		IsAnonymous: user.IsAnonymous,
		Timestamp:   timestamp(),
	}
}

func (h *Hub) findUser(ctx context.Context, username string) (*models.User, error) {
	user, err := h.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrUserNotFound
		}
		return nil, service.StorageError("find user", err)
	}
	return user, nil
}

// withUser runs fn holding the locks of rooms, of the room the user is in,
// and of the user, in that order. fn sees the record as read under the locks.
func (h *Hub) withUser(ctx context.Context, username string, rooms []string, fn func(user *models.User) error) error {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		user, err := h.findUser(ctx, username)
		if err != nil {
			return err
		}
		held := slices.Clone(rooms)
		if user.CurrentRoom != nil {
			held = append(held, *user.CurrentRoom)
		}

		unlockRooms := h.roomLocks.LockAll(held...)
		unlockUser := h.userLocks.Lock(username)
		current, err := h.findUser(ctx, username)
		if err == nil && current.CurrentRoom != nil && !slices.Contains(held, *current.CurrentRoom) {
			// moved rooms between the read and the lock
			unlockUser()
			unlockRooms()
			continue
		}
		if err == nil {
			err = fn(current)
		}
		unlockUser()
		unlockRooms()
		return err
	}
	return service.WithMessage(service.ErrStorage, "presence changed concurrently, retry")
}

// identify resolves the caller from a per-call token, falling back to the
// identity bound to the connection.
func (h *Hub) identify(ctx context.Context, connID, token string) (*models.User, error) {
	if token != "" {
		return h.auth.Authenticate(ctx, token)
	}
	user, err := h.users.FindByConnectionID(ctx, connID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrNoToken
		}
		return nil, service.StorageError("find user", err)
	}
	return user, nil
}
