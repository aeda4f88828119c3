package websocket

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/service"
)

// Presence transitions: anonymous -> identified -> in room -> closed.

// Connect registers a new connection. A valid token identifies it right away;
// a missing or bad one leaves it anonymous.
func (h *Hub) Connect(ctx context.Context, c Conn, token string) {
	sess := &session{conn: c}
	h.mu.Lock()
	h.sessions[c.ID()] = sess
	h.mu.Unlock()

	status := StatusPayload{Msg: "connected", SID: c.ID()}
	if token != "" {
		user, err := h.auth.Authenticate(ctx, token)
		if err == nil {
			err = h.bind(ctx, sess, user.Username)
		}
		if err != nil {
			h.logger.Info("connect_token_rejected", "conn_id", c.ID(), "code", service.AsError(err).Code)
		} else {
			status.Authenticated = true
			status.Username = user.Username
		}
	}
	h.logger.Info("client_connected", "conn_id", c.ID(), "authenticated", status.Authenticated)
	h.sendTo(c, EventStatus, status)
}

// bind identifies sess as username, last connection wins.
func (h *Hub) bind(ctx context.Context, sess *session, username string) error {
	connID := sess.conn.ID()
	bound, room := sess.snapshot()
	if bound == username {
		return nil
	}
	if room != "" {
		return service.ErrAlreadyInRoom
	}
	if bound != "" {
		h.release(ctx, bound, connID)
	}
	return h.withUser(ctx, username, nil, func(*models.User) error {
		previous, err := h.users.BindConnection(ctx, username, connID)
		if err != nil {
			return service.StorageError("bind connection", err)
		}
		h.takeOver(previous, connID)
		sess.set(username, "")
		h.logger.Info("session_identified", "conn_id", connID, "username", username)
		return nil
	})
}

// release drops the binding of a roomless identity to connID. An anonymous
// identity has nothing left once unbound and is deleted.
func (h *Hub) release(ctx context.Context, username, connID string) {
	user, err := h.users.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err == nil && (user.ConnectionID == nil || *user.ConnectionID != connID) {
		return
	}
	if err == nil && user.IsAnonymous {
		_, err = h.users.DeleteAnonymous(ctx, username)
	} else if err == nil {
		_, err = h.users.ReleaseConnection(ctx, username, connID)
	}
	if err != nil {
		h.logger.Error("release_failed", "username", username, "conn_id", connID, "error", err)
	}
}

// takeOver detaches the connection a user was bound to before connID claimed
// it. The committed rebind has already moved or released the room slot.
// Runs under the locks of the user and of previous.CurrentRoom.
func (h *Hub) takeOver(previous *models.User, connID string) {
	if previous.ConnectionID == nil || *previous.ConnectionID == connID {
		return
	}
	oldID := *previous.ConnectionID
	if old := h.session(oldID); old != nil {
		old.set("", "")
		h.sendTo(old.conn, EventStatus, StatusPayload{Msg: "signed in from another connection"})
	}
	if previous.CurrentRoom != nil {
		room := *previous.CurrentRoom
		h.unsubscribe(room, oldID)
		h.broadcast(room, EventUserDisconnected, presence(previous, room), "")
	}
	h.logger.Info("session_taken_over", "username", previous.Username, "old_conn_id", oldID, "conn_id", connID)
}

func (h *Hub) Register(ctx context.Context, connID string, p *CredentialsPayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	if _, room := sess.snapshot(); room != "" {
		return service.ErrAlreadyInRoom
	}
	result, err := h.auth.Register(ctx, p.Username, p.Password)
	if err != nil {
		return err
	}
	if err := h.bind(ctx, sess, result.User.Username); err != nil {
		return err
	}
	h.sendTo(sess.conn, EventRegisterSuccess, AuthSuccessPayload{
		Msg:          "user registered",
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		Username:     result.User.Username,
		IsAdmin:      result.User.IsAdmin,
	})
	return nil
}

func (h *Hub) Login(ctx context.Context, connID string, p *CredentialsPayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	result, err := h.auth.Login(ctx, p.Username, p.Password)
	if err != nil {
		return err
	}
	if err := h.bind(ctx, sess, result.User.Username); err != nil {
		return err
	}
	h.sendTo(sess.conn, EventLoginSuccess, AuthSuccessPayload{
		Msg:          "login successful",
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		Username:     result.User.Username,
		IsAdmin:      result.User.IsAdmin,
	})
	return nil
}

// Join checks, in order, that the room exists, the PIN matches and the caller
// has an identity: a token, or a nickname for rooms open to anonymous guests.
func (h *Hub) Join(ctx context.Context, connID string, p *JoinPayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	room, err := h.rooms.Get(ctx, strings.TrimSpace(p.Room))
	if err != nil {
		return err
	}
	if !room.VerifyPin(p.Pin) {
		return service.ErrInvalidPin
	}

	switch nickname := strings.TrimSpace(p.Nickname); {
	case p.Token != "":
		user, err := h.auth.Authenticate(ctx, p.Token)
		if err != nil {
			return err
		}
		return h.joinAuthenticated(ctx, sess, room.Name, user.Username)
	case nickname != "":
		return h.joinAnonymous(ctx, sess, room, nickname)
	default:
		return service.ErrNoToken
	}
}

// roomExists re-checks the room under its lock; a cascade delete may have won.
func (h *Hub) roomExists(ctx context.Context, room string) error {
	_, err := h.rooms.Get(ctx, room)
	return err
}

func (h *Hub) joinAuthenticated(ctx context.Context, sess *session, room, username string) error {
	connID := sess.conn.ID()
	return h.withUser(ctx, username, []string{room}, func(user *models.User) error {
		if err := h.roomExists(ctx, room); err != nil {
			return err
		}
		bound, current := sess.snapshot()
		if current != "" && (current != room || bound != username) {
			return service.ErrDeviceAlreadyInRoom
		}
		if user.CurrentRoom != nil && *user.CurrentRoom != room {
			return service.ErrAlreadyInRoom
		}

		// bind and enter commit together, nothing is detached before that
		previous, ok, err := h.users.JoinRoom(ctx, username, room, connID)
		if err != nil {
			return service.StorageError("join room", err)
		}
		if !ok {
			return service.ErrAlreadyInRoom
		}
		h.takeOver(previous, connID)
		if bound != "" && bound != username {
			h.release(ctx, bound, connID)
		}
		h.subscribe(room, sess.conn)
		sess.set(username, room)

		h.sendTo(sess.conn, EventJoinSuccess, JoinSuccessPayload{Room: room, Username: username})
		h.broadcast(room, EventUserJoined, presence(user, room), "")
		h.logger.Info("room_joined", "room", room, "username", username, "conn_id", connID)
		return nil
	})
}

func (h *Hub) joinAnonymous(ctx context.Context, sess *session, room *models.Room, nickname string) error {
	if !room.AllowAnonymous {
		return service.ErrAnonymousDisabled
	}
	connID := sess.conn.ID()

	unlock := h.roomLocks.Lock(room.Name)
	defer unlock()
	if err := h.roomExists(ctx, room.Name); err != nil {
		return err
	}

	taken, err := h.users.NicknameInRoom(ctx, nickname, room.Name)
	if err != nil {
		return service.StorageError("check nickname", err)
	}
	if taken {
		return service.ErrNicknameTaken
	}
	bound, current := sess.snapshot()
	if current != "" {
		return service.ErrDeviceAlreadyInRoom
	}
	if bound != "" {
		return service.WithMessage(service.ErrDeviceAlreadyInRoom, "this connection is signed in, join with your token")
	}

	user, err := h.createAnonymous(ctx, nickname, room.Name, connID)
	if err != nil {
		return err
	}
	h.subscribe(room.Name, sess.conn)
	sess.set(user.Username, room.Name)

	h.sendTo(sess.conn, EventJoinSuccess, JoinSuccessPayload{Room: room.Name, Username: user.Username, Nickname: user.Nickname})
	h.broadcast(room.Name, EventUserJoined, presence(user, room.Name), "")
	h.logger.Info("room_joined", "room", room.Name, "username", user.Username, "anonymous", true, "conn_id", connID)
	return nil
}

func (h *Hub) createAnonymous(ctx context.Context, nickname, room, connID string) (*models.User, error) {
	for attempt := 0; attempt < 3; attempt++ {
		user := &models.User{
			Username:     anonymousPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
			IsAnonymous:  true,
			Nickname:     &nickname,
			CurrentRoom:  &room,
			ConnectionID: &connID,
		}
		err := h.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, service.StorageError("create anonymous user", err)
		}
	}
	return nil, service.WithMessage(service.ErrStorage, "could not allocate an anonymous username")
}

// Leave takes the caller out of room. Anonymous users cease to exist.
func (h *Hub) Leave(ctx context.Context, connID string, p *LeavePayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	caller, err := h.identify(ctx, connID, p.Token)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)

	return h.withUser(ctx, caller.Username, []string{room}, func(user *models.User) error {
		if !user.InRoom(room) {
			return service.ErrNotInThatRoom
		}
		if user.IsAnonymous {
			if _, err := h.users.DeleteAnonymous(ctx, user.Username); err != nil {
				return service.StorageError("delete anonymous user", err)
			}
		} else {
			ok, err := h.users.LeaveRoom(ctx, user.Username, room)
			if err != nil {
				return service.StorageError("leave room", err)
			}
			if !ok {
				return service.ErrNotInThatRoom
			}
		}

		if user.ConnectionID != nil {
			memberConn := *user.ConnectionID
			h.unsubscribe(room, memberConn)
			if member := h.session(memberConn); member != nil {
				if user.IsAnonymous {
					member.set("", "")
				} else {
					member.set(user.Username, "")
				}
			}
		}

		h.sendTo(sess.conn, EventLeaveSuccess, LeaveSuccessPayload{Room: room})
		h.broadcast(room, EventUserLeft, presence(user, room), "")
		h.logger.Info("room_left", "room", room, "username", user.Username)
		return nil
	})
}

// Disconnect cleans up after a closed connection. Safe to call more than once.
func (h *Hub) Disconnect(ctx context.Context, connID string) {
	h.mu.Lock()
	sess := h.sessions[connID]
	delete(h.sessions, connID)
	h.mu.Unlock()
	if sess == nil {
		return
	}
	_, subscribed := sess.snapshot()

	user, err := h.users.FindByConnectionID(ctx, connID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("disconnect_lookup_failed", "conn_id", connID, "error", err)
		}
		// never identified, or the identity moved to another connection
		if subscribed != "" {
			unlock := h.roomLocks.Lock(subscribed)
			h.unsubscribe(subscribed, connID)
			unlock()
		}
		h.logger.Info("client_disconnected", "conn_id", connID)
		return
	}

	err = h.withUser(ctx, user.Username, []string{subscribed}, func(user *models.User) error {
		if subscribed != "" {
			h.unsubscribe(subscribed, connID)
		}
		if user.ConnectionID == nil || *user.ConnectionID != connID {
			return nil
		}
		if user.IsAnonymous {
			if _, err := h.users.DeleteAnonymous(ctx, user.Username); err != nil {
				return service.StorageError("delete anonymous user", err)
			}
		} else if _, err := h.users.ReleaseConnection(ctx, user.Username, connID); err != nil {
			return service.StorageError("release connection", err)
		}
		if user.CurrentRoom != nil {
			room := *user.CurrentRoom
			h.unsubscribe(room, connID)
			h.broadcast(room, EventUserDisconnected, presence(user, room), "")
		}
		return nil
	})
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		// removed by a concurrent leave
		if subscribed != "" {
			unlock := h.roomLocks.Lock(subscribed)
			h.unsubscribe(subscribed, connID)
			unlock()
		}
	case err != nil:
		h.logger.Error("disconnect_cleanup_failed", "conn_id", connID, "username", user.Username, "error", err)
	}
	h.logger.Info("client_disconnected", "conn_id", connID, "username", user.Username)
}

// Logout ends the live presence of username: its connection goes back to
// anonymous and its room sees it disconnect. Issued tokens stay valid.
func (h *Hub) Logout(ctx context.Context, username string) error {
	return h.withUser(ctx, username, nil, func(user *models.User) error {
		var err error
		switch {
		case user.ConnectionID != nil:
			_, err = h.users.ReleaseConnection(ctx, user.Username, *user.ConnectionID)
		case user.CurrentRoom != nil:
			_, err = h.users.LeaveRoom(ctx, user.Username, *user.CurrentRoom)
		}
		if err != nil {
			return service.StorageError("release connection", err)
		}
		h.detach(user, "signed out")
		h.logger.Info("user_logged_out", "username", user.Username)
		return nil
	})
}

// DeleteUser removes the account of target. Users may delete themselves,
// admins may delete anyone except another admin. Messages are kept.
func (h *Hub) DeleteUser(ctx context.Context, actor *models.User, target string) error {
	if actor.Username != target && !actor.IsAdmin {
		return service.WithMessage(service.ErrForbidden, "you can only delete your own account")
	}
	return h.withUser(ctx, target, nil, func(user *models.User) error {
		if user.IsAdmin && user.Username != actor.Username {
			return service.WithMessage(service.ErrForbidden, "admin accounts can only be deleted by their owner")
		}
		ok, err := h.users.Delete(ctx, user.Username)
		if err != nil {
			return service.StorageError("delete user", err)
		}
		if !ok {
			return service.ErrUserNotFound
		}
		h.detach(user, "account deleted")
		h.logger.Info("user_deleted", "username", user.Username, "deleted_by", actor.Username)
		return nil
	})
}

// detach drops the live traces of a user whose binding was just cleared in
// storage. Runs under withUser.
func (h *Hub) detach(user *models.User, reason string) {
	if user.ConnectionID != nil {
		connID := *user.ConnectionID
		if user.CurrentRoom != nil {
			h.unsubscribe(*user.CurrentRoom, connID)
		}
		if sess := h.session(connID); sess != nil {
			if bound, _ := sess.snapshot(); bound == user.Username {
				sess.set("", "")
				h.sendTo(sess.conn, EventStatus, StatusPayload{Msg: reason, SID: connID})
			}
		}
	}
	if user.CurrentRoom != nil {
		room := *user.CurrentRoom
		h.broadcast(room, EventUserDisconnected, presence(user, room), "")
	}
}
