package websocket

import (
	"context"
	"strings"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/repository"
	"roomchat/internal/microservices/http-api/service"
)

// SendMessage validates, stores and fans out a message; storage comes first.
func (h *Hub) SendMessage(ctx context.Context, connID string, p *SendMessagePayload) error {
	sender, err := h.identify(ctx, connID, p.Token)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)
	return h.withUser(ctx, sender.Username, []string{room}, func(user *models.User) error {
		message, err := h.messages.Send(ctx, user, service.SendInput{
			Room:             room,
			Text:             p.Msg,
			FileURL:          p.FileURL,
			OriginalFilename: p.OriginalFilename,
		})
		if err != nil {
			return err
		}
		h.broadcast(room, EventMessage, dto.ToMessageResponse(message), "")
		return nil
	})
}

// Typing tells everyone in the room but the typist.
func (h *Hub) Typing(ctx context.Context, connID string, p *TypingPayload) error {
	typist, err := h.identify(ctx, connID, p.Token)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)
	return h.withUser(ctx, typist.Username, []string{room}, func(user *models.User) error {
		if !user.InRoom(room) {
			return service.ErrNotAMember
		}
		exclude := connID
		if user.ConnectionID != nil {
			exclude = *user.ConnectionID
		}
		h.broadcast(room, EventUserTyping, UserTypingPayload{
			Username: user.Username,
			Nickname: user.Nickname,
			Room:     room,
			IsTyping: p.IsTyping,
		}, exclude)
		return nil
	})
}

func (h *Hub) GetMessages(ctx context.Context, connID string, p *GetMessagesPayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	if _, err := h.identify(ctx, connID, p.Token); err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)
	messages, err := h.messages.History(ctx, room, p.Limit)
	if err != nil {
		return err
	}
	h.sendTo(sess.conn, EventMessagesList, dto.MessageListResponse{Room: room, Messages: messages, Count: len(messages)})
	return nil
}

func (h *Hub) SearchMessages(ctx context.Context, connID string, p *SearchMessagesPayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	if _, err := h.identify(ctx, connID, p.Token); err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)
	term := strings.TrimSpace(p.SearchTerm)
	results, err := h.messages.Search(ctx, room, term)
	if err != nil {
		return err
	}
	h.sendTo(sess.conn, EventSearchResults, SearchResultsPayload{Room: room, SearchTerm: term, Results: results, Count: len(results)})
	return nil
}

// DeleteMessageEvent is the event-surface entry to DeleteMessage.
func (h *Hub) DeleteMessageEvent(ctx context.Context, connID string, p *DeleteMessagePayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	actor, err := h.identify(ctx, connID, p.Token)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(p.Room)
	if _, err := h.DeleteMessage(ctx, actor, p.MessageID, room); err != nil {
		return err
	}
	if _, subscribed := sess.snapshot(); subscribed != room {
		// the room's broadcast did not reach the caller
		h.sendTo(sess.conn, EventMessageDeleted, MessageDeletedPayload{MessageID: p.MessageID, Room: room, DeletedBy: actor.Username})
	}
	return nil
}

// DeleteMessage removes a message (author or admin) and notifies the room.
func (h *Hub) DeleteMessage(ctx context.Context, actor *models.User, messageID int64, room string) (*models.Message, error) {
	unlock := h.roomLocks.Lock(room)
	defer unlock()
	message, err := h.messages.Delete(ctx, actor, messageID, room)
	if err != nil {
		return nil, err
	}
	h.broadcast(room, EventMessageDeleted, MessageDeletedPayload{MessageID: messageID, Room: room, DeletedBy: actor.Username}, "")
	h.logger.Info("message_deleted", "room", room, "message_id", messageID, "deleted_by", actor.Username)
	return message, nil
}

// DeleteRoom cascades the delete in storage, tells the occupants and
// dissolves the broadcast group. Occupants stay connected, roomless; anonymous
// ones lose their identity with the room.
func (h *Hub) DeleteRoom(ctx context.Context, name string) (*repository.CascadeResult, error) {
	unlock := h.roomLocks.Lock(name)
	defer unlock()
	occupants, err := h.users.ListInRoom(ctx, name)
	if err != nil {
		return nil, service.StorageError("list occupants", err)
	}
	anonymous := make(map[string]bool)
	for i := range occupants {
		if occupants[i].IsAnonymous && occupants[i].ConnectionID != nil {
			anonymous[*occupants[i].ConnectionID] = true
		}
	}
	result, err := h.rooms.DeleteCascade(ctx, name)
	if err != nil {
		return nil, err
	}
	h.broadcast(name, EventRoomDeleted, RoomDeletedPayload{
		Room:            name,
		MessagesDeleted: result.MessagesDeleted,
		UsersCleared:    result.UsersCleared,
	}, "")

	h.mu.Lock()
	g := h.groups[name]
	delete(h.groups, name)
	h.mu.Unlock()
	if g != nil {
		for _, id := range g.ConnIDs() {
			sess := h.session(id)
			switch {
			case sess == nil:
			case anonymous[id]:
				sess.set("", "")
			default:
				sess.leaveRoom(name)
			}
		}
	}
	h.logger.Info("room_deleted", "room", name, "messages_deleted", result.MessagesDeleted, "users_cleared", result.UsersCleared, "anonymous_deleted", result.AnonymousDeleted)
	return result, nil
}

func (h *Hub) ListRooms(ctx context.Context, connID string) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	rooms, err := h.rooms.List(ctx)
	if err != nil {
		return err
	}
	h.sendTo(sess.conn, EventRoomsList, RoomsListPayload{Rooms: rooms})
	return nil
}

func (h *Hub) GetMembers(ctx context.Context, connID string, p *RoomPayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	members, err := h.rooms.Members(ctx, strings.TrimSpace(p.Room))
	if err != nil {
		return err
	}
	h.sendTo(sess.conn, EventMembersList, members)
	return nil
}

func (h *Hub) GetRoomInfo(ctx context.Context, connID string, p *RoomPayload) error {
	sess, err := h.liveSession(connID)
	if err != nil {
		return err
	}
	details, err := h.rooms.Details(ctx, strings.TrimSpace(p.Room))
	if err != nil {
		return err
	}
	h.sendTo(sess.conn, EventRoomInfo, details)
	return nil
}
