package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"roomchat/internal/microservices/http-api/service"
)

// Dispatch decodes one inbound frame and runs its operation. Failures are
// answered on the operation's error event; nothing is returned to the caller.
func (h *Hub) Dispatch(connID string, frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		h.SendError(connID, EventError, err)
		return
	}

	// the operation must finish even if the connection drops meanwhile
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()

	if err := h.route(ctx, connID, env); err != nil {
		e := service.AsError(err)
		if e.Category == service.CategoryStorage {
			h.logger.Error("event_failed", "conn_id", connID, "event", env.Event, "error", err)
		} else {
			h.logger.Debug("event_rejected", "conn_id", connID, "event", env.Event, "code", e.Code)
		}
		h.SendError(connID, env.Event, err)
	}
}

func (h *Hub) route(ctx context.Context, connID string, env *Envelope) error {
	switch env.Event {
	case EventRegister:
		return with(env.Data, func(p *CredentialsPayload) error { return h.Register(ctx, connID, p) })
	case EventLogin:
		return with(env.Data, func(p *CredentialsPayload) error { return h.Login(ctx, connID, p) })
	case EventJoin:
		return with(env.Data, func(p *JoinPayload) error { return h.Join(ctx, connID, p) })
	case EventLeave:
		return with(env.Data, func(p *LeavePayload) error { return h.Leave(ctx, connID, p) })
	case EventSendMessage:
		return with(env.Data, func(p *SendMessagePayload) error { return h.SendMessage(ctx, connID, p) })
	case EventTyping:
		return with(env.Data, func(p *TypingPayload) error { return h.Typing(ctx, connID, p) })
	case EventGetMessages:
		return with(env.Data, func(p *GetMessagesPayload) error { return h.GetMessages(ctx, connID, p) })
	case EventDeleteMessage:
		return with(env.Data, func(p *DeleteMessagePayload) error { return h.DeleteMessageEvent(ctx, connID, p) })
	case EventSearchMessages:
		return with(env.Data, func(p *SearchMessagesPayload) error { return h.SearchMessages(ctx, connID, p) })
	case EventListRooms:
		return h.ListRooms(ctx, connID)
	case EventGetMembers:
		return with(env.Data, func(p *RoomPayload) error { return h.GetMembers(ctx, connID, p) })
	case EventGetRoomInfo:
		return with(env.Data, func(p *RoomPayload) error { return h.GetRoomInfo(ctx, connID, p) })
	default:
		return service.WithMessage(service.ErrUnknownEvent, fmt.Sprintf("unknown event %q", env.Event))
	}
}

// with decodes the payload for fn, which only ever sees validated input.
func with[T any](raw json.RawMessage, fn func(*T) error) error {
	payload, err := decodePayload[T](raw)
	if err != nil {
		return err
	}
	return fn(payload)
}
