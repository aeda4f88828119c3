package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/service"
)

// Event protocol: every frame in either direction is {"event": name, "data": payload}.

type EventType string

const ( // client -> server
	EventRegister       EventType = "register"
	EventLogin          EventType = "login"
	EventJoin           EventType = "join"
	EventLeave          EventType = "leave"
	EventSendMessage    EventType = "send_message"
	EventTyping         EventType = "typing"
	EventGetMessages    EventType = "get_messages"
	EventDeleteMessage  EventType = "delete_message"
	EventSearchMessages EventType = "search_messages"
	EventListRooms      EventType = "list_rooms"
	EventGetMembers     EventType = "get_members"
	EventGetRoomInfo    EventType = "get_room_info"
)

const ( // server -> client
	EventStatus           EventType = "status"
	EventRegisterSuccess  EventType = "register_success"
	EventRegisterError    EventType = "register_error"
	EventLoginSuccess     EventType = "login_success"
	EventLoginError       EventType = "login_error"
	EventJoinSuccess      EventType = "join_success"
	EventJoinError        EventType = "join_error"
	EventLeaveSuccess     EventType = "leave_success"
	EventLeaveError       EventType = "leave_error"
	EventMessage          EventType = "message"
	EventMessageError     EventType = "msg_error"
	EventMessagesList     EventType = "messages_list"
	EventMessageDeleted   EventType = "message_deleted"
	EventSearchResults    EventType = "search_results"
	EventRoomsList        EventType = "rooms_list"
	EventRoomInfo         EventType = "room_info"
	EventMembersList      EventType = "members_list"
	EventUserJoined       EventType = "user_joined"
	EventUserLeft         EventType = "user_left"
	EventUserDisconnected EventType = "user_disconnected"
	EventUserTyping       EventType = "user_typing"
	EventRoomDeleted      EventType = "room_deleted"
	EventError            EventType = "error"
)

// errorEventFor names the event a failed operation answers with.
func errorEventFor(event EventType) EventType {
	switch event {
	case EventRegister:
		return EventRegisterError
	case EventLogin:
		return EventLoginError
	case EventJoin:
		return EventJoinError
	case EventLeave:
		return EventLeaveError
	case EventSendMessage:
		return EventMessageError
	default:
		return EventError
	}
}

// Envelope is the frame as read off the wire; Data is decoded per event.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is the frame written to clients.
type Outbound struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// inbound payloads

type CredentialsPayload struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=128"`
}

type JoinPayload struct {
	Token    string `json:"token"`
	Room     string `json:"room" validate:"required,max=100"`
	Pin      string `json:"pin" validate:"max=10"`
	Nickname string `json:"nickname" validate:"max=30"` // anonymous join when no token is given
}

type LeavePayload struct {
	Token string `json:"token"`
	Room  string `json:"room" validate:"required,max=100"`
}

type SendMessagePayload struct {
	Token            string `json:"token"`
	Room             string `json:"room" validate:"required,max=100"`
	Msg              string `json:"msg"`
	FileURL          string `json:"file_url" validate:"max=2048"`
	OriginalFilename string `json:"original_filename"`
}

type TypingPayload struct {
	Token    string `json:"token"`
	Room     string `json:"room" validate:"required,max=100"`
	IsTyping bool   `json:"is_typing"`
}

type GetMessagesPayload struct {
	Token string `json:"token"`
	Room  string `json:"room" validate:"required,max=100"`
	Limit int    `json:"limit" validate:"omitempty,min=1"`
}

type DeleteMessagePayload struct {
	Token     string `json:"token"`
	MessageID int64  `json:"message_id" validate:"required,gt=0"`
	Room      string `json:"room" validate:"required,max=100"`
}

type SearchMessagesPayload struct {
	Token      string `json:"token"`
	Room       string `json:"room" validate:"required,max=100"`
	SearchTerm string `json:"search_term" validate:"required,max=200"`
}

type RoomPayload struct {
	Room string `json:"room" validate:"required,max=100"`
}

// outbound payloads

type StatusPayload struct {
	Msg           string `json:"msg"`
	SID           string `json:"sid,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type AuthSuccessPayload struct {
	Msg          string `json:"msg"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
	IsAdmin      bool   `json:"is_admin"`
}

type JoinSuccessPayload struct {
	Room     string  `json:"room"`
	Username string  `json:"username"`
	Nickname *string `json:"nickname,omitempty"`
}

type LeaveSuccessPayload struct {
	Room string `json:"room"`
}

// PresencePayload is shared by user_joined, user_left and user_disconnected.
type PresencePayload struct {
	Username    string  `json:"username"`
	Nickname    *string `json:"nickname,omitempty"`
	Room        string  `json:"room,omitempty"`
	IsAnonymous bool    `json:"is_anonymous"`
	Timestamp   string  `json:"timestamp"`
}

type UserTypingPayload struct {
	Username string  `json:"username"`
	Nickname *string `json:"nickname,omitempty"`
	Room     string  `json:"room"`
	IsTyping bool    `json:"is_typing"`
}

type MessageDeletedPayload struct {
	MessageID int64  `json:"message_id"`
	Room      string `json:"room"`
	DeletedBy string `json:"deleted_by"`
}

type SearchResultsPayload struct {
	Room       string                `json:"room"`
	SearchTerm string                `json:"search_term"`
	Results    []dto.MessageResponse `json:"results"`
	Count      int                   `json:"count"`
}

type RoomsListPayload struct {
	Rooms []dto.RoomWithStats `json:"rooms"`
}

type RoomDeletedPayload struct {
	Room            string `json:"room"`
	MessagesDeleted int64  `json:"messages_deleted"`
	UsersCleared    int64  `json:"users_cleared"`
}

type ErrorPayload struct {
	Code     string           `json:"code"`
	Category service.Category `json:"category"`
	Msg      string           `json:"msg"`
}

func newErrorPayload(err error) ErrorPayload {
	e := service.AsError(err)
	msg := e.Message
	if e.Category == service.CategoryStorage {
		// storage causes stay in the server log
		msg = service.ErrStorage.Message
	}
	return ErrorPayload{Code: e.Code, Category: e.Category, Msg: msg}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload unmarshals and validates one event payload.
func decodePayload[T any](raw json.RawMessage) (*T, error) {
	var payload T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, service.WithMessage(service.ErrMalformedEnvelope, "payload is not valid JSON for this event")
		}
	}
	if err := payloadValidator.Struct(&payload); err != nil {
		return nil, validationError(err)
	}
	return &payload, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return service.ErrValidation
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return service.WithMessage(service.ErrValidation, fmt.Sprintf("%s is required", fe.Field()))
	case "max":
		return service.WithMessage(service.ErrValidation, fmt.Sprintf("%s cannot exceed %s characters", fe.Field(), fe.Param()))
	default:
		return service.WithMessage(service.ErrValidation, fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// DecodeEnvelope parses a raw frame.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		return nil, service.ErrMalformedEnvelope
	}
	return &env, nil
}

// Encode marshals an outbound frame.
func Encode(event EventType, data any) ([]byte, error) {
	return json.Marshal(Outbound{Event: event, Data: data})
}
