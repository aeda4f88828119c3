package dto

import (
	"time"

	"roomchat/internal/microservices/http-api/models"
)

// CreateRoomRequest: admin payload for a new room.
// Pin omitted or null generates one, an empty string creates an open room.
type CreateRoomRequest struct {
	Name           string  `json:"name" binding:"required,max=100"`
	Description    string  `json:"description" binding:"max=500"`
	Type           string  `json:"type" binding:"required"`
	Pin            *string `json:"pin"`
	MaxFileMB      *int    `json:"max_file_mb"`
	AllowAnonymous bool    `json:"allow_anonymous"`
}

// UpdateRoomRequest: admin payload for editing a room
type UpdateRoomRequest struct {
	Description *string `json:"description" binding:"required,max=500"`
}

type RoomResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	HasPin         bool      `json:"has_pin"`
	MaxFileMB      int       `json:"max_file_mb"`
	AllowAnonymous bool      `json:"allow_anonymous"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateRoomResponse carries the PIN once, to the admin who created the room.
type CreateRoomResponse struct {
	RoomResponse
	Pin *string `json:"pin"`
}

type RoomStats struct {
	Members  int64 `json:"members"`
	Messages int64 `json:"messages"`
}

type RoomWithStats struct {
	RoomResponse
	Stats RoomStats `json:"stats"`
}

type RoomDetailsResponse struct {
	RoomResponse
	MembersCount int64 `json:"members_count"`
}

type RoomSummaryResponse struct {
	Room           RoomResponse      `json:"room"`
	Stats          RoomStats         `json:"stats"`
	RecentMessages []MessageResponse `json:"recent_messages"`
}

type MemberResponse struct {
	Username    string  `json:"username"`
	Nickname    *string `json:"nickname,omitempty"`
	IsAnonymous bool    `json:"is_anonymous"`
}

type MembersResponse struct {
	Room    string           `json:"room"`
	Members []MemberResponse `json:"members"`
	Count   int              `json:"count"`
}

type StatsResponse struct {
	TotalRooms       int64 `json:"total_rooms"`
	TotalMessages    int64 `json:"total_messages"`
	TotalUsersOnline int64 `json:"total_users_online"`
}

type CascadeResponse struct {
	Room            string `json:"room"`
	RoomDeleted     bool   `json:"room_deleted"`
	MessagesDeleted int64  `json:"messages_deleted"`
	UsersCleared    int64  `json:"users_cleared"`
}

func ToRoomResponse(room *models.Room) RoomResponse {
	return RoomResponse{
		ID:             room.ID,
		Name:           room.Name,
		Description:    room.Description,
		Type:           room.Type,
		HasPin:         room.HasPin(),
		MaxFileMB:      room.MaxFileMB,
		AllowAnonymous: room.AllowAnonymous,
		CreatedAt:      room.CreatedAt,
	}
}

func ToMemberResponses(users []models.User) []MemberResponse {
	members := make([]MemberResponse, 0, len(users))
	for _, u := range users {
		members = append(members, MemberResponse{
			Username:    u.Username,
			Nickname:    u.Nickname,
			IsAnonymous: u.IsAnonymous,
		})
	}
	return members
}
