package dto

import (
	"time"

	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/security"
)

// HistoryQuery: ?limit= on the history endpoint, capped by the service.
// Absent means the default page; an explicit value must be positive.
type HistoryQuery struct {
	Limit *int `form:"limit" binding:"omitempty,min=1"`
}

// MessageResponse is the wire shape of a message on both surfaces.
type MessageResponse struct {
	ID               int64          `json:"id"`
	Room             string         `json:"room"`
	Username         string         `json:"username"`
	Nickname         *string        `json:"nickname"`
	Msg              *string        `json:"msg"`
	FileURL          *string        `json:"file_url"`
	OriginalFilename *string        `json:"original_filename"`
	Timestamp        string         `json:"timestamp"` // ISO-8601
	SecurityFlags    security.Flags `json:"security_flags"`
}

type MessageListResponse struct {
	Room     string            `json:"room"`
	Messages []MessageResponse `json:"messages"`
	Count    int               `json:"count"`
}

func ToMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:               m.ID,
		Room:             m.Room,
		Username:         m.Username,
		Nickname:         m.Nickname,
		Msg:              m.Text,
		FileURL:          m.FileURL,
		OriginalFilename: m.OriginalFilename,
		Timestamp:        m.CreatedAt.UTC().Format(time.RFC3339Nano),
		SecurityFlags:    m.SecurityFlags.Data(),
	}
}

func ToMessageResponses(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, ToMessageResponse(&messages[i]))
	}
	return out
}
