package models

import (
	"time"

	"gorm.io/datatypes"

	"roomchat/internal/security"
)

type Message struct {
	ID               int64                              `gorm:"primaryKey;autoIncrement" json:"id"`
	Room             string                             `gorm:"not null;index:idx_messages_room_id,priority:1" json:"room"`
	Username         string                             `gorm:"not null;index" json:"username"`
	Nickname         *string                            `json:"nickname"`
	Text             *string                            `json:"msg"`
	FileURL          *string                            `json:"file_url"`
	OriginalFilename *string                            `json:"original_filename"`
	SecurityFlags    datatypes.JSONType[security.Flags] `json:"security_flags"`
	CreatedAt        time.Time                          `gorm:"index" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

// HasFile reports whether the message carries an attachment.
func (m *Message) HasFile() bool {
	return m.FileURL != nil && *m.FileURL != ""
}
