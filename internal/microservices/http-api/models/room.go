package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoomTypeText       = "text"
	RoomTypeMultimedia = "multimedia"

	DefaultMaxFileMB = 10
)

type Room struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name           string    `gorm:"uniqueIndex;not null" json:"name"`
	Description    string    `json:"description"`
	Pin            *string   `json:"-"` // nil = open room
	Type           string    `gorm:"not null;default:'text'" json:"type"`
	MaxFileMB      int       `gorm:"not null;default:10" json:"max_file_mb"`
	AllowAnonymous bool      `gorm:"not null;default:false" json:"allow_anonymous"`
	CreatedAt      time.Time `json:"created_at"`
}

func (room *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	return
}

func (Room) TableName() string {
	return "rooms"
}

// HasPin reports whether joining requires a PIN.
func (room *Room) HasPin() bool {
	return room.Pin != nil && *room.Pin != ""
}

// VerifyPin compares exactly; an open room accepts anything.
func (room *Room) VerifyPin(pin string) bool {
	if !room.HasPin() {
		return true
	}
	return pin != "" && pin == *room.Pin
}

// AllowsFiles reports whether messages in this room may carry a file.
func (room *Room) AllowsFiles() bool {
	return room.Type == RoomTypeMultimedia
}

// IsValidRoomType reports whether t is a known room type.
func IsValidRoomType(t string) bool {
	return t == RoomTypeText || t == RoomTypeMultimedia
}
