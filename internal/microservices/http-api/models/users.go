package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered or anonymous chat user. PasswordHash is empty for
// anonymous users. CurrentRoom is set iff the user occupies a room slot and
// ConnectionID names the live connection, last connect wins.
type User struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"column:password_hash" json:"-"`
	IsAdmin      bool       `gorm:"not null;default:false" json:"is_admin"`
	CurrentRoom  *string    `gorm:"index" json:"current_room"`
	ConnectionID *string    `gorm:"index" json:"-"`
	IsAnonymous  bool       `gorm:"not null;default:false" json:"is_anonymous"`
	Nickname     *string    `json:"nickname,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// BeforeCreate hook to set UUID before creating a User
func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return
}

func (User) TableName() string {
	return "users"
}

// DisplayName is the nickname for anonymous users, the username otherwise.
func (user *User) DisplayName() string {
	if user.Nickname != nil && *user.Nickname != "" {
		return *user.Nickname
	}
	return user.Username
}

// InRoom reports whether the user currently occupies the given room.
func (user *User) InRoom(room string) bool {
	return user.CurrentRoom != nil && *user.CurrentRoom == room
}
