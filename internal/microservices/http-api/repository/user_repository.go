package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/models"
)

// UserRepository defines the interface for user data operations.
// Presence columns (current_room, connection_id) are only changed through the
// conditional methods so two racing operations cannot both win.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByConnectionID(ctx context.Context, connID string) (*models.User, error)

	// BindConnection points the user at connID (last write wins). When the
	// previous connection was a different one the room slot it held is released.
	// The record as it was before the update is returned.
	BindConnection(ctx context.Context, username, connID string) (*models.User, error)
	// EnterRoom sets current_room only if the user is in no room or already in room.
	EnterRoom(ctx context.Context, username, room, connID string) (bool, error)
	// JoinRoom binds connID and enters room in one transaction. A slot in room
	// held through another connection moves to connID; a slot in any other room
	// leaves the record untouched and ok false. The record as it was before the
	// update is returned.
	JoinRoom(ctx context.Context, username, room, connID string) (previous *models.User, ok bool, err error)
	// LeaveRoom clears current_room only if it still equals room.
	LeaveRoom(ctx context.Context, username, room string) (bool, error)
	// ReleaseConnection clears connection_id and current_room only if connID is still bound.
	ReleaseConnection(ctx context.Context, username, connID string) (bool, error)
	// DeleteAnonymous removes an anonymous user record.
	DeleteAnonymous(ctx context.Context, username string) (bool, error)

	// List returns users by name, only the ones occupying a room when onlineOnly is set.
	List(ctx context.Context, onlineOnly bool) ([]models.User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	// Delete removes a user record of any kind.
	Delete(ctx context.Context, username string) (bool, error)

	NicknameInRoom(ctx context.Context, nickname, room string) (bool, error)
	ListInRoom(ctx context.Context, room string) ([]models.User, error)
	CountInRoom(ctx context.Context, room string) (int64, error)
	CountOnline(ctx context.Context) (int64, error)
	SetAdmin(ctx context.Context, username string, isAdmin bool) error
	// ResetPresence clears every live binding and drops leftover anonymous users.
	ResetPresence(ctx context.Context) (cleared int64, anonymousDeleted int64, err error)
}

// userRepository is the GORM implementation of UserRepository.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository in a GORM implementation
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	// return nil on error so a zero-value user is never mistaken for a hit
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByConnectionID(ctx context.Context, connID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("connection_id = ?", connID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) BindConnection(ctx context.Context, username, connID string) (*models.User, error) {
	var previous models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).First(&previous).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{"connection_id": connID, "last_login": now}
		// a room slot held through another (stale) connection is released
		if previous.ConnectionID == nil || *previous.ConnectionID != connID {
			updates["current_room"] = nil
		}
		return tx.Model(&models.User{}).Where("username = ?", username).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &previous, nil
}

func (r *userRepository) EnterRoom(ctx context.Context, username, room, connID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND (current_room IS NULL OR current_room = ?)", username, room).
		Updates(map[string]any{"current_room": room, "connection_id": connID})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepository) JoinRoom(ctx context.Context, username, room, connID string) (*models.User, bool, error) {
	var previous models.User
	ok := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).First(&previous).Error; err != nil {
			return err
		}
		if previous.CurrentRoom != nil && *previous.CurrentRoom != room {
			return nil
		}

		updates := map[string]any{"connection_id": connID, "current_room": room}
		if previous.ConnectionID == nil || *previous.ConnectionID != connID {
			updates["last_login"] = time.Now().UTC()
		}
		result := tx.Model(&models.User{}).
			Where("username = ? AND (current_room IS NULL OR current_room = ?)", username, room).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		ok = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &previous, ok, nil
}

func (r *userRepository) LeaveRoom(ctx context.Context, username, room string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND current_room = ?", username, room).
		Update("current_room", nil)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepository) ReleaseConnection(ctx context.Context, username, connID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND connection_id = ?", username, connID).
		Updates(map[string]any{"connection_id": nil, "current_room": nil})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepository) DeleteAnonymous(ctx context.Context, username string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("username = ? AND is_anonymous = ?", username, true).
		Delete(&models.User{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepository) NicknameInRoom(ctx context.Context, nickname, room string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("current_room = ? AND (nickname = ? OR username = ?)", room, nickname, nickname).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) ListInRoom(ctx context.Context, room string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("current_room = ?", room).
		Order("username ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepository) CountInRoom(ctx context.Context, room string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("current_room = ?", room).Count(&count).Error
	return count, err
}

func (r *userRepository) List(ctx context.Context, onlineOnly bool) ([]models.User, error) {
	var users []models.User
	query := r.db.WithContext(ctx).Order("username ASC")
	if onlineOnly {
		query = query.Where("current_room IS NOT NULL")
	}
	err := query.Find(&users).Error
	return users, err
}

func (r *userRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND is_anonymous = ?", username, false).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, username string) (bool, error) {
	result := r.db.WithContext(ctx).Where("username = ?", username).Delete(&models.User{})
	return result.RowsAffected > 0, result.Error
}

func (r *userRepository) CountOnline(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("current_room IS NOT NULL").Count(&count).Error
	return count, err
}

func (r *userRepository) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("is_admin", isAdmin)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) ResetPresence(ctx context.Context) (int64, int64, error) {
	var cleared, deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("is_anonymous = ?", true).Delete(&models.User{})
		if del.Error != nil {
			return del.Error
		}
		deleted = del.RowsAffected

		upd := tx.Model(&models.User{}).
			Where("connection_id IS NOT NULL OR current_room IS NOT NULL").
			Updates(map[string]any{"connection_id": nil, "current_room": nil})
		if upd.Error != nil {
			return upd.Error
		}
		cleared = upd.RowsAffected
		return nil
	})
	return cleared, deleted, err
}
