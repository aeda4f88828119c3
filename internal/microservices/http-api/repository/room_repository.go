package repository

import (
	"context"

	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/models"
)

// CascadeResult reports what a room deletion removed.
type CascadeResult struct {
	RoomDeleted      bool
	MessagesDeleted  int64
	UsersCleared     int64 // occupants moved out, anonymous ones included
	AnonymousDeleted int64
}

type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	FindByName(ctx context.Context, name string) (*models.Room, error)
	List(ctx context.Context) ([]models.Room, error)
	Count(ctx context.Context) (int64, error)
	UpdateDescription(ctx context.Context, name, description string) error
	// DeleteCascade removes the room, its messages and every user's claim on it
	// in one transaction. Anonymous occupants are deleted.
	DeleteCascade(ctx context.Context, name string) (*CascadeResult, error)
}

type roomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepository) FindByName(ctx context.Context, name string) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) List(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).Order("created_at ASC, name ASC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Room{}).Count(&count).Error
	return count, err
}

func (r *roomRepository) UpdateDescription(ctx context.Context, name, description string) error {
	result := r.db.WithContext(ctx).Model(&models.Room{}).
		Where("name = ?", name).
		Update("description", description)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roomRepository) DeleteCascade(ctx context.Context, name string) (*CascadeResult, error) {
	result := &CascadeResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lookup inside the transaction so a concurrent delete sees not-found
		var room models.Room
		if err := tx.Where("name = ?", name).First(&room).Error; err != nil {
			return err
		}

		msgs := tx.Where("room = ?", name).Delete(&models.Message{})
		if msgs.Error != nil {
			return msgs.Error
		}
		result.MessagesDeleted = msgs.RowsAffected

		// anonymous occupants only exist inside a room
		anon := tx.Where("current_room = ? AND is_anonymous = ?", name, true).Delete(&models.User{})
		if anon.Error != nil {
			return anon.Error
		}
		users := tx.Model(&models.User{}).Where("current_room = ?", name).Update("current_room", nil)
		if users.Error != nil {
			return users.Error
		}
		result.UsersCleared = anon.RowsAffected + users.RowsAffected
		result.AnonymousDeleted = anon.RowsAffected

		del := tx.Delete(&room)
		if del.Error != nil {
			return del.Error
		}
		result.RoomDeleted = del.RowsAffected > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
