package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/models"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id int64) (*models.Message, error)
	// ListRecent returns the newest limit messages of a room, oldest first.
	ListRecent(ctx context.Context, room string, limit int) ([]models.Message, error)
	// Search matches text case-insensitively, newest first.
	Search(ctx context.Context, room, term string, limit int) ([]models.Message, error)
	CountByRoom(ctx context.Context, room string) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	DeleteByID(ctx context.Context, id int64) error
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) FindByID(ctx context.Context, id int64) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) ListRecent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	var messages []models.Message
	// ids are assigned in insertion order, so they break timestamp ties
	err := r.db.WithContext(ctx).
		Where("room = ?", room).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) Search(ctx context.Context, room, term string, limit int) ([]models.Message, error) {
	var messages []models.Message
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	err := r.db.WithContext(ctx).
		Where("room = ? AND LOWER(text) LIKE ? ESCAPE '\\'", room, pattern).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) CountByRoom(ctx context.Context, room string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).Where("room = ?", room).Count(&count).Error
	return count, err
}

func (r *messageRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).Count(&count).Error
	return count, err
}

func (r *messageRepository) DeleteByID(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&models.Message{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// escapeLike makes % and _ in user input match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
