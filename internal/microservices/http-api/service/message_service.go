package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/repository"
	"roomchat/internal/security"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
	maxMessageLength    = 5000
	maxFilenameLength   = 255
)

// SendInput is one chat message as submitted by a client.
type SendInput struct {
	Room             string
	Text             string
	FileURL          string
	OriginalFilename string
}

type MessageService interface {
	// Send validates the message against the sender's room membership and the
	// room's type, classifies it and stores it. It does not broadcast.
	Send(ctx context.Context, sender *models.User, in SendInput) (*models.Message, error)
	History(ctx context.Context, room string, limit int) ([]dto.MessageResponse, error)
	Search(ctx context.Context, room, term string) ([]dto.MessageResponse, error)
	// Delete removes a message if actor wrote it or is an admin.
	Delete(ctx context.Context, actor *models.User, messageID int64, room string) (*models.Message, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	rooms       RoomService
	classifier  security.Classifier
}

func NewMessageService(messageRepo repository.MessageRepository, rooms RoomService, classifier security.Classifier) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		rooms:       rooms,
		classifier:  classifier,
	}
}

// ClampHistoryLimit applies the default and the hard cap to a requested page size.
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

func (s *messageService) Send(ctx context.Context, sender *models.User, in SendInput) (*models.Message, error) {
	text := strings.TrimSpace(in.Text)
	fileURL := strings.TrimSpace(in.FileURL)
	filename := strings.TrimSpace(in.OriginalFilename)

	if text == "" && fileURL == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, ErrMessageTooLong
	}
	if len(filename) > maxFilenameLength {
		return nil, WithMessage(ErrValidation, "filename cannot exceed 255 characters")
	}
	if in.Room == "" || !sender.InRoom(in.Room) {
		return nil, ErrNotAMember
	}

	room, err := s.rooms.Get(ctx, in.Room)
	if err != nil {
		return nil, err
	}
	if fileURL != "" && !room.AllowsFiles() {
		return nil, ErrFilesNotAllowed
	}

	// classification never blocks the message, it is stored alongside it
	flags := s.classifier.ClassifyMessage(text, filename)

	message := &models.Message{
		Room:          room.Name,
		Username:      sender.Username,
		Nickname:      sender.Nickname,
		SecurityFlags: datatypes.NewJSONType(flags),
	}
	if text != "" {
		message.Text = &text
	}
	if fileURL != "" {
		message.FileURL = &fileURL
		if filename != "" {
			message.OriginalFilename = &filename
		}
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, StorageError("store message", err)
	}
	return message, nil
}

func (s *messageService) History(ctx context.Context, room string, limit int) ([]dto.MessageResponse, error) {
	if _, err := s.rooms.Get(ctx, room); err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListRecent(ctx, room, ClampHistoryLimit(limit))
	if err != nil {
		return nil, StorageError("list messages", err)
	}
	return dto.ToMessageResponses(messages), nil
}

func (s *messageService) Search(ctx context.Context, room, term string) ([]dto.MessageResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, WithMessage(ErrValidation, "search term is required")
	}
	if _, err := s.rooms.Get(ctx, room); err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.Search(ctx, room, term, MaxHistoryLimit)
	if err != nil {
		return nil, StorageError("search messages", err)
	}
	return dto.ToMessageResponses(messages), nil
}

func (s *messageService) Delete(ctx context.Context, actor *models.User, messageID int64, room string) (*models.Message, error) {
	if messageID <= 0 || room == "" {
		return nil, WithMessage(ErrValidation, "message_id and room are required")
	}
	message, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, StorageError("find message", err)
	}
	if message.Room != room {
		return nil, ErrMessageNotFound
	}
	if message.Username != actor.Username && !actor.IsAdmin {
		return nil, WithMessage(ErrForbidden, "only the author or an admin can delete this message")
	}

	if err := s.messageRepo.DeleteByID(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, StorageError("delete message", err)
	}
	return message, nil
}
