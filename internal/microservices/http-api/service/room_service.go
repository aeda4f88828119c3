package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/repository"
)

const (
	minPinLength  = 4
	maxPinLength  = 10
	maxFileMBCap  = 100
	summaryRecent = 10
)

var (
	roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]{2,100}$`)
	pinPattern      = regexp.MustCompile(`^[0-9]+$`)
)

// CreateRoomInput describes a new room. A nil Pin asks for a generated one,
// an empty Pin creates an open room.
type CreateRoomInput struct {
	Name           string
	Description    string
	Type           string
	Pin            *string
	MaxFileMB      int
	AllowAnonymous bool
}

type RoomService interface {
	Create(ctx context.Context, in CreateRoomInput) (*models.Room, error)
	Get(ctx context.Context, name string) (*models.Room, error)
	List(ctx context.Context) ([]dto.RoomWithStats, error)
	Details(ctx context.Context, name string) (*dto.RoomDetailsResponse, error)
	Summary(ctx context.Context, name string) (*dto.RoomSummaryResponse, error)
	Members(ctx context.Context, name string) (*dto.MembersResponse, error)
	UpdateDescription(ctx context.Context, name, description string) (*models.Room, error)
	DeleteCascade(ctx context.Context, name string) (*repository.CascadeResult, error)
	Stats(ctx context.Context) (*dto.StatsResponse, error)
}

type roomService struct {
	roomRepo    repository.RoomRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
}

func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, messageRepo repository.MessageRepository) RoomService {
	return &roomService{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
	}
}

// ValidatePin checks a caller-supplied PIN: digits only, 4 to 10 of them.
func ValidatePin(pin string) error {
	if !pinPattern.MatchString(pin) || len(pin) < minPinLength || len(pin) > maxPinLength {
		return WithMessage(ErrInvalidPin, "PIN must be 4-10 digits")
	}
	return nil
}

// GeneratePin returns a uniformly random 6-digit PIN from crypto/rand.
func GeneratePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func (s *roomService) Create(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	name := strings.TrimSpace(in.Name)
	if !roomNamePattern.MatchString(name) {
		return nil, WithMessage(ErrInvalidRoomName, "room name must be 2-100 letters, digits, spaces, '-' or '_'")
	}
	if !models.IsValidRoomType(in.Type) {
		return nil, ErrInvalidRoomType
	}

	maxFileMB := in.MaxFileMB
	if maxFileMB == 0 {
		maxFileMB = models.DefaultMaxFileMB
	}
	if maxFileMB < 1 || maxFileMB > maxFileMBCap {
		return nil, ErrInvalidFileSize
	}

	var pin *string
	switch {
	case in.Pin == nil:
		generated, err := GeneratePin()
		if err != nil {
			return nil, StorageError("generate pin", err)
		}
		pin = &generated
	case strings.TrimSpace(*in.Pin) == "":
		// open room
	default:
		p := strings.TrimSpace(*in.Pin)
		if err := ValidatePin(p); err != nil {
			return nil, err
		}
		pin = &p
	}

	room := &models.Room{
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Pin:            pin,
		Type:           in.Type,
		MaxFileMB:      maxFileMB,
		AllowAnonymous: in.AllowAnonymous,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateRoomName
		}
		return nil, StorageError("create room", err)
	}
	return room, nil
}

func (s *roomService) Get(ctx context.Context, name string) (*models.Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidRoomName
	}
	room, err := s.roomRepo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, StorageError("find room", err)
	}
	return room, nil
}

func (s *roomService) stats(ctx context.Context, name string) (dto.RoomStats, error) {
	members, err := s.userRepo.CountInRoom(ctx, name)
	if err != nil {
		return dto.RoomStats{}, StorageError("count members", err)
	}
	messages, err := s.messageRepo.CountByRoom(ctx, name)
	if err != nil {
		return dto.RoomStats{}, StorageError("count messages", err)
	}
	return dto.RoomStats{Members: members, Messages: messages}, nil
}

func (s *roomService) List(ctx context.Context) ([]dto.RoomWithStats, error) {
	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		return nil, StorageError("list rooms", err)
	}
	out := make([]dto.RoomWithStats, 0, len(rooms))
	for i := range rooms {
		stats, err := s.stats(ctx, rooms[i].Name)
		if err != nil {
			return nil, err
		}
		out = append(out, dto.RoomWithStats{RoomResponse: dto.ToRoomResponse(&rooms[i]), Stats: stats})
	}
	return out, nil
}

func (s *roomService) Details(ctx context.Context, name string) (*dto.RoomDetailsResponse, error) {
	room, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	members, err := s.userRepo.CountInRoom(ctx, name)
	if err != nil {
		return nil, StorageError("count members", err)
	}
	return &dto.RoomDetailsResponse{RoomResponse: dto.ToRoomResponse(room), MembersCount: members}, nil
}

func (s *roomService) Summary(ctx context.Context, name string) (*dto.RoomSummaryResponse, error) {
	room, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats(ctx, name)
	if err != nil {
		return nil, err
	}
	recent, err := s.messageRepo.ListRecent(ctx, name, summaryRecent)
	if err != nil {
		return nil, StorageError("list messages", err)
	}
	return &dto.RoomSummaryResponse{
		Room:           dto.ToRoomResponse(room),
		Stats:          stats,
		RecentMessages: dto.ToMessageResponses(recent),
	}, nil
}

func (s *roomService) Members(ctx context.Context, name string) (*dto.MembersResponse, error) {
	if _, err := s.Get(ctx, name); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListInRoom(ctx, name)
	if err != nil {
		return nil, StorageError("list members", err)
	}
	members := dto.ToMemberResponses(users)
	return &dto.MembersResponse{Room: name, Members: members, Count: len(members)}, nil
}

func (s *roomService) UpdateDescription(ctx context.Context, name, description string) (*models.Room, error) {
	description = strings.TrimSpace(description)
	if len(description) > 500 {
		return nil, WithMessage(ErrValidation, "description cannot exceed 500 characters")
	}
	if err := s.roomRepo.UpdateDescription(ctx, name, description); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, StorageError("update room", err)
	}
	return s.Get(ctx, name)
}

func (s *roomService) DeleteCascade(ctx context.Context, name string) (*repository.CascadeResult, error) {
	result, err := s.roomRepo.DeleteCascade(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, StorageError("delete room", err)
	}
	return result, nil
}

func (s *roomService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	rooms, err := s.roomRepo.Count(ctx)
	if err != nil {
		return nil, StorageError("count rooms", err)
	}
	messages, err := s.messageRepo.CountAll(ctx)
	if err != nil {
		return nil, StorageError("count messages", err)
	}
	online, err := s.userRepo.CountOnline(ctx)
	if err != nil {
		return nil, StorageError("count users", err)
	}
	return &dto.StatsResponse{TotalRooms: rooms, TotalMessages: messages, TotalUsersOnline: online}, nil
}
