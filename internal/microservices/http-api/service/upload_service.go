package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/security"
	"roomchat/internal/storage"
)

const (
	uploadFolder      = "chat_uploads"
	defaultThumbWidth = 150
	defaultListLimit  = 50
	maxListLimit      = 500
)

var (
	allowedExtensions = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
		"mp4": true, "mov": true, "avi": true,
		"pdf": true, "doc": true, "docx": true, "txt": true, "csv": true, "xlsx": true,
	}
	unsafeFilename = regexp.MustCompile(`[<>:"|?*\x00-\x1f/\\]`)
)

type UploadService interface {
	Upload(ctx context.Context, uploader *models.User, room, filename string, data []byte) (*dto.UploadResponse, error)
	Validate(ctx context.Context, filename string, size int64, room string) (*dto.ValidateUploadResponse, error)
	Delete(ctx context.Context, actor *models.User, publicID string) error
	Thumbnail(ctx context.Context, publicID string, width, height int) (string, error)
	// List returns the newest files the owner uploaded.
	List(ctx context.Context, owner *models.User, limit int) ([]storage.StoredFile, error)
}

type uploadService struct {
	store        storage.FileStore
	rooms        RoomService
	classifier   security.Classifier
	defaultMaxMB int
}

func NewUploadService(store storage.FileStore, rooms RoomService, classifier security.Classifier, defaultMaxMB int) UploadService {
	return &uploadService{
		store:        store,
		rooms:        rooms,
		classifier:   classifier,
		defaultMaxMB: defaultMaxMB,
	}
}

// limitFor returns the size cap in MB for uploads aimed at room ("" = no room).
func (s *uploadService) limitFor(ctx context.Context, room string) (int, error) {
	if room == "" {
		return s.defaultMaxMB, nil
	}
	r, err := s.rooms.Get(ctx, room)
	if err != nil {
		return 0, err
	}
	if !r.AllowsFiles() {
		return 0, ErrFilesNotAllowed
	}
	return r.MaxFileMB, nil
}

func checkFilename(filename string) error {
	if filename == "" || len(filename) > maxFilenameLength {
		return WithMessage(ErrValidation, "filename must be 1-255 characters")
	}
	if unsafeFilename.MatchString(filename) {
		return WithMessage(ErrValidation, "filename contains forbidden characters")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !allowedExtensions[ext] {
		return WithMessage(ErrFileTypeRejected, fmt.Sprintf("file type not allowed: .%s", ext))
	}
	return nil
}

func (s *uploadService) Upload(ctx context.Context, uploader *models.User, room, filename string, data []byte) (*dto.UploadResponse, error) {
	filename = strings.TrimSpace(filename)
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, WithMessage(ErrValidation, "file is empty")
	}
	maxMB, err := s.limitFor(ctx, room)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > int64(maxMB)*1024*1024 {
		return nil, WithMessage(ErrFileTooLarge, fmt.Sprintf("file exceeds %d MB", maxMB))
	}

	report := s.classifier.InspectFile(filename, data)
	if report.RiskLevel == security.RiskHigh {
		return nil, ErrUnsafeFile
	}

	stored, err := s.store.Put(ctx, uploadFolder+"/"+uploader.Username, filename, data)
	if err != nil {
		return nil, StorageError("store file", err)
	}

	return &dto.UploadResponse{
		URL:           stored.URL,
		Filename:      filename,
		PublicID:      stored.PublicID,
		Format:        stored.Format,
		SizeMB:        math.Round(float64(stored.Bytes)/(1024*1024)*100) / 100,
		SecurityCheck: report,
	}, nil
}

func (s *uploadService) Validate(ctx context.Context, filename string, size int64, room string) (*dto.ValidateUploadResponse, error) {
	resp := &dto.ValidateUploadResponse{Valid: true, Errors: []string{}}

	maxMB, err := s.limitFor(ctx, room)
	if err != nil {
		// an unknown room is an error of the request, not of the file
		return nil, err
	}
	resp.MaxSizeMB = maxMB

	if err := checkFilename(strings.TrimSpace(filename)); err != nil {
		resp.Errors = append(resp.Errors, AsError(err).Message)
	}
	if size > int64(maxMB)*1024*1024 {
		resp.Errors = append(resp.Errors, fmt.Sprintf("file exceeds %d MB", maxMB))
	}
	resp.Valid = len(resp.Errors) == 0
	return resp, nil
}

func (s *uploadService) Delete(ctx context.Context, actor *models.User, publicID string) error {
	owned := strings.HasPrefix(publicID, uploadFolder+"/"+actor.Username+"/")
	if !owned && !actor.IsAdmin {
		return WithMessage(ErrForbidden, "you can only delete your own files")
	}
	if err := s.store.Delete(ctx, publicID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return ErrFileNotFound
		case errors.Is(err, storage.ErrInvalidPublic):
			return WithMessage(ErrValidation, "invalid public_id")
		}
		return StorageError("delete file", err)
	}
	return nil
}

func (s *uploadService) Thumbnail(ctx context.Context, publicID string, width, height int) (string, error) {
	if width <= 0 {
		width = defaultThumbWidth
	}
	if height <= 0 {
		height = width
	}
	url, err := s.store.ThumbnailURL(publicID, width, height)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return "", ErrFileNotFound
		case errors.Is(err, storage.ErrInvalidPublic):
			return "", WithMessage(ErrValidation, "invalid public_id")
		}
		return "", StorageError("thumbnail", err)
	}
	return url, nil
}

func (s *uploadService) List(ctx context.Context, owner *models.User, limit int) ([]storage.StoredFile, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	files, err := s.store.List(ctx, uploadFolder+"/"+owner.Username, limit)
	if err != nil {
		return nil, StorageError("list files", err)
	}
	return files, nil
}
