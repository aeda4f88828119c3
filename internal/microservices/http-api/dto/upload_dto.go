package dto

import (
	"roomchat/internal/security"
	"roomchat/internal/storage"
)

type UploadResponse struct {
	URL           string              `json:"url"`
	Filename      string              `json:"filename"`
	PublicID      string              `json:"public_id"`
	Format        string              `json:"format"`
	SizeMB        float64             `json:"size_mb"`
	SecurityCheck security.FileReport `json:"security_check"`
}

type ValidateUploadRequest struct {
	Filename string `json:"filename" binding:"required"`
	Size     int64  `json:"size" binding:"min=0"`
	Room     string `json:"room"`
}

type ValidateUploadResponse struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	MaxSizeMB int      `json:"max_size_mb"`
}

type DeleteUploadRequest struct {
	PublicID string `json:"public_id" binding:"required"`
}

type ThumbnailRequest struct {
	PublicID string `json:"public_id" binding:"required"`
	Width    int    `json:"width" binding:"omitempty,min=1,max=2000"`
	Height   int    `json:"height" binding:"omitempty,min=1,max=2000"`
}

type UploadListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

type UploadListResponse struct {
	Files []storage.StoredFile `json:"files"`
	Total int                  `json:"total"`
}
