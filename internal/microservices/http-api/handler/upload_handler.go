package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/middleware"
	"roomchat/internal/microservices/http-api/response"
	"roomchat/internal/microservices/http-api/service"
)

// largest body read from a multipart upload, whatever the room allows
const maxUploadBytes = 100 << 20

type UploadHandler struct {
	uploads service.UploadService
}

func NewUploadHandler(uploads service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload stores the multipart "file" field, optionally checked against the
// limits of the "room" field.
func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, service.WithMessage(service.ErrValidation, "file is required"))
		return
	}
	if header.Size > maxUploadBytes {
		response.Error(c, service.WithMessage(service.ErrFileTooLarge, fmt.Sprintf("file exceeds %d MB", maxUploadBytes>>20)))
		return
	}

	f, err := header.Open()
	if err != nil {
		response.Error(c, service.StorageError("open upload", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		response.Error(c, service.StorageError("read upload", err))
		return
	}

	room := strings.TrimSpace(c.PostForm("room"))
	result, err := h.uploads.Upload(c.Request.Context(), middleware.CurrentUser(c), room, header.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *UploadHandler) Validate(c *gin.Context) {
	var req dto.ValidateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.uploads.Validate(c.Request.Context(), req.Filename, req.Size, strings.TrimSpace(req.Room))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *UploadHandler) Delete(c *gin.Context) {
	var req dto.DeleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.uploads.Delete(c.Request.Context(), middleware.CurrentUser(c), req.PublicID); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_id": req.PublicID, "deleted": true})
}

func (h *UploadHandler) Thumbnail(c *gin.Context) {
	var req dto.ThumbnailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	url, err := h.uploads.Thumbnail(c.Request.Context(), req.PublicID, req.Width, req.Height)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_id": req.PublicID, "thumbnail_url": url})
}

// List returns the caller's own uploads, newest first.
func (h *UploadHandler) List(c *gin.Context) {
	var q dto.UploadListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}

	files, err := h.uploads.List(c.Request.Context(), middleware.CurrentUser(c), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UploadListResponse{Files: files, Total: len(files)})
}
