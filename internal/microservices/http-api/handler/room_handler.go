package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"roomchat/internal/microservices/http-api/dto"
	"roomchat/internal/microservices/http-api/middleware"
	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/repository"
	"roomchat/internal/microservices/http-api/response"
	"roomchat/internal/microservices/http-api/service"
)

// LiveRooms performs the deletes that live connections must hear about.
// Implemented by the websocket hub.
type LiveRooms interface {
	DeleteRoom(ctx context.Context, name string) (*repository.CascadeResult, error)
	DeleteMessage(ctx context.Context, actor *models.User, messageID int64, room string) (*models.Message, error)
}

type RoomHandler struct {
	rooms    service.RoomService
	messages service.MessageService
	live     LiveRooms
}

func NewRoomHandler(rooms service.RoomService, messages service.MessageService, live LiveRooms) *RoomHandler {
	return &RoomHandler{rooms: rooms, messages: messages, live: live}
}

func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

// Create is admin only. The response carries the PIN, the one time it is
// ever returned.
func (h *RoomHandler) Create(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	in := service.CreateRoomInput{
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.Type,
		Pin:            req.Pin,
		AllowAnonymous: req.AllowAnonymous,
	}
	if req.MaxFileMB != nil {
		in.MaxFileMB = *req.MaxFileMB
		if in.MaxFileMB == 0 {
			response.Error(c, service.ErrInvalidFileSize)
			return
		}
	}

	room, err := h.rooms.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreateRoomResponse{RoomResponse: dto.ToRoomResponse(room), Pin: room.Pin})
}

func (h *RoomHandler) Get(c *gin.Context) {
	details, err := h.rooms.Details(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *RoomHandler) Summary(c *gin.Context) {
	summary, err := h.rooms.Summary(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *RoomHandler) Members(c *gin.Context) {
	members, err := h.rooms.Members(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// Messages returns the newest page of history, oldest first.
func (h *RoomHandler) Messages(c *gin.Context) {
	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}

	limit := 0
	if q.Limit != nil {
		limit = *q.Limit
	}
	room := c.Param("name")
	messages, err := h.messages.History(c.Request.Context(), room, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageListResponse{Room: room, Messages: messages, Count: len(messages)})
}

func (h *RoomHandler) Update(c *gin.Context) {
	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	room, err := h.rooms.UpdateDescription(c.Request.Context(), c.Param("name"), *req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToRoomResponse(room))
}

// Delete removes the room with its messages and memberships, and tells
// everyone still connected to it.
func (h *RoomHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	result, err := h.live.DeleteRoom(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CascadeResponse{
		Room:            name,
		RoomDeleted:     result.RoomDeleted,
		MessagesDeleted: result.MessagesDeleted,
		UsersCleared:    result.UsersCleared,
	})
}

func (h *RoomHandler) DeleteMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, service.WithMessage(service.ErrValidation, "message id must be a positive integer"))
		return
	}

	msg, err := h.live.DeleteMessage(c.Request.Context(), middleware.CurrentUser(c), id, c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": msg.ID, "room": msg.Room, "deleted": true})
}

func (h *RoomHandler) Stats(c *gin.Context) {
	stats, err := h.rooms.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
