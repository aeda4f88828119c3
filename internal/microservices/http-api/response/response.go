// Package response writes the HTTP error body shared by handlers and middleware.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/microservices/http-api/service"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error    string           `json:"error"`
	Code     string           `json:"code"`
	Category service.Category `json:"category"`
}

// StatusFor maps an error category onto its HTTP status.
func StatusFor(category service.Category) int {
	switch category {
	case service.CategoryValidation:
		return http.StatusBadRequest
	case service.CategoryAuth:
		return http.StatusUnauthorized
	case service.CategoryForbidden:
		return http.StatusForbidden
	case service.CategoryNotFound:
		return http.StatusNotFound
	case service.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error aborts the request with the status of err's category.
func Error(c *gin.Context, err error) {
	e := service.AsError(err)
	ErrorWithStatus(c, StatusFor(e.Category), err)
}

// ErrorWithStatus aborts with an explicit status. Storage failures never
// expose their cause.
func ErrorWithStatus(c *gin.Context, status int, err error) {
	e := service.AsError(err)
	msg := e.Message
	if e.Category == service.CategoryStorage {
		msg = service.ErrStorage.Message
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg, Code: e.Code, Category: e.Category})
}

// BindError reports a request body or query that failed gin binding.
func BindError(c *gin.Context, err error) {
	Error(c, service.WithMessage(service.ErrValidation, err.Error()))
}
