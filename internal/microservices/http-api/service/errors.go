package service

import (
	"errors"
	"fmt"
)

// Category groups errors by how a caller should react to them.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryAuth       Category = "auth"
	CategoryNotFound   Category = "not_found"
	CategoryConflict   Category = "conflict"
	CategoryForbidden  Category = "forbidden"
	CategoryStorage    Category = "storage"
)

// Error is the single error type returned by services and the session hub.
// Two errors are equal under errors.Is when their codes match.
type Error struct {
	Category Category
	Code     string
	Message  string
	Err      error // underlying cause, storage errors only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

var (
	// validation
	ErrValidation        = newError(CategoryValidation, "validation_error", "invalid request")
	ErrInvalidUsername   = newError(CategoryValidation, "invalid_username", "username must be 3-50 letters, digits or underscores")
	ErrWeakPassword      = newError(CategoryValidation, "weak_password", "password must be at least 6 characters")
	ErrInvalidPin        = newError(CategoryValidation, "invalid_pin", "invalid PIN")
	ErrInvalidRoomType   = newError(CategoryValidation, "invalid_type", "room type must be text or multimedia")
	ErrInvalidRoomName   = newError(CategoryValidation, "invalid_room_name", "room name is required")
	ErrInvalidFileSize   = newError(CategoryValidation, "invalid_max_file_mb", "max_file_mb must be between 1 and 100")
	ErrEmptyMessage      = newError(CategoryValidation, "empty_message", "message is empty")
	ErrMessageTooLong    = newError(CategoryValidation, "message_too_long", "message is too long")
	ErrNicknameRequired  = newError(CategoryValidation, "nickname_required", "nickname is required")
	ErrFilesNotAllowed   = newError(CategoryValidation, "files_not_allowed", "files are not allowed in text rooms")
	ErrFileTypeRejected  = newError(CategoryValidation, "file_type_not_allowed", "file type not allowed")
	ErrFileTooLarge      = newError(CategoryValidation, "file_too_large", "file is too large")
	ErrUnknownEvent      = newError(CategoryValidation, "unknown_event", "unknown event")
	ErrRateLimited       = newError(CategoryValidation, "rate_limited", "rate limit exceeded")
	ErrMalformedEnvelope = newError(CategoryValidation, "malformed_payload", "malformed payload")

	// auth
	ErrNoToken            = newError(CategoryAuth, "no_token", "authentication required")
	ErrTokenExpired       = newError(CategoryAuth, "token_expired", "token has expired")
	ErrTokenInvalid       = newError(CategoryAuth, "token_invalid", "invalid token")
	ErrWrongTokenKind     = newError(CategoryAuth, "wrong_token_kind", "wrong token type")
	ErrInvalidCredentials = newError(CategoryAuth, "invalid_credentials", "invalid credentials")

	// not found
	ErrRoomNotFound    = newError(CategoryNotFound, "room_not_found", "room not found")
	ErrUserNotFound    = newError(CategoryNotFound, "user_not_found", "user not found")
	ErrMessageNotFound = newError(CategoryNotFound, "message_not_found", "message not found")
	ErrFileNotFound    = newError(CategoryNotFound, "file_not_found", "file not found")

	// conflict
	ErrUsernameTaken       = newError(CategoryConflict, "username_taken", "username already in use")
	ErrDuplicateRoomName   = newError(CategoryConflict, "duplicate_name", "room name already exists")
	ErrNicknameTaken       = newError(CategoryConflict, "nickname_taken", "nickname already in use in this room")
	ErrDeviceAlreadyInRoom = newError(CategoryConflict, "device_already_in_room", "this connection is already in a room")
	ErrAlreadyInRoom       = newError(CategoryConflict, "already_in_room", "leave your current room first")
	ErrNotInThatRoom       = newError(CategoryConflict, "not_in_that_room", "you are not in that room")

	// forbidden
	ErrForbidden         = newError(CategoryForbidden, "forbidden", "not allowed")
	ErrNotAMember        = newError(CategoryForbidden, "not_a_member", "you are not a member of this room")
	ErrAdminRequired     = newError(CategoryForbidden, "admin_required", "admin privileges required")
	ErrAnonymousDisabled = newError(CategoryForbidden, "anonymous_not_allowed", "this room does not accept anonymous users")
	ErrUnsafeFile        = newError(CategoryForbidden, "unsafe_file", "file rejected by security check")

	// storage
	ErrStorage = newError(CategoryStorage, "storage_error", "storage failure")
)

// StorageError wraps a persistence failure.
func StorageError(op string, err error) *Error {
	return &Error{Category: CategoryStorage, Code: ErrStorage.Code, Message: op + " failed", Err: err}
}

// WithMessage returns a copy of base with a more specific message.
func WithMessage(base *Error, message string) *Error {
	return &Error{Category: base.Category, Code: base.Code, Message: message, Err: base.Err}
}

// AsError extracts the typed error, wrapping anything else as a storage error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return StorageError("operation", err)
}
