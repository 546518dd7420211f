package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error kinds used by the settlement engine. Every service-level failure maps
// to one of these so controllers never guess at HTTP statuses.
const (
	ErrKindValidation       = "validation"
	ErrKindNotFound         = "not_found"
	ErrKindAuthorization    = "authorization"
	ErrKindConflict         = "conflict"
	ErrKindAttemptsExceeded = "attempts_exceeded"
	ErrKindGateway          = "gateway"
	ErrKindPersistence      = "persistence"
)

type AppError struct {
	Kind    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) *AppError {
	return &AppError{Kind: ErrKindValidation, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Kind: ErrKindNotFound, Message: msg}
}

func NewAuthorizationError(msg string) *AppError {
	return &AppError{Kind: ErrKindAuthorization, Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Kind: ErrKindConflict, Message: msg}
}

func NewAttemptsExceededError(msg string) *AppError {
	return &AppError{Kind: ErrKindAttemptsExceeded, Message: msg}
}

func NewGatewayError(msg string, err error) *AppError {
	return &AppError{Kind: ErrKindGateway, Message: msg, Err: err}
}

func NewPersistenceError(msg string, err error) *AppError {
	return &AppError{Kind: ErrKindPersistence, Message: msg, Err: err}
}

func httpStatusFor(kind string) int {
	switch kind {
	case ErrKindValidation:
		return http.StatusBadRequest
	case ErrKindNotFound:
		return http.StatusNotFound
	case ErrKindAuthorization:
		return http.StatusForbidden
	case ErrKindConflict:
		return http.StatusConflict
	case ErrKindAttemptsExceeded:
		return http.StatusTooManyRequests
	case ErrKindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondAppError maps a service error onto the response. Unknown errors are
// treated as persistence failures (500) without leaking internals.
func RespondAppError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(httpStatusFor(appErr.Kind), JSONResponse{
			Status:  false,
			Message: appErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, JSONResponse{
		Status:  false,
		Message: "internal error",
	})
}
