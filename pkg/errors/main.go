// Package errors carries typed application errors from storage and domain
// code to the HTTP boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	ErrorTypeDatabaseError       = "DATABASE_ERROR"
	ErrorTypeNotFound            = "NOT_FOUND"
	ErrorTypeInvalidRequest      = "INVALID_REQUEST"
	ErrorTypeValidation          = "VALIDATION_ERROR"
	ErrorTypeUnauthorized        = "UNAUTHORIZED"
	ErrorTypeConflict            = "CONFLICT"
	ErrorTypeNotification        = "NOTIFICATION_ERROR"
	ErrorTypeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrorTypeUnknown             = "UNKNOWN_ERROR"
)

const genericMessage = "An unexpected error occurred"

var statusByType = map[string]int{
	ErrorTypeNotFound:       http.StatusNotFound,
	ErrorTypeInvalidRequest: http.StatusBadRequest,
	ErrorTypeValidation:     http.StatusBadRequest,
	ErrorTypeUnauthorized:   http.StatusUnauthorized,
	ErrorTypeConflict:       http.StatusConflict,
}

// AppError pairs a client-safe Message with the underlying cause.
// Details holds structured payload such as field errors.
type AppError struct {
	Type    string
	Message string
	Details any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(errType, message string, err error) *AppError {
	return &AppError{Type: errType, Message: message, Err: err}
}

func NewNotFoundError(message string, err error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, err)
}

func NewInvalidRequestError(message string, err error) *AppError {
	return NewAppError(ErrorTypeInvalidRequest, message, err)
}

func NewValidationError(message string, fields []ValidationErrorResponse) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message, Details: fields}
}

func NewDatabaseError(message string, err error) *AppError {
	return NewAppError(ErrorTypeDatabaseError, message, err)
}

func NewConflictError(message string, err error) *AppError {
	return NewAppError(ErrorTypeConflict, message, err)
}

func NewNotificationError(message string, err error) *AppError {
	return NewAppError(ErrorTypeNotification, message, err)
}

func NewUnauthorizedError(message string, err error) *AppError {
	return NewAppError(ErrorTypeUnauthorized, message, err)
}

func NewInternalServerError(message string, err error) *AppError {
	return NewAppError(ErrorTypeInternalServerError, message, err)
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func GetErrorType(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := asAppError(err); ok {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

func GetDetails(err error) any {
	if appErr, ok := asAppError(err); ok {
		return appErr.Details
	}
	return nil
}

func IsConflict(err error) bool { return GetErrorType(err) == ErrorTypeConflict }

func IsValidation(err error) bool { return GetErrorType(err) == ErrorTypeValidation }

// HTTPStatusCode maps err to a response status. Unknown and internal types
// are 500.
func HTTPStatusCode(err error) int {
	if status, ok := statusByType[GetErrorType(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetHumanReadableMessage never exposes the text of errors that are not
// AppErrors.
func GetHumanReadableMessage(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Message
	}
	return genericMessage
}

var duplicateKeyMarkers = []string{
	"duplicate",
	"unique constraint",
	"conflict",
}

// IsDuplicateKeyError matches unique-constraint failures by message on
// sqlite, postgres and mysql.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
