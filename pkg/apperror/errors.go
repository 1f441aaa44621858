package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternal          = errors.New("internal server error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("resource already exists")
	ErrAttachment        = errors.New("attachment storage failed")
	ErrStore             = errors.New("record store failed")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// AppError is a custom error type that can hold an HTTP status code
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError reports every problem found in one pass over an input.
// MissingFields lists required fields that were absent or blank,
// InvalidFields maps a field to the reason its value was rejected.
type ValidationError struct {
	MissingFields []string          `json:"missingFields,omitempty"`
	InvalidFields map[string]string `json:"invalidFields,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.MissingFields, ", "))
	}
	if len(e.InvalidFields) > 0 {
		keys := make([]string, 0, len(e.InvalidFields))
		for k := range e.InvalidFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s %s", k, e.InvalidFields[k]))
		}
	}
	if len(parts) == 0 {
		return ErrInvalidInput.Error()
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Missing records a required field that was not supplied.
func (e *ValidationError) Missing(field string) {
	e.MissingFields = append(e.MissingFields, field)
}

// Invalid records a field whose value was rejected.
func (e *ValidationError) Invalid(field, reason string) {
	if e.InvalidFields == nil {
		e.InvalidFields = make(map[string]string)
	}
	e.InvalidFields[field] = reason
}

// Empty reports whether nothing was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.MissingFields) == 0 && len(e.InvalidFields) == 0
}

// ErrOrNil returns e as an error, or nil when nothing was recorded.
func (e *ValidationError) ErrOrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// NewValidationError builds a ValidationError for a single invalid field.
func NewValidationError(field, reason string) *ValidationError {
	v := &ValidationError{}
	v.Invalid(field, reason)
	return v
}

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		return http.StatusTooManyRequests
	}
	// Default to internal server error
	return http.StatusInternalServerError
}
