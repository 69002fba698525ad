package common

import (
	"errors"
	"net/http"
)

// ErrorResponse API error response body
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"` // only populated in debug mode
}

// CustomError carries an error code and HTTP status alongside the cause
type CustomError struct {
	Code    string
	Message string
	Err     error
	Status  int
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError creates a new custom error
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// WithMessage returns a copy of the error with a more specific message
func (e *CustomError) WithMessage(message string) *CustomError {
	return &CustomError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
		Err:     e.Err,
	}
}

// WithCause returns a copy of the error wrapping the given cause
func (e *CustomError) WithCause(err error) *CustomError {
	return &CustomError{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Err:     err,
	}
}

// AsCustomError extracts a *CustomError from an error chain
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or SERVER_ERROR when untyped
func CodeOf(err error) string {
	if ce, ok := AsCustomError(err); ok {
		return ce.Code
	}
	if IsValidationError(err) {
		return ErrCodeValidation
	}
	return ErrCodeServerError
}

// StatusOf returns the HTTP status of err, or 500 when untyped
func StatusOf(err error) int {
	if ce, ok := AsCustomError(err); ok {
		return ce.Status
	}
	if IsValidationError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ValidationError marks malformed or missing local input
type ValidationError struct {
	message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError creates a new validation error
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError reports whether err is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Predefined error codes
const (
	// client errors (4xx)
	ErrCodeValidation      = "VALIDATION_ERROR"  // 400
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeInvalidFile     = "INVALID_FILE"      // 400
	ErrCodeParsing         = "PARSING_ERROR"     // 400
	ErrCodeUnauthorized    = "UNAUTHORIZED"      // 401
	ErrCodeForbidden       = "FORBIDDEN"         // 403
	ErrCodeBlocked         = "BLOCKED"           // 403
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeRequestTimeout  = "TIMEOUT"           // 408
	ErrCodeConflict        = "CONFLICT"          // 409
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429
	ErrCodeRateLimit       = "RATE_LIMIT"        // 429

	// server errors (5xx)
	ErrCodeServerError        = "SERVER_ERROR"            // 500
	ErrCodeMisconfiguration   = "SERVER_MISCONFIGURATION" // 500
	ErrCodeAPIError           = "API_ERROR"               // 502
	ErrCodeNetworkError       = "NETWORK_ERROR"           // 502
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"     // 503
)

// Predefined errors
var (
	// client errors
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrInvalidFile     = NewError(ErrCodeInvalidFile, "invalid or unsupported file", http.StatusBadRequest, nil)
	ErrParsing         = NewError(ErrCodeParsing, "input could not be parsed", http.StatusBadRequest, nil)
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized, nil)
	ErrForbidden       = NewError(ErrCodeForbidden, "access denied", http.StatusForbidden, nil)
	ErrBlocked         = NewError(ErrCodeBlocked, "request blocked", http.StatusForbidden, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "resource not found", http.StatusNotFound, nil)
	ErrRequestTimeout  = NewError(ErrCodeRequestTimeout, "request timed out", http.StatusRequestTimeout, nil)
	ErrConflict        = NewError(ErrCodeConflict, "resource conflict", http.StatusConflict, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)
	ErrRateLimit       = NewError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests, nil)

	// server errors
	ErrServerError      = NewError(ErrCodeServerError, "internal server error", http.StatusInternalServerError, nil)
	ErrMisconfiguration = NewError(ErrCodeMisconfiguration, "server misconfiguration", http.StatusInternalServerError, nil)
	ErrAPIError         = NewError(ErrCodeAPIError, "upstream service error", http.StatusBadGateway, nil)
	ErrNetworkError     = NewError(ErrCodeNetworkError, "upstream network error", http.StatusBadGateway, nil)
)
