package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error carrying both the HTTP status
// code and the Alexa ErrorResponse payload type for the failure.
type AppError struct {
	Code      int    `json:"code"`
	AlexaType string `json:"type"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("code=%d, type=%s, message=%s", e.Code, e.AlexaType, e.Message)
}

// Domain errors
var (
	ErrNoSuchEndpoint       = &AppError{Code: http.StatusNotFound, AlexaType: "NO_SUCH_ENDPOINT", Message: "Endpoint not found"}
	ErrAuthExpired          = &AppError{Code: http.StatusUnauthorized, AlexaType: "EXPIRED_AUTHORIZATION_CREDENTIAL", Message: "Authorization credential expired"}
	ErrUpstreamUnavailable  = &AppError{Code: http.StatusBadGateway, AlexaType: "BRIDGE_UNREACHABLE", Message: "Upstream service unavailable"}
	ErrUnsupportedDirective = &AppError{Code: http.StatusBadRequest, AlexaType: "INVALID_DIRECTIVE", Message: "Unsupported directive"}
	ErrInvalidValue         = &AppError{Code: http.StatusBadRequest, AlexaType: "INVALID_VALUE", Message: "Invalid payload value"}
	ErrInternal             = &AppError{Code: http.StatusInternalServerError, AlexaType: "INTERNAL_ERROR", Message: "Internal error"}
)

// New creates a new AppError
func New(code int, alexaType, message string) *AppError {
	return &AppError{
		Code:      code,
		AlexaType: alexaType,
		Message:   message,
	}
}

// WithDetails returns a copy of err with details attached
func WithDetails(err *AppError, details string) *AppError {
	return &AppError{
		Code:      err.Code,
		AlexaType: err.AlexaType,
		Message:   err.Message,
		Details:   details,
	}
}

// Wrap attaches a cause to the given AppError while keeping the AppError
// identity for errors.Is / errors.As checks.
func Wrap(appErr *AppError, cause error) error {
	return &wrappedError{app: appErr, cause: cause}
}

type wrappedError struct {
	app   *AppError
	cause error
}

func (w *wrappedError) Error() string {
	return fmt.Sprintf("%s: %v", w.app.Message, w.cause)
}

func (w *wrappedError) Unwrap() error { return w.cause }

func (w *wrappedError) Is(target error) bool { return target == w.app }

func (w *wrappedError) As(target interface{}) bool {
	if p, ok := target.(**AppError); ok {
		*p = w.app
		return true
	}
	return false
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetStatusCode returns the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// AlexaErrorType returns the Alexa error type string for an error,
// falling back to INTERNAL_ERROR for anything unmapped.
func AlexaErrorType(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.AlexaType
	}
	return ErrInternal.AlexaType
}
