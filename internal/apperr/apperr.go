// Package apperr defines the application error taxonomy shared across the
// recording engine, perception loop, and HTTP control plane.
package apperr

import (
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeInvalidName      = "INVALID_NAME"
	CodeInvalidOptions   = "INVALID_OPTIONS"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyRecording = "ALREADY_RECORDING"
	CodeNotRecording     = "NOT_RECORDING"
	CodeCDPFailure       = "CDP_FAILURE"
	CodeModelFailure     = "MODEL_FAILURE"
	CodeEncoderFailure   = "ENCODER_FAILURE"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
)

// AppError is the base application error type.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ValidationError represents a malformed request (400).
type ValidationError struct{ AppError }

func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{AppError{Code: code, Message: message, HTTPStatus: http.StatusBadRequest}}
}

func InvalidName(message string) *ValidationError {
	return NewValidationError(CodeInvalidName, message)
}

func InvalidOptions(message string) *ValidationError {
	return NewValidationError(CodeInvalidOptions, message)
}

// NotFoundError represents a missing page/resource (404).
type NotFoundError struct{ AppError }

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}}
}

// ConflictError represents a lifecycle conflict (409).
type ConflictError struct{ AppError }

func NewConflictError(code, message string) *ConflictError {
	return &ConflictError{AppError{Code: code, Message: message, HTTPStatus: http.StatusConflict}}
}

func AlreadyRecording() *ConflictError {
	return NewConflictError(CodeAlreadyRecording, "Recording already in progress")
}

func NotRecording() *ConflictError {
	return NewConflictError(CodeNotRecording, "No recording in progress")
}

// TimeoutError represents an operation that exceeded its deadline.
type TimeoutError struct{ AppError }

func NewTimeoutError(message string, cause error) *TimeoutError {
	return &TimeoutError{AppError{Code: CodeTimeout, Message: message, HTTPStatus: http.StatusRequestTimeout, Cause: cause}}
}

// UpstreamError represents a CDP, model, or encoder failure (500/502).
type UpstreamError struct{ AppError }

func NewCDPError(message string, cause error) *UpstreamError {
	return &UpstreamError{AppError{Code: CodeCDPFailure, Message: message, HTTPStatus: http.StatusBadGateway, Cause: cause}}
}

func NewModelError(message string, cause error) *UpstreamError {
	return &UpstreamError{AppError{Code: CodeModelFailure, Message: message, HTTPStatus: http.StatusBadGateway, Cause: cause}}
}

func NewEncoderError(message string, cause error) *UpstreamError {
	return &UpstreamError{AppError{Code: CodeEncoderFailure, Message: message, HTTPStatus: http.StatusInternalServerError, Cause: cause}}
}

// InternalError represents an unexpected failure (500).
type InternalError struct{ AppError }

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{AppError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Cause: cause}}
}

// UnauthorizedError represents a failed auth check (401).
type UnauthorizedError struct{ AppError }

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{AppError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}}
}

// GetHTTPStatus returns the HTTP status code carried by err, defaulting to 500.
func GetHTTPStatus(err error) int {
	switch e := err.(type) {
	case *ValidationError:
		return e.HTTPStatus
	case *NotFoundError:
		return e.HTTPStatus
	case *ConflictError:
		return e.HTTPStatus
	case *TimeoutError:
		return e.HTTPStatus
	case *UpstreamError:
		return e.HTTPStatus
	case *InternalError:
		return e.HTTPStatus
	case *UnauthorizedError:
		return e.HTTPStatus
	case *AppError:
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// GetCode returns the error code carried by err, defaulting to CodeInternal.
func GetCode(err error) string {
	switch e := err.(type) {
	case *ValidationError:
		return e.Code
	case *NotFoundError:
		return e.Code
	case *ConflictError:
		return e.Code
	case *TimeoutError:
		return e.Code
	case *UpstreamError:
		return e.Code
	case *InternalError:
		return e.Code
	case *UnauthorizedError:
		return e.Code
	case *AppError:
		return e.Code
	}
	return CodeInternal
}
