package models

import (
	"errors"
	"fmt"
)

// Error codes used across the client.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRequest      = "REQUEST_FAILED"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Status  int
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

// NewValidationError reports client-side input that blocks a call before any
// network traffic happens.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewUnauthorizedError reports an authorization-failure response from the API.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  401,
	}
}

// NewRequestError reports any other failed request. status is zero when the
// transport itself failed before a response arrived.
func NewRequestError(status int, message string, err error) *AppError {
	if message == "" {
		message = "request failed"
	}
	return &AppError{
		Code:    CodeRequest,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation reports whether err is a client-side validation error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool { return hasCode(err, CodeUnauthorized) }

// IsRequest reports whether err is a non-auth request failure.
func IsRequest(err error) bool { return hasCode(err, CodeRequest) }
