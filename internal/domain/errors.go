package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired      = errors.New("authentication required")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrValidation        = errors.New("validation failed")
	ErrInternal          = errors.New("internal error")
)

// ValidationError describes a rejected payload. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RateLimitError is returned when a key has used up its quota for the current window.
// It matches ErrRateLimitExceeded.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
