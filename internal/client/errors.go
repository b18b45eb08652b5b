package client

import (
	"fmt"
	"net/http"

	"storefront/internal/domain"
)

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storefront api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("storefront api: %d %s", e.StatusCode, e.Code)
}

// Unwrap maps the response onto the domain error taxonomy so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "auth_required":
		return domain.ErrAuthRequired
	case "invalid_token":
		return domain.ErrInvalidToken
	case "token_expired":
		return domain.ErrTokenExpired
	case "invalid_credentials":
		return domain.ErrInvalidCredentials
	case "email_exists":
		return domain.ErrEmailExists
	}

	switch e.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrAuthRequired
	case http.StatusTooManyRequests:
		return &domain.RateLimitError{RetryAfterSeconds: e.RetryAfter}
	case http.StatusBadRequest:
		return &domain.ValidationError{Message: e.Message}
	case http.StatusConflict:
		return domain.ErrEmailExists
	}
	return domain.ErrInternal
}
