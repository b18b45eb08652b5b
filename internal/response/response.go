// Package response writes the JSON envelope every API endpoint returns.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain"
	"storefront/internal/observability"
)

// Error codes carried in the "error" field.
const (
	CodeAuthRequired       = "auth_required"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeValidation         = "validation_error"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailExists        = "email_exists"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal_error"
)

// Meta accompanies successful responses.
type Meta struct {
	ItemCount *int           `json:"itemCount,omitempty"`
	Totals    *domain.Totals `json:"totals,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Option customizes a successful envelope.
type Option func(*Envelope)

func WithMessage(msg string) Option {
	return func(e *Envelope) {
		e.Message = msg
	}
}

func WithItemCount(n int) Option {
	return func(e *Envelope) {
		e.meta().ItemCount = &n
	}
}

func WithTotals(t domain.Totals) Option {
	return func(e *Envelope) {
		e.meta().Totals = &t
	}
}

func (e *Envelope) meta() *Meta {
	if e.Meta == nil {
		e.Meta = &Meta{}
	}
	return e.Meta
}

// JSON writes a successful envelope.
func JSON(w http.ResponseWriter, status int, data any, opts ...Option) {
	env := Envelope{Success: true, Data: data}
	for _, opt := range opts {
		opt(&env)
	}
	env.meta().Timestamp = time.Now().UTC()
	Write(w, status, env)
}

// Write encodes env as the response body.
func Write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, Envelope{Success: false, Error: code, Message: message})
}

// FromError maps err onto a status code and envelope. Unknown errors are
// logged and answered with a generic 500.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	var limited *domain.RateLimitError

	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		Error(w, http.StatusUnauthorized, CodeTokenExpired, "Token expired")
	case errors.Is(err, domain.ErrInvalidToken):
		Error(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid token")
	case errors.Is(err, domain.ErrAuthRequired):
		Error(w, http.StatusUnauthorized, CodeAuthRequired, "Authentication required")
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		Error(w, http.StatusTooManyRequests, CodeRateLimitExceeded, "Too many requests. Please try again later.")
	case errors.As(err, &validation):
		Error(w, http.StatusBadRequest, CodeValidation, validation.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		Error(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
	case errors.Is(err, domain.ErrEmailExists):
		Error(w, http.StatusConflict, CodeEmailExists, "An account with this email already exists")
	case errors.Is(err, domain.ErrUserNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, "User not found")
	default:
		observability.FromContext(r.Context()).Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		Error(w, http.StatusInternalServerError, CodeInternal, "An unexpected error occurred")
	}
}
