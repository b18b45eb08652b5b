package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = domain.NewValidationError("Invalid request body")

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewValidationError("Request body too large")
		}
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("Request body is required")
		}
		return errInvalidBody
	}
	return nil
}

// subject returns the authenticated subject or domain.ErrAuthRequired.
func subject(r *http.Request) (string, error) {
	id, ok := middleware.GetSubject(r.Context())
	if !ok {
		return "", domain.ErrAuthRequired
	}
	return id, nil
}
