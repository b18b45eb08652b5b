package middleware

import (
	"net/http"

	"storefront/internal/observability"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestID copies chi's request id into the logging context. It must run
// after chimiddleware.RequestID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
