package middleware

import (
	"context"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/observability"
	"storefront/internal/response"
)

type contextKey string

const (
	SubjectKey contextKey = "subject"
	ClaimsKey  contextKey = "claims"
)

// TokenVerifier checks an Authorization header value.
type TokenVerifier interface {
	VerifyHeader(header string) (*domain.TokenClaims, error)
}

// Auth rejects requests without a valid bearer token and stores the token's
// subject in the request context.
func Auth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.VerifyHeader(r.Header.Get("Authorization"))
			if err != nil {
				observability.FromContext(r.Context()).Debug("rejected bearer token")
				response.FromError(w, r, err)
				return
			}

			ctx := WithSubject(r.Context(), claims.Subject)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectKey).(string)
	return subject, ok && subject != ""
}

func GetClaims(ctx context.Context) (*domain.TokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*domain.TokenClaims)
	return claims, ok
}

// WithSubject stores subject for handlers and tags the request logger with it.
func WithSubject(ctx context.Context, subject string) context.Context {
	ctx = context.WithValue(ctx, SubjectKey, subject)
	return observability.WithSubject(ctx, subject)
}
