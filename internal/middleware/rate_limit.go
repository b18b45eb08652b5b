package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/observability"
	"storefront/internal/ratelimit"
	"storefront/internal/response"
)

// RateLimiter gates routes by action class using fixed-window quotas shared
// through a ratelimit.Store.
type RateLimiter struct {
	limiter  *ratelimit.Limiter
	policies ratelimit.Policies
}

func NewRateLimiter(limiter *ratelimit.Limiter, policies ratelimit.Policies) *RateLimiter {
	return &RateLimiter{
		limiter:  limiter,
		policies: policies,
	}
}

// Middleware returns a chi-compatible middleware counting requests against class.
// Every gated response carries the X-RateLimit-* headers. When the counter
// store fails the request is let through.
func (rl *RateLimiter) Middleware(class string) func(http.Handler) http.Handler {
	policy, ok := rl.policies[class]
	if !ok {
		panic("ratelimit: no policy for class " + class)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.Key(class, ClientIP(r))
			res, err := rl.limiter.Consume(r.Context(), key, policy)

			var limited *domain.RateLimitError
			switch {
			case err == nil:
			case errors.As(err, &limited):
				setRateLimitHeaders(w, res)
				observability.RateLimitDecisions.WithLabelValues(class, "rejected").Inc()
				observability.FromContext(r.Context()).Warn("rate limit exceeded",
					slog.String("class", class),
					slog.String("key", key),
					slog.Int("retry_after", limited.RetryAfterSeconds))
				response.FromError(w, r, err)
				return
			default:
				observability.RateLimitDecisions.WithLabelValues(class, "error").Inc()
				observability.FromContext(r.Context()).Error("rate limit check failed, allowing request",
					slog.String("class", class),
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, res)
			observability.RateLimitDecisions.WithLabelValues(class, "allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// ClientIP resolves the caller's address from proxy headers, falling back to
// the connection's remote address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
