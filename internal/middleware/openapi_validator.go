package middleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/observability"
	"storefront/internal/response"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig controls request (and optionally response) checks
// against the API document.
type OpenAPIValidatorConfig struct {
	Enabled           bool
	SpecPath          string
	ValidateRequests  bool
	ValidateResponses bool
	// SkipPaths match exactly or as a path prefix.
	SkipPaths []string
}

// DefaultOpenAPIValidatorConfig validates requests against specPath and
// skips the operational endpoints.
func DefaultOpenAPIValidatorConfig(enabled bool, specPath string) *OpenAPIValidatorConfig {
	return &OpenAPIValidatorConfig{
		Enabled:          enabled,
		SpecPath:         specPath,
		ValidateRequests: true,
		SkipPaths:        []string{"/health", "/metrics"},
	}
}

type openAPIValidator struct {
	cfg    *OpenAPIValidatorConfig
	router routers.Router
	opts   *openapi3filter.Options
}

// OpenAPIValidator rejects requests that do not match the API document with a
// 400 validation_error envelope. Bearer checks are left to Auth. A document
// that cannot be loaded disables validation instead of failing startup.
func OpenAPIValidator(cfg *OpenAPIValidatorConfig) func(next http.Handler) http.Handler {
	passthrough := func(next http.Handler) http.Handler { return next }

	if cfg == nil || !cfg.Enabled {
		slog.Info("OpenAPI validation disabled")
		return passthrough
	}

	router, err := loadOpenAPIRouter(cfg.SpecPath)
	if err != nil {
		slog.Error("OpenAPI validation disabled",
			slog.String("path", cfg.SpecPath),
			slog.String("error", err.Error()),
		)
		return passthrough
	}

	slog.Info("OpenAPI validation enabled",
		slog.String("spec_path", cfg.SpecPath),
		slog.Bool("validate_requests", cfg.ValidateRequests),
		slog.Bool("validate_responses", cfg.ValidateResponses),
	)

	v := &openAPIValidator{
		cfg:    cfg,
		router: router,
		opts:   &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
	}
	return v.middleware
}

func loadOpenAPIRouter(path string) (routers.Router, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}
	return router, nil
}

func (v *openAPIValidator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipPath(r.URL.Path, v.cfg.SkipPaths) {
			next.ServeHTTP(w, r)
			return
		}

		log := observability.FromContext(r.Context()).With(
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		route, params, err := v.router.FindRoute(r)
		if err != nil {
			if !v.cfg.ValidateRequests {
				next.ServeHTTP(w, r)
				return
			}
			log.Warn("request does not match any documented operation")
			writeValidationError(w, fmt.Sprintf("Undocumented operation: %s %s", r.Method, r.URL.Path))
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options:    v.opts,
		}

		if v.cfg.ValidateRequests {
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				log.Warn("request validation failed", slog.String("error", err.Error()))
				writeValidationError(w, "Request validation failed: "+err.Error())
				return
			}
		}

		if !v.cfg.ValidateResponses {
			next.ServeHTTP(w, r)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		// The response is already on the wire; mismatches are only logged.
		err = openapi3filter.ValidateResponse(r.Context(), &openapi3filter.ResponseValidationInput{
			RequestValidationInput: input,
			Status:                 rec.statusCode,
			Header:                 rec.Header(),
			Body:                   io.NopCloser(bytes.NewReader(rec.body.Bytes())),
			Options:                v.opts,
		})
		if err != nil {
			log.Warn("response validation failed",
				slog.Int("status", rec.statusCode),
				slog.String("error", err.Error()),
			)
		}
	})
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skip := range skipPaths {
		if path == skip || strings.HasPrefix(path, strings.TrimSuffix(skip, "/")+"/") {
			return true
		}
	}
	return false
}

func writeValidationError(w http.ResponseWriter, message string) {
	response.Error(w, http.StatusBadRequest, response.CodeValidation, message)
}

// responseRecorder tees the response so it can be validated afterwards.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
