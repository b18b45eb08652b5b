package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/response"
	"storefront/internal/testutil"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specPath = "../../artifacts/openapi.yaml"

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	require.NoError(t, err, "Failed to load OpenAPI spec")
	return doc
}

func TestOpenAPISpecIsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	require.NoError(t, err)

	err = doc.Validate(loader.Context)
	require.NoError(t, err, "OpenAPI spec validation failed")

	assert.Equal(t, "Storefront API", doc.Info.Title)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	require.NotEmpty(t, doc.Servers, "At least one server should be defined")
	assert.Equal(t, "/api", doc.Servers[0].URL)
}

var documentedRoutes = []struct {
	method    string
	path      string
	protected bool
}{
	{"POST", "/auth/register", false},
	{"POST", "/auth/login", false},
	{"POST", "/auth/logout", false},
	{"GET", "/auth/me", true},

	{"GET", "/cart", true},
	{"PUT", "/cart", true},
	{"DELETE", "/cart", true},

	{"GET", "/wishlist", true},
	{"POST", "/wishlist", true},
	{"DELETE", "/wishlist", true},
}

func TestAllRoutesAreDocumentedInOpenAPI(t *testing.T) {
	doc := loadSpec(t)

	assert.Len(t, doc.Paths.Map(), 6, "Number of paths should match")

	for _, route := range documentedRoutes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			pathItem := doc.Paths.Find(route.path)
			require.NotNil(t, pathItem, "Path not found in OpenAPI spec: %s", route.path)

			operation := pathItem.GetOperation(route.method)
			require.NotNil(t, operation, "Operation not found in OpenAPI spec: %s %s", route.method, route.path)

			assert.NotEmpty(t, operation.OperationID, "OperationID should be set")
			assert.NotEmpty(t, operation.Tags, "Tags should be set")
			assert.NotEmpty(t, operation.Responses, "Responses should be defined")

			if !route.protected {
				if operation.Security != nil {
					assert.Empty(t, *operation.Security, "Public route should not have security requirement")
				}
				return
			}

			require.NotNil(t, operation.Security, "Protected route should have security requirement")
			hasBearer := false
			for _, secReq := range *operation.Security {
				if _, ok := secReq["bearerAuth"]; ok {
					hasBearer = true
					break
				}
			}
			assert.True(t, hasBearer, "Protected route should use bearerAuth: %s %s", route.method, route.path)
		})
	}
}

func TestOpenAPISecuritySchemes(t *testing.T) {
	doc := loadSpec(t)

	bearer := doc.Components.SecuritySchemes["bearerAuth"]
	require.NotNil(t, bearer, "bearerAuth security scheme should exist")
	assert.Equal(t, "http", bearer.Value.Type)
	assert.Equal(t, "bearer", bearer.Value.Scheme)
}

func TestOpenAPISchemas(t *testing.T) {
	doc := loadSpec(t)

	for _, name := range []string{
		"RegisterRequest",
		"LoginRequest",
		"AuthResponse",
		"ErrorResponse",
		"Cart",
		"CartLine",
		"Totals",
		"WishlistEntry",
		"WishlistWriteRequest",
	} {
		assert.NotNil(t, doc.Components.Schemas[name], "Schema should exist: %s", name)
	}
}

func TestOpenAPIResponseCodes(t *testing.T) {
	doc := loadSpec(t)

	operation := doc.Paths.Find("/auth/register").GetOperation("POST")
	require.NotNil(t, operation)

	assert.NotNil(t, operation.Responses.Status(201), "Register should return 201 on success")
	assert.NotNil(t, operation.Responses.Status(400), "Register should return 400 on invalid input")
	assert.NotNil(t, operation.Responses.Status(409), "Register should return 409 on conflict")
}

func TestShouldSkipPath(t *testing.T) {
	skipPaths := []string{"/health", "/metrics"}

	tests := []struct {
		path     string
		expected bool
	}{
		{"/health", true},
		{"/health/ready", true},
		{"/metrics", true},
		{"/healthcheck", false},
		{"/api/cart", false},
		{"/api/auth/login", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldSkipPath(tt.path, skipPaths))
		})
	}
}

func TestDefaultOpenAPIValidatorConfig(t *testing.T) {
	config := DefaultOpenAPIValidatorConfig(true, "artifacts/openapi.yaml")

	assert.True(t, config.Enabled)
	assert.Equal(t, "artifacts/openapi.yaml", config.SpecPath)
	assert.True(t, config.ValidateRequests, "Should validate requests by default")
	assert.False(t, config.ValidateResponses, "Should not validate responses by default (performance)")

	skipPathsStr := strings.Join(config.SkipPaths, ",")
	assert.Contains(t, skipPathsStr, "/health")
	assert.Contains(t, skipPathsStr, "/metrics")
}

func TestOpenAPIMiddlewareWithInvalidSpec(t *testing.T) {
	config := &OpenAPIValidatorConfig{
		Enabled:  true,
		SpecPath: "/nonexistent/path/to/spec.yaml",
	}

	// Falls back to a pass-through middleware.
	handler := OpenAPIValidator(config)(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAPIMiddlewareDisabled(t *testing.T) {
	handler := OpenAPIValidator(&OpenAPIValidatorConfig{Enabled: false})(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAPIMiddleware_ValidatesRequests(t *testing.T) {
	handler := OpenAPIValidator(DefaultOpenAPIValidatorConfig(true, specPath))(okHandler())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid login",
			method:     http.MethodPost,
			path:       "/api/auth/login",
			body:       `{"email":"ada@example.com","password":"correct-horse"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "login missing password",
			method:     http.MethodPost,
			path:       "/api/auth/login",
			body:       `{"email":"ada@example.com"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "cart items not an array",
			method:     http.MethodPut,
			path:       "/api/cart",
			body:       `{"items":"P1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "valid cart replace",
			method:     http.MethodPut,
			path:       "/api/cart",
			body:       `{"items":[{"productId":"P1","quantity":2,"unitPrice":100}],"currency":"ZAR"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "undocumented path",
			method:     http.MethodGet,
			path:       "/api/orders",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "skipped path",
			method:     http.MethodGet,
			path:       "/health/ready",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			req.Header.Set("Authorization", "Bearer some-token")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusBadRequest {
				env := testutil.DecodeEnvelope(t, w, nil)
				assert.False(t, env.Success)
				assert.Equal(t, response.CodeValidation, env.Error)
			}
		})
	}
}

func TestOpenAPIMiddleware_ResponseValidationOnlyLogs(t *testing.T) {
	cfg := DefaultOpenAPIValidatorConfig(true, specPath)
	cfg.ValidateResponses = true

	undocumented := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"unexpected":true}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()

	OpenAPIValidator(cfg)(undocumented).ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.JSONEq(t, `{"unexpected":true}`, w.Body.String())
}
