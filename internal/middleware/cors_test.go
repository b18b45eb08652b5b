package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/testutil"
)

func TestCORS_AllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		shouldAllow    bool
	}{
		{
			name:           "allowed origin",
			allowedOrigins: []string{"http://localhost:3000", "http://shop.example.com"},
			requestOrigin:  "http://localhost:3000",
			shouldAllow:    true,
		},
		{
			name:           "allowed second origin",
			allowedOrigins: []string{"http://localhost:3000", "http://shop.example.com"},
			requestOrigin:  "http://shop.example.com",
			shouldAllow:    true,
		},
		{
			name:           "disallowed origin",
			allowedOrigins: []string{"http://localhost:3000"},
			requestOrigin:  "http://malicious.com",
			shouldAllow:    false,
		},
		{
			name:           "wildcard",
			allowedOrigins: []string{"*"},
			requestOrigin:  "http://anywhere.example",
			shouldAllow:    true,
		},
		{
			name:           "empty origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "",
			shouldAllow:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.allowedOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			testutil.AssertStatusCode(t, w, http.StatusOK)
			if tt.shouldAllow {
				testutil.AssertHeader(t, w, "Access-Control-Allow-Origin", tt.requestOrigin)
				testutil.AssertHeaderContains(t, w, "Access-Control-Allow-Headers", "Authorization")
				testutil.AssertHeaderContains(t, w, "Access-Control-Expose-Headers", "X-RateLimit-Remaining")
			} else {
				testutil.AssertHeader(t, w, "Access-Control-Allow-Origin", "")
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	nextCalled := false
	handler := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusNoContent)
	testutil.AssertHeaderContains(t, w, "Access-Control-Allow-Methods", "PUT")
	testutil.AssertFalse(t, nextCalled, "preflight should not reach the handler")
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "single", input: "http://localhost:3000", want: []string{"http://localhost:3000"}},
		{name: "spaces", input: " http://a.example , http://b.example ", want: []string{"http://a.example", "http://b.example"}},
		{name: "empty entries", input: "http://a.example,,", want: []string{"http://a.example"}},
		{name: "empty", input: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOrigins(tt.input)
			testutil.AssertLen(t, got, len(tt.want))
			for i := range tt.want {
				testutil.AssertEqual(t, got[i], tt.want[i])
			}
		})
	}
}
