package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHealth_ReturnsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	Health(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "Content-Type", "application/json")

	var response map[string]string
	err := json.NewDecoder(w.Body).Decode(&response)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, response["status"], "ok")
}

func TestHealth_AlwaysReturns200(t *testing.T) {
	// Health endpoint should always return 200 regardless of underlying services
	tests := []struct {
		name   string
		method string
	}{
		{"GET request", http.MethodGet},
		{"HEAD request", http.MethodHead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			Health(w, req)

			testutil.AssertStatusCode(t, w, http.StatusOK)
		})
	}
}

func TestHealthCheckResult_JSON(t *testing.T) {
	tests := []struct {
		name   string
		result HealthCheckResult
		want   map[string]interface{}
	}{
		{
			name: "healthy service",
			result: HealthCheckResult{
				Status:    "up",
				LatencyMs: 5,
			},
			want: map[string]interface{}{
				"status":     "up",
				"latency_ms": float64(5),
			},
		},
		{
			name: "unhealthy service",
			result: HealthCheckResult{
				Status:    "down",
				LatencyMs: 100,
				Error:     "connection refused",
			},
			want: map[string]interface{}{
				"status":     "down",
				"latency_ms": float64(100),
				"error":      "connection refused",
			},
		},
		{
			name: "with metadata",
			result: HealthCheckResult{
				Status:    "up",
				LatencyMs: 3,
				Metadata: map[string]any{
					"connections_open": 5,
					"max_open":         10,
				},
			},
			want: map[string]interface{}{
				"status":     "up",
				"latency_ms": float64(3),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.result)
			testutil.AssertNoError(t, err)

			var result map[string]interface{}
			err = json.Unmarshal(data, &result)
			testutil.AssertNoError(t, err)

			for key, expected := range tt.want {
				got, ok := result[key]
				if !ok {
					t.Errorf("missing key %q", key)
					continue
				}
				switch v := expected.(type) {
				case string:
					testutil.AssertEqual(t, got.(string), v)
				case float64:
					testutil.AssertEqual(t, got.(float64), v)
				}
			}
		})
	}
}

func TestHealthCheckResult_OmitsEmptyFields(t *testing.T) {
	result := HealthCheckResult{
		Status: "up",
	}

	data, err := json.Marshal(result)
	testutil.AssertNoError(t, err)

	// Should not include latency_ms, error, or metadata when empty/zero
	jsonStr := string(data)
	testutil.AssertNotContains(t, jsonStr, "latency_ms")
	testutil.AssertNotContains(t, jsonStr, "error")
	testutil.AssertNotContains(t, jsonStr, "metadata")
}

func TestHealthCheckResult_IncludesError(t *testing.T) {
	result := HealthCheckResult{
		Status: "down",
		Error:  "connection refused",
	}

	data, err := json.Marshal(result)
	testutil.AssertNoError(t, err)

	testutil.AssertContains(t, string(data), "connection refused")
}

func TestHealthCheckResult_IncludesMetadata(t *testing.T) {
	result := HealthCheckResult{
		Status: "up",
		Metadata: map[string]any{
			"connections_open": 5,
			"max_open":         10,
		},
	}

	data, err := json.Marshal(result)
	testutil.AssertNoError(t, err)

	testutil.AssertContains(t, string(data), "metadata")
	testutil.AssertContains(t, string(data), "connections_open")
}

func TestReady_AllUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	testutil.AssertNoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	handler := Ready(map[string]Check{
		"database": DatabaseCheck(db),
		"redis":    RedisCheck(rdb),
		"rabbitmq": RabbitMQCheck(fakeConn{closed: false}),
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)

	var body struct {
		Status string                       `json:"status"`
		Checks map[string]HealthCheckResult `json:"checks"`
	}
	testutil.AssertNoError(t, json.NewDecoder(w.Body).Decode(&body))
	testutil.AssertEqual(t, body.Status, "ready")
	testutil.AssertEqual(t, len(body.Checks), 3)
	for name, res := range body.Checks {
		testutil.AssertEqual(t, res.Status+" "+name, "up "+name)
	}
	testutil.AssertNotNil(t, body.Checks["database"].Metadata)
	testutil.AssertNoError(t, mock.ExpectationsWereMet())
}

func TestReady_NotReady(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		down   string
	}{
		{
			name: "database down",
			checks: map[string]Check{
				"database": func(context.Context) HealthCheckResult {
					return HealthCheckResult{Status: "down", Error: "connection refused"}
				},
				"rabbitmq": RabbitMQCheck(fakeConn{}),
			},
			down: "database",
		},
		{
			name: "broker closed",
			checks: map[string]Check{
				"rabbitmq": RabbitMQCheck(fakeConn{closed: true}),
			},
			down: "rabbitmq",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Ready(tt.checks)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			testutil.AssertStatusCode(t, w, http.StatusServiceUnavailable)

			var body struct {
				Status string                       `json:"status"`
				Checks map[string]HealthCheckResult `json:"checks"`
			}
			testutil.AssertNoError(t, json.NewDecoder(w.Body).Decode(&body))
			testutil.AssertEqual(t, body.Status, "not_ready")
			testutil.AssertEqual(t, body.Checks[tt.down].Status, "down")
		})
	}
}

func TestDatabaseCheck_PingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	testutil.AssertNoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	res := DatabaseCheck(db)(context.Background())

	testutil.AssertEqual(t, res.Status, "down")
	testutil.AssertEqual(t, res.Error, "connection refused")
}

func TestRedisCheck_ServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	res := RedisCheck(rdb)(context.Background())

	testutil.AssertEqual(t, res.Status, "down")
	testutil.AssertTrue(t, res.Error != "", "error should be reported")
}

func TestReady_NoChecksIsReady(t *testing.T) {
	w := httptest.NewRecorder()
	Ready(nil)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	testutil.AssertStatusCode(t, w, http.StatusOK)
}

type fakeConn struct {
	closed bool
}

func (c fakeConn) IsClosed() bool { return c.closed }

func TestHealth_ContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	Health(w, req)

	contentType := w.Header().Get("Content-Type")
	testutil.AssertEqual(t, contentType, "application/json")
}

func TestHealth_ResponseBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	Health(w, req)

	body := w.Body.String()
	testutil.AssertContains(t, body, "status")
	testutil.AssertContains(t, body, "ok")
}

func TestHealth_ValidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	Health(w, req)

	var response interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	testutil.AssertNoError(t, err)
}

// Benchmark health endpoint
func BenchmarkHealth(b *testing.B) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		Health(w, req)
	}
}
