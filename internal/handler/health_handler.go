package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Health returns basic health check
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Check tests one dependency.
type Check func(ctx context.Context) HealthCheckResult

// Ready reports readiness of every configured dependency. Checks run in
// parallel and share a 5 second budget.
func Ready(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]HealthCheckResult, len(checks))
		)
		for name, check := range checks {
			name, check := name, check
			wg.Add(1)
			go func() {
				defer wg.Done()
				res := check(ctx)
				mu.Lock()
				results[name] = res
				mu.Unlock()
			}()
		}
		wg.Wait()

		allHealthy := true
		for _, res := range results {
			if res.Status != "up" {
				allHealthy = false
			}
		}

		response := map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"checks":    results,
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			response["status"] = "ready"
			w.WriteHeader(http.StatusOK)
		} else {
			response["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(response)
	}
}

// DatabaseCheck pings db and reports its pool statistics.
func DatabaseCheck(db *sql.DB) Check {
	return func(ctx context.Context) HealthCheckResult {
		start := time.Now()
		err := db.PingContext(ctx)
		latency := time.Since(start)

		if err != nil {
			return HealthCheckResult{
				Status:    "down",
				LatencyMs: latency.Milliseconds(),
				Error:     err.Error(),
			}
		}

		stats := db.Stats()
		return HealthCheckResult{
			Status:    "up",
			LatencyMs: latency.Milliseconds(),
			Metadata: map[string]interface{}{
				"connections_open":   stats.OpenConnections,
				"connections_in_use": stats.InUse,
				"connections_idle":   stats.Idle,
				"max_open":           stats.MaxOpenConnections,
			},
		}
	}
}

// RedisCheck pings the rate limit store.
func RedisCheck(client redis.UniversalClient) Check {
	return func(ctx context.Context) HealthCheckResult {
		start := time.Now()
		err := client.Ping(ctx).Err()
		latency := time.Since(start)

		if err != nil {
			return HealthCheckResult{
				Status:    "down",
				LatencyMs: latency.Milliseconds(),
				Error:     err.Error(),
			}
		}
		return HealthCheckResult{
			Status:    "up",
			LatencyMs: latency.Milliseconds(),
		}
	}
}

// connection is satisfied by *messaging.RabbitMQ.
type connection interface {
	IsClosed() bool
}

// RabbitMQCheck reports whether the broker connection is still open.
func RabbitMQCheck(conn connection) Check {
	return func(ctx context.Context) HealthCheckResult {
		if conn.IsClosed() {
			return HealthCheckResult{
				Status: "down",
				Error:  "connection closed",
			}
		}
		return HealthCheckResult{Status: "up"}
	}
}
