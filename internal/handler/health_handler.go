package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// UserCounter reports how many users are connected
type UserCounter interface {
	UserCount() int
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string `json:"status"`
	ConnectedUsers int    `json:"connected_users"`
	Timestamp      string `json:"timestamp"`
}

// Health returns basic health check with the connected user count
func Health(counter UserCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:         "healthy",
			ConnectedUsers: counter.UserCount(),
			Timestamp:      time.Now().Format(time.RFC3339),
		})
	}
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// BrokerStatus reports whether a message broker connection is down
type BrokerStatus interface {
	IsClosed() bool
}

// Ready returns readiness check with optional dependencies. A nil db or
// broker means the dependency is disabled and does not affect readiness.
func Ready(db *sql.DB, broker BrokerStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// Check dependencies in parallel
		dbResult := make(chan HealthCheckResult, 1)
		brokerResult := make(chan HealthCheckResult, 1)

		go func() {
			dbResult <- checkDatabase(ctx, db)
		}()

		go func() {
			brokerResult <- checkBroker(broker)
		}()

		dbCheck := <-dbResult
		brokerCheck := <-brokerResult

		allHealthy := dbCheck.Status != "down" && brokerCheck.Status != "down"

		status, code := "ready", http.StatusOK
		if !allHealthy {
			status, code = "not_ready", http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]interface{}{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"checks": map[string]HealthCheckResult{
				"database": dbCheck,
				"rabbitmq": brokerCheck,
			},
		})
	}
}

// checkDatabase verifies database connectivity
func checkDatabase(ctx context.Context, db *sql.DB) HealthCheckResult {
	if db == nil {
		return HealthCheckResult{Status: "disabled"}
	}

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

// checkBroker verifies the broker connection is still open
func checkBroker(broker BrokerStatus) HealthCheckResult {
	if broker == nil {
		return HealthCheckResult{Status: "disabled"}
	}
	if broker.IsClosed() {
		return HealthCheckResult{
			Status: "down",
			Error:  "connection closed",
		}
	}
	return HealthCheckResult{Status: "up"}
}
