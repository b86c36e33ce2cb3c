package handler

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"
)

const readinessTimeout = 5 * time.Second

// Health returns basic health check
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status    string         `json:"status"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// BrokerStatus reports whether the event broker connection is usable
type BrokerStatus interface {
	IsClosed() bool
}

// RoomLister exposes the rooms currently held by the registry
type RoomLister interface {
	Rooms() []string
}

type readinessCheck func(ctx context.Context) HealthCheckResult

// Ready reports database, event broker and registry state. A nil broker means event
// publishing is disabled; it is reported as "disabled" and does not fail readiness.
func Ready(db *sql.DB, broker BrokerStatus, registry RoomLister) http.HandlerFunc {
	checks := map[string]readinessCheck{
		"database": func(ctx context.Context) HealthCheckResult { return checkDatabase(ctx, db) },
		"rabbitmq": func(context.Context) HealthCheckResult { return checkRabbitMQ(broker) },
		"registry": func(context.Context) HealthCheckResult { return checkRegistry(registry) },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make(map[string]HealthCheckResult, len(checks))
		var mu sync.Mutex
		var wg sync.WaitGroup
		for name, check := range checks {
			wg.Add(1)
			go func(name string, check readinessCheck) {
				defer wg.Done()
				result := check(ctx)
				mu.Lock()
				results[name] = result
				mu.Unlock()
			}(name, check)
		}
		wg.Wait()

		status, code := "ready", http.StatusOK
		for _, result := range results {
			if result.Status == "down" {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}

		writeJSON(w, code, map[string]any{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"checks":    results,
		})
	}
}

func checkDatabase(ctx context.Context, db *sql.DB) HealthCheckResult {
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
		Metadata: map[string]any{
			"connections_open":   stats.OpenConnections,
			"connections_in_use": stats.InUse,
			"connections_idle":   stats.Idle,
			"max_open":           stats.MaxOpenConnections,
		},
	}
}

func checkRabbitMQ(broker BrokerStatus) HealthCheckResult {
	if broker == nil {
		return HealthCheckResult{Status: "disabled"}
	}
	if broker.IsClosed() {
		return HealthCheckResult{Status: "down", Error: "connection closed"}
	}
	return HealthCheckResult{Status: "up"}
}

func checkRegistry(registry RoomLister) HealthCheckResult {
	if registry == nil {
		return HealthCheckResult{Status: "disabled"}
	}
	return HealthCheckResult{
		Status:   "up",
		Metadata: map[string]any{"rooms": len(registry.Rooms())},
	}
}
