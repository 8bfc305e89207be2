package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const healthResponse = `{"status":"ok"}`

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// newHealthHandler runs checks before answering. Without checks it is a plain liveness probe.
// Failures answer 503 and name the failing dependency; error text stays in the log.
func newHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	if len(checks) == 0 {
		return healthHandler
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				healthy = false
				status[name] = "unavailable"
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				continue
			}
			status[name] = "ok"
		}
		if healthy {
			healthHandler(w, r)
			return
		}
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": status})
	}
}
