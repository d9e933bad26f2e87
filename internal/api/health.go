package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultReadyTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the readiness endpoint. Liveness is served by the
// Heartbeat middleware.
type HealthHandler struct {
	db       Pinger
	executor string
	timeout  time.Duration
}

// NewHealthHandler creates a readiness handler for db. executor is reported
// as-is in the response.
func NewHealthHandler(db Pinger, executor string) *HealthHandler {
	return &HealthHandler{db: db, executor: executor, timeout: defaultReadyTimeout}
}

// Ready returns the status of the API and its database.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":   "healthy",
		"executor": h.executor,
		"checks":   checks,
	}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Readiness check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the readiness route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/ready", h.Ready)
}
