package httpserver

import (
	"context"
	"net/http"
	"time"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// healthz reports service health including database connectivity.
func (h handlers) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := time.Now()
	uptime := now.Sub(serverStartTime)

	status := "ok"
	statusCode := http.StatusOK
	dbStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("health check: database ping failed")
		dbStatus = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int64(uptime.Seconds()),
		"time":           now.UTC().Format(time.RFC3339),
	})
}

// version reports the running build.
func (h handlers) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": Version,
	})
}
