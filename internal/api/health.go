package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	status := http.StatusOK

	if err := s.db.PingContext(ctx); err != nil {
		slog.Warn("health check: database", "component", "api", "error", err)
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	}

	// The cache only speeds up avatar lookups, so a failure degrades but
	// does not fail the check.
	if s.cache != nil {
		checks["cache"] = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			slog.Warn("health check: cache", "component", "api", "error", err)
			checks["cache"] = "error"
		}
	}

	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": result,
		"checks": checks,
	})
}
