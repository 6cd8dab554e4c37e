package handlers

import (
	"context"
	"net/http"
	"time"
)

// AvailabilityChecker reports whether a backing inference service responds.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context) bool
}

// HealthHandler reports service liveness and the reachability of the
// inference services the pipeline depends on.
type HealthHandler struct {
	services map[string]AvailabilityChecker
}

// NewHealthHandler creates a health handler over the named service checkers.
func NewHealthHandler(services map[string]AvailabilityChecker) *HealthHandler {
	return &HealthHandler{services: services}
}

// Get handles the health check endpoint. The endpoint itself always returns
// 200; individual service reachability is reported in the body so a frontend
// can show what kind of run is currently possible.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]bool, len(h.services))
	for name, checker := range h.services {
		services[name] = checker.IsAvailable(ctx)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"services": services,
	})
}
