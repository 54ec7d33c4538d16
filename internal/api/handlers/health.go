package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"plazza/pkg/logger"
)

// Pinger checks connectivity to the backing queue substrate.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	pinger Pinger
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(pinger Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// HandleHealthz serves GET /api/v1/healthz (liveness). Returns 200
// unconditionally — the process is alive regardless of Redis state.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady serves GET /api/v1/ready (readiness): only reports ready
// if the queue substrate answers.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.pinger == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	if err := h.pinger.Ping(r.Context()); err != nil {
		logger.Error("readiness check failed: queue unavailable", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
