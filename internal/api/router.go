// Package api wires the reception process's admin HTTP surface:
// status, health/readiness, and Prometheus metrics.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"plazza/internal/api/handlers"
	"plazza/internal/api/middleware"
	"plazza/internal/manager"
)

// NewRouter builds the chi.Router serving reception's admin endpoints.
func NewRouter(mgr *manager.Manager, pinger handlers.Pinger, log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	statusHandler := handlers.NewStatusHandler(mgr)
	healthHandler := handlers.NewHealthHandler(pinger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", statusHandler.Handle)
		r.Get("/healthz", healthHandler.HandleHealthz)
		r.Get("/ready", healthHandler.HandleReady)
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	})

	return r
}
