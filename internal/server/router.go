// Package server собирает HTTP API сервера разбора конфликтов.
package server

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/server/middleware"
)

// Handlers набор обработчиков, из которых строится роутер
type Handlers struct {
	Health    *handlers.HealthHandler
	Conflicts *handlers.ConflictHandler
	Reconcile *handlers.ReconcileHandler
	Metrics   *handlers.MetricsHandler
}

// NewRouter регистрирует маршруты и оборачивает их в middleware.
// Все маршруты /api/v1/ требуют JWT токен ревьюера.
func NewRouter(logger *slog.Logger, jwtConfig handlers.JWTConfig, h Handlers) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/conflicts", h.Conflicts.List)
	api.HandleFunc("GET /api/v1/conflicts/{id}", h.Conflicts.Get)
	api.HandleFunc("POST /api/v1/conflicts/{id}/resolve", h.Conflicts.Resolve)
	api.HandleFunc("POST /api/v1/conflicts/{id}/read", h.Conflicts.MarkRead)
	api.HandleFunc("POST /api/v1/conflicts/{id}/dismiss", h.Conflicts.Dismiss)
	api.HandleFunc("POST /api/v1/reconcile", h.Reconcile.Reconcile)
	api.HandleFunc("GET /api/v1/metrics", h.Metrics.JSON)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health.Health)
	mux.Handle("GET /metrics", h.Metrics.Prometheus())
	mux.Handle("/api/v1/", middleware.AuthMiddleware(logger, jwtConfig)(api))

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(logger, "/health", "/metrics")(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)
	return handler
}
