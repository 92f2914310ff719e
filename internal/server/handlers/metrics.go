package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/storage"
)

// MetricsHandler отдает метрики конфликтов в JSON и в формате Prometheus
type MetricsHandler struct {
	logger    *slog.Logger
	history   storage.HistoryStorage
	collector *audit.Collector
	exporter  *audit.Exporter
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(logger *slog.Logger, history storage.HistoryStorage, collector *audit.Collector, exporter *audit.Exporter) *MetricsHandler {
	return &MetricsHandler{
		logger:    logger,
		history:   history,
		collector: collector,
		exporter:  exporter,
	}
}

// JSON обрабатывает GET /api/v1/metrics
func (h *MetricsHandler) JSON(w http.ResponseWriter, r *http.Request) {
	m, err := h.compute(r)
	if err != nil {
		h.logger.Error("Failed to compute metrics", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, m)
}

// Prometheus обрабатывает GET /metrics.
// Перед выдачей gauge-метрики обновляются по текущей истории.
func (h *MetricsHandler) Prometheus() http.Handler {
	promHandler := h.exporter.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := h.compute(r)
		if err != nil {
			h.logger.Error("Failed to compute metrics", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.exporter.Observe(m)
		promHandler.ServeHTTP(w, r)
	})
}

func (h *MetricsHandler) compute(r *http.Request) (audit.ConflictMetrics, error) {
	entries, err := h.history.ListEntries(r.Context(), storage.HistoryFilter{IncludeDismissed: true})
	if err != nil {
		return audit.ConflictMetrics{}, err
	}
	return audit.ComputeHistory(entries, h.collector.DataLoss()), nil
}
