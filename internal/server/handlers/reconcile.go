package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/sync"
	"github.com/iudanet/gophsync/pkg/api"
)

// Reconciler согласует удаленные снимки с хранилищем сервера
type Reconciler interface {
	Reconcile(ctx context.Context, remotes []*models.Record) (*sync.Result, error)
}

// ReconcileHandler handles reconcile requests
type ReconcileHandler struct {
	logger  *slog.Logger
	service Reconciler
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(logger *slog.Logger, service Reconciler) *ReconcileHandler {
	return &ReconcileHandler{
		logger:  logger,
		service: service,
	}
}

// Reconcile обрабатывает POST /api/v1/reconcile
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req api.ReconcileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("Invalid reconcile request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	reviewer, _ := GetReviewer(r.Context())
	h.logger.Info("Reconcile request", "reviewer", reviewer, "records", len(req.Records))

	result, err := h.service.Reconcile(r.Context(), req.Records)
	if err != nil {
		h.logger.Error("Reconcile failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "reconcile failed")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.ReconcileResponse{
		Received:      result.Received,
		Created:       result.Created,
		FastForwarded: result.FastForwarded,
		Unchanged:     result.Unchanged,
		Conflicts:     result.Conflicts,
		Resolved:      result.Resolved,
		Reapplied:     result.Reapplied,
		Escalated:     result.Escalated,
		Skipped:       result.Skipped,
	})
}
