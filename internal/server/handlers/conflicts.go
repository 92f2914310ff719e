package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/gophsync/internal/advisor"
	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/internal/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

// ConflictHandler обслуживает очередь ручного разбора конфликтов
type ConflictHandler struct {
	logger    *slog.Logger
	records   storage.RecordStorage
	history   storage.HistoryStorage
	engine    *resolve.Engine
	advisor   *advisor.Advisor
	collector *audit.Collector
	exporter  *audit.Exporter
}

// NewConflictHandler creates a new conflict handler. exporter may be nil.
func NewConflictHandler(
	logger *slog.Logger,
	records storage.RecordStorage,
	history storage.HistoryStorage,
	engine *resolve.Engine,
	adv *advisor.Advisor,
	collector *audit.Collector,
	exporter *audit.Exporter,
) *ConflictHandler {
	return &ConflictHandler{
		logger:    logger,
		records:   records,
		history:   history,
		engine:    engine,
		advisor:   adv,
		collector: collector,
		exporter:  exporter,
	}
}

// List обрабатывает GET /api/v1/conflicts?unresolved=true&entity_type=...&include_dismissed=true
func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := storage.HistoryFilter{EntityType: query.Get("entity_type")}
	var err error
	if filter.UnresolvedOnly, err = parseBool(query.Get("unresolved")); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid unresolved parameter")
		return
	}
	if filter.IncludeDismissed, err = parseBool(query.Get("include_dismissed")); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid include_dismissed parameter")
		return
	}

	entries, err := h.history.ListEntries(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list conflicts", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.ConflictListResponse{
		Entries: entries,
		Total:   len(entries),
	})
}

// Get обрабатывает GET /api/v1/conflicts/{id}
// Возвращает запись истории и подсказки по каждому конфликтующему полю
func (h *ConflictHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entry, err := h.history.GetEntry(r.Context(), id)
	if err != nil {
		h.storageError(w, id, err)
		return
	}

	fields, err := api.NewFieldConflicts(h.advisor.FieldConflicts(&entry.Conflict))
	if err != nil {
		h.logger.Error("Failed to encode field conflicts", "conflict_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.ConflictResponse{
		Entry:  entry,
		Fields: fields,
	})
}

// Resolve обрабатывает POST /api/v1/conflicts/{id}/resolve
// Решение применяется и проверяется движком, затем сохраняется запись
// и только после этого запись истории помечается разрешенной.
func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req api.ResolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("Invalid resolve request", "conflict_id", id, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ResolvedBy == "" {
		req.ResolvedBy, _ = GetReviewer(ctx)
	}

	entry, err := h.history.GetEntry(ctx, id)
	if err != nil {
		h.storageError(w, id, err)
		return
	}
	if entry.IsResolved() {
		writeError(w, h.logger, http.StatusConflict, "conflict already resolved")
		return
	}

	res, err := h.engine.ApplyManual(&entry.Conflict, resolve.Decision{
		FieldOverrides: req.FieldOverrides,
		ConflictID:     id,
		Strategy:       req.Strategy,
		ResolvedBy:     req.ResolvedBy,
		Notes:          req.Notes,
	})
	switch {
	case errors.Is(err, resolve.ErrUnknownStrategy):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, resolve.ErrInvalidResolution):
		writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to apply decision", "conflict_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.records.SaveRecord(ctx, res.Record); err != nil {
		if errors.Is(err, storage.ErrClockRegression) {
			writeError(w, h.logger, http.StatusConflict, "record changed since the conflict was detected")
			return
		}
		h.collector.RecordDataLoss(id, err.Error())
		h.logger.Error("Failed to save resolved record", "conflict_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.history.MarkResolved(ctx, res); err != nil {
		h.storageError(w, id, err)
		return
	}
	if h.exporter != nil {
		h.exporter.ObserveResolution(res)
	}

	writeJSON(w, h.logger, http.StatusOK, api.ResolveResponse{Resolution: res})
}

// MarkRead обрабатывает POST /api/v1/conflicts/{id}/read?read=false
func (h *ConflictHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	read := true
	if v := r.URL.Query().Get("read"); v != "" {
		var err error
		if read, err = strconv.ParseBool(v); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid read parameter")
			return
		}
	}

	if err := h.history.SetRead(r.Context(), id, read); err != nil {
		h.storageError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dismiss обрабатывает POST /api/v1/conflicts/{id}/dismiss
func (h *ConflictHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.history.Dismiss(r.Context(), id); err != nil {
		h.storageError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConflictHandler) storageError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, storage.ErrHistoryNotFound):
		writeError(w, h.logger, http.StatusNotFound, "conflict not found")
	case errors.Is(err, storage.ErrAlreadyResolved):
		writeError(w, h.logger, http.StatusConflict, "conflict already resolved")
	default:
		h.logger.Error("Storage operation failed", "conflict_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
	}
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
