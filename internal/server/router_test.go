package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/advisor"
	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/storage/sqlite"
	"github.com/iudanet/gophsync/internal/strategy"
	"github.com/iudanet/gophsync/internal/sync"
	"github.com/iudanet/gophsync/pkg/api"
)

var testJWT = handlers.JWTConfig{
	Secret:         []byte("test-secret-key-test-secret-key!"),
	AccessTokenTTL: time.Hour,
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := strategy.DefaultRegistry()
	engine := resolve.NewEngine(registry, logger)
	exporter := audit.NewExporter()
	collector := audit.NewCollector(logger, exporter)
	service := sync.NewService(store, store, conflict.NewDetector(registry, logger), engine,
		collector, exporter, models.StrategyManual, logger)

	return NewRouter(logger, testJWT, Handlers{
		Health:    handlers.NewHealthHandler(logger, store, "test"),
		Conflicts: handlers.NewConflictHandler(logger, store, store, engine, advisor.New(registry, logger), collector, exporter),
		Reconcile: handlers.NewReconcileHandler(logger, service),
		Metrics:   handlers.NewMetricsHandler(logger, store, collector, exporter),
	})
}

func TestRouter_Auth(t *testing.T) {
	router := newTestRouter(t)
	token, _, err := handlers.GenerateAccessToken(testJWT, "alice")
	require.NoError(t, err)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		expectedStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "prometheus is public", method: http.MethodGet, path: "/metrics", expectedStatus: http.StatusOK},
		{name: "api without token", method: http.MethodGet, path: "/api/v1/conflicts", expectedStatus: http.StatusUnauthorized},
		{name: "api with token", method: http.MethodGet, path: "/api/v1/conflicts", token: token, expectedStatus: http.StatusOK},
		{name: "metrics json", method: http.MethodGet, path: "/api/v1/metrics", token: token, expectedStatus: http.StatusOK},
		{name: "wrong method", method: http.MethodDelete, path: "/api/v1/conflicts", token: token, expectedStatus: http.StatusMethodNotAllowed},
		{name: "unknown conflict", method: http.MethodGet, path: "/api/v1/conflicts/nope", token: token, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRouter_ReconcileThenReview(t *testing.T) {
	router := newTestRouter(t)
	token, _, err := handlers.GenerateAccessToken(testJWT, "alice")
	require.NoError(t, err)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	record := func(node, clock, password string) string {
		return `{"id":"r1","type":"credential","node_id":"` + node + `","clock":` + clock +
			`,"updated_at":"2026-05-01T08:00:00Z","fields":{"password":{"kind":"string","value":"` + password + `"}}}`
	}

	// Первая версия создается, вторая конкурирует с ней по критичному полю
	w := do(http.MethodPost, "/api/v1/reconcile", `{"records":[`+record("d1", `{"d1":1}`, "one")+`]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodPost, "/api/v1/reconcile", `{"records":[`+record("d2", `{"d2":1}`, "two")+`]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result api.ReconcileResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, 1, result.Escalated)

	w = do(http.MethodGet, "/api/v1/conflicts?unresolved=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list api.ConflictListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Equal(t, 1, list.Total)
	id := list.Entries[0].ID()
	assert.Equal(t, models.SeverityCritical, list.Entries[0].Conflict.Severity)

	w = do(http.MethodPost, "/api/v1/conflicts/"+id+"/resolve", `{"strategy":"keep_remote"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodGet, "/api/v1/conflicts?unresolved=true", "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Zero(t, list.Total)
}
