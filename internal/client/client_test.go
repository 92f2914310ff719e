package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", "token")

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, "token", client.token)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

// TestClient_Reconcile проверяет отправку снимков
func TestClient_Reconcile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reconcile", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var req api.ReconcileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Records, 1)
		assert.Equal(t, "r1", req.Records[0].ID)
		assert.Equal(t, models.String("v"), req.Records[0].Fields["content"])

		_ = json.NewEncoder(w).Encode(api.ReconcileResponse{Received: 1, Created: 1})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	resp, err := client.Reconcile(context.Background(), []*models.Record{{
		ID:     "r1",
		Type:   models.DataTypeText,
		NodeID: "d1",
		Clock:  crdt.VectorClock{"d1": 1},
		Fields: models.Fields{"content": models.String("v")},
	}})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Received)
	assert.Equal(t, 1, resp.Created)
}

// TestClient_ListConflicts проверяет фильтр неразрешенных конфликтов
func TestClient_ListConflicts(t *testing.T) {
	tests := []struct {
		name          string
		expectedQuery string
		unresolved    bool
	}{
		{name: "all", unresolved: false, expectedQuery: ""},
		{name: "unresolved only", unresolved: true, expectedQuery: "unresolved=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/v1/conflicts", r.URL.Path)
				assert.Equal(t, tt.expectedQuery, r.URL.RawQuery)

				_ = json.NewEncoder(w).Encode(api.ConflictListResponse{
					Entries: []*models.HistoryEntry{{Conflict: models.DetectedConflict{ID: "c1"}}},
					Total:   1,
				})
			}))
			defer server.Close()

			resp, err := NewClient(server.URL, "t").ListConflicts(context.Background(), tt.unresolved)
			require.NoError(t, err)
			require.Equal(t, 1, resp.Total)
			assert.Equal(t, "c1", resp.Entries[0].ID())
		})
	}
}

// TestClient_GetConflict проверяет получение конфликта и экранирование ID
func TestClient_GetConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/conflicts/c%2F1", r.URL.EscapedPath())

		_ = json.NewEncoder(w).Encode(api.ConflictResponse{
			Entry:  &models.HistoryEntry{Conflict: models.DetectedConflict{ID: "c/1"}},
			Fields: []api.FieldConflict{{Field: "name", CanAutoResolve: true}},
		})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "t").GetConflict(context.Background(), "c/1")
	require.NoError(t, err)
	assert.Equal(t, "c/1", resp.Entry.ID())
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "name", resp.Fields[0].Field)
}

// TestClient_Resolve проверяет отправку ручного решения
func TestClient_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/conflicts/c1/resolve", r.URL.Path)

		var req api.ResolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.StrategyKeepRemote, req.Strategy)
		assert.Equal(t, "checked", req.Notes)

		_ = json.NewEncoder(w).Encode(api.ResolveResponse{Resolution: &models.ConflictResolution{
			ConflictID: "c1",
			Strategy:   req.Strategy,
			Winner:     models.WinnerManual,
			ResolvedBy: "alice",
		}})
	}))
	defer server.Close()

	res, err := NewClient(server.URL, "t").Resolve(context.Background(), "c1", api.ResolveRequest{
		Strategy: models.StrategyKeepRemote,
		Notes:    "checked",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", res.ConflictID)
	assert.Equal(t, "alice", res.ResolvedBy)
}

// TestClient_Dismiss проверяет ответ без тела
func TestClient_Dismiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/conflicts/c1/dismiss", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL, "t").Dismiss(context.Background(), "c1"))
}

// TestClient_Errors проверяет разбор ошибок сервера
func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		expectedMessage string
		statusCode      int
		unauthorized    bool
	}{
		{
			name:            "json error",
			statusCode:      http.StatusConflict,
			body:            `{"error":"conflict already resolved"}`,
			expectedMessage: "conflict already resolved",
		},
		{
			name:            "plain text",
			statusCode:      http.StatusBadGateway,
			body:            "bad gateway\n",
			expectedMessage: "bad gateway",
		},
		{
			name:            "unauthorized",
			statusCode:      http.StatusUnauthorized,
			body:            `{"error":"invalid token"}`,
			expectedMessage: "invalid token",
			unauthorized:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "t").GetConflict(context.Background(), "c1")
			require.Error(t, err)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.statusCode, statusErr.StatusCode)
			assert.Equal(t, tt.expectedMessage, statusErr.Message)
			assert.Equal(t, tt.unauthorized, errors.Is(err, ErrUnauthorized))
		})
	}
}

// TestClient_ContextCanceled проверяет отмену запроса
func TestClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL, "t").ListConflicts(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}
