package api

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/gophsync/internal/models"
)

// FieldConflict представление конфликта одного поля для ревьюера.
// Значения закодированы в tagged JSON, как поля записи.
type FieldConflict struct {
	LocalValue     json.RawMessage `json:"local_value"`
	RemoteValue    json.RawMessage `json:"remote_value"`
	SuggestedValue json.RawMessage `json:"suggested_value,omitempty"`
	Field          string          `json:"field"`
	Policy         string          `json:"policy,omitempty"`
	CanAutoResolve bool            `json:"can_auto_resolve"`
}

// NewFieldConflicts конвертирует подсказки советника в API формат
func NewFieldConflicts(in []models.FieldConflict) ([]FieldConflict, error) {
	out := make([]FieldConflict, 0, len(in))
	for _, fc := range in {
		local, err := models.MarshalValue(fc.LocalValue)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fc.Field, err)
		}
		remote, err := models.MarshalValue(fc.RemoteValue)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fc.Field, err)
		}

		item := FieldConflict{
			LocalValue:     local,
			RemoteValue:    remote,
			Field:          fc.Field,
			Policy:         fc.Policy,
			CanAutoResolve: fc.CanAutoResolve,
		}
		if fc.SuggestedValue != nil {
			item.SuggestedValue, err = models.MarshalValue(fc.SuggestedValue)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", fc.Field, err)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// ConflictListResponse ответ на GET /api/v1/conflicts
type ConflictListResponse struct {
	Entries []*models.HistoryEntry `json:"entries"`
	Total   int                    `json:"total"`
}

// ConflictResponse ответ на GET /api/v1/conflicts/{id}
type ConflictResponse struct {
	Entry  *models.HistoryEntry `json:"entry"`
	Fields []FieldConflict      `json:"fields"`
}

// ResolveRequest ручное решение ревьюера.
// ResolvedBy можно не указывать: сервер подставит субъект токена.
type ResolveRequest struct {
	FieldOverrides models.Fields   `json:"field_overrides,omitempty"`
	Strategy       models.Strategy `json:"strategy"`
	ResolvedBy     string          `json:"resolved_by,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// ResolveResponse ответ на POST /api/v1/conflicts/{id}/resolve
type ResolveResponse struct {
	Resolution *models.ConflictResolution `json:"resolution"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}
