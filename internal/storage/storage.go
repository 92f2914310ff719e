// Package storage описывает границу хранилища записей и истории конфликтов.
package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out recordstorage_mock.go . RecordStorage

// RecordStorage defines interface for record persistence
type RecordStorage interface {
	// SaveRecord creates or replaces a record.
	// Returns ErrClockRegression if the stored clock is not dominated by
	// the new clock (the save would lose a causally newer or concurrent write).
	SaveRecord(ctx context.Context, record *models.Record) error

	// GetRecord retrieves a record by ID, including deleted ones
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, id string) (*models.Record, error)

	// ListRecords returns records of entityType ordered by ID.
	// Empty entityType returns all records. Deleted records are included.
	ListRecords(ctx context.Context, entityType string) ([]*models.Record, error)
}

//go:generate moq -out historystorage_mock.go . HistoryStorage

// HistoryStorage defines interface for conflict history persistence
type HistoryStorage interface {
	// SaveConflict creates a history entry for the conflict.
	// If an entry with the same conflict ID exists it is returned unchanged,
	// so repeated detection of one conflict is idempotent.
	SaveConflict(ctx context.Context, conflict *models.DetectedConflict) (*models.HistoryEntry, error)

	// GetEntry retrieves a history entry by conflict ID
	// Returns ErrHistoryNotFound if entry doesn't exist
	GetEntry(ctx context.Context, id string) (*models.HistoryEntry, error)

	// ListEntries returns entries matching filter ordered by creation time
	ListEntries(ctx context.Context, filter HistoryFilter) ([]*models.HistoryEntry, error)

	// MarkResolved attaches a resolution to its entry.
	// Returns ErrHistoryNotFound or ErrAlreadyResolved.
	MarkResolved(ctx context.Context, resolution *models.ConflictResolution) error

	// SetRead sets the read flag of an entry
	SetRead(ctx context.Context, id string, read bool) error

	// Dismiss hides an entry from the review queue
	Dismiss(ctx context.Context, id string) error

	// Prune removes entries resolved before the given time.
	// Unresolved entries are never removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// HistoryFilter фильтр выборки истории
type HistoryFilter struct {
	EntityType     string
	UnresolvedOnly bool
	// IncludeDismissed включает скрытые записи
	IncludeDismissed bool
}

// Match сообщает, что запись проходит фильтр.
func (f HistoryFilter) Match(e *models.HistoryEntry) bool {
	if f.UnresolvedOnly && e.IsResolved() {
		return false
	}
	if !f.IncludeDismissed && e.Dismissed {
		return false
	}
	return f.EntityType == "" || e.Conflict.EntityType == f.EntityType
}

// CheckOverwrite проверяет, что новая версия записи не теряет сохраненную.
func CheckOverwrite(existing, next *models.Record) error {
	if existing == nil {
		return nil
	}
	switch order := next.Clock.Compare(existing.Clock); order {
	case crdt.After, crdt.Equal:
		return nil
	default:
		return ErrClockRegression
	}
}

// NewHistoryEntry создает запись истории для только что обнаруженного конфликта.
func NewHistoryEntry(c *models.DetectedConflict) *models.HistoryEntry {
	return &models.HistoryEntry{
		Conflict:  *c,
		CreatedAt: c.DetectedAt,
		UpdatedAt: c.DetectedAt,
	}
}
