package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/storage"
)

const historyColumns = `id, conflict, resolution, read, dismissed, created_at, updated_at`

// SaveConflict creates a history entry or returns the existing one
func (s *Storage) SaveConflict(ctx context.Context, c *models.DetectedConflict) (*models.HistoryEntry, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conflict: %w", err)
	}

	entry := storage.NewHistoryEntry(c)

	query := `
		INSERT INTO conflict_history (
			id, entity_type, entity_id, kind, severity, conflict,
			read, dismissed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err = s.db.ExecContext(ctx, query,
		c.ID,
		c.EntityType,
		c.EntityID,
		string(c.Kind),
		string(c.Severity),
		string(data),
		timeToNano(entry.CreatedAt),
		timeToNano(entry.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conflict: %w", err)
	}

	return s.GetEntry(ctx, c.ID)
}

// GetEntry retrieves a history entry by conflict ID
func (s *Storage) GetEntry(ctx context.Context, id string) (*models.HistoryEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM conflict_history WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, storage.ErrHistoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns entries matching filter ordered by creation time
func (s *Storage) ListEntries(ctx context.Context, filter storage.HistoryFilter) (entries []*models.HistoryEntry, err error) {
	query := `
		SELECT ` + historyColumns + `
		FROM conflict_history
		WHERE (? = '' OR entity_type = ?)
		  AND (? = 0 OR resolution IS NULL)
		  AND (? = 1 OR dismissed = 0)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.EntityType, filter.EntityType,
		boolToInt(filter.UnresolvedOnly),
		boolToInt(filter.IncludeDismissed),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	entries = make([]*models.HistoryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

// MarkResolved attaches a resolution to its history entry
func (s *Storage) MarkResolved(ctx context.Context, res *models.ConflictResolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}

	query := `
		UPDATE conflict_history
		SET resolution = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND resolution IS NULL
	`

	result, err := s.db.ExecContext(ctx, query,
		string(data),
		timeToNano(res.ResolvedAt),
		timeToNano(res.ResolvedAt),
		res.ConflictID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark resolved: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Ничего не обновлено: записи нет или она уже разрешена
	if _, err := s.GetEntry(ctx, res.ConflictID); err != nil {
		return err
	}
	return storage.ErrAlreadyResolved
}

// SetRead sets the read flag of a history entry
func (s *Storage) SetRead(ctx context.Context, id string, read bool) error {
	return s.updateFlag(ctx, `UPDATE conflict_history SET read = ?, updated_at = ? WHERE id = ?`,
		boolToInt(read), timeToNano(s.now().UTC()), id)
}

// Dismiss hides a history entry from the review queue
func (s *Storage) Dismiss(ctx context.Context, id string) error {
	return s.updateFlag(ctx, `UPDATE conflict_history SET dismissed = 1, updated_at = ? WHERE id = ?`,
		timeToNano(s.now().UTC()), id)
}

// Prune removes entries resolved before the given time
func (s *Storage) Prune(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conflict_history WHERE resolved_at IS NOT NULL AND resolved_at < ?`,
		timeToNano(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

func (s *Storage) updateFlag(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update history entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrHistoryNotFound
	}

	return nil
}

func scanEntry(row rowScanner) (*models.HistoryEntry, error) {
	var (
		id                   string
		conflict             string
		resolution           sql.NullString
		read, dismissed      int
		createdAt, updatedAt int64
	)

	err := row.Scan(&id, &conflict, &resolution, &read, &dismissed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	entry := &models.HistoryEntry{
		Read:      read != 0,
		Dismissed: dismissed != 0,
		CreatedAt: nanoToTime(createdAt),
		UpdatedAt: nanoToTime(updatedAt),
	}
	if err := json.Unmarshal([]byte(conflict), &entry.Conflict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conflict %s: %w", id, err)
	}
	if resolution.Valid {
		entry.Resolution = &models.ConflictResolution{}
		if err := json.Unmarshal([]byte(resolution.String), entry.Resolution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal resolution %s: %w", id, err)
		}
	}

	return entry, nil
}
