package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/storage"
)

// rowScanner общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const recordColumns = `id, type, node_id, clock, fields, field_times, tombstone, updated_at`

// SaveRecord creates or replaces a record
func (s *Storage) SaveRecord(ctx context.Context, record *models.Record) error {
	clock, err := json.Marshal(record.Clock)
	if err != nil {
		return fmt.Errorf("failed to marshal clock: %w", err)
	}
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	var fieldTimes sql.NullString
	if record.FieldTimes != nil {
		data, err := json.Marshal(record.FieldTimes)
		if err != nil {
			return fmt.Errorf("failed to marshal field times: %w", err)
		}
		fieldTimes = sql.NullString{String: string(data), Valid: true}
	}
	var tombstone sql.NullInt64
	if record.Tombstone != nil {
		tombstone = sql.NullInt64{Int64: timeToNano(*record.Tombstone), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Проверяем, что не затираем более новую версию
	existing, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, record.ID))
	if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing record: %w", err)
	}
	if err := storage.CheckOverwrite(existing, record); err != nil {
		return fmt.Errorf("%w: %s stored %s, new %s", err, record.ID, existing.Clock, record.Clock)
	}

	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			node_id = excluded.node_id,
			clock = excluded.clock,
			fields = excluded.fields,
			field_times = excluded.field_times,
			tombstone = excluded.tombstone,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		record.ID,
		record.Type,
		record.NodeID,
		string(clock),
		string(fields),
		fieldTimes,
		tombstone,
		timeToNano(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}

	return nil
}

// GetRecord retrieves a record by ID
// Returns ErrRecordNotFound if record doesn't exist
func (s *Storage) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// ListRecords returns records of entityType (all types when empty) ordered by ID
func (s *Storage) ListRecords(ctx context.Context, entityType string) (records []*models.Record, err error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE (? = '' OR type = ?) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, entityType, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	records = make([]*models.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record        models.Record
		clock, fields string
		fieldTimes    sql.NullString
		tombstone     sql.NullInt64
		updatedAt     int64
	)

	err := row.Scan(
		&record.ID,
		&record.Type,
		&record.NodeID,
		&clock,
		&fields,
		&fieldTimes,
		&tombstone,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	if err := json.Unmarshal([]byte(clock), &record.Clock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clock of %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(fields), &record.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields of %s: %w", record.ID, err)
	}
	if fieldTimes.Valid {
		if err := json.Unmarshal([]byte(fieldTimes.String), &record.FieldTimes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal field times of %s: %w", record.ID, err)
		}
	}
	if tombstone.Valid {
		ts := nanoToTime(tombstone.Int64)
		record.Tombstone = &ts
	}
	record.UpdatedAt = nanoToTime(updatedAt)

	return &record, nil
}
