package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/storage"
)

// SaveConflict creates a history entry or returns the existing one
func (s *Storage) SaveConflict(ctx context.Context, c *models.DetectedConflict) (*models.HistoryEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entry *models.HistoryEntry

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketHistory)

		if data := bucket.Get([]byte(c.ID)); data != nil {
			entry = &models.HistoryEntry{}
			if err := json.Unmarshal(data, entry); err != nil {
				return fmt.Errorf("failed to unmarshal history entry: %w", err)
			}
			return nil
		}

		entry = storage.NewHistoryEntry(c)
		return putEntry(bucket, entry)
	})

	if err != nil {
		return nil, fmt.Errorf("failed to save conflict: %w", err)
	}

	return entry, nil
}

// GetEntry retrieves a history entry by conflict ID
func (s *Storage) GetEntry(ctx context.Context, id string) (*models.HistoryEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entry *models.HistoryEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		entry, err = getEntry(tx.Bucket(bucketHistory), id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListEntries returns entries matching filter ordered by creation time
func (s *Storage) ListEntries(ctx context.Context, filter storage.HistoryFilter) ([]*models.HistoryEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	entries := make([]*models.HistoryEntry, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHistory).ForEach(func(k, v []byte) error {
			var entry models.HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal history entry %s: %w", k, err)
			}
			if filter.Match(&entry) {
				entries = append(entries, &entry)
			}
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID() < entries[j].ID()
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

// MarkResolved attaches a resolution to its history entry
func (s *Storage) MarkResolved(ctx context.Context, res *models.ConflictResolution) error {
	return s.updateEntry(res.ConflictID, func(entry *models.HistoryEntry) error {
		if entry.IsResolved() {
			return storage.ErrAlreadyResolved
		}
		entry.Resolution = res
		entry.UpdatedAt = res.ResolvedAt
		return nil
	})
}

// SetRead sets the read flag of a history entry
func (s *Storage) SetRead(ctx context.Context, id string, read bool) error {
	return s.updateEntry(id, func(entry *models.HistoryEntry) error {
		entry.Read = read
		entry.UpdatedAt = s.now().UTC()
		return nil
	})
}

// Dismiss hides a history entry from the review queue
func (s *Storage) Dismiss(ctx context.Context, id string) error {
	return s.updateEntry(id, func(entry *models.HistoryEntry) error {
		entry.Dismissed = true
		entry.UpdatedAt = s.now().UTC()
		return nil
	})
}

// Prune removes entries resolved before the given time
func (s *Storage) Prune(ctx context.Context, before time.Time) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketHistory)

		// Собираем ключи отдельно: удалять во время ForEach нельзя
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var entry models.HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal history entry %s: %w", k, err)
			}
			if entry.IsResolved() && entry.Resolution.ResolvedAt.Before(before) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete history entry %s: %w", k, err)
			}
		}
		removed = len(expired)
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("prune transaction failed: %w", err)
	}

	return removed, nil
}

func (s *Storage) updateEntry(id string, mutate func(*models.HistoryEntry) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketHistory)

		entry, err := getEntry(bucket, id)
		if err != nil {
			return err
		}
		if err := mutate(entry); err != nil {
			return err
		}
		return putEntry(bucket, entry)
	})
}

func getEntry(bucket *bbolt.Bucket, id string) (*models.HistoryEntry, error) {
	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, storage.ErrHistoryNotFound
	}

	entry := &models.HistoryEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
	}
	return entry, nil
}

func putEntry(bucket *bbolt.Bucket, entry *models.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	if err := bucket.Put([]byte(entry.ID()), data); err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}
