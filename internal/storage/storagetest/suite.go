// Package storagetest содержит общие тесты реализаций хранилища.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/storage"
)

// Store хранилище записей и истории
type Store interface {
	storage.RecordStorage
	storage.HistoryStorage
}

var baseTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// CreateTestRecord создает тестовую запись
func CreateTestRecord(id, entityType string, clock crdt.VectorClock) *models.Record {
	return &models.Record{
		ID:        id,
		Type:      entityType,
		NodeID:    "d1",
		Clock:     clock,
		UpdatedAt: baseTime,
		Fields: models.Fields{
			"name": models.String("record " + id),
			"tags": models.List{models.String("a"), models.Int(1)},
			"data": models.Bytes{0x00, 0xff},
		},
		FieldTimes: map[string]time.Time{"name": baseTime.Add(-time.Minute)},
	}
}

// CreateTestConflict создает тестовый конфликт
func CreateTestConflict(id string, detectedAt time.Time) *models.DetectedConflict {
	return &models.DetectedConflict{
		ID:                id,
		EntityType:        models.DataTypeCredential,
		EntityID:          "r-" + id,
		Kind:              models.ConcurrentUpdate,
		Severity:          models.SeverityLow,
		Local:             CreateTestRecord("r-"+id, models.DataTypeCredential, crdt.VectorClock{"d1": 2, "d2": 1}),
		Remote:            CreateTestRecord("r-"+id, models.DataTypeCredential, crdt.VectorClock{"d1": 1, "d2": 2}),
		ConflictingFields: []string{"name"},
		DetectedAt:        detectedAt,
	}
}

func testResolution(conflictID string, resolvedAt time.Time) *models.ConflictResolution {
	record := CreateTestRecord("r-"+conflictID, models.DataTypeCredential, crdt.VectorClock{"d1": 2, "d2": 2})
	return &models.ConflictResolution{
		ConflictID: conflictID,
		Record:     record,
		Strategy:   models.StrategyAutoLWW,
		Winner:     models.WinnerLocal,
		ResolvedAt: resolvedAt,
		ResolvedBy: "system",
	}
}

// Run выполняет общие тесты хранилища. newStore должен возвращать пустое
// хранилище; закрытие регистрируется через t.Cleanup.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("records", func(t *testing.T) { testRecords(t, newStore(t)) })
	t.Run("clock regression", func(t *testing.T) { testClockRegression(t, newStore(t)) })
	t.Run("history lifecycle", func(t *testing.T) { testHistoryLifecycle(t, newStore(t)) })
	t.Run("history filter", func(t *testing.T) { testHistoryFilter(t, newStore(t)) })
	t.Run("prune", func(t *testing.T) { testPrune(t, newStore(t)) })
}

func testRecords(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetRecord(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	deleted := baseTime.Add(time.Hour)
	r1 := CreateTestRecord("r1", models.DataTypeCredential, crdt.VectorClock{"d1": 1})
	r2 := CreateTestRecord("r2", models.DataTypeText, crdt.VectorClock{"d1": 1})
	r2.Tombstone = &deleted
	r0 := CreateTestRecord("r0", models.DataTypeCredential, crdt.VectorClock{"d2": 3})

	for _, r := range []*models.Record{r1, r2, r0} {
		require.NoError(t, s.SaveRecord(ctx, r))
	}

	got, err := s.GetRecord(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, r2, got)
	assert.True(t, got.IsDeleted())

	all, err := s.ListRecords(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r0", all[0].ID)
	assert.Equal(t, "r2", all[2].ID)

	creds, err := s.ListRecords(ctx, models.DataTypeCredential)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, r0, creds[0])
	assert.Equal(t, r1, creds[1])

	none, err := s.ListRecords(ctx, models.DataTypeCard)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testClockRegression(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, CreateTestRecord("r1", models.DataTypeText, crdt.VectorClock{"d1": 2})))

	// Та же версия повторно - идемпотентно
	require.NoError(t, s.SaveRecord(ctx, CreateTestRecord("r1", models.DataTypeText, crdt.VectorClock{"d1": 2})))

	err := s.SaveRecord(ctx, CreateTestRecord("r1", models.DataTypeText, crdt.VectorClock{"d1": 1}))
	assert.ErrorIs(t, err, storage.ErrClockRegression)

	err = s.SaveRecord(ctx, CreateTestRecord("r1", models.DataTypeText, crdt.VectorClock{"d2": 5}))
	assert.ErrorIs(t, err, storage.ErrClockRegression, "concurrent write must not overwrite")

	newer := CreateTestRecord("r1", models.DataTypeText, crdt.VectorClock{"d1": 2, "d2": 1})
	newer.Fields["name"] = models.String("updated")
	require.NoError(t, s.SaveRecord(ctx, newer))

	got, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.String("updated"), got.Fields["name"])
}

func testHistoryLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	c := CreateTestConflict("c1", baseTime)

	_, err := s.GetEntry(ctx, "c1")
	assert.ErrorIs(t, err, storage.ErrHistoryNotFound)

	entry, err := s.SaveConflict(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "c1", entry.ID())
	assert.False(t, entry.IsResolved())
	assert.Equal(t, baseTime, entry.CreatedAt)

	// Повторное обнаружение не создает дубликат
	again, err := s.SaveConflict(ctx, CreateTestConflict("c1", baseTime.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, baseTime, again.CreatedAt)

	got, err := s.GetEntry(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, *c, got.Conflict)

	res := testResolution("c1", baseTime.Add(time.Minute))
	require.NoError(t, s.MarkResolved(ctx, res))
	assert.ErrorIs(t, s.MarkResolved(ctx, res), storage.ErrAlreadyResolved)
	assert.ErrorIs(t, s.MarkResolved(ctx, testResolution("missing", baseTime)), storage.ErrHistoryNotFound)

	got, err = s.GetEntry(ctx, "c1")
	require.NoError(t, err)
	require.True(t, got.IsResolved())
	assert.Equal(t, res, got.Resolution)
	assert.Equal(t, res.ResolvedAt, got.UpdatedAt)

	require.NoError(t, s.SetRead(ctx, "c1", true))
	require.NoError(t, s.Dismiss(ctx, "c1"))
	got, err = s.GetEntry(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.True(t, got.Dismissed)
	assert.Equal(t, res, got.Resolution, "flags do not touch the resolution")

	assert.ErrorIs(t, s.SetRead(ctx, "missing", true), storage.ErrHistoryNotFound)
	assert.ErrorIs(t, s.Dismiss(ctx, "missing"), storage.ErrHistoryNotFound)
}

func testHistoryFilter(t *testing.T, s Store) {
	ctx := context.Background()

	for i, id := range []string{"c3", "c1", "c2"} {
		_, err := s.SaveConflict(ctx, CreateTestConflict(id, baseTime.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	text := CreateTestConflict("c4", baseTime.Add(time.Hour))
	text.EntityType = models.DataTypeText
	_, err := s.SaveConflict(ctx, text)
	require.NoError(t, err)

	require.NoError(t, s.MarkResolved(ctx, testResolution("c1", baseTime.Add(time.Hour))))
	require.NoError(t, s.Dismiss(ctx, "c2"))

	all, err := s.ListEntries(ctx, storage.HistoryFilter{IncludeDismissed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c1", "c2", "c4"}, entryIDs(all))

	visible, err := s.ListEntries(ctx, storage.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c1", "c4"}, entryIDs(visible))

	unresolved, err := s.ListEntries(ctx, storage.HistoryFilter{UnresolvedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c4"}, entryIDs(unresolved))

	texts, err := s.ListEntries(ctx, storage.HistoryFilter{EntityType: models.DataTypeText})
	require.NoError(t, err)
	assert.Equal(t, []string{"c4"}, entryIDs(texts))
}

func testPrune(t *testing.T, s Store) {
	ctx := context.Background()

	for _, id := range []string{"old", "recent", "open"} {
		_, err := s.SaveConflict(ctx, CreateTestConflict(id, baseTime))
		require.NoError(t, err)
	}
	require.NoError(t, s.MarkResolved(ctx, testResolution("old", baseTime.Add(time.Hour))))
	require.NoError(t, s.MarkResolved(ctx, testResolution("recent", baseTime.Add(48*time.Hour))))

	removed, err := s.Prune(ctx, baseTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left, err := s.ListEntries(ctx, storage.HistoryFilter{IncludeDismissed: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recent", "open"}, entryIDs(left))

	// Неразрешенные записи не удаляются даже при очень позднем пороге
	removed, err = s.Prune(ctx, baseTime.Add(1000*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetEntry(ctx, "open")
	assert.NoError(t, err)
}

func entryIDs(entries []*models.HistoryEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID())
	}
	return ids
}
