package advisor

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/internal/strategy"
)

func testConflict(entityType string, local, remote models.Fields, fields []string) *models.DetectedConflict {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &models.DetectedConflict{
		ID:         "c1",
		EntityType: entityType,
		EntityID:   "r1",
		Local: &models.Record{ID: "r1", Type: entityType, NodeID: "d1",
			Clock: crdt.VectorClock{"d1": 1}, UpdatedAt: now.Add(-time.Hour), Fields: local},
		Remote: &models.Record{ID: "r1", Type: entityType, NodeID: "d2",
			Clock: crdt.VectorClock{"d2": 1}, UpdatedAt: now, Fields: remote},
		ConflictingFields: fields,
	}
}

func TestFieldConflicts_DefaultRegistry(t *testing.T) {
	a := New(strategy.DefaultRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	c := testConflict(models.DataTypeCredential,
		models.Fields{
			"name":        models.String("local"),
			"tags":        models.List{models.String("a")},
			"usage_count": models.Int(9),
		},
		models.Fields{
			"name":        models.String("remote"),
			"tags":        models.List{models.String("b")},
			"usage_count": models.Int(4),
		},
		[]string{"name", "tags", "usage_count"},
	)

	got := a.FieldConflicts(c)
	require.Len(t, got, 3)

	assert.Equal(t, "name", got[0].Field)
	assert.Equal(t, string(strategy.PolicyLastWriterWins), got[0].Policy)
	assert.True(t, got[0].CanAutoResolve)
	assert.Equal(t, models.String("remote"), got[0].SuggestedValue, "remote is the later write")
	assert.Equal(t, models.String("local"), got[0].LocalValue)
	assert.Equal(t, models.String("remote"), got[0].RemoteValue)

	assert.Equal(t, "tags", got[1].Field)
	assert.Equal(t, models.List{models.String("a"), models.String("b")}, got[1].SuggestedValue)

	assert.Equal(t, "usage_count", got[2].Field)
	assert.Equal(t, models.Int(9), got[2].SuggestedValue)
}

func TestFieldConflicts_UnconfiguredField(t *testing.T) {
	// Тип без зарегистрированной стратегии: политика не настроена
	a := New(strategy.DefaultRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	c := testConflict("invoice",
		models.Fields{"total": models.Int(1)},
		models.Fields{"total": models.Int(2)},
		[]string{"total"},
	)

	got := a.FieldConflicts(c)
	require.Len(t, got, 1)
	assert.False(t, got[0].CanAutoResolve)
	assert.Nil(t, got[0].SuggestedValue)
	assert.Empty(t, got[0].Policy)
	assert.Equal(t, models.Int(1), got[0].LocalValue)
}

func TestFieldConflicts_NonSuggestablePolicies(t *testing.T) {
	registry, err := strategy.NewRegistry([]strategy.EntityStrategy{{
		EntityType: "doc",
		Fields: map[string]strategy.FieldPolicy{
			"body":  strategy.PolicyConcat,
			"score": strategy.Custom("avg"),
			"rank":  strategy.PolicyMax,
			"refs":  strategy.PolicyConcat,
		},
	}}, map[string]strategy.ResolverFunc{
		"avg": func(in strategy.ResolverInput) (models.Value, error) { return in.Local, nil },
	})
	require.NoError(t, err)
	a := New(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	c := testConflict("doc",
		models.Fields{"body": models.String("a"), "score": models.Int(1), "rank": models.Bool(true), "refs": models.Int(1)},
		models.Fields{"body": models.String("b"), "score": models.Int(2), "rank": models.Int(3), "refs": models.String("x")},
		[]string{"body", "rank", "refs", "score"},
	)

	tests := []struct {
		field          string
		canAutoResolve bool
	}{
		{field: "body", canAutoResolve: true},
		{field: "rank", canAutoResolve: false}, // max над bool не определен
		{field: "refs", canAutoResolve: false}, // concat int и string
		{field: "score", canAutoResolve: true},
	}

	got := a.FieldConflicts(c)
	require.Len(t, got, len(tests))
	for i, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.field, got[i].Field)
			assert.Equal(t, tt.canAutoResolve, got[i].CanAutoResolve)
			assert.Nil(t, got[i].SuggestedValue)
			assert.NotEmpty(t, got[i].Policy)
		})
	}
}

func TestFieldConflicts_AgreesWithAutoMerge(t *testing.T) {
	registry := strategy.DefaultRegistry()
	a := New(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	c := testConflict(models.DataTypeText,
		models.Fields{"content": models.String("a")},
		models.Fields{"content": models.String("b")},
		[]string{"content"},
	)

	res, err := resolve.NewEngine(registry, slog.New(slog.NewTextHandler(io.Discard, nil))).
		ResolveAuto(c, models.StrategyAutoMerge)
	require.NoError(t, err)
	assert.Equal(t, models.String("a\nb"), res.Record.Fields["content"])

	got := a.FieldConflicts(c)
	require.Len(t, got, 1)
	assert.True(t, got[0].CanAutoResolve)
	assert.Nil(t, got[0].SuggestedValue)
}

func TestFieldConflicts_Empty(t *testing.T) {
	a := New(strategy.DefaultRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Nil(t, a.FieldConflicts(nil))
	assert.Empty(t, a.FieldConflicts(testConflict(models.DataTypeText, nil, nil, nil)))
}
