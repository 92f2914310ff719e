package conflict

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/strategy"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDetector(strategy.DefaultRegistry(), logger, WithNow(func() time.Time { return testNow }))
}

func createTestRecord(id string, clock crdt.VectorClock, fields models.Fields) *models.Record {
	return &models.Record{
		ID:        id,
		Type:      models.DataTypeCredential,
		NodeID:    "d1",
		Clock:     clock,
		UpdatedAt: testNow.Add(-time.Hour),
		Fields:    fields,
	}
}

func TestDetect_ScenarioA_ConcurrentNameChange(t *testing.T) {
	d := newTestDetector(t)

	local := createTestRecord("r1", crdt.VectorClock{"d1": 2, "d2": 1}, models.Fields{
		"name":  models.String("GitHub (work)"),
		"login": models.String("alice"),
	})
	remote := createTestRecord("r1", crdt.VectorClock{"d1": 1, "d2": 2}, models.Fields{
		"name":  models.String("GitHub"),
		"login": models.String("alice"),
	})

	c, err := d.Detect(local, remote, models.DataTypeCredential)
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, models.ConcurrentUpdate, c.Kind)
	assert.Equal(t, []string{"name"}, c.ConflictingFields)
	assert.Equal(t, models.SeverityLow, c.Severity)
	assert.Equal(t, "r1", c.EntityID)
	assert.Equal(t, models.DataTypeCredential, c.EntityType)
	assert.Equal(t, testNow, c.DetectedAt)
	assert.NotEmpty(t, c.ID)
}

func TestDetect_ScenarioB_DeleteUpdate(t *testing.T) {
	d := newTestDetector(t)
	deleted := testNow.Add(-time.Minute)

	local := createTestRecord("r1", crdt.VectorClock{"d1": 2, "d2": 1}, models.Fields{"name": models.String("a")})
	local.Tombstone = &deleted
	remote := createTestRecord("r1", crdt.VectorClock{"d1": 1, "d2": 2}, models.Fields{"name": models.String("a")})

	c, err := d.Detect(local, remote, models.DataTypeCredential)
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, models.DeleteUpdate, c.Kind)
	assert.Equal(t, models.SeverityHigh, c.Severity)
}

func TestDetect_NoConflictWhenCausallyOrdered(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		local  crdt.VectorClock
		remote crdt.VectorClock
		name   string
	}{
		{name: "before", local: crdt.VectorClock{"d1": 1}, remote: crdt.VectorClock{"d1": 2}},
		{name: "after", local: crdt.VectorClock{"d1": 3, "d2": 1}, remote: crdt.VectorClock{"d1": 2}},
		{name: "equal", local: crdt.VectorClock{"d1": 1}, remote: crdt.VectorClock{"d1": 1, "d2": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Поля различаются, но одна версия причинно следует за другой
			local := createTestRecord("r1", tt.local, models.Fields{"name": models.String("x")})
			remote := createTestRecord("r1", tt.remote, models.Fields{"name": models.String("y")})

			c, err := d.Detect(local, remote, models.DataTypeCredential)
			require.NoError(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestDetect_IdentityMismatch(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Detect(
		createTestRecord("r1", crdt.VectorClock{"d1": 1}, nil),
		createTestRecord("r2", crdt.VectorClock{"d2": 1}, nil),
		models.DataTypeCredential,
	)
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	_, err = d.Detect(nil, createTestRecord("r2", nil, nil), models.DataTypeCredential)
	assert.ErrorIs(t, err, ErrNilRecord)
}

func TestDetect_EmptyDiffStillRecorded(t *testing.T) {
	d := newTestDetector(t)

	fields := models.Fields{"name": models.String("same")}
	local := createTestRecord("r1", crdt.VectorClock{"d1": 1}, fields)
	remote := createTestRecord("r1", crdt.VectorClock{"d2": 1}, fields)

	c, err := d.Detect(local, remote, models.DataTypeCredential)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Empty(t, c.ConflictingFields)
	assert.Equal(t, models.SeverityLow, c.Severity)
	assert.Equal(t, models.ConcurrentUpdate, c.Kind)
}

func TestDetect_Classification(t *testing.T) {
	d := newTestDetector(t)
	deleted := testNow

	tests := []struct {
		local        models.Fields
		remote       models.Fields
		localTomb    *time.Time
		remoteTomb   *time.Time
		name         string
		wantKind     models.ConflictKind
		wantSeverity models.Severity
	}{
		{
			name:         "discriminator differs",
			local:        models.Fields{"kind": models.String("website")},
			remote:       models.Fields{"kind": models.String("ssh")},
			wantKind:     models.StructuralConflict,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "critical field wins over tombstone",
			local:        models.Fields{"password": models.String("a")},
			remote:       models.Fields{"password": models.String("b")},
			localTomb:    &deleted,
			wantKind:     models.DeleteUpdate,
			wantSeverity: models.SeverityCritical,
		},
		{
			name:         "both deleted",
			local:        models.Fields{"name": models.String("a")},
			remote:       models.Fields{"name": models.String("b")},
			localTomb:    &deleted,
			remoteTomb:   &deleted,
			wantKind:     models.ConcurrentUpdate,
			wantSeverity: models.SeverityLow,
		},
		{
			name: "more than three fields",
			local: models.Fields{
				"name": models.String("a"), "login": models.String("a"),
				"url": models.String("a"), "notes": models.String("a"),
			},
			remote: models.Fields{
				"name": models.String("b"), "login": models.String("b"),
				"url": models.String("b"), "notes": models.String("b"),
			},
			wantKind:     models.ConcurrentUpdate,
			wantSeverity: models.SeverityMedium,
		},
		{
			name: "exactly three fields",
			local: models.Fields{
				"name": models.String("a"), "login": models.String("a"), "url": models.String("a"),
			},
			remote: models.Fields{
				"name": models.String("b"), "login": models.String("b"), "url": models.String("b"),
			},
			wantKind:     models.ConcurrentUpdate,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "key order and null vs absent do not differ",
			local:        models.Fields{"custom_fields": models.Object{"a": models.Int(1), "b": models.Int(2)}, "url": models.Null{}},
			remote:       models.Fields{"custom_fields": models.Object{"b": models.Int(2), "a": models.Int(1)}},
			wantKind:     models.ConcurrentUpdate,
			wantSeverity: models.SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := createTestRecord("r1", crdt.VectorClock{"d1": 2, "d2": 1}, tt.local)
			local.Tombstone = tt.localTomb
			remote := createTestRecord("r1", crdt.VectorClock{"d1": 1, "d2": 2}, tt.remote)
			remote.Tombstone = tt.remoteTomb

			c, err := d.Detect(local, remote, models.DataTypeCredential)
			require.NoError(t, err)
			require.NotNil(t, c)
			assert.Equal(t, tt.wantKind, c.Kind)
			assert.Equal(t, tt.wantSeverity, c.Severity)
		})
	}
}

func TestDetect_ConfigurableThreshold(t *testing.T) {
	registry, err := strategy.NewRegistry([]strategy.EntityStrategy{{
		EntityType:      "invoice",
		MediumThreshold: 1,
	}}, nil)
	require.NoError(t, err)
	d := NewDetector(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	local := createTestRecord("r1", crdt.VectorClock{"d1": 1}, models.Fields{"a": models.Int(1), "b": models.Int(1)})
	remote := createTestRecord("r1", crdt.VectorClock{"d2": 1}, models.Fields{"a": models.Int(2), "b": models.Int(2)})

	c, err := d.Detect(local, remote, "invoice")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityMedium, c.Severity)
}

func TestDetect_Symmetric(t *testing.T) {
	d := newTestDetector(t)
	deleted := testNow

	local := createTestRecord("r1", crdt.VectorClock{"d1": 2, "d2": 1}, models.Fields{
		"name": models.String("a"), "tags": models.List{models.String("x")}, "usage_count": models.Int(1),
	})
	local.Tombstone = &deleted
	remote := createTestRecord("r1", crdt.VectorClock{"d1": 1, "d2": 2}, models.Fields{
		"name": models.String("b"), "usage_count": models.Int(1), "url": models.String("u"),
	})

	ab, err := d.Detect(local, remote, models.DataTypeCredential)
	require.NoError(t, err)
	ba, err := d.Detect(remote, local, models.DataTypeCredential)
	require.NoError(t, err)

	assert.ElementsMatch(t, ab.ConflictingFields, ba.ConflictingFields)
	assert.Equal(t, ab.Kind, ba.Kind)
	assert.Equal(t, ab.Severity, ba.Severity)
	assert.Equal(t, ab.ID, ba.ID, "conflict id must not depend on side")
}

func TestDetect_DoesNotAliasInputs(t *testing.T) {
	d := newTestDetector(t)

	local := createTestRecord("r1", crdt.VectorClock{"d1": 1}, models.Fields{"name": models.String("a")})
	remote := createTestRecord("r1", crdt.VectorClock{"d2": 1}, models.Fields{"name": models.String("b")})

	c, err := d.Detect(local, remote, models.DataTypeCredential)
	require.NoError(t, err)

	local.Fields["name"] = models.String("mutated")
	assert.Equal(t, models.String("a"), c.Local.Fields["name"])
}

func TestConflictID_Deterministic(t *testing.T) {
	a := createTestRecord("r1", crdt.VectorClock{"d1": 1}, nil)
	b := createTestRecord("r1", crdt.VectorClock{"d2": 1}, nil)
	c := createTestRecord("r1", crdt.VectorClock{"d2": 2}, nil)

	assert.Equal(t, ConflictID("credential", a, b), ConflictID("credential", a, b))
	assert.Equal(t, ConflictID("credential", a, b), ConflictID("credential", b, a))
	assert.NotEqual(t, ConflictID("credential", a, b), ConflictID("credential", a, c))
	assert.NotEqual(t, ConflictID("credential", a, b), ConflictID("text", a, b))
}

func TestDetectBatch(t *testing.T) {
	d := newTestDetector(t)

	locals := []*models.Record{
		createTestRecord("conflict", crdt.VectorClock{"d1": 2, "d2": 1}, models.Fields{"name": models.String("a")}),
		createTestRecord("ordered", crdt.VectorClock{"d1": 1}, models.Fields{"name": models.String("a")}),
		createTestRecord("local-only", crdt.VectorClock{"d1": 1}, nil),
		nil,
	}
	remotes := []*models.Record{
		createTestRecord("ordered", crdt.VectorClock{"d1": 2}, models.Fields{"name": models.String("b")}),
		createTestRecord("conflict", crdt.VectorClock{"d1": 1, "d2": 2}, models.Fields{"name": models.String("b")}),
		createTestRecord("remote-only", crdt.VectorClock{"d2": 1}, nil),
	}

	conflicts := d.DetectBatch(locals, remotes, models.DataTypeCredential)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "conflict", conflicts[0].EntityID)
}

func TestDetectBatch_Large(t *testing.T) {
	d := newTestDetector(t)

	const n = 1000
	locals := make([]*models.Record, 0, n)
	remotes := make([]*models.Record, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("r%04d", i)
		locals = append(locals, createTestRecord(id, crdt.VectorClock{"d1": 2, "d2": 1}, models.Fields{"name": models.String("l")}))
		remotes = append(remotes, createTestRecord(id, crdt.VectorClock{"d1": 1, "d2": 2}, models.Fields{"name": models.String("r")}))
	}

	conflicts := d.DetectBatch(locals, remotes, models.DataTypeCredential)
	require.Len(t, conflicts, n)
	assert.Equal(t, "r0000", conflicts[0].EntityID)
	assert.Equal(t, "r0999", conflicts[n-1].EntityID)
}

func TestDiffFields(t *testing.T) {
	a := &models.Record{Fields: models.Fields{
		"same":    models.Int(1),
		"changed": models.String("a"),
		"only_a":  models.Bool(true),
		"null_a":  models.Null{},
		"id":      models.String("ignored"),
	}}
	b := &models.Record{Fields: models.Fields{
		"same":    models.Float(1),
		"changed": models.String("b"),
		"only_b":  models.List{},
		"id":      models.String("other"),
	}}

	assert.Equal(t, []string{"changed", "only_a", "only_b"}, DiffFields(a, b))
	assert.Equal(t, DiffFields(a, b), DiffFields(b, a))
}

func TestDiffFields_LargeIntegers(t *testing.T) {
	a := &models.Record{Fields: models.Fields{"usage_count": models.Int(1<<53 + 1)}}
	b := &models.Record{Fields: models.Fields{"usage_count": models.Int(1 << 53)}}

	assert.Equal(t, []string{"usage_count"}, DiffFields(a, b))

	c := &models.Record{Fields: models.Fields{"usage_count": models.Float(1 << 53)}}
	assert.Empty(t, DiffFields(b, c))
	assert.Equal(t, []string{"usage_count"}, DiffFields(a, c))
}
