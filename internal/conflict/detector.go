package conflict

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/strategy"
)

// conflictNamespace is the UUID namespace of name-based conflict ids.
var conflictNamespace = uuid.MustParse("6f1c2a4e-0d53-4c1b-9a57-3e8f2b7d9c10")

// Detector compares two snapshots of one record and classifies the conflict.
// It keeps no mutable state and is safe for concurrent use.
type Detector struct {
	registry *strategy.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithNow overrides the detection timestamp source.
func WithNow(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector creates a detector that reads critical fields, discriminators
// and severity thresholds from registry.
func NewDetector(registry *strategy.Registry, logger *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns a conflict when the clocks of local and remote are
// concurrent, or nil when one side causally supersedes the other.
// Records with different ids are a caller bug and yield ErrIdentityMismatch.
func (d *Detector) Detect(local, remote *models.Record, entityType string) (*models.DetectedConflict, error) {
	if local == nil || remote == nil {
		return nil, ErrNilRecord
	}
	if local.ID != remote.ID {
		return nil, fmt.Errorf("%w: local %q, remote %q", ErrIdentityMismatch, local.ID, remote.ID)
	}

	if order := local.Clock.Compare(remote.Clock); order != crdt.Concurrent {
		return nil, nil
	}

	s := d.registry.Get(entityType)
	fields := DiffFields(local, remote)

	conflict := &models.DetectedConflict{
		ID:                ConflictID(entityType, local, remote),
		EntityType:        entityType,
		EntityID:          local.ID,
		Kind:              classifyKind(local, remote, s.Discriminator, fields),
		Severity:          classifySeverity(local, remote, s, fields),
		Local:             local.Clone(),
		Remote:            remote.Clone(),
		ConflictingFields: fields,
		DetectedAt:        d.now().UTC(),
	}

	d.logger.Debug("Conflict detected",
		"conflict_id", conflict.ID,
		"entity_type", entityType,
		"entity_id", conflict.EntityID,
		"kind", conflict.Kind,
		"severity", conflict.Severity,
		"fields", len(fields))

	return conflict, nil
}

// DetectBatch pairs locals and remotes by id and detects conflicts for each
// pair. Ids present on one side only are not conflicts. The result follows
// the order of locals.
func (d *Detector) DetectBatch(locals, remotes []*models.Record, entityType string) []*models.DetectedConflict {
	byID := make(map[string]*models.Record, len(remotes))
	for _, r := range remotes {
		if r == nil {
			continue
		}
		if _, dup := byID[r.ID]; dup {
			d.logger.Warn("Duplicate remote snapshot, keeping the last one", "entity_id", r.ID)
		}
		byID[r.ID] = r
	}

	conflicts := make([]*models.DetectedConflict, 0)
	for _, local := range locals {
		if local == nil {
			continue
		}
		remote, ok := byID[local.ID]
		if !ok {
			continue
		}

		c, err := d.Detect(local, remote, entityType)
		if err != nil {
			d.logger.Warn("Failed to detect conflict", "entity_id", local.ID, "error", err)
			continue
		}
		if c != nil {
			conflicts = append(conflicts, c)
		}
	}

	return conflicts
}

// ConflictID derives a stable id from the entity and both clocks.
// The id does not depend on which side is local, so both devices and every
// retry name the same conflict identically.
func ConflictID(entityType string, a, b *models.Record) string {
	clocks := []string{a.Clock.String(), b.Clock.String()}
	sort.Strings(clocks)

	name := entityType + "\x00" + a.ID + "\x00" + clocks[0] + "\x00" + clocks[1]
	return uuid.NewSHA1(conflictNamespace, []byte(name)).String()
}

func classifyKind(local, remote *models.Record, discriminator string, fields []string) models.ConflictKind {
	switch {
	case local.IsDeleted() != remote.IsDeleted():
		return models.DeleteUpdate
	case local.IsDeleted() && remote.IsDeleted():
		return models.ConcurrentUpdate
	case discriminator != "" && contains(fields, discriminator):
		return models.StructuralConflict
	default:
		return models.ConcurrentUpdate
	}
}

func classifySeverity(local, remote *models.Record, s strategy.EntityStrategy, fields []string) models.Severity {
	for _, f := range fields {
		if s.IsCritical(f) {
			return models.SeverityCritical
		}
	}
	if local.IsDeleted() != remote.IsDeleted() {
		return models.SeverityHigh
	}
	if len(fields) > s.Threshold() {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
