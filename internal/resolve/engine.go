package resolve

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/strategy"
)

// SystemResolver значение ResolvedBy для автоматических разрешений
const SystemResolver = "system"

// Decision ручное решение пользователя по конфликту.
type Decision struct {
	FieldOverrides models.Fields   `json:"field_overrides,omitempty"`
	ConflictID     string          `json:"conflict_id"`
	Strategy       models.Strategy `json:"strategy" validate:"required,oneof=keep_local keep_remote custom_merge"`
	ResolvedBy     string          `json:"resolved_by"`
	Notes          string          `json:"notes,omitempty"`
}

// Engine превращает обнаруженный конфликт в согласованную запись.
// Движок не хранит изменяемого состояния и безопасен для конкурентного
// использования. Входные записи никогда не изменяются.
type Engine struct {
	registry *strategy.Registry
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// Option настройка Engine
type Option func(*Engine)

// WithNow подменяет источник времени ResolvedAt.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine создает движок разрешения конфликтов.
func NewEngine(registry *strategy.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveAuto разрешает конфликт автоматической стратегией:
// auto_lww, auto_merge, local_wins или remote_wins.
func (e *Engine) ResolveAuto(c *models.DetectedConflict, s models.Strategy) (*models.ConflictResolution, error) {
	if err := checkConflict(c); err != nil {
		return nil, err
	}

	var (
		record *models.Record
		winner models.Winner
		merged []string
		err    error
	)

	switch s {
	case models.StrategyAutoLWW:
		record, winner = pickWholesale(c.Local, c.Remote, crdt.PickLWW(c.Local.Stamp(), c.Remote.Stamp()))
	case models.StrategyLocalWins:
		record, winner = pickWholesale(c.Local, c.Remote, crdt.SideLocal)
	case models.StrategyRemoteWins:
		record, winner = pickWholesale(c.Local, c.Remote, crdt.SideRemote)
	case models.StrategyAutoMerge:
		record, err = e.mergeRecords(c)
		if err != nil {
			return nil, err
		}
		winner = models.WinnerMerged
		merged = append([]string(nil), c.ConflictingFields...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}

	finalize(record, c.Local, c.Remote)

	res := &models.ConflictResolution{
		ConflictID:   c.ID,
		Record:       record,
		Strategy:     s,
		Winner:       winner,
		MergedFields: merged,
		ResolvedAt:   e.now().UTC(),
		ResolvedBy:   SystemResolver,
	}
	if err := e.check(c, res); err != nil {
		return nil, err
	}

	e.logger.Debug("Conflict resolved",
		"conflict_id", c.ID,
		"strategy", s,
		"winner", winner,
		"merged_fields", len(merged))

	return res, nil
}

// ApplyManual применяет ручное решение: keep_local, keep_remote или
// custom_merge (локальная версия плюс переопределенные поля).
func (e *Engine) ApplyManual(c *models.DetectedConflict, d Decision) (*models.ConflictResolution, error) {
	if err := checkConflict(c); err != nil {
		return nil, err
	}
	if d.ConflictID != "" && d.ConflictID != c.ID {
		return nil, fmt.Errorf("%w: decision for %q, conflict %q", ErrDecisionMismatch, d.ConflictID, c.ID)
	}

	var (
		record *models.Record
		winner models.Winner
		merged []string
	)

	switch d.Strategy {
	case models.StrategyKeepLocal:
		record, winner = pickWholesale(c.Local, c.Remote, crdt.SideLocal)
	case models.StrategyKeepRemote:
		record, winner = pickWholesale(c.Local, c.Remote, crdt.SideRemote)
	case models.StrategyCustomMerge:
		if err := checkOverrides(c.EntityType, c.EntityID, d.FieldOverrides); err != nil {
			return nil, err
		}
		record = c.Local.Clone()
		for field, value := range d.FieldOverrides {
			setField(record, field, models.CloneValue(value), c.Local, c.Remote)
			merged = append(merged, field)
		}
		sort.Strings(merged)
		winner = models.WinnerManual
	default:
		return nil, fmt.Errorf("%w: manual decision %q", ErrUnknownStrategy, d.Strategy)
	}

	finalize(record, c.Local, c.Remote)

	res := &models.ConflictResolution{
		ConflictID:   c.ID,
		Record:       record,
		Strategy:     d.Strategy,
		Winner:       winner,
		MergedFields: merged,
		ResolvedAt:   e.now().UTC(),
		ResolvedBy:   d.ResolvedBy,
		Notes:        d.Notes,
	}
	if err := e.check(c, res); err != nil {
		return nil, err
	}

	e.logger.Info("Manual decision applied",
		"conflict_id", c.ID,
		"strategy", d.Strategy,
		"resolved_by", d.ResolvedBy,
		"overrides", len(merged))

	return res, nil
}

// mergeRecords начинает с победителя LWW на уровне записи и применяет
// политики полей к каждому конфликтующему полю.
func (e *Engine) mergeRecords(c *models.DetectedConflict) (*models.Record, error) {
	record, _ := pickWholesale(c.Local, c.Remote, crdt.PickLWW(c.Local.Stamp(), c.Remote.Stamp()))
	s := e.registry.Get(c.EntityType)

	for _, field := range c.ConflictingFields {
		policy, _ := s.PolicyFor(field)
		value, err := e.mergeField(policy, field, c.Local, c.Remote)
		if err != nil {
			return nil, err
		}
		setField(record, field, value, c.Local, c.Remote)
	}

	return record, nil
}

func (e *Engine) check(c *models.DetectedConflict, res *models.ConflictResolution) error {
	result := e.ValidateAgainst(c, res)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidResolution, strings.Join(result.Errors, "; "))
}

func checkConflict(c *models.DetectedConflict) error {
	if c == nil || c.Local == nil || c.Remote == nil {
		return ErrNilConflict
	}
	if c.Local.ID != c.Remote.ID {
		return fmt.Errorf("%w: local %q, remote %q", conflict.ErrIdentityMismatch, c.Local.ID, c.Remote.ID)
	}
	return nil
}

// checkOverrides проверяет типы переопределенных полей по схеме сущности.
func checkOverrides(entityType, id string, overrides models.Fields) error {
	schema, ok := models.LookupSchema(entityType)
	if !ok || len(overrides) == 0 {
		return nil
	}
	probe := &models.Record{ID: id, Type: entityType, Fields: overrides}
	if err := schema.Check(probe); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResolution, err)
	}
	return nil
}

func pickWholesale(local, remote *models.Record, side crdt.Side) (*models.Record, models.Winner) {
	if side == crdt.SideRemote {
		return remote.Clone(), models.WinnerRemote
	}
	return local.Clone(), models.WinnerLocal
}

// setField записывает значение поля; Null удаляет поле.
func setField(record *models.Record, field string, value models.Value, local, remote *models.Record) {
	if models.IsNull(value) {
		delete(record.Fields, field)
	} else {
		if record.Fields == nil {
			record.Fields = make(models.Fields)
		}
		record.Fields[field] = value
	}

	if at, ok := latestFieldTime(field, local, remote); ok {
		if record.FieldTimes == nil {
			record.FieldTimes = make(map[string]time.Time)
		}
		record.FieldTimes[field] = at
	}
}

// finalize выставляет часы и время записи так, чтобы результат доминировал
// над обеими версиями и не зависел от момента разрешения.
func finalize(record, local, remote *models.Record) {
	record.Clock = crdt.Merge(local.Clock, remote.Clock)
	record.UpdatedAt = local.UpdatedAt
	if remote.UpdatedAt.After(local.UpdatedAt) {
		record.UpdatedAt = remote.UpdatedAt
	}
}
