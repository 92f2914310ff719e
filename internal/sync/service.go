package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/internal/storage"
	"github.com/iudanet/gophsync/internal/validation"
)

// ErrInvalidRemote удаленная запись не прошла проверку
var ErrInvalidRemote = errors.New("invalid remote record")

// Result contains reconcile operation results
type Result struct {
	Received      int `json:"received"`       // количество полученных удаленных записей
	Created       int `json:"created"`        // записи, которых не было локально
	FastForwarded int `json:"fast_forwarded"` // удаленная версия причинно новее локальной
	Unchanged     int `json:"unchanged"`      // локальная версия новее или равна
	Conflicts     int `json:"conflicts"`      // обнаруженные конфликты
	Resolved      int `json:"resolved"`       // конфликты, разрешенные и сохраненные
	Reapplied     int `json:"reapplied"`      // ранее разрешенные конфликты, сохраненные повторно
	Escalated     int `json:"escalated"`      // конфликты, отправленные на ручной разбор
	Skipped       int `json:"skipped"`        // записи и конфликты, пропущенные из-за ошибок
}

// Service согласует удаленные снимки записей с локальным хранилищем.
type Service struct {
	records   storage.RecordStorage
	history   storage.HistoryStorage
	detector  *conflict.Detector
	engine    *resolve.Engine
	collector *audit.Collector
	exporter  *audit.Exporter
	logger    *slog.Logger
	strategy  models.Strategy
}

// NewService creates a new sync service.
// batchStrategy is applied to every detected conflict; exporter may be nil.
func NewService(
	records storage.RecordStorage,
	history storage.HistoryStorage,
	detector *conflict.Detector,
	engine *resolve.Engine,
	collector *audit.Collector,
	exporter *audit.Exporter,
	batchStrategy models.Strategy,
	logger *slog.Logger,
) *Service {
	return &Service{
		records:   records,
		history:   history,
		detector:  detector,
		engine:    engine,
		collector: collector,
		exporter:  exporter,
		strategy:  batchStrategy,
		logger:    logger,
	}
}

// pairs локальные и удаленные версии одного типа сущности
type pairs struct {
	locals  []*models.Record
	remotes []*models.Record
}

// Reconcile merges remote snapshots into local storage
// 1. Remote-only records are saved as is
// 2. Remote records causally after local ones replace them
// 3. Concurrent pairs are detected, recorded in history and resolved
// Ошибка отдельной записи не прерывает согласование: запись пропускается,
// а следующий запуск повторяет ее идемпотентно.
func (s *Service) Reconcile(ctx context.Context, remotes []*models.Record) (*Result, error) {
	s.logger.Info("Starting reconciliation", "remote_records", len(remotes), "strategy", s.strategy)

	result := &Result{Received: len(remotes)}
	concurrent := make(map[string]*pairs)

	for _, remote := range s.dedupe(remotes, result) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		local, err := s.records.GetRecord(ctx, remote.ID)
		if err != nil {
			if !errors.Is(err, storage.ErrRecordNotFound) {
				s.logger.Warn("Failed to load local record", "entity_id", remote.ID, "error", err)
				result.Skipped++
				continue
			}
			s.save(ctx, remote, result, &result.Created)
			continue
		}

		switch remote.Clock.Compare(local.Clock) {
		case crdt.After:
			s.save(ctx, remote, result, &result.FastForwarded)
		case crdt.Concurrent:
			if local.Type != remote.Type {
				s.logger.Warn("Entity type changed concurrently, skipping",
					"entity_id", remote.ID, "local_type", local.Type, "remote_type", remote.Type)
				result.Skipped++
				continue
			}
			p, ok := concurrent[remote.Type]
			if !ok {
				p = &pairs{}
				concurrent[remote.Type] = p
			}
			p.locals = append(p.locals, local)
			p.remotes = append(p.remotes, remote)
		default:
			result.Unchanged++
		}
	}

	types := make([]string, 0, len(concurrent))
	for t := range concurrent {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, entityType := range types {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p := concurrent[entityType]
		conflicts := s.detector.DetectBatch(p.locals, p.remotes, entityType)
		result.Conflicts += len(conflicts)

		if err := s.resolveConflicts(ctx, conflicts, result); err != nil {
			return result, err
		}
	}

	s.logger.Info("Reconciliation completed",
		"received", result.Received,
		"created", result.Created,
		"fast_forwarded", result.FastForwarded,
		"unchanged", result.Unchanged,
		"conflicts", result.Conflicts,
		"resolved", result.Resolved,
		"escalated", result.Escalated,
		"skipped", result.Skipped)

	return result, nil
}

// resolveConflicts записывает конфликты в историю, разрешает их и сохраняет
// проверенные записи. Запись истории помечается разрешенной только после
// успешного сохранения записи.
func (s *Service) resolveConflicts(ctx context.Context, conflicts []*models.DetectedConflict, result *Result) error {
	pending := make([]*models.DetectedConflict, 0, len(conflicts))

	for _, c := range conflicts {
		entry, err := s.history.SaveConflict(ctx, c)
		if err != nil {
			s.logger.Warn("Failed to record conflict", "conflict_id", c.ID, "error", err)
			result.Skipped++
			continue
		}

		// Конфликт уже разрешен ранее, но запись не была сохранена
		if entry.IsResolved() {
			s.logger.Info("Reapplying stored resolution", "conflict_id", c.ID)
			s.save(ctx, entry.Resolution.Record, result, &result.Reapplied)
			continue
		}

		pending = append(pending, c)
	}

	if len(pending) == 0 {
		return nil
	}

	batch, err := s.engine.ResolveBatch(pending, s.strategy)
	if err != nil {
		return fmt.Errorf("failed to resolve conflicts: %w", err)
	}

	result.Escalated += batch.Stats.Escalated
	result.Skipped += batch.Stats.Failed

	for _, res := range batch.Resolved {
		if err := s.records.SaveRecord(ctx, res.Record); err != nil {
			s.logger.Warn("Failed to save resolved record", "conflict_id", res.ConflictID, "error", err)
			// Запись изменилась после обнаружения: конфликт остается открытым, данные не потеряны
			if !errors.Is(err, storage.ErrClockRegression) {
				s.collector.RecordDataLoss(res.ConflictID, err.Error())
			}
			result.Skipped++
			continue
		}

		if err := s.history.MarkResolved(ctx, res); err != nil && !errors.Is(err, storage.ErrAlreadyResolved) {
			// Запись уже сохранена; следующий запуск не найдет конфликта
			s.logger.Warn("Failed to mark conflict resolved", "conflict_id", res.ConflictID, "error", err)
		}
		if s.exporter != nil {
			s.exporter.ObserveResolution(res)
		}
		result.Resolved++
	}

	return nil
}

func (s *Service) save(ctx context.Context, record *models.Record, result *Result, counter *int) {
	if err := s.records.SaveRecord(ctx, record); err != nil {
		s.logger.Warn("Failed to save record", "entity_id", record.ID, "error", err)
		result.Skipped++
		return
	}
	*counter++
}

// dedupe проверяет удаленные записи и оставляет по одной версии на ID
// в порядке первого появления. Причинно более новая версия заменяет старую,
// старая или равная считается Unchanged. Конкурирующие версии одного ID
// в одном запросе не согласуются: остается первая, остальные пропускаются.
func (s *Service) dedupe(remotes []*models.Record, result *Result) []*models.Record {
	out := make([]*models.Record, 0, len(remotes))
	index := make(map[string]int, len(remotes))

	for _, remote := range remotes {
		if err := checkRemote(remote); err != nil {
			s.logger.Warn("Rejected remote record", "error", err)
			result.Skipped++
			continue
		}

		i, seen := index[remote.ID]
		if !seen {
			index[remote.ID] = len(out)
			out = append(out, remote)
			continue
		}

		switch remote.Clock.Compare(out[i].Clock) {
		case crdt.After:
			out[i] = remote
			result.Unchanged++
		case crdt.Concurrent:
			s.logger.Warn("Concurrent duplicate of remote record, skipping", "entity_id", remote.ID)
			result.Skipped++
		default:
			result.Unchanged++
		}
	}

	return out
}

// checkRemote проверяет идентификаторы удаленной записи до любых записей в хранилище
func checkRemote(r *models.Record) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRemote)
	}
	if err := validation.ValidateEntityType(r.Type); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRemote, r.ID, err)
	}
	if err := validation.ValidateDeviceID(r.NodeID); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRemote, r.ID, err)
	}
	for device := range r.Clock {
		if err := validation.ValidateDeviceID(device); err != nil {
			return fmt.Errorf("%w: %s: clock: %w", ErrInvalidRemote, r.ID, err)
		}
	}
	return nil
}
