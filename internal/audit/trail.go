package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// DefaultRetention срок хранения разрешенных записей истории по умолчанию
const DefaultRetention = 90 * 24 * time.Hour

// Pruner хранилище истории, умеющее удалять разрешенные записи.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Trail управляет сроком хранения истории конфликтов.
// Неразрешенные записи не удаляются никогда.
type Trail struct {
	store     Pruner
	logger    *slog.Logger
	retention time.Duration
}

// NewTrail создает Trail. Неположительный retention заменяется DefaultRetention.
func NewTrail(store Pruner, retention time.Duration, logger *slog.Logger) *Trail {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Trail{
		store:     store,
		logger:    logger,
		retention: retention,
	}
}

// Retention возвращает срок хранения.
func (t *Trail) Retention() time.Duration {
	return t.retention
}

// Expired сообщает, что запись разрешена раньше, чем now - retention.
func (t *Trail) Expired(entry *models.HistoryEntry, now time.Time) bool {
	if entry == nil || !entry.IsResolved() {
		return false
	}
	return entry.Resolution.ResolvedAt.Before(now.Add(-t.retention))
}

// Prune удаляет из хранилища просроченные разрешенные записи.
func (t *Trail) Prune(ctx context.Context, now time.Time) (int, error) {
	before := now.Add(-t.retention)
	removed, err := t.store.Prune(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history before %s: %w", before.Format(time.RFC3339), err)
	}

	t.logger.Info("History pruned", "removed", removed, "before", before)
	return removed, nil
}
