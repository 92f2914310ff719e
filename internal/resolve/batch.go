package resolve

import (
	"fmt"

	"github.com/iudanet/gophsync/internal/models"
)

// Outcome конфликт, который не удалось разрешить в пакете.
// Escalated означает, что конфликт отправлен на ручной разбор без попытки
// разрешения; иначе Err содержит причину отказа.
type Outcome struct {
	Err       error                    `json:"-"`
	Conflict  *models.DetectedConflict `json:"conflict"`
	Reason    string                   `json:"reason"`
	Escalated bool                     `json:"escalated"`
}

// Stats сводка пакетного разрешения.
// Инвариант: Total == Resolved + Unresolved.
type Stats struct {
	ByWinner   map[models.Winner]int `json:"by_winner"`
	Total      int                   `json:"total"`
	Resolved   int                   `json:"resolved"`
	Unresolved int                   `json:"unresolved"`
	Escalated  int                   `json:"escalated"`
	Failed     int                   `json:"failed"`
}

// BatchResult результат пакетного разрешения
type BatchResult struct {
	Resolved   []*models.ConflictResolution `json:"resolved"`
	Unresolved []Outcome                    `json:"unresolved"`
	Stats      Stats                        `json:"stats"`
}

// ResolveBatch разрешает конфликты одной стратегией.
// Стратегия manual отправляет critical конфликты на ручной разбор, а
// остальные разрешает через auto_merge. Ошибки отдельных конфликтов
// попадают в Unresolved, пакет продолжается. Ошибка возвращается только
// для неизвестной стратегии: такой вызов не обрабатывает ни одного конфликта.
func (e *Engine) ResolveBatch(conflicts []*models.DetectedConflict, s models.Strategy) (BatchResult, error) {
	switch s {
	case models.StrategyAutoLWW, models.StrategyAutoMerge, models.StrategyLocalWins,
		models.StrategyRemoteWins, models.StrategyManual:
	default:
		return BatchResult{}, fmt.Errorf("%w: batch strategy %q", ErrUnknownStrategy, s)
	}

	result := BatchResult{
		Resolved:   make([]*models.ConflictResolution, 0, len(conflicts)),
		Unresolved: make([]Outcome, 0),
		Stats:      Stats{ByWinner: make(map[models.Winner]int)},
	}

	for _, c := range conflicts {
		result.Stats.Total++

		effective := s
		if s == models.StrategyManual {
			if c != nil && c.Severity == models.SeverityCritical {
				result.Unresolved = append(result.Unresolved, Outcome{
					Conflict:  c,
					Reason:    "critical conflict requires manual review",
					Escalated: true,
				})
				result.Stats.Unresolved++
				result.Stats.Escalated++
				continue
			}
			effective = models.StrategyAutoMerge
		}

		res, err := e.ResolveAuto(c, effective)
		if err != nil {
			conflictID := ""
			if c != nil {
				conflictID = c.ID
			}
			e.logger.Warn("Failed to resolve conflict", "conflict_id", conflictID, "strategy", effective, "error", err)

			result.Unresolved = append(result.Unresolved, Outcome{
				Conflict: c,
				Err:      err,
				Reason:   err.Error(),
			})
			result.Stats.Unresolved++
			result.Stats.Failed++
			continue
		}

		result.Resolved = append(result.Resolved, res)
		result.Stats.Resolved++
		result.Stats.ByWinner[res.Winner]++
	}

	e.logger.Info("Batch resolution completed",
		"strategy", s,
		"total", result.Stats.Total,
		"resolved", result.Stats.Resolved,
		"escalated", result.Stats.Escalated,
		"failed", result.Stats.Failed)

	return result, nil
}
