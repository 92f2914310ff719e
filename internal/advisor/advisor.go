// Package advisor раскладывает конфликт по полям для ручного разбора.
package advisor

import (
	"log/slog"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/internal/strategy"
)

// Advisor строит проекцию конфликта на поля с предложенными значениями.
// Не хранит изменяемого состояния.
type Advisor struct {
	registry *strategy.Registry
	logger   *slog.Logger
}

// New создает Advisor.
func New(registry *strategy.Registry, logger *slog.Logger) *Advisor {
	return &Advisor{
		registry: registry,
		logger:   logger,
	}
}

// FieldConflicts возвращает по одному FieldConflict на каждое конфликтующее
// поле в порядке ConflictingFields. CanAutoResolve означает, что auto_merge
// разрешит поле по настроенной политике; предложенное значение есть только
// у lww, max, min и union. Поле без настроенной политики не разрешается
// автоматически.
func (a *Advisor) FieldConflicts(c *models.DetectedConflict) []models.FieldConflict {
	if c == nil || c.Local == nil || c.Remote == nil {
		return nil
	}

	out := make([]models.FieldConflict, 0, len(c.ConflictingFields))
	for _, field := range c.ConflictingFields {
		fc := models.FieldConflict{
			Field:       field,
			LocalValue:  models.CloneValue(c.Local.Field(field)),
			RemoteValue: models.CloneValue(c.Remote.Field(field)),
		}

		policy, configured := a.registry.Policy(c.EntityType, field)
		if configured {
			fc.Policy = string(policy)
		}

		if configured && policy.Known() {
			fc.CanAutoResolve = true
			if err := a.check(&fc, policy, c); err != nil {
				a.logger.Debug("Field cannot be merged automatically",
					"conflict_id", c.ID,
					"field", field,
					"policy", policy,
					"error", err)
				fc.CanAutoResolve = false
			}
		}

		out = append(out, fc)
	}

	return out
}

// check убеждается, что auto_merge сможет применить политику к полю,
// и заполняет SuggestedValue для детерминированных политик.
// Пользовательские резолверы не вызываются.
func (a *Advisor) check(fc *models.FieldConflict, policy strategy.FieldPolicy, c *models.DetectedConflict) error {
	switch {
	case policy.Suggestable():
		suggested, err := a.suggest(policy, fc.Field, c)
		if err != nil {
			return err
		}
		fc.SuggestedValue = suggested
		return nil
	case policy == strategy.PolicyConcat:
		_, err := resolve.MergeConcat(fc.Field, c.Local.Field(fc.Field), c.Remote.Field(fc.Field))
		return err
	default:
		_, err := a.registry.Resolver(policy.CustomName())
		return err
	}
}

func (a *Advisor) suggest(policy strategy.FieldPolicy, field string, c *models.DetectedConflict) (models.Value, error) {
	lv, rv := c.Local.Field(field), c.Remote.Field(field)

	switch policy {
	case strategy.PolicyMax:
		return resolve.MergeExtreme(field, lv, rv, 1)
	case strategy.PolicyMin:
		return resolve.MergeExtreme(field, lv, rv, -1)
	case strategy.PolicyUnion:
		return resolve.MergeUnion(field, lv, rv)
	default:
		return resolve.MergeLWW(field, c.Local, c.Remote), nil
	}
}
