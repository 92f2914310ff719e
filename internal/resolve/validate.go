package resolve

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/gophsync/internal/models"
)

// ValidationResult итог проверки разрешения
type ValidationResult struct {
	Errors []string `json:"errors,omitempty"`
	Valid  bool     `json:"valid"`
}

// Validate проверяет разрешение само по себе: идентификаторы, часы,
// время разрешения, известные стратегию и победителя.
func (e *Engine) Validate(res *models.ConflictResolution) ValidationResult {
	if res == nil {
		return ValidationResult{Errors: []string{"resolution is nil"}}
	}

	var problems []string
	if err := e.validate.Struct(res); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if res.Record != nil {
		if res.Record.ID == "" {
			problems = append(problems, "record id is empty")
		}
		if res.Record.Clock.IsZero() {
			problems = append(problems, "record clock is empty")
		}
	}

	return ValidationResult{Valid: len(problems) == 0, Errors: problems}
}

// ValidateAgainst дополнительно сверяет разрешение с конфликтом:
// совпадение идентификаторов и доминирование часов над обеими версиями.
func (e *Engine) ValidateAgainst(c *models.DetectedConflict, res *models.ConflictResolution) ValidationResult {
	result := e.Validate(res)
	if res == nil || res.Record == nil {
		return result
	}
	if c == nil || c.Local == nil || c.Remote == nil {
		result.Errors = append(result.Errors, "conflict is nil or incomplete")
		result.Valid = false
		return result
	}

	if res.ConflictID != c.ID {
		result.Errors = append(result.Errors, fmt.Sprintf("conflict id %q does not match %q", res.ConflictID, c.ID))
	}
	if res.Record.ID != c.EntityID {
		result.Errors = append(result.Errors, fmt.Sprintf("record id %q does not match entity %q", res.Record.ID, c.EntityID))
	}
	if !res.Record.Clock.Dominates(c.Local.Clock) {
		result.Errors = append(result.Errors, "clock does not dominate local clock")
	}
	if !res.Record.Clock.Dominates(c.Remote.Clock) {
		result.Errors = append(result.Errors, "clock does not dominate remote clock")
	}

	result.Valid = len(result.Errors) == 0
	return result
}
