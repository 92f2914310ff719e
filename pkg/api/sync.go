package api

import "github.com/iudanet/gophsync/internal/models"

// ReconcileRequest удаленные снимки записей для согласования
type ReconcileRequest struct {
	Records []*models.Record `json:"records"`
}

// ReconcileResponse итоги согласования
type ReconcileResponse struct {
	Received      int `json:"received"`       // получено удаленных записей
	Created       int `json:"created"`        // новые записи
	FastForwarded int `json:"fast_forwarded"` // удаленная версия причинно новее
	Unchanged     int `json:"unchanged"`      // локальная версия новее или равна
	Conflicts     int `json:"conflicts"`      // обнаруженные конфликты
	Resolved      int `json:"resolved"`       // разрешенные и сохраненные
	Reapplied     int `json:"reapplied"`      // повторно сохраненные ранее принятые решения
	Escalated     int `json:"escalated"`      // ожидают ручного разбора
	Skipped       int `json:"skipped"`        // пропущены из-за ошибок
}
