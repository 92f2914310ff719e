package audit

import (
	"log/slog"
	"sync/atomic"
)

// Collector потокобезопасный счетчик инцидентов потери данных.
// Инцидент фиксируется, когда проверенное разрешение не удалось сохранить
// или когда сохранение откатило бы часы записи назад.
type Collector struct {
	logger   *slog.Logger
	exporter *Exporter
	dataLoss atomic.Int64
}

// NewCollector создает Collector. exporter может быть nil.
func NewCollector(logger *slog.Logger, exporter *Exporter) *Collector {
	return &Collector{
		logger:   logger,
		exporter: exporter,
	}
}

// RecordDataLoss регистрирует инцидент потери данных.
func (c *Collector) RecordDataLoss(conflictID, reason string) {
	total := c.dataLoss.Add(1)
	c.logger.Error("Data loss incident",
		"conflict_id", conflictID,
		"reason", reason,
		"total", total)
	if c.exporter != nil {
		c.exporter.dataLoss.Inc()
	}
}

// DataLoss возвращает число зарегистрированных инцидентов.
func (c *Collector) DataLoss() int64 {
	return c.dataLoss.Load()
}
