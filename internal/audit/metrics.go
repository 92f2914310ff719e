// Package audit считает метрики конфликтов и управляет сроком хранения истории.
package audit

import (
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// ConflictMetrics агрегированная статистика конфликтов и их разрешений.
type ConflictMetrics struct {
	ByKind                map[models.ConflictKind]int `json:"by_kind"`
	BySeverity            map[models.Severity]int     `json:"by_severity"`
	Total                 int                         `json:"total"`
	Resolved              int                         `json:"resolved"`
	Unresolved            int                         `json:"unresolved"`
	AutoResolved          int                         `json:"auto_resolved"`
	ManualResolved        int                         `json:"manual_resolved"`
	MeanResolutionLatency time.Duration               `json:"mean_resolution_latency_ns"`
	AutoResolutionRate    float64                     `json:"auto_resolution_rate"`
	ManualResolutionRate  float64                     `json:"manual_resolution_rate"`
	DataLossIncidents     int64                       `json:"data_loss_incidents"`
}

// Compute считает метрики по списку конфликтов и их разрешений.
// Разрешения сопоставляются с конфликтами по ConflictID; разрешения
// неизвестных конфликтов и повторные разрешения не учитываются.
// Доли авто/ручных разрешений считаются от числа разрешенных конфликтов.
func Compute(conflicts []*models.DetectedConflict, resolutions []*models.ConflictResolution, dataLoss int64) ConflictMetrics {
	m := ConflictMetrics{
		ByKind:            make(map[models.ConflictKind]int),
		BySeverity:        make(map[models.Severity]int),
		DataLossIncidents: dataLoss,
	}

	detected := make(map[string]*models.DetectedConflict, len(conflicts))
	for _, c := range conflicts {
		if c == nil {
			continue
		}
		if _, dup := detected[c.ID]; dup {
			continue
		}
		detected[c.ID] = c
		m.Total++
		m.ByKind[c.Kind]++
		m.BySeverity[c.Severity]++
	}

	var latency time.Duration
	resolved := make(map[string]struct{}, len(resolutions))
	for _, r := range resolutions {
		if r == nil {
			continue
		}
		c, ok := detected[r.ConflictID]
		if !ok {
			continue
		}
		if _, dup := resolved[r.ConflictID]; dup {
			continue
		}
		resolved[r.ConflictID] = struct{}{}

		m.Resolved++
		if r.Strategy.IsManual() {
			m.ManualResolved++
		} else {
			m.AutoResolved++
		}
		if d := r.ResolvedAt.Sub(c.DetectedAt); d > 0 {
			latency += d
		}
	}

	m.Unresolved = m.Total - m.Resolved
	if m.Resolved > 0 {
		m.MeanResolutionLatency = latency / time.Duration(m.Resolved)
		m.AutoResolutionRate = float64(m.AutoResolved) / float64(m.Resolved)
		m.ManualResolutionRate = float64(m.ManualResolved) / float64(m.Resolved)
	}

	return m
}

// ComputeHistory считает метрики по записям истории.
func ComputeHistory(entries []*models.HistoryEntry, dataLoss int64) ConflictMetrics {
	conflicts := make([]*models.DetectedConflict, 0, len(entries))
	resolutions := make([]*models.ConflictResolution, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		conflicts = append(conflicts, &e.Conflict)
		if e.Resolution != nil {
			resolutions = append(resolutions, e.Resolution)
		}
	}
	return Compute(conflicts, resolutions, dataLoss)
}
