package audit

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/gophsync/internal/models"
)

const namespace = "gophsync"

// Exporter публикует метрики конфликтов в формате Prometheus.
type Exporter struct {
	registry *prometheus.Registry

	conflicts   *prometheus.GaugeVec
	severity    *prometheus.GaugeVec
	resolved    prometheus.Gauge
	unresolved  prometheus.Gauge
	latency     prometheus.Gauge
	autoRate    prometheus.Gauge
	resolutions *prometheus.CounterVec
	dataLoss    prometheus.Counter
}

// NewExporter создает Exporter с собственным реестром метрик.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),

		conflicts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conflicts",
				Help:      "Number of recorded conflicts by kind",
			},
			[]string{"kind"},
		),
		severity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conflicts_by_severity",
				Help:      "Number of recorded conflicts by severity",
			},
			[]string{"severity"},
		),
		resolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conflicts_resolved",
			Help:      "Number of resolved conflicts",
		}),
		unresolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conflicts_unresolved",
			Help:      "Number of conflicts awaiting resolution",
		}),
		latency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolution_latency_mean_seconds",
			Help:      "Mean time between detection and resolution",
		}),
		autoRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auto_resolution_ratio",
			Help:      "Share of resolved conflicts resolved automatically",
		}),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Total number of produced resolutions",
			},
			[]string{"strategy", "winner"},
		),
		dataLoss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_loss_incidents_total",
			Help:      "Total number of data loss incidents",
		}),
	}

	e.registry.MustRegister(
		e.conflicts,
		e.severity,
		e.resolved,
		e.unresolved,
		e.latency,
		e.autoRate,
		e.resolutions,
		e.dataLoss,
	)

	return e
}

// Observe выставляет значения метрик по снимку ConflictMetrics.
func (e *Exporter) Observe(m ConflictMetrics) {
	e.conflicts.Reset()
	for kind, n := range m.ByKind {
		e.conflicts.WithLabelValues(string(kind)).Set(float64(n))
	}
	e.severity.Reset()
	for severity, n := range m.BySeverity {
		e.severity.WithLabelValues(string(severity)).Set(float64(n))
	}
	e.resolved.Set(float64(m.Resolved))
	e.unresolved.Set(float64(m.Unresolved))
	e.latency.Set(m.MeanResolutionLatency.Seconds())
	e.autoRate.Set(m.AutoResolutionRate)
}

// ObserveResolution учитывает одно разрешение.
func (e *Exporter) ObserveResolution(r *models.ConflictResolution) {
	e.resolutions.WithLabelValues(string(r.Strategy), string(r.Winner)).Inc()
}

// Registry возвращает реестр метрик (для тестов и встраивания).
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler возвращает HTTP handler для эндпоинта /metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
