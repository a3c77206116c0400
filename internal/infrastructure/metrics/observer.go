// Package metrics expone las métricas Prometheus de las corridas de costos.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

const namespace = "costos"

var _ costing.Observer = (*Observer)(nil)

// Observer implementa costing.Observer sobre un registro propio (no el global).
type Observer struct {
	registry *prometheus.Registry

	entities     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	snapshots    *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	lastRunFails *prometheus.GaugeVec
	lastSuccess  *prometheus.GaugeVec
}

// NewObserver registra las métricas en un registro nuevo.
func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_processed_total",
			Help:      "Entidades (fecha, bodega, producto) calculadas, por origen del saldo inicial.",
		}, []string{"tenant", "seed_source"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_failures_total",
			Help:      "Entidades omitidas por error, por etapa.",
		}, []string{"tenant", "stage"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_written_total",
			Help:      "Filas de histórico escritas, por operación.",
		}, []string{"tenant", "op"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Corridas terminadas.",
		}, []string{"tenant"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duración de las corridas.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"tenant"}),
		lastRunFails: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failures",
			Help:      "Entidades fallidas en la última corrida.",
		}, []string{"tenant"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Fin de la última corrida (unix).",
		}, []string{"tenant"}),
	}
	o.registry.MustRegister(o.entities, o.failures, o.snapshots, o.runs, o.runDuration, o.lastRunFails, o.lastSuccess)
	return o
}

func (o *Observer) EntityProcessed(tenant, seedSource string) {
	o.entities.WithLabelValues(tenant, seedSource).Inc()
}

func (o *Observer) EntityFailed(tenant, stage string) {
	o.failures.WithLabelValues(tenant, stage).Inc()
}

func (o *Observer) SnapshotsWritten(tenant string, res repository.UpsertResult) {
	o.snapshots.WithLabelValues(tenant, "insert").Add(float64(res.Inserted))
	o.snapshots.WithLabelValues(tenant, "update").Add(float64(res.Updated))
}

func (o *Observer) RunFinished(tenant string, report *costing.RunReport) {
	o.runs.WithLabelValues(tenant).Inc()
	o.runDuration.WithLabelValues(tenant).Observe(report.Duration().Seconds())
	o.lastRunFails.WithLabelValues(tenant).Set(float64(report.Failed()))
	o.lastSuccess.WithLabelValues(tenant).Set(float64(report.FinishedAt.Unix()))
}

// Registry registro con las métricas de costos (para pruebas o para combinar con otros).
func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// Handler endpoint de scraping.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}
