// Package metrics holds the prometheus instrumentation for the ingest job.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records run outcomes and per-stage row counts. A nil *Metrics is
// valid and records nothing, so tests can leave it unwired.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	ticksSkipped prometheus.Counter
	runDuration  prometheus.Histogram
	stageRows    *prometheus.CounterVec
	upsertRows   *prometheus.CounterVec
	staleDeleted prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventsync",
			Name:      "runs_total",
			Help:      "Completed ingest cycles by result",
		}, []string{"result"}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventsync",
			Name:      "ticks_skipped_total",
			Help:      "Scheduled ticks skipped because a cycle was still active",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventsync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full ingest cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		stageRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventsync",
			Name:      "pipeline_rows_total",
			Help:      "Rows seen at each pipeline stage",
		}, []string{"stage"}),
		upsertRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventsync",
			Name:      "upsert_rows_total",
			Help:      "Rows written to the store by outcome",
		}, []string{"outcome"}),
		staleDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventsync",
			Name:      "stale_rows_deleted_total",
			Help:      "Stale rows removed by cleanup",
		}),
	}
	reg.MustRegister(m.runsTotal, m.ticksSkipped, m.runDuration, m.stageRows, m.upsertRows, m.staleDeleted)
	return m
}

func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticksSkipped.Inc()
}

func (m *Metrics) RunFinished(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveStages(fetched, filtered, mapped, consolidated int) {
	if m == nil {
		return
	}
	m.stageRows.WithLabelValues("fetched").Add(float64(fetched))
	m.stageRows.WithLabelValues("filtered").Add(float64(filtered))
	m.stageRows.WithLabelValues("mapped").Add(float64(mapped))
	m.stageRows.WithLabelValues("consolidated").Add(float64(consolidated))
}

func (m *Metrics) ObserveUpserts(inserted, updated, skipped int64) {
	if m == nil {
		return
	}
	m.upsertRows.WithLabelValues("inserted").Add(float64(inserted))
	m.upsertRows.WithLabelValues("updated").Add(float64(updated))
	m.upsertRows.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *Metrics) ObserveCleanup(deleted int64) {
	if m == nil {
		return
	}
	m.staleDeleted.Add(float64(deleted))
}

// Handler serves /metrics for the given registry plus a trivial /healthz.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
