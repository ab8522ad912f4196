package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "sipsa_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one run.
// A batch run owns its registry; nothing is registered globally.
type Metrics struct {
	Registry *prometheus.Registry

	RecordsFetched  prometheus.Counter
	RecordsSelected *prometheus.CounterVec // labels: mode={city,weekly}
	DuplicatesDrop  prometheus.Counter
	RecordsLoaded   *prometheus.CounterVec // labels: sink={jsonfile,kafka}
	WindowTier      *prometheus.CounterVec // labels: tier={literal,synthetic,passthrough,empty}

	// Upstream call metrics.
	FetchAttempts *prometheus.CounterVec // labels: outcome={success,retry,fault,error}
	FetchDuration prometheus.Histogram

	RunDuration    prometheus.Gauge
	LastSuccessful prometheus.Gauge
}

// NewMetrics creates all run metrics on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Raw records returned by the SIPSA service.",
		}),
		RecordsSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_selected_total",
			Help:      "Records kept by the city or window filter.",
		}, []string{"mode"}),
		DuplicatesDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Weekly records dropped as (product, place, date) duplicates.",
		}),
		RecordsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Normalized records written, by sink.",
		}, []string{"sink"}),
		WindowTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_tier_total",
			Help:      "Weekly runs by the window selection rule applied.",
		}, []string{"tier"}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "SOAP call attempts by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a complete upstream fetch, retries included.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastSuccessful: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote its output.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RecordsFetched,
		m.RecordsSelected,
		m.DuplicatesDrop,
		m.RecordsLoaded,
		m.WindowTier,
		m.FetchAttempts,
		m.FetchDuration,
		m.RunDuration,
		m.LastSuccessful,
	)

	return m
}
