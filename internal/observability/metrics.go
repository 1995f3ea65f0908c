package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crash_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RowsExtracted   *prometheus.CounterVec   // labels: dataset, source={api,file,feed}
	RowsLoaded      *prometheus.CounterVec   // labels: table
	FetchRetries    *prometheus.CounterVec   // labels: source={portal,vehicles,weather}
	Fallbacks       *prometheus.CounterVec   // labels: dataset
	StageDuration   *prometheus.HistogramVec // labels: stage={extract,transform,join,load}
	IntegrityMisses *prometheus.CounterVec   // labels: dimension
	BatchRuns       *prometheus.CounterVec   // labels: outcome={success,failed}
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Weather archive metrics.
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}
	WeatherAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Raw rows read per dataset and source.",
		}, []string{"dataset", "source"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows written to each target table.",
		}, []string{"table"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Upstream fetch attempts that failed and were retried.",
		}, []string{"source"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Portal datasets read from local files after the portal failed.",
		}, []string{"dataset"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each batch stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 900},
		}, []string{"stage"}),
		IntegrityMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_misses_total",
			Help:      "Fact references that did not resolve against their dimension.",
		}, []string{"dimension"}),
		BatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_runs_total",
			Help:      "Completed batch runs by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a batch is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful batch.",
		}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Weather archive request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsExtracted,
		m.RowsLoaded,
		m.FetchRetries,
		m.Fallbacks,
		m.StageDuration,
		m.IntegrityMisses,
		m.BatchRuns,
		m.PipelineRunning,
		m.LastSuccess,
		m.WeatherCache,
		m.WeatherAPIDuration,
	}
}
