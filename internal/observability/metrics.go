package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// measurement engine.
type Metrics struct {
	RowsIngested prometheus.Counter
	IngestErrors prometheus.Counter

	// Product build metrics, labelled by product layer
	// (heatmap, vectors, stations, validation).
	ProductsBuilt   *prometheus.CounterVec
	ProductErrors   *prometheus.CounterVec
	ProductDuration *prometheus.HistogramVec

	RowsPerRequest prometheus.Histogram
	WorkersBusy    prometheus.Gauge

	DatasetsResident prometheus.Gauge
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ocean_map",
			Name:      "rows_ingested_total",
			Help:      "Total measurement rows accepted into the row store.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ocean_map",
			Name:      "ingest_errors_total",
			Help:      "Total malformed or undecodable ingest messages.",
		}),
		ProductsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_map",
			Name:      "products_built_total",
			Help:      "Product builds completed, by product layer.",
		}, []string{"product"}),
		ProductErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_map",
			Name:      "product_errors_total",
			Help:      "Product builds rejected or failed, by product layer.",
		}, []string{"product"}),
		ProductDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ocean_map",
			Name:      "product_duration_seconds",
			Help:      "Duration of a single product build.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"product"}),
		RowsPerRequest: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ocean_map",
			Name:      "rows_per_request",
			Help:      "Number of input rows per product request.",
			Buckets:   []float64{10, 100, 500, 1000, 2500, 5000, 10000},
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocean_map",
			Name:      "workers_busy",
			Help:      "Number of pool workers currently executing a job.",
		}),
		DatasetsResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocean_map",
			Name:      "datasets_resident",
			Help:      "Number of datasets currently held in the row store.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_map",
			Name:      "product_cache_lookups_total",
			Help:      "Product cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.RowsIngested,
		m.IngestErrors,
		m.ProductsBuilt,
		m.ProductErrors,
		m.ProductDuration,
		m.RowsPerRequest,
		m.WorkersBusy,
		m.DatasetsResident,
		m.CacheLookups,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsIngested:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ocean_map", Name: "rows_ingested_total"}),
		IngestErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ocean_map", Name: "ingest_errors_total"}),
		ProductsBuilt:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ocean_map", Name: "products_built_total"}, []string{"product"}),
		ProductErrors:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ocean_map", Name: "product_errors_total"}, []string{"product"}),
		ProductDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "ocean_map", Name: "product_duration_seconds"}, []string{"product"}),
		RowsPerRequest:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "ocean_map", Name: "rows_per_request"}),
		WorkersBusy:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "ocean_map", Name: "workers_busy"}),
		DatasetsResident: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "ocean_map", Name: "datasets_resident"}),
		CacheLookups:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ocean_map", Name: "product_cache_lookups_total"}, []string{"result"}),
	}
}
