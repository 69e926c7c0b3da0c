package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the rate service
type Metrics struct {
	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderRowsFetched     *prometheus.CounterVec

	// Sync metrics
	SyncCyclesTotal   *prometheus.CounterVec
	SyncPairsTotal    *prometheus.CounterVec
	SyncCycleDuration prometheus.Histogram
	LastSyncSuccessTS prometheus.Gauge

	// API metrics
	RateQueriesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rate_service"
	}

	return &Metrics{
		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of calls to rate sources",
			},
			[]string{"source", "status"}, // status: "ok", "empty", "error"
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Duration of rate source calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		ProviderRowsFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_rows_fetched_total",
				Help:      "Total number of rate rows fetched from sources",
			},
			[]string{"source"},
		),

		SyncCyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_cycles_total",
				Help:      "Total number of sync cycles",
			},
			[]string{"status"}, // "ok" or "failed"
		),

		SyncPairsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_pairs_total",
				Help:      "Total number of per-pair sync attempts",
			},
			[]string{"status"}, // "ok", "empty", "failed"
		),

		SyncCycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_cycle_duration_seconds",
				Help:      "Duration of full sync cycles in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		LastSyncSuccessTS: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_sync_success_timestamp_seconds",
				Help:      "Unix timestamp of the last fully successful sync cycle",
			},
		),

		RateQueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_queries_total",
				Help:      "Total number of stored-rate queries served",
			},
			[]string{"status"}, // "ok", "bad_request", "error"
		),
	}
}
