// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Fee metrics
	FeeFetchesTotal     *prometheus.CounterVec
	FeeCacheHits        prometheus.Counter
	FeeRecommendation   *prometheus.GaugeVec
	FeeSamplesPersisted prometheus.Counter

	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration *prometheus.HistogramVec
	UnitsConsumed      prometheus.Histogram

	// Optimizer metrics
	PlansGenerated       *prometheus.CounterVec
	InfeasibleBatches    prometheus.Counter
	PlanEstimatedSavings prometheus.Histogram

	// Network metrics
	RPCCallLatency    *prometheus.HistogramVec
	RPCCallErrors     *prometheus.CounterVec
	WSNotifications   prometheus.Counter
	UsageRowsIngested prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFeeRefresh prometheus.Gauge
	UptimeSeconds            prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_fee_lab"
	}

	return &Metrics{
		FeeFetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "fetches_total",
			Help:      "Total number of prioritization fee fetches by result",
		}, []string{"result"}),
		FeeCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "cache_hits_total",
			Help:      "Total number of fee estimates served from cache",
		}),
		FeeRecommendation: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "recommended_micro_lamports",
			Help:      "Latest recommended unit price by speed tier",
		}, []string{"tier"}),
		FeeSamplesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "samples_persisted_total",
			Help:      "Total number of fee samples written to storage",
		}),

		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulator",
			Name:      "simulations_total",
			Help:      "Total number of simulations by probe path and result",
		}, []string{"path", "result"}),
		SimulationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulator",
			Name:      "duration_seconds",
			Help:      "Simulation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"path"}),
		UnitsConsumed: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulator",
			Name:      "units_consumed",
			Help:      "Compute units consumed by successful simulations",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}),

		PlansGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "plans_generated_total",
			Help:      "Total number of batch plans generated by strategy",
		}, []string{"strategy"}),
		InfeasibleBatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "infeasible_total",
			Help:      "Total number of optimizations with an instruction over the unit ceiling",
		}),
		PlanEstimatedSavings: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "best_plan_savings_lamports",
			Help:      "Estimated savings of the best plan in lamports",
			Buckets:   []float64{0, 5000, 10000, 25000, 50000, 100000},
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),
		WSNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_notifications_total",
			Help:      "Total number of logs notifications received",
		}),
		UsageRowsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "usage_rows_ingested_total",
			Help:      "Total number of transaction usage rows stored",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulFeeRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_fee_refresh_timestamp",
			Help:      "Unix timestamp of last successful fee refresh",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFeeFetch records a fee fetch. degraded means fallback statistics were served.
func RecordFeeFetch(degraded bool) {
	result := "ok"
	if degraded {
		result = "fallback"
	}
	DefaultMetrics.FeeFetchesTotal.WithLabelValues(result).Inc()
}

// RecordFeeCacheHit increments the fee cache hit counter.
func RecordFeeCacheHit() {
	DefaultMetrics.FeeCacheHits.Inc()
}

// SetFeeRecommendation updates the recommendation gauge for a tier.
func SetFeeRecommendation(tier string, microLamports uint64) {
	DefaultMetrics.FeeRecommendation.WithLabelValues(tier).Set(float64(microLamports))
}

// RecordFeeSamplesPersisted adds n to the persisted samples counter.
func RecordFeeSamplesPersisted(n int) {
	DefaultMetrics.FeeSamplesPersisted.Add(float64(n))
}

// MarkFeeRefresh sets the last successful fee refresh timestamp.
func MarkFeeRefresh(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulFeeRefresh.Set(float64(unixSeconds))
}

// RecordSimulation records a finished simulation.
func RecordSimulation(path string, succeeded bool, seconds float64, units *int64) {
	result := "success"
	if !succeeded {
		result = "failure"
	}
	DefaultMetrics.SimulationsTotal.WithLabelValues(path, result).Inc()
	DefaultMetrics.SimulationDuration.WithLabelValues(path).Observe(seconds)
	if units != nil {
		DefaultMetrics.UnitsConsumed.Observe(float64(*units))
	}
}

// RecordPlans records generated plans and the best plan's savings.
func RecordPlans(strategies []string, bestSavings int64, infeasible bool) {
	for _, s := range strategies {
		DefaultMetrics.PlansGenerated.WithLabelValues(s).Inc()
	}
	if len(strategies) > 0 {
		DefaultMetrics.PlanEstimatedSavings.Observe(float64(bestSavings))
	}
	if infeasible {
		DefaultMetrics.InfeasibleBatches.Inc()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordWSNotification increments the logs notification counter.
func RecordWSNotification() {
	DefaultMetrics.WSNotifications.Inc()
}

// RecordUsageIngested increments the usage rows counter.
func RecordUsageIngested() {
	DefaultMetrics.UsageRowsIngested.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
