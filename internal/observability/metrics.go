// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Signal metrics
	SignalsGenerated  *prometheus.CounterVec
	TokensSkipped     *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	SignalsConfidence prometheus.Histogram

	// Execution metrics
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram

	// Portfolio metrics
	PortfolioValue prometheus.Gauge
	OpenPositions  prometheus.Gauge
	DailyPnL       prometheus.Gauge
	RiskAlerts     *prometheus.CounterVec

	// External API metrics
	APICalls       *prometheus.CounterVec
	APICallLatency *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	RPCCallLatency *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec

	// Stream metrics
	WSClients        prometheus.Gauge
	WSMessagesSent   *prometheus.CounterVec
	WSClientsDropped prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Scheduler metrics
	JobRuns *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trading_assistant"
	}

	return &Metrics{
		// Signal metrics
		SignalsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "generated_total",
			Help:      "Total number of trading signals generated by action",
		}, []string{"action"}),
		TokensSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "tokens_skipped_total",
			Help:      "Total number of tokens skipped during analysis by reason",
		}, []string{"reason"}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of one analysis batch in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		SignalsConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "confidence",
			Help:      "Distribution of signal confidence scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),

		// Execution metrics
		Executions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "results_total",
			Help:      "Total number of execution attempts by status",
		}, []string{"status"}),
		ExecutionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Execution duration (validate, swap, ledger) in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Portfolio metrics
		PortfolioValue: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "value_usd",
			Help:      "Marked-to-market portfolio value in USD",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "open_positions",
			Help:      "Number of open positions",
		}),
		DailyPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "daily_pnl_usd",
			Help:      "Realized P&L since the last daily reset",
		}),
		RiskAlerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "risk_alerts_total",
			Help:      "Total number of risk alerts raised by type and severity",
		}, []string{"type", "severity"}),

		// External API metrics
		APICalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Total number of upstream API calls by provider and status",
		}, []string{"provider", "status"}),
		APICallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_latency_seconds",
			Help:      "Upstream API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by result",
		}, []string{"kind", "result"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by provider (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),

		// Stream metrics
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected WebSocket clients",
		}),
		WSMessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_sent_total",
			Help:      "Total number of WebSocket messages queued by type",
		}, []string{"type"}),
		WSClientsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients_dropped_total",
			Help:      "Total number of slow WebSocket clients dropped",
		}),

		// Database metrics
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

		// Scheduler metrics
		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Total number of scheduled job runs by job and status",
		}, []string{"job", "status"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignal records one generated signal.
func RecordSignal(action string, confidence float64) {
	DefaultMetrics.SignalsGenerated.WithLabelValues(action).Inc()
	DefaultMetrics.SignalsConfidence.Observe(confidence)
}

// RecordTokenSkipped records a token dropped from an analysis batch.
func RecordTokenSkipped(reason string) {
	DefaultMetrics.TokensSkipped.WithLabelValues(reason).Inc()
}

// RecordAnalysis records the duration of an analysis batch.
func RecordAnalysis(seconds float64) {
	DefaultMetrics.AnalysisDuration.Observe(seconds)
}

// RecordExecution records an execution outcome.
func RecordExecution(status string, seconds float64) {
	DefaultMetrics.Executions.WithLabelValues(status).Inc()
	DefaultMetrics.ExecutionDuration.Observe(seconds)
}

// UpdatePortfolio updates the portfolio gauges.
func UpdatePortfolio(valueUSD float64, positions int, dailyPnL float64) {
	DefaultMetrics.PortfolioValue.Set(valueUSD)
	DefaultMetrics.OpenPositions.Set(float64(positions))
	DefaultMetrics.DailyPnL.Set(dailyPnL)
}

// RecordRiskAlert records a raised risk alert.
func RecordRiskAlert(alertType, severity string) {
	DefaultMetrics.RiskAlerts.WithLabelValues(alertType, severity).Inc()
}

// RecordAPICall records an upstream API call.
func RecordAPICall(provider, status string, seconds float64) {
	DefaultMetrics.APICalls.WithLabelValues(provider, status).Inc()
	DefaultMetrics.APICallLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// SetBreakerState records a circuit breaker state change.
func SetBreakerState(provider string, state int) {
	DefaultMetrics.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// SetWSClients updates the connected WebSocket clients gauge.
func SetWSClients(n int) {
	DefaultMetrics.WSClients.Set(float64(n))
}

// RecordWSMessage records an outbound WebSocket message.
func RecordWSMessage(msgType string) {
	DefaultMetrics.WSMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordWSClientDropped records a slow client disconnect.
func RecordWSClientDropped() {
	DefaultMetrics.WSClientsDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordJobRun records a scheduled job run.
func RecordJobRun(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.JobRuns.WithLabelValues(job, status).Inc()
}
