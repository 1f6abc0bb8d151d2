package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	AgentDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_agent_dispatches_total",
			Help: "Total number of agent dispatch attempts",
		},
		[]string{"kind", "status"}, // kind: execute|rebalance, status: accepted|offline|error
	)

	AgentDispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopilot_agent_dispatch_latency_seconds",
			Help:    "Agent trigger request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"kind"},
	)

	// Callback metrics
	AgentCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_agent_callbacks_total",
			Help: "Total number of agent result callbacks",
		},
		[]string{"status"}, // status: success|partial|duplicate|error
	)

	CallbackActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_callback_actions_total",
			Help: "Total number of actions recorded from agent callbacks",
		},
		[]string{"type", "status"}, // status: executed|failed|skipped
	)

	// Ledger metrics
	ActionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_actions_recorded_total",
			Help: "Total number of ledger actions created",
		},
		[]string{"type", "status"},
	)

	// Stream metrics
	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopilot_stream_subscribers",
			Help: "Number of currently connected event stream subscribers",
		},
	)

	StreamEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_stream_events_published_total",
			Help: "Total number of events published to investment streams",
		},
		[]string{"type"},
	)

	StreamEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autopilot_stream_events_dropped_total",
			Help: "Total number of events dropped due to slow subscribers",
		},
	)

	// Portfolio metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopilot_reconciliation_duration_seconds",
			Help:    "Portfolio reconciliation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	ChainCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_chain_calls_total",
			Help: "Total number of on-chain balance reads",
		},
		[]string{"status"}, // status: success|error
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopilot_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopilot_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopilot_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "table"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopilot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "path"},
	)
)

func init() {
	// Dispatch metrics
	prometheus.MustRegister(AgentDispatches)
	prometheus.MustRegister(AgentDispatchLatency)

	// Callback metrics
	prometheus.MustRegister(AgentCallbacks)
	prometheus.MustRegister(CallbackActions)

	// Ledger metrics
	prometheus.MustRegister(ActionsRecorded)

	// Stream metrics
	prometheus.MustRegister(StreamSubscribers)
	prometheus.MustRegister(StreamEventsPublished)
	prometheus.MustRegister(StreamEventsDropped)

	// Portfolio metrics
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ChainCalls)

	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	// Database metrics
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	// HTTP metrics
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution with duration
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordDBQuery records a database query with duration
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueries.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
