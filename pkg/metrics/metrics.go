package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Log feed metrics
	LogsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisker_logs_ingested_total",
			Help: "Total number of log records ingested by kind",
		},
		[]string{"kind"},
	)

	LogsCaptured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whisker_logs_captured_total",
			Help: "Total number of process log lines mirrored into the feed",
		},
	)

	LogBufferRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whisker_log_buffer_records",
			Help: "Number of records currently held in the log buffer",
		},
	)

	// Stream metrics
	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whisker_stream_subscribers",
			Help: "Number of live log stream subscribers",
		},
	)

	SubscribersDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisker_stream_subscribers_dropped_total",
			Help: "Total number of subscribers dropped by the broker by reason",
		},
		[]string{"reason"},
	)

	StreamSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisker_stream_sessions_total",
			Help: "Total number of log stream sessions by transport",
		},
		[]string{"transport"},
	)

	Heartbeats = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whisker_heartbeats_total",
			Help: "Total number of heartbeats sent to idle streams",
		},
	)

	// API metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisker_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whisker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	GRPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisker_grpc_requests_total",
			Help: "Total number of gRPC calls by method and status",
		},
		[]string{"method", "status"},
	)

	GRPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whisker_grpc_request_duration_seconds",
			Help:    "gRPC call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Movement metrics
	MoveDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisker_move_decisions_total",
			Help: "Total number of movement decisions by outcome",
		},
		[]string{"outcome"},
	)

	MoveDecisionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whisker_move_decision_latency_seconds",
			Help:    "Time taken to compute a movement decision in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Generator metrics
	GeneratedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whisker_generator_records_total",
			Help: "Total number of synthetic records produced",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(LogsIngested)
	prometheus.MustRegister(LogsCaptured)
	prometheus.MustRegister(LogBufferRecords)
	prometheus.MustRegister(StreamSubscribers)
	prometheus.MustRegister(SubscribersDropped)
	prometheus.MustRegister(StreamSessions)
	prometheus.MustRegister(Heartbeats)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(GRPCRequestsTotal)
	prometheus.MustRegister(GRPCRequestDuration)
	prometheus.MustRegister(MoveDecisions)
	prometheus.MustRegister(MoveDecisionLatency)
	prometheus.MustRegister(GeneratedRecords)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
