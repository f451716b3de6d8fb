/*
Package metrics provides Prometheus metrics and health endpoints for whisker.

All metrics are package-level collectors registered with the default
Prometheus registry at init time and exposed through Handler on /metrics.

# Metrics Catalog

Log feed:

	whisker_logs_ingested_total{kind}                 counter
	whisker_logs_captured_total                       counter
	whisker_log_buffer_records                        gauge
	whisker_stream_subscribers                        gauge
	whisker_stream_subscribers_dropped_total{reason}  counter (gone, overflow)
	whisker_stream_sessions_total{transport}          counter (sse, websocket, grpc)
	whisker_heartbeats_total                          counter

Transports:

	whisker_http_requests_total{route,status}         counter
	whisker_http_request_duration_seconds{route}      histogram
	whisker_grpc_requests_total{method,status}        counter
	whisker_grpc_request_duration_seconds{method}     histogram

Movement and generator:

	whisker_move_decisions_total{outcome}             counter
	whisker_move_decision_latency_seconds             histogram
	whisker_generator_records_total                   counter

The broker updates the feed gauges on every ingest; Collector resamples them
periodically so they stay correct while the feed is idle.

# Health

Components report themselves with RegisterComponent/UpdateComponent.
/health is unhealthy (503) when a critical component is, and degraded (still
200) when only a non-critical one such as the journal is. With SetFeedSource
it also reports the buffered record and subscriber counts. /ready waits for
the critical components (broker and http by default, see
SetCriticalComponents); /live always answers 200 while the process runs.

# Usage

	timer := metrics.NewTimer()
	next, err := movement.Decide(grid, pos, goal)
	timer.ObserveDuration(metrics.MoveDecisionLatency)

	metrics.RegisterComponent(metrics.ComponentBroker, true, "ready")
	mux.Handle("/metrics", metrics.Handler())
*/
package metrics
