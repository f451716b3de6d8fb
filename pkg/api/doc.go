/*
Package api implements whisker's HTTP and gRPC transports.

The HTTP server exposes the movement endpoints, the log feed (history, stats,
ingestion and two live stream transports) and the operational endpoints. The
gRPC server exposes the same feed as the whisker.logs.v1.LogStream service
next to the standard grpc.health.v1 health service.

# Architecture

	┌──────────────────── HTTP (:8000) ────────────────────────┐
	│                                                            │
	│  CORS → instrument (logs, metrics) → ServeMux              │
	│                                                            │
	│   gzip  POST /api/move           movement.Decide          │
	│   gzip  POST /api/mouse/move     frontend format          │
	│   gzip  GET  /api/mouse/{id}/history   move journal       │
	│   gzip  GET  /api/logs/history   Broker.History           │
	│   gzip  GET  /api/logs/stats     Broker.Stats             │
	│   gzip  POST /api/logs           rate limited, Emit       │
	│         GET  /api/logs/stream    SSE session              │
	│         GET  /api/logs/ws        WebSocket session        │
	│         GET  /metrics /health /ready /live                │
	└────────────────────────────────────────────────────────┘

	┌──────────────────── gRPC (optional) ─────────────────────┐
	│  whisker.logs.v1.LogStream                                 │
	│    StreamLogs(Empty) → stream Struct                       │
	│    GetRecentLogs(Struct{count}) → Struct{logs, count}      │
	│    GetStats(Empty) → Struct                                │
	│  grpc.health.v1.Health                                     │
	└────────────────────────────────────────────────────────┘

Every stream transport is a thin emit function around events.Session: the
session owns replay, heartbeats and eviction, the transport only frames
records. SSE frames are "data: <json>\n\n"; WebSocket frames are JSON text
messages; gRPC messages are google.protobuf.Struct values in the same
flattened shape.

# Errors

Invalid movement input answers 400 with {"detail": "..."}. The frontend
endpoint never fails: anything it cannot decide falls back to a random
available move with the error in its reasoning.

# Usage

	srv := api.NewServer(api.Options{
		Broker:         broker,
		Journal:        journal,
		Version:        version,
		AllowedOrigin:  "*",
		HistoryDefault: 100,
		RateLimit:      api.RateLimit{RequestsPerSecond: 10, Burst: 20},
	})
	go srv.Start(":8000")
	defer srv.Shutdown(ctx)
*/
package api
