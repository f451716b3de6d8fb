/*
Package log provides structured logging for whisker using zerolog.

The log package wraps the zerolog library to provide structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. Besides its normal output, the global logger can mirror
every line into a capture writer; that is how the process's own logs show up in
the live log feed.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance with timestamp+caller   │          │
	│  │  - Initialized via log.Init()               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│         ┌───────────┴────────────┐                        │
	│         ▼                        ▼                        │
	│  ┌──────────────┐     ┌─────────────────────┐            │
	│  │ Output        │     │ Capture (optional)  │            │
	│  │ JSON/console  │     │ events.CaptureWriter│            │
	│  └──────────────┘     │ → log feed          │            │
	│                       └─────────────────────┘            │
	└────────────────────────────────────────────────────────┘

# Log Levels

  - debug: heartbeat and per-request detail, never captured into the feed
  - info: default production level; the lowest level the feed mirrors
  - warn: dropped subscribers, rejected requests
  - error: failed storage writes, transport failures

SetLevel changes the level at runtime; the config watcher uses it when the
config file changes.

# Usage

Initializing the Logger:

	import "github.com/cuemby/whisker/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		Output:     os.Stdout,
		Capture:    capture, // *events.CaptureWriter, optional
	})

Component Loggers:

	logger := log.WithComponent("broker")
	logger.Warn().Str("subscriber", id).Msg("Dropping slow subscriber")

	mouseLog := log.WithMouseID("mouse_1")
	mouseLog.Info().Msg("Calculated next position")

Component loggers copy the global logger at creation time, so create them
after Init.

With a capture writer configured, lines at info and above also carry a
"function" field naming the calling function, e.g. "api.(*Server).moveHandler".

# Log Output Examples

JSON Format:

	{"level":"info","component":"api","time":"2026-10-19T10:30:00Z","caller":"server.go:88","message":"HTTP server listening"}

Console Format:

	2026-10-19T10:30:00Z INF server.go:88 > HTTP server listening component=api
*/
package log
