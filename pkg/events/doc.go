/*
Package events implements whisker's log broadcast core.

A Broker keeps the most recent log records in a fixed-capacity ring and fans
every new record out to any number of independently paced stream consumers.
Producers are never slowed down by consumers: a consumer that cannot keep up
is dropped instead of being waited for.

# Architecture

	┌──────────────────── LOG BROADCAST ───────────────────────┐
	│                                                            │
	│  Producers (capture pump, generator, HTTP/gRPC handlers)   │
	│                     │                                      │
	│                     ▼                                      │
	│  ┌────────────────────────────────────────────┐          │
	│  │  Broker.Ingest            (ingest mutex)    │          │
	│  │   1. Ring.Append (evicts oldest when full)  │          │
	│  │   2. Registry.List snapshot                 │          │
	│  │   3. non-blocking send of a clone to each   │          │
	│  │      subscriber; full or gone → dropped     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│        ┌────────────┼─────────────┐                       │
	│        ▼            ▼             ▼                       │
	│   Session (SSE) Session (WS) Session (gRPC)               │
	│   replay → live records + heartbeats → closed             │
	└────────────────────────────────────────────────────────┘

# Sessions

Broker.Attach registers a subscriber and snapshots the replay history under
the same mutex Ingest holds, so a record is delivered either as history or
live, exactly once. Session.Run then walks through:

  - REPLAYING: a connection marker, then up to ReplayCount recent records
  - LIVE: each record as it arrives; a heartbeat after every idle period
  - CLOSED: a best-effort disconnection marker, then deregistration

A session ends when its context is cancelled, when emit returns an error, or
when the broker evicts it. Evicted sessions flush what was already buffered
and finish with an error marker.

# Log Capture

CaptureWriter is a zerolog.LevelWriter that turns the process's own log lines
(INFO and above) into records. Lines are queued on a lock-free queue and fed
to the broker by a pump goroutine, because the broker itself logs while
holding its ingest mutex.

# Usage

	broker := events.NewBroker(events.Config{Capacity: 1000})

	capture := events.NewCaptureWriter(broker)
	capture.Start()
	defer capture.Stop()
	log.Init(log.Config{Level: log.InfoLevel, Capture: capture})

	session := broker.Attach()
	reason := session.Run(ctx, func(rec types.LogRecord) error {
		return writeFrame(rec)
	})
*/
package events
