package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/types"
)

// State is the lifecycle state of a Session
type State int32

const (
	StateAttaching State = iota
	StateReplaying
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateReplaying:
		return "replaying"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason tells why Run returned
type CloseReason string

const (
	ClosedCancelled  CloseReason = "cancelled"
	ClosedEmitFailed CloseReason = "emit_failed"
	ClosedEvicted    CloseReason = "evicted"
)

// EmitFunc writes one record to a consumer. Any error means the consumer is
// gone.
type EmitFunc func(types.LogRecord) error

// Session is one consumer's view of the feed: a replay of recent history
// followed by live records and heartbeats.
type Session struct {
	broker    *Broker
	sub       *Subscriber
	replay    []types.LogRecord
	heartbeat time.Duration
	clock     clockwork.Clock
	state     atomic.Int32
}

// ID returns the subscriber id backing the session
func (s *Session) ID() string {
	return s.sub.ID()
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run drives the session until ctx is cancelled, emit fails or the broker
// evicts the subscriber. Cleanup always runs before Run returns.
func (s *Session) Run(ctx context.Context, emit EmitFunc) CloseReason {
	reason := s.stream(ctx, emit)
	s.close(emit, reason)
	return reason
}

func (s *Session) stream(ctx context.Context, emit EmitFunc) CloseReason {
	s.setState(StateReplaying)

	if err := emit(s.marker(types.KindConnection, "Connected to log stream")); err != nil {
		return ClosedEmitFailed
	}
	for _, rec := range s.replay {
		if ctx.Err() != nil {
			return ClosedCancelled
		}
		if err := emit(rec); err != nil {
			return ClosedEmitFailed
		}
	}
	s.replay = nil

	s.setState(StateLive)

	timer := s.clock.NewTimer(s.heartbeat)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ClosedCancelled

		case rec := <-s.sub.ch:
			if err := emit(rec); err != nil {
				return ClosedEmitFailed
			}
			timer.Reset(s.heartbeat)

		case <-timer.Chan():
			metrics.Heartbeats.Inc()
			if err := emit(s.marker(types.KindHeartbeat, "heartbeat")); err != nil {
				return ClosedEmitFailed
			}
			timer.Reset(s.heartbeat)

		case <-s.sub.done:
			return s.evicted(emit)
		}
	}
}

// evicted flushes what was buffered before the broker dropped us
func (s *Session) evicted(emit EmitFunc) CloseReason {
	for {
		select {
		case rec := <-s.sub.ch:
			if err := emit(rec); err != nil {
				return ClosedEmitFailed
			}
		default:
			marker := s.marker(types.KindError, "stream dropped: consumer too slow")
			marker.Level = types.LevelError
			if err := emit(marker); err != nil {
				return ClosedEmitFailed
			}
			return ClosedEvicted
		}
	}
}

func (s *Session) close(emit EmitFunc, reason CloseReason) {
	s.setState(StateClosed)

	if reason != ClosedEmitFailed {
		_ = emit(s.marker(types.KindDisconnection, "Disconnected from log stream"))
	}
	s.broker.detach(s.sub)

	logger := log.WithComponent("stream")
	logger.Debug().
		Str("subscriber", s.sub.ID()).
		Str("reason", string(reason)).
		Msg("Log stream closed")
}

func (s *Session) marker(kind types.Kind, message string) types.LogRecord {
	return types.LogRecord{
		Kind:      kind,
		Message:   message,
		Timestamp: s.clock.Now(),
	}
}
