package events

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/types"
)

const (
	// DefaultReplayCount is how many records a new stream receives first
	DefaultReplayCount = 50

	// DefaultHeartbeat is the idle period after which a stream gets a heartbeat
	DefaultHeartbeat = 30 * time.Second
)

// Drop reasons recorded when the broker removes a subscriber
const (
	DropGone     = "gone"
	DropOverflow = "overflow"
)

// Config holds broker settings. Zero values take the package defaults.
type Config struct {
	Capacity         int
	SubscriberBuffer int
	ReplayCount      int
	Heartbeat        time.Duration
	Clock            clockwork.Clock
}

// Stats is a point-in-time view of the broker
type Stats struct {
	Count             int
	Capacity          int
	ActiveSubscribers int
	Oldest            time.Time
	Newest            time.Time
}

// Broker stores recent log records and fans them out to live subscribers.
//
// A single ingest mutex linearizes producers: appending to the ring, taking
// the registry snapshot and the non-blocking sends all happen under it, so
// every subscriber observes the same global order.
type Broker struct {
	mu       sync.Mutex
	ring     *Ring
	registry *Registry

	subscriberBuffer int
	replayCount      int
	heartbeat        time.Duration
	clock            clockwork.Clock
}

// NewBroker creates a broker
func NewBroker(cfg Config) *Broker {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if cfg.ReplayCount <= 0 {
		cfg.ReplayCount = DefaultReplayCount
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Broker{
		ring:             NewRing(cfg.Capacity),
		registry:         NewRegistry(),
		subscriberBuffer: cfg.SubscriberBuffer,
		replayCount:      cfg.ReplayCount,
		heartbeat:        cfg.Heartbeat,
		clock:            cfg.Clock,
	}
}

// Ingest stores rec and delivers a copy to every live subscriber.
// It never blocks on a consumer: subscribers that are gone or whose buffer
// is full are dropped.
func (b *Broker) Ingest(rec types.LogRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = b.clock.Now()
	}
	if rec.Kind == "" {
		rec.Kind = types.KindLog
	}

	type dropped struct {
		sub    *Subscriber
		reason string
	}
	var drops []dropped

	b.mu.Lock()
	b.ring.Append(rec)
	for _, sub := range b.registry.List() {
		if sub.Closed() {
			drops = append(drops, dropped{sub, DropGone})
			continue
		}
		if !sub.trySend(rec.Clone()) {
			drops = append(drops, dropped{sub, DropOverflow})
		}
	}
	for i := range drops {
		if !b.registry.Unregister(drops[i].sub) {
			drops[i].sub = nil
		}
	}
	buffered := b.ring.Len()
	b.mu.Unlock()

	metrics.LogsIngested.WithLabelValues(string(rec.Kind)).Inc()
	metrics.LogBufferRecords.Set(float64(buffered))

	// Log writes can block; keep them outside b.mu.
	for _, d := range drops {
		if d.sub != nil {
			b.reportDrop(d.sub, d.reason)
		}
	}
}

func (b *Broker) reportDrop(sub *Subscriber, reason string) {
	metrics.SubscribersDropped.WithLabelValues(reason).Inc()
	metrics.StreamSubscribers.Set(float64(b.registry.Len()))

	logger := log.WithComponent("broker")
	logger.Warn().
		Str("subscriber", sub.ID()).
		Str("reason", reason).
		Msg("Dropping log stream subscriber")
}

// Emit ingests a custom record built from the given values
func (b *Broker) Emit(level types.Level, message string, fields map[string]any) {
	b.Ingest(types.LogRecord{
		Kind:    types.KindCustom,
		Level:   level,
		Message: message,
		Fields:  fields,
	})
}

// Attach registers a new subscriber and returns its session.
//
// Registration and the replay snapshot happen under the ingest mutex, so a
// record is either part of the replay or delivered live, never both.
func (b *Broker) Attach() *Session {
	b.mu.Lock()
	sub := b.registry.Register(b.subscriberBuffer)
	replay := b.ring.Snapshot(b.replayCount)
	b.mu.Unlock()

	metrics.StreamSubscribers.Set(float64(b.registry.Len()))

	return &Session{
		broker:    b,
		sub:       sub,
		replay:    replay,
		heartbeat: b.heartbeat,
		clock:     b.clock,
	}
}

// detach removes sub on behalf of its session
func (b *Broker) detach(sub *Subscriber) bool {
	removed := b.registry.Unregister(sub)
	if removed {
		metrics.StreamSubscribers.Set(float64(b.registry.Len()))
	}
	return removed
}

// History returns the most recent n records, oldest first.
// n <= 0 returns everything held.
func (b *Broker) History(n int) []types.LogRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Snapshot(n)
}

// Stats returns buffer and subscriber counts
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	rs := b.ring.Stats()
	b.mu.Unlock()

	return Stats{
		Count:             rs.Count,
		Capacity:          rs.Capacity,
		ActiveSubscribers: b.registry.Len(),
		Oldest:            rs.Oldest,
		Newest:            rs.Newest,
	}
}

// SubscriberCount returns the number of live subscribers
func (b *Broker) SubscriberCount() int {
	return b.registry.Len()
}

// Now returns the broker clock's current time
func (b *Broker) Now() time.Time {
	return b.clock.Now()
}

// BufferedRecords returns the number of records held in the ring
func (b *Broker) BufferedRecords() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Len()
}
