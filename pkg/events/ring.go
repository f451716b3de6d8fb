package events

import (
	"time"

	"github.com/cuemby/whisker/pkg/types"
)

// DefaultCapacity is the number of records the broker keeps by default
const DefaultCapacity = 1000

// RingStats describes the current content of a Ring
type RingStats struct {
	Count    int
	Capacity int
	Oldest   time.Time
	Newest   time.Time
}

// Ring is a fixed-capacity FIFO of the most recent records.
//
// Ring is not safe for concurrent use; the Broker only touches it while
// holding its ingest mutex.
type Ring struct {
	buf   []types.LogRecord
	head  int // index of the oldest record
	count int
}

// NewRing creates a ring holding at most capacity records.
// A non-positive capacity falls back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]types.LogRecord, capacity)}
}

// Append adds a record, evicting the oldest one when full
func (r *Ring) Append(rec types.LogRecord) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = rec
		r.count++
		return
	}
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
}

// Snapshot returns the most recent n records in insertion order.
// n <= 0 returns everything held. The result never aliases the ring.
func (r *Ring) Snapshot(n int) []types.LogRecord {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]types.LogRecord, 0, n)
	start := r.count - n
	for i := start; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)].Clone())
	}
	return out
}

// Len returns the number of records held
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the ring capacity
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Stats returns count, capacity and the oldest/newest timestamps
func (r *Ring) Stats() RingStats {
	s := RingStats{Count: r.count, Capacity: len(r.buf)}
	if r.count > 0 {
		s.Oldest = r.buf[r.head].Timestamp
		s.Newest = r.buf[(r.head+r.count-1)%len(r.buf)].Timestamp
	}
	return s
}
