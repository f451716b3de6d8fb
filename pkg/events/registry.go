package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/whisker/pkg/types"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity
const DefaultSubscriberBuffer = 100

// Subscriber is one live consumer of the feed.
//
// The data channel is never closed. Termination is signalled on Done, which
// is closed exactly once by whoever removes the subscriber first.
type Subscriber struct {
	id   string
	ch   chan types.LogRecord
	done chan struct{}
	once sync.Once
}

func newSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Subscriber{
		id:   uuid.New().String(),
		ch:   make(chan types.LogRecord, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber id
func (s *Subscriber) ID() string {
	return s.id
}

// C returns the receive side of the subscriber channel
func (s *Subscriber) C() <-chan types.LogRecord {
	return s.ch
}

// Done is closed when the subscriber has been removed from the registry
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether Done has been closed
func (s *Subscriber) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// trySend delivers rec without blocking; false means the buffer is full
func (s *Subscriber) trySend(rec types.LogRecord) bool {
	select {
	case s.ch <- rec:
		return true
	default:
		return false
	}
}

// Registry tracks live subscribers
type Registry struct {
	mu   sync.Mutex
	subs map[string]*Subscriber
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscriber)}
}

// Register creates and adds a subscriber with the given channel buffer
func (r *Registry) Register(buffer int) *Subscriber {
	sub := newSubscriber(buffer)

	r.mu.Lock()
	r.subs[sub.id] = sub
	r.mu.Unlock()

	return sub
}

// Unregister removes sub and closes its done signal. It is idempotent and
// returns true only for the call that actually removed it.
func (r *Registry) Unregister(sub *Subscriber) bool {
	r.mu.Lock()
	_, ok := r.subs[sub.id]
	if ok {
		delete(r.subs, sub.id)
	}
	r.mu.Unlock()

	sub.close()
	return ok
}

// List returns a snapshot of the current subscribers
func (r *Registry) List() []*Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// Len returns the number of registered subscribers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
