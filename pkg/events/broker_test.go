package events

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/types"
)

func drainSubscriber(sub *Subscriber) []types.LogRecord {
	var out []types.LogRecord
	for {
		select {
		case r := <-sub.ch:
			out = append(out, r)
		default:
			return out
		}
	}
}

func TestBrokerIngestStoresAndDelivers(t *testing.T) {
	b := NewBroker(Config{Capacity: 10})
	s1 := b.Attach()
	s2 := b.Attach()

	b.Ingest(rec("one"))
	b.Ingest(rec("two"))

	assert.Equal(t, []string{"one", "two"}, messages(b.History(0)))
	assert.Equal(t, []string{"one", "two"}, messages(drainSubscriber(s1.sub)))
	assert.Equal(t, []string{"one", "two"}, messages(drainSubscriber(s2.sub)))
}

func TestBrokerIngestStampsTimestampAndKind(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	b := NewBroker(Config{Clock: clock})

	b.Ingest(types.LogRecord{Message: "no time"})

	history := b.History(1)
	require.Len(t, history, 1)
	assert.Equal(t, clock.Now(), history[0].Timestamp)
	assert.Equal(t, types.KindLog, history[0].Kind)
}

func TestBrokerIngestWithoutSubscribers(t *testing.T) {
	b := NewBroker(Config{Capacity: 3})
	for i := 0; i < 5; i++ {
		b.Ingest(rec(fmt.Sprintf("m%d", i)))
	}

	stats := b.Stats()
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 3, stats.Capacity)
	assert.Equal(t, 0, stats.ActiveSubscribers)
	assert.Equal(t, []string{"m2", "m3", "m4"}, messages(b.History(0)))
}

func TestBrokerDropsOverflowingSubscriber(t *testing.T) {
	b := NewBroker(Config{SubscriberBuffer: 2})
	slow := b.Attach()
	fast := b.Attach()

	b.Ingest(rec("a"))
	b.Ingest(rec("b"))
	drainSubscriber(fast.sub)

	b.Ingest(rec("c"))

	assert.True(t, slow.sub.Closed())
	assert.False(t, fast.sub.Closed())
	assert.Equal(t, 1, b.SubscriberCount())
	assert.Equal(t, []string{"c"}, messages(drainSubscriber(fast.sub)))
	assert.Equal(t, []string{"a", "b"}, messages(drainSubscriber(slow.sub)))
}

func TestBrokerDropsGoneSubscriber(t *testing.T) {
	b := NewBroker(Config{})
	sub := b.registry.Register(4)
	sub.close()

	b.Ingest(rec("a"))

	assert.Equal(t, 0, b.SubscriberCount())
	assert.Empty(t, drainSubscriber(sub))
}

func TestBrokerDeliversCopies(t *testing.T) {
	b := NewBroker(Config{})
	s1 := b.Attach()
	s2 := b.Attach()

	b.Ingest(types.LogRecord{Message: "m", Fields: map[string]any{
		"mouse_id": "mouse_1",
		"path":     []any{"a", map[string]any{"k": "v"}},
	}})

	got := drainSubscriber(s1.sub)
	require.Len(t, got, 1)
	got[0].Fields["mouse_id"] = "mutated"
	path := got[0].Fields["path"].([]any)
	path[0] = "mutated"
	path[1].(map[string]any)["k"] = "mutated"

	want := []any{"a", map[string]any{"k": "v"}}

	other := drainSubscriber(s2.sub)
	require.Len(t, other, 1)
	assert.Equal(t, "mouse_1", other[0].Fields["mouse_id"])
	assert.Equal(t, want, other[0].Fields["path"])

	held := b.History(1)[0]
	assert.Equal(t, "mouse_1", held.Fields["mouse_id"])
	assert.Equal(t, want, held.Fields["path"])
}

// stalledWriter blocks every write until release is closed
type stalledWriter struct {
	entered chan struct{}
	once    sync.Once
	release chan struct{}
}

func (w *stalledWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.entered) })
	<-w.release
	return len(p), nil
}

func TestBrokerIngestNotBlockedByLogWriter(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	w := &stalledWriter{entered: make(chan struct{}), release: make(chan struct{})}
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: w})

	b := NewBroker(Config{SubscriberBuffer: 1})
	slow := b.Attach()
	b.Ingest(rec("fills buffer"))

	overflowDone := make(chan struct{})
	go func() {
		defer close(overflowDone)
		b.Ingest(rec("overflows"))
	}()

	select {
	case <-w.entered:
	case <-time.After(time.Second):
		t.Fatal("drop was never logged")
	}

	ingested := make(chan struct{})
	go func() {
		defer close(ingested)
		b.Ingest(rec("unrelated"))
	}()

	select {
	case <-ingested:
	case <-time.After(time.Second):
		t.Fatal("ingest blocked behind a stalled log write")
	}

	close(w.release)
	<-overflowDone

	assert.True(t, slow.sub.Closed())
	assert.Equal(t, []string{"fills buffer", "overflows", "unrelated"}, messages(b.History(0)))
}

func TestBrokerGlobalOrder(t *testing.T) {
	const producers, perProducer = 4, 200

	b := NewBroker(Config{Capacity: producers * perProducer, SubscriberBuffer: producers * perProducer})
	s1 := b.Attach()
	s2 := b.Attach()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Ingest(types.LogRecord{Message: fmt.Sprintf("p%d-%d", p, i), Fields: map[string]any{"p": p, "seq": i}})
			}
		}(p)
	}
	wg.Wait()

	got1 := drainSubscriber(s1.sub)
	got2 := drainSubscriber(s2.sub)
	require.Len(t, got1, producers*perProducer)
	assert.Equal(t, messages(got1), messages(got2))
	assert.Equal(t, messages(b.History(0)), messages(got1))

	last := make(map[int]int)
	for p := 0; p < producers; p++ {
		last[p] = -1
	}
	for _, r := range got1 {
		p, seq := r.Fields["p"].(int), r.Fields["seq"].(int)
		assert.Greater(t, seq, last[p], "producer %d out of order", p)
		last[p] = seq
	}
}

func TestBrokerAttachReplayHasNoGapOrDuplicate(t *testing.T) {
	b := NewBroker(Config{ReplayCount: 1000, SubscriberBuffer: 1000})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Ingest(types.LogRecord{Message: "m", Fields: map[string]any{"seq": i}})
		}
	}()

	time.Sleep(time.Millisecond)
	s := b.Attach()
	wg.Wait()

	all := append(s.replay, drainSubscriber(s.sub)...)
	require.NotEmpty(t, all)

	first := all[0].Fields["seq"].(int)
	for i, r := range all {
		assert.Equal(t, first+i, r.Fields["seq"].(int))
	}
	assert.Equal(t, 499, all[len(all)-1].Fields["seq"].(int))
}

func TestBrokerEmit(t *testing.T) {
	b := NewBroker(Config{})
	b.Emit(types.LevelWarning, "cheese found", map[string]any{"mouse_id": "mouse_2"})

	history := b.History(1)
	require.Len(t, history, 1)
	assert.Equal(t, types.KindCustom, history[0].Kind)
	assert.Equal(t, types.LevelWarning, history[0].Level)
	assert.Equal(t, "mouse_2", history[0].Fields["mouse_id"])
}

func TestBrokerStats(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBroker(Config{Capacity: 5, Clock: clock})
	b.Attach()

	start := clock.Now()
	b.Ingest(rec("a"))
	clock.Advance(time.Second)
	b.Ingest(rec("b"))

	stats := b.Stats()
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 5, stats.Capacity)
	assert.Equal(t, 1, stats.ActiveSubscribers)
	assert.Equal(t, start, stats.Oldest)
	assert.Equal(t, start.Add(time.Second), stats.Newest)
	assert.Equal(t, 2, b.BufferedRecords())
}
