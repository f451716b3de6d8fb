package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	time.Sleep(20 * time.Millisecond)
	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_duration_seconds",
		Help: "Test duration histogram",
	})

	timer := NewTimer()
	timer.ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "test_duration_vec_seconds",
			Help: "Test duration histogram vec",
		},
		[]string{"route"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "/api/move")
	timer.ObserveDurationVec(histogramVec, "/api/logs/history")

	assert.Equal(t, 2, testutil.CollectAndCount(histogramVec))
}

type fakeFeed struct {
	records, subscribers int
}

func (f fakeFeed) BufferedRecords() int { return f.records }
func (f fakeFeed) SubscriberCount() int { return f.subscribers }

func TestCollectorSamplesFeed(t *testing.T) {
	c := NewCollector(fakeFeed{records: 42, subscribers: 3}, time.Hour)
	c.collect()

	assert.Equal(t, 42.0, testutil.ToFloat64(LogBufferRecords))
	assert.Equal(t, 3.0, testutil.ToFloat64(StreamSubscribers))

	c.Start()
	c.Stop()
	c.Stop()
}
