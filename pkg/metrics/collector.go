package metrics

import (
	"sync"
	"time"
)

// DefaultCollectInterval is how often gauges are resampled
const DefaultCollectInterval = 15 * time.Second

// FeedSource exposes the counts the collector samples
type FeedSource interface {
	BufferedRecords() int
	SubscriberCount() int
}

// Collector periodically resamples feed gauges so they stay accurate even
// when nothing is being ingested
type Collector struct {
	source   FeedSource
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(source FeedSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Collector) collect() {
	LogBufferRecords.Set(float64(c.source.BufferedRecords()))
	StreamSubscribers.Set(float64(c.source.SubscriberCount()))
}
