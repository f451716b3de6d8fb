package events

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustinxie/lockfree"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/types"
)

// MaxPendingCaptures bounds the capture queue; lines beyond it are dropped
const MaxPendingCaptures = 10000

// Ingester accepts records; *Broker implements it
type Ingester interface {
	Ingest(rec types.LogRecord)
}

// CaptureWriter mirrors the process's own zerolog output into the feed.
//
// Writes happen on the logging goroutine, which may be holding the broker's
// ingest mutex, so WriteLevel only parses the line and pushes it onto a
// lock-free queue. A pump goroutine started by Start feeds the queue into
// the broker.
type CaptureWriter struct {
	sink    Ingester
	queue   lockfree.Queue
	pending atomic.Int64
	dropped atomic.Uint64
	parsers fastjson.ParserPool

	wake     chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// NewCaptureWriter creates a writer feeding sink
func NewCaptureWriter(sink Ingester) *CaptureWriter {
	return &CaptureWriter{
		sink:   sink,
		queue:  lockfree.NewQueue(),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the pump goroutine
func (c *CaptureWriter) Start() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return
	}
	c.started = true
	go c.pump()
}

// Stop flushes what is queued and waits for the pump to exit
func (c *CaptureWriter) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	c.startMu.Lock()
	started := c.started
	c.startMu.Unlock()
	if started {
		<-c.doneCh
	}
}

// Dropped returns how many lines were discarded because the queue was full
func (c *CaptureWriter) Dropped() uint64 {
	return c.dropped.Load()
}

// Write implements io.Writer; the level is read from the line itself
func (c *CaptureWriter) Write(p []byte) (int, error) {
	return c.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter. It never fails, so the primary
// log output is never affected by the feed.
func (c *CaptureWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level != zerolog.NoLevel && level < zerolog.InfoLevel {
		return len(p), nil
	}

	rec, ok := c.parse(p)
	if !ok {
		return len(p), nil
	}

	if c.pending.Load() >= MaxPendingCaptures {
		c.dropped.Add(1)
		return len(p), nil
	}
	c.pending.Add(1)
	c.queue.Enque(rec)

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return len(p), nil
}

// parse maps one zerolog JSON line onto a log record
func (c *CaptureWriter) parse(p []byte) (types.LogRecord, bool) {
	parser := c.parsers.Get()
	defer c.parsers.Put(parser)

	v, err := parser.ParseBytes(p)
	if err != nil {
		return types.LogRecord{}, false
	}
	obj, err := v.Object()
	if err != nil {
		return types.LogRecord{}, false
	}

	rec := types.LogRecord{Kind: types.KindLog}
	level := types.LevelInfo
	fields := make(map[string]any)

	obj.Visit(func(key []byte, item *fastjson.Value) {
		k := string(key)
		switch k {
		case zerolog.LevelFieldName:
			level = types.ParseLevel(string(item.GetStringBytes()), types.LevelInfo)
		case zerolog.MessageFieldName:
			rec.Message = string(item.GetStringBytes())
		case zerolog.TimestampFieldName:
			if ts, err := time.Parse(time.RFC3339Nano, string(item.GetStringBytes())); err == nil {
				rec.Timestamp = ts
			}
		case zerolog.CallerFieldName:
			rec.Module, rec.Line = splitCaller(string(item.GetStringBytes()))
		case log.FunctionFieldName:
			rec.Function = string(item.GetStringBytes())
		default:
			if !types.IsReservedKey(k) {
				fields[k] = types.ValueOf(item)
			}
		}
	})

	if level == types.LevelDebug {
		return types.LogRecord{}, false
	}
	rec.Level = level
	if len(fields) > 0 {
		rec.Fields = fields
	}
	return rec, true
}

// splitCaller turns "path/to/server.go:42" into ("server", 42)
func splitCaller(caller string) (string, int) {
	file, line := caller, 0
	if i := strings.LastIndexByte(caller, ':'); i >= 0 {
		file = caller[:i]
		if n, err := strconv.Atoi(caller[i+1:]); err == nil {
			line = n
		}
	}
	return strings.TrimSuffix(filepath.Base(file), ".go"), line
}

func (c *CaptureWriter) pump() {
	defer close(c.doneCh)

	for {
		c.drain()
		select {
		case <-c.wake:
		case <-c.stopCh:
			c.drain()
			return
		}
	}
}

func (c *CaptureWriter) drain() {
	for {
		item := c.queue.Deque()
		if item == nil {
			return
		}
		c.pending.Add(-1)

		rec, ok := item.(types.LogRecord)
		if !ok {
			continue
		}
		c.sink.Ingest(rec)
		metrics.LogsCaptured.Inc()
	}
}
