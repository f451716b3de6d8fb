package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/types"
)

// DefaultInterval is the time between synthetic records
const DefaultInterval = 3 * time.Second

// Emitter receives custom records; *events.Broker implements it
type Emitter interface {
	Emit(level types.Level, message string, fields map[string]any)
}

var messages = []string{
	"- Thread 1 - Mouse AI service initialized",
	"- Thread 2 - Processing mouse movement request",
	"- Thread 1 - Calculating optimal path",
	"- Thread 3 - Mouse reached cheese position",
	"- Thread 2 - Updating mouse state",
	"- Thread 1 - Checking for obstacles",
	"- Thread 3 - Mouse energy level updated",
	"- Thread 2 - Pathfinding algorithm completed",
	"- Thread 1 - Mouse position updated",
	"- Thread 3 - Simulation step completed",
	"- Thread 2 - Mouse AI decision made",
	"- Thread 1 - Environment analysis finished",
	"- Thread 3 - Mouse health status checked",
	"- Thread 2 - Movement validation passed",
	"- Thread 1 - Next move calculated",
	"- Thread 3 - Mouse happiness increased",
	"- Thread 2 - Cheese detection successful",
	"- Thread 1 - Collision avoidance active",
	"- Thread 3 - Mouse performance metrics updated",
	"- Thread 2 - AI learning algorithm running",
}

var levels = []types.Level{types.LevelInfo, types.LevelDebug, types.LevelWarning}

// Generator periodically emits synthetic simulation records
type Generator struct {
	sink Emitter

	mu       sync.Mutex
	cron     *cron.Cron
	interval time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	logger zerolog.Logger
}

// New creates a stopped generator. A nil rng uses a randomly seeded one.
func New(sink Emitter, interval time.Duration, rng *rand.Rand) *Generator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{
		sink:     sink,
		interval: interval,
		rng:      rng,
		logger:   log.WithComponent("generator"),
	}
}

// Start schedules the generator; it is a no-op when already running
func (g *Generator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startLocked()
}

func (g *Generator) startLocked() {
	if g.cron != nil {
		return
	}

	c := cron.New(
		cron.WithLogger(cronLogger{g.logger}),
		cron.WithChain(cron.Recover(cronLogger{g.logger}), cron.SkipIfStillRunning(cronLogger{g.logger})),
	)
	c.Schedule(cron.Every(g.interval), cron.FuncJob(g.tick))
	c.Start()
	g.cron = c

	g.logger.Info().Dur("interval", g.interval).Msg("Log generator started")
}

// Stop unschedules the generator and waits for a running tick to finish,
// or for ctx to expire
func (g *Generator) Stop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopLocked(ctx)
}

func (g *Generator) stopLocked(ctx context.Context) error {
	if g.cron == nil {
		return nil
	}

	done := g.cron.Stop()
	g.cron = nil

	select {
	case <-done.Done():
		g.logger.Info().Msg("Log generator stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for generator to stop: %w", ctx.Err())
	}
}

// Reconfigure applies new settings, restarting the schedule if needed
func (g *Generator) Reconfigure(ctx context.Context, enabled bool, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	running := g.cron != nil
	if running && (!enabled || interval != g.interval) {
		if err := g.stopLocked(ctx); err != nil {
			return err
		}
	}
	g.interval = interval
	if enabled {
		g.startLocked()
	}
	return nil
}

// Running reports whether the generator is scheduled
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cron != nil
}

// Interval returns the current interval
func (g *Generator) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interval
}

func (g *Generator) tick() {
	level, message, fields := g.next()
	g.sink.Emit(level, message, fields)
	metrics.GeneratedRecords.Inc()
}

// next builds one synthetic record
func (g *Generator) next() (types.Level, string, map[string]any) {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()

	message := messages[g.rng.IntN(len(messages))]
	level := levels[g.rng.IntN(len(levels))]

	fields := map[string]any{
		"simulation_id": fmt.Sprintf("sim_%d", 1000+g.rng.IntN(9000)),
		"mouse_id":      fmt.Sprintf("mouse_%d", 1+g.rng.IntN(3)),
		"turn":          1 + g.rng.IntN(100),
		"performance": map[string]any{
			"cpu_usage":     g.uniform(10, 80),
			"memory_usage":  g.uniform(20, 90),
			"response_time": g.uniform(50, 200),
		},
	}
	return level, message, fields
}

// uniform returns a value in [lo, hi] rounded to one decimal
func (g *Generator) uniform(lo, hi float64) float64 {
	v := lo + g.rng.Float64()*(hi-lo)
	return math.Round(v*10) / 10
}

// cronLogger routes cron's own messages to zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
