package health

import (
	"context"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeGRPC CheckType = "grpc"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Config controls how Probe retries a checker
type Config struct {
	// Interval is the time between attempts
	Interval time.Duration

	// Timeout bounds a single attempt
	Timeout time.Duration

	// Retries is the number of consecutive failures before giving up
	Retries int
}

// DefaultConfig returns the settings used by `whisker healthcheck`
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}

// Status tracks consecutive results of one checker
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastResult           Result

	// Healthy stays true until Retries consecutive failures
	Healthy bool
}

// NewStatus creates a Status that assumes health until proven otherwise
func NewStatus() *Status {
	return &Status{Healthy: true}
}

// Update records a new result
func (s *Status) Update(result Result, config Config) {
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// Probe runs checker until it succeeds once or fails Retries times in a row.
// It returns the last result.
func Probe(ctx context.Context, checker Checker, config Config) Result {
	if config.Retries <= 0 {
		config.Retries = 1
	}

	status := NewStatus()
	for {
		attemptCtx := ctx
		cancel := func() {}
		if config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		}
		result := checker.Check(attemptCtx)
		cancel()

		status.Update(result, config)
		if result.Healthy || !status.Healthy {
			return result
		}

		select {
		case <-ctx.Done():
			return Result{
				Healthy:   false,
				Message:   ctx.Err().Error(),
				CheckedAt: time.Now(),
			}
		case <-time.After(config.Interval):
		}
	}
}
