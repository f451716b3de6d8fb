package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuemby/whisker/pkg/log"
)

const (
	// maxLimiters caps the per-client table before it is reset
	maxLimiters = 10000

	limiterCleanupInterval = time.Hour
)

// RateLimit configures per-client request limiting. A zero RPS disables it.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	config   RateLimit
	limiters map[string]*rate.Limiter
	mu       sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter for the given config
func NewRateLimiter(config RateLimit) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
		stopCh:   make(chan struct{}),
	}
}

// Allow reports whether a request from r may proceed
func (l *RateLimiter) Allow(r *http.Request) bool {
	if l.config.RequestsPerSecond <= 0 {
		return true
	}

	clientIP := getClientIP(r)

	l.mu.Lock()
	limiter, exists := l.limiters[clientIP]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)
		l.limiters[clientIP] = limiter
	}
	l.mu.Unlock()

	allowed := limiter.Allow()
	if !allowed {
		logger := log.WithComponent("api")
		logger.Warn().Str("client", clientIP).Msg("Rate limit exceeded")
	}
	return allowed
}

// Middleware rejects limited requests with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r) {
			w.Header().Set("Retry-After", "1")
			writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops every limiter once the table grows past maxLimiters
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.limiters) > maxLimiters {
		logger := log.WithComponent("api")
		logger.Info().Int("count", len(l.limiters)).Msg("Clearing rate limiters")
		l.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanupJob runs Cleanup hourly until Stop
func (l *RateLimiter) StartCleanupJob() {
	ticker := time.NewTicker(limiterCleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup job
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For wins
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
