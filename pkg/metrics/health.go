package metrics

import (
	"encoding/json"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"
)

// Component names reported by whisker
const (
	ComponentBroker  = "broker"
	ComponentHTTP    = "http"
	ComponentGRPC    = "grpc"
	ComponentJournal = "journal"
)

// Overall states reported by /health and /ready
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// DefaultCriticalComponents must be healthy for /ready to succeed
var DefaultCriticalComponents = []string{ComponentBroker, ComponentHTTP}

// FeedStatus is the log feed snapshot included in /health
type FeedStatus struct {
	Records     int `json:"records"`
	Subscribers int `json:"subscribers"`
}

// HealthStatus is the body of /health and /ready
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Feed       *FeedStatus       `json:"feed,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth tracks the health of a single component
type ComponentHealth struct {
	Healthy bool
	Message string
	Updated time.Time
}

// healthRegistry holds component states. An unhealthy critical component
// makes the process unhealthy; any other unhealthy component only degrades it.
type healthRegistry struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   []string
	feed       FeedSource
	version    string
	startTime  time.Time
}

func newHealthRegistry() *healthRegistry {
	return &healthRegistry{
		components: make(map[string]ComponentHealth),
		critical:   slices.Clone(DefaultCriticalComponents),
		startTime:  time.Now(),
	}
}

var registry = newHealthRegistry()

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.version = version
}

// SetCriticalComponents replaces the set of components readiness waits for
func SetCriticalComponents(names ...string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.critical = slices.Clone(names)
}

// SetFeedSource makes /health report the log feed counts
func SetFeedSource(source FeedSource) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.feed = source
}

// RegisterComponent records the state of a component
func RegisterComponent(name string, healthy bool, message string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.components[name] = ComponentHealth{
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// UpdateComponent is RegisterComponent for a component already known
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// Component returns the last recorded state of name
func Component(name string) (ComponentHealth, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	comp, ok := registry.components[name]
	return comp, ok
}

// GetHealth returns the overall health status
func GetHealth() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	status := StatusHealthy
	components := make(map[string]string, len(registry.components))

	names := make([]string, 0, len(registry.components))
	for name := range registry.components {
		names = append(names, name)
	}
	sort.Strings(names)

	var message string
	for _, name := range names {
		comp := registry.components[name]
		if comp.Healthy {
			components[name] = StatusHealthy
			continue
		}

		components[name] = StatusUnhealthy + ": " + comp.Message
		if slices.Contains(registry.critical, name) {
			status = StatusUnhealthy
			message = name + " is unhealthy"
		} else if status == StatusHealthy {
			status = StatusDegraded
			message = name + " is degraded"
		}
	}

	health := HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    registry.version,
		Uptime:     time.Since(registry.startTime).Round(time.Second).String(),
	}
	if registry.feed != nil {
		health.Feed = &FeedStatus{
			Records:     registry.feed.BufferedRecords(),
			Subscribers: registry.feed.SubscriberCount(),
		}
	}
	return health
}

// GetReadiness reports whether every critical component is registered and
// healthy
func GetReadiness() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	status := StatusReady
	message := ""
	components := make(map[string]string, len(registry.critical))

	for _, name := range registry.critical {
		comp, exists := registry.components[name]
		switch {
		case !exists:
			status = StatusNotReady
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		case !comp.Healthy:
			status = StatusNotReady
			message = "waiting for " + name
			components[name] = "not ready: " + comp.Message
		default:
			components[name] = StatusReady
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    registry.version,
	}
}

func writeHealth(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// HealthHandler serves /health. Degraded still answers 200.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()

		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, health)
	}
}

// ReadyHandler serves /ready
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()

		code := http.StatusOK
		if readiness.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, readiness)
	}
}

// LivenessHandler serves /live; it answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(registry.startTime).Round(time.Second).String(),
		})
	}
}
