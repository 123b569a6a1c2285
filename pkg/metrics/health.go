package metrics

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Report is the JSON body served by /health and /ready
type Report struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

type component struct {
	healthy bool
	message string
	updated time.Time
}

// registry holds the last reported state of each named component.
// Critical components gate health and readiness; the rest only degrade.
type registry struct {
	mu         sync.RWMutex
	components map[string]component
	critical   []string
	started    time.Time
	version    string
}

func newRegistry(critical ...string) *registry {
	return &registry{
		components: make(map[string]component),
		critical:   critical,
		started:    time.Now(),
	}
}

var components = newRegistry("site")

// SetCritical replaces the set of components that gate health and readiness
func SetCritical(names ...string) {
	components.mu.Lock()
	components.critical = slices.Clone(names)
	components.mu.Unlock()
}

// SetVersion sets the version reported by both endpoints
func SetVersion(version string) {
	components.mu.Lock()
	components.version = version
	components.mu.Unlock()
}

// RegisterComponent records the initial state of a component
func RegisterComponent(name string, healthy bool, message string) {
	components.mu.Lock()
	components.components[name] = component{healthy: healthy, message: message, updated: time.Now()}
	components.mu.Unlock()
}

// UpdateComponent records a new state for a component, registering it if needed
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

func (r *registry) report(status string) Report {
	return Report{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]string, len(r.components)),
		Version:    r.version,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
	}
}

// GetHealth summarises every registered component. Status is "healthy",
// "degraded" when only non-critical components fail, or "unhealthy".
func GetHealth() Report {
	components.mu.RLock()
	defer components.mu.RUnlock()

	rep := components.report("healthy")
	for name, c := range components.components {
		if c.healthy {
			rep.Components[name] = "healthy"
			continue
		}
		rep.Components[name] = "unhealthy: " + c.message
		switch {
		case slices.Contains(components.critical, name):
			rep.Status = "unhealthy"
		case rep.Status == "healthy":
			rep.Status = "degraded"
		}
	}
	return rep
}

// GetReadiness reports "ready" once every critical component is registered
// and healthy.
func GetReadiness() Report {
	components.mu.RLock()
	defer components.mu.RUnlock()

	rep := components.report("ready")
	for _, name := range components.critical {
		c, ok := components.components[name]
		switch {
		case !ok:
			rep.Components[name] = "not registered"
			rep.Message = "waiting for " + name + " initialization"
		case !c.healthy:
			rep.Components[name] = "not ready: " + c.message
			rep.Message = "waiting for " + name
		default:
			rep.Components[name] = "ready"
			continue
		}
		rep.Status = "not_ready"
	}
	return rep
}

func serveReport(w http.ResponseWriter, rep Report, ok bool) {
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}

// HealthHandler serves GetHealth, answering 503 only when unhealthy
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rep := GetHealth()
		serveReport(w, rep, rep.Status != "unhealthy")
	}
}

// ReadyHandler serves GetReadiness, answering 503 until ready
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rep := GetReadiness()
		serveReport(w, rep, rep.Status == "ready")
	}
}
