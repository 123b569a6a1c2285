package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
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

	// Name is the health component the checker reports as
	Name() string
}

// Config contains the probe schedule
type Config struct {
	// Interval is the time between health checks
	Interval time.Duration

	// Timeout is the maximum time to wait for a health check to complete.
	// Store probes queue behind the request throttle, so this must cover
	// the queue wait as well.
	Timeout time.Duration

	// Retries is the number of consecutive failures before marking as unhealthy
	Retries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		Retries:  3,
	}
}

// Status tracks the current health of one component
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastResult           Result
	Healthy              bool
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		Healthy: true, // Assume healthy until proven otherwise
	}
}

// Update updates the status based on a new health check result
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

// Monitor runs a checker on a schedule and publishes the outcome to the
// metrics health registry
type Monitor struct {
	checker Checker
	config  Config
	logger  zerolog.Logger

	mu     sync.Mutex
	status *Status
}

// NewMonitor creates a monitor for checker
func NewMonitor(checker Checker, config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Retries < 1 {
		config.Retries = 1
	}
	return &Monitor{
		checker: checker,
		config:  config,
		logger:  log.WithComponent("health").With().Str("check", checker.Name()).Logger(),
		status:  NewStatus(),
	}
}

// Status returns a copy of the current status
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.status
}

// CheckNow runs one probe and publishes the result
func (m *Monitor) CheckNow(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	result := m.checker.Check(ctx)
	cancel()

	m.mu.Lock()
	was := m.status.Healthy
	m.status.Update(result, m.config)
	st := *m.status
	m.mu.Unlock()

	metrics.UpdateComponent(m.checker.Name(), st.Healthy, result.Message)
	switch {
	case was && !st.Healthy:
		m.logger.Warn().Str("message", result.Message).Int("failures", st.ConsecutiveFailures).Msg("Component became unhealthy")
	case !was && st.Healthy:
		m.logger.Info().Msg("Component recovered")
	default:
		m.logger.Debug().Bool("healthy", result.Healthy).Dur("duration", result.Duration).Msg("Health check completed")
	}
	return st
}

// Run probes every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	metrics.RegisterComponent(m.checker.Name(), true, "not checked yet")
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}
