package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/mtbridge/terminal"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// DefaultInterval is the default health check interval.
	DefaultInterval = time.Second * 60
	// DefaultStopTimeout is the default bound on waiting for a running tick to finish.
	DefaultStopTimeout = time.Second * 5
)

// Pool defines the registry requirements of the health monitor.
type Pool interface {
	// HealthSummary probes every terminal and aggregates their health.
	HealthSummary(ctx context.Context) terminal.HealthSummary
	// AutoReconnectFailed reconnects terminals that are not connected.
	AutoReconnectFailed(ctx context.Context) []string
}

// MonitorConfig represents the configuration for the health monitor.
type MonitorConfig struct {
	// Pool represents the monitored terminal pool.
	Pool Pool
	// Interval is the time between health checks.
	Interval time.Duration
	// StopTimeout bounds how long stopping waits for an in-flight check.
	StopTimeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *MonitorConfig) Validate() error {
	var errs error

	if cfg.Pool == nil {
		errs = errors.Join(errs, fmt.Errorf("pool cannot be nil"))
	}
	if cfg.Interval < 0 {
		errs = errors.Join(errs, fmt.Errorf("interval cannot be negative"))
	}
	if cfg.StopTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("stop timeout cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Monitor periodically checks terminal health and reconnects failed terminals.
type Monitor struct {
	cfg       *MonitorConfig
	mtx       sync.Mutex
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ticks     atomic.Uint64
	logger    *zerolog.Logger
}

// NewMonitor initializes a new health monitor.
func NewMonitor(cfg *MonitorConfig) (*Monitor, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating monitor config: %w", err)
	}

	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	return &Monitor{cfg: cfg, logger: cfg.Logger}, nil
}

// tick runs a single health check.
func (m *Monitor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	m.ticks.Inc()

	summary := m.cfg.Pool.HealthSummary(ctx)
	if summary.ConnectedTerminals == summary.TotalTerminals {
		m.logger.Info().Msgf("health check: %d/%d terminals connected",
			summary.ConnectedTerminals, summary.TotalTerminals)
		return
	}

	m.logger.Warn().Msgf("health check: %d/%d terminals connected, status %s",
		summary.ConnectedTerminals, summary.TotalTerminals, summary.Status)

	if ctx.Err() != nil {
		return
	}

	recovered := m.cfg.Pool.AutoReconnectFailed(ctx)
	if len(recovered) > 0 {
		m.logger.Info().Msgf("auto-reconnected %d terminals: %v", len(recovered), recovered)
	}
}

// Ticks returns the number of health checks run.
func (m *Monitor) Ticks() uint64 {
	return m.ticks.Load()
}

// Start begins periodic health checks, stopping any running instance first.
// The first check runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.scheduler != nil {
		m.logger.Warn().Msg("health monitor already running, stopping previous instance")
		m.stop()
	}

	runCtx, cancel := context.WithCancel(ctx)
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(m.cfg.Interval).SingletonMode().Do(func() {
		m.tick(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("scheduling health check job: %w", err)
	}

	scheduler.StartAsync()
	m.scheduler = scheduler
	m.cancel = cancel

	m.logger.Info().Msgf("health monitor started, interval %s", m.cfg.Interval)

	return nil
}

// stop halts the scheduler, waiting at most the stop timeout for an
// in-flight check. The caller must hold the monitor lock.
func (m *Monitor) stop() {
	if m.scheduler == nil {
		return
	}

	m.cancel()

	done := make(chan struct{})
	scheduler := m.scheduler
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("health monitor stopped")
	case <-time.After(m.cfg.StopTimeout):
		m.logger.Warn().Msgf("health monitor did not stop within %s", m.cfg.StopTimeout)
	}

	m.scheduler = nil
	m.cancel = nil
}

// Stop halts periodic health checks. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.stop()
}

// IsRunning returns whether the monitor is scheduled.
func (m *Monitor) IsRunning() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.scheduler != nil && m.scheduler.IsRunning()
}
