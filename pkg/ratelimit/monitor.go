package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for budget tracking.
var (
	budgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghstats_budget_remaining",
		Help: "Requests remaining in the most constrained GitHub rate limit window",
	})

	budgetChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_budget_checks_total",
		Help: "Budget queries by outcome",
	}, []string{"outcome"})

	budgetWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghstats_budget_waits_total",
		Help: "Total number of calls suspended until the rate limit window reset",
	})

	budgetWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghstats_budget_wait_seconds",
		Help:    "Time spent waiting for the rate limit window to reset",
		Buckets: []float64{1, 5, 30, 60, 300, 900, 3600},
	})
)

// BudgetSource fetches the current upstream quota.
type BudgetSource interface {
	FetchBudget(ctx context.Context) (BudgetState, error)
}

// Config holds the monitor configuration.
type Config struct {
	// CheckInterval is the minimum time between two budget queries.
	CheckInterval time.Duration

	// SafetyMargin is added to the reset time before unblocking.
	SafetyMargin time.Duration

	// WarningThreshold logs a warning when remaining requests drop below it.
	WarningThreshold int

	// RequestsPerSecond paces requests on the client side. Zero disables pacing.
	RequestsPerSecond float64

	// Burst is the pacing limiter burst size.
	Burst int
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:    DefaultCheckInterval,
		SafetyMargin:     DefaultSafetyMargin,
		WarningThreshold: DefaultWarningThreshold,
		Burst:            10,
	}
}

// Monitor gates requests on the remaining upstream budget.
// It is safe for concurrent use.
type Monitor struct {
	source  BudgetSource
	config  Config
	limiter *rate.Limiter
	logger  zerolog.Logger

	sleep Sleeper
	now   func() time.Time

	mu        sync.Mutex
	state     BudgetState
	lastCheck time.Time
}

// NewMonitor creates a budget monitor reading from source.
func NewMonitor(source BudgetSource, cfg Config, logger zerolog.Logger) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.SafetyMargin < 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}

	m := &Monitor{
		source: source,
		config: cfg,
		logger: logger,
		sleep:  SleepContext,
		now:    time.Now,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return m
}

// SetClock replaces the time source and sleeper (for testing).
func (m *Monitor) SetClock(now func() time.Time, sleep Sleeper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.sleep = sleep
}

// State returns the last observed budget state.
func (m *Monitor) State() BudgetState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureBudget blocks while the upstream budget is exhausted.
// Budget query failures are logged and never returned; the only errors
// are context cancellation while waiting.
func (m *Monitor) EnsureBudget(ctx context.Context) error {
	m.mu.Lock()
	now := m.now()
	if m.lastCheck.IsZero() || now.Sub(m.lastCheck) >= m.config.CheckInterval {
		m.refresh(ctx, now)
	}
	wait := m.waitFor(m.now())
	sleep := m.sleep
	m.mu.Unlock()

	if wait > 0 {
		m.logger.Warn().
			Dur("wait_duration", wait).
			Msg("Request budget exhausted - waiting for reset")
		budgetWaitsTotal.Inc()
		budgetWaitSeconds.Observe(wait.Seconds())

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	if m.limiter != nil {
		return m.limiter.Wait(ctx)
	}
	return nil
}

// waitFor returns how long callers must hold off at now: until the
// reset of an exhausted budget plus the safety margin. Must be called
// with mu held.
func (m *Monitor) waitFor(now time.Time) time.Duration {
	if m.state.CheckedAt.IsZero() || !m.state.Exhausted() {
		return 0
	}
	return m.state.TimeUntilReset(now.Add(-m.config.SafetyMargin))
}

// refresh must be called with mu held.
func (m *Monitor) refresh(ctx context.Context, now time.Time) {
	m.lastCheck = now

	state, err := m.source.FetchBudget(ctx)
	if err != nil {
		budgetChecksTotal.WithLabelValues("error").Inc()
		m.logger.Warn().Err(err).Msg("Budget check failed - continuing optimistically")
		return
	}
	budgetChecksTotal.WithLabelValues("ok").Inc()

	if state.CheckedAt.IsZero() {
		state.CheckedAt = now
	}
	m.state = state
	budgetRemaining.Set(float64(state.Remaining))

	switch {
	case state.Exhausted():
		m.logger.Error().
			Str("resource", state.Resource).
			Int("limit", state.Limit).
			Time("reset_at", state.ResetAt).
			Msg("Request budget exhausted")
	case state.BelowWarning(m.config.WarningThreshold):
		m.logger.Warn().
			Str("resource", state.Resource).
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Time("reset_at", state.ResetAt).
			Msg("Request budget running low")
	default:
		m.logger.Debug().
			Str("resource", state.Resource).
			Int("remaining", state.Remaining).
			Msg("Request budget updated")
	}
}
