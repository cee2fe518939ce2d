package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/github-stats/pkg/ratelimit"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghstats_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 3600},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Attempt ceilings per call site. The primary query is fatal when it
// fails, so it gets the most patience.
const (
	AttemptsPrimary       = 10
	AttemptsContributions = 5
	AttemptsSecondary     = 3
	AttemptsMetadata      = 2
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// InitialBackoff is the first backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff (before jitter).
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// MaxJitter is the upper bound of random time added to each backoff.
	MaxJitter time.Duration

	// RateLimitMargin is added to the provider reset time.
	RateLimitMargin time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        32 * time.Second,
		BackoffMultiplier: 2.0,
		MaxJitter:         1 * time.Second,
		RateLimitMargin:   5 * time.Second,
	}
}

// BudgetGate is consulted before every attempt.
type BudgetGate interface {
	EnsureBudget(ctx context.Context) error
}

// Executor runs an operation under a retry policy.
type Executor interface {
	Execute(ctx context.Context, label string, maxAttempts int, op func(ctx context.Context) error) error
}

// Policy retries operations according to their error class.
type Policy struct {
	gate   BudgetGate
	config RetryConfig
	logger zerolog.Logger

	sleep  ratelimit.Sleeper
	now    func() time.Time
	jitter func(max time.Duration) time.Duration
}

// NewPolicy creates a retry policy. gate may be nil.
func NewPolicy(gate BudgetGate, cfg RetryConfig, logger zerolog.Logger) *Policy {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2.0
	}
	return &Policy{
		gate:   gate,
		config: cfg,
		logger: logger,
		sleep:  ratelimit.SleepContext,
		now:    time.Now,
		jitter: randomJitter,
	}
}

// SetClock replaces the time source and sleeper (for testing).
func (p *Policy) SetClock(now func() time.Time, sleep ratelimit.Sleeper) {
	p.now = now
	p.sleep = sleep
}

// SetJitter replaces the jitter source (for testing).
func (p *Policy) SetJitter(jitter func(max time.Duration) time.Duration) {
	p.jitter = jitter
}

// Execute runs op until it succeeds, fails permanently, or maxAttempts
// attempts were made. A primary rate limit wait counts as an attempt.
func (p *Policy) Execute(ctx context.Context, label string, maxAttempts int, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastErr error
		cls     classification
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if p.gate != nil {
			if err := p.gate.EnsureBudget(ctx); err != nil {
				return fmt.Errorf("%s: %w: %v", label, ErrContextCancelled, err)
			}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Info().
					Str("operation", label).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if isContextError(ctx, err) {
			return fmt.Errorf("%s: %w: %v", label, ErrContextCancelled, err)
		}

		lastErr = err
		cls = classify(err)
		errorsTotal.WithLabelValues(string(cls.class)).Inc()

		if cls.class == ErrorClassPermanent {
			p.logger.Debug().
				Err(err).
				Str("operation", label).
				Msg("Permanent error - not retrying")
			return fmt.Errorf("%s: %w", label, err)
		}

		if attempt == maxAttempts {
			break
		}

		wait := p.waitFor(attempt, cls)
		retriesTotal.WithLabelValues(string(cls.class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(cls.class)).Observe(wait.Seconds())

		p.logger.Warn().
			Err(err).
			Str("operation", label).
			Str("error_class", string(cls.class)).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		if err := p.sleep(ctx, wait); err != nil {
			p.logger.Warn().
				Str("operation", label).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%s: %w: %v", label, ErrContextCancelled, err)
		}
	}

	retryExhaustedTotal.WithLabelValues(string(cls.class)).Inc()
	p.logger.Error().
		Err(lastErr).
		Str("operation", label).
		Str("error_class", string(cls.class)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return &RetryExhaustedError{
		Label:    label,
		Attempts: maxAttempts,
		Class:    cls.class,
		Err:      lastErr,
	}
}

// waitFor returns how long to sleep after the given failed attempt.
func (p *Policy) waitFor(attempt int, cls classification) time.Duration {
	switch cls.class {
	case ErrorClassRateLimit:
		if !cls.resetAt.IsZero() {
			wait := cls.resetAt.Sub(p.now()) + p.config.RateLimitMargin
			if wait < p.config.RateLimitMargin {
				wait = p.config.RateLimitMargin
			}
			return wait
		}
	case ErrorClassSecondaryRateLimit:
		if cls.retryAfter > 0 {
			return cls.retryAfter
		}
	}
	return p.backoff(attempt)
}

// backoff is InitialBackoff doubled per attempt plus up to MaxJitter of
// random time, capped at MaxBackoff. Jitter is added before the cap so
// waits never shrink from one attempt to the next.
func (p *Policy) backoff(attempt int) time.Duration {
	backoff := p.config.InitialBackoff
	for i := 1; i < attempt && backoff < p.config.MaxBackoff; i++ {
		backoff = time.Duration(float64(backoff) * p.config.BackoffMultiplier)
	}

	if p.config.MaxJitter > 0 && p.jitter != nil {
		backoff += p.jitter(p.config.MaxJitter)
	}
	if backoff > p.config.MaxBackoff {
		backoff = p.config.MaxBackoff
	}
	return backoff
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Do runs op through exec and returns its value. On failure the zero
// value of T is returned with the error.
func Do[T any](ctx context.Context, exec Executor, label string, maxAttempts int, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := exec.Execute(ctx, label, maxAttempts, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
