// Package ratelimit implements GitHub request budget tracking and request gating.
// It watches the remaining request quota reported by the rate limit endpoint
// and suspends callers once the quota is spent, until the provider resets it.
package ratelimit

import (
	"context"
	"time"
)

// Defaults for budget checks.
const (
	// DefaultCheckInterval is the minimum time between two budget queries.
	// Calls inside this window never touch the network.
	DefaultCheckInterval = 60 * time.Second

	// DefaultSafetyMargin is added on top of the provider reset time before
	// requests resume.
	DefaultSafetyMargin = 5 * time.Second

	// DefaultWarningThreshold emits a warning when remaining requests fall below it.
	DefaultWarningThreshold = 100
)

// BudgetState is a point-in-time view of the upstream request quota.
type BudgetState struct {
	// Resource is the quota bucket the numbers belong to ("core", "graphql").
	Resource string `json:"resource"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// Limit is the window ceiling.
	Limit int `json:"limit"`

	// ResetAt is when the provider refills the window.
	ResetAt time.Time `json:"reset_at"`

	// CheckedAt is when this state was fetched.
	CheckedAt time.Time `json:"checked_at"`
}

// Exhausted reports whether no requests are left.
func (s BudgetState) Exhausted() bool {
	return s.Remaining <= 0
}

// BelowWarning reports whether remaining requests fell under threshold.
func (s BudgetState) BelowWarning(threshold int) bool {
	return s.Remaining < threshold
}

// TimeUntilReset returns the duration from now until ResetAt.
// Returns 0 if the reset time has already passed.
func (s BudgetState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
