package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrInvalidRepositoryKey is returned for keys not in owner/name form.
	ErrInvalidRepositoryKey = errors.New("invalid repository key")
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassRateLimit is the primary quota running out mid-call.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassSecondaryRateLimit is GitHub's abuse detection limit.
	ErrorClassSecondaryRateLimit ErrorClass = "secondary_rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassPermanent covers not found and unauthorized responses.
	ErrorClassPermanent ErrorClass = "permanent"

	// ErrorClassNotReady is a 202 for statistics still being computed.
	ErrorClassNotReady ErrorClass = "not_ready"

	// ErrorClassOther is everything else, including network errors.
	ErrorClassOther ErrorClass = "other"
)

// APIError is an HTTP failure surfaced by the GraphQL transport.
type APIError struct {
	StatusCode int
	Message    string

	// RateLimitRemaining is parsed from X-RateLimit-Remaining, -1 when absent.
	RateLimitRemaining int

	// RateLimitReset is parsed from X-RateLimit-Reset.
	RateLimitReset time.Time

	// RetryAfter is parsed from Retry-After.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("github API error (status %d): %s", e.StatusCode, e.Message)
}

// RetryExhaustedError reports the operation whose attempts ran out.
type RetryExhaustedError struct {
	Label    string
	Attempts int
	Class    ErrorClass
	Err      error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts (%s): %v",
		e.Label, ErrRetryExhausted, e.Attempts, e.Class, e.Err)
}

// Unwrap exposes the last underlying error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// Is matches ErrRetryExhausted.
func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// classification is the outcome of inspecting a failed attempt.
type classification struct {
	class ErrorClass

	// resetAt is the provider-declared quota reset, zero when unknown.
	resetAt time.Time

	// retryAfter is the provider-declared wait, zero when unknown.
	retryAfter time.Duration
}

// Classify returns the error class of err.
func Classify(err error) ErrorClass {
	return classify(err).class
}

// classify inspects err in precedence order: primary rate limit,
// secondary rate limit, server error, permanent, other.
func classify(err error) classification {
	var (
		rateErr     *github.RateLimitError
		abuseErr    *github.AbuseRateLimitError
		acceptedErr *github.AcceptedError
		respErr     *github.ErrorResponse
		apiErr      *APIError
	)

	switch {
	case errors.As(err, &rateErr):
		return classification{class: ErrorClassRateLimit, resetAt: rateErr.Rate.Reset.Time}
	case errors.As(err, &abuseErr):
		return classification{class: ErrorClassSecondaryRateLimit, retryAfter: abuseErr.GetRetryAfter()}
	case errors.As(err, &acceptedErr):
		return classification{class: ErrorClassNotReady}
	case errors.As(err, &apiErr):
		return classifyAPIError(apiErr)
	case errors.As(err, &respErr):
		if respErr.Response == nil {
			return classification{class: ErrorClassOther}
		}
		return classifyStatus(respErr.Response.StatusCode)
	}

	return classifyMessage(err)
}

func classifyAPIError(e *APIError) classification {
	limited := e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
	switch {
	case limited && e.RateLimitRemaining == 0:
		return classification{class: ErrorClassRateLimit, resetAt: e.RateLimitReset}
	case limited && e.RetryAfter > 0:
		return classification{class: ErrorClassSecondaryRateLimit, retryAfter: e.RetryAfter}
	case limited && strings.Contains(strings.ToLower(e.Message), "secondary rate limit"):
		return classification{class: ErrorClassSecondaryRateLimit}
	}
	return classifyStatus(e.StatusCode)
}

func classifyStatus(code int) classification {
	switch {
	case code == http.StatusAccepted:
		return classification{class: ErrorClassNotReady}
	case code == http.StatusTooManyRequests:
		return classification{class: ErrorClassSecondaryRateLimit}
	case code >= 500:
		return classification{class: ErrorClassServer}
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusNotFound:
		return classification{class: ErrorClassPermanent}
	default:
		return classification{class: ErrorClassOther}
	}
}

// classifyMessage handles GraphQL-level errors, which arrive as plain
// messages inside a 200 response.
func classifyMessage(err error) classification {
	if errors.Is(err, ErrInvalidRepositoryKey) {
		return classification{class: ErrorClassPermanent}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "secondary rate limit"), strings.Contains(msg, "abuse detection"):
		return classification{class: ErrorClassSecondaryRateLimit}
	case strings.Contains(msg, "rate limit"):
		return classification{class: ErrorClassRateLimit}
	case strings.Contains(msg, "could not resolve to"), strings.Contains(msg, "bad credentials"):
		return classification{class: ErrorClassPermanent}
	default:
		return classification{class: ErrorClassOther}
	}
}

// isContextError reports whether err came from ctx being done.
func isContextError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
