// Package logging configures the zerolog logger shared by the collector,
// the GitHub client and the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs phase changes, page fetches and budget refreshes.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs run summaries and recovered retries.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries, degraded repositories and low budget.
	LevelWarn LogLevel = "warn"

	// LevelError logs failed runs and exhausted retries only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name. The empty string selects info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch parsed {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForIdentity derives a component logger tagged with the identity
// being collected.
func ForIdentity(component, identity string) zerolog.Logger {
	logger := NewLogger(component)
	return logger.With().Str("identity", identity).Logger()
}

// Log Level Guidelines:
//
// Debug: run internals
//   - Phase transitions
//   - Repository pages fetched and cursor state
//   - Budget refreshes with a healthy remainder
//
// Info: normal operation
//   - Requests that succeeded after a retry
//   - Pagination and collection summaries
//
// Warn: degraded but continuing
//   - Retry attempts with their backoff
//   - Repositories skipped after exhausted retries
//   - Statistics that never left the not-ready state
//   - Request budget below the warning threshold
//
// Error: the run cannot produce a complete result
//   - Retry attempts exhausted
//   - Request budget exhausted
//   - Failed runs
//
// Context Fields:
//   - component: emitting component (collector, github-client, budget, retry)
//   - identity: login being collected
//   - operation: logical operation label of a request
//   - repository: owner/name key
//   - error_class: retry classification (rate_limit, server, not_ready, permanent, ...)
//   - attempt, max_attempts: retry position
//   - backoff, wait_duration: scheduled delays
//   - remaining, limit, reset_at: request budget
