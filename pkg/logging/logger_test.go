package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup_LevelThreshold(t *testing.T) {
	tests := []struct {
		level    LogLevel
		emit     func(zerolog.Logger, string)
		suppress func(zerolog.Logger, string)
	}{
		{
			level:    LevelDebug,
			emit:     func(l zerolog.Logger, m string) { l.Debug().Msg(m) },
			suppress: func(l zerolog.Logger, m string) { l.Trace().Msg(m) },
		},
		{
			level:    LevelInfo,
			emit:     func(l zerolog.Logger, m string) { l.Info().Msg(m) },
			suppress: func(l zerolog.Logger, m string) { l.Debug().Msg(m) },
		},
		{
			level:    LevelWarn,
			emit:     func(l zerolog.Logger, m string) { l.Warn().Msg(m) },
			suppress: func(l zerolog.Logger, m string) { l.Info().Msg(m) },
		},
		{
			level:    LevelError,
			emit:     func(l zerolog.Logger, m string) { l.Error().Msg(m) },
			suppress: func(l zerolog.Logger, m string) { l.Warn().Msg(m) },
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger, "Retry attempts exhausted")
			tt.suppress(logger, "Run phase changed")

			output := buf.String()
			if !strings.Contains(output, "Retry attempts exhausted") {
				t.Errorf("message at %s missing: %q", tt.level, output)
			}
			if strings.Contains(output, "Run phase changed") {
				t.Errorf("message below %s not filtered: %q", tt.level, output)
			}
		})
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Str("repository", "octocat/hello").Msg("Collection complete")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("pretty output should not be JSON: %q", output)
	}
	if !strings.Contains(output, "octocat/hello") || !strings.Contains(output, "Collection complete") {
		t.Errorf("pretty output missing field: %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := zerologLevel(tt.input); got != tt.expected {
				t.Errorf("zerologLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestComponentLoggers(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	clientLogger := NewLogger("github-client")
	clientLogger.Info().Msg("Pagination complete")
	runLogger := ForIdentity("collector", "octocat")
	runLogger.Info().Msg("Collection complete")

	output := buf.String()
	for _, want := range []string{
		`"component":"github-client"`,
		`"component":"collector"`,
		`"identity":"octocat"`,
		"Pagination complete",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %s, got %q", want, output)
		}
	}
}
