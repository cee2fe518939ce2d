// Command github-stats collects statistics for a GitHub identity and
// writes the overview and languages cards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Sternrassler/github-stats/pkg/collector"
	"github.com/Sternrassler/github-stats/pkg/logging"
	"github.com/Sternrassler/github-stats/pkg/metrics"
	"github.com/Sternrassler/github-stats/pkg/render"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	cfg, err := LoadConfig(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
				logger.Error().Err(werr).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
				if err == nil {
					err = werr
				}
			}
		}()
	}

	logger.Info().
		Str("actor", cfg.Actor).
		Strs("excluded_repositories", cfg.Excluded).
		Strs("excluded_languages", cfg.ExcludedLangs).
		Bool("exclude_forked", cfg.ExcludeForked).
		Bool("detailed_breakdown", cfg.DetailedBreakdown).
		Msg("Starting collection")

	snapshot, err := collector.Collect(ctx, cfg.Actor, collector.Credentials{Token: cfg.Token}, cfg.Options())
	if err != nil {
		return fmt.Errorf("collect statistics: %w", err)
	}

	if err := printSummary(os.Stdout, snapshot); err != nil {
		return err
	}

	written, err := render.WriteAll(cfg.OutputDir, snapshot)
	if err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}
	logger.Info().Strs("files", written).Msg("Artifacts written")

	return nil
}
