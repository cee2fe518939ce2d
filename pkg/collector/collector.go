// Package collector runs one statistics collection for a GitHub identity:
// it pages through the identity's repositories, fans out per-repository
// requests in batches, and reduces everything into a stats.Snapshot.
package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/github-stats/pkg/client"
	"github.com/Sternrassler/github-stats/pkg/logging"
	"github.com/Sternrassler/github-stats/pkg/pagination"
	"github.com/Sternrassler/github-stats/pkg/ratelimit"
	"github.com/Sternrassler/github-stats/pkg/stats"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_runs_total",
		Help: "Collection runs by final phase",
	}, []string{"phase"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghstats_run_duration_seconds",
		Help:    "Duration of a complete collection run",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)

// Source is the GitHub API surface a run needs.
type Source interface {
	pagination.RepositoryPager
	QueryContributionYears(ctx context.Context) ([]int, error)
	QueryContributionsInYear(ctx context.Context, year int) (int, error)
	ContributorStats(ctx context.Context, key string) ([]*github.ContributorStats, error)
	TrafficViews(ctx context.Context, key string) (int, error)
	RepositoryDetails(ctx context.Context, key string) (*github.Repository, error)
	RepositoryLanguages(ctx context.Context, key string) (map[string]int, error)
}

// Credentials authenticate a run.
type Credentials struct {
	Token string
}

// Options configure a run.
type Options struct {
	// ExcludeRepositories are owner/name keys left out of every statistic.
	ExcludeRepositories []string

	// ExcludeLanguages are language names left out of the tally,
	// matched case-insensitively.
	ExcludeLanguages []string

	// IgnoreForkedContributions skips repositories the identity only
	// contributed to.
	IgnoreForkedContributions bool

	// CollectDetailedBreakdown adds a per-repository breakdown.
	CollectDetailedBreakdown bool

	// Batch sizes for the per-repository fetches.
	LinesBatchSize     int
	ViewsBatchSize     int
	BreakdownBatchSize int

	// RequestsPerSecond paces requests on the client side. Zero disables pacing.
	RequestsPerSecond float64

	// GraphQLURL and RESTBaseURL override the GitHub endpoints.
	GraphQLURL  string
	RESTBaseURL string

	// HTTPClient replaces the authenticated client built from the token.
	HTTPClient *http.Client
}

// DefaultOptions returns the default run options.
func DefaultOptions() Options {
	return Options{
		LinesBatchSize:     pagination.DefaultLinesBatchSize,
		ViewsBatchSize:     pagination.DefaultViewsBatchSize,
		BreakdownBatchSize: pagination.DefaultBreakdownBatchSize,
	}
}

// Collect runs a complete collection for identity. An empty identity
// means the owner of the token.
func Collect(ctx context.Context, identity string, creds Credentials, opts Options) (*stats.Snapshot, error) {
	cfg := client.DefaultConfig(creds.Token)
	cfg.HTTPClient = opts.HTTPClient
	if opts.GraphQLURL != "" {
		cfg.GraphQLURL = opts.GraphQLURL
	}
	cfg.RESTBaseURL = opts.RESTBaseURL

	gh, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create github client: %w", err)
	}
	gh.SetLogger(logging.ForIdentity("github-client", identity))

	monitorCfg := ratelimit.DefaultConfig()
	monitorCfg.RequestsPerSecond = opts.RequestsPerSecond
	monitor := ratelimit.NewMonitor(gh, monitorCfg, logging.ForIdentity("budget", identity))
	policy := client.NewPolicy(monitor, client.DefaultRetryConfig(), logging.ForIdentity("retry", identity))

	return New(identity, gh, policy, opts, logging.ForIdentity("collector", identity)).Run(ctx)
}

// Run is a single collection. It owns every accumulator it builds and
// is not reusable.
type Run struct {
	identity string
	source   Source
	exec     client.Executor
	opts     Options
	logger   zerolog.Logger

	phase Phase
}

// New creates a run. Every request goes through exec.
func New(identity string, source Source, exec client.Executor, opts Options, logger zerolog.Logger) *Run {
	defaults := DefaultOptions()
	if opts.LinesBatchSize <= 0 {
		opts.LinesBatchSize = defaults.LinesBatchSize
	}
	if opts.ViewsBatchSize <= 0 {
		opts.ViewsBatchSize = defaults.ViewsBatchSize
	}
	if opts.BreakdownBatchSize <= 0 {
		opts.BreakdownBatchSize = defaults.BreakdownBatchSize
	}

	return &Run{
		identity: identity,
		source:   source,
		exec:     exec,
		opts:     opts,
		logger:   logger,
		phase:    PhaseIdle,
	}
}

// Phase returns the current phase.
func (r *Run) Phase() Phase {
	return r.phase
}

func (r *Run) transition(to Phase) {
	if !CanTransition(r.phase, to) {
		panic(fmt.Sprintf("collector: invalid phase transition %s -> %s", r.phase, to))
	}
	r.logger.Debug().
		Str("from", r.phase.String()).
		Str("to", to.String()).
		Msg("Run phase changed")
	r.phase = to
}

func (r *Run) fail(err error) error {
	r.transition(PhaseFailed)
	runsTotal.WithLabelValues(PhaseFailed.String()).Inc()
	r.logger.Error().Err(err).Msg("Collection failed")
	return err
}

// Run executes the collection. It fails only if the repository query
// cannot be completed or ctx is cancelled; every per-repository failure
// degrades to an empty contribution.
func (r *Run) Run(ctx context.Context) (*stats.Snapshot, error) {
	if r.phase != PhaseIdle {
		return nil, fmt.Errorf("collector: run already started (phase %s)", r.phase)
	}
	start := time.Now()

	r.transition(PhasePaginatingEntities)
	entities, err := pagination.NewCollector(r.source, r.exec, pagination.Options{
		ExcludeRepositories:       r.opts.ExcludeRepositories,
		ExcludeLanguages:          r.opts.ExcludeLanguages,
		IgnoreForkedContributions: r.opts.IgnoreForkedContributions,
	}, r.logger).CollectEntities(ctx)
	if err != nil {
		return nil, r.fail(err)
	}

	login := r.identity
	if login == "" {
		login = entities.Login
	}

	r.transition(PhaseFetchingSecondaryData)
	keys := entities.Keys()

	contributions := r.contributions(ctx)

	activity := pagination.FetchAll(ctx, r.logger, "lines", keys, r.opts.LinesBatchSize,
		func(ctx context.Context, key string) (repoActivity, error) {
			return r.activity(ctx, key, login)
		})
	var lines stats.LinesChanged
	for _, a := range activity {
		lines = lines.Add(a.lines)
	}

	views := pagination.FetchAll(ctx, r.logger, "views", keys, r.opts.ViewsBatchSize, r.views)
	totalViews := 0
	for _, v := range views {
		totalViews += v
	}

	var breakdown []stats.RepoBreakdown
	if r.opts.CollectDetailedBreakdown {
		indexes := make([]int, len(entities.Repositories))
		for i := range indexes {
			indexes[i] = i
		}
		breakdown = pagination.FetchAll(ctx, r.logger, "breakdown", indexes, r.opts.BreakdownBatchSize,
			func(ctx context.Context, i int) (stats.RepoBreakdown, error) {
				return r.breakdown(ctx, entities.Repositories[i], activity[i], views[i]), nil
			})
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(fmt.Errorf("collect secondary data: %w", err))
	}

	snapshot := stats.Finalize(stats.Totals{
		Name:          entities.Name,
		Stars:         entities.Stars,
		Forks:         entities.Forks,
		Contributions: contributions,
		LinesChanged:  lines,
		Views:         totalViews,
		Repositories:  keys,
	}, entities.Languages, breakdown)
	r.transition(PhaseAggregated)

	r.transition(PhaseDone)
	runsTotal.WithLabelValues(PhaseDone.String()).Inc()
	runDuration.Observe(time.Since(start).Seconds())

	r.logger.Info().
		Str("name", snapshot.Name()).
		Int("repositories", len(keys)).
		Int("stars", snapshot.Stars()).
		Int("contributions", snapshot.Contributions()).
		Int64("lines_changed", lines.Total()).
		Int("views", totalViews).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return snapshot, nil
}
