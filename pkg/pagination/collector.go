package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/github-stats/pkg/client"
	"github.com/Sternrassler/github-stats/pkg/stats"
)

var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghstats_repository_pages_total",
		Help: "Total repository pages fetched",
	})

	repositoriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_repositories_total",
		Help: "Repositories seen during pagination by connection and outcome",
	}, []string{"connection", "outcome"})
)

// RepositoryPager fetches one page of the viewer's repositories.
type RepositoryPager interface {
	QueryRepositories(ctx context.Context, ownedCursor, contribCursor *string, includeContributed bool) (*client.RepositoriesPage, error)
}

// Options control which repositories and languages are admitted.
type Options struct {
	// ExcludeRepositories are owner/name keys to skip, matched exactly.
	ExcludeRepositories []string

	// ExcludeLanguages are language names to leave out of the tally,
	// matched case-insensitively.
	ExcludeLanguages []string

	// IgnoreForkedContributions skips the contributed-to connection.
	IgnoreForkedContributions bool
}

// Entities is the result of walking both repository connections.
type Entities struct {
	Name         string
	Login        string
	Repositories []stats.Repository
	Stars        int
	Forks        int
	Languages    *stats.LanguageTally
	Pages        int
}

// Keys returns the repository keys in admission order.
func (e *Entities) Keys() []string {
	keys := make([]string, len(e.Repositories))
	for i, r := range e.Repositories {
		keys[i] = r.Key
	}
	return keys
}

// Collector walks the owned and contributed-to repository connections.
type Collector struct {
	pager  RepositoryPager
	exec   client.Executor
	opts   Options
	logger zerolog.Logger
}

// NewCollector creates a collector. Every page request runs through exec.
func NewCollector(pager RepositoryPager, exec client.Executor, opts Options, logger zerolog.Logger) *Collector {
	return &Collector{
		pager:  pager,
		exec:   exec,
		opts:   opts,
		logger: logger,
	}
}

// cursorState is one connection's position.
type cursorState struct {
	name      string
	cursor    *string
	exhausted bool
}

// advance moves to the connection's next page. A connection that claims
// another page without a new cursor is treated as exhausted.
func (s *cursorState) advance(conn client.Connection, logger zerolog.Logger) {
	if !conn.HasNextPage {
		s.exhausted = true
		return
	}
	if conn.EndCursor == nil || (s.cursor != nil && *s.cursor == *conn.EndCursor) {
		logger.Warn().
			Str("connection", s.name).
			Msg("Connection reported another page without a new cursor, stopping")
		s.exhausted = true
		return
	}
	s.cursor = conn.EndCursor
}

// CollectEntities pages through both connections until neither has a
// next page. Each key is admitted at most once, owned before
// contributed. The returned tally is closed.
func (c *Collector) CollectEntities(ctx context.Context) (*Entities, error) {
	start := time.Now()
	includeContributed := !c.opts.IgnoreForkedContributions

	excluded := make(map[string]struct{}, len(c.opts.ExcludeRepositories))
	for _, key := range c.opts.ExcludeRepositories {
		excluded[key] = struct{}{}
	}

	result := &Entities{Languages: stats.NewLanguageTally(c.opts.ExcludeLanguages)}
	seen := make(map[string]struct{})

	admit := func(connection string, repos []stats.Repository) {
		for _, repo := range repos {
			if _, skip := excluded[repo.Key]; skip {
				repositoriesTotal.WithLabelValues(connection, "excluded").Inc()
				continue
			}
			if _, dup := seen[repo.Key]; dup {
				repositoriesTotal.WithLabelValues(connection, "duplicate").Inc()
				continue
			}
			seen[repo.Key] = struct{}{}
			repositoriesTotal.WithLabelValues(connection, "admitted").Inc()

			result.Repositories = append(result.Repositories, repo)
			result.Stars += repo.Stars
			result.Forks += repo.Forks
			result.Languages.AddRepository(repo)
		}
	}

	owned := &cursorState{name: "owned"}
	contributed := &cursorState{name: "contributed", exhausted: !includeContributed}

	for !owned.exhausted || !contributed.exhausted {
		page, err := client.Do(ctx, c.exec, "repositories page", client.AttemptsPrimary,
			func(ctx context.Context) (*client.RepositoriesPage, error) {
				return c.pager.QueryRepositories(ctx, owned.cursor, contributed.cursor, includeContributed)
			})
		if err != nil {
			return nil, fmt.Errorf("collect repositories (page %d): %w", result.Pages+1, err)
		}
		result.Pages++
		pagesTotal.Inc()

		if result.Pages == 1 {
			result.Login = page.Login
			result.Name = page.DisplayName()
		}

		if !owned.exhausted {
			admit(owned.name, page.Owned.Repositories)
			owned.advance(page.Owned, c.logger)
		}
		if !contributed.exhausted {
			admit(contributed.name, page.Contributed.Repositories)
			contributed.advance(page.Contributed, c.logger)
		}

		c.logger.Debug().
			Int("page", result.Pages).
			Int("repositories", len(result.Repositories)).
			Bool("owned_done", owned.exhausted).
			Bool("contributed_done", contributed.exhausted).
			Msg("Repository page merged")
	}

	result.Languages.Close()

	c.logger.Info().
		Str("name", result.Name).
		Int("pages", result.Pages).
		Int("repositories", len(result.Repositories)).
		Int("languages", result.Languages.Len()).
		Dur("duration", time.Since(start)).
		Msg("Repository collection complete")

	return result, nil
}
