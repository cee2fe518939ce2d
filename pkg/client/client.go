// Package client provides the GitHub client used by a collection run:
// GraphQL queries for repositories and contributions, REST calls for
// per-repository statistics, and the retry policy that wraps them.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
	"github.com/google/go-github/v66/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shurcooL/graphql"

	"github.com/Sternrassler/github-stats/pkg/ratelimit"
	"github.com/Sternrassler/github-stats/pkg/stats"
)

// Prometheus metrics for GitHub client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghstats_requests_total",
		Help: "Total GitHub requests by operation and outcome",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghstats_request_duration_seconds",
		Help:    "GitHub request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})
)

// Defaults for GitHub endpoints.
const (
	DefaultHost       = "github.com"
	DefaultGraphQLURL = "https://api.github.com/graphql"
)

// Client talks to the GitHub GraphQL and REST APIs.
type Client struct {
	rest    *github.Client
	graphql *graphql.Client
	config  Config
	logger  zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Token authenticates every request (REQUIRED).
	Token string

	// Host is the GitHub host the token belongs to.
	Host string

	// GraphQLURL overrides the GraphQL endpoint.
	GraphQLURL string

	// RESTBaseURL overrides the REST base URL; must end with a slash.
	RESTBaseURL string

	// HTTPClient replaces the authenticated client built from Token.
	// Token is still attached to requests that carry no Authorization
	// header.
	HTTPClient *http.Client

	// Timeout per HTTP request.
	Timeout time.Duration

	// NotReadyMaxPolls bounds polling on 202 responses.
	NotReadyMaxPolls int

	// NotReadyPollInterval is the sleep between two polls.
	NotReadyPollInterval time.Duration

	// Sleep suspends between polls. Defaults to ratelimit.SleepContext.
	Sleep ratelimit.Sleeper
}

// DefaultConfig returns a default configuration for token.
func DefaultConfig(token string) Config {
	return Config{
		Token:                token,
		Host:                 DefaultHost,
		GraphQLURL:           DefaultGraphQLURL,
		Timeout:              30 * time.Second,
		NotReadyMaxPolls:     DefaultNotReadyMaxPolls,
		NotReadyPollInterval: DefaultNotReadyPollInterval,
	}
}

// New creates a GitHub client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}
	if cfg.NotReadyMaxPolls <= 0 {
		cfg.NotReadyMaxPolls = DefaultNotReadyMaxPolls
	}
	if cfg.NotReadyPollInterval <= 0 {
		cfg.NotReadyPollInterval = DefaultNotReadyPollInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = ratelimit.SleepContext
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = api.NewHTTPClient(api.ClientOptions{
			AuthToken: cfg.Token,
			Host:      cfg.Host,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create http client: %w", err)
		}
	}

	rest := github.NewClient(httpClient)
	if cfg.HTTPClient != nil {
		rest = rest.WithAuthToken(cfg.Token)
	}
	if cfg.RESTBaseURL != "" {
		base, err := url.Parse(cfg.RESTBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse rest base url: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		rest.BaseURL = base
	}

	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.HTTPClient != nil {
		transport = &authTransport{token: cfg.Token, base: transport}
	}
	gqlHTTP := &http.Client{
		Transport: &statusTransport{base: transport},
		Timeout:   httpClient.Timeout,
	}

	return &Client{
		rest:    rest,
		graphql: graphql.NewClient(cfg.GraphQLURL, gqlHTTP),
		config:  cfg,
		logger:  log.With().Str("component", "github-client").Logger(),
	}, nil
}

// SetLogger replaces the client logger.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// RepositoriesPage is one page of the combined repositories query.
type RepositoriesPage struct {
	Login       string
	Name        string
	Owned       Connection
	Contributed Connection
}

// DisplayName is the profile name, falling back to the login.
func (p *RepositoriesPage) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Login
}

// Connection is one page of a repository connection.
type Connection struct {
	Repositories []stats.Repository
	HasNextPage  bool
	EndCursor    *string
}

// QueryRepositories fetches one page of owned and, if includeContributed,
// contributed-to repositories. Without includeContributed the contributed
// connection is left out of the query and returned empty.
func (c *Client) QueryRepositories(ctx context.Context, ownedCursor, contribCursor *string, includeContributed bool) (*RepositoriesPage, error) {
	const op = "query_repositories"
	start := time.Now()
	defer observe(op, start)

	if !includeContributed {
		var q ownedRepositoriesQuery
		vars := map[string]interface{}{
			"ownedCursor": (*graphql.String)(ownedCursor),
		}
		if err := c.graphql.Query(ctx, &q, vars); err != nil {
			record(op, err)
			return nil, fmt.Errorf("query owned repositories: %w", err)
		}
		record(op, nil)
		return &RepositoriesPage{
			Login: q.Viewer.Login,
			Name:  deref(q.Viewer.Name),
			Owned: toConnection(q.Viewer.Repositories),
		}, nil
	}

	var q combinedRepositoriesQuery
	vars := map[string]interface{}{
		"ownedCursor":   (*graphql.String)(ownedCursor),
		"contribCursor": (*graphql.String)(contribCursor),
	}
	if err := c.graphql.Query(ctx, &q, vars); err != nil {
		record(op, err)
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	record(op, nil)

	return &RepositoriesPage{
		Login:       q.Viewer.Login,
		Name:        deref(q.Viewer.Name),
		Owned:       toConnection(q.Viewer.Repositories),
		Contributed: toConnection(q.Viewer.RepositoriesContributedTo),
	}, nil
}

func toConnection(conn repositoryConnection) Connection {
	out := Connection{
		Repositories: make([]stats.Repository, 0, len(conn.Nodes)),
		HasNextPage:  conn.PageInfo.HasNextPage,
	}
	if conn.PageInfo.EndCursor != nil {
		cursor := *conn.PageInfo.EndCursor
		out.EndCursor = &cursor
	}

	for _, node := range conn.Nodes {
		if node.NameWithOwner == "" {
			continue
		}
		repo := stats.Repository{
			Key:       node.NameWithOwner,
			Stars:     node.Stargazers.TotalCount,
			Forks:     node.ForkCount,
			Languages: make([]stats.LanguageEdge, 0, len(node.Languages.Edges)),
		}
		for _, edge := range node.Languages.Edges {
			repo.Languages = append(repo.Languages, stats.LanguageEdge{
				Name:  edge.Node.Name,
				Color: deref(edge.Node.Color),
				Size:  int64(edge.Size),
			})
		}
		out.Repositories = append(out.Repositories, repo)
	}
	return out
}

// QueryContributionYears returns the years the viewer has activity in.
func (c *Client) QueryContributionYears(ctx context.Context) ([]int, error) {
	const op = "query_contribution_years"
	start := time.Now()
	defer observe(op, start)

	var q contributionYearsQuery
	if err := c.graphql.Query(ctx, &q, nil); err != nil {
		record(op, err)
		return nil, fmt.Errorf("query contribution years: %w", err)
	}
	record(op, nil)
	return q.Viewer.ContributionsCollection.ContributionYears, nil
}

// QueryContributionsInYear returns the viewer's contribution count for year.
func (c *Client) QueryContributionsInYear(ctx context.Context, year int) (int, error) {
	const op = "query_contributions"
	start := time.Now()
	defer observe(op, start)

	var q contributionCalendarQuery
	vars := map[string]interface{}{
		"from": DateTime{time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)},
		"to":   DateTime{time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	if err := c.graphql.Query(ctx, &q, vars); err != nil {
		record(op, err)
		return 0, fmt.Errorf("query contributions for %d: %w", year, err)
	}
	record(op, nil)
	return q.Viewer.ContributionsCollection.ContributionCalendar.TotalContributions, nil
}

// TrafficViews sums the daily view counts GitHub reports for the
// trailing 14 days.
func (c *Client) TrafficViews(ctx context.Context, key string) (int, error) {
	const op = "traffic_views"
	owner, repo, err := SplitKey(key)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	defer observe(op, start)

	views, _, err := c.rest.Repositories.ListTrafficViews(ctx, owner, repo, &github.TrafficBreakdownOptions{Per: "day"})
	record(op, err)
	if err != nil {
		return 0, fmt.Errorf("list traffic views for %s: %w", key, err)
	}

	total := 0
	for _, day := range views.Views {
		total += day.GetCount()
	}
	return total, nil
}

// RepositoryDetails fetches repository metadata.
func (c *Client) RepositoryDetails(ctx context.Context, key string) (*github.Repository, error) {
	const op = "repository_details"
	owner, repo, err := SplitKey(key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer observe(op, start)

	details, _, err := c.rest.Repositories.Get(ctx, owner, repo)
	record(op, err)
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", key, err)
	}
	return details, nil
}

// RepositoryLanguages fetches the language → bytes map of a repository.
func (c *Client) RepositoryLanguages(ctx context.Context, key string) (map[string]int, error) {
	const op = "repository_languages"
	owner, repo, err := SplitKey(key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer observe(op, start)

	langs, _, err := c.rest.Repositories.ListLanguages(ctx, owner, repo)
	record(op, err)
	if err != nil {
		return nil, fmt.Errorf("list languages for %s: %w", key, err)
	}
	return langs, nil
}

// FetchBudget reports the most constrained of the core and GraphQL
// rate limit windows.
func (c *Client) FetchBudget(ctx context.Context) (ratelimit.BudgetState, error) {
	const op = "rate_limit"
	start := time.Now()
	defer observe(op, start)

	limits, _, err := c.rest.RateLimit.Get(ctx)
	record(op, err)
	if err != nil {
		return ratelimit.BudgetState{}, fmt.Errorf("get rate limit: %w", err)
	}

	return mostConstrained(limits, time.Now()), nil
}

func mostConstrained(limits *github.RateLimits, now time.Time) ratelimit.BudgetState {
	candidates := []struct {
		name string
		rate *github.Rate
	}{
		{"core", limits.GetCore()},
		{"graphql", limits.GetGraphQL()},
	}

	var (
		best  ratelimit.BudgetState
		found bool
	)
	for _, cand := range candidates {
		if cand.rate == nil {
			continue
		}
		state := ratelimit.BudgetState{
			Resource:  cand.name,
			Remaining: cand.rate.Remaining,
			Limit:     cand.rate.Limit,
			ResetAt:   cand.rate.Reset.Time,
			CheckedAt: now,
		}
		switch {
		case !found:
			best, found = state, true
		case state.Remaining < best.Remaining:
			best = state
		case state.Remaining == best.Remaining && state.ResetAt.After(best.ResetAt):
			best = state
		}
	}

	if !found {
		return ratelimit.BudgetState{Resource: "unknown", Remaining: 1, CheckedAt: now}
	}
	return best
}

// SplitKey splits an owner/name repository key.
func SplitKey(key string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(key, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepositoryKey, key)
	}
	return owner, repo, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func observe(op string, start time.Time) {
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func record(op string, err error) {
	var acceptedErr *github.AcceptedError
	switch {
	case err == nil:
		requestsTotal.WithLabelValues(op, "ok").Inc()
	case errors.As(err, &acceptedErr):
		requestsTotal.WithLabelValues(op, "not_ready").Inc()
	default:
		requestsTotal.WithLabelValues(op, string(Classify(err))).Inc()
	}
}
