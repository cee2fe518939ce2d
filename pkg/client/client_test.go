package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v66/github"
	githubMock "github.com/migueleliasweb/go-github-mock/src/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedClient(t *testing.T, opts ...githubMock.MockBackendOption) (*Client, *virtualClock) {
	t.Helper()

	clock := &virtualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig("test-token")
	cfg.HTTPClient = githubMock.NewMockedHTTPClient(opts...)
	cfg.Sleep = clock.Sleep

	c, err := New(cfg)
	require.NoError(t, err)
	return c, clock
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.EqualError(t, err, "access token is required")

	c, err := New(Config{Token: "t", HTTPClient: http.DefaultClient, RESTBaseURL: "http://localhost:9999/api"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/api/", c.rest.BaseURL.String())
	assert.Equal(t, DefaultNotReadyMaxPolls, c.config.NotReadyMaxPolls)
	assert.Equal(t, DefaultGraphQLURL, c.config.GraphQLURL)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("abc")

	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, 60, cfg.NotReadyMaxPolls)
	assert.Equal(t, 2*time.Second, cfg.NotReadyPollInterval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key       string
		owner     string
		repo      string
		expectErr bool
	}{
		{key: "octo/widgets", owner: "octo", repo: "widgets"},
		{key: "Octo/Widgets.go", owner: "Octo", repo: "Widgets.go"},
		{key: "widgets", expectErr: true},
		{key: "/widgets", expectErr: true},
		{key: "octo/", expectErr: true},
		{key: "a/b/c", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			owner, repo, err := SplitKey(tt.key)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidRepositoryKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestContributorStats_PollsUntilReady(t *testing.T) {
	polls := 0
	c, clock := newMockedClient(t,
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposStatsContributorsByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				polls++
				if polls <= 2 {
					w.WriteHeader(http.StatusAccepted)
					return
				}
				_, _ = w.Write(githubMock.MustMarshal([]*github.ContributorStats{
					{
						Author: &github.Contributor{Login: github.String("octocat")},
						Total:  github.Int(3),
						Weeks: []*github.WeeklyStats{
							{Additions: github.Int(10), Deletions: github.Int(4), Commits: github.Int(2)},
							{Additions: github.Int(1), Deletions: github.Int(0), Commits: github.Int(1)},
						},
					},
				}))
			}),
		),
	)

	stats, err := c.ContributorStats(context.Background(), "octo/widgets")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "octocat", stats[0].GetAuthor().GetLogin())
	assert.Len(t, stats[0].Weeks, 2)
	assert.Equal(t, 3, polls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.sleeps)
}

func TestContributorStats_GivesUpWithEmptyResult(t *testing.T) {
	polls := 0
	c, clock := newMockedClient(t,
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposStatsContributorsByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				polls++
				w.WriteHeader(http.StatusAccepted)
			}),
		),
	)
	c.config.NotReadyMaxPolls = 4

	stats, err := c.ContributorStats(context.Background(), "octo/widgets")
	require.NoError(t, err)
	assert.Empty(t, stats)
	assert.Equal(t, 4, polls)
	assert.Len(t, clock.sleeps, 3)
}

func TestContributorStats_OtherErrorsReturned(t *testing.T) {
	c, _ := newMockedClient(t,
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposStatsContributorsByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				githubMock.WriteError(w, http.StatusNotFound, "Not Found")
			}),
		),
	)

	_, err := c.ContributorStats(context.Background(), "octo/gone")
	require.Error(t, err)
	assert.Equal(t, ErrorClassPermanent, Classify(err))
}

func TestTrafficViews_SumsDailyCounts(t *testing.T) {
	c, _ := newMockedClient(t,
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposTrafficViewsByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "day", r.URL.Query().Get("per"))
				_, _ = w.Write(githubMock.MustMarshal(github.TrafficViews{
					Count:   github.Int(999),
					Uniques: github.Int(5),
					Views: []*github.TrafficData{
						{Count: github.Int(3)},
						{Count: github.Int(4)},
						{Count: github.Int(0)},
					},
				}))
			}),
		),
	)

	views, err := c.TrafficViews(context.Background(), "octo/widgets")
	require.NoError(t, err)
	assert.Equal(t, 7, views)
}

func TestRepositoryDetailsAndLanguages(t *testing.T) {
	c, _ := newMockedClient(t,
		githubMock.WithRequestMatch(
			githubMock.GetReposByOwnerByRepo,
			github.Repository{
				FullName:        github.String("octo/widgets"),
				StargazersCount: github.Int(12),
				ForksCount:      github.Int(3),
			},
		),
		githubMock.WithRequestMatch(
			githubMock.GetReposLanguagesByOwnerByRepo,
			map[string]int{"Go": 1000, "Shell": 20},
		),
	)

	details, err := c.RepositoryDetails(context.Background(), "octo/widgets")
	require.NoError(t, err)
	assert.Equal(t, 12, details.GetStargazersCount())
	assert.Equal(t, 3, details.GetForksCount())

	langs, err := c.RepositoryLanguages(context.Background(), "octo/widgets")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Go": 1000, "Shell": 20}, langs)

	_, err = c.RepositoryLanguages(context.Background(), "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidRepositoryKey)
}

func TestFetchBudget_MostConstrained(t *testing.T) {
	reset := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	c, _ := newMockedClient(t,
		githubMock.WithRequestMatch(
			githubMock.GetRateLimit,
			struct {
				Resources *github.RateLimits `json:"resources"`
			}{
				Resources: &github.RateLimits{
					Core:    &github.Rate{Limit: 5000, Remaining: 4200, Reset: github.Timestamp{Time: reset}},
					GraphQL: &github.Rate{Limit: 5000, Remaining: 12, Reset: github.Timestamp{Time: reset.Add(time.Minute)}},
				},
			},
		),
	)

	state, err := c.FetchBudget(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "graphql", state.Resource)
	assert.Equal(t, 12, state.Remaining)
	assert.Equal(t, 5000, state.Limit)
	assert.True(t, state.ResetAt.Equal(reset.Add(time.Minute)))
}

func TestMostConstrained_NoResources(t *testing.T) {
	now := time.Now()
	state := mostConstrained(&github.RateLimits{}, now)
	assert.Equal(t, "unknown", state.Resource)
	assert.False(t, state.Exhausted())
}

// graphqlRequest is the body the GraphQL client posts.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newGraphQLClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("test-token")
	cfg.HTTPClient = srv.Client()
	cfg.GraphQLURL = srv.URL + "/graphql"

	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestQueryRepositories_Combined(t *testing.T) {
	var got graphqlRequest
	c := newGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"viewer":{
			"login":"octocat","name":"The Octocat",
			"repositories":{"pageInfo":{"hasNextPage":true,"endCursor":"o1"},"nodes":[
				{"nameWithOwner":"octocat/a","stargazers":{"totalCount":5},"forkCount":1,
				 "languages":{"edges":[{"size":100,"node":{"name":"Go","color":"#00ADD8"}}]}}
			]},
			"repositoriesContributedTo":{"pageInfo":{"hasNextPage":false,"endCursor":null},"nodes":[
				{"nameWithOwner":"other/b","stargazers":{"totalCount":2},"forkCount":0,
				 "languages":{"edges":[{"size":7,"node":{"name":"Shell","color":null}}]}}
			]}
		}}}`))
	})

	cursor := "o0"
	page, err := c.QueryRepositories(context.Background(), &cursor, nil, true)
	require.NoError(t, err)

	assert.Contains(t, got.Query, "repositoriesContributedTo")
	assert.Equal(t, "o0", got.Variables["ownedCursor"])
	assert.Nil(t, got.Variables["contribCursor"])

	assert.Equal(t, "The Octocat", page.DisplayName())
	assert.True(t, page.Owned.HasNextPage)
	require.NotNil(t, page.Owned.EndCursor)
	assert.Equal(t, "o1", *page.Owned.EndCursor)
	require.Len(t, page.Owned.Repositories, 1)
	assert.Equal(t, "octocat/a", page.Owned.Repositories[0].Key)
	assert.Equal(t, 5, page.Owned.Repositories[0].Stars)
	assert.Equal(t, "#00ADD8", page.Owned.Repositories[0].Languages[0].Color)

	assert.False(t, page.Contributed.HasNextPage)
	assert.Nil(t, page.Contributed.EndCursor)
	require.Len(t, page.Contributed.Repositories, 1)
	assert.Equal(t, int64(7), page.Contributed.Repositories[0].Languages[0].Size)
	assert.Equal(t, "", page.Contributed.Repositories[0].Languages[0].Color)
}

func TestQueryRepositories_CustomHTTPClientAuthenticates(t *testing.T) {
	var auth string
	c := newGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{"viewer":{"login":"octocat",
			"repositories":{"pageInfo":{"hasNextPage":false},"nodes":[]}}}}`))
	})

	_, err := c.QueryRepositories(context.Background(), nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", auth)
}

func TestQueryRepositories_OwnedOnly(t *testing.T) {
	var got graphqlRequest
	c := newGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"viewer":{"login":"octocat","name":null,
			"repositories":{"pageInfo":{"hasNextPage":false,"endCursor":null},"nodes":[]}}}}`))
	})

	page, err := c.QueryRepositories(context.Background(), nil, nil, false)
	require.NoError(t, err)

	assert.NotContains(t, got.Query, "repositoriesContributedTo")
	assert.NotContains(t, got.Variables, "contribCursor")
	assert.Equal(t, "octocat", page.DisplayName())
	assert.Empty(t, page.Contributed.Repositories)
}

func TestQueryRepositories_HTTPErrorClassified(t *testing.T) {
	reset := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	c := newGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1709298000")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	})

	_, err := c.QueryRepositories(context.Background(), nil, nil, true)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, 0, apiErr.RateLimitRemaining)
	assert.True(t, apiErr.RateLimitReset.Equal(reset))
	assert.Equal(t, ErrorClassRateLimit, Classify(err))
}

func TestQueryContributions(t *testing.T) {
	var requests []graphqlRequest
	c := newGraphQLClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		if strings.Contains(req.Query, "contributionYears") {
			_, _ = w.Write([]byte(`{"data":{"viewer":{"contributionsCollection":{"contributionYears":[2024,2023]}}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"viewer":{"contributionsCollection":{"contributionCalendar":{"totalContributions":321}}}}}`))
	})

	years, err := c.QueryContributionYears(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023}, years)

	total, err := c.QueryContributionsInYear(context.Background(), 2023)
	require.NoError(t, err)
	assert.Equal(t, 321, total)

	require.Len(t, requests, 2)
	assert.Contains(t, requests[1].Query, "$from:DateTime!")
	assert.Equal(t, "2023-01-01T00:00:00Z", requests[1].Variables["from"])
	assert.Equal(t, "2024-01-01T00:00:00Z", requests[1].Variables["to"])
}
