// Package testutil provides a mock GitHub API for end-to-end tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse is a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockLanguage is a language edge of a mock repository.
type MockLanguage struct {
	Name  string
	Color string
	Size  int
}

// MockWeek is one week of contributor statistics.
type MockWeek struct {
	Additions int
	Deletions int
	Commits   int
}

// MockRepository describes a repository the mock serves.
type MockRepository struct {
	Key       string
	Stars     int
	Forks     int
	Languages []MockLanguage

	// Contributors maps a login to its weekly statistics.
	Contributors map[string][]MockWeek

	// Views are the daily view counts of the traffic window.
	Views []int

	// NotReadyPolls is how many 202 responses precede the contributor
	// statistics.
	NotReadyPolls int
}

// MockGitHub is a configurable GitHub GraphQL + REST server.
type MockGitHub struct {
	server *httptest.Server
	mu     sync.Mutex

	// Viewer profile.
	Login string
	Name  string

	// Connections served by the repositories query.
	Owned       []MockRepository
	Contributed []MockRepository
	PageSize    int

	// ContributionYears maps a year to its contribution total.
	ContributionYears map[int]int

	// RateRemaining is reported by /rate_limit.
	RateRemaining int

	// RepositoryQueryFailures fails that many repository queries with 502.
	RepositoryQueryFailures int

	// FailContributions answers every contribution query with 502.
	FailContributions bool

	overrides map[string]MockResponse
	requests  map[string]int
	notReady  map[string]int
}

// NewMockGitHub creates and starts a mock server.
func NewMockGitHub() *MockGitHub {
	m := &MockGitHub{
		Login:             "octocat",
		PageSize:          100,
		ContributionYears: map[int]int{},
		RateRemaining:     5000,
		overrides:         make(map[string]MockResponse),
		requests:          make(map[string]int),
		notReady:          make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql", m.handleGraphQL)
	mux.HandleFunc("GET /rate_limit", m.handleRateLimit)
	mux.HandleFunc("GET /repos/{owner}/{repo}", m.handleRepository)
	mux.HandleFunc("GET /repos/{owner}/{repo}/languages", m.handleLanguages)
	mux.HandleFunc("GET /repos/{owner}/{repo}/stats/contributors", m.handleContributors)
	mux.HandleFunc("GET /repos/{owner}/{repo}/traffic/views", m.handleViews)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests[r.URL.Path]++
		override, ok := m.overrides[r.URL.Path]
		m.mu.Unlock()

		if ok {
			for key, value := range override.Headers {
				w.Header().Set(key, value)
			}
			w.WriteHeader(override.StatusCode)
			if override.Body != "" {
				_, _ = io.WriteString(w, override.Body)
			}
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return m
}

// URL returns the server base URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// GraphQLURL returns the GraphQL endpoint.
func (m *MockGitHub) GraphQLURL() string {
	return m.server.URL + "/graphql"
}

// RESTBaseURL returns the REST base URL.
func (m *MockGitHub) RESTBaseURL() string {
	return m.server.URL + "/"
}

// Client returns an HTTP client for the server.
func (m *MockGitHub) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// SetResponse serves resp for every request to path.
func (m *MockGitHub) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = resp
}

// RequestCount returns how many requests hit path. GraphQL requests are
// additionally counted under "graphql:<operation>".
func (m *MockGitHub) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

func (m *MockGitHub) count(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[key]++
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func (m *MockGitHub) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	failContributions := m.FailContributions
	m.mu.Unlock()

	switch {
	case failContributions && strings.Contains(req.Query, "contributionsCollection"):
		m.count("graphql:contributionsFailed")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"message":"Server Error"}`)

	case strings.Contains(req.Query, "contributionYears"):
		m.count("graphql:contributionYears")
		m.mu.Lock()
		years := make([]int, 0, len(m.ContributionYears))
		for year := range m.ContributionYears {
			years = append(years, year)
		}
		m.mu.Unlock()
		writeJSON(w, data(map[string]interface{}{
			"contributionsCollection": map[string]interface{}{"contributionYears": years},
		}))

	case strings.Contains(req.Query, "contributionCalendar"):
		m.count("graphql:contributionCalendar")
		from, _ := req.Variables["from"].(string)
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			http.Error(w, "bad from", http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		total := m.ContributionYears[t.Year()]
		m.mu.Unlock()
		writeJSON(w, data(map[string]interface{}{
			"contributionsCollection": map[string]interface{}{
				"contributionCalendar": map[string]interface{}{"totalContributions": total},
			},
		}))

	default:
		m.handleRepositories(w, req)
	}
}

func (m *MockGitHub) handleRepositories(w http.ResponseWriter, req graphqlRequest) {
	m.count("graphql:repositories")

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RepositoryQueryFailures > 0 {
		m.RepositoryQueryFailures--
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"message":"Server Error"}`)
		return
	}

	var name interface{}
	if m.Name != "" {
		name = m.Name
	}
	viewer := map[string]interface{}{
		"login":        m.Login,
		"name":         name,
		"repositories": m.page(m.Owned, req.Variables["ownedCursor"]),
	}
	if strings.Contains(req.Query, "repositoriesContributedTo") {
		m.requests["graphql:repositoriesContributedTo"]++
		viewer["repositoriesContributedTo"] = m.page(m.Contributed, req.Variables["contribCursor"])
	}

	writeJSON(w, data(viewer))
}

// page serves one connection page. Cursors are "cursor-<offset>".
func (m *MockGitHub) page(repos []MockRepository, cursor interface{}) map[string]interface{} {
	offset := 0
	if s, ok := cursor.(string); ok {
		offset, _ = strconv.Atoi(strings.TrimPrefix(s, "cursor-"))
	}
	if offset > len(repos) {
		offset = len(repos)
	}
	end := offset + m.PageSize
	if end > len(repos) {
		end = len(repos)
	}

	nodes := make([]interface{}, 0, end-offset)
	for _, repo := range repos[offset:end] {
		edges := make([]interface{}, 0, len(repo.Languages))
		for _, lang := range repo.Languages {
			var color interface{}
			if lang.Color != "" {
				color = lang.Color
			}
			edges = append(edges, map[string]interface{}{
				"size": lang.Size,
				"node": map[string]interface{}{"name": lang.Name, "color": color},
			})
		}
		nodes = append(nodes, map[string]interface{}{
			"nameWithOwner": repo.Key,
			"stargazers":    map[string]interface{}{"totalCount": repo.Stars},
			"forkCount":     repo.Forks,
			"languages":     map[string]interface{}{"edges": edges},
		})
	}

	var endCursor interface{}
	if end > offset {
		endCursor = fmt.Sprintf("cursor-%d", end)
	}
	return map[string]interface{}{
		"pageInfo": map[string]interface{}{"hasNextPage": end < len(repos), "endCursor": endCursor},
		"nodes":    nodes,
	}
}

func data(viewer map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"data": map[string]interface{}{"viewer": viewer}}
}

func (m *MockGitHub) lookup(r *http.Request) (MockRepository, bool) {
	key := r.PathValue("owner") + "/" + r.PathValue("repo")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, repos := range [][]MockRepository{m.Owned, m.Contributed} {
		for _, repo := range repos {
			if repo.Key == key {
				return repo, true
			}
		}
	}
	return MockRepository{}, false
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"message":"Not Found"}`)
}

func (m *MockGitHub) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	remaining := m.RateRemaining
	m.mu.Unlock()

	reset := time.Now().Add(time.Hour).Unix()
	rate := map[string]interface{}{"limit": 5000, "remaining": remaining, "reset": reset, "used": 5000 - remaining}
	writeJSON(w, map[string]interface{}{
		"resources": map[string]interface{}{"core": rate, "graphql": rate},
	})
}

func (m *MockGitHub) handleRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := m.lookup(r)
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, map[string]interface{}{
		"full_name":        repo.Key,
		"stargazers_count": repo.Stars,
		"forks_count":      repo.Forks,
	})
}

func (m *MockGitHub) handleLanguages(w http.ResponseWriter, r *http.Request) {
	repo, ok := m.lookup(r)
	if !ok {
		notFound(w)
		return
	}
	langs := make(map[string]int, len(repo.Languages))
	for _, lang := range repo.Languages {
		langs[lang.Name] = lang.Size
	}
	writeJSON(w, langs)
}

func (m *MockGitHub) handleContributors(w http.ResponseWriter, r *http.Request) {
	repo, ok := m.lookup(r)
	if !ok {
		notFound(w)
		return
	}

	m.mu.Lock()
	polls := m.notReady[repo.Key]
	m.notReady[repo.Key]++
	m.mu.Unlock()
	if polls < repo.NotReadyPolls {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{}`)
		return
	}

	out := make([]interface{}, 0, len(repo.Contributors))
	for login, weeks := range repo.Contributors {
		ws := make([]interface{}, 0, len(weeks))
		total := 0
		for i, week := range weeks {
			total += week.Commits
			ws = append(ws, map[string]interface{}{
				"w": 1700000000 + i*7*24*3600,
				"a": week.Additions,
				"d": week.Deletions,
				"c": week.Commits,
			})
		}
		out = append(out, map[string]interface{}{
			"author": map[string]interface{}{"login": login},
			"total":  total,
			"weeks":  ws,
		})
	}
	writeJSON(w, out)
}

func (m *MockGitHub) handleViews(w http.ResponseWriter, r *http.Request) {
	repo, ok := m.lookup(r)
	if !ok {
		notFound(w)
		return
	}

	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -len(repo.Views))
	total := 0
	days := make([]interface{}, 0, len(repo.Views))
	for i, count := range repo.Views {
		total += count
		days = append(days, map[string]interface{}{
			"timestamp": start.AddDate(0, 0, i).Format(time.RFC3339),
			"count":     count,
			"uniques":   1,
		})
	}
	writeJSON(w, map[string]interface{}{"count": total, "uniques": len(repo.Views), "views": days})
}
