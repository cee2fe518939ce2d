package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Polling defaults for statistics GitHub computes in the background.
const (
	DefaultNotReadyMaxPolls     = 60
	DefaultNotReadyPollInterval = 2 * time.Second
)

var (
	notReadyPollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghstats_not_ready_polls_total",
		Help: "Total 202 responses received while waiting for computed statistics",
	})

	notReadyGaveUpTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghstats_not_ready_gave_up_total",
		Help: "Total statistics requests that degraded to empty after polling",
	})
)

// pollState tracks one not-ready polling loop.
type pollState int

const (
	pollPending pollState = iota
	pollReady
	pollGaveUp
)

func (s pollState) String() string {
	switch s {
	case pollPending:
		return "pending"
	case pollReady:
		return "ready"
	case pollGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// poller repeats a fetch while it reports a 202. Errors other than
// not-ready end the loop and are returned to the caller.
type poller struct {
	maxPolls int
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// run calls fetch until it stops reporting not-ready or maxPolls is
// reached. The returned state is pollReady or pollGaveUp when err is nil.
func (p poller) run(ctx context.Context, fetch func(ctx context.Context) error) (pollState, int, error) {
	state := pollPending
	polls := 0

	for state == pollPending {
		polls++
		err := fetch(ctx)
		switch {
		case err == nil:
			state = pollReady
		case !isNotReady(err):
			return state, polls, err
		case polls >= p.maxPolls:
			state = pollGaveUp
		default:
			notReadyPollsTotal.Inc()
			if err := p.sleep(ctx, p.interval); err != nil {
				return state, polls, err
			}
		}
	}
	return state, polls, nil
}

func isNotReady(err error) bool {
	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return true
	}
	return Classify(err) == ErrorClassNotReady
}

// ContributorStats fetches weekly contributor statistics for key. GitHub
// answers 202 while it computes them; the call polls until they are ready
// and returns an empty result if they never are.
func (c *Client) ContributorStats(ctx context.Context, key string) ([]*github.ContributorStats, error) {
	const op = "contributor_stats"
	owner, repo, err := SplitKey(key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer observe(op, start)

	p := poller{
		maxPolls: c.config.NotReadyMaxPolls,
		interval: c.config.NotReadyPollInterval,
		sleep:    c.config.Sleep,
	}

	var result []*github.ContributorStats
	state, polls, err := p.run(ctx, func(ctx context.Context) error {
		stats, _, err := c.rest.Repositories.ListContributorsStats(ctx, owner, repo)
		if err != nil {
			return err
		}
		result = stats
		return nil
	})
	if err != nil {
		record(op, err)
		return nil, fmt.Errorf("list contributor stats for %s: %w", key, err)
	}

	if state == pollGaveUp {
		notReadyGaveUpTotal.Inc()
		record(op, &github.AcceptedError{})
		c.logger.Warn().
			Str("repository", key).
			Int("polls", polls).
			Msg("Contributor statistics not ready, using empty result")
		return nil, nil
	}

	record(op, nil)
	return result, nil
}
