package collector

import (
	"context"

	"github.com/google/go-github/v66/github"

	"github.com/Sternrassler/github-stats/pkg/client"
	"github.com/Sternrassler/github-stats/pkg/stats"
)

// repoActivity is the identity's share of one repository's history.
type repoActivity struct {
	lines   stats.LinesChanged
	commits int
}

// identityActivity sums the weekly additions, deletions and commits
// of login. Logins are compared exactly.
func identityActivity(contributors []*github.ContributorStats, login string) repoActivity {
	var a repoActivity
	for _, c := range contributors {
		if c.GetAuthor().GetLogin() != login {
			continue
		}
		for _, week := range c.Weeks {
			a.lines.Additions += int64(week.GetAdditions())
			a.lines.Deletions += int64(week.GetDeletions())
			a.commits += week.GetCommits()
		}
	}
	return a
}

func (r *Run) activity(ctx context.Context, key, login string) (repoActivity, error) {
	contributors, err := client.Do(ctx, r.exec, "contributor stats", client.AttemptsSecondary,
		func(ctx context.Context) ([]*github.ContributorStats, error) {
			return r.source.ContributorStats(ctx, key)
		})
	if err != nil {
		return repoActivity{}, err
	}
	return identityActivity(contributors, login), nil
}

func (r *Run) views(ctx context.Context, key string) (int, error) {
	return client.Do(ctx, r.exec, "traffic views", client.AttemptsSecondary,
		func(ctx context.Context) (int, error) {
			return r.source.TrafficViews(ctx, key)
		})
}

// contributions sums the identity's contributions over every year it
// has activity in. A failed year is skipped; failing to list the years
// yields zero.
func (r *Run) contributions(ctx context.Context) int {
	years, err := client.Do(ctx, r.exec, "contribution years", client.AttemptsContributions,
		r.source.QueryContributionYears)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Could not list contribution years, reporting zero contributions")
		return 0
	}

	total := 0
	for _, year := range years {
		count, err := client.Do(ctx, r.exec, "contributions in year", client.AttemptsContributions,
			func(ctx context.Context) (int, error) {
				return r.source.QueryContributionsInYear(ctx, year)
			})
		if err != nil {
			r.logger.Warn().Err(err).Int("year", year).Msg("Could not count contributions for year, skipping")
			continue
		}
		total += count
	}
	return total
}

// breakdown builds the detailed view of repo from its metadata and
// languages. Activity and views come from the earlier batches. Metadata
// or language failures fall back to what pagination reported.
func (r *Run) breakdown(ctx context.Context, repo stats.Repository, activity repoActivity, views int) stats.RepoBreakdown {
	b := stats.RepoBreakdown{
		Name:      repo.Key,
		Stars:     repo.Stars,
		Forks:     repo.Forks,
		Commits:   activity.commits,
		Views:     views,
		Additions: activity.lines.Additions,
		Deletions: activity.lines.Deletions,
	}

	details, err := client.Do(ctx, r.exec, "repository details", client.AttemptsMetadata,
		func(ctx context.Context) (*github.Repository, error) {
			return r.source.RepositoryDetails(ctx, repo.Key)
		})
	if err != nil {
		r.logger.Warn().Err(err).Str("repository", repo.Key).Msg("Repository details unavailable, using paginated counts")
	} else {
		b.Stars = details.GetStargazersCount()
		b.Forks = details.GetForksCount()
	}

	sizes, err := client.Do(ctx, r.exec, "repository languages", client.AttemptsMetadata,
		func(ctx context.Context) (map[string]int, error) {
			return r.source.RepositoryLanguages(ctx, repo.Key)
		})
	if err != nil {
		r.logger.Warn().Err(err).Str("repository", repo.Key).Msg("Repository languages unavailable, using paginated edges")
		sizes = make(map[string]int, len(repo.Languages))
		for _, edge := range repo.Languages {
			sizes[edge.Name] += int(edge.Size)
		}
	}
	b.Languages = stats.RepoLanguages(sizes, r.opts.ExcludeLanguages)

	return b
}
