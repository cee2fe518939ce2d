package client

import "time"

// GraphQL query structures for the viewer's repositories and contributions.

// repositoryNode is one repository as returned by both connections.
type repositoryNode struct {
	NameWithOwner string
	Stargazers    struct {
		TotalCount int
	}
	ForkCount int
	Languages struct {
		Edges []struct {
			Size int
			Node struct {
				Name  string
				Color *string
			}
		}
	} `graphql:"languages(first: 10, orderBy: {field: SIZE, direction: DESC})"`
}

type pageInfo struct {
	HasNextPage bool
	EndCursor   *string
}

type repositoryConnection struct {
	PageInfo pageInfo
	Nodes    []repositoryNode
}

// ownedRepositoriesQuery only walks the viewer's own repositories.
type ownedRepositoriesQuery struct {
	Viewer struct {
		Login        string
		Name         *string
		Repositories repositoryConnection `graphql:"repositories(first: 100, orderBy: {field: UPDATED_AT, direction: DESC}, isFork: false, after: $ownedCursor)"`
	}
}

// combinedRepositoriesQuery walks owned and contributed-to repositories in
// one request, each connection with its own cursor.
type combinedRepositoriesQuery struct {
	Viewer struct {
		Login                     string
		Name                      *string
		Repositories              repositoryConnection `graphql:"repositories(first: 100, orderBy: {field: UPDATED_AT, direction: DESC}, isFork: false, after: $ownedCursor)"`
		RepositoriesContributedTo repositoryConnection `graphql:"repositoriesContributedTo(first: 100, includeUserRepositories: false, orderBy: {field: UPDATED_AT, direction: DESC}, contributionTypes: [COMMIT, PULL_REQUEST, REPOSITORY, PULL_REQUEST_REVIEW], after: $contribCursor)"`
	}
}

type contributionYearsQuery struct {
	Viewer struct {
		ContributionsCollection struct {
			ContributionYears []int
		}
	}
}

type contributionCalendarQuery struct {
	Viewer struct {
		ContributionsCollection struct {
			ContributionCalendar struct {
				TotalContributions int
			}
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	}
}

// DateTime is the GraphQL DateTime scalar.
type DateTime struct {
	time.Time
}
