// Package stats holds the domain model of a collection run: repositories,
// the language tally, and the final snapshot.
package stats

// LanguageEdge is one language reported for a repository.
type LanguageEdge struct {
	Name  string
	Color string
	Size  int64
}

// Repository is a repository discovered during pagination.
// Key is the case-sensitive owner/name identifier.
type Repository struct {
	Key       string
	Stars     int
	Forks     int
	Languages []LanguageEdge
}

// LinesChanged is the (additions, deletions) pair for one identity.
type LinesChanged struct {
	Additions int64
	Deletions int64
}

// Total is additions plus deletions.
func (l LinesChanged) Total() int64 {
	return l.Additions + l.Deletions
}

// Add returns the component-wise sum.
func (l LinesChanged) Add(other LinesChanged) LinesChanged {
	return LinesChanged{
		Additions: l.Additions + other.Additions,
		Deletions: l.Deletions + other.Deletions,
	}
}

// RepoLanguage is a language share within one repository.
type RepoLanguage struct {
	Size int64
	Prop float64
}

// RepoBreakdown is the detailed view of one repository.
type RepoBreakdown struct {
	Name      string
	Stars     int
	Forks     int
	Commits   int
	Views     int
	Additions int64
	Deletions int64
	Languages map[string]RepoLanguage
}

// Changed is additions plus deletions.
func (b RepoBreakdown) Changed() int64 {
	return b.Additions + b.Deletions
}
