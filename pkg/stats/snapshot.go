package stats

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Totals are the scalar results accumulated by a run.
type Totals struct {
	Name          string
	Stars         int
	Forks         int
	Contributions int
	LinesChanged  LinesChanged
	Views         int
	Repositories  []string
}

// Snapshot is the immutable result of one collection run.
// All accessors return copies.
type Snapshot struct {
	name          string
	stars         int
	forks         int
	contributions int
	lines         LinesChanged
	views         int
	repositories  []string
	languages     map[string]LanguageStat
	breakdown     []RepoBreakdown
	hasBreakdown  bool
}

// Finalize closes the tally and builds the snapshot. A nil breakdown
// means detailed collection was not requested; a non-nil one is sorted
// by stars descending, keeping discovery order among ties.
func Finalize(totals Totals, tally *LanguageTally, breakdown []RepoBreakdown) *Snapshot {
	if tally == nil {
		tally = NewLanguageTally(nil)
	}
	tally.Close()

	s := &Snapshot{
		name:          totals.Name,
		stars:         totals.Stars,
		forks:         totals.Forks,
		contributions: totals.Contributions,
		lines:         totals.LinesChanged,
		views:         totals.Views,
		repositories:  append([]string(nil), totals.Repositories...),
		languages:     tally.Stats(),
	}

	if breakdown != nil {
		s.hasBreakdown = true
		s.breakdown = make([]RepoBreakdown, len(breakdown))
		for i, b := range breakdown {
			s.breakdown[i] = copyBreakdown(b)
		}
		sort.SliceStable(s.breakdown, func(i, j int) bool {
			return s.breakdown[i].Stars > s.breakdown[j].Stars
		})
	}

	return s
}

func copyBreakdown(b RepoBreakdown) RepoBreakdown {
	langs := make(map[string]RepoLanguage, len(b.Languages))
	for name, l := range b.Languages {
		langs[name] = l
	}
	b.Languages = langs
	return b
}

// Name is the display name of the identity.
func (s *Snapshot) Name() string { return s.name }

// Stars is the total star count.
func (s *Snapshot) Stars() int { return s.stars }

// Forks is the total fork count.
func (s *Snapshot) Forks() int { return s.forks }

// Contributions is the all-time contribution count.
func (s *Snapshot) Contributions() int { return s.contributions }

// LinesChanged is the identity's additions and deletions.
func (s *Snapshot) LinesChanged() LinesChanged { return s.lines }

// Views is the 14-day traffic view total.
func (s *Snapshot) Views() int { return s.views }

// Repositories returns the deduplicated repository keys in discovery order.
func (s *Snapshot) Repositories() []string {
	return append([]string(nil), s.repositories...)
}

// Languages returns the closed tally.
func (s *Snapshot) Languages() map[string]LanguageStat {
	out := make(map[string]LanguageStat, len(s.languages))
	for name, stat := range s.languages {
		out[name] = stat
	}
	return out
}

// SortedLanguages returns the languages by size descending.
func (s *Snapshot) SortedLanguages() []NamedLanguage {
	return sortLanguages(s.languages)
}

// HasBreakdown reports whether detailed collection was requested.
func (s *Snapshot) HasBreakdown() bool { return s.hasBreakdown }

// Breakdown returns the per-repository details, stars descending.
// Nil when detailed collection was not requested.
func (s *Snapshot) Breakdown() []RepoBreakdown {
	if !s.hasBreakdown {
		return nil
	}
	out := make([]RepoBreakdown, len(s.breakdown))
	for i, b := range s.breakdown {
		out[i] = copyBreakdown(b)
	}
	return out
}

// Summary renders a plain text summary of the snapshot.
func (s *Snapshot) Summary() string {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	p.Fprintf(&b, "Name: %s\n", s.name)
	p.Fprintf(&b, "Stargazers: %d\n", s.stars)
	p.Fprintf(&b, "Forks: %d\n", s.forks)
	p.Fprintf(&b, "All-time contributions: %d\n", s.contributions)
	p.Fprintf(&b, "Repositories with contributions: %d\n", len(s.repositories))
	p.Fprintf(&b, "Lines of code added: %d\n", s.lines.Additions)
	p.Fprintf(&b, "Lines of code deleted: %d\n", s.lines.Deletions)
	p.Fprintf(&b, "Lines of code changed: %d\n", s.lines.Total())
	p.Fprintf(&b, "Project page views: %d\n", s.views)
	b.WriteString("Languages:\n")
	for _, lang := range s.SortedLanguages() {
		fmt.Fprintf(&b, "  - %s: %.4f%%\n", lang.Name, lang.Prop)
	}
	return b.String()
}
