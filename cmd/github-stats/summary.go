package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Sternrassler/github-stats/pkg/stats"
)

// topLanguages is the number of languages listed in the summary table.
const topLanguages = 5

// printSummary renders the headline numbers of s as a table.
func printSummary(w io.Writer, s *stats.Snapshot) error {
	p := message.NewPrinter(language.English)
	lines := s.LinesChanged()

	table := tablewriter.NewWriter(w)
	table.Header("STATISTIC", "VALUE")

	rows := [][]any{
		{"Name", s.Name()},
		{"Stars", p.Sprintf("%d", s.Stars())},
		{"Forks", p.Sprintf("%d", s.Forks())},
		{"Contributions", p.Sprintf("%d", s.Contributions())},
		{"Lines added", p.Sprintf("%d", lines.Additions)},
		{"Lines deleted", p.Sprintf("%d", lines.Deletions)},
		{"Lines changed", p.Sprintf("%d", lines.Total())},
		{"Views (14 days)", p.Sprintf("%d", s.Views())},
		{"Repositories", p.Sprintf("%d", len(s.Repositories()))},
	}
	for i, lang := range s.SortedLanguages() {
		if i == topLanguages {
			break
		}
		rows = append(rows, []any{"Language: " + lang.Name, fmt.Sprintf("%.2f%%", lang.Prop)})
	}

	for _, row := range rows {
		if err := table.Append(row...); err != nil {
			return fmt.Errorf("append summary row: %w", err)
		}
	}
	return table.Render()
}
