package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/github-stats/pkg/stats"
)

func TestPrintSummary(t *testing.T) {
	tally := stats.NewLanguageTally(nil)
	for i, name := range []string{"Go", "Rust", "C", "Nix", "Shell", "Lua"} {
		tally.Add(stats.LanguageEdge{Name: name, Size: int64(60 - i*10)})
	}
	snap := stats.Finalize(stats.Totals{
		Name:          "Octo Cat",
		Stars:         12345,
		Contributions: 42,
		LinesChanged:  stats.LinesChanged{Additions: 1000, Deletions: 500},
		Repositories:  []string{"octocat/one"},
	}, tally, nil)

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, snap))

	out := buf.String()
	assert.Contains(t, out, "Octo Cat")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "Language: Go")
	assert.Contains(t, out, "Language: Shell")
	assert.NotContains(t, out, "Language: Lua")
}
