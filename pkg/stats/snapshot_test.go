package stats

import (
	"strings"
	"testing"
)

func TestFinalize_SortsBreakdownStable(t *testing.T) {
	breakdown := []RepoBreakdown{
		{Name: "a/low", Stars: 1},
		{Name: "a/tie-first", Stars: 10},
		{Name: "a/high", Stars: 50},
		{Name: "a/tie-second", Stars: 10},
	}

	snap := Finalize(Totals{Name: "Octo"}, NewLanguageTally(nil), breakdown)

	got := snap.Breakdown()
	want := []string{"a/high", "a/tie-first", "a/tie-second", "a/low"}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("breakdown[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
	if breakdown[0].Name != "a/low" {
		t.Error("Finalize reordered the caller's slice")
	}
}

func TestFinalize_NilBreakdown(t *testing.T) {
	snap := Finalize(Totals{}, nil, nil)
	if snap.HasBreakdown() {
		t.Error("HasBreakdown() = true without breakdown")
	}
	if snap.Breakdown() != nil {
		t.Error("Breakdown() should be nil")
	}

	empty := Finalize(Totals{}, nil, []RepoBreakdown{})
	if !empty.HasBreakdown() {
		t.Error("empty breakdown should still be reported as requested")
	}
}

func TestSnapshot_Immutable(t *testing.T) {
	tally := NewLanguageTally(nil)
	tally.Add(LanguageEdge{Name: "Go", Size: 10})

	totals := Totals{Name: "Octo", Repositories: []string{"a/x", "a/y"}}
	breakdown := []RepoBreakdown{{Name: "a/x", Languages: map[string]RepoLanguage{"Go": {Size: 10, Prop: 100}}}}
	snap := Finalize(totals, tally, breakdown)

	totals.Repositories[0] = "mutated"
	breakdown[0].Languages["Rust"] = RepoLanguage{}
	tally.Add(LanguageEdge{Name: "Rust", Size: 99})

	if snap.Repositories()[0] != "a/x" {
		t.Error("snapshot shares the repositories slice")
	}

	repos := snap.Repositories()
	repos[1] = "mutated"
	if snap.Repositories()[1] != "a/y" {
		t.Error("Repositories() returned internal slice")
	}

	langs := snap.Languages()
	delete(langs, "Go")
	if _, ok := snap.Languages()["Go"]; !ok {
		t.Error("Languages() returned internal map")
	}
	if _, ok := snap.Languages()["Rust"]; ok {
		t.Error("tally change leaked into snapshot")
	}

	if _, ok := snap.Breakdown()[0].Languages["Rust"]; ok {
		t.Error("breakdown languages shared with caller")
	}
	snap.Breakdown()[0].Languages["Zig"] = RepoLanguage{}
	if _, ok := snap.Breakdown()[0].Languages["Zig"]; ok {
		t.Error("Breakdown() returned internal map")
	}
}

func TestSnapshot_Summary(t *testing.T) {
	tally := NewLanguageTally(nil)
	tally.Add(LanguageEdge{Name: "Go", Size: 3})
	tally.Add(LanguageEdge{Name: "Shell", Size: 1})

	snap := Finalize(Totals{
		Name:          "The Octocat",
		Stars:         1234,
		Forks:         5,
		Contributions: 98765,
		LinesChanged:  LinesChanged{Additions: 1500, Deletions: 500},
		Views:         42,
		Repositories:  []string{"a/x"},
	}, tally, nil)

	summary := snap.Summary()
	for _, want := range []string{
		"Name: The Octocat",
		"Stargazers: 1,234",
		"All-time contributions: 98,765",
		"Lines of code changed: 2,000",
		"Project page views: 42",
		"  - Go: 75.0000%",
		"  - Shell: 25.0000%",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestLinesChanged(t *testing.T) {
	l := LinesChanged{Additions: 3, Deletions: 4}.Add(LinesChanged{Additions: 10, Deletions: 1})
	if l.Additions != 13 || l.Deletions != 5 || l.Total() != 18 {
		t.Errorf("LinesChanged = %+v", l)
	}
	b := RepoBreakdown{Additions: 7, Deletions: 2}
	if b.Changed() != 9 {
		t.Errorf("Changed() = %d, want 9", b.Changed())
	}
}
