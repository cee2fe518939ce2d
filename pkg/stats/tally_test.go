package stats

import (
	"math"
	"testing"
)

func TestLanguageTally_ProportionsSumTo100(t *testing.T) {
	tally := NewLanguageTally(nil)
	tally.AddRepository(Repository{Key: "a/x", Languages: []LanguageEdge{
		{Name: "Go", Size: 1000, Color: "#00ADD8"},
		{Name: "Shell", Size: 37},
	}})
	tally.AddRepository(Repository{Key: "b/y", Languages: []LanguageEdge{
		{Name: "Go", Size: 3},
		{Name: "Rust", Size: 4711},
		{Name: "C", Size: 1},
	}})
	tally.Close()

	var sum float64
	for _, stat := range tally.Stats() {
		sum += stat.Prop
	}
	if math.Abs(sum-100) > 1e-6 {
		t.Errorf("sum of proportions = %v, want 100", sum)
	}

	goStat, ok := tally.Get("Go")
	if !ok {
		t.Fatal("Go missing from tally")
	}
	if goStat.Size != 1003 || goStat.Occurrences != 2 {
		t.Errorf("Go = %+v, want size 1003 in 2 repositories", goStat)
	}
	if goStat.Color != "#00ADD8" {
		t.Errorf("Go color = %q", goStat.Color)
	}
}

func TestLanguageTally_ExclusionCaseInsensitive(t *testing.T) {
	tally := NewLanguageTally([]string{"html", " JavaScript ", ""})
	tally.AddRepository(Repository{Key: "a/x", Languages: []LanguageEdge{
		{Name: "Go", Size: 1000},
		{Name: "HTML", Size: 5000},
		{Name: "TypeScript", Size: 200},
		{Name: "javascript", Size: 9000},
	}})
	tally.Close()

	if tally.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tally.Len())
	}
	if _, ok := tally.Get("HTML"); ok {
		t.Error("HTML should be excluded")
	}
	if _, ok := tally.Get("javascript"); ok {
		t.Error("javascript should be excluded")
	}

	goStat, _ := tally.Get("Go")
	tsStat, _ := tally.Get("TypeScript")
	if math.Abs(goStat.Prop-83.333333) > 1e-4 {
		t.Errorf("Go prop = %v, want ~83.33", goStat.Prop)
	}
	if math.Abs(tsStat.Prop-16.666667) > 1e-4 {
		t.Errorf("TypeScript prop = %v, want ~16.67", tsStat.Prop)
	}
	if tally.TotalSize() != 1200 {
		t.Errorf("TotalSize() = %d, want 1200", tally.TotalSize())
	}
}

func TestLanguageTally_OrderIndependent(t *testing.T) {
	edges := []LanguageEdge{
		{Name: "Go", Size: 10},
		{Name: "Rust", Size: 30},
		{Name: "Go", Size: 5},
		{Name: "Python", Size: 55},
	}

	forward := NewLanguageTally(nil)
	for _, e := range edges {
		forward.Add(e)
	}
	forward.Close()

	backward := NewLanguageTally(nil)
	for i := len(edges) - 1; i >= 0; i-- {
		backward.Add(edges[i])
	}
	backward.Close()

	for name, stat := range forward.Stats() {
		other, ok := backward.Get(name)
		if !ok {
			t.Fatalf("%s missing from reversed tally", name)
		}
		if stat.Size != other.Size || math.Abs(stat.Prop-other.Prop) > 1e-9 {
			t.Errorf("%s: %+v != %+v", name, stat, other)
		}
	}
}

func TestLanguageTally_ClosedIgnoresAdds(t *testing.T) {
	tally := NewLanguageTally(nil)
	tally.Add(LanguageEdge{Name: "Go", Size: 10})
	tally.Close()
	tally.Close()

	if tally.Add(LanguageEdge{Name: "Rust", Size: 10}) {
		t.Error("Add after Close should be rejected")
	}
	if !tally.Closed() {
		t.Error("Closed() = false")
	}
	stat, _ := tally.Get("Go")
	if stat.Prop != 100 {
		t.Errorf("Go prop = %v, want 100", stat.Prop)
	}
}

func TestLanguageTally_EmptyClose(t *testing.T) {
	tally := NewLanguageTally(nil)
	tally.Close()
	if tally.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tally.Len())
	}
	if len(tally.Sorted()) != 0 {
		t.Error("Sorted() of empty tally should be empty")
	}
}

func TestLanguageTally_Sorted(t *testing.T) {
	tally := NewLanguageTally(nil)
	tally.Add(LanguageEdge{Name: "Shell", Size: 10})
	tally.Add(LanguageEdge{Name: "Go", Size: 500})
	tally.Add(LanguageEdge{Name: "C", Size: 10})
	tally.Close()

	sorted := tally.Sorted()
	want := []string{"Go", "C", "Shell"}
	for i, name := range want {
		if sorted[i].Name != name {
			t.Errorf("sorted[%d] = %s, want %s", i, sorted[i].Name, name)
		}
	}
}

func TestRepoLanguages(t *testing.T) {
	langs := RepoLanguages(map[string]int{"Go": 300, "HTML": 900, "Makefile": 100}, []string{"html"})

	if len(langs) != 2 {
		t.Fatalf("len = %d, want 2", len(langs))
	}
	if langs["Go"].Prop != 75 {
		t.Errorf("Go prop = %v, want 75", langs["Go"].Prop)
	}
	if langs["Makefile"].Size != 100 {
		t.Errorf("Makefile size = %d, want 100", langs["Makefile"].Size)
	}
}
