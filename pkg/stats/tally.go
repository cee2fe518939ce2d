package stats

import (
	"sort"
	"strings"
)

// LanguageStat accumulates one language across repositories.
type LanguageStat struct {
	Size        int64
	Occurrences int
	Color       string

	// Prop is the share of the grand total in percent. Only meaningful
	// once the tally is closed.
	Prop float64
}

// NamedLanguage pairs a language name with its stat.
type NamedLanguage struct {
	Name string
	LanguageStat
}

// LanguageTally accumulates language sizes across repositories.
// It is not safe for concurrent use; the owning run folds into it
// sequentially.
type LanguageTally struct {
	stats    map[string]*LanguageStat
	excluded map[string]struct{}
	closed   bool
}

// NewLanguageTally creates a tally that ignores the given languages,
// matched case-insensitively.
func NewLanguageTally(exclude []string) *LanguageTally {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		excluded[strings.ToLower(name)] = struct{}{}
	}
	return &LanguageTally{
		stats:    make(map[string]*LanguageStat),
		excluded: excluded,
	}
}

// IsExcluded reports whether name matches an excluded language.
func (t *LanguageTally) IsExcluded(name string) bool {
	_, ok := t.excluded[strings.ToLower(name)]
	return ok
}

// Add folds one language edge of a repository into the tally.
// It returns false if the language is excluded or the tally is closed.
func (t *LanguageTally) Add(edge LanguageEdge) bool {
	if t.closed || t.IsExcluded(edge.Name) {
		return false
	}

	stat, ok := t.stats[edge.Name]
	if !ok {
		stat = &LanguageStat{Color: edge.Color}
		t.stats[edge.Name] = stat
	}
	stat.Size += edge.Size
	stat.Occurrences++
	if stat.Color == "" {
		stat.Color = edge.Color
	}
	return true
}

// AddRepository folds every language edge of repo.
func (t *LanguageTally) AddRepository(repo Repository) {
	for _, edge := range repo.Languages {
		t.Add(edge)
	}
}

// Close computes proportions. Further Add calls are ignored.
// Closing twice is a no-op.
func (t *LanguageTally) Close() {
	if t.closed {
		return
	}
	t.closed = true

	var total int64
	for _, stat := range t.stats {
		total += stat.Size
	}
	for _, stat := range t.stats {
		if total > 0 {
			stat.Prop = float64(stat.Size) / float64(total) * 100
		}
	}
}

// Closed reports whether Close was called.
func (t *LanguageTally) Closed() bool {
	return t.closed
}

// Len returns the number of retained languages.
func (t *LanguageTally) Len() int {
	return len(t.stats)
}

// Get returns the stat for name.
func (t *LanguageTally) Get(name string) (LanguageStat, bool) {
	stat, ok := t.stats[name]
	if !ok {
		return LanguageStat{}, false
	}
	return *stat, true
}

// TotalSize is the sum of all retained language sizes.
func (t *LanguageTally) TotalSize() int64 {
	var total int64
	for _, stat := range t.stats {
		total += stat.Size
	}
	return total
}

// Stats returns a copy of the tally keyed by language name.
func (t *LanguageTally) Stats() map[string]LanguageStat {
	out := make(map[string]LanguageStat, len(t.stats))
	for name, stat := range t.stats {
		out[name] = *stat
	}
	return out
}

// Sorted returns the languages by size descending, ties by name.
func (t *LanguageTally) Sorted() []NamedLanguage {
	return sortLanguages(t.Stats())
}

func sortLanguages(stats map[string]LanguageStat) []NamedLanguage {
	out := make([]NamedLanguage, 0, len(stats))
	for name, stat := range stats {
		out = append(out, NamedLanguage{Name: name, LanguageStat: stat})
	}
	return SortNamed(out)
}

// SortNamed sorts langs in place by size descending, ties by name,
// and returns it.
func SortNamed(langs []NamedLanguage) []NamedLanguage {
	sort.Slice(langs, func(i, j int) bool {
		if langs[i].Size != langs[j].Size {
			return langs[i].Size > langs[j].Size
		}
		return langs[i].Name < langs[j].Name
	})
	return langs
}

// RepoLanguages computes per-repository language shares from a
// language → bytes map, applying the same exclusions as the tally.
func RepoLanguages(sizes map[string]int, exclude []string) map[string]RepoLanguage {
	tally := NewLanguageTally(exclude)
	for name, size := range sizes {
		tally.Add(LanguageEdge{Name: name, Size: int64(size)})
	}
	tally.Close()

	out := make(map[string]RepoLanguage, tally.Len())
	for name, stat := range tally.stats {
		out[name] = RepoLanguage{Size: stat.Size, Prop: stat.Prop}
	}
	return out
}
