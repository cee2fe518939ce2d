// Package render turns a snapshot into the SVG cards and the HTML
// breakdown page.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Sternrassler/github-stats/pkg/stats"
)

// Output file names.
const (
	OverviewFile  = "overview.svg"
	LanguagesFile = "languages.svg"
	BreakdownFile = "breakdown.html"
)

// defaultColor fills languages GitHub reports without a color.
const defaultColor = "#cccccc"

// barWidth is the width of the language bar in the languages card.
const barWidth = 300.0

//go:embed templates/*.tmpl
var templateFS embed.FS

var printer = message.NewPrinter(language.English)

var templates = template.Must(template.New("render").Funcs(template.FuncMap{
	"number":  func(n interface{}) string { return printer.Sprintf("%d", n) },
	"percent": func(f float64) string { return fmt.Sprintf("%.2f%%", f) },
	"add":     func(a, b int) int { return a + b },
	"mul":     func(a, b int) int { return a * b },
}).ParseFS(templateFS, "templates/*.tmpl"))

// languageSegment is one language in the languages card.
type languageSegment struct {
	Name  string
	Color string
	Prop  float64
	X     float64
	Width float64
}

func languageSegments(langs []stats.NamedLanguage) []languageSegment {
	segments := make([]languageSegment, 0, len(langs))
	x := 0.0
	for _, lang := range langs {
		color := lang.Color
		if color == "" {
			color = defaultColor
		}
		width := lang.Prop / 100 * barWidth
		segments = append(segments, languageSegment{
			Name:  lang.Name,
			Color: color,
			Prop:  lang.Prop,
			X:     x,
			Width: width,
		})
		x += width
	}
	return segments
}

type overviewData struct {
	Name          string
	Stars         int
	Forks         int
	Contributions int
	LinesChanged  int64
	Views         int
	Repositories  int
}

// Overview writes the overview card.
func Overview(w io.Writer, s *stats.Snapshot) error {
	return templates.ExecuteTemplate(w, "overview.svg.tmpl", overviewData{
		Name:          s.Name(),
		Stars:         s.Stars(),
		Forks:         s.Forks(),
		Contributions: s.Contributions(),
		LinesChanged:  s.LinesChanged().Total(),
		Views:         s.Views(),
		Repositories:  len(s.Repositories()),
	})
}

type languagesData struct {
	Segments []languageSegment
	Height   int
}

// Languages writes the languages card.
func Languages(w io.Writer, s *stats.Snapshot) error {
	segments := languageSegments(s.SortedLanguages())
	return templates.ExecuteTemplate(w, "languages.svg.tmpl", languagesData{
		Segments: segments,
		Height:   70 + 20*len(segments),
	})
}

type breakdownRow struct {
	stats.RepoBreakdown
	Changed     int64
	LanguageBar []languageSegment
}

type breakdownData struct {
	Name      string
	Additions int64
	Deletions int64
	Changed   int64
	Views     int
	Rows      []breakdownRow
}

// Breakdown writes the per-repository HTML page.
func Breakdown(w io.Writer, s *stats.Snapshot) error {
	lines := s.LinesChanged()
	data := breakdownData{
		Name:      s.Name(),
		Additions: lines.Additions,
		Deletions: lines.Deletions,
		Changed:   lines.Total(),
		Views:     s.Views(),
	}

	colors := s.Languages()
	for _, b := range s.Breakdown() {
		named := make([]stats.NamedLanguage, 0, len(b.Languages))
		for name, l := range b.Languages {
			named = append(named, stats.NamedLanguage{
				Name:         name,
				LanguageStat: stats.LanguageStat{Size: l.Size, Prop: l.Prop, Color: colors[name].Color},
			})
		}
		data.Rows = append(data.Rows, breakdownRow{
			RepoBreakdown: b,
			Changed:       b.Changed(),
			LanguageBar:   languageSegments(stats.SortNamed(named)),
		})
	}

	return templates.ExecuteTemplate(w, "breakdown.html.tmpl", data)
}

type artifact struct {
	name   string
	render func(io.Writer, *stats.Snapshot) error
}

// WriteAll writes every artifact for s into dir and returns the written
// paths. The breakdown page is only written when s has a breakdown.
func WriteAll(dir string, s *stats.Snapshot) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	outputs := []artifact{
		{OverviewFile, Overview},
		{LanguagesFile, Languages},
	}
	if s.HasBreakdown() {
		outputs = append(outputs, artifact{BreakdownFile, Breakdown})
	}

	written := make([]string, 0, len(outputs))
	for _, out := range outputs {
		path := filepath.Join(dir, out.name)
		if err := writeFile(path, s, out.render); err != nil {
			return written, err
		}
		log.Debug().Str("path", path).Msg("Artifact written")
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, s *stats.Snapshot, render func(io.Writer, *stats.Snapshot) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f, s); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
