// Package report renders verification results for people: colored per
// category lines, the missing list and a progress bar.
package report

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/APTlantis/ROM-Verify/internal/romhash"
	"github.com/APTlantis/ROM-Verify/internal/verify"
)

// Styles colors a report by completion.
type Styles struct {
	Title    lipgloss.Style
	Complete lipgloss.Style
	Partial  lipgloss.Style
	None     lipgloss.Style
	Dim      lipgloss.Style
}

// NewStyles builds styles for output to w. The renderer picks the color
// profile of w, so a pipe or a file gets plain text.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Title:    r.NewStyle().Bold(true),
		Complete: r.NewStyle().Foreground(lipgloss.Color("2")),
		Partial:  r.NewStyle().Foreground(lipgloss.Color("3")),
		None:     r.NewStyle().Foreground(lipgloss.Color("1")),
		Dim:      r.NewStyle().Faint(true),
	}
}

// PlainStyles renders without any escape codes.
func PlainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{Title: s, Complete: s, Partial: s, None: s, Dim: s}
}

// CategoryLine formats one category as "name  percent%  confirmed/original".
func CategoryLine(r verify.Report) string {
	if r.Empty() {
		return fmt.Sprintf("%-10s%9s%10d/%d", r.Category, "empty", r.Confirmed, r.Original)
	}
	return fmt.Sprintf("%-10s%8.4g%%%10d/%d", r.Category, r.Percent, r.Confirmed, r.Original)
}

// Printer writes human readable results.
type Printer struct {
	w      io.Writer
	styles Styles
}

// NewPrinter writes to w with the given styles.
func NewPrinter(w io.Writer, styles Styles) *Printer {
	return &Printer{w: w, styles: styles}
}

func (p *Printer) style(r verify.Report) lipgloss.Style {
	switch {
	case r.Empty():
		return p.styles.Dim
	case r.Confirmed == r.Original:
		return p.styles.Complete
	case r.Confirmed > 0:
		return p.styles.Partial
	default:
		return p.styles.None
	}
}

// Summary prints the file totals and one line per category.
func (p *Printer) Summary(sum verify.Summary) {
	f := sum.Files
	fmt.Fprintln(p.w, p.styles.Title.Render(sum.Collection))
	fmt.Fprintln(p.w, p.styles.Dim.Render(fmt.Sprintf(
		"%d files, %d hashed (%s), %d matched, %d duplicate, %d unmatched, %d skipped, %d errors in %s",
		f.Candidates, f.Hashed, humanize.Bytes(uint64(sum.BytesHashed)), f.Matched, f.Duplicate, f.Unmatched,
		f.Skipped, f.Errors, sum.Duration.Round(time.Millisecond))))
	for _, r := range sum.Reports {
		fmt.Fprintln(p.w, p.style(r).Render(CategoryLine(r)))
	}
}

// Missing prints the missing list of all reports.
func (p *Printer) Missing(reports []verify.Report) {
	for _, line := range MissingLines(reports) {
		fmt.Fprintln(p.w, line)
	}
}

// MissingLines returns "(crc) name" for every missing entry across reports,
// without duplicates, sorted.
func MissingLines(reports []verify.Report) []string {
	seen := make(map[string]struct{})
	var lines []string
	for _, r := range reports {
		for _, e := range r.Missing {
			line := fmt.Sprintf("(%s) %s", romhash.Format(e.CRC), e.Name)
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			lines = append(lines, line)
		}
	}
	slices.Sort(lines)
	return lines
}
