package report

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"

	"github.com/APTlantis/ROM-Verify/internal/verify"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Bar draws a single line progress bar per category. It is safe for
// concurrent use, so Update can be passed as verify.Options.OnProgress.
type Bar struct {
	mu       sync.Mutex
	w        io.Writer
	model    progress.Model
	interval time.Duration
	last     time.Time
	category string
	drawn    bool
}

// NewBar draws to w at most once per interval, plus once when a category
// finishes.
func NewBar(w io.Writer, interval time.Duration) *Bar {
	return &Bar{
		w:        w,
		model:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		interval: interval,
	}
}

// View renders p without drawing it.
func (b *Bar) View(p verify.Progress) string {
	ratio := 0.0
	if p.Total > 0 {
		ratio = float64(p.Done) / float64(p.Total)
	}
	return fmt.Sprintf("%-10s %s %d/%d", p.Category, b.model.ViewAs(ratio), p.Confirmed, p.Original)
}

// Update redraws the bar for p.
func (b *Bar) Update(p verify.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.drawn && p.Category != b.category {
		fmt.Fprintln(b.w)
		b.drawn = false
	}
	b.category = p.Category

	now := time.Now()
	finished := p.Done >= p.Total
	if b.drawn && !finished && now.Sub(b.last) < b.interval {
		return
	}
	b.last = now
	b.drawn = true
	fmt.Fprintf(b.w, "\r%s", b.View(p))
}

// Done ends the current line.
func (b *Bar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawn {
		fmt.Fprintln(b.w)
		b.drawn = false
	}
}
