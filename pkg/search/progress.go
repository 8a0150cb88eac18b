package search

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// Progress receives the advancement of a pairwise scan
type Progress interface {
	Start(total int)
	Add(n int)
	Done()
}

type nopProgress struct{}

func (nopProgress) Start(int) {}
func (nopProgress) Add(int)   {}
func (nopProgress) Done()     {}

// NopProgress discards all progress events
var NopProgress Progress = nopProgress{}

// Bar renders a static progress bar, redrawn in place on each whole percent
type Bar struct {
	w       io.Writer
	model   progress.Model
	total   int
	current int
	shown   int
}

// NewBar creates a bar writing to w
func NewBar(w io.Writer) *Bar {
	return &Bar{
		w:     w,
		model: progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		shown: -1,
	}
}

// AutoProgress returns a bar on f when it is a terminal, NopProgress otherwise
func AutoProgress(f *os.File) Progress {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return NewBar(f)
	}
	return NopProgress
}

// Start resets the bar to zero out of total
func (b *Bar) Start(total int) {
	b.total = total
	b.current = 0
	b.shown = -1
	b.draw()
}

// Add advances the bar by n steps
func (b *Bar) Add(n int) {
	b.current += n
	b.draw()
}

// Done draws the full bar and ends the line
func (b *Bar) Done() {
	b.current = b.total
	b.draw()
	fmt.Fprintln(b.w)
}

func (b *Bar) draw() {
	percent := 1.0
	if b.total > 0 {
		percent = float64(b.current) / float64(b.total)
	}
	whole := int(percent * 100)
	if whole == b.shown {
		return
	}
	b.shown = whole
	fmt.Fprintf(b.w, "\r%s %d/%d", b.model.ViewAs(percent), b.current, b.total)
}
