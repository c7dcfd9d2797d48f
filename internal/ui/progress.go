package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Progress is a byte-based progress line for long file operations such as
// replaying a capture.
type Progress struct {
	Label string
	Total int64 // bytes, 0 when unknown
	Done  int64
	Count int    // items processed so far
	Unit  string // e.g., "datagrams"
	Width int
	bar   progress.Model
}

// NewProgress creates a progress line for total bytes.
func NewProgress(label string, total int64, unit string) *Progress {
	p := &Progress{Label: label, Total: total, Unit: unit}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sets the terminal width and resizes the bar to fit.
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 40 // Room for percentage and counter
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth))
	return p
}

// Update records how far the operation has got.
func (p *Progress) Update(done int64, count int) {
	p.Done = done
	p.Count = count
}

// Percent returns completion between 0 and 1.
func (p *Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Done) / float64(p.Total)
	if pct > 1 {
		pct = 1
	}
	return pct
}

// Render returns the progress line without a trailing newline.
func (p *Progress) Render() string {
	counter := MutedStyle.Render(fmt.Sprintf("%d %s", p.Count, p.Unit))
	line := fmt.Sprintf("%s  %3.0f%%  %s", p.bar.ViewAs(p.Percent()), p.Percent()*100, counter)
	if p.Label != "" {
		line = p.Label + "  " + line
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(line)
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
