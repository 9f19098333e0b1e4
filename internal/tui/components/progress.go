package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const defaultBarWidth = 30

// Progress renders how many nodes of the run have reached a final status.
// The bar turns red once any node has failed.
type Progress struct {
	healthy progress.Model
	failing progress.Model
	total   int
}

// NewProgress creates a progress component for a run of total nodes.
func NewProgress(total int) Progress {
	healthy := progress.New(progress.WithDefaultGradient())
	failing := progress.New(progress.WithSolidFill("196"))
	healthy.Width = defaultBarWidth
	failing.Width = defaultBarWidth
	return Progress{healthy: healthy, failing: failing, total: total}
}

// WithWidth returns a copy whose bar fits width columns.
func (p Progress) WithWidth(width int) Progress {
	if width > 0 {
		p.healthy.Width = width
		p.failing.Width = width
	}
	return p
}

// Ratio is the filled fraction of the bar, capped at one.
func (p Progress) Ratio(done int) float64 {
	if p.total <= 0 || done <= 0 {
		return 0
	}
	return math.Min(1.0, float64(done)/float64(p.total))
}

// View renders the bar for done finished nodes, failed of which did not
// succeed.
func (p Progress) View(done, failed int) string {
	bar := p.healthy
	label := fmt.Sprintf("%d/%d nodes", done, p.total)
	if failed > 0 {
		bar = p.failing
		label += fmt.Sprintf(" (%d failed)", failed)
	}
	rendered := lipgloss.NewStyle().Bold(true).Render(label)
	return lipgloss.JoinHorizontal(lipgloss.Left, bar.ViewAs(p.Ratio(done)), " ", rendered)
}
