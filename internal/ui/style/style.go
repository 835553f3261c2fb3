// Package style provides shared colors, icons and per-state styling for
// terminal output.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/rbt/internal/core/domain"
)

// Colors.
var (
	Accent = lipgloss.Color("#0EA5E9")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Circle  = "○"
)

// Bold is used for headings.
var Bold = lipgloss.NewStyle().Bold(true)

// Icon returns the glyph that represents a job in state s.
func Icon(s domain.JobState) string {
	switch s {
	case domain.StateSucceeded:
		return Check
	case domain.StateFailed:
		return Cross
	case domain.StateSkipped:
		return Tilde
	case domain.StateCancelled:
		return Warning
	case domain.StateRunning:
		return Dot
	default:
		return Circle
	}
}

// Color returns the color associated with a job in state s.
func Color(s domain.JobState) lipgloss.Color {
	switch s {
	case domain.StateSucceeded:
		return Green
	case domain.StateFailed:
		return Red
	case domain.StateCancelled:
		return Yellow
	case domain.StateRunning:
		return Accent
	default:
		return Slate
	}
}
